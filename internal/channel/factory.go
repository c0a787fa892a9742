//go:build !debug

package channel

// New returns a buffered channel of the given size. The render feed relies
// on the buffer so frame sends never block the engine.
func New[T any](size int) Channel[T] {
	return NewBuffered[T](size)
}

//go:build debug

package channel

// New returns an unbuffered channel, ignoring size. Debug builds surface
// backpressure immediately instead of hiding it in a buffer.
func New[T any](size int) Channel[T] {
	return NewUnbuffered[T]()
}

package cache

import (
	"sync"
	"testing"

	"github.com/kartparty/racehost/pkg/core"
)

func TestIntentBuffer_LastWriteWins(t *testing.T) {
	b := NewIntentBuffer()

	b.Set(1, core.ControlIntent{Throttle: 0.2})
	b.Set(1, core.ControlIntent{Throttle: 0.9})

	got, ok := b.Get(1)
	if !ok {
		t.Fatal("intent missing")
	}
	if got.Throttle != 0.9 {
		t.Errorf("Throttle = %f, want 0.9 (last write)", got.Throttle)
	}
}

func TestIntentBuffer_ClampsOnWrite(t *testing.T) {
	b := NewIntentBuffer()
	b.Set(1, core.ControlIntent{Steering: 2, Throttle: -1, Brake: 5})

	got, _ := b.Get(1)
	want := core.ControlIntent{Steering: 1, Throttle: 0, Brake: 1}
	if got != want {
		t.Errorf("intent = %+v, want %+v", got, want)
	}
}

func TestIntentBuffer_SnapshotIsACopy(t *testing.T) {
	b := NewIntentBuffer()
	b.Set(1, core.ControlIntent{Throttle: 0.5})

	snap := b.Snapshot()
	b.Set(1, core.ControlIntent{Throttle: 1})

	if snap[1].Throttle != 0.5 {
		t.Errorf("snapshot mutated by later write: %f", snap[1].Throttle)
	}
}

func TestIntentBuffer_RemoveAndReset(t *testing.T) {
	b := NewIntentBuffer()
	b.Set(1, core.ControlIntent{})
	b.Set(2, core.ControlIntent{})

	b.Remove(1)
	if _, ok := b.Get(1); ok {
		t.Error("removed intent still present")
	}
	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}

	b.Reset()
	if b.Len() != 0 {
		t.Errorf("Len() after reset = %d, want 0", b.Len())
	}
}

func TestIntentBuffer_ConcurrentWrites(t *testing.T) {
	b := NewIntentBuffer()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				b.Set(core.VehicleID(n), core.ControlIntent{Throttle: float64(j) / 100})
				b.Snapshot()
			}
		}(i)
	}
	wg.Wait()

	if b.Len() != 8 {
		t.Errorf("Len() = %d, want 8", b.Len())
	}
}

package buffer

import (
	"reflect"
	"sync"
	"testing"
)

func TestNewRing(t *testing.T) {
	// Test with valid capacity
	r := NewRing[string](100)
	if r.Cap() != 100 {
		t.Errorf("expected capacity 100, got %d", r.Cap())
	}
	if r.Len() != 0 {
		t.Errorf("expected length 0, got %d", r.Len())
	}

	// Test with zero capacity (should default to 1)
	r = NewRing[string](0)
	if r.Cap() != 1 {
		t.Errorf("expected capacity 1 for zero input, got %d", r.Cap())
	}

	// Test with negative capacity (should default to 1)
	r = NewRing[string](-5)
	if r.Cap() != 1 {
		t.Errorf("expected capacity 1 for negative input, got %d", r.Cap())
	}
}

func TestRing_Push(t *testing.T) {
	r := NewRing[string](3)

	r.Push("a")
	r.Push("b")
	if r.Len() != 2 {
		t.Errorf("expected length 2, got %d", r.Len())
	}

	got := r.Items()
	if !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Errorf("expected [a b], got %v", got)
	}
}

func TestRing_PushOverflow(t *testing.T) {
	r := NewRing[int](3)

	r.Push(1, 2, 3)
	r.Push(4)
	r.Push(5)

	got := r.Items()
	// Should have discarded 1 and 2
	if !reflect.DeepEqual(got, []int{3, 4, 5}) {
		t.Errorf("expected [3 4 5], got %v", got)
	}
	if r.Len() != 3 {
		t.Errorf("expected length 3, got %d", r.Len())
	}
}

func TestRing_PushLargerThanCapacity(t *testing.T) {
	r := NewRing[int](3)
	r.Push(1)

	r.Push(2, 3, 4, 5, 6)

	got := r.Items()
	if !reflect.DeepEqual(got, []int{4, 5, 6}) {
		t.Errorf("expected [4 5 6], got %v", got)
	}
}

func TestRing_Empty(t *testing.T) {
	r := NewRing[string](3)

	if r.Items() != nil {
		t.Error("expected nil items for empty ring")
	}

	r.Push()
	if r.Len() != 0 {
		t.Errorf("expected length 0 after empty push, got %d", r.Len())
	}
}

func TestRing_ItemsIsCopy(t *testing.T) {
	r := NewRing[string](3)
	r.Push("a", "b")

	got := r.Items()
	got[0] = "changed"

	if r.Items()[0] != "a" {
		t.Error("modifying returned slice should not affect the ring")
	}
}

func TestRing_ReplaceAndClear(t *testing.T) {
	r := NewRing[string](3)
	r.Push("a", "b", "c", "d")

	r.Replace([]string{"x", "y"})
	if got := r.Items(); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("expected [x y], got %v", got)
	}

	r.Clear()
	if r.Len() != 0 {
		t.Errorf("expected length 0 after clear, got %d", r.Len())
	}

	// Ring should still be usable after clear
	r.Push("z")
	if got := r.Items(); !reflect.DeepEqual(got, []string{"z"}) {
		t.Errorf("expected [z], got %v", got)
	}
}

func TestRing_ConcurrentAccess(t *testing.T) {
	r := NewRing[int](100)
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.Push(n*100 + j)
			}
		}(i)
	}

	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = r.Items()
				_ = r.Len()
			}
		}()
	}

	wg.Wait()

	if r.Len() != 100 {
		t.Errorf("expected length 100, got %d", r.Len())
	}
}

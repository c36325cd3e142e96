package rr

import (
	"sync"
	"sync/atomic"
	"testing"
)

func TestNext(t *testing.T) {
	var data atomic.Pointer[[]string]
	r := New(&data)

	if _, ok := r.Next(); ok || r.Len() != 0 {
		t.Fatal("nil list returned an item")
	}

	list := []string{"a", "b", "c"}
	data.Store(&list)

	var got []string
	for range 4 {
		item, ok := r.Next()
		if !ok {
			t.Fatal("empty")
		}
		got = append(got, item)
	}
	if want := []string{"a", "b", "c", "a"}; !equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}

	// replaced list is picked up by the next call
	list2 := []string{"d"}
	data.Store(&list2)
	if item, _ := r.Next(); item != "d" || r.Len() != 1 {
		t.Fatalf("got %s", item)
	}
}

func TestNextConcurrent(t *testing.T) {
	var data atomic.Pointer[[]string]
	list := []string{"a", "b"}
	data.Store(&list)
	r := New(&data)

	var (
		mu     sync.Mutex
		counts = map[string]int{}
		wg     sync.WaitGroup
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				item, _ := r.Next()
				mu.Lock()
				counts[item]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if counts["a"] != 500 || counts["b"] != 500 {
		t.Fatalf("counts %v", counts)
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ewilliams-labs/resonance/internal/core/ports"
)

var _ ports.Cache[ports.Versioned[[]string]] = (*LRU[ports.Versioned[[]string]])(nil)

func TestLRU_GetSetEvict(t *testing.T) {
	c := NewLRU[[]string]("genres", 8, time.Minute)

	if _, ok := c.Get("radiohead"); ok {
		t.Fatalf("expected miss on empty cache")
	}
	c.Set("radiohead", []string{"art rock"})
	got, ok := c.Get("radiohead")
	if !ok || len(got) != 1 || got[0] != "art rock" {
		t.Fatalf("got %v, %v", got, ok)
	}
	c.Evict("radiohead")
	if _, ok := c.Get("radiohead"); ok {
		t.Fatalf("expected miss after evict")
	}
}

func TestLRU_SizeBound(t *testing.T) {
	c := NewLRU[int]("features", 2, 0)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Fatalf("oldest entry should have been evicted")
	}
}

func TestLRU_Expires(t *testing.T) {
	c := NewLRU[int]("features", 4, 20*time.Millisecond)
	c.Set("a", 1)
	time.Sleep(60 * time.Millisecond)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestLRU_ConcurrentUse(t *testing.T) {
	c := NewLRU[int]("features", 64, time.Minute)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := fmt.Sprintf("k%d", i%32)
				c.Set(key, w)
				c.Get(key)
				if i%50 == 0 {
					c.Evict(key)
				}
			}
		}(w)
	}
	wg.Wait()
}

package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetWithinTTL(t *testing.T) {
	c := New()
	t0 := time.Unix(1_700_000_000, 0)
	ttl := 60 * time.Second

	c.Put("okx_btc", 50100.0, t0)

	v, ok := c.Get("okx_btc", t0.Add(ttl-time.Second), ttl)
	require.True(t, ok)
	assert.Equal(t, 50100.0, v)

	_, ok = c.Get("okx_btc", t0.Add(ttl+time.Second), ttl)
	assert.False(t, ok)
}

func TestGetMissing(t *testing.T) {
	c := New()
	_, ok := c.Get("never_written", time.Now(), time.Minute)
	assert.False(t, ok)
}

func TestPutOverwrites(t *testing.T) {
	c := New()
	t0 := time.Unix(1_700_000_000, 0)
	c.Put("spread", 10.0, t0)
	c.Put("spread", 25.0, t0.Add(time.Second))

	v, ok := c.Get("spread", t0.Add(2*time.Second), time.Minute)
	require.True(t, ok)
	assert.Equal(t, 25.0, v)

	_, ts, ok := c.GetEntry("spread")
	require.True(t, ok)
	assert.Equal(t, t0.Add(time.Second), ts)
}

func TestGetEntryIgnoresTTL(t *testing.T) {
	c := New()
	t0 := time.Unix(1_700_000_000, 0)
	c.Put("okx_btc", 1.0, t0)

	v, ts, ok := c.GetEntry("okx_btc")
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
	assert.Equal(t, t0, ts)
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	c := New()
	start := time.Now()
	var wg sync.WaitGroup

	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			name := fmt.Sprintf("task_%d", w)
			for i := 0; i < 500; i++ {
				c.Put(name, i, start.Add(time.Duration(i)*time.Millisecond))
			}
		}(w)
	}
	for r := 0; r < 8; r++ {
		wg.Add(1)
		go func(r int) {
			defer wg.Done()
			name := fmt.Sprintf("task_%d", r)
			for i := 0; i < 500; i++ {
				if v, ok := c.Get(name, start.Add(time.Second), time.Hour); ok {
					// Whole-entry writes: value is always an int, never torn.
					_, isInt := v.(int)
					assert.True(t, isInt)
				}
			}
		}(r)
	}
	wg.Wait()
}

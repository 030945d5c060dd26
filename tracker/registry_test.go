package tracker

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fernandafs/P2P-ProjectNapster/communication"
)

func addr(port int) communication.PeerAddress {
	return communication.PeerAddress{Host: "10.0.0.1", Port: port}
}

func TestJoinReplaces(t *testing.T) {
	r := NewRegistry()
	p := addr(5000)

	r.Join(p, []string{"a.txt", "b.txt"})
	r.Join(p, []string{"c.txt"})

	files, ok := r.Files(p)
	require.True(t, ok)
	assert.Equal(t, []string{"c.txt"}, files)
	assert.Empty(t, r.Search("a.txt"))
	assert.Equal(t, 1, r.Len())
}

func TestJoinCollapsesDuplicates(t *testing.T) {
	r := NewRegistry()
	r.Join(addr(5000), []string{"a", "a", "b"})

	files, _ := r.Files(addr(5000))
	assert.Equal(t, []string{"a", "b"}, files)
}

func TestJoinEmptySet(t *testing.T) {
	r := NewRegistry()
	r.Join(addr(5000), []string{})

	files, ok := r.Files(addr(5000))
	assert.True(t, ok)
	assert.Empty(t, files)
}

func TestUpdateIsAdditive(t *testing.T) {
	r := NewRegistry()
	p := addr(5000)

	r.Join(p, []string{"a.txt"})
	assert.False(t, r.Update(p, "b.txt"))
	assert.False(t, r.Update(p, "b.txt"))

	files, _ := r.Files(p)
	assert.Equal(t, []string{"a.txt", "b.txt"}, files)
}

func TestUpdateUnknownPeerCreatesEntry(t *testing.T) {
	r := NewRegistry()
	p := addr(5000)

	assert.True(t, r.Update(p, "x.bin"))

	files, ok := r.Files(p)
	require.True(t, ok)
	assert.Equal(t, []string{"x.bin"}, files)
}

func TestSearch(t *testing.T) {
	r := NewRegistry()
	assert.NotNil(t, r.Search("nonexistent.txt"))
	assert.Empty(t, r.Search("nonexistent.txt"))

	r.Join(addr(3), []string{"shared", "only-3"})
	r.Join(addr(1), []string{"shared"})
	r.Join(addr(2), []string{"other"})
	r.Update(addr(2), "shared")

	assert.Equal(t, []communication.PeerAddress{addr(1), addr(2), addr(3)}, r.Search("shared"))
	assert.Equal(t, []communication.PeerAddress{addr(3)}, r.Search("only-3"))
	assert.Empty(t, r.Search("nonexistent.txt"))
	assert.Equal(t, []string{"only-3", "other", "shared"}, r.FileNames())
}

func TestConcurrentJoins(t *testing.T) {
	const n = 200
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(port int) {
			defer wg.Done()
			r.Join(addr(port), []string{fmt.Sprintf("file-%d", port), "common"})
		}(i)
	}
	wg.Wait()

	require.Equal(t, n, r.Len())
	for i := 1; i <= n; i++ {
		files, ok := r.Files(addr(i))
		require.True(t, ok)
		assert.Equal(t, []string{"common", fmt.Sprintf("file-%d", i)}, files)
	}
	assert.Len(t, r.Search("common"), n)
}

func TestSearchDuringWrites(t *testing.T) {
	r := NewRegistry()
	p := addr(5000)
	r.Join(p, []string{"a"})

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			r.Join(p, []string{"a", fmt.Sprintf("b%d", i)})
			r.Update(p, "c")
		}
	}()

	for i := 0; i < 1000; i++ {
		// "a" is in every version of the set, so it must always be found.
		assert.Equal(t, []communication.PeerAddress{p}, r.Search("a"))
	}
	close(stop)
	wg.Wait()
}

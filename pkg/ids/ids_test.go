package ids

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewGeneratorRejectsOutOfRangeNode(t *testing.T) {
	_, err := NewGenerator(4096)
	require.Error(t, err)
}

func TestNextIsIncreasing(t *testing.T) {
	gen, err := NewGenerator(1)
	require.NoError(t, err)

	prev := gen.Next()
	require.Positive(t, prev)
	for i := 0; i < 1000; i++ {
		curr := gen.Next()
		require.Greater(t, curr, prev)
		prev = curr
	}
}

func TestNextUniqueAcrossGoroutines(t *testing.T) {
	gen, err := NewGenerator(7)
	require.NoError(t, err)

	const workers, perWorker = 8, 2000
	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		seen = make(map[int64]struct{}, workers*perWorker)
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, gen.Next())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, seen, workers*perWorker)
}

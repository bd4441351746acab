package rollout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fill(t *testing.T, b *Buffer, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		err := b.Store([]float64{float64(i), -float64(i)}, []float64{float64(i)},
			1.0, 0.5, -float64(i))
		require.NoError(t, err)
	}
}

func TestFinishPath(t *testing.T) {
	b, err := New(2, 1, 3, 0.0, 0.99, 1)
	require.NoError(t, err)

	require.NoError(t, b.Store([]float64{0, 1}, []float64{2}, -1, -1, 0))
	require.NoError(t, b.Store([]float64{3, 4}, []float64{5}, -1, -1.5, 0))
	require.NoError(t, b.Store([]float64{6, 7}, []float64{8}, -1, -2, 0))
	b.FinishPath(-3)

	// With λ = 0 the advantage is the one step TD error
	want := []float64{
		-1 + 0.99*-1.5 - -1,
		-1 + 0.99*-2 - -1.5,
		-1 + 0.99*-3 - -2,
	}
	assert.InDeltaSlice(t, want, b.Advantages(), 1e-12)
	for i := range want {
		assert.InDelta(t, b.Advantages()[i]+b.Values()[i], b.Returns()[i],
			1e-12)
	}
}

func TestFinishPathMonteCarlo(t *testing.T) {
	b, err := New(1, 1, 3, 1.0, 1.0, 1)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		require.NoError(t, b.Store([]float64{0}, []float64{0}, 1, 0, 0))
	}
	b.FinishPath(0)

	// Zero values with λ = ℽ = 1 gives rewards to go
	assert.Equal(t, []float64{3, 2, 1}, b.Returns())
}

func TestStoreFull(t *testing.T) {
	b, err := New(2, 1, 2, 0.95, 0.99, 1)
	require.NoError(t, err)
	fill(t, b, 2)

	err = b.Store([]float64{0, 0}, []float64{0}, 0, 0, 0)
	assert.True(t, IsFull(err))
	assert.True(t, b.Full())

	b.Reset()
	assert.False(t, b.Full())
	_, err = b.Get(1)
	assert.True(t, IsNotFull(err))
}

func TestStoreShape(t *testing.T) {
	b, err := New(2, 1, 2, 0.95, 0.99, 1)
	require.NoError(t, err)
	assert.Error(t, b.Store([]float64{0}, []float64{0}, 0, 0, 0))
	assert.Error(t, b.Store([]float64{0, 0}, []float64{0, 1}, 0, 0, 0))
}

func TestGetCoversBuffer(t *testing.T) {
	for _, batchSize := range []int{1, 3, 4, 10, 0} {
		b, err := New(2, 1, 10, 0.95, 0.99, 42)
		require.NoError(t, err)
		fill(t, b, 10)
		b.FinishPath(0)

		it, err := b.Get(batchSize)
		require.NoError(t, err)

		seen := make(map[float64]int)
		batches := 0
		for it.Next() {
			batch := it.Batch()
			batches++
			assert.Equal(t, 2, batch.ObsDim)
			assert.Len(t, batch.Observations, batch.Len()*2)
			assert.Len(t, batch.Actions, batch.Len())
			for i := 0; i < batch.Len(); i++ {
				action := batch.Actions[i]
				seen[action]++

				// Fields of one transition must stay together
				assert.Equal(t, action, batch.Observations[2*i])
				assert.Equal(t, -action, batch.OldLogProb[i])
			}
		}

		size := batchSize
		if size < 1 {
			size = 10
		}
		assert.Equal(t, (10+size-1)/size, batches)
		assert.Len(t, seen, 10)
		for _, count := range seen {
			assert.Equal(t, 1, count)
		}
	}
}

func TestGetReshuffles(t *testing.T) {
	b, err := New(1, 1, 50, 0.95, 0.99, 7)
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		require.NoError(t, b.Store([]float64{0}, []float64{float64(i)}, 0, 0, 0))
	}
	b.FinishPath(0)

	order := func() []float64 {
		it, err := b.Get(50)
		require.NoError(t, err)
		require.True(t, it.Next())
		return it.Batch().Actions
	}
	assert.NotEqual(t, order(), order())
}

func TestGetOpenPath(t *testing.T) {
	b, err := New(2, 1, 4, 1.0, 1.0, 1)
	require.NoError(t, err)
	fill(t, b, 4)
	b.FinishPath(0)

	// A second rollout whose last path is never finished
	b.Reset()
	fill(t, b, 2)
	b.FinishPath(0)
	fill(t, b, 2)

	_, err = b.Get(2)
	require.Error(t, err)
	assert.True(t, IsOpenPath(err))
	assert.False(t, IsNotFull(err))
	var bufErr *BufferError
	require.ErrorAs(t, err, &bufErr)
	assert.Equal(t, "get", bufErr.Op)

	b.FinishPath(0)
	_, err = b.Get(2)
	assert.NoError(t, err)
}

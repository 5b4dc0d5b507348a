package scheduler

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPartition(t *testing.T) {
	tests := []struct {
		name     string
		total    int
		capacity int
		expected []SubBatch
	}{
		{
			name:     "remainder batch",
			total:    700,
			capacity: 256,
			expected: []SubBatch{{0, 256}, {256, 256}, {512, 188}},
		},
		{
			name:     "exact multiple",
			total:    512,
			capacity: 256,
			expected: []SubBatch{{0, 256}, {256, 256}},
		},
		{
			name:     "smaller than capacity",
			total:    3,
			capacity: 256,
			expected: []SubBatch{{0, 3}},
		},
		{
			name:     "empty key space",
			total:    0,
			capacity: 256,
			expected: nil,
		},
		{
			name:     "zero capacity",
			total:    10,
			capacity: 0,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Partition(tt.total, tt.capacity))
		})
	}
}

func TestPartitionCoversKeySpace(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		total := rng.Intn(10000)
		capacity := 1 + rng.Intn(700)

		batches := Partition(total, capacity)
		assert.Len(t, batches, (total+capacity-1)/capacity)

		next, sum := 0, 0
		for j, b := range batches {
			assert.Equal(t, next, b.Start, "batch %d must start where the previous ended", j)
			assert.Positive(t, b.Length)
			if j < len(batches)-1 {
				assert.Equal(t, capacity, b.Length)
			}
			next = b.End()
			sum += b.Length
		}
		assert.Equal(t, total, sum)
	}
}

package cpu

import (
	"testing"

	"github.com/cuemby/keyforge/pkg/compute"
	"github.com/cuemby/keyforge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const identitySource = "__kernel void identity(__global const uchar* key, __global float* out, int offset) {}"

func newBackend(t *testing.T, dims [3]int) *Backend {
	t.Helper()
	b, err := New(Options{Dims: dims, Workers: 3})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestEvaluateIdentity(t *testing.T) {
	b := newBackend(t, [3]int{4, 2, 1})
	assert.Equal(t, 8, b.Capacity())

	require.NoError(t, b.Prepare(&types.Job{ID: "j1", KernelSource: identitySource, TotalSize: 20, Capacity: 1}))

	scores, err := b.Evaluate(16, 4)
	require.NoError(t, err)
	assert.Equal(t, []float32{16, 17, 18, 19}, scores)

	scores, err = b.Evaluate(0, 8)
	require.NoError(t, err)
	assert.Len(t, scores, 8)
	assert.Equal(t, float32(7), scores[7])
}

func TestEvaluateOutsideCapacity(t *testing.T) {
	b := newBackend(t, [3]int{2, 1, 1})
	require.NoError(t, b.Prepare(&types.Job{ID: "j1", KernelSource: identitySource, Capacity: 1}))

	_, err := b.Evaluate(0, 3)
	assert.ErrorIs(t, err, compute.ErrEnqueue)
	assert.True(t, compute.IsFatal(err))
}

func TestEvaluateWithoutPrepare(t *testing.T) {
	b := newBackend(t, [3]int{2, 1, 1})
	_, err := b.Evaluate(0, 1)
	assert.ErrorIs(t, err, compute.ErrKernelArgs)
}

func TestPrepareReuseWithoutKernel(t *testing.T) {
	b := newBackend(t, [3]int{2, 1, 1})
	err := b.Prepare(&types.Job{ID: "j1", ReuseKernel: true, Capacity: 1})
	assert.ErrorIs(t, err, compute.ErrNoKernel)
}

func TestPrepareReusesKernel(t *testing.T) {
	b := newBackend(t, [3]int{4, 1, 1})
	require.NoError(t, b.Prepare(&types.Job{ID: "j1", KernelSource: identitySource, Capacity: 1}))
	require.NoError(t, b.Prepare(&types.Job{ID: "j2", ReuseKernel: true, Key: []byte{0, 0, 0, 3}, Capacity: 1}))

	scores, err := b.Evaluate(1, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, scores)
}

func TestBuildFailures(t *testing.T) {
	tests := []struct {
		name   string
		source string
		logHas string
	}{
		{name: "no entry point", source: "float f(float x) { return x; }", logHas: "no __kernel entry point"},
		{name: "unknown kernel", source: "__kernel void sha256_crack(int x) {}", logHas: "sha256_crack"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t, [3]int{2, 1, 1})
			err := b.Prepare(&types.Job{ID: "j", KernelSource: tt.source, Capacity: 1})
			require.Error(t, err)
			assert.ErrorIs(t, err, compute.ErrBuild)

			var de *compute.DeviceError
			require.ErrorAs(t, err, &de)
			assert.Contains(t, de.BuildLog, tt.logHas)
		})
	}
}

func TestRegisterAndHamming(t *testing.T) {
	Register("double_index", func(_ []byte, index int32) float32 { return float32(2 * index) })
	assert.Contains(t, Registered(), "double_index")

	b := newBackend(t, [3]int{4, 1, 1})
	require.NoError(t, b.Prepare(&types.Job{ID: "j", KernelSource: "__kernel void double_index(int o) {}", Capacity: 1}))
	scores, err := b.Evaluate(5, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{10, 12}, scores)

	// key 0x00000005: index 5 matches all 32 bits, index 4 differs in one
	assert.Equal(t, float32(32), hammingKernel([]byte{0, 0, 0, 5}, 5))
	assert.Equal(t, float32(31), hammingKernel([]byte{0, 0, 0, 5}, 4))
	assert.Equal(t, float32(32), hammingKernel(nil, 0))
}

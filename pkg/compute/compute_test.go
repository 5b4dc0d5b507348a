package compute

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cuemby/keyforge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryPoint(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
		ok   bool
	}{
		{
			name: "simple kernel",
			src:  "__kernel void search(__global const uchar* key, __global float* out, int offset) {}",
			want: "search",
			ok:   true,
		},
		{
			name: "first of several",
			src:  "float helper(float x) { return x; }\n__kernel  void\tscore_md5 (int a) {}\n__kernel void other() {}",
			want: "score_md5",
			ok:   true,
		},
		{
			name: "no kernel",
			src:  "float helper(float x) { return x; }",
			ok:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EntryPoint(tt.src)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestKernelCache(t *testing.T) {
	var c KernelCache

	_, _, err := c.Resolve(&types.Job{ID: "a", ReuseKernel: true})
	assert.ErrorIs(t, err, ErrNoKernel)
	assert.True(t, IsFatal(err))

	src, build, err := c.Resolve(&types.Job{ID: "b", KernelSource: "k1"})
	require.NoError(t, err)
	assert.True(t, build)
	assert.Equal(t, "k1", src)
	c.Commit(src)

	_, build, err = c.Resolve(&types.Job{ID: "c", ReuseKernel: true})
	require.NoError(t, err)
	assert.False(t, build)

	_, build, err = c.Resolve(&types.Job{ID: "d", KernelSource: "k1"})
	require.NoError(t, err)
	assert.False(t, build, "same source is not rebuilt")

	src, build, err = c.Resolve(&types.Job{ID: "e", KernelSource: "k2"})
	require.NoError(t, err)
	assert.True(t, build)
	assert.Equal(t, "k2", src)

	c.Invalidate()
	assert.False(t, c.Compiled())
}

func TestDeviceError(t *testing.T) {
	cause := errors.New("driver exploded")
	err := fmt.Errorf("evaluate batch: %w", &DeviceError{Kind: ErrEnqueue, Op: "clEnqueueNDRangeKernel", Code: -5, Err: cause})

	assert.ErrorIs(t, err, ErrEnqueue)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsFatal(err))
	assert.Contains(t, err.Error(), "code -5")

	build := &DeviceError{Kind: ErrBuild, Op: "clBuildProgram", Code: -11, BuildLog: "error: expected ';'"}
	assert.Contains(t, build.Error(), "expected ';'")

	assert.False(t, IsFatal(errors.New("connection reset")))
}

func TestDimsCapacity(t *testing.T) {
	assert.Equal(t, 16777216, DimsCapacity(DefaultDims))
	assert.Equal(t, 4, DimsCapacity([3]int{4, 1, 1}))
}

package wire

import (
	"bytes"
	"testing"

	"github.com/cuemby/keyforge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobMessage(t *testing.T) {
	tests := []struct {
		name string
		job  *types.Job
	}{
		{
			name: "fresh kernel prefer larger",
			job: &types.Job{
				ID:           "job-1",
				KernelSource: "__kernel void search(__global const uchar* key, __global float* out, int offset) {}",
				Key:          []byte{0xde, 0xad, 0xbe, 0xef},
				TotalSize:    700,
				Ordering:     types.PreferLarger,
				Capacity:     5,
			},
		},
		{
			name: "reuse kernel prefer smaller",
			job: &types.Job{
				ID:          "job-2",
				ReuseKernel: true,
				Key:         []byte{},
				TotalSize:   10,
				Ordering:    types.PreferSmaller,
				Capacity:    1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteJob(NewWriter(&buf, FloatNative), tt.job))

			r := NewReader(&buf, FloatNative)
			op, err := ReadOpcode(r)
			require.NoError(t, err)
			assert.Equal(t, OpNewJob, op)

			got, err := ReadJob(r)
			require.NoError(t, err)
			assert.Equal(t, tt.job.ID, got.ID)
			assert.Equal(t, tt.job.KernelSource, got.KernelSource)
			assert.Equal(t, tt.job.ReuseKernel, got.ReuseKernel)
			assert.Equal(t, tt.job.Key, got.Key)
			assert.Equal(t, tt.job.TotalSize, got.TotalSize)
			assert.Equal(t, tt.job.Ordering, got.Ordering)
			assert.Equal(t, tt.job.Capacity, got.Capacity)
			assert.Zero(t, buf.Len())
		})
	}
}

func TestJobResultMessage(t *testing.T) {
	res := &types.JobResult{
		JobID: "job-7",
		Candidates: []types.Candidate{
			{Index: 9, Score: 9},
			{Index: 8, Score: 8.5},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteJobResult(NewWriter(&buf, FloatBigEndian), res))

	// opcode + id + count + 2 x (index, score)
	assert.Equal(t, 4+4+5+4+2*8, buf.Len())

	r := NewReader(&buf, FloatBigEndian)
	op, err := ReadOpcode(r)
	require.NoError(t, err)
	assert.Equal(t, OpJobResult, op)

	got, err := ReadJobResult(r)
	require.NoError(t, err)
	assert.Equal(t, res.JobID, got.JobID)
	assert.Equal(t, res.Candidates, got.Candidates)
}

func TestHelloMessage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHello(NewWriter(&buf, FloatNative), Hello{Identity: "host-a/gpu0", Credential: "s3cret"}))

	r := NewReader(&buf, FloatNative)
	op, err := ReadOpcode(r)
	require.NoError(t, err)
	assert.Equal(t, OpHello, op)

	h, err := ReadHello(r)
	require.NoError(t, err)
	assert.Equal(t, "host-a/gpu0", h.Identity)
	assert.Equal(t, "s3cret", h.Credential)
}

func TestTruncatedJob(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJob(NewWriter(&buf, FloatNative), &types.Job{
		ID: "job-3", KernelSource: "k", Key: []byte{1, 2, 3}, TotalSize: 4, Capacity: 2,
	}))
	data := buf.Bytes()[:buf.Len()-3]

	r := NewReader(bytes.NewReader(data), FloatNative)
	_, err := ReadOpcode(r)
	require.NoError(t, err)
	job, err := ReadJob(r)
	assert.Nil(t, job)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestOutOfRangeJobIsTransportFault(t *testing.T) {
	tests := []struct {
		name string
		job  *types.Job
	}{
		{name: "zero capacity", job: &types.Job{ID: "a", KernelSource: "k", TotalSize: 4, Capacity: 0}},
		{name: "negative capacity", job: &types.Job{ID: "b", KernelSource: "k", TotalSize: 4, Capacity: -3}},
		{name: "negative total", job: &types.Job{ID: "c", KernelSource: "k", TotalSize: -1, Capacity: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteJob(NewWriter(&buf, FloatNative), tt.job))

			r := NewReader(&buf, FloatNative)
			_, err := ReadOpcode(r)
			require.NoError(t, err)
			job, err := ReadJob(r)
			assert.Nil(t, job)
			assert.ErrorIs(t, err, ErrTransport)
		})
	}
}

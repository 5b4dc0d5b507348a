package wire

import (
	"fmt"
	"time"

	"github.com/cuemby/keyforge/pkg/types"
)

// Opcode identifies a protocol message. It is sent as an int32 before the payload
type Opcode int32

// Client to server opcodes
const (
	OpHello      Opcode = 1
	OpJobRequest Opcode = 2
	OpJobResult  Opcode = 3
)

// Server to client opcodes
const (
	OpAck           Opcode = 0
	OpNewJob        Opcode = 1
	OpWrongPassword Opcode = 2
	OpNoJob         Opcode = 3
)

// Hello is the handshake payload
type Hello struct {
	Identity   string
	Credential string
}

// WriteHello encodes and sends a HELLO message
func WriteHello(w *Writer, h Hello) error {
	w.WriteInt32(int32(OpHello))
	w.WriteString(h.Identity)
	w.WriteString(h.Credential)
	return w.Flush()
}

// WriteJobRequest sends a JOB_REQUEST message
func WriteJobRequest(w *Writer) error {
	w.WriteInt32(int32(OpJobRequest))
	return w.Flush()
}

// WriteJobResult encodes and sends a JOB_RESULT message
func WriteJobResult(w *Writer, res *types.JobResult) error {
	w.WriteInt32(int32(OpJobResult))
	w.WriteString(res.JobID)
	w.WriteInt32(int32(len(res.Candidates)))
	for _, c := range res.Candidates {
		w.WriteInt32(c.Index)
		w.WriteFloat32(c.Score)
	}
	return w.Flush()
}

// WriteOpcode sends a message that has no payload
func WriteOpcode(w *Writer, op Opcode) error {
	w.WriteInt32(int32(op))
	return w.Flush()
}

// ReadOpcode reads the next message opcode
func ReadOpcode(r *Reader) (Opcode, error) {
	v, err := r.ReadInt32()
	if err != nil {
		return 0, err
	}
	return Opcode(v), nil
}

// ReadJob decodes a NEW_JOB payload (the opcode has already been consumed).
// A job with out-of-range parameters is a protocol violation and wraps ErrTransport
func ReadJob(r *Reader) (*types.Job, error) {
	id, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	source, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	keyLen, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	key, err := r.ReadBytes(int(keyLen))
	if err != nil {
		return nil, err
	}
	ordering, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	total, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	capacity, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}

	job := &types.Job{
		ID:           id,
		KernelSource: source,
		ReuseKernel:  source == "",
		Key:          key,
		TotalSize:    total,
		Ordering:     types.PreferSmaller,
		Capacity:     capacity,
		ReceivedAt:   time.Now(),
	}
	if ordering != 0 {
		job.Ordering = types.PreferLarger
	}
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("%w: malformed NEW_JOB: %v", ErrTransport, err)
	}
	return job, nil
}

// WriteJob encodes and sends a NEW_JOB message. Used by servers and tests
func WriteJob(w *Writer, job *types.Job) error {
	w.WriteInt32(int32(OpNewJob))
	w.WriteString(job.ID)
	if job.ReuseKernel {
		w.WriteString("")
	} else {
		w.WriteString(job.KernelSource)
	}
	w.WriteInt32(int32(len(job.Key)))
	w.WriteBytes(job.Key)
	if job.PreferLarger() {
		w.WriteInt32(1)
	} else {
		w.WriteInt32(0)
	}
	w.WriteInt32(job.TotalSize)
	w.WriteInt32(job.Capacity)
	return w.Flush()
}

// ReadHello decodes a HELLO payload (the opcode has already been consumed)
func ReadHello(r *Reader) (Hello, error) {
	identity, err := r.ReadString()
	if err != nil {
		return Hello{}, err
	}
	credential, err := r.ReadString()
	if err != nil {
		return Hello{}, err
	}
	return Hello{Identity: identity, Credential: credential}, nil
}

// ReadJobResult decodes a JOB_RESULT payload (the opcode has already been consumed)
func ReadJobResult(r *Reader) (*types.JobResult, error) {
	id, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	count, err := r.ReadInt32()
	if err != nil {
		return nil, err
	}
	if count < 0 {
		return nil, fmt.Errorf("%w: negative result count %d", ErrTransport, count)
	}
	res := &types.JobResult{JobID: id, Candidates: make([]types.Candidate, 0, min(count, 1024))}
	for i := int32(0); i < count; i++ {
		idx, err := r.ReadInt32()
		if err != nil {
			return nil, err
		}
		score, err := r.ReadFloat32()
		if err != nil {
			return nil, err
		}
		res.Candidates = append(res.Candidates, types.Candidate{Index: idx, Score: score})
	}
	return res, nil
}

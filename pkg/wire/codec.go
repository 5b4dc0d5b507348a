package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// ErrTransport marks every short read, short write or malformed frame.
// Callers treat it as recoverable and reconnect
var ErrTransport = errors.New("wire: transport fault")

// DefaultMaxStringLen bounds length-prefixed strings read from the peer
const DefaultMaxStringLen = 64 << 20

// FloatOrder selects the byte order used for float32 values
type FloatOrder string

const (
	// FloatNative writes the host representation verbatim, matching
	// deployed servers that never normalized floats
	FloatNative FloatOrder = "native"
	// FloatBigEndian normalizes floats like integers
	FloatBigEndian FloatOrder = "big"
)

func (o FloatOrder) byteOrder() binary.ByteOrder {
	if o == FloatBigEndian {
		return binary.BigEndian
	}
	return binary.NativeEndian
}

// ParseFloatOrder converts a config value to a FloatOrder
func ParseFloatOrder(s string) (FloatOrder, error) {
	switch FloatOrder(s) {
	case "", FloatNative:
		return FloatNative, nil
	case FloatBigEndian:
		return FloatBigEndian, nil
	default:
		return "", fmt.Errorf("unknown float byte order %q (want native or big)", s)
	}
}

func transportErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransport, op, err)
}

// Reader decodes protocol primitives from a byte stream
type Reader struct {
	r            io.Reader
	floats       binary.ByteOrder
	maxStringLen int
	buf          [4]byte
}

// NewReader creates a Reader using the given float byte order
func NewReader(r io.Reader, order FloatOrder) *Reader {
	return &Reader{
		r:            r,
		floats:       order.byteOrder(),
		maxStringLen: DefaultMaxStringLen,
	}
}

// SetMaxStringLen changes the largest accepted string or byte payload
func (r *Reader) SetMaxStringLen(n int) {
	r.maxStringLen = n
}

func (r *Reader) fill(p []byte, op string) error {
	if _, err := io.ReadFull(r.r, p); err != nil {
		return transportErr(op, err)
	}
	return nil
}

// ReadInt32 reads a big-endian two's-complement integer
func (r *Reader) ReadInt32() (int32, error) {
	if err := r.fill(r.buf[:], "read int32"); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(r.buf[:])), nil
}

// ReadFloat32 reads a float in the configured byte order
func (r *Reader) ReadFloat32() (float32, error) {
	if err := r.fill(r.buf[:], "read float32"); err != nil {
		return 0, err
	}
	return math.Float32frombits(r.floats.Uint32(r.buf[:])), nil
}

// ReadBytes reads exactly n raw bytes
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > r.maxStringLen {
		return nil, fmt.Errorf("%w: invalid payload length %d", ErrTransport, n)
	}
	p := make([]byte, n)
	if n == 0 {
		return p, nil
	}
	if err := r.fill(p, "read bytes"); err != nil {
		return nil, err
	}
	return p, nil
}

// ReadString reads an int32 length prefix followed by that many bytes
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadInt32()
	if err != nil {
		return "", err
	}
	p, err := r.ReadBytes(int(n))
	if err != nil {
		return "", err
	}
	return string(p), nil
}

// Writer encodes protocol primitives onto a byte stream.
// Writes are buffered until Flush so one message leaves in one write
type Writer struct {
	w       io.Writer
	floats  binary.ByteOrder
	buf     []byte
	scratch [4]byte
}

// NewWriter creates a Writer using the given float byte order
func NewWriter(w io.Writer, order FloatOrder) *Writer {
	return &Writer{
		w:      w,
		floats: order.byteOrder(),
		buf:    make([]byte, 0, 256),
	}
}

// WriteInt32 appends a big-endian integer
func (w *Writer) WriteInt32(v int32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, uint32(v))
}

// WriteFloat32 appends a float in the configured byte order
func (w *Writer) WriteFloat32(v float32) {
	w.floats.PutUint32(w.scratch[:], math.Float32bits(v))
	w.buf = append(w.buf, w.scratch[:]...)
}

// WriteBytes appends raw bytes without a length prefix
func (w *Writer) WriteBytes(p []byte) {
	w.buf = append(w.buf, p...)
}

// WriteString appends an int32 length prefix and the string bytes
func (w *Writer) WriteString(s string) {
	w.WriteInt32(int32(len(s)))
	w.buf = append(w.buf, s...)
}

// Buffered returns the number of bytes waiting for Flush
func (w *Writer) Buffered() int {
	return len(w.buf)
}

// Flush writes the buffered message. A short write is a transport fault
func (w *Writer) Flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	n, err := w.w.Write(w.buf)
	if err == nil && n < len(w.buf) {
		err = io.ErrShortWrite
	}
	w.buf = w.buf[:0]
	if err != nil {
		return transportErr("write", err)
	}
	return nil
}

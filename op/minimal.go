package op

import (
	"encoding/binary"
	stderrors "errors"
	"syscall"

	"github.com/wippyai/opcore/errors"
	"github.com/wippyai/opcore/future"
)

// RecordSize is the length of a minimal-dispatch control record.
const RecordSize = 12

// Record is the control buffer of the minimal dispatch convention: three
// little-endian int32 fields. A zero PromiseID requests a synchronous
// call; a negative Result reports an error.
type Record struct {
	PromiseID int32
	Arg       int32
	Result    int32
}

// ParseRecord decodes a control buffer.
func ParseRecord(b []byte) (Record, error) {
	if len(b) < RecordSize {
		return Record{}, errors.New(errors.PhaseMarshal, errors.KindInvalidData).
			Path("record").
			Detail("control buffer is %d bytes, want %d", len(b), RecordSize).
			Build()
	}
	return Record{
		PromiseID: int32(binary.LittleEndian.Uint32(b[0:])),
		Arg:       int32(binary.LittleEndian.Uint32(b[4:])),
		Result:    int32(binary.LittleEndian.Uint32(b[8:])),
	}, nil
}

// Bytes encodes r.
func (r Record) Bytes() []byte {
	b := make([]byte, RecordSize)
	binary.LittleEndian.PutUint32(b[0:], uint32(r.PromiseID))
	binary.LittleEndian.PutUint32(b[4:], uint32(r.Arg))
	binary.LittleEndian.PutUint32(b[8:], uint32(r.Result))
	return b
}

// IsSync reports whether the record requests a synchronous call.
func (r Record) IsSync() bool { return r.PromiseID == 0 }

// Failed reports whether the record carries an error result.
func (r Record) Failed() bool { return r.Result < 0 }

// MinimalFunc is the body of a minimal op. Its result value is an int32
// (or any integer) stored in the record's Result field.
type MinimalFunc func(isSync bool, arg int32, zeroCopy []byte) future.Future[Result]

// NewMinimal declares a minimal op. The declared body takes the control
// buffer and an optional zero-copy buffer and completes with the encoded
// response record. A synchronous request whose body does not complete on
// its first poll fails with -EWOULDBLOCK.
func NewMinimal(name string, fn MinimalFunc, opts ...Option) (*Decl, error) {
	body := func(control []byte, zeroCopy []byte) future.Future[Result] {
		rec, err := ParseRecord(control)
		if err != nil {
			return Resolved(Record{Result: -int32(syscall.EINVAL)}.Bytes())
		}

		f := fn(rec.IsSync(), rec.Arg, zeroCopy)
		if rec.IsSync() {
			p := f.Poll(future.NewContext(nil))
			if !p.Ready {
				rec.Result = -int32(syscall.EWOULDBLOCK)
				return Resolved(rec.Bytes())
			}
			rec.Result = resultCode(p.Value)
			return Resolved(rec.Bytes())
		}

		return future.Map(f, func(res Result) Result {
			rec.Result = resultCode(res)
			return Result{Value: rec.Bytes()}
		})
	}
	return New(name, body, opts...)
}

func resultCode(res Result) int32 {
	if res.Err != nil {
		var errno syscall.Errno
		if stderrors.As(res.Err, &errno) && errno != 0 {
			return -int32(errno)
		}
		return -1
	}
	switch v := res.Value.(type) {
	case int32:
		return v
	case int:
		return int32(v)
	case int64:
		return int32(v)
	case uint32:
		return int32(v)
	}
	return 0
}

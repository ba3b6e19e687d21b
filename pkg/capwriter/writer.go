package capwriter

import (
	"io"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
)

// Sink is an already opened output. Writer borrows it and never closes it;
// the sink must outlive every call on the Writer bound to it.
type Sink interface {
	Write(p []byte) (n int, err error)
}

// Writer serializes packets into a capture file. A Writer is not concurrency
// safe; calls on one Writer (and its sink) must be serialized by the caller.
type Writer struct {
	// SnapshotLength is written in the global header. Frames are never
	// clipped by Writer; keeping them within this size is up to the caller.
	SnapshotLength uint32

	// BackOff decides whether and when to retry after a transient sink error.
	// Default is ZeroBackOff: retry immediately, forever.
	BackOff backoff.BackOff

	sink Sink
}

// NewWriter is constructor of an unbound Writer.
func NewWriter() *Writer {
	w := Writer{
		SnapshotLength: DefaultSnapshotLength,
		BackOff:        &backoff.ZeroBackOff{},
	}
	return &w
}

// Bound reports whether a global header has been written successfully.
func (x *Writer) Bound() bool {
	return x.sink != nil
}

// WriteGlobalHeader writes a global header to sink and binds the writer to it.
// It returns GlobalHeaderSize on success. On failure the writer is left unbound.
func (x *Writer) WriteGlobalHeader(sink Sink, linkType LinkType) (int, error) {
	x.sink = sink
	hdr := newGlobalHeader(linkType, x.SnapshotLength)

	if n, err := x.writeAll(hdr.marshal()); err != nil {
		x.sink = nil
		return 0, newFailure(HeaderWriteFailed, n, errors.Wrap(err, "Fail to write global header"))
	}

	return GlobalHeaderSize, nil
}

// WriteRecord writes a record header and frame to the bound sink. Captured
// and original length are both len(frame). It returns RecordHeaderSize +
// len(frame) on success.
func (x *Writer) WriteRecord(frame []byte, ts time.Time) (int, error) {
	if !x.Bound() {
		return 0, newFailure(NotBound, 0, ErrNotBound)
	}

	hdr := newRecordHeader(len(frame), ts)
	if n, err := x.writeAll(hdr.marshal()); err != nil {
		return 0, newFailure(RecordHeaderWriteFailed, n, errors.Wrap(err, "Fail to write record header"))
	}

	if n, err := x.writeAll(frame); err != nil {
		return 0, newFailure(RecordPayloadWriteFailed, RecordHeaderSize+n,
			errors.Wrapf(err, "Fail to write record payload (%d bytes)", len(frame)))
	}

	return RecordHeaderSize + len(frame), nil
}

// writeAll transfers buf to the sink until every byte is sent or the sink
// reports a persistent error. Partial writes advance buf by exactly the
// number of bytes written. It returns how many bytes reached the sink.
func (x *Writer) writeAll(buf []byte) (int, error) {
	policy := x.BackOff
	if policy == nil {
		policy = &backoff.ZeroBackOff{}
	}
	policy.Reset()

	var done int
	for len(buf) > 0 {
		n, err := x.sink.Write(buf)
		if n > 0 {
			if n > len(buf) {
				n = len(buf)
			}
			buf = buf[n:]
			done += n
			if len(buf) == 0 {
				return done, nil
			}
		}

		if err == nil {
			if n > 0 {
				continue
			}
			return done, io.ErrShortWrite
		}

		if !IsTransient(err) {
			return done, err
		}

		wait := policy.NextBackOff()
		if wait == backoff.Stop {
			return done, errors.Wrapf(ErrRetryExhausted, "%d bytes left, last error: %v", len(buf), err)
		}
		if wait > 0 {
			time.Sleep(wait)
		}
	}

	return done, nil
}

// IsTransient reports whether err asks the caller to retry the same write.
func IsTransient(err error) bool {
	return errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.EAGAIN) ||
		errors.Is(err, syscall.EWOULDBLOCK)
}

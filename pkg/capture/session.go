package capture

import (
	"context"
	"io"
	"time"

	"github.com/m-mizutani/capwriter/pkg/capwriter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Session pulls packets from Source and writes them with Writer. It decides
// which write failures end the capture.
type Session struct {
	Writer *capwriter.Writer
	Source PacketSource

	// Count is the number of packets to write. 0 means until the source is
	// exhausted or the context is canceled.
	Count int

	// ContinueOnError skips a packet whose record header could not be
	// written at all, so the file still ends at a record boundary. A partly
	// written record header or a payload failure always ends the session.
	ContinueOnError bool

	Inspector *Inspector
	Reference *ReferenceDumper
	HexDump   io.Writer
}

// Stats is a result of Session.Run.
type Stats struct {
	Packets       int
	CapturedBytes int64
	OriginalBytes int64
	WrittenBytes  int64

	Skipped int // clean record header failures tolerated by ContinueOnError
	Clipped int // frames cut down to the snapshot length
	Empty   int // cycles without a packet
}

// ExpectedSize is the file size implied by the packets written so far.
func (x *Stats) ExpectedSize() int64 {
	return x.CapturedBytes + capwriter.GlobalHeaderSize + int64(capwriter.RecordHeaderSize*x.Packets)
}

// Run writes a global header to sink and then one record per packet. sink is
// not closed by Run.
func (x *Session) Run(ctx context.Context, sink capwriter.Sink) (*Stats, error) {
	if x.Writer == nil || x.Source == nil {
		return nil, errors.New("Writer and Source are required for Session")
	}

	stats := &Stats{}
	n, err := x.Writer.WriteGlobalHeader(sink, x.Source.LinkType())
	if err != nil {
		return stats, errors.Wrap(err, "Fail to start capture session")
	}
	stats.WrittenBytes += int64(n)

	Logger.WithFields(logrus.Fields{
		"linkType": x.Source.LinkType(),
		"snaplen":  x.Writer.SnapshotLength,
		"count":    x.Count,
	}).Info("Started capture session")

	for x.Count == 0 || stats.Packets < x.Count {
		select {
		case <-ctx.Done():
			Logger.WithField("packets", stats.Packets).Info("Capture session canceled")
			return stats, nil
		default:
		}

		data, ci, err := x.Source.ReadPacketData()
		if err == io.EOF {
			break
		}
		if errors.Is(err, ErrNoPacket) {
			stats.Empty++
			continue
		}
		if err != nil {
			return stats, errors.Wrap(err, "Fail to read packet from source")
		}

		if snapLen := x.Writer.SnapshotLength; uint32(len(data)) > snapLen {
			Logger.WithFields(logrus.Fields{
				"length":  len(data),
				"snaplen": snapLen,
			}).Warn("Clipping frame to snapshot length")
			data = data[:snapLen]
			stats.Clipped++
		}

		written, err := x.Writer.WriteRecord(data, ci.Timestamp)
		if err != nil {
			if x.ContinueOnError && capwriter.KindOf(err) == capwriter.RecordHeaderWriteFailed &&
				capwriter.WrittenOf(err) == 0 {
				Logger.WithError(err).Warn("Skip packet")
				stats.Skipped++
				continue
			}
			return stats, errors.Wrapf(err, "Fail to write packet #%d", stats.Packets+1)
		}

		stats.Packets++
		stats.WrittenBytes += int64(written)
		stats.CapturedBytes += int64(len(data))
		if ci.Length > 0 {
			stats.OriginalBytes += int64(ci.Length)
		} else {
			stats.OriginalBytes += int64(len(data))
		}

		if err := x.observe(data, ci.Timestamp); err != nil {
			return stats, err
		}
	}

	Logger.WithFields(logrus.Fields{
		"packets": stats.Packets,
		"written": stats.WrittenBytes,
	}).Info("Finished capture session")

	return stats, nil
}

func (x *Session) observe(data []byte, ts time.Time) error {
	if x.Reference != nil {
		if err := x.Reference.Dump(data, ts); err != nil {
			return err
		}
	}
	if x.Inspector != nil {
		if err := x.Inspector.Inspect(data, ts); err != nil {
			return err
		}
	}
	if x.HexDump != nil {
		if err := DumpHex(x.HexDump, data); err != nil {
			return errors.Wrap(err, "Fail to dump hex")
		}
	}
	return nil
}

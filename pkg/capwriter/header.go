package capwriter

import (
	"encoding/binary"
	"time"

	"github.com/google/gopacket/layers"
)

const (
	// Magic is written in host byte order. A reader seeing 0xd4c3b2a1 knows the
	// file was produced on a host of the other endianness.
	Magic uint32 = 0xa1b2c3d4

	VersionMajor uint16 = 2
	VersionMinor uint16 = 4

	// DefaultSnapshotLength is enough to keep every byte of a packet on most networks.
	DefaultSnapshotLength uint32 = 65535

	GlobalHeaderSize = 24
	RecordHeaderSize = 16
)

// LinkType identifies data-link encapsulation of captured frames. It occupies
// full 32 bits in the global header.
type LinkType uint32

// LinkTypeEthernet is DLT_EN10MB.
const LinkTypeEthernet LinkType = 1

// FromGopacket converts gopacket's link type to LinkType.
func FromGopacket(t layers.LinkType) LinkType {
	return LinkType(t)
}

// GlobalHeader is the fixed header at the beginning of a capture file.
type GlobalHeader struct {
	Magic          uint32
	VersionMajor   uint16
	VersionMinor   uint16
	ThisZone       int32
	SigFigs        uint32
	SnapshotLength uint32
	LinkType       LinkType
}

func newGlobalHeader(linkType LinkType, snapLen uint32) GlobalHeader {
	return GlobalHeader{
		Magic:          Magic,
		VersionMajor:   VersionMajor,
		VersionMinor:   VersionMinor,
		ThisZone:       0, // GMT
		SigFigs:        0,
		SnapshotLength: snapLen,
		LinkType:       linkType,
	}
}

func (x GlobalHeader) marshal() []byte {
	buf := make([]byte, GlobalHeaderSize)
	order := binary.NativeEndian
	order.PutUint32(buf[0:4], x.Magic)
	order.PutUint16(buf[4:6], x.VersionMajor)
	order.PutUint16(buf[6:8], x.VersionMinor)
	order.PutUint32(buf[8:12], uint32(x.ThisZone))
	order.PutUint32(buf[12:16], x.SigFigs)
	order.PutUint32(buf[16:20], x.SnapshotLength)
	order.PutUint32(buf[20:24], uint32(x.LinkType))
	return buf
}

// RecordHeader precedes raw bytes of every packet.
type RecordHeader struct {
	Seconds        uint32
	Microseconds   uint32
	CapturedLength uint32
	OriginalLength uint32
}

func newRecordHeader(frameSize int, ts time.Time) RecordHeader {
	return RecordHeader{
		Seconds:        uint32(ts.Unix()),
		Microseconds:   uint32(ts.Nanosecond() / 1000),
		CapturedLength: uint32(frameSize),
		OriginalLength: uint32(frameSize),
	}
}

func (x RecordHeader) marshal() []byte {
	buf := make([]byte, RecordHeaderSize)
	order := binary.NativeEndian
	order.PutUint32(buf[0:4], x.Seconds)
	order.PutUint32(buf[4:8], x.Microseconds)
	order.PutUint32(buf[8:12], x.CapturedLength)
	order.PutUint32(buf[12:16], x.OriginalLength)
	return buf
}

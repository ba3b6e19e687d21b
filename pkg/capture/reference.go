package capture

import (
	"fmt"
	"io"
	"time"

	"github.com/m-mizutani/capwriter/pkg/capwriter"
	"github.com/pkg/errors"
	"honnef.co/go/pcap"
)

// ReferenceDumper writes the same packets with an independent pcap encoder so
// that its output can be compared with capwriter's. Not concurrency safe.
type ReferenceDumper struct {
	writer *pcap.Writer
}

type referencePayload []byte

func (x referencePayload) Payload() []byte {
	return x
}

// NewReferenceDumper writes a pcap header to w. Only Ethernet is supported.
func NewReferenceDumper(w io.Writer, linkType capwriter.LinkType) (*ReferenceDumper, error) {
	if linkType != capwriter.LinkTypeEthernet {
		return nil, fmt.Errorf("Reference dump supports only Ethernet, got link type %d", linkType)
	}

	pw := pcap.NewWriter(w)
	pw.Header.Network = pcap.DLT_EN10MB
	if err := pw.WriteHeader(); err != nil {
		return nil, errors.Wrap(err, "Fail to write header of reference pcap")
	}

	return &ReferenceDumper{writer: pw}, nil
}

// Dump writes one packet.
func (x *ReferenceDumper) Dump(data []byte, ts time.Time) error {
	pkt := pcap.Packet{
		Header: pcap.PacketHeader{Timestamp: ts},
		Data:   referencePayload(data),
	}

	if err := x.writer.WritePacket(pkt); err != nil {
		return errors.Wrap(err, "Fail to write reference pcap data")
	}
	return nil
}

package capture

import (
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/m-mizutani/capwriter/pkg/capwriter"
	"github.com/pkg/errors"
)

// Inspector writes one JSON line per written packet with its decoded five tuple.
type Inspector struct {
	EnableTextPayload bool
	EnableRawPayload  bool

	w       io.Writer
	decoder gopacket.Decoder
}

type inspectRecord struct {
	Timestamp time.Time `json:"ts"`
	Length    int       `json:"length"`

	// Five tuple
	Protocol string `json:"proto,omitempty"`
	SrcAddr  string `json:"src_addr,omitempty"`
	DstAddr  string `json:"dst_addr,omitempty"`
	SrcPort  int    `json:"src_port,omitempty"`
	DstPort  int    `json:"dst_port,omitempty"`

	// TCP
	TCPFlag string `json:"tcp_flag,omitempty"`
	TCPSeq  uint32 `json:"tcp_seq,omitempty"`

	// Data part
	TextPayload string `json:"text_payload,omitempty"`
	RawPayload  []byte `json:"raw_payload,omitempty"`
}

// NewInspector is constructor of Inspector. Frames are decoded as linkType.
func NewInspector(w io.Writer, linkType capwriter.LinkType) *Inspector {
	var decoder gopacket.Decoder = gopacket.DecodePayload
	if linkType <= 0xff {
		decoder = layers.LinkType(linkType)
	}

	return &Inspector{w: w, decoder: decoder}
}

func tcpFlags(tcp *layers.TCP) string {
	var flags []byte
	for _, f := range []struct {
		set  bool
		name byte
	}{
		{tcp.FIN, 'F'}, {tcp.SYN, 'S'}, {tcp.RST, 'R'}, {tcp.PSH, 'P'},
		{tcp.ACK, 'A'}, {tcp.URG, 'U'}, {tcp.ECE, 'E'}, {tcp.CWR, 'C'},
	} {
		if f.set {
			flags = append(flags, f.name)
		}
	}
	return string(flags)
}

// Inspect decodes data and writes its summary.
func (x *Inspector) Inspect(data []byte, ts time.Time) error {
	pkt := gopacket.NewPacket(data, x.decoder, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	record := inspectRecord{
		Timestamp: ts,
		Length:    len(data),
	}

	if netLayer := pkt.NetworkLayer(); netLayer != nil {
		src, dst := netLayer.NetworkFlow().Endpoints()
		record.SrcAddr = src.String()
		record.DstAddr = dst.String()

		if ipv4, ok := netLayer.(*layers.IPv4); ok {
			record.Protocol = ipv4.Protocol.String()
		} else if ipv6, ok := netLayer.(*layers.IPv6); ok {
			record.Protocol = ipv6.NextHeader.String()
		}
	}

	if tpLayer := pkt.TransportLayer(); tpLayer != nil {
		src, dst := tpLayer.TransportFlow().Endpoints()
		if n, err := strconv.Atoi(src.String()); err == nil {
			record.SrcPort = n
		}
		if n, err := strconv.Atoi(dst.String()); err == nil {
			record.DstPort = n
		}

		if tcp, ok := tpLayer.(*layers.TCP); ok {
			record.TCPFlag = tcpFlags(tcp)
			record.TCPSeq = tcp.Seq
		}
	}

	if app := pkt.ApplicationLayer(); app != nil {
		if x.EnableRawPayload {
			record.RawPayload = app.Payload()
		}
		if x.EnableTextPayload {
			record.TextPayload = string(app.Payload())
		}
	}

	raw, err := json.Marshal(&record)
	if err != nil {
		return errors.Wrap(err, "Fail to marshal inspectRecord")
	}

	if _, err := x.w.Write(append(raw, '\n')); err != nil {
		return errors.Wrap(err, "Fail to write packet summary")
	}

	return nil
}

package capture

import (
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcapgo"
	"github.com/m-mizutani/capwriter/pkg/capwriter"
	"github.com/pkg/errors"
)

// ErrNoPacket is returned by a PacketSource that has nothing to deliver this
// cycle. Session skips it without counting a packet.
var ErrNoPacket = errors.New("No packet available")

// PacketSource yields raw frames with their capture info. ReadPacketData
// returns io.EOF when the source is exhausted.
type PacketSource interface {
	gopacket.PacketDataSource
	LinkType() capwriter.LinkType
}

// FileSource replays packets of an existing pcap file.
type FileSource struct {
	fd     *os.File
	reader *pcapgo.Reader
}

// OpenFile opens a pcap file as PacketSource.
func OpenFile(path string) (*FileSource, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Fail to open input file: %s", path)
	}

	reader, err := pcapgo.NewReader(fd)
	if err != nil {
		fd.Close()
		return nil, errors.Wrapf(err, "Fail to read pcap header of %s", path)
	}

	return &FileSource{fd: fd, reader: reader}, nil
}

// ReadPacketData implements gopacket.PacketDataSource.
func (x *FileSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	return x.reader.ReadPacketData()
}

// LinkType returns link type recorded in the input file.
func (x *FileSource) LinkType() capwriter.LinkType {
	return capwriter.FromGopacket(x.reader.LinkType())
}

// SnapshotLength returns snapshot length recorded in the input file.
func (x *FileSource) SnapshotLength() uint32 {
	return x.reader.Snaplen()
}

// Close closes the input file.
func (x *FileSource) Close() error {
	return x.fd.Close()
}

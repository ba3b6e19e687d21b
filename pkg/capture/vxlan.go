package capture

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/m-mizutani/capwriter/pkg/capwriter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultReceiverQueueSize is buffer size of received VXLAN packets.
	DefaultReceiverQueueSize = 1024
	// DefaultVxlanPort is IANA assigned port of VXLAN.
	DefaultVxlanPort = 4789
	// DefaultVxlanIdleTimeout is how long ReadPacketData waits before ErrNoPacket.
	DefaultVxlanIdleTimeout = time.Second

	vxlanHeaderLength = 8
	vxlanBufferSize   = 32768
)

type vxlanHeader struct {
	Flag              uint16
	GroupPolicyID     uint16
	NetworkIdentifier [3]byte
	Reserved          [1]byte
}

type vxlanPacket struct {
	Header    vxlanHeader
	Data      []byte
	Timestamp time.Time
}

type queue struct {
	Pkt *vxlanPacket
	Err error
}

func parseVXLAN(raw []byte, length int) (*vxlanPacket, error) {
	if length < vxlanHeaderLength {
		return nil, fmt.Errorf("Too short data for VXLAN header: %d", length)
	}

	pkt := &vxlanPacket{Timestamp: time.Now()}
	pkt.Data = make([]byte, length-vxlanHeaderLength)
	copy(pkt.Data, raw[vxlanHeaderLength:length])

	buffer := bytes.NewBuffer(raw[:vxlanHeaderLength])
	if err := binary.Read(buffer, binary.BigEndian, &pkt.Header); err != nil {
		return nil, errors.Wrap(err, "Fail to parse VXLAN header")
	}

	return pkt, nil
}

// VXLANSource receives VXLAN encapsulated Ethernet frames over UDP and yields
// the inner frames.
type VXLANSource struct {
	// IdleTimeout bounds one ReadPacketData call. ErrNoPacket is returned
	// when nothing arrives in time.
	IdleTimeout time.Duration

	sock net.PacketConn
	ch   chan *queue
	done chan struct{}
}

// ListenVXLAN opens a UDP socket on port and starts receiving. Port 0 picks
// a free port; see Addr.
func ListenVXLAN(port, queueSize int) (*VXLANSource, error) {
	sock, err := net.ListenPacket("udp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, errors.Wrap(err, "Fail to create UDP socket")
	}

	src := &VXLANSource{
		IdleTimeout: DefaultVxlanIdleTimeout,
		sock:        sock,
		ch:          make(chan *queue, queueSize),
		done:        make(chan struct{}),
	}
	go src.receive()

	Logger.WithField("addr", sock.LocalAddr().String()).Info("Listening VXLAN")
	return src, nil
}

func (x *VXLANSource) receive() {
	defer close(x.ch)
	buf := make([]byte, vxlanBufferSize)

	for {
		n, _, err := x.sock.ReadFrom(buf)
		if err != nil {
			if x.closed() || errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-x.done:
			case x.ch <- &queue{Err: errors.Wrap(err, "Fail to read UDP data")}:
			}
			return
		}

		pkt, err := parseVXLAN(buf, n)
		if err != nil {
			Logger.WithError(err).Warn("Fail to parse VXLAN data")
			continue
		}

		select {
		case <-x.done:
			return
		case x.ch <- &queue{Pkt: pkt}:
		}
	}
}

func (x *VXLANSource) closed() bool {
	select {
	case <-x.done:
		return true
	default:
		return false
	}
}

// Addr returns local address of the UDP socket.
func (x *VXLANSource) Addr() net.Addr {
	return x.sock.LocalAddr()
}

// ReadPacketData implements gopacket.PacketDataSource.
func (x *VXLANSource) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	var ci gopacket.CaptureInfo

	select {
	case q, ok := <-x.ch:
		if !ok {
			return nil, ci, io.EOF
		}
		if q.Err != nil {
			return nil, ci, q.Err
		}

		ci.Timestamp = q.Pkt.Timestamp
		ci.CaptureLength = len(q.Pkt.Data)
		ci.Length = len(q.Pkt.Data)
		Logger.WithFields(logrus.Fields{
			"vni":    q.Pkt.Header.NetworkIdentifier,
			"length": ci.Length,
		}).Trace("Received VXLAN packet")
		return q.Pkt.Data, ci, nil

	case <-time.After(x.IdleTimeout):
		return nil, ci, ErrNoPacket
	}
}

// LinkType of inner frames is always Ethernet.
func (x *VXLANSource) LinkType() capwriter.LinkType {
	return capwriter.LinkTypeEthernet
}

// Close stops receiving. ReadPacketData returns io.EOF once the queue drains.
func (x *VXLANSource) Close() error {
	close(x.done)
	return x.sock.Close()
}

// Package live captures packets from a network interface through libpcap.
package live

import (
	"fmt"
	"net"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/m-mizutani/capwriter/pkg/capture"
	"github.com/m-mizutani/capwriter/pkg/capwriter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// DefaultReadTimeout makes ReadPacketData return periodically so that the
// capture loop can observe cancellation.
const DefaultReadTimeout = time.Second

// Source is a capture.PacketSource reading from a live interface.
type Source struct {
	Device string
	handle *pcap.Handle
}

// Open starts capturing on device. An empty device picks the first
// non-loopback interface that has an address.
func Open(device string, snapLen int32, promisc bool, timeout time.Duration) (*Source, error) {
	if device == "" {
		dev, err := lookupDevice()
		if err != nil {
			return nil, err
		}
		device = dev
	}

	handle, err := pcap.OpenLive(device, snapLen, promisc, timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "Fail to open live capture on %s", device)
	}

	capture.Logger.WithFields(logrus.Fields{
		"device":   device,
		"snaplen":  snapLen,
		"linkType": handle.LinkType().String(),
	}).Info("Opened capture device")

	return &Source{Device: device, handle: handle}, nil
}

func lookupDevice() (string, error) {
	devs, err := pcap.FindAllDevs()
	if err != nil {
		return "", errors.Wrap(err, "Fail to look up capture devices")
	}

	for _, dev := range devs {
		if len(dev.Addresses) == 0 {
			continue
		}
		if ifi, err := net.InterfaceByName(dev.Name); err == nil && ifi.Flags&net.FlagLoopback != 0 {
			continue
		}
		return dev.Name, nil
	}

	return "", fmt.Errorf("Device not found")
}

// ReadPacketData implements gopacket.PacketDataSource. A read timeout with
// no packet is reported as capture.ErrNoPacket.
func (x *Source) ReadPacketData() ([]byte, gopacket.CaptureInfo, error) {
	data, ci, err := x.handle.ReadPacketData()
	if err == pcap.NextErrorTimeoutExpired {
		return nil, ci, capture.ErrNoPacket
	}
	return data, ci, err
}

// LinkType returns link type of the device.
func (x *Source) LinkType() capwriter.LinkType {
	return capwriter.FromGopacket(x.handle.LinkType())
}

// Close closes the pcap handle.
func (x *Source) Close() {
	x.handle.Close()
}

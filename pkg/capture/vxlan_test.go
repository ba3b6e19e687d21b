package capture_test

import (
	"io"
	"net"
	"testing"
	"time"

	"github.com/m-mizutani/capwriter/pkg/capture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	sampleHeader    = []byte{0x08, 0x00, 0x00, 0x01, 0xa8, 0xee, 0xd6, 0x00}
	sampleEther     = []byte{0x0a, 0x66, 0x53, 0x0c, 0x59, 0xc4, 0x0a, 0x40, 0x8d, 0x4d, 0x24, 0x0e, 0x08, 0x00}
	sampleIPHeader  = []byte{0x45, 0x00, 0x01, 0x21, 0x9c, 0xe7, 0x40, 0x00, 0x26, 0x06, 0xa8, 0xdf, 0xa7, 0x47, 0xb8, 0x42, 0xac, 0x1e, 0x02, 0x68}
	sampleTCPHeader = []byte{0xd0, 0xe0, 0x1f, 0x98, 0x57, 0xd9, 0xc0, 0x71, 0x34, 0x04, 0x0e, 0x1f, 0x50, 0x18, 0x39, 0x08, 0x54, 0x10, 0x00, 0x00}
	samplePayload   = []byte("POST /ws/v1/cluster/apps/new-application HTTP/1.1\r\nHost: 54.65.xxx.xxx:8088\r\nContent-Length: 0\r\nUser-Agent: python-requests/2.6.0 CPython/2.6.6 Linux/2.6.32-754.17.1.el6.x86_64\r\nConnection: keep-alive\r\nAccept: */*\r\nAccept-Encoding: gzip, deflate\r\n\r\n")
)

func genSamplePacketData() []byte {
	var payload []byte
	payload = append(payload, sampleEther...)
	payload = append(payload, sampleIPHeader...)
	payload = append(payload, sampleTCPHeader...)
	payload = append(payload, samplePayload...)
	return payload
}

func TestParseVxlanNormal(t *testing.T) {
	var data []byte
	data = append(data, sampleHeader...)
	data = append(data, sampleEther...)

	pkt, err := capture.ParseVXLAN(data, len(data))
	require.NoError(t, err)
	assert.Equal(t, sampleEther, pkt.Data)
	assert.Equal(t, uint16(1), pkt.Header.GroupPolicyID)
	assert.Equal(t, [3]byte{0xa8, 0xee, 0xd6}, pkt.Header.NetworkIdentifier)
}

func TestParseVxlanLength(t *testing.T) {
	pkt, err := capture.ParseVXLAN(sampleHeader, len(sampleHeader))
	require.NoError(t, err)
	assert.Equal(t, 0, len(pkt.Data))

	tooShortHdr := sampleHeader[0:7]
	_, err = capture.ParseVXLAN(tooShortHdr, len(tooShortHdr))
	require.Error(t, err)
}

func TestVxlanListener(t *testing.T) {
	var data []byte
	data = append(data, sampleHeader...)
	data = append(data, sampleEther...)

	src, err := capture.ListenVXLAN(0, 10)
	require.NoError(t, err)
	src.IdleTimeout = 5 * time.Second

	port := src.Addr().(*net.UDPAddr).Port
	sock, err := net.DialUDP("udp", nil, &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: port})
	require.NoError(t, err)
	defer sock.Close()

	n, err := sock.Write(data)
	require.NoError(t, err)
	require.Equal(t, len(data), n)

	frame, ci, err := src.ReadPacketData()
	require.NoError(t, err)
	assert.Equal(t, sampleEther, frame)
	assert.Equal(t, len(sampleEther), ci.CaptureLength)
	assert.Equal(t, len(sampleEther), ci.Length)
	assert.False(t, ci.Timestamp.IsZero())

	require.NoError(t, src.Close())
	_, _, err = src.ReadPacketData()
	assert.Equal(t, io.EOF, err)
}

func TestVxlanIdle(t *testing.T) {
	src, err := capture.ListenVXLAN(0, 10)
	require.NoError(t, err)
	defer src.Close()
	src.IdleTimeout = 10 * time.Millisecond

	_, _, err = src.ReadPacketData()
	assert.Equal(t, capture.ErrNoPacket, err)
}

func TestVxlanCloseEndsWithEOF(t *testing.T) {
	for i := 0; i < 50; i++ {
		src, err := capture.ListenVXLAN(0, 10)
		require.NoError(t, err)
		src.IdleTimeout = 5 * time.Second

		require.NoError(t, src.Close())
		_, _, err = src.ReadPacketData()
		require.Equal(t, io.EOF, err, "iteration %d", i)
	}
}

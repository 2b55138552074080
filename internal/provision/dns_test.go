package provision

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// exampleQuery is a minimal A query for example.com with transaction id abcd.
var exampleQuery = []byte{
	0xab, 0xcd, // transaction id
	0x01, 0x00, // recursion desired
	0x00, 0x01, // one question
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x07, 'e', 'x', 'a', 'm', 'p', 'l', 'e', 0x03, 'c', 'o', 'm', 0x00,
	0x00, 0x01, // type A
	0x00, 0x01, // class IN
}

func TestAnswerShape(t *testing.T) {
	got := answer(exampleQuery, net.IPv4(10, 0, 0, 1).To4())

	want := append([]byte{
		0xab, 0xcd, // transaction id echoed
		0x81, 0x80, // standard response
		0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x00, 0x00,
	}, exampleQuery[12:]...)
	want = append(want,
		0xc0, 0x0c,
		0x00, 0x01, 0x00, 0x01,
		0x00, 0x00, 0x00, 0x3c,
		0x00, 0x04,
		10, 0, 0, 1,
	)
	require.Equal(t, want, got)
}

func TestServeDNSAnswersQueries(t *testing.T) {
	server, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeDNS(ctx, server, net.IPv4(10, 0, 0, 1)) }()

	client, err := net.Dial("udp", server.LocalAddr().String())
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Write(exampleQuery)
	require.NoError(t, err)

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 512)
	n, err := client.Read(buf)
	require.NoError(t, err)
	require.Equal(t, answer(exampleQuery, net.IPv4(10, 0, 0, 1).To4()), buf[:n])

	cancel()
	require.NoError(t, <-done)
}

func TestServeDNSRequiresIPv4(t *testing.T) {
	server, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	defer server.Close()

	err = ServeDNS(context.Background(), server, net.ParseIP("::1"))
	require.Error(t, err)
}

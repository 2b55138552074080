package provision

import (
	"context"
	"fmt"
	"net"

	"github.com/rs/zerolog/log"
)

// ServeDNS answers every A query on conn with addr, captive-portal style,
// until ctx is cancelled. Clients joining the setup network resolve any
// hostname to the portal.
func ServeDNS(ctx context.Context, conn net.PacketConn, addr net.IP) error {
	ip := addr.To4()
	if ip == nil {
		return fmt.Errorf("captive dns needs an ipv4 address, got %s", addr)
	}
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	buf := make([]byte, 512)
	for {
		n, remote, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("dns read: %w", err)
		}
		if n < 12 {
			continue
		}
		if _, err := conn.WriteTo(answer(buf[:n], ip), remote); err != nil {
			log.Debug().Err(err).Msg("dns reply failed")
		}
	}
}

// answer builds a response that resolves whatever was asked to ip. The
// question section is echoed back and the answer points at it with a
// standard name compression pointer.
func answer(query []byte, ip net.IP) []byte {
	resp := make([]byte, 0, len(query)+16)
	resp = append(resp, query[0], query[1]) // transaction id
	resp = append(resp, 0x81, 0x80)         // standard response, no error
	resp = append(resp, 0x00, 0x01)         // one question
	resp = append(resp, 0x00, 0x01)         // one answer
	resp = append(resp, 0x00, 0x00)         // no authority records
	resp = append(resp, 0x00, 0x00)         // no additional records
	resp = append(resp, query[12:]...)
	resp = append(resp, 0xc0, 0x0c)             // name pointer to the question
	resp = append(resp, 0x00, 0x01, 0x00, 0x01) // type A, class IN
	resp = append(resp, 0x00, 0x00, 0x00, 0x3c) // 60 second TTL
	resp = append(resp, 0x00, 0x04)             // rdata length
	resp = append(resp, ip...)
	return resp
}

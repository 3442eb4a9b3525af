package peerlink

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/mdlayher/vsock"
)

const vsockScheme = "vsock://"

// Dial connects to a peer address. Plain host:port addresses dial TCP;
// vsock://cid:port addresses dial a virtio vsock socket, which reaches a
// peer running inside a local microVM.
func Dial(ctx context.Context, addr string) (net.Conn, error) {
	if strings.HasPrefix(addr, vsockScheme) {
		cid, port, err := parseVsockAddr(addr)
		if err != nil {
			return nil, err
		}
		conn, err := vsock.Dial(cid, port, nil)
		if err != nil {
			return nil, fmt.Errorf("dial vsock %s: %w", addr, err)
		}
		// vsock has no context-aware dialer; apply the deadline afterwards.
		if deadline, ok := ctx.Deadline(); ok {
			if err := conn.SetDeadline(deadline); err != nil {
				conn.Close()
				return nil, fmt.Errorf("set deadline: %w", err)
			}
		}
		return conn, nil
	}

	d := net.Dialer{}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial tcp %s: %w", addr, err)
	}
	return conn, nil
}

// Listen announces on addr using the same address scheme as Dial.
func Listen(addr string) (net.Listener, error) {
	if strings.HasPrefix(addr, vsockScheme) {
		_, port, err := parseVsockAddr(addr)
		if err != nil {
			return nil, err
		}
		ln, err := vsock.Listen(port, nil)
		if err != nil {
			return nil, fmt.Errorf("listen vsock %s: %w", addr, err)
		}
		return ln, nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen tcp %s: %w", addr, err)
	}
	return ln, nil
}

func parseVsockAddr(addr string) (cid, port uint32, err error) {
	rest := strings.TrimPrefix(addr, vsockScheme)
	cidStr, portStr, ok := strings.Cut(rest, ":")
	if !ok {
		return 0, 0, fmt.Errorf("vsock address %q: want vsock://cid:port", addr)
	}
	cid64, err := strconv.ParseUint(cidStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("vsock address %q: bad cid: %w", addr, err)
	}
	port64, err := strconv.ParseUint(portStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("vsock address %q: bad port: %w", addr, err)
	}
	return uint32(cid64), uint32(port64), nil
}

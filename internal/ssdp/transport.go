package ssdp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/net/ipv4"
)

// multicastTTL follows the UPnP recommendation for SSDP
const multicastTTL = 2

// Transport is a UDP endpoint joined to the SSDP multicast group
type Transport interface {
	ReadFrom(b []byte) (int, net.Addr, error)
	WriteTo(b []byte, dst net.Addr) (int, error)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// ListenFunc opens a fresh Transport bound to the group's port and joined to the group
type ListenFunc func(ctx context.Context, group *net.UDPAddr, iface *net.Interface) (Transport, error)

type udpTransport struct {
	conn  net.PacketConn
	pc    *ipv4.PacketConn
	group *net.UDPAddr
	iface *net.Interface
}

// ListenMulticast binds 0.0.0.0:<group port> with address reuse enabled, joins
// the group on iface (or the default interface when nil) and routes outbound
// multicast through the same interface
func ListenMulticast(ctx context.Context, group *net.UDPAddr, iface *net.Interface) (Transport, error) {
	lc := net.ListenConfig{Control: reuseControl}
	conn, err := lc.ListenPacket(ctx, "udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(group.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to bind udp4 :%d: %w", group.Port, err)
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.JoinGroup(iface, &net.UDPAddr{IP: group.IP}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to join group %s: %w", group.IP, err)
	}
	if iface != nil {
		if err := pc.SetMulticastInterface(iface); err != nil {
			_ = pc.LeaveGroup(iface, &net.UDPAddr{IP: group.IP})
			conn.Close()
			return nil, fmt.Errorf("failed to set multicast interface %s: %w", iface.Name, err)
		}
	}
	_ = pc.SetMulticastTTL(multicastTTL)

	return &udpTransport{conn: conn, pc: pc, group: group, iface: iface}, nil
}

func (t *udpTransport) ReadFrom(b []byte) (int, net.Addr, error) {
	n, _, src, err := t.pc.ReadFrom(b)
	return n, src, err
}

func (t *udpTransport) WriteTo(b []byte, dst net.Addr) (int, error) {
	return t.pc.WriteTo(b, nil, dst)
}

func (t *udpTransport) SetReadDeadline(d time.Time) error  { return t.pc.SetReadDeadline(d) }
func (t *udpTransport) SetWriteDeadline(d time.Time) error { return t.pc.SetWriteDeadline(d) }

// Close leaves the multicast group and closes the socket
func (t *udpTransport) Close() error {
	leaveErr := t.pc.LeaveGroup(t.iface, &net.UDPAddr{IP: t.group.IP})
	closeErr := t.conn.Close()
	if closeErr != nil {
		return closeErr
	}
	if leaveErr != nil {
		return fmt.Errorf("failed to leave group %s: %w", t.group.IP, leaveErr)
	}
	return nil
}

// isTimeout reports whether a read error is a deadline expiry rather than a socket failure
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

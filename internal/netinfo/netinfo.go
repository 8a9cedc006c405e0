package netinfo

import (
	"errors"
	"fmt"
	"net"
)

// ErrNoInterface is returned when no usable multicast interface exists
var ErrNoInterface = errors.New("no up, multicast-capable IPv4 interface found")

// Info is the local interface and address the discovery engine binds to
type Info struct {
	iface *net.Interface
	addr  net.IP
}

// New builds an Info from an already-chosen interface and address
func New(iface *net.Interface, addr net.IP) *Info {
	return &Info{iface: iface, addr: addr}
}

// Interface returns the interface used to join the multicast group.
// A nil interface lets the kernel choose.
func (i *Info) Interface() *net.Interface {
	if i == nil {
		return nil
	}
	return i.iface
}

// Address returns the local IPv4 address used for self-suppression
func (i *Info) Address() net.IP {
	if i == nil {
		return nil
	}
	return i.addr
}

// String describes the binding for logs
func (i *Info) String() string {
	if i == nil || i.iface == nil {
		return fmt.Sprintf("any (%s)", i.Address())
	}
	return fmt.Sprintf("%s (%s)", i.iface.Name, i.addr)
}

// Source abstracts interface enumeration so selection can be tested
type Source interface {
	Interfaces() ([]net.Interface, error)
	Addrs(iface *net.Interface) ([]net.Addr, error)
}

type systemSource struct{}

func (systemSource) Interfaces() ([]net.Interface, error)          { return net.Interfaces() }
func (systemSource) Addrs(iface *net.Interface) ([]net.Addr, error) { return iface.Addrs() }

// Resolve picks the named interface, or when name is empty the first interface
// that is up, multicast-capable, not loopback and has an IPv4 address
func Resolve(name string) (*Info, error) {
	return ResolveFrom(systemSource{}, name)
}

// ResolveFrom is Resolve over an arbitrary interface source
func ResolveFrom(src Source, name string) (*Info, error) {
	ifaces, err := src.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", err)
	}

	for i := range ifaces {
		iface := &ifaces[i]

		if name != "" {
			if iface.Name != name {
				continue
			}
			if iface.Flags&net.FlagUp == 0 {
				return nil, fmt.Errorf("interface %s is down", name)
			}
			if iface.Flags&net.FlagMulticast == 0 {
				return nil, fmt.Errorf("interface %s does not support multicast", name)
			}
			addr, err := firstIPv4(src, iface)
			if err != nil {
				return nil, err
			}
			return New(iface, addr), nil
		}

		if iface.Flags&net.FlagUp == 0 ||
			iface.Flags&net.FlagMulticast == 0 ||
			iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addr, err := firstIPv4(src, iface)
		if err != nil {
			continue
		}
		return New(iface, addr), nil
	}

	if name != "" {
		return nil, fmt.Errorf("interface %s not found", name)
	}
	return nil, ErrNoInterface
}

func firstIPv4(src Source, iface *net.Interface) (net.IP, error) {
	addrs, err := src.Addrs(iface)
	if err != nil {
		return nil, fmt.Errorf("failed to read addresses of %s: %w", iface.Name, err)
	}
	for _, a := range addrs {
		var ip net.IP
		switch v := a.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, fmt.Errorf("interface %s has no IPv4 address", iface.Name)
}

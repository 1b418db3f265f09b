// Package netutil resolves this process's own address on the LAN: the
// advertise IP burned into stream/callback URLs handed to renderers, and
// the listen port when the operator leaves it at 0 for auto-pick.
package netutil

import (
	"fmt"
	"net"

	"github.com/kaelwillow/sonocast/internal/discovery"
)

// DetectAdvertiseIP returns the first non-loopback IPv4 address on a
// non-virtual interface, the address renderers on the LAN can reach this
// process at. Grounded on petervdpas-goop2's rendezvous server connectURLs
// interface walk, narrowed to the first usable candidate instead of
// collecting every one (this process burns exactly one address into every
// stream/callback URL it advertises).
func DetectAdvertiseIP() (string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return "", err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		if discovery.IsVirtualInterface(iface.Name) {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			var ip net.IP
			switch v := a.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() || ip.To4() == nil {
				continue
			}
			return ip.String(), nil
		}
	}
	return "", fmt.Errorf("netutil: no usable non-loopback IPv4 interface found")
}

// PickPort returns preferred if it's nonzero, else the first port in
// [start, end] this process can successfully bind, released immediately
// for the real listener to rebind.
func PickPort(preferred, start, end int) (int, error) {
	if preferred != 0 {
		return preferred, nil
	}
	for p := start; p <= end; p++ {
		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", p))
		if err != nil {
			continue
		}
		ln.Close()
		return p, nil
	}
	return 0, fmt.Errorf("netutil: no free port in range [%d, %d]", start, end)
}

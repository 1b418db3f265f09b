package control

import (
	"net"

	"github.com/kaelwillow/sonocast/internal/apierr"
)

// validateTargetIP rejects any IP that can't plausibly be a LAN speaker
// address: IPv6 (Sonos control is IPv4-only in this bridge), loopback,
// unspecified, multicast, or link-local. Grounded on spec.md §7's single
// invalid_ip classification and end-to-end scenario 5 (169.254.1.1 rejected
// with HTTP 400 before any topology or subscription side effect).
func validateTargetIP(raw string) error {
	ip := net.ParseIP(raw)
	if ip == nil {
		return apierr.InvalidRequestf("invalid_ip", "not a valid IP address: "+raw)
	}
	v4 := ip.To4()
	if v4 == nil {
		return apierr.InvalidRequestf("invalid_ip", "IPv6 addresses are not supported: "+raw)
	}
	switch {
	case v4.IsLoopback():
		return apierr.InvalidRequestf("invalid_ip", "loopback address not allowed: "+raw)
	case v4.IsUnspecified():
		return apierr.InvalidRequestf("invalid_ip", "unspecified address not allowed: "+raw)
	case v4.IsMulticast():
		return apierr.InvalidRequestf("invalid_ip", "multicast address not allowed: "+raw)
	case v4.IsLinkLocalUnicast(), v4.IsLinkLocalMulticast():
		return apierr.InvalidRequestf("invalid_ip", "link-local address not allowed: "+raw)
	case v4.Equal(net.IPv4bcast):
		return apierr.InvalidRequestf("invalid_ip", "broadcast address not allowed: "+raw)
	}
	return nil
}

// validateTargetIPs validates every IP in ips, returning the first failure.
func validateTargetIPs(ips []string) error {
	if len(ips) == 0 {
		return apierr.InvalidRequestf("invalid_request", "target_ips must not be empty")
	}
	for _, ip := range ips {
		if err := validateTargetIP(ip); err != nil {
			return err
		}
	}
	return nil
}

// Package resolver maps a host name or address literal to an IPv4 address.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"net"
)

var (
	// ErrResolve wraps lookup failures.
	ErrResolve = errors.New("can't resolve host")
	// ErrNoIPv4 is returned when the host has no IPv4 address.
	ErrNoIPv4 = errors.New("host doesn't have an IPv4 address")
)

// lookupIPAddr is the lookup used by Resolve; tests replace it.
var lookupIPAddr = net.DefaultResolver.LookupIPAddr

// Resolve returns the first IPv4 address of host. IPv4 literals are returned
// without a lookup.
func Resolve(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		if ip4 := ip.To4(); ip4 != nil {
			return ip4, nil
		}
		return nil, fmt.Errorf("%s: %w", host, ErrNoIPv4)
	}

	addrs, err := lookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrResolve, host, err)
	}
	for _, addr := range addrs {
		if ip4 := addr.IP.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", host, ErrNoIPv4)
}

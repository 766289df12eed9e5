package editor

import (
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"syscall"
	"time"
)

// NewPublicClient returns an HTTP client that refuses to connect to
// loopback, private, link-local and unspecified addresses. The check runs
// on the resolved address of every dial, so redirects and DNS names that
// point inward are refused too.
func NewPublicClient(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout: 10 * time.Second,
		Control: refuseInternal,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext
	return &http.Client{Timeout: timeout, Transport: transport}
}

func refuseInternal(network, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrForbiddenHost, host)
	}
	if !publicAddr(addr.Unmap()) {
		return fmt.Errorf("%w: %s", ErrForbiddenHost, addr)
	}
	return nil
}

// shared address space (RFC 6598), not covered by IsPrivate
var carrierNAT = netip.MustParsePrefix("100.64.0.0/10")

func publicAddr(addr netip.Addr) bool {
	return addr.IsValid() &&
		!addr.IsLoopback() &&
		!addr.IsPrivate() &&
		!addr.IsLinkLocalUnicast() &&
		!addr.IsMulticast() &&
		!addr.IsUnspecified() &&
		!carrierNAT.Contains(addr)
}

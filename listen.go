package scgi

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// DefaultAddr is the socket URL used when a Server has no Addr.
const DefaultAddr = "tcp://127.0.0.1:9999"

// ParseAddr splits a socket URL into the network and address understood by
// net.Listen. Accepted forms are tcp://host:port (also tcp4, tcp6),
// unix:///path/to.sock and a bare host:port.
func ParseAddr(addr string) (network, address string, err error) {
	if !strings.Contains(addr, "://") {
		if addr == "" {
			return "", "", fmt.Errorf("empty socket address")
		}
		return "tcp", addr, nil
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", "", err
	}
	switch u.Scheme {
	case "tcp", "tcp4", "tcp6":
		if u.Host == "" {
			return "", "", fmt.Errorf("missing host in %q", addr)
		}
		return u.Scheme, u.Host, nil
	case "unix":
		path := u.Host + u.Path
		if path == "" {
			return "", "", fmt.Errorf("missing path in %q", addr)
		}
		return "unix", path, nil
	}
	return "", "", fmt.Errorf("unsupported socket scheme %q", u.Scheme)
}

// Listen binds the socket URL addr. Failures are Fatal and match
// ErrSocketBind.
func Listen(addr string) (net.Listener, error) {
	network, address, err := ParseAddr(addr)
	if err != nil {
		return nil, &Error{Kind: Fatal, Op: "bind", Err: fmt.Errorf("%w (URL: %q): %w", ErrSocketBind, addr, err)}
	}
	ln, err := net.Listen(network, address)
	if err != nil {
		return nil, &Error{Kind: Fatal, Op: "bind", Err: fmt.Errorf("%w (URL: %q): %w", ErrSocketBind, addr, err)}
	}
	return ln, nil
}

func addrURL(a net.Addr) string {
	return a.Network() + "://" + a.String()
}

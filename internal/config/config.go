package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultHost is used when an address is given as a bare port.
	DefaultHost = "127.0.0.1"
	// DefaultTimeout is the deadline armed on even-port fetches.
	DefaultTimeout = 3 * time.Second
	// DefaultDialTimeout bounds a single connection attempt.
	DefaultDialTimeout = 30 * time.Second
)

// ErrInvalidPort is returned when a port is not a non-negative integer.
var ErrInvalidPort = errors.New("ports must be integers")

// Address identifies one poetry server.
type Address struct {
	Host string
	Port int
}

// String returns the dialable host:port form.
func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Even reports whether the port number is even.
func (a Address) Even() bool {
	return a.Port%2 == 0
}

// Config holds the client configuration.
type Config struct {
	Addresses       []Address
	Timeout         time.Duration
	DialTimeout     time.Duration
	Debug           bool
	MetricsTextfile string
}

// Default returns a Config with default durations and no addresses.
func Default() Config {
	return Config{
		Timeout:     DefaultTimeout,
		DialTimeout: DefaultDialTimeout,
	}
}

// Validate checks that the configuration can be run.
func (c *Config) Validate() error {
	if len(c.Addresses) == 0 {
		return errors.New("no addresses given")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.DialTimeout <= 0 {
		return fmt.Errorf("dial timeout must be positive, got %s", c.DialTimeout)
	}
	for _, addr := range c.Addresses {
		if addr.Port < 1 || addr.Port > 65535 {
			return fmt.Errorf("port out of range for %s", addr)
		}
	}
	return nil
}

// ParseAddress parses "port" or "host:port".
// A bare port gets DefaultHost. The host is everything before the first
// colon unless it is a bracketed IPv6 literal.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, errors.New("empty address")
	}

	host, port := DefaultHost, s
	switch {
	case strings.HasPrefix(s, "["):
		h, p, err := net.SplitHostPort(s)
		if err != nil {
			return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
		}
		host, port = h, p
	case strings.Contains(s, ":"):
		host, port, _ = strings.Cut(s, ":")
		if host == "" {
			host = DefaultHost
		}
	}

	if !isDigits(port) {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, ErrInvalidPort)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, ErrInvalidPort)
	}

	return Address{Host: host, Port: n}, nil
}

// ParseAddresses parses every argument, failing on the first bad one.
func ParseAddresses(args []string) ([]Address, error) {
	addrs := make([]Address, 0, len(args))
	for _, arg := range args {
		addr, err := ParseAddress(arg)
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

package entities

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// WireProtocol selects how the CLI byte stream is carried to the switch
type WireProtocol string

const (
	WirePlain     WireProtocol = "telnet"
	WireEncrypted WireProtocol = "ssh"
)

const (
	DefaultTelnetPort = 23
	DefaultSSHPort    = 22
)

// ParseWireProtocol maps a user supplied protocol name onto a WireProtocol.
// An empty name selects telnet; any other unknown name is rejected.
func ParseWireProtocol(name string) (WireProtocol, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "telnet", "plain":
		return WirePlain, nil
	case "ssh", "encrypted":
		return WireEncrypted, nil
	default:
		return "", fmt.Errorf("unsupported wire protocol %q, must be 'telnet' or 'ssh'", name)
	}
}

// DefaultPort returns the well-known port for the protocol
func (w WireProtocol) DefaultPort() int {
	if w == WireEncrypted {
		return DefaultSSHPort
	}
	return DefaultTelnetPort
}

// ConnectionParameters describes how to reach and log into one switch.
// EnableSecret falls back to Password when empty.
type ConnectionParameters struct {
	Host         string
	Port         int
	Username     string
	Password     string
	EnableSecret string
	Protocol     WireProtocol
}

// Address returns host:port, applying the protocol default port when unset
func (p ConnectionParameters) Address() string {
	port := p.Port
	if port == 0 {
		port = p.Protocol.DefaultPort()
	}
	return net.JoinHostPort(p.Host, strconv.Itoa(port))
}

// Secret returns the credential used for privilege escalation
func (p ConnectionParameters) Secret() string {
	if p.EnableSecret != "" {
		return p.EnableSecret
	}
	return p.Password
}

// Validate checks the parameters before any connection attempt
func (p ConnectionParameters) Validate() error {
	ip := net.ParseIP(p.Host)
	if ip == nil || ip.To4() == nil || strings.Contains(p.Host, ":") {
		return fmt.Errorf("host %q is not a valid IPv4 address", p.Host)
	}
	if p.Port < 0 || p.Port > 65535 {
		return fmt.Errorf("port %d out of range 1-65535", p.Port)
	}
	if _, err := ParseWireProtocol(string(p.Protocol)); err != nil {
		return err
	}
	return nil
}

// String omits credentials so parameters can be logged safely
func (p ConnectionParameters) String() string {
	return fmt.Sprintf("%s://%s@%s", p.Protocol, p.Username, p.Address())
}

package entities

import (
	"regexp"
	"strings"
)

// Format check only; octet ranges are not validated.
var serverAddressRegex = regexp.MustCompile(`^\d{1,3}(\.\d{1,3}){3}$`)

// ValidateServerAddress trims and checks a file server address
func ValidateServerAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !serverAddressRegex.MatchString(addr) {
		return "", Errorf(ErrorKindInvalidAddress, "validate server", "%q is not a dotted-quad address, e.g. 192.168.1.100", addr)
	}
	return addr, nil
}

package platform

import (
	"fmt"
	"strings"

	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
	"github.com/carlosrabelo/vlanctl/internal/platform/ios"
)

// DefaultPlatform is used when the configuration names none.
const DefaultPlatform = "ios"

// SwitchDriver defines the command set and output rules of a switching
// platform. Drivers hold no connection state.
type SwitchDriver interface {
	Name() string

	VLANListCommand() string
	HostnameCommand() string
	RunningConfigCommand() string

	ParseVLANListing(output string) []entities.VlanRecord
	ParseHostname(output string) (string, bool)
	IsCommandError(output string) bool

	BuildConfigCommands(vlans []entities.VlanRecord, hostname string) ([]string, error)
	SaveCommands() []entities.InteractiveCommand
	TFTPCommand(server, filename string) entities.InteractiveCommand
}

var _ SwitchDriver = (*ios.Driver)(nil)

// Options carry the rules shared by every driver.
type Options struct {
	ReservedVLANs []int
	MaxNameLength int
}

// New returns a driver by normalized platform name.
func New(name string, opts Options) (SwitchDriver, error) {
	switch normalizeName(name) {
	case "", "ios", "cisco", "cisco_ios":
		return ios.NewDriver(ios.Options{ReservedVLANs: opts.ReservedVLANs, MaxNameLength: opts.MaxNameLength}), nil
	default:
		return nil, fmt.Errorf("unknown switch platform: %s", name)
	}
}

// Available returns the names of all supported platforms.
func Available() []string {
	return []string{"ios"}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

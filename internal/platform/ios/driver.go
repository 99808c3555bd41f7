package ios

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
)

const driverName = "ios"

const (
	DefaultMaxNameLength = 20

	ShowVLANBriefCmd     = "show vlan brief"
	ShowHostnameCmd      = "show running-config | include ^hostname"
	ShowRunningConfigCmd = "show running-config"
	WriteMemoryCmd       = "write memory"
	CopyStartupCmd       = "copy running-config startup-config"
	CopyTFTPCmd          = "copy running-config tftp:"
)

// DefaultReservedVLANs are the FDDI and Token Ring VLANs IOS creates itself
var DefaultReservedVLANs = []int{1002, 1003, 1004, 1005}

// Options tune the read and write rules of the driver
type Options struct {
	ReservedVLANs []int // added to DefaultReservedVLANs
	MaxNameLength int   // at most DefaultMaxNameLength; 0 selects it
}

// Driver knows the Cisco IOS command set used to manage VLANs and the
// hostname, and how to read its output.
type Driver struct {
	reserved map[string]bool
	maxName  int
}

// New creates an IOS driver with the default rules.
func New() *Driver {
	return NewDriver(Options{})
}

// NewDriver creates an IOS driver with custom rules. The rules can only
// tighten the defaults: VLANs 1002-1005 stay reserved and names stay within
// DefaultMaxNameLength.
func NewDriver(opts Options) *Driver {
	reserved := make(map[string]bool, len(DefaultReservedVLANs)+len(opts.ReservedVLANs))
	for _, id := range append(slices.Clone(DefaultReservedVLANs), opts.ReservedVLANs...) {
		reserved[strconv.Itoa(id)] = true
	}
	maxName := opts.MaxNameLength
	if maxName <= 0 || maxName > DefaultMaxNameLength {
		maxName = DefaultMaxNameLength
	}
	return &Driver{reserved: reserved, maxName: maxName}
}

// Name returns the canonical platform identifier.
func (d *Driver) Name() string {
	return driverName
}

// IsReserved reports whether id belongs to the reserved VLAN set.
func (d *Driver) IsReserved(id string) bool {
	return d.reserved[id]
}

func (d *Driver) VLANListCommand() string      { return ShowVLANBriefCmd }
func (d *Driver) HostnameCommand() string      { return ShowHostnameCmd }
func (d *Driver) RunningConfigCommand() string { return ShowRunningConfigCmd }

// ParseVLANListing converts "show vlan brief" output into records.
func (d *Driver) ParseVLANListing(output string) []entities.VlanRecord {
	return parseVLANListing(output, d.reserved, d.maxName)
}

// ParseHostname extracts the device name from configuration output.
func (d *Driver) ParseHostname(output string) (string, bool) {
	return parseHostname(output)
}

// IsCommandError reports whether output carries an IOS parser complaint.
func (d *Driver) IsCommandError(output string) bool {
	return isIOSCommandError(output)
}

// SanitizeVlans applies the write-side rules to caller supplied records:
// blank or non-numeric ids and reserved ids are dropped, a missing name
// becomes VLAN_<id> and long names are truncated.
func (d *Driver) SanitizeVlans(vlans []entities.VlanRecord) []entities.VlanRecord {
	out := make([]entities.VlanRecord, 0, len(vlans))
	for _, v := range vlans {
		id := strings.TrimSpace(v.ID)
		name := strings.TrimSpace(v.Name)
		if !isNumeric(id) || d.reserved[id] {
			continue
		}
		if name == "" {
			name = "VLAN_" + id
		}
		out = append(out, entities.VlanRecord{ID: id, Name: truncate(name, d.maxName)})
	}
	return out
}

// BuildConfigCommands returns the configuration lines that set the hostname
// and create and name each VLAN, in that order. Empty input is reported
// as NoChangesRequested.
func (d *Driver) BuildConfigCommands(vlans []entities.VlanRecord, hostname string) ([]string, error) {
	vlans = d.SanitizeVlans(vlans)
	hostname = strings.TrimSpace(hostname)
	if len(vlans) == 0 && hostname == "" {
		return nil, entities.Errorf(entities.ErrorKindNoChangesRequested, "build", "no hostname or VLANs to apply")
	}

	commands := make([]string, 0, 1+2*len(vlans))
	if hostname != "" {
		commands = append(commands, fmt.Sprintf("hostname %s", hostname))
	}
	for _, v := range vlans {
		commands = append(commands,
			fmt.Sprintf("vlan %s", v.ID),
			fmt.Sprintf("name %s", v.Name),
		)
	}
	return commands, nil
}

// SaveCommands returns the commands that persist the running
// configuration, in the order they should be tried.
func (d *Driver) SaveCommands() []entities.InteractiveCommand {
	return []entities.InteractiveCommand{
		{Trigger: WriteMemoryCmd},
		{
			Trigger: CopyStartupCmd,
			Script: []entities.DialogueStep{
				{Expect: "Destination filename", Response: "", Optional: true},
				{Expect: "[confirm]", Response: "", Optional: true},
			},
		},
	}
}

// TFTPCommand returns the dialogue that copies the running configuration
// to a TFTP server under filename.
func (d *Driver) TFTPCommand(server, filename string) entities.InteractiveCommand {
	return entities.InteractiveCommand{
		Trigger: CopyTFTPCmd,
		Script: []entities.DialogueStep{
			{Expect: "Address or name of remote host", Response: server},
			{Expect: "Destination filename", Response: filename},
			{Expect: "confirm", Response: "", Optional: true},
		},
	}
}

package entities

// VlanRecord is one VLAN as listed by or pushed to the switch
type VlanRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// DeviceState is the slice of switch state this tool reads and writes.
// Vlans keep the order in which the device listed them.
type DeviceState struct {
	Vlans    []VlanRecord `json:"vlans"`
	Hostname string       `json:"hostname,omitempty"`
}

// Empty reports whether the state requests no change at all
func (s DeviceState) Empty() bool {
	return len(s.Vlans) == 0 && s.Hostname == ""
}

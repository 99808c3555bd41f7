package ios

import (
	"strings"
	"unicode"

	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
)

var commandErrHints = []string{
	"invalid input",
	"unknown command",
	"incomplete command",
	"ambiguous command",
	"unrecognized command",
	"invalid command",
	"syntax error",
}

// parseVLANListing reads "show vlan brief" output. Lines that do not start
// with a numeric VLAN id followed by a name are skipped, reserved ids are
// dropped and names are cut to maxName characters. Input order is kept.
func parseVLANListing(output string, reserved map[string]bool, maxName int) []entities.VlanRecord {
	vlans := make([]entities.VlanRecord, 0)
	for _, line := range strings.Split(output, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || !startsWithDigit(trimmed) {
			continue
		}
		fields := strings.Fields(trimmed)
		if len(fields) < 2 {
			continue
		}
		id, name := fields[0], fields[1]
		if !isNumeric(id) || reserved[id] {
			continue
		}
		vlans = append(vlans, entities.VlanRecord{ID: id, Name: truncate(name, maxName)})
	}
	return vlans
}

// parseHostname returns the value of the first "hostname <name>" line
func parseHostname(output string) (string, bool) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		rest, ok := strings.CutPrefix(line, "hostname")
		if !ok || rest == "" || !unicode.IsSpace(rune(rest[0])) {
			continue
		}
		fields := strings.Fields(rest)
		if len(fields) == 0 {
			continue
		}
		return fields[0], true
	}
	return "", false
}

func isIOSCommandError(output string) bool {
	lower := strings.ToLower(output)
	for _, hint := range commandErrHints {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}

func startsWithDigit(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// truncate cuts s to at most max characters
func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}

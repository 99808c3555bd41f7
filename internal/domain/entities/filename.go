package entities

import (
	"fmt"
	"time"
)

// FallbackDeviceName is used in file names when the device name is unknown
const FallbackDeviceName = "device"

// ConfigFilename names an exported configuration:
// YYYY-MM-DD-HHMM-<hostname>.txt, e.g. 2025-11-29-2218-SW1.txt.
// Downloads and TFTP exports use the same name for the same capture moment.
func ConfigFilename(t time.Time, hostname string) string {
	if hostname == "" {
		hostname = FallbackDeviceName
	}
	return fmt.Sprintf("%04d-%02d-%02d-%02d%02d-%s.txt",
		t.Year(), int(t.Month()), t.Day(), t.Hour(), t.Minute(), hostname)
}

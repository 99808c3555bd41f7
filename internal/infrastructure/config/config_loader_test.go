package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	yamlContent := `
transport: telnet
username: admin
password: password
tftp_server: 192.168.1.100
timeouts:
  command: 5s
  dialogue_rounds: 40
ssh:
  known_hosts: /tmp/known_hosts
  legacy_algorithms: true
log:
  level: DEBUG
  format: json
switches:
  - target: "192.168.1.1"
    transport: ssh
    username: switch_admin
    enable_password: switch_enable
  - target: "192.168.1.2"
    port: 2323
    tftp_server: 10.0.0.5
`
	cfg, err := Load(writeConfig(t, yamlContent))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Platform != "ios" {
		t.Errorf("Expected platform 'ios', got '%s'", cfg.Platform)
	}
	if cfg.Timeouts.Command != 5*time.Second {
		t.Errorf("Expected command timeout 5s, got %s", cfg.Timeouts.Command)
	}
	if cfg.Timeouts.MaxWait != DefaultMaxWait {
		t.Errorf("Expected default max_wait, got %s", cfg.Timeouts.MaxWait)
	}
	if cfg.Timeouts.DialogueRounds != 40 {
		t.Errorf("Expected 40 dialogue rounds, got %d", cfg.Timeouts.DialogueRounds)
	}
	if !cfg.SSH.LegacyAlgorithms || cfg.SSH.KnownHosts != "/tmp/known_hosts" {
		t.Errorf("Unexpected ssh block %+v", cfg.SSH)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Unexpected log block %+v", cfg.Log)
	}
	if len(cfg.ReservedVlans) != 4 || cfg.VlanNameMax != DefaultVlanNameMax {
		t.Errorf("Unexpected VLAN rules %v / %d", cfg.ReservedVlans, cfg.VlanNameMax)
	}

	if len(cfg.Switches) != 2 {
		t.Fatalf("Expected 2 switches, got %d", len(cfg.Switches))
	}

	first := cfg.Switches[0]
	if first.Transport != "ssh" || first.Username != "switch_admin" {
		t.Errorf("Switch-specific values lost: %+v", first)
	}
	if first.Password != "password" {
		t.Errorf("Expected inherited password, got '%s'", first.Password)
	}
	if first.TFTPServer != "192.168.1.100" {
		t.Errorf("Expected inherited tftp_server, got '%s'", first.TFTPServer)
	}

	second := cfg.Switches[1]
	if second.Transport != "telnet" || second.Port != 2323 || second.TFTPServer != "10.0.0.5" {
		t.Errorf("Unexpected second switch %+v", second)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("username: admin\n"))
	if err != nil {
		t.Fatalf("Parse() returned error: %v", err)
	}
	if cfg.Transport != "telnet" {
		t.Errorf("Expected empty transport to default to telnet, got '%s'", cfg.Transport)
	}
	if cfg.Timeouts != (Timeouts{
		Command:        DefaultCommandTimeout,
		MaxWait:        DefaultMaxWait,
		Login:          DefaultLoginTimeout,
		ReadPoll:       DefaultReadPoll,
		Settle:         DefaultSettle,
		DialogueRounds: DefaultDialogueRounds,
		ConfigDump:     DefaultConfigDump,
	}) {
		t.Errorf("Unexpected default timeouts %+v", cfg.Timeouts)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Unexpected default log block %+v", cfg.Log)
	}
	if len(cfg.Switches) != 0 {
		t.Errorf("Expected no switches, got %d", len(cfg.Switches))
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name        string
		yamlContent string
		errContains string
	}{
		{
			name:        "bad transport",
			yamlContent: "transport: serial\n",
			errContains: "transport serial is invalid",
		},
		{
			name:        "bad switch transport",
			yamlContent: "switches:\n  - target: 10.0.0.1\n    transport: rlogin\n",
			errContains: "transport rlogin is invalid",
		},
		{
			name:        "hostname target",
			yamlContent: "switches:\n  - target: core-sw\n",
			errContains: "not a valid IPv4 address",
		},
		{
			name:        "octet out of range",
			yamlContent: "switches:\n  - target: 10.0.0.256\n",
			errContains: "not a valid IPv4 address",
		},
		{
			name:        "missing target",
			yamlContent: "switches:\n  - username: admin\n",
			errContains: "target is required",
		},
		{
			name:        "duplicate target",
			yamlContent: "switches:\n  - target: 10.0.0.1\n  - target: 10.0.0.1\n",
			errContains: "defined more than once",
		},
		{
			name:        "port out of range",
			yamlContent: "port: 70000\n",
			errContains: "port 70000 is invalid",
		},
		{
			name:        "bad tftp server",
			yamlContent: "tftp_server: tftp.local\n",
			errContains: "tftp_server",
		},
		{
			name:        "negative timeout",
			yamlContent: "timeouts:\n  command: -1s\n",
			errContains: "timeouts.command must be positive",
		},
		{
			name:        "unparsable duration",
			yamlContent: "timeouts:\n  settle: soon\n",
			errContains: "failed to parse YAML",
		},
		{
			name:        "reserved vlan range",
			yamlContent: "reserved_vlans: [0]\n",
			errContains: "reserved_vlans[0]",
		},
		{
			name:        "name cap",
			yamlContent: "vlan_name_max: 64\n",
			errContains: "vlan_name_max 64 is invalid",
		},
		{
			name:        "name cap above the IOS limit",
			yamlContent: "vlan_name_max: 21\n",
			errContains: "must be between 1 and 20",
		},
		{
			name:        "log format",
			yamlContent: "log:\n  format: xml\n",
			errContains: "log format xml is invalid",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yamlContent))
			if err == nil {
				t.Fatalf("Parse() expected error containing %q", tt.errContains)
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("Parse() error = %v, want it to contain %q", err, tt.errContains)
			}
		})
	}
}

func TestLoad_ReservedVlansExtendLegacySet(t *testing.T) {
	cfg, err := Parse([]byte("reserved_vlans: [1003, 99]\nvlan_name_max: 12\n"))
	if err != nil {
		t.Fatalf("Parse() returned error: %v", err)
	}
	expected := []int{99, 1002, 1003, 1004, 1005}
	if !slices.Equal(cfg.ReservedVlans, expected) {
		t.Errorf("ReservedVlans = %v, want %v", cfg.ReservedVlans, expected)
	}
	if cfg.VlanNameMax != 12 {
		t.Errorf("VlanNameMax = %d, want 12", cfg.VlanNameMax)
	}

	cfg, err = Parse([]byte("reserved_vlans: []\n"))
	if err != nil {
		t.Fatalf("Parse() returned error: %v", err)
	}
	if !slices.Equal(cfg.ReservedVlans, legacyVlans) {
		t.Errorf("an empty list must keep the legacy VLANs, got %v", cfg.ReservedVlans)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want os.ErrNotExist", err)
	}
}

func TestSwitch(t *testing.T) {
	cfg, err := Parse([]byte(`
username: admin
password: secret
transport: ssh
switches:
  - target: 10.0.0.1
    password: other
`))
	if err != nil {
		t.Fatalf("Parse() returned error: %v", err)
	}

	sw, found := cfg.Switch(" 10.0.0.1 ")
	if !found || sw.Password != "other" {
		t.Errorf("Switch(10.0.0.1) = %+v, %v", sw, found)
	}

	sw, found = cfg.Switch("10.0.0.9")
	if found {
		t.Errorf("Switch(10.0.0.9) should not be in the inventory")
	}
	if sw.Target != "10.0.0.9" || sw.Username != "admin" || sw.Transport != "ssh" {
		t.Errorf("Switch(10.0.0.9) did not get the globals: %+v", sw)
	}
}

func TestSwitchConfigParams(t *testing.T) {
	sw := SwitchConfig{Target: "10.0.0.1", Transport: "ssh", Username: "admin", Password: "pw", EnablePassword: "en"}
	params, err := sw.Params()
	if err != nil {
		t.Fatalf("Params() error = %v", err)
	}
	expected := entities.ConnectionParameters{
		Host:         "10.0.0.1",
		Username:     "admin",
		Password:     "pw",
		EnableSecret: "en",
		Protocol:     entities.WireEncrypted,
	}
	if params != expected {
		t.Errorf("Params() = %+v, want %+v", params, expected)
	}
	if params.Address() != "10.0.0.1:22" {
		t.Errorf("Address() = %s", params.Address())
	}

	if _, err := (SwitchConfig{Target: "switch.local"}).Params(); err == nil {
		t.Error("Params() accepted a hostname target")
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("HOME", dir)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	if _, err := Discover(); !errors.Is(err, ErrNotFound) && err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	userPath := filepath.Join(dir, "vlanctl", FileName)
	if err := os.MkdirAll(filepath.Dir(userPath), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(userPath, []byte("username: admin\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path, err := Discover()
	if err != nil || path != userPath {
		t.Errorf("Discover() = %q, %v; want %q", path, err, userPath)
	}

	if err := os.WriteFile(FileName, []byte("username: local\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	path, err = Discover()
	if err != nil || path != filepath.Join(".", FileName) {
		t.Errorf("Discover() = %q, %v; want the working directory first", path, err)
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Transport != "telnet" || cfg.Platform != "ios" || cfg.Timeouts.Command != DefaultCommandTimeout {
		t.Errorf("Default() = %+v", cfg)
	}
}

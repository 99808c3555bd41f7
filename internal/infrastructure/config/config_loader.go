package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
)

const FileName = "vlanctl.yaml"

// Default bounds, used when the file leaves a timeout unset
const (
	DefaultCommandTimeout = 10 * time.Second
	DefaultMaxWait        = 60 * time.Second
	DefaultLoginTimeout   = 20 * time.Second
	DefaultReadPoll       = 200 * time.Millisecond
	DefaultSettle         = 500 * time.Millisecond
	DefaultDialogueRounds = 120
	DefaultConfigDump     = 30 * time.Second
	DefaultVlanNameMax    = 20
)

// legacyVlans are the FDDI and Token Ring VLANs that are always reserved
var legacyVlans = []int{1002, 1003, 1004, 1005}

// ErrNotFound is returned by Discover when no configuration file exists
var ErrNotFound = errors.New("no configuration file found")

// Timeouts bound the device dialogue. Durations use Go syntax, e.g. "10s".
type Timeouts struct {
	Command        time.Duration `yaml:"command"`
	MaxWait        time.Duration `yaml:"max_wait"`
	Login          time.Duration `yaml:"login"`
	ReadPoll       time.Duration `yaml:"read_poll"`
	Settle         time.Duration `yaml:"settle"`
	DialogueRounds int           `yaml:"dialogue_rounds"`
	ConfigDump     time.Duration `yaml:"config_dump"`
}

// SSHConfig tunes the encrypted transport
type SSHConfig struct {
	KnownHosts       string `yaml:"known_hosts"`
	LegacyAlgorithms bool   `yaml:"legacy_algorithms"`
}

// LogConfig selects logger level and format
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SwitchConfig defines the configuration for a single switch.
// Unset fields are inherited from the globals.
type SwitchConfig struct {
	Target         string `yaml:"target"`
	Platform       string `yaml:"platform"`
	Transport      string `yaml:"transport"`
	Port           int    `yaml:"port"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	EnablePassword string `yaml:"enable_password"`
	TFTPServer     string `yaml:"tftp_server"`
}

// Config defines the global configuration
type Config struct {
	Platform       string         `yaml:"platform"`
	Transport      string         `yaml:"transport"`
	Port           int            `yaml:"port"`
	Username       string         `yaml:"username"`
	Password       string         `yaml:"password"`
	EnablePassword string         `yaml:"enable_password"`
	TFTPServer     string         `yaml:"tftp_server"`
	ReservedVlans  []int          `yaml:"reserved_vlans"`
	VlanNameMax    int            `yaml:"vlan_name_max"`
	Timeouts       Timeouts       `yaml:"timeouts"`
	SSH            SSHConfig      `yaml:"ssh"`
	Log            LogConfig      `yaml:"log"`
	Switches       []SwitchConfig `yaml:"switches"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	cfg := &Config{}
	if err := cfg.normalize(); err != nil {
		// defaults are valid by construction
		panic(err)
	}
	return cfg
}

// SearchPaths lists where Discover looks, in order
func SearchPaths() []string {
	paths := []string{filepath.Join(".", FileName)}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "vlanctl", FileName))
	}
	return append(paths, filepath.Join("/etc", "vlanctl", FileName))
}

// Discover returns the first existing configuration file
func Discover() (string, error) {
	for _, path := range SearchPaths() {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNotFound, strings.Join(SearchPaths(), ", "))
}

// Load loads and validates configuration from a YAML file
func Load(yamlFile string) (*Config, error) {
	data, err := os.ReadFile(yamlFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read YAML file %s: %w", yamlFile, err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML document
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() error {
	c.Platform = strings.ToLower(strings.TrimSpace(c.Platform))
	if c.Platform == "" {
		c.Platform = "ios"
	}

	transport, err := validateTransport(c.Transport)
	if err != nil {
		return err
	}
	c.Transport = transport

	if err := validatePort(c.Port); err != nil {
		return fmt.Errorf("global %w", err)
	}

	c.TFTPServer = strings.TrimSpace(c.TFTPServer)
	if c.TFTPServer != "" {
		if _, err := entities.ValidateServerAddress(c.TFTPServer); err != nil {
			return fmt.Errorf("global tftp_server: %w", err)
		}
	}

	// reserved_vlans extends the legacy set, it never replaces it
	for i, id := range c.ReservedVlans {
		if id < 1 || id > 4094 {
			return fmt.Errorf("invalid VLAN number in reserved_vlans[%d]: %d must be between 1 and 4094", i, id)
		}
	}
	reserved := append(slices.Clone(legacyVlans), c.ReservedVlans...)
	slices.Sort(reserved)
	c.ReservedVlans = slices.Compact(reserved)

	if c.VlanNameMax == 0 {
		c.VlanNameMax = DefaultVlanNameMax
	}
	if c.VlanNameMax < 1 || c.VlanNameMax > DefaultVlanNameMax {
		return fmt.Errorf("vlan_name_max %d is invalid, must be between 1 and %d", c.VlanNameMax, DefaultVlanNameMax)
	}

	if err := c.Timeouts.normalize(); err != nil {
		return err
	}

	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log format %s is invalid, must be 'text' or 'json'", c.Log.Format)
	}

	seen := make(map[string]bool, len(c.Switches))
	for i := range c.Switches {
		sw, err := c.inherit(c.Switches[i])
		if err != nil {
			return fmt.Errorf("switch %d: %w", i, err)
		}
		if seen[sw.Target] {
			return fmt.Errorf("switch %s is defined more than once", sw.Target)
		}
		seen[sw.Target] = true
		c.Switches[i] = sw
	}
	return nil
}

func (t *Timeouts) normalize() error {
	fields := []struct {
		name  string
		value *time.Duration
		def   time.Duration
	}{
		{"command", &t.Command, DefaultCommandTimeout},
		{"max_wait", &t.MaxWait, DefaultMaxWait},
		{"login", &t.Login, DefaultLoginTimeout},
		{"read_poll", &t.ReadPoll, DefaultReadPoll},
		{"settle", &t.Settle, DefaultSettle},
		{"config_dump", &t.ConfigDump, DefaultConfigDump},
	}
	for _, f := range fields {
		if *f.value == 0 {
			*f.value = f.def
		}
		if *f.value < 0 {
			return fmt.Errorf("timeouts.%s must be positive, got %s", f.name, *f.value)
		}
	}
	if t.DialogueRounds == 0 {
		t.DialogueRounds = DefaultDialogueRounds
	}
	if t.DialogueRounds < 0 {
		return fmt.Errorf("timeouts.dialogue_rounds must be positive, got %d", t.DialogueRounds)
	}
	return nil
}

// inherit fills unset switch fields from the globals and validates the result
func (c *Config) inherit(sw SwitchConfig) (SwitchConfig, error) {
	sw.Target = strings.TrimSpace(sw.Target)
	if sw.Target == "" {
		return sw, fmt.Errorf("target is required")
	}
	if err := validateTarget(sw.Target); err != nil {
		return sw, err
	}

	sw.Platform = strings.ToLower(strings.TrimSpace(sw.Platform))
	if sw.Platform == "" {
		sw.Platform = c.Platform
	}

	if strings.TrimSpace(sw.Transport) == "" {
		sw.Transport = c.Transport
	}
	transport, err := validateTransport(sw.Transport)
	if err != nil {
		return sw, fmt.Errorf("switch %s: %w", sw.Target, err)
	}
	sw.Transport = transport

	if sw.Port == 0 {
		sw.Port = c.Port
	}
	if err := validatePort(sw.Port); err != nil {
		return sw, fmt.Errorf("switch %s: %w", sw.Target, err)
	}

	if sw.Username == "" {
		sw.Username = c.Username
	}
	if sw.Password == "" {
		sw.Password = c.Password
	}
	if sw.EnablePassword == "" {
		sw.EnablePassword = c.EnablePassword
	}

	sw.TFTPServer = strings.TrimSpace(sw.TFTPServer)
	if sw.TFTPServer == "" {
		sw.TFTPServer = c.TFTPServer
	} else if _, err := entities.ValidateServerAddress(sw.TFTPServer); err != nil {
		return sw, fmt.Errorf("switch %s tftp_server: %w", sw.Target, err)
	}
	return sw, nil
}

// Switch returns the inventory entry for target. A target missing from the
// inventory gets the globals.
func (c *Config) Switch(target string) (SwitchConfig, bool) {
	target = strings.TrimSpace(target)
	for _, sw := range c.Switches {
		if sw.Target == target {
			return sw, true
		}
	}
	return SwitchConfig{
		Target:         target,
		Platform:       c.Platform,
		Transport:      c.Transport,
		Port:           c.Port,
		Username:       c.Username,
		Password:       c.Password,
		EnablePassword: c.EnablePassword,
		TFTPServer:     c.TFTPServer,
	}, false
}

// Params converts the entry into connection parameters
func (sw SwitchConfig) Params() (entities.ConnectionParameters, error) {
	protocol, err := entities.ParseWireProtocol(sw.Transport)
	if err != nil {
		return entities.ConnectionParameters{}, err
	}
	params := entities.ConnectionParameters{
		Host:         sw.Target,
		Port:         sw.Port,
		Username:     sw.Username,
		Password:     sw.Password,
		EnableSecret: sw.EnablePassword,
		Protocol:     protocol,
	}
	return params, params.Validate()
}

func validateTransport(transport string) (string, error) {
	protocol, err := entities.ParseWireProtocol(transport)
	if err != nil {
		return "", fmt.Errorf("transport %s is invalid, must be 'telnet' or 'ssh'", transport)
	}
	return string(protocol), nil
}

func validatePort(port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("port %d is invalid, must be between 1 and 65535", port)
	}
	return nil
}

func validateTarget(target string) error {
	ip := net.ParseIP(target)
	if ip == nil || ip.To4() == nil || strings.Contains(target, ":") {
		return fmt.Errorf("target %s is not a valid IPv4 address", target)
	}
	return nil
}

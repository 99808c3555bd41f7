package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
	"github.com/carlosrabelo/vlanctl/internal/domain/ports"
	"github.com/carlosrabelo/vlanctl/internal/infrastructure/transport"
	"github.com/carlosrabelo/vlanctl/internal/testutil/fakeswitch"
)

const testConfig = `
username: admin
password: cisco
tftp_server: 10.0.0.5
timeouts:
  command: 100ms
  max_wait: 2s
  read_poll: 5ms
  settle: 10ms
  dialogue_rounds: 50
  config_dump: 500ms
log:
  level: error
switches:
  - target: 10.0.0.1
    enable_password: enable
`

type cliHarness struct {
	opener   *fakeswitch.Opener
	stdout   bytes.Buffer
	stderr   bytes.Buffer
	config   string
	prompted []string
}

func newHarness(t *testing.T, opts fakeswitch.Options) *cliHarness {
	t.Helper()
	h := &cliHarness{opener: &fakeswitch.Opener{Options: opts}}
	h.config = filepath.Join(t.TempDir(), "vlanctl.yaml")
	require.NoError(t, os.WriteFile(h.config, []byte(testConfig), 0o600))
	return h
}

func (h *cliHarness) run(args ...string) error {
	env := &environment{
		stdin:  strings.NewReader(""),
		stdout: &h.stdout,
		stderr: &h.stderr,
		newOpener: func(transport.Options, *logrus.Entry) ports.ChannelOpener {
			return h.opener
		},
		readPassword: func(prompt string) (string, error) {
			h.prompted = append(h.prompted, prompt)
			return "typed", nil
		},
		clock: func() time.Time { return time.Date(2025, time.November, 29, 22, 18, 0, 0, time.Local) },
	}
	cmd := newRootCmd(env)
	cmd.SetArgs(append(args, "--config", h.config))
	return cmd.Execute()
}

func TestFetchCommand(t *testing.T) {
	h := newHarness(t, fakeswitch.Options{
		EnableSecret: "enable",
		Vlans:        []entities.VlanRecord{{ID: "10", Name: "USERS"}},
	})
	require.NoError(t, h.run("fetch", "--target", "10.0.0.1"))

	out := h.stdout.String()
	assert.Contains(t, out, "=== show vlan brief ===")
	assert.Regexp(t, `10\s+USERS`, out)
	assert.Contains(t, out, "Hostname: SW1")
	assert.Contains(t, out, "OK [")
	assert.Empty(t, h.prompted, "password comes from the configuration")
	assert.True(t, h.opener.Last().Privileged(), "enable_password from the inventory entry")
}

func TestFetchCommand_JSON(t *testing.T) {
	h := newHarness(t, fakeswitch.Options{})
	require.NoError(t, h.run("fetch", "--target", "10.0.0.1", "--json"))

	var result entities.OperationResult
	require.NoError(t, json.Unmarshal(h.stdout.Bytes(), &result))
	assert.True(t, result.Success)
	assert.Equal(t, entities.OpFetchAll, result.Operation)
	require.NotNil(t, result.State)
	assert.Equal(t, "SW1", result.State.Hostname)
}

func TestFetchCommand_Failure(t *testing.T) {
	h := newHarness(t, fakeswitch.Options{})
	h.opener.Err = entities.Errorf(entities.ErrorKindAuth, "login", "rejected")

	err := h.run("fetch", "--target", "10.0.0.1", "--json")
	assert.ErrorIs(t, err, errOperationFailed)
	assert.ErrorIs(t, err, entities.ErrAuth)
	assert.Contains(t, h.stdout.String(), `"error_kind": "AuthError"`)
}

func TestApplyCommand(t *testing.T) {
	h := newHarness(t, fakeswitch.Options{EnableSecret: "enable"})
	require.NoError(t, h.run("apply", "--target", "10.0.0.1", "--vlan", "10=USERS", "--vlan", "20", "--hostname", "SW9"))

	sw := h.opener.Last()
	assert.Equal(t, "SW9", sw.Hostname())
	assert.Contains(t, sw.Vlans(), entities.VlanRecord{ID: "20", Name: "VLAN_20"})
	assert.Contains(t, h.stdout.String(), "Applied 5 configuration lines")
}

func TestApplyCommand_NothingToDo(t *testing.T) {
	h := newHarness(t, fakeswitch.Options{})
	err := h.run("apply", "--target", "10.0.0.1", "--vlan", "1003=fddi")

	assert.ErrorIs(t, err, errOperationFailed)
	assert.Contains(t, h.stdout.String(), "NoChangesRequested")
	assert.Zero(t, h.opener.Opens())
}

func TestSaveCommand(t *testing.T) {
	h := newHarness(t, fakeswitch.Options{EnableSecret: "enable", WriteMemoryUnsupported: true})
	require.NoError(t, h.run("save", "--target", "10.0.0.1"))

	assert.Equal(t, 1, h.opener.Last().Saves())
	assert.Contains(t, h.stdout.String(), "copy running-config startup-config")
}

func TestDownloadCommand(t *testing.T) {
	h := newHarness(t, fakeswitch.Options{EnableSecret: "enable"})
	dir := t.TempDir()
	require.NoError(t, h.run("download", "--target", "10.0.0.1", "--output", dir))

	data, err := os.ReadFile(filepath.Join(dir, "2025-11-29-2218-SW1.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "hostname SW1")
	assert.Contains(t, h.stdout.String(), "File: 2025-11-29-2218-SW1.txt")
	assert.NotContains(t, h.stdout.String(), "Current configuration", "the dump goes to the file only")
}

func TestTFTPUploadCommand(t *testing.T) {
	h := newHarness(t, fakeswitch.Options{EnableSecret: "enable"})
	require.NoError(t, h.run("tftp-upload", "--target", "10.0.0.1", "--hostname", "EDGE"))

	assert.Equal(t, []fakeswitch.Transfer{{Address: "10.0.0.5", Filename: "2025-11-29-2218-EDGE.txt"}}, h.opener.Last().Transfers())
}

func TestPasswordPrompt(t *testing.T) {
	h := newHarness(t, fakeswitch.Options{})
	require.NoError(t, os.WriteFile(h.config, []byte("username: admin\n"), 0o600))
	require.NoError(t, h.run("save", "--target", "10.0.0.9", "--log-level", "error"))

	assert.Equal(t, []string{"Password for admin@10.0.0.9: "}, h.prompted)
}

func TestCommandErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "missing target", args: []string{"fetch"}, wantErr: "required flag --target not set"},
		{name: "hostname target", args: []string{"fetch", "--target", "core-sw"}, wantErr: "not a valid IPv4 address"},
		{name: "bad transport", args: []string{"fetch", "--target", "10.0.0.1", "--transport", "serial"}, wantErr: "unsupported wire protocol"},
		{name: "bad platform", args: []string{"fetch", "--target", "10.0.0.1", "--platform", "junos"}, wantErr: "unknown switch platform"},
		{name: "bad vlan flag", args: []string{"apply", "--target", "10.0.0.1", "--vlan", "users=10"}, wantErr: "invalid --vlan"},
		{name: "bad log level", args: []string{"fetch", "--target", "10.0.0.1", "--log-level", "loud"}, wantErr: "invalid log settings"},
		{name: "missing output dir", args: []string{"download", "--target", "10.0.0.1", "--output", "/nonexistent/dir"}, wantErr: "output directory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, fakeswitch.Options{})
			err := h.run(tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Zero(t, h.opener.Opens())
		})
	}
}

func TestTFTPUploadCommand_NoServer(t *testing.T) {
	h := newHarness(t, fakeswitch.Options{})
	require.NoError(t, os.WriteFile(h.config, []byte("username: admin\npassword: x\n"), 0o600))

	err := h.run("tftp-upload", "--target", "10.0.0.1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag --server")
}

func TestTFTPUploadCommand_InvalidServer(t *testing.T) {
	h := newHarness(t, fakeswitch.Options{})
	err := h.run("tftp-upload", "--target", "10.0.0.1", "--server", "tftp.local")

	assert.ErrorIs(t, err, errOperationFailed)
	assert.Contains(t, h.stdout.String(), "InvalidAddress")
	assert.Zero(t, h.opener.Opens())
}

func TestParseVlanFlags(t *testing.T) {
	vlans, err := parseVlanFlags([]string{"10=USERS", " 20 = VOICE ", "30"})
	require.NoError(t, err)
	assert.Equal(t, []entities.VlanRecord{
		{ID: "10", Name: "USERS"},
		{ID: "20", Name: "VOICE"},
		{ID: "30", Name: ""},
	}, vlans)

	for _, bad := range []string{"", "0=x", "4095=x", "ten=x"} {
		_, err := parseVlanFlags([]string{bad})
		assert.Error(t, err, bad)
	}
}

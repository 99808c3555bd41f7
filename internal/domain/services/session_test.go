package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
	"github.com/carlosrabelo/vlanctl/internal/testutil/fakeswitch"
)

var testSessionOptions = SessionOptions{
	CommandTimeout: 200 * time.Millisecond,
	MaxWait:        2 * time.Second,
	ReadPoll:       10 * time.Millisecond,
}

func openSession(t *testing.T, opts fakeswitch.Options) (*Session, *fakeswitch.Switch) {
	t.Helper()
	sw := fakeswitch.New(opts)
	s := NewSession(sw, testSessionOptions, nil)
	require.NoError(t, s.Open(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s, sw
}

func TestSession_OpenDisablesPaging(t *testing.T) {
	s, sw := openSession(t, fakeswitch.Options{})

	assert.Equal(t, "SW1>", s.Prompt())
	assert.False(t, s.Privileged())
	assert.Equal(t, []string{TerminalLengthCmd}, sw.History())
}

func TestSession_OpenSilentDevice(t *testing.T) {
	sw := fakeswitch.New(fakeswitch.Options{Silent: true})
	s := NewSession(sw, testSessionOptions, nil)

	err := s.Open(context.Background())
	require.Error(t, err)
	assert.Equal(t, entities.ErrorKindTimeout, entities.KindOf(err))
	assert.Equal(t, []string{""}, sw.History(), "an idle line is nudged once")
}

func TestSession_RunCommand(t *testing.T) {
	s, _ := openSession(t, fakeswitch.Options{
		Vlans: []entities.VlanRecord{{ID: "10", Name: "USERS"}, {ID: "20", Name: "VOICE"}},
	})

	out, err := s.RunCommand(context.Background(), "show vlan brief", 0)
	require.NoError(t, err)
	assert.Contains(t, out, "10   USERS")
	assert.Contains(t, out, "20   VOICE")
	assert.NotContains(t, out, "show vlan brief", "echo must be stripped")
	assert.NotContains(t, out, "SW1>", "prompt must be stripped")
	assert.NotContains(t, out, "\r")
}

func TestSession_RunCommandAnswersPager(t *testing.T) {
	s, _ := openSession(t, fakeswitch.Options{
		PageLines:            2,
		IgnoreTerminalLength: true,
		Vlans:                []entities.VlanRecord{{ID: "10", Name: "USERS"}, {ID: "20", Name: "VOICE"}, {ID: "30", Name: "MGMT"}},
	})

	out, err := s.RunCommand(context.Background(), "show vlan brief", 0)
	require.NoError(t, err)
	for _, name := range []string{"default", "USERS", "VOICE", "MGMT", "trnet-default"} {
		assert.Contains(t, out, name)
	}
	assert.NotContains(t, out, "More")
	assert.Equal(t, "SW1>", s.Prompt())
}

func TestSession_RunCommandPromptSplitAcrossReads(t *testing.T) {
	s, _ := openSession(t, fakeswitch.Options{ChunkSize: 3, StartPrivileged: true})

	out, err := s.RunCommand(context.Background(), "show running-config | include ^hostname", 0)
	require.NoError(t, err)
	assert.Equal(t, "hostname SW1", out)
	assert.Equal(t, "SW1#", s.Prompt())
}

func TestSession_RunCommandTimeoutKeepsPartialOutput(t *testing.T) {
	s, _ := openSession(t, fakeswitch.Options{NoPrompt: true})
	timeout := 150 * time.Millisecond

	start := time.Now()
	out, err := s.RunCommand(context.Background(), "show vlan brief", timeout)
	elapsed := time.Since(start)

	require.Error(t, err)
	assert.Equal(t, entities.ErrorKindTimeout, entities.KindOf(err))
	assert.Contains(t, out, "VLAN Name", "partial output must be surfaced")
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.Less(t, elapsed, timeout+500*time.Millisecond)
}

func TestSession_RunCommandCancelled(t *testing.T) {
	s, _ := openSession(t, fakeswitch.Options{NoPrompt: true})
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err := s.RunCommand(ctx, "show vlan brief", 5*time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSession_EscalatePrivilege(t *testing.T) {
	tests := []struct {
		name       string
		opts       fakeswitch.Options
		secret     string
		expected   bool
		wantPrompt string
	}{
		{name: "no enable password", opts: fakeswitch.Options{}, expected: true, wantPrompt: "SW1#"},
		{name: "correct secret", opts: fakeswitch.Options{EnableSecret: "s3cret"}, secret: "s3cret", expected: true, wantPrompt: "SW1#"},
		{name: "wrong secret", opts: fakeswitch.Options{EnableSecret: "s3cret"}, secret: "nope", expected: false, wantPrompt: "SW1>"},
		{name: "enable unsupported", opts: fakeswitch.Options{NoEnable: true}, expected: false, wantPrompt: "SW1>"},
		{name: "already privileged", opts: fakeswitch.Options{StartPrivileged: true}, expected: true, wantPrompt: "SW1#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, sw := openSession(t, tt.opts)

			got := s.EscalatePrivilege(context.Background(), tt.secret)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.wantPrompt, s.Prompt())
			assert.Equal(t, tt.expected, sw.Privileged())
		})
	}
}

func TestSession_EscalatePrivilegeStopsAfterThreeTries(t *testing.T) {
	s, sw := openSession(t, fakeswitch.Options{EnableSecret: "s3cret"})

	assert.False(t, s.EscalatePrivilege(context.Background(), "nope"))

	attempts := 0
	for _, line := range sw.History() {
		if line == "nope" {
			attempts++
		}
	}
	assert.Equal(t, 3, attempts)

	// the session is still usable at the user level
	out, err := s.RunCommand(context.Background(), "show vlan brief", 0)
	require.NoError(t, err)
	assert.Contains(t, out, "default")
}

func TestSession_EscalatePrivilegeSilentIsNotFatal(t *testing.T) {
	s, _ := openSession(t, fakeswitch.Options{NoPrompt: true})
	assert.False(t, s.EscalatePrivilege(context.Background(), "x"))
}

func TestSession_RunConfigSet(t *testing.T) {
	s, sw := openSession(t, fakeswitch.Options{StartPrivileged: true})

	transcript, err := s.RunConfigSet(context.Background(), []string{"hostname SW9", "vlan 10", "name USERS"})
	require.NoError(t, err)

	assert.Equal(t, "SW9", sw.Hostname())
	assert.Contains(t, sw.Vlans(), entities.VlanRecord{ID: "10", Name: "USERS"})
	assert.Equal(t, "SW9#", s.Prompt())
	assert.Equal(t, []string{TerminalLengthCmd, ConfigureCmd, "hostname SW9", "vlan 10", "name USERS", EndCmd}, sw.History())

	lines := strings.Split(transcript, "\n")
	assert.Equal(t, "SW1#configure terminal", lines[0])
	assert.Contains(t, transcript, "SW9(config)#vlan 10")
	assert.Contains(t, transcript, "SW9(config-vlan)#name USERS")
	assert.True(t, strings.HasSuffix(transcript, "SW9(config-vlan)#end"))
}

func TestSession_RunConfigSetLeavesConfigModeAfterFailure(t *testing.T) {
	s, sw := openSession(t, fakeswitch.Options{StartPrivileged: true})

	transcript, err := s.RunConfigSet(context.Background(), []string{"vlan abc", "vlan 20"})
	require.NoError(t, err, "rejected lines are reported in the transcript only")
	assert.Contains(t, transcript, "% Invalid input")
	assert.Contains(t, sw.Vlans(), entities.VlanRecord{ID: "20", Name: "VLAN0020"})

	history := sw.History()
	assert.Equal(t, EndCmd, history[len(history)-1])
	assert.Equal(t, "SW1#", s.Prompt())
}

func TestSession_RunConfigSetWithoutPrivilege(t *testing.T) {
	s, sw := openSession(t, fakeswitch.Options{})

	transcript, err := s.RunConfigSet(context.Background(), []string{"hostname SW9"})
	require.Error(t, err)
	assert.Equal(t, entities.ErrorKindUnexpected, entities.KindOf(err))
	assert.Contains(t, transcript, "SW1>configure terminal")
	assert.Contains(t, transcript, "% Invalid input")
	assert.Equal(t, []string{TerminalLengthCmd, ConfigureCmd}, sw.History())
	assert.Equal(t, "SW1", sw.Hostname())
}

func TestCommandOutput(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		cmd      string
		expected string
	}{
		{name: "echo and prompt", text: "show clock\n*10:00:00.000 UTC Mon Mar 1 1993\nSW1#", cmd: "show clock", expected: "*10:00:00.000 UTC Mon Mar 1 1993"},
		{name: "echo after prompt", text: "SW1#show clock\nok\nSW1#", cmd: "show clock", expected: "ok"},
		{name: "no output", text: "end\nSW1#", cmd: "end", expected: ""},
		{name: "no echo", text: "\nline one\nline two\nSW1>", cmd: "show x", expected: "line one\nline two"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := commandOutput(tt.text, tt.cmd); got != tt.expected {
				t.Errorf("commandOutput() = %q, want %q", got, tt.expected)
			}
		})
	}
}

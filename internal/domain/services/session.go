package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
	"github.com/carlosrabelo/vlanctl/internal/domain/ports"
)

const (
	DefaultCommandTimeout = 10 * time.Second
	DefaultMaxWait        = 60 * time.Second
	DefaultReadPoll       = 200 * time.Millisecond
	DefaultEscalateTries  = 3

	TerminalLengthCmd = "terminal length 0"
	EnableCmd         = "enable"
	ConfigureCmd      = "configure terminal"
	EndCmd            = "end"
)

var passwordPromptRegex = regexp.MustCompile(`(?i)password:\s*$`)

// SessionOptions bound every blocking read of a session
type SessionOptions struct {
	CommandTimeout time.Duration // idle time without new bytes
	MaxWait        time.Duration // hard bound on a single command
	ReadPoll       time.Duration
	EscalateTries  int
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.CommandTimeout <= 0 {
		o.CommandTimeout = DefaultCommandTimeout
	}
	if o.MaxWait <= 0 {
		o.MaxWait = DefaultMaxWait
	}
	if o.ReadPoll <= 0 {
		o.ReadPoll = DefaultReadPoll
	}
	if o.EscalateTries <= 0 {
		o.EscalateTries = DefaultEscalateTries
	}
	return o
}

// Session drives the CLI of one switch over an authenticated channel.
// It owns the channel and releases it on Close.
type Session struct {
	ch     ports.Channel
	opts   SessionOptions
	log    *logrus.Entry
	prompt string
}

// NewSession wraps an open channel
func NewSession(ch ports.Channel, opts SessionOptions, log *logrus.Entry) *Session {
	if log == nil {
		log = discardLog()
	}
	return &Session{ch: ch, opts: opts.withDefaults(), log: log}
}

// Prompt returns the last CLI prompt seen
func (s *Session) Prompt() string {
	return s.prompt
}

// Privileged reports whether the session sits at the privileged level
func (s *Session) Privileged() bool {
	return entities.IsPrivilegedPrompt(s.prompt)
}

// Open waits for the first CLI prompt and turns paging off.
// Telnet logins consume the prompt, so an idle line is nudged with a newline.
func (s *Session) Open(ctx context.Context) error {
	_, err := s.readUntil(ctx, s.opts.ReadPoll*5, s.opts.CommandTimeout, s.atPrompt)
	if err != nil {
		if entities.KindOf(err) != entities.ErrorKindTimeout {
			return err
		}
		if err := s.send(""); err != nil {
			return err
		}
		if _, err := s.readUntil(ctx, s.opts.CommandTimeout, s.opts.MaxWait, s.atPrompt); err != nil {
			return fmt.Errorf("waiting for CLI prompt: %w", err)
		}
	}
	s.log.Debugf("CLI prompt %s", s.prompt)

	if _, err := s.RunCommand(ctx, TerminalLengthCmd, s.opts.CommandTimeout); err != nil {
		if ctx.Err() != nil {
			return err
		}
		s.log.Warnf("Could not disable paging: %v", err)
	}
	return nil
}

// EscalatePrivilege tries to reach the privileged level with secret.
// Failure is never fatal: the result only reports the level reached.
func (s *Session) EscalatePrivilege(ctx context.Context, secret string) bool {
	if s.Privileged() {
		return true
	}
	if err := s.send(EnableCmd); err != nil {
		s.log.Warnf("Privilege escalation failed: %v", err)
		return false
	}

	waitingForPassword := func(text string) bool {
		return s.atPrompt(text) || passwordPromptRegex.MatchString(text)
	}
	answered := 0
	for {
		text, err := s.readUntil(ctx, s.opts.CommandTimeout, s.opts.MaxWait, waitingForPassword)
		if err != nil {
			s.log.Warnf("Privilege escalation failed, staying at %s: %v", s.prompt, err)
			return false
		}
		if s.atPrompt(text) {
			break
		}
		if answered >= s.opts.EscalateTries {
			s.log.Warnf("Enable password rejected %d times, staying at %s", answered, s.prompt)
			// leave the password prompt so later commands reach the CLI
			if err := s.send(""); err == nil {
				_, _ = s.readUntil(ctx, s.opts.CommandTimeout, s.opts.MaxWait, s.atPrompt)
			}
			return false
		}
		if err := s.write(secret + "\n"); err != nil {
			s.log.Warnf("Privilege escalation failed: %v", err)
			return false
		}
		answered++
		s.log.Debug("Sent ******** for enable password")
	}

	if !s.Privileged() {
		s.log.Warnf("Privilege escalation refused, continuing at %s", s.prompt)
		return false
	}
	s.log.Debugf("Privileged prompt %s", s.prompt)
	return true
}

// RunCommand writes one command line and collects its output until the
// prompt comes back. When the idle timeout or the hard bound expires the
// partial output is returned together with a TimeoutError.
func (s *Session) RunCommand(ctx context.Context, cmd string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = s.opts.CommandTimeout
	}
	hard := s.opts.MaxWait
	if hard < timeout {
		hard = timeout
	}

	s.log.Debugf("Executing: %s", cmd)
	if err := s.send(cmd); err != nil {
		return "", err
	}
	text, err := s.readUntil(ctx, timeout, hard, s.atPrompt)
	if err != nil {
		return text, fmt.Errorf("error executing %s: %w", cmd, err)
	}
	output := commandOutput(text, cmd)
	s.log.Tracef("Switch output for '%s':\n%s", cmd, output)
	return output, nil
}

// RunConfigSet enters configuration mode, issues cmds in order and leaves
// configuration mode again, even after a failed command. Nothing is issued
// when the device refuses configuration mode.
func (s *Session) RunConfigSet(ctx context.Context, cmds []string) (string, error) {
	var transcript strings.Builder
	var runErr error

	for _, cmd := range append([]string{ConfigureCmd}, cmds...) {
		prompt := s.prompt
		out, err := s.RunCommand(ctx, cmd, s.opts.CommandTimeout)
		fmt.Fprintf(&transcript, "%s%s\n", prompt, cmd)
		if out != "" {
			transcript.WriteString(out)
			transcript.WriteString("\n")
		}
		if strings.Contains(out, "% Invalid input") {
			s.log.Warnf("Device rejected '%s'", cmd)
		}
		if err != nil {
			runErr = err
			break
		}
		if cmd == ConfigureCmd && !entities.IsConfigPrompt(s.prompt) {
			return strings.TrimRight(transcript.String(), "\n"),
				entities.Errorf(entities.ErrorKindUnexpected, "configure", "device stayed at %s", s.prompt)
		}
	}

	if ctx.Err() == nil {
		prompt := s.prompt
		if _, err := s.RunCommand(ctx, EndCmd, s.opts.CommandTimeout); err != nil {
			s.log.Warnf("Could not leave configuration mode: %v", err)
		}
		fmt.Fprintf(&transcript, "%s%s\n", prompt, EndCmd)
	}
	return strings.TrimRight(transcript.String(), "\n"), runErr
}

// Close releases the channel
func (s *Session) Close() error {
	return s.ch.Close()
}

func (s *Session) send(line string) error {
	return s.write(line + "\n")
}

func (s *Session) write(data string) error {
	if _, err := s.ch.Write([]byte(data)); err != nil {
		return s.channelError("write", err)
	}
	return nil
}

// atPrompt reports whether text ends at a CLI prompt and remembers it
func (s *Session) atPrompt(text string) bool {
	prompt, ok := entities.MatchPrompt(text)
	if ok {
		s.prompt = prompt
	}
	return ok
}

// readUntil accumulates output until done reports true. idle bounds the
// time without new bytes and hard bounds the whole read. Pager markers are
// answered with a space. The returned text is normalised even on error.
func (s *Session) readUntil(ctx context.Context, idle, hard time.Duration, done func(string) bool) (string, error) {
	var raw strings.Builder
	start := time.Now()
	lastData := start
	pagedAt := 0

	for {
		now := time.Now()
		if now.Sub(lastData) >= idle {
			return cleanOutput(raw.String()), entities.Errorf(entities.ErrorKindTimeout, "read", "no output for %s", idle)
		}
		if now.Sub(start) >= hard {
			return cleanOutput(raw.String()), entities.Errorf(entities.ErrorKindTimeout, "read", "no prompt within %s", hard)
		}

		wait := s.opts.ReadPoll
		if remaining := idle - now.Sub(lastData); remaining < wait {
			wait = remaining
		}
		chunk, err := s.ch.ReadAvailable(ctx, wait)
		if err != nil {
			return cleanOutput(raw.String()), s.channelError("read", err)
		}
		if len(chunk) == 0 {
			continue
		}
		lastData = time.Now()
		raw.Write(chunk)
		s.log.Tracef("Read: %q", chunk)

		buffered := raw.String()
		if entities.HasPager(entities.NormalizeOutput(buffered[pagedAt:])) {
			pagedAt = len(buffered)
			if err := s.write(" "); err != nil {
				return cleanOutput(buffered), err
			}
			continue
		}

		text := cleanOutput(buffered)
		if done(text) {
			return text, nil
		}
	}
}

func (s *Session) channelError(op string, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return entities.NewError(entities.ErrorKindTimeout, op, err)
	case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		return entities.NewError(entities.ErrorKindUnexpected, op, fmt.Errorf("connection closed by device: %w", err))
	default:
		return entities.NewError(entities.KindOf(err), op, err)
	}
}

func discardLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func cleanOutput(raw string) string {
	return entities.RemovePagers(entities.NormalizeOutput(raw))
}

// commandOutput drops the echoed command line and the trailing prompt
func commandOutput(text, cmd string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 {
		if _, ok := entities.MatchPrompt(lines[len(lines)-1]); ok {
			lines = lines[:len(lines)-1]
		}
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	if len(lines) > 0 && cmd != "" && strings.HasSuffix(strings.TrimSpace(lines[0]), cmd) {
		lines = lines[1:]
	}
	return strings.Trim(strings.Join(lines, "\n"), "\n")
}

package transport

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ziutek/telnet"

	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
	"github.com/carlosrabelo/vlanctl/internal/domain/ports"
)

var loginFailureHints = []string{
	"login invalid",
	"login incorrect",
	"authentication failed",
	"access denied",
	"bad passwords",
}

// openTelnet dials the switch, wraps the connection with telnet option
// handling and answers the line login prompts
func (o *Opener) openTelnet(ctx context.Context, params entities.ConnectionParameters, log *logrus.Entry) (ports.Channel, error) {
	dialer := &net.Dialer{Timeout: o.opts.DialTimeout}
	raw, err := dialer.DialContext(ctx, "tcp", params.Address())
	if err != nil {
		return nil, classifyDialError("telnet dial", params.Address(), err)
	}

	conn, err := telnet.NewConn(raw)
	if err != nil {
		raw.Close()
		return nil, entities.NewError(entities.ErrorKindConnect, "telnet dial", err)
	}
	conn.SetUnixWriteMode(true)
	log.Debugf("Connected to %s", params.Address())

	ch := newStreamChannel(conn, conn, conn.Close)
	if err := login(ctx, ch, entities.LoginSequence(params), o.opts.LoginTimeout, o.opts.ReadPoll, log); err != nil {
		ch.Close()
		return nil, err
	}
	return ch, nil
}

// login answers username/password prompts until a CLI prompt shows up.
// A prompt asked a second time means the device refused the credentials.
func login(ctx context.Context, ch ports.Channel, prompts []entities.AuthPrompt, timeout, poll time.Duration, log *logrus.Entry) error {
	var pending strings.Builder
	answered := make([]bool, len(prompts))
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		chunk, err := ch.ReadAvailable(ctx, poll)
		if err != nil {
			if ctx.Err() != nil {
				return entities.NewError(entities.KindOf(ctx.Err()), "telnet login", ctx.Err())
			}
			return entities.NewError(entities.ErrorKindConnect, "telnet login", fmt.Errorf("connection closed during login: %w", err))
		}
		if len(chunk) == 0 {
			continue
		}
		pending.Write(chunk)
		text := entities.NormalizeOutput(pending.String())
		lower := strings.ToLower(text)

		for _, hint := range loginFailureHints {
			if strings.Contains(lower, hint) {
				return entities.Errorf(entities.ErrorKindAuth, "telnet login", "device rejected credentials (%s)", hint)
			}
		}
		if prompt, ok := entities.MatchPrompt(text); ok {
			log.Debugf("Logged in, prompt %s", prompt)
			return nil
		}

		for i, p := range prompts {
			if !containsAny(lower, p.WaitFor) {
				continue
			}
			if answered[i] {
				return entities.Errorf(entities.ErrorKindAuth, "telnet login", "device asked for %s again", strings.TrimSuffix(p.WaitFor[0], ":"))
			}
			if _, err := ch.Write([]byte(p.SendCmd + "\n")); err != nil {
				return entities.NewError(entities.ErrorKindConnect, "telnet login", err)
			}
			answered[i] = true
			if p.Secret {
				log.Debugf("Sent ******** for prompt %s", p.WaitFor[0])
			} else {
				log.Debugf("Sent %s for prompt %s", p.SendCmd, p.WaitFor[0])
			}
			pending.Reset()
			break
		}
	}
	return entities.Errorf(entities.ErrorKindTimeout, "telnet login", "no CLI prompt within %s", timeout)
}

func containsAny(text string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(text, pattern) {
			return true
		}
	}
	return false
}

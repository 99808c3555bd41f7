package transport

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
	"github.com/carlosrabelo/vlanctl/internal/domain/ports"
)

// Older IOS images only offer CBC ciphers and SHA1 key exchanges
var (
	legacyCiphers = []string{
		"aes128-gcm@openssh.com",
		"aes256-gcm@openssh.com",
		"chacha20-poly1305@openssh.com",
		"aes128-ctr",
		"aes192-ctr",
		"aes256-ctr",
		"aes128-cbc",
	}
	legacyKeyExchanges = []string{
		"curve25519-sha256",
		"ecdh-sha2-nistp256",
		"ecdh-sha2-nistp384",
		"ecdh-sha2-nistp521",
		"diffie-hellman-group14-sha256",
		"diffie-hellman-group14-sha1",
		"diffie-hellman-group1-sha1",
	}
)

func (o *Opener) sshConfig(params entities.ConnectionParameters) (*ssh.ClientConfig, error) {
	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if o.opts.KnownHostsFile != "" {
		cb, err := knownhosts.New(o.opts.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts %s: %w", o.opts.KnownHostsFile, err)
		}
		hostKeyCallback = cb
	}

	password := params.Password
	cfg := &ssh.ClientConfig{
		User: params.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(name, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKeyCallback,
		Timeout:         o.opts.DialTimeout,
	}
	if o.opts.LegacyAlgorithms {
		cfg.Config = ssh.Config{
			Ciphers:      legacyCiphers,
			KeyExchanges: legacyKeyExchanges,
		}
	}
	return cfg, nil
}

// openSSH authenticates over SSH and starts an interactive shell on a PTY
func (o *Opener) openSSH(ctx context.Context, params entities.ConnectionParameters, log *logrus.Entry) (ports.Channel, error) {
	addr := params.Address()
	sshConfig, err := o.sshConfig(params)
	if err != nil {
		return nil, entities.NewError(entities.ErrorKindConnect, "ssh dial", err)
	}

	dialer := &net.Dialer{Timeout: o.opts.DialTimeout}
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, classifyDialError("ssh dial", addr, err)
	}

	// Bound the handshake; ssh.NewClientConn has no context of its own.
	_ = rawConn.SetDeadline(time.Now().Add(o.opts.LoginTimeout))
	stop := context.AfterFunc(ctx, func() { rawConn.Close() })
	clientConn, chans, reqs, err := ssh.NewClientConn(rawConn, addr, sshConfig)
	stop()
	if err != nil {
		rawConn.Close()
		return nil, classifySSHError(addr, err)
	}
	_ = rawConn.SetDeadline(time.Time{})

	client := ssh.NewClient(clientConn, chans, reqs)
	session, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, entities.NewError(entities.ErrorKindConnect, "ssh session", fmt.Errorf("failed to create SSH session for %s: %w", addr, err))
	}

	fail := func(step string, err error) (ports.Channel, error) {
		session.Close()
		client.Close()
		return nil, entities.NewError(entities.ErrorKindConnect, "ssh session", fmt.Errorf("failed to %s for %s: %w", step, addr, err))
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 9600,
		ssh.TTY_OP_OSPEED: 9600,
	}
	if err := session.RequestPty("vt100", 40, 250, modes); err != nil {
		return fail("request PTY", err)
	}
	stdin, err := session.StdinPipe()
	if err != nil {
		return fail("get stdin pipe", err)
	}
	stdout, err := session.StdoutPipe()
	if err != nil {
		return fail("get stdout pipe", err)
	}
	if err := session.Shell(); err != nil {
		return fail("start shell", err)
	}
	log.Debugf("Connected to %s via SSH", addr)

	closer := func() error {
		session.Close()
		return client.Close()
	}
	return newStreamChannel(stdout, stdin, closer), nil
}

func classifySSHError(addr string, err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "unable to authenticate"), strings.Contains(msg, "no supported methods remain"):
		return entities.NewError(entities.ErrorKindAuth, "ssh handshake", fmt.Errorf("%s rejected credentials: %w", addr, err))
	case isTimeout(err):
		return entities.NewError(entities.ErrorKindTimeout, "ssh handshake", fmt.Errorf("handshake with %s timed out: %w", addr, err))
	default:
		return entities.NewError(entities.ErrorKindConnect, "ssh handshake", fmt.Errorf("failed to establish SSH client connection to %s: %w", addr, err))
	}
}

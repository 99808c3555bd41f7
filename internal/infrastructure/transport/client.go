package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
	"github.com/carlosrabelo/vlanctl/internal/domain/ports"
	"github.com/carlosrabelo/vlanctl/internal/infrastructure/logging"
)

const (
	DefaultDialTimeout  = 10 * time.Second
	DefaultLoginTimeout = 20 * time.Second
	DefaultReadPoll     = 200 * time.Millisecond
)

// Options tune connection establishment
type Options struct {
	DialTimeout      time.Duration
	LoginTimeout     time.Duration
	ReadPoll         time.Duration
	KnownHostsFile   string // empty disables host key checking
	LegacyAlgorithms bool
}

func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultDialTimeout
	}
	if o.LoginTimeout <= 0 {
		o.LoginTimeout = DefaultLoginTimeout
	}
	if o.ReadPoll <= 0 {
		o.ReadPoll = DefaultReadPoll
	}
	return o
}

// Opener opens authenticated CLI channels. It keeps no connection state:
// every Open is one attempt with one outcome.
type Opener struct {
	opts Options
	log  *logrus.Entry
}

var _ ports.ChannelOpener = (*Opener)(nil)

// NewOpener creates an opener with the given options
func NewOpener(opts Options, log *logrus.Entry) *Opener {
	if log == nil {
		log = logging.Discard()
	}
	return &Opener{opts: opts.withDefaults(), log: log}
}

// Open selects the wire protocol strictly from params.Protocol
func (o *Opener) Open(ctx context.Context, params entities.ConnectionParameters) (ports.Channel, error) {
	protocol, err := entities.ParseWireProtocol(string(params.Protocol))
	if err != nil {
		return nil, entities.NewError(entities.ErrorKindConnect, "open", err)
	}
	params.Protocol = protocol
	log := logging.WithDevice(o.log, params.Address()).WithField("transport", string(protocol))

	switch protocol {
	case entities.WireEncrypted:
		return o.openSSH(ctx, params, log)
	default:
		return o.openTelnet(ctx, params, log)
	}
}

func classifyDialError(op, addr string, err error) error {
	switch {
	case isTimeout(err):
		return entities.NewError(entities.ErrorKindTimeout, op, fmt.Errorf("connecting to %s timed out: %w", addr, err))
	case errors.Is(err, context.Canceled):
		return entities.NewError(entities.ErrorKindUnexpected, op, err)
	default:
		return entities.NewError(entities.ErrorKindConnect, op, fmt.Errorf("failed to connect to %s: %w", addr, err))
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

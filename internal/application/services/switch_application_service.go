package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
	"github.com/carlosrabelo/vlanctl/internal/domain/ports"
	"github.com/carlosrabelo/vlanctl/internal/domain/services"
	"github.com/carlosrabelo/vlanctl/internal/infrastructure/logging"
	"github.com/carlosrabelo/vlanctl/internal/platform"
)

const (
	DefaultConfigDumpTimeout = 30 * time.Second

	// UnsupportedSaveMessage is reported when no save command is accepted
	UnsupportedSaveMessage = "Unable to persist configuration automatically; run 'write memory' manually."
)

// Options tune the session and dialogue bounds of every operation
type Options struct {
	Session           services.SessionOptions
	SettleDelay       time.Duration
	DialogueRounds    int
	ConfigDumpTimeout time.Duration
	Clock             func() time.Time // nil selects time.Now
}

// Request names one operation and its inputs
type Request struct {
	Operation  entities.Operation
	Params     entities.ConnectionParameters
	Desired    entities.DeviceState // apply
	Hostname   string               // download_config, tftp_upload
	TFTPServer string               // tftp_upload
}

// SwitchApplicationService runs the high-level operations. Each call opens
// its own channel and releases it before returning.
type SwitchApplicationService struct {
	opener ports.ChannelOpener
	driver platform.SwitchDriver
	opts   Options
	log    *logrus.Entry
	guard  *deviceGuard
}

var _ ports.SwitchService = (*SwitchApplicationService)(nil)

// NewSwitchApplicationService creates a new instance of the switch application service
func NewSwitchApplicationService(opener ports.ChannelOpener, driver platform.SwitchDriver, opts Options, log *logrus.Entry) *SwitchApplicationService {
	if log == nil {
		log = logging.Discard()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.ConfigDumpTimeout <= 0 {
		opts.ConfigDumpTimeout = DefaultConfigDumpTimeout
	}
	return &SwitchApplicationService{
		opener: opener,
		driver: driver,
		opts:   opts,
		log:    log,
		guard:  newDeviceGuard(),
	}
}

// Execute dispatches a request to its operation
func (a *SwitchApplicationService) Execute(ctx context.Context, req Request) entities.OperationResult {
	op, err := entities.ParseOperation(string(req.Operation))
	if err != nil {
		result := entities.OperationResult{OperationID: uuid.NewString(), Operation: req.Operation}
		result.Fail(entities.NewError(entities.ErrorKindUnexpected, "execute", err))
		return result
	}

	switch op {
	case entities.OpFetchAll:
		return a.FetchAll(ctx, req.Params)
	case entities.OpApply:
		return a.Apply(ctx, req.Params, req.Desired)
	case entities.OpSaveConfig:
		return a.SaveConfig(ctx, req.Params)
	case entities.OpDownloadConfig:
		return a.DownloadConfig(ctx, req.Params, req.Hostname)
	default:
		return a.TFTPUpload(ctx, req.Params, req.TFTPServer, req.Hostname)
	}
}

// FetchAll reads the VLAN table and the hostname in one session
func (a *SwitchApplicationService) FetchAll(ctx context.Context, params entities.ConnectionParameters) entities.OperationResult {
	op := a.begin(entities.OpFetchAll, params)
	var transcript strings.Builder

	err := a.withSession(ctx, op, func(s *services.Session) error {
		listCmd := a.driver.VLANListCommand()
		listing, err := s.RunCommand(ctx, listCmd, 0)
		fmt.Fprintf(&transcript, "=== %s ===\n%s", listCmd, listing)
		if err != nil {
			return err
		}

		hostOut, err := s.RunCommand(ctx, a.driver.HostnameCommand(), 0)
		fmt.Fprintf(&transcript, "\n\n=== hostname ===\n%s", hostOut)
		if err != nil {
			return err
		}

		hostname, _ := a.driver.ParseHostname(hostOut)
		op.result.State = &entities.DeviceState{
			Vlans:    a.driver.ParseVLANListing(listing),
			Hostname: hostname,
		}
		return nil
	})
	op.result.Transcript = transcript.String()

	message := ""
	if op.result.State != nil {
		message = fmt.Sprintf("Read %d VLANs from %s", len(op.result.State.Vlans), params.Host)
	}
	return a.finish(op, err, message)
}

// Apply pushes the desired hostname and VLANs. Nothing is sent when the
// desired state requests no change.
func (a *SwitchApplicationService) Apply(ctx context.Context, params entities.ConnectionParameters, desired entities.DeviceState) entities.OperationResult {
	op := a.begin(entities.OpApply, params)
	if desired.Empty() {
		return a.finish(op, entities.Errorf(entities.ErrorKindNoChangesRequested, "apply", "desired state names no VLAN and no hostname"), "")
	}

	commands, err := a.driver.BuildConfigCommands(desired.Vlans, desired.Hostname)
	if err != nil {
		return a.finish(op, err, "")
	}
	op.log.Debugf("Applying %d configuration lines", len(commands))

	err = a.withSession(ctx, op, func(s *services.Session) error {
		transcript, err := s.RunConfigSet(ctx, commands)
		op.result.Transcript = transcript
		if err != nil {
			return err
		}
		if a.driver.IsCommandError(transcript) {
			return entities.Errorf(entities.ErrorKindUnexpected, "apply", "device rejected part of the configuration")
		}
		return nil
	})
	return a.finish(op, err, fmt.Sprintf("Applied %d configuration lines", len(commands)))
}

// SaveConfig persists the running configuration, trying each save command
// in turn. A device that accepts none of them is not a failure.
func (a *SwitchApplicationService) SaveConfig(ctx context.Context, params entities.ConnectionParameters) entities.OperationResult {
	op := a.begin(entities.OpSaveConfig, params)
	var transcripts []string
	message := UnsupportedSaveMessage

	err := a.withSession(ctx, op, func(s *services.Session) error {
		engine := a.dialogueEngine(s)
		for _, cmd := range a.driver.SaveCommands() {
			out, err := engine.Run(ctx, cmd.Trigger, cmd.Script)
			transcripts = append(transcripts, out)
			if err != nil {
				return err
			}
			if a.driver.IsCommandError(out) {
				op.log.Infof("'%s' not supported, trying next save command", cmd.Trigger)
				continue
			}
			message = fmt.Sprintf("Configuration saved with '%s'", cmd.Trigger)
			return nil
		}
		op.log.Warn(UnsupportedSaveMessage)
		return nil
	})
	op.result.Transcript = strings.Join(transcripts, "\n")
	return a.finish(op, err, message)
}

// DownloadConfig returns the full running configuration with its canonical
// filename. The filename uses hostname, else the name found in the dump.
func (a *SwitchApplicationService) DownloadConfig(ctx context.Context, params entities.ConnectionParameters, hostname string) entities.OperationResult {
	op := a.begin(entities.OpDownloadConfig, params)

	err := a.withSession(ctx, op, func(s *services.Session) error {
		config, err := s.RunCommand(ctx, a.driver.RunningConfigCommand(), a.opts.ConfigDumpTimeout)
		op.result.Transcript = config
		if err != nil {
			return err
		}
		if a.driver.IsCommandError(config) {
			return entities.Errorf(entities.ErrorKindUnexpected, "download", "device refused to show the running configuration")
		}

		name := strings.TrimSpace(hostname)
		if name == "" {
			name, _ = a.driver.ParseHostname(config)
		}
		op.result.Config = config
		op.result.Filename = entities.ConfigFilename(a.opts.Clock(), name)
		return nil
	})
	return a.finish(op, err, fmt.Sprintf("Downloaded running configuration as %s", op.result.Filename))
}

// TFTPUpload copies the running configuration to a TFTP server. The server
// address is checked before connecting; a missing hostname is read from
// the device in the same session.
func (a *SwitchApplicationService) TFTPUpload(ctx context.Context, params entities.ConnectionParameters, server, hostname string) entities.OperationResult {
	op := a.begin(entities.OpTFTPUpload, params)

	addr, err := entities.ValidateServerAddress(server)
	if err != nil {
		return a.finish(op, err, "")
	}

	var transcript strings.Builder
	err = a.withSession(ctx, op, func(s *services.Session) error {
		name := strings.TrimSpace(hostname)
		if name == "" {
			out, err := s.RunCommand(ctx, a.driver.HostnameCommand(), 0)
			if err != nil {
				op.log.Warnf("Could not read hostname, using %s: %v", entities.FallbackDeviceName, err)
			} else {
				name, _ = a.driver.ParseHostname(out)
			}
		}

		filename := entities.ConfigFilename(a.opts.Clock(), name)
		op.result.Filename = filename
		cmd := a.driver.TFTPCommand(addr, filename)
		out, err := a.dialogueEngine(s).Run(ctx, cmd.Trigger, cmd.Script)
		transcript.WriteString(out)
		return err
	})
	op.result.Transcript = transcript.String()
	return a.finish(op, err, fmt.Sprintf("Configuration sent to tftp://%s/%s", addr, op.result.Filename))
}

// operation carries the per-call state shared by begin, withSession and finish
type operation struct {
	params entities.ConnectionParameters
	result entities.OperationResult
	log    *logrus.Entry
	start  time.Time
}

func (a *SwitchApplicationService) begin(name entities.Operation, params entities.ConnectionParameters) *operation {
	id := uuid.NewString()
	log := logging.WithOperation(logging.WithDevice(a.log, params.Address()), string(name), id)
	log.Info("Operation started")
	return &operation{
		params: params,
		result: entities.OperationResult{OperationID: id, Operation: name},
		log:    log,
		start:  time.Now(),
	}
}

func (a *SwitchApplicationService) finish(op *operation, err error, message string) entities.OperationResult {
	log := op.log.WithField("duration", time.Since(op.start).Round(time.Millisecond).String())
	if err != nil {
		op.result.Fail(err)
		log.WithField("error_kind", op.result.ErrorKind.String()).Errorf("Operation failed: %v", err)
		return op.result
	}
	op.result.Succeed(message)
	log.Info("Operation completed")
	return op.result
}

// withSession opens a channel, reaches the CLI, escalates and runs fn.
// The channel is released on every path.
func (a *SwitchApplicationService) withSession(ctx context.Context, op *operation, fn func(*services.Session) error) error {
	if err := op.params.Validate(); err != nil {
		return entities.NewError(entities.ErrorKindConnect, "validate", err)
	}

	release, err := a.guard.acquire(ctx, op.params.Address())
	if err != nil {
		return entities.NewError(entities.KindOf(err), "wait for device", err)
	}
	defer release()

	ch, err := a.opener.Open(ctx, op.params)
	if err != nil {
		var opErr *entities.OperationError
		if !errors.As(err, &opErr) {
			err = entities.NewError(entities.ErrorKindConnect, "open", err)
		}
		return err
	}

	session := services.NewSession(ch, a.opts.Session, op.log)
	defer func() {
		if err := session.Close(); err != nil {
			op.log.Debugf("Close: %v", err)
		}
	}()

	if err := session.Open(ctx); err != nil {
		return err
	}
	session.EscalatePrivilege(ctx, op.params.Secret())
	return fn(session)
}

func (a *SwitchApplicationService) dialogueEngine(s *services.Session) *services.DialogueEngine {
	return services.NewDialogueEngine(s, a.opts.SettleDelay, a.opts.DialogueRounds)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/carlosrabelo/vlanctl/internal/application/services"
	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
	"github.com/carlosrabelo/vlanctl/internal/domain/ports"
	domainservices "github.com/carlosrabelo/vlanctl/internal/domain/services"
	"github.com/carlosrabelo/vlanctl/internal/infrastructure/config"
	"github.com/carlosrabelo/vlanctl/internal/infrastructure/logging"
	"github.com/carlosrabelo/vlanctl/internal/infrastructure/transport"
	"github.com/carlosrabelo/vlanctl/internal/platform"
)

// errOperationFailed marks a command whose result was printed but failed
var errOperationFailed = errors.New("operation failed")

// environment holds what the commands need from the outside world
type environment struct {
	stdin        io.Reader
	stdout       io.Writer
	stderr       io.Writer
	newOpener    func(transport.Options, *logrus.Entry) ports.ChannelOpener
	readPassword func(prompt string) (string, error) // nil disables prompting
	clock        func() time.Time
}

func defaultEnvironment() *environment {
	env := &environment{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		newOpener: func(opts transport.Options, log *logrus.Entry) ports.ChannelOpener {
			return transport.NewOpener(opts, log)
		},
		clock: time.Now,
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		env.readPassword = func(prompt string) (string, error) {
			fmt.Fprint(env.stderr, prompt)
			secret, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(env.stderr)
			return string(secret), err
		}
	}
	return env
}

type globalFlags struct {
	configPath string
	target     string
	port       int
	transport  string
	platform   string
	username   string
	password   string
	enable     string
	logLevel   string
	logFormat  string
	jsonOutput bool
}

func newRootCmd(env *environment) *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "vlanctl",
		Short: "Manage VLANs and configuration of Cisco IOS access switches",
		Long: `vlanctl drives the CLI of a switch over telnet or ssh to read and
change its VLAN table and hostname, save the configuration, and export
it to a local file or a TFTP server.`,
		Version:       fmt.Sprintf("%s (built %s)", version, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetIn(env.stdin)
	rootCmd.SetOut(env.stdout)
	rootCmd.SetErr(env.stderr)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "YAML configuration file (default: search ./, ~/.config/vlanctl/, /etc/vlanctl/)")
	pf.StringVarP(&flags.target, "target", "t", "", "Switch IPv4 address (required)")
	pf.IntVar(&flags.port, "port", 0, "TCP port (default 23 for telnet, 22 for ssh)")
	pf.StringVar(&flags.transport, "transport", "", "Wire protocol: telnet or ssh")
	pf.StringVar(&flags.platform, "platform", "", "Switch platform: "+strings.Join(platform.Available(), ", "))
	pf.StringVarP(&flags.username, "username", "u", "", "Login username")
	pf.StringVarP(&flags.password, "password", "p", "", "Login password (prompted when missing on a terminal)")
	pf.StringVar(&flags.enable, "enable-password", "", "Enable secret (defaults to the login password)")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log format: text or json")
	pf.BoolVar(&flags.jsonOutput, "json", false, "Print the operation result as JSON")

	rootCmd.AddCommand(newFetchCmd(flags, env))
	rootCmd.AddCommand(newApplyCmd(flags, env))
	rootCmd.AddCommand(newSaveCmd(flags, env))
	rootCmd.AddCommand(newDownloadCmd(flags, env))
	rootCmd.AddCommand(newTFTPUploadCmd(flags, env))
	return rootCmd
}

// runtime is everything one command needs to run an operation
type runtime struct {
	sw      config.SwitchConfig
	params  entities.ConnectionParameters
	log     *logrus.Entry
	service *services.SwitchApplicationService
	last    *entities.OperationResult
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	found, err := config.Discover()
	if errors.Is(err, config.ErrNotFound) {
		return config.Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return config.Load(found)
}

// setup merges file and flags, then wires the service for the target switch
func (g *globalFlags) setup(env *environment) (*runtime, error) {
	if strings.TrimSpace(g.target) == "" {
		return nil, fmt.Errorf("required flag --target not set")
	}

	cfg, err := loadConfig(g.configPath)
	if err != nil {
		return nil, err
	}

	sw, _ := cfg.Switch(g.target)
	if g.transport != "" {
		sw.Transport = g.transport
	}
	if g.port != 0 {
		sw.Port = g.port
	}
	if g.platform != "" {
		sw.Platform = g.platform
	}
	if g.username != "" {
		sw.Username = g.username
	}
	if g.password != "" {
		sw.Password = g.password
	}
	if g.enable != "" {
		sw.EnablePassword = g.enable
	}

	logCfg := cfg.Log
	if g.logLevel != "" {
		logCfg.Level = g.logLevel
	}
	if g.logFormat != "" {
		logCfg.Format = g.logFormat
	}
	logger, err := logging.New(logging.Options{Level: logCfg.Level, Format: logCfg.Format, Output: env.stderr})
	if err != nil {
		return nil, fmt.Errorf("invalid log settings: %w", err)
	}
	log := logrus.NewEntry(logger)

	if sw.Password == "" && env.readPassword != nil {
		secret, err := env.readPassword(fmt.Sprintf("Password for %s@%s: ", sw.Username, sw.Target))
		if err != nil {
			return nil, fmt.Errorf("failed to read password: %w", err)
		}
		sw.Password = secret
	}

	params, err := sw.Params()
	if err != nil {
		return nil, err
	}

	driver, err := platform.New(sw.Platform, platform.Options{
		ReservedVLANs: cfg.ReservedVlans,
		MaxNameLength: cfg.VlanNameMax,
	})
	if err != nil {
		return nil, err
	}

	t := cfg.Timeouts
	opener := env.newOpener(transport.Options{
		LoginTimeout:     t.Login,
		ReadPoll:         t.ReadPoll,
		KnownHostsFile:   cfg.SSH.KnownHosts,
		LegacyAlgorithms: cfg.SSH.LegacyAlgorithms,
	}, log)

	service := services.NewSwitchApplicationService(opener, driver, services.Options{
		Session: domainservices.SessionOptions{
			CommandTimeout: t.Command,
			MaxWait:        t.MaxWait,
			ReadPoll:       t.ReadPoll,
		},
		SettleDelay:       t.Settle,
		DialogueRounds:    t.DialogueRounds,
		ConfigDumpTimeout: t.ConfigDump,
		Clock:             env.clock,
	}, log)

	return &runtime{sw: sw, params: params, log: log, service: service}, nil
}

// execute runs one operation and prints its result
func (g *globalFlags) execute(cmd *cobra.Command, env *environment, build func(*runtime) (services.Request, error)) error {
	rt, err := g.setup(env)
	if err != nil {
		return err
	}
	req, err := build(rt)
	if err != nil {
		return err
	}
	req.Params = rt.params

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := rt.service.Execute(ctx, req)
	rt.last = &result
	if err := printResult(cmd.OutOrStdout(), result, g.jsonOutput); err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("%w: %w", errOperationFailed, result.Err())
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

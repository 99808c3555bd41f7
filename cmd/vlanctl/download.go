package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carlosrabelo/vlanctl/internal/application/services"
	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
)

type downloadFlags struct {
	output   string
	hostname string
}

func newDownloadCmd(flags *globalFlags, env *environment) *cobra.Command {
	df := &downloadFlags{}

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Save the running configuration to a local file",
		Long: `Read the full running configuration and write it to
<output>/YYYY-MM-DD-HHMM-<hostname>.txt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(df.output)
			if err != nil {
				return fmt.Errorf("output directory: %w", err)
			}
			if !info.IsDir() {
				return fmt.Errorf("output %s is not a directory", df.output)
			}

			var rt *runtime
			err = flags.execute(cmd, env, func(r *runtime) (services.Request, error) {
				rt = r
				return services.Request{Operation: entities.OpDownloadConfig, Hostname: strings.TrimSpace(df.hostname)}, nil
			})
			if err != nil {
				return err
			}
			return writeConfigFile(rt, df.output)
		},
	}

	cmd.Flags().StringVarP(&df.output, "output", "o", ".", "Directory the configuration file is written to")
	cmd.Flags().StringVar(&df.hostname, "hostname", "", "Hostname used in the file name (default: read from the configuration)")
	return cmd
}

func writeConfigFile(rt *runtime, dir string) error {
	if rt == nil || rt.last == nil {
		return nil
	}
	path := filepath.Join(dir, rt.last.Filename)
	if err := os.WriteFile(path, []byte(rt.last.Config+"\n"), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	rt.log.Infof("Configuration written to %s", path)
	return nil
}

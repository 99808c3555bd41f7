package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carlosrabelo/vlanctl/internal/application/services"
	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
)

type tftpFlags struct {
	server   string
	hostname string
}

func newTFTPUploadCmd(flags *globalFlags, env *environment) *cobra.Command {
	tf := &tftpFlags{}

	cmd := &cobra.Command{
		Use:     "tftp-upload",
		Aliases: []string{"tftp"},
		Short:   "Copy the running configuration to a TFTP server",
		Example: `  vlanctl tftp-upload --target 192.168.1.1 --server 192.168.1.100`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.execute(cmd, env, func(rt *runtime) (services.Request, error) {
				server := strings.TrimSpace(tf.server)
				if server == "" {
					server = rt.sw.TFTPServer
				}
				if server == "" {
					return services.Request{}, fmt.Errorf("required flag --server not set and no tftp_server configured")
				}
				return services.Request{
					Operation:  entities.OpTFTPUpload,
					TFTPServer: server,
					Hostname:   strings.TrimSpace(tf.hostname),
				}, nil
			})
		},
	}

	cmd.Flags().StringVar(&tf.server, "server", "", "TFTP server IPv4 address (default: tftp_server from the configuration)")
	cmd.Flags().StringVar(&tf.hostname, "hostname", "", "Hostname used in the file name (default: read from the switch)")
	return cmd
}

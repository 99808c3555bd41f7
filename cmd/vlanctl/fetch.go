package main

import (
	"github.com/spf13/cobra"

	"github.com/carlosrabelo/vlanctl/internal/application/services"
	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
)

func newFetchCmd(flags *globalFlags, env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Read the VLAN table and hostname of a switch",
		Example: `  vlanctl fetch --target 192.168.1.1 --username admin
  vlanctl fetch --target 192.168.1.1 --transport ssh --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.execute(cmd, env, func(*runtime) (services.Request, error) {
				return services.Request{Operation: entities.OpFetchAll}, nil
			})
		},
	}
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/carlosrabelo/vlanctl/internal/application/services"
	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
)

func newSaveCmd(flags *globalFlags, env *environment) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "Persist the running configuration to startup-config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.execute(cmd, env, func(*runtime) (services.Request, error) {
				return services.Request{Operation: entities.OpSaveConfig}, nil
			})
		},
	}
}

package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/carlosrabelo/vlanctl/internal/application/services"
	"github.com/carlosrabelo/vlanctl/internal/domain/entities"
)

type applyFlags struct {
	vlans    []string
	hostname string
}

func newApplyCmd(flags *globalFlags, env *environment) *cobra.Command {
	af := &applyFlags{}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or rename VLANs and set the hostname",
		Long: `Push VLAN definitions and an optional hostname to the switch.
Reserved VLANs are skipped and a VLAN without a name is called VLAN_<id>.
Nothing is sent when the request contains no change.`,
		Example: `  vlanctl apply --target 192.168.1.1 --vlan 10=USERS --vlan 20=VOICE
  vlanctl apply --target 192.168.1.1 --hostname SW-ACCESS-01`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vlans, err := parseVlanFlags(af.vlans)
			if err != nil {
				return err
			}
			return flags.execute(cmd, env, func(*runtime) (services.Request, error) {
				return services.Request{
					Operation: entities.OpApply,
					Desired:   entities.DeviceState{Vlans: vlans, Hostname: strings.TrimSpace(af.hostname)},
				}, nil
			})
		},
	}

	cmd.Flags().StringArrayVar(&af.vlans, "vlan", nil, "VLAN as ID=NAME or ID (repeatable)")
	cmd.Flags().StringVar(&af.hostname, "hostname", "", "New switch hostname")
	return cmd
}

// parseVlanFlags turns ID=NAME pairs into records, keeping their order
func parseVlanFlags(values []string) ([]entities.VlanRecord, error) {
	vlans := make([]entities.VlanRecord, 0, len(values))
	for _, value := range values {
		id, name, _ := strings.Cut(value, "=")
		id = strings.TrimSpace(id)
		n, err := strconv.Atoi(id)
		if err != nil || n < 1 || n > 4094 {
			return nil, fmt.Errorf("invalid --vlan %q: ID must be a number between 1 and 4094", value)
		}
		vlans = append(vlans, entities.VlanRecord{ID: id, Name: strings.TrimSpace(name)})
	}
	return vlans, nil
}

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newPingCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check connectivity and credentials against the collection API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.EnsureClientID(); err != nil {
				return fmt.Errorf("client id: %w", err)
			}
			client, err := newClient(a.cfg)
			if err != nil {
				return err
			}
			if err := client.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: %s reachable\n", client.BaseURL())
			return nil
		},
	}
}

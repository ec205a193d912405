package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLeaseCmd создаёт группу команд для просмотра lease.
func NewLeaseCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lease",
		Short: "Inspect the scheduler lease",
	}

	cmd.AddCommand(newLeaseShowCmd(clientFn, outputFn))

	return cmd
}

func newLeaseShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show which scheduler instance holds the lease",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			lease, err := client.GetLease(cmd.Context())
			if err != nil {
				return err
			}

			state := fmt.Sprintf("held (%.0fs left)", lease.RemainingSeconds)
			if lease.Expired {
				state = "expired"
			}

			out.Print(
				[]string{"OWNER_TOKEN", "STATE", "ACQUIRED", "EXPIRES"},
				[][]string{{lease.OwnerToken, state, lease.AcquiredAt, lease.ExpiresAt}},
				lease,
			)
			return nil
		},
	}
}

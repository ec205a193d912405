package cli

import (
	"github.com/spf13/cobra"
)

// NewScopeCmd создаёт группу команд для просмотра scope.
func NewScopeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scope",
		Short: "Inspect configured scopes",
	}

	cmd.AddCommand(newScopeListCmd(clientFn, outputFn))

	return cmd
}

func newScopeListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scopes with their current phase",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			scopes, err := client.ListScopes(cmd.Context())
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "PHASE", "CYCLE_KEY", "NEXT_OPENS", "TIMEZONE"}
			rows := make([][]string, len(scopes))
			for i, s := range scopes {
				cycleKey := ""
				if s.LatestCycle != nil {
					cycleKey = s.LatestCycle.CycleKey
				}
				rows[i] = []string{s.ID, orDash(s.Name), s.Phase, orDash(cycleKey), orDash(s.NextOpensAt), s.Timezone}
			}

			out.Print(headers, rows, scopes)
			return nil
		},
	}
}

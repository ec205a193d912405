package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

// NewCycleCmd создаёт группу команд для просмотра циклов.
func NewCycleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cycle",
		Short: "Inspect pairing cycles",
	}

	cmd.AddCommand(
		newCycleListCmd(clientFn, outputFn),
		newCycleShowCmd(clientFn, outputFn),
	)

	return cmd
}

func newCycleListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list SCOPE",
		Short: "List cycles of a scope, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			cycles, err := client.ListCycles(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "CYCLE_KEY", "STATUS", "GROUPS", "OPENS", "CLOSES", "NOTIFIED"}
			rows := make([][]string, len(cycles))
			for i, c := range cycles {
				groups := strconv.Itoa(c.GroupCount)
				if c.Insufficient {
					groups = "insufficient"
				}
				rows[i] = []string{c.ID, c.CycleKey, c.Status, groups, c.OpensAt, c.ClosesAt, orDash(c.NotifiedAt)}
			}

			out.Print(headers, rows, cycles)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newCycleShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a cycle with its groups",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			cycle, err := client.GetCycle(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			headers := []string{"GROUP", "SIZE", "MEMBERS"}
			rows := make([][]string, len(cycle.Groups))
			for i, g := range cycle.Groups {
				rows[i] = []string{strconv.Itoa(i + 1), strconv.Itoa(len(g.Members)), formatGroup(g)}
			}

			out.Info(cycle.CycleKey + " " + cycle.Status)
			if cycle.Insufficient {
				out.Info("not enough participants, no groups")
			}
			out.Print(headers, rows, cycle)
			return nil
		},
	}
}

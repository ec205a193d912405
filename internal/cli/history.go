package cli

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"
)

// NewHistoryCmd создаёт команду просмотра истории встреч scope.
func NewHistoryCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "history SCOPE",
		Short: "Show how often pairs in a scope have met",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			counts, err := client.GetHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			headers := []string{"A", "B", "MET", "LAST_MET"}
			rows := make([][]string, len(counts))
			for i, pc := range counts {
				rows[i] = []string{
					strconv.FormatInt(pc.A, 10),
					strconv.FormatInt(pc.B, 10),
					strconv.Itoa(pc.Count),
					pc.LastMet,
				}
			}

			out.Print(headers, rows, counts)
			return nil
		},
	}
}

// NewPreviewCmd создаёт команду пробного распределения.
// Распределение не записывается.
func NewPreviewCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "preview SCOPE CYCLE_KEY",
		Short: "Compute a pairing for a cycle without committing it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			preview, err := client.Preview(cmd.Context(), args[0], args[1])
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnprocessableEntity {
				out.Info("not enough participants opted in to form a group")
				return nil
			}
			if err != nil {
				return err
			}

			headers := []string{"GROUP", "SIZE", "MEMBERS"}
			rows := make([][]string, len(preview.Groups))
			for i, g := range preview.Groups {
				rows[i] = []string{strconv.Itoa(i + 1), strconv.Itoa(len(g.Members)), formatGroup(g)}
			}

			out.Info(fmt.Sprintf("%d participants, %d repeated introductions", preview.Participants, preview.Repeats))
			out.Print(headers, rows, preview)
			return nil
		},
	}
}

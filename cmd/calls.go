package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/crime-map/internal/model"
)

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "List 112 calls known to the backend",
	RunE: func(cmd *cobra.Command, _ []string) error {
		calls, err := newCityClient().FetchCalls(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "calls")
		}

		if len(calls) == 0 {
			fmt.Fprintln(os.Stderr, "No calls found.")
			return nil
		}

		formatCalls(cmd.OutOrStdout(), calls)
		return nil
	},
}

// formatCalls prints one line per call with its id and address.
func formatCalls(w io.Writer, calls []model.Call) {
	for _, c := range calls {
		line := fmt.Sprintf("#%d — %s", c.ID, c.Address)
		if _, _, ok := c.Location(); !ok {
			line += " (no location)"
		}
		if c.IsE33 {
			line += " [E33]"
		}
		fmt.Fprintln(w, line)
	}
}

func init() {
	rootCmd.AddCommand(callsCmd)
}

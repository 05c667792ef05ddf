package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sells-group/crime-map/internal/model"
	"github.com/sells-group/crime-map/internal/style"
)

var legendCmd = &cobra.Command{
	Use:   "legend",
	Short: "Print the map legend for a metric",
	RunE: func(cmd *cobra.Command, _ []string) error {
		raw, _ := cmd.Flags().GetString("metric")
		if raw == "" {
			raw = cfg.Map.Metric
		}
		metric, err := model.ParseMetric(raw)
		if err != nil {
			return err
		}
		formatLegends(cmd.OutOrStdout(), style.LegendsFor(metric))
		return nil
	},
}

func formatLegends(w io.Writer, legends []style.Legend) {
	for i, l := range legends {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, l.Title)
		for _, e := range l.Entries {
			switch {
			case e.Color != "":
				fmt.Fprintf(w, "  %s  %s\n", e.Color, e.Label)
			case e.Weight > 0:
				fmt.Fprintf(w, "  %dpx      %s\n", e.Weight, e.Label)
			default:
				fmt.Fprintf(w, "  %s\n", e.Label)
			}
		}
	}
}

func init() {
	legendCmd.Flags().String("metric", "", "metric: incidents, crime_level, e33_percent (default from config)")
	rootCmd.AddCommand(legendCmd)
}

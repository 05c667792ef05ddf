package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crime-map/internal/model"
	"github.com/sells-group/crime-map/internal/overlay"
	"github.com/sells-group/crime-map/internal/style"
)

var overlayCmd = &cobra.Command{
	Use:   "overlay",
	Short: "Render the region overlay around one call",
	Long:  "Fetches the regions near a call, joins them to neighbourhood boundaries, and prints the styled GeoJSON overlay or a summary table.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initMapEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		callID, _ := cmd.Flags().GetInt("call-id")
		call, ok := model.FindCall(env.Session.Calls, callID)
		if !ok {
			return eris.Errorf("overlay: call %d not found", callID)
		}

		fallback, err := defaultMetric(env.Profile)
		if err != nil {
			return err
		}
		filters, metric, err := overlayOptions(cmd, fallback)
		if err != nil {
			return err
		}
		if !env.Profile.AcceptsCrimeType(filters.CrimeType) {
			return eris.Errorf("overlay: crime type %q not in dataset %s", filters.CrimeType, env.Profile.Name)
		}

		p := env.Pipeline
		if markers, _ := cmd.Flags().GetBool("markers"); markers {
			p = p.WithMode(overlay.ModeMarker)
		}

		o, err := p.Run(ctx, call, filters, metric)
		if o == nil {
			return err
		}
		if err != nil {
			zap.L().Warn("overlay: rendering without regions", zap.Error(err))
		}

		out := cmd.OutOrStdout()
		if summary, _ := cmd.Flags().GetBool("summary"); summary {
			formatSummary(out, o)
			return nil
		}
		return writeFeatureCollection(out, o)
	},
}

// overlayOptions merges the command flags over the configured filters.
func overlayOptions(cmd *cobra.Command, fallback model.Metric) (model.Filters, model.Metric, error) {
	filters := defaultFilters()
	metric := fallback

	if cmd.Flags().Changed("month") {
		filters.MonthYear, _ = cmd.Flags().GetString("month")
		if !model.ValidMonthYear(filters.MonthYear) {
			return filters, metric, eris.Errorf("overlay: --month must be YYYY-MM, got %q", filters.MonthYear)
		}
	}
	if cmd.Flags().Changed("crime-type") {
		filters.CrimeType, _ = cmd.Flags().GetString("crime-type")
	}
	if cmd.Flags().Changed("radius") {
		filters.RadiusKM, _ = cmd.Flags().GetFloat64("radius")
		if !model.ValidRadius(filters.RadiusKM) {
			return filters, metric, eris.Errorf("overlay: --radius must be positive, got %g", filters.RadiusKM)
		}
	}
	if cmd.Flags().Changed("metric") {
		raw, _ := cmd.Flags().GetString("metric")
		m, err := model.ParseMetric(raw)
		if err != nil {
			return filters, metric, err
		}
		metric = m
	}
	return filters, metric, nil
}

func writeFeatureCollection(w io.Writer, o *overlay.Overlay) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(o.FeatureCollection()); err != nil {
		return eris.Wrap(err, "overlay: encode geojson")
	}
	return nil
}

// formatSummary writes a per-region table followed by the aggregates.
func formatSummary(w io.Writer, o *overlay.Overlay) {
	drawn := make(map[int]style.Style, len(o.Features))
	for _, f := range o.Features {
		drawn[f.RegionID] = f.Style
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tREGION\tINCIDENTS\tLEVEL\tTYPE\tE33\tCOLOR\tDRAWN")
	for _, r := range o.Regions {
		e33 := "-"
		if r.HasE33() {
			e33 = overlay.FormatPercent(r.E33())
		}
		st, ok := drawn[r.ID]
		color, isDrawn := "-", "no"
		if ok {
			color, isDrawn = st.Color, "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\t%s\t%s\t%s\n",
			r.ID, r.Name, r.IncidentCount, r.CrimeLevel, r.PrevalentCrimeType, e33, color, isDrawn)
	}
	_ = tw.Flush()

	s := o.Summary()
	fmt.Fprintf(w, "\nMetric: %s (%s)\n", o.Metric.Label(), o.Mode)
	fmt.Fprintf(w, "Regions: %d  Drawn: %d  Unmatched: %d  Incidents: %d\n",
		s.Regions, s.Rendered, s.Unmatched, s.Incidents)

	types := make([]string, 0, len(s.ByCrimeType))
	for t := range s.ByCrimeType {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		fmt.Fprintf(w, "  %s: %d\n", t, s.ByCrimeType[t])
	}
}

func addOverlayFlags(cmd *cobra.Command) {
	cmd.Flags().Int("call-id", 0, "call to center the overlay on")
	cmd.Flags().String("metric", "", "metric to encode: incidents, crime_level, e33_percent (default from config)")
	cmd.Flags().String("month", "", "month filter YYYY-MM (default from config)")
	cmd.Flags().String("crime-type", "", "crime type filter (default from config)")
	cmd.Flags().Float64("radius", 0, "search radius in km (default from config)")
	cmd.Flags().Bool("markers", false, "draw circle markers at region centroids instead of polygons")
	cmd.Flags().Bool("summary", false, "print a summary table instead of GeoJSON")
	_ = cmd.MarkFlagRequired("call-id")
}

func init() {
	addOverlayFlags(overlayCmd)
	rootCmd.AddCommand(overlayCmd)
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/crime-map/internal/mapserver"
	"github.com/sells-group/crime-map/internal/selection"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve overlays and the shared map session over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initMapEnv(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		metric, err := defaultMetric(env.Profile)
		if err != nil {
			return err
		}

		session := newSession(env)
		defer session.Close()

		srv := mapserver.New(env.Pipeline, session, env.Notifier, mapserver.Defaults{
			Filters: defaultFilters(),
			Metric:  metric,
			Center:  mapserver.LatLon{Lat: cfg.Map.CenterLat, Lon: cfg.Map.CenterLon},
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srv.Router(cfg.Server.AllowedOrigins),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = httpSrv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("profile", env.Profile.Name),
			zap.Int("calls", len(env.Session.Calls)),
			zap.Int("boundaries", env.Session.Boundaries.Len()),
		)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newSession builds the shared selection controller and logs its transitions.
func newSession(env *mapEnv) *selection.Controller {
	metric, err := defaultMetric(env.Profile)
	if err != nil {
		metric = env.Profile.DefaultMetric()
	}
	session := selection.NewController(env.Pipeline, env.Session.Calls,
		selection.WithFilters(defaultFilters()),
		selection.WithMetric(metric),
		selection.WithProfile(env.Profile),
	)
	session.Subscribe(func(ev selection.Event) {
		fields := []zap.Field{
			zap.String("event", string(ev.Type)),
			zap.Uint64("generation", ev.State.Generation),
			zap.Int("regions", len(ev.State.Regions)),
		}
		if ev.State.CallID != nil {
			fields = append(fields, zap.Int("call_id", *ev.State.CallID))
		}
		if ev.Err != nil {
			zap.L().Warn("session refresh failed", append(fields, zap.Error(ev.Err))...)
			return
		}
		zap.L().Debug("session updated", fields...)
	})
	return session
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

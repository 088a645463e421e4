// Package session provides the CLI commands that open a collaboration
// session against a boardsync server.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/boardwave/boardsync/internal/collab"
	"github.com/boardwave/boardsync/internal/config"
	"github.com/boardwave/boardsync/internal/coordination"
	"github.com/boardwave/boardsync/internal/logging"
	"github.com/boardwave/boardsync/internal/metrics"
	"github.com/boardwave/boardsync/internal/transport"
)

var watchCmd = &cobra.Command{
	Use:   "watch [project-id]",
	Short: "Join a project and stream collaboration events",
	Long: `Connect to the collaboration server, join a project and print every
presence, edit, lock and conflict event as it happens.

The server URL and identity come from the config file or the environment:
  BOARDSYNC_SERVER_URL, BOARDSYNC_SESSION_TOKEN, BOARDSYNC_SESSION_USER_ID

Examples:
  # Watch the configured project
  boardsync watch

  # Watch a specific project, only lock and conflict events
  boardsync watch p-42 --events 'collab.lock_*,collab.conflict_*'

  # Everything, including raw inbound messages
  boardsync watch --events '*'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

var (
	watchEvents  string
	watchNoColor bool
	watchUser    string
	watchName    string
)

func init() {
	watchCmd.Flags().StringVar(&watchEvents, "events", DefaultEventFilter, "Comma-separated glob patterns of event names to show")
	watchCmd.Flags().BoolVar(&watchNoColor, "no-color", false, "Disable styled output")
	watchCmd.Flags().StringVar(&watchUser, "user", "", "User ID (overrides session.user_id)")
	watchCmd.Flags().StringVar(&watchName, "name", "", "Display name announced to peers (overrides session.user_name)")
}

// RegisterWatchCmd registers the watch command with the given parent command.
func RegisterWatchCmd(parent *cobra.Command) {
	parent.AddCommand(watchCmd)
}

// watchDeps holds the parts of a watch run that tests replace.
type watchDeps struct {
	out      io.Writer
	logger   *logging.Logger
	dialer   transport.Dialer // nil uses the WebSocket dialer
	registry *prometheus.Registry
	styled   bool
	// serveMetrics runs the metrics endpoint until ctx is done.
	serveMetrics func(ctx context.Context, addr string, reg *prometheus.Registry) error
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if len(args) > 0 {
		cfg.Session.ProjectID = args[0]
	}
	if watchUser != "" {
		cfg.Session.UserID = watchUser
	}
	if watchName != "" {
		cfg.Session.UserName = watchName
	}

	logger, err := logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Close() }()

	watchConfigFile(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	deps := watchDeps{
		out:          out,
		logger:       logger,
		registry:     prometheus.NewRegistry(),
		styled:       !watchNoColor && isTerminal(out),
		serveMetrics: serveMetrics,
	}
	return watch(ctx, cfg, watchEvents, deps)
}

// watch runs a hub until ctx is done, then prints a summary.
func watch(ctx context.Context, cfg *config.Config, events string, deps watchDeps) error {
	if cfg.Server.URL == "" {
		return fmt.Errorf("no server URL configured (set server.url or %s_SERVER_URL)", config.EnvPrefix)
	}
	creds := cfg.Credentials()
	if creds.Token == "" || creds.UserID == "" {
		return fmt.Errorf("session token and user ID are required (set %s_SESSION_TOKEN and %s_SESSION_USER_ID)",
			config.EnvPrefix, config.EnvPrefix)
	}

	filter, err := newEventFilter(events)
	if err != nil {
		return err
	}

	logger := deps.logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithUser(creds.UserID).WithProject(creds.ProjectID)

	opts := []coordination.Option{coordination.WithLogger(logger)}
	if cfg.Metrics.Enabled && deps.registry != nil {
		opts = append(opts, coordination.WithMetrics(metrics.New(deps.registry)))
	}
	if deps.dialer != nil {
		opts = append(opts, coordination.WithDialer(deps.dialer))
	}

	hub, err := coordination.NewHub(cfg.Hub(), opts...)
	if err != nil {
		return err
	}

	p := newPrinter(deps.out, filter, deps.styled)
	transportSub := hub.TransportEvents().SubscribeAll(p.Handle)
	collabSub := hub.Events().SubscribeAll(p.Handle)
	defer hub.TransportEvents().Unsubscribe(transportSub)
	defer hub.Events().Unsubscribe(collabSub)

	if err := hub.Start(ctx, creds, collab.UserInfo{Name: cfg.Session.UserName}); err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Enabled && deps.serveMetrics != nil {
		g.Go(func() error {
			return deps.serveMetrics(gctx, cfg.Metrics.Addr, deps.registry)
		})
	}

	var final coordination.Status
	g.Go(func() error {
		<-gctx.Done()
		final = hub.Status()
		return hub.Stop()
	})

	err = g.Wait()
	writeSummary(deps.out, final, p.Count(), deps.styled)
	return err
}

// serveMetrics exposes reg on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// watchConfigFile reapplies the log level whenever the config file changes.
func watchConfigFile(logger *logging.Logger) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := config.Load()
		if err != nil {
			logger.Warn("ignoring invalid config change", "file", e.Name, "error", err.Error())
			return
		}
		logger.SetLevel(cfg.Logging.Level)
		logger.Info("config reloaded", "file", e.Name, "level", cfg.Logging.Level)
	})
	viper.WatchConfig()
}

// isTerminal reports whether w is a terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

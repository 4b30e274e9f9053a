package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/matzehuels/framegraph/pkg/buildinfo"
	"github.com/matzehuels/framegraph/pkg/observability"
	fgotel "github.com/matzehuels/framegraph/pkg/observability/otel"
	"github.com/matzehuels/framegraph/pkg/observability/prom"
)

// shutdownTimeout bounds graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve metrics, health and stored projects over HTTP",
		Long: `Serve starts an HTTP server with the following routes:

  GET /healthz                          liveness probe
  GET /metrics                          Prometheus metrics
  GET /projects                         stored project names
  GET /projects/{name}?format=yaml      a stored project document
  GET /projects/{name}/dot?format=svg   the project graph as DOT or SVG
  GET /projects/{name}/render/{viewer}  the frame a viewer shows, as PNG`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = c.Config.Metrics.Addr
			}
			return c.runServe(cmd.Context(), cmd.OutOrStdout(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default: metrics.addr from config)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, w io.Writer, addr string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	shutdown, err := c.setupObservability(ctx, reg)
	if err != nil {
		return err
	}
	defer shutdown()

	s, err := c.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := &http.Server{
		Addr: addr,
		Handler: newRouter(&server{
			store:   s,
			logger:  c.Logger,
			eval:    c.evalOptions(),
			timeout: c.Config.Eval.Timeout,
		}, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	printSuccess(w, "Serving on %s", StyleValue.Render(addr))
	printDetail(w, "backend: %s", c.Config.Store.Backend)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	c.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// setupObservability registers Prometheus hooks on reg and, when tracing is
// enabled, OpenTelemetry hooks. The returned function flushes traces and
// restores the no-op hooks.
func (c *CLI) setupObservability(ctx context.Context, reg prometheus.Registerer) (func(), error) {
	metrics, err := prom.New(reg)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	hooks := observability.Multi{
		GraphHooks: []observability.GraphHooks{metrics},
		EvalHooks:  []observability.EvalHooks{metrics},
		StoreHooks: []observability.StoreHooks{metrics},
	}

	flush := func() {}
	if t := c.Config.Tracing; t.Enabled {
		tp, err := fgotel.NewProvider(ctx, fgotel.ProviderConfig{
			ServiceName:    appName,
			ServiceVersion: buildinfo.Version,
			Endpoint:       t.Endpoint,
			SampleRate:     t.SampleRate,
		})
		if err != nil {
			return nil, err
		}
		spans := fgotel.New(tp)
		hooks.EvalHooks = append(hooks.EvalHooks, spans)
		hooks.StoreHooks = append(hooks.StoreHooks, spans)
		flush = func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := tp.Shutdown(ctx); err != nil {
				c.Logger.Warn("flush traces", "err", err)
			}
		}
		c.Logger.Debug("tracing enabled", "endpoint", t.Endpoint)
	}

	observability.SetGraphHooks(hooks)
	observability.SetEvalHooks(hooks)
	observability.SetStoreHooks(hooks)

	return func() {
		flush()
		observability.Reset()
	}, nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/config"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/graph"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/logger"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/metrics"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/server"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/storage"
	"github.com/wagnerlima/memory-cloud/knowledge-graph/internal/tracing"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "knowledge-graph",
		Short:        "Project knowledge graph served over MCP",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var configFile string
	def := config.Defaults()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server (stdio or streamable HTTP)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags(), configFile)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&configFile, "config", "", "Path to a YAML config file")
	f.String("transport", def.Transport, "Transport mode: stdio or http")
	f.String("port", def.Port, "HTTP port (only used with --transport http)")
	f.String("data-dir", def.DataDir, "Directory for the SQLite database")
	f.String("log-mode", def.LogMode, "Log format: dev or prod")
	f.Int("embedding-dims", def.EmbeddingDims, "Required embedding length (0 accepts any)")
	f.Int("max-traversal-depth", def.MaxTraversalDepth, "Largest max_depth traverse_graph accepts")
	f.Bool("trace-console", def.TraceConsole, "Write OpenTelemetry spans to stderr")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config) error {
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer log.Sync()

	if cfg.TraceConsole {
		shutdown, err := tracing.SetupConsole(os.Stderr)
		if err != nil {
			return fmt.Errorf("setup tracing: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(flushCtx); err != nil {
				log.Warn("tracer shutdown failed", "error", err)
			}
		}()
	}

	store, err := storage.OpenDir(cfg.DataDir,
		storage.WithEmbeddingDims(cfg.EmbeddingDims),
		storage.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	engine := graph.New(store,
		graph.WithMaxDepth(cfg.MaxTraversalDepth),
		graph.WithLogger(log),
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	srv := server.New(server.Deps{Store: store, Engine: engine, Logger: log, Metrics: m})

	switch cfg.Transport {
	case "stdio":
		log.Info("knowledge graph server starting", "transport", "stdio", "data_dir", cfg.DataDir)
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server: %w", err)
		}
	case "http":
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		mux.Handle("/", mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
			return srv
		}, nil))

		httpSrv := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
		errCh := make(chan error, 1)
		go func() {
			log.Info("knowledge graph server listening", "transport", "http", "addr", httpSrv.Addr, "data_dir", cfg.DataDir)
			errCh <- httpSrv.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("http shutdown: %w", err)
			}
		}
	default:
		return fmt.Errorf("unknown transport: %s (use stdio or http)", cfg.Transport)
	}

	log.Info("knowledge graph server stopped")
	return nil
}

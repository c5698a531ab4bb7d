package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sharpjs/PSConcurrent/internal/config"
	"github.com/sharpjs/PSConcurrent/internal/shell"
	"github.com/sharpjs/PSConcurrent/pkg/batch"
	"github.com/sharpjs/PSConcurrent/pkg/console"
	"github.com/sharpjs/PSConcurrent/pkg/console/mirror"
	"github.com/sharpjs/PSConcurrent/pkg/metrics"
	"github.com/sharpjs/PSConcurrent/pkg/scheduling"
)

const (
	redisDialTimeout = 2 * time.Second
	shutdownTimeout  = 5 * time.Second
)

// host owns everything that outlives a single batch: the console, the
// optional Redis mirror and the optional metrics server.
type host struct {
	cfg     *config.Config
	log     *zap.Logger
	ui      console.UI
	results *json.Encoder
	runner  shell.Runner

	mirror  *mirror.Mirror
	redis   *redis.Client
	metrics *metrics.Registry
	server  *http.Server
}

func newHost(cmd *cobra.Command, cfg *config.Config, log *zap.Logger) (*host, error) {
	h := &host{
		cfg:    cfg,
		log:    log,
		runner: shell.Runner{Shell: cfg.Shell},
	}

	// With --json, standard output carries only results.
	var out io.Writer = cmd.OutOrStdout()
	if cfg.JSONOutput {
		h.results = json.NewEncoder(out)
		out = cmd.ErrOrStderr()
	}

	opts := []console.TerminalOption{console.WithRecordWriter(cmd.ErrOrStderr())}
	if cfg.NoColor {
		opts = append(opts, console.WithNoColor())
	}
	h.ui = console.NewTerminalUI(out, cmd.InOrStdin(), opts...)

	if cfg.MetricsAddr != "" {
		if err := h.serveMetrics(cfg.MetricsAddr); err != nil {
			return nil, err
		}
	}

	if cfg.RedisAddr != "" {
		if err := h.connectMirror(cmd.Context()); err != nil {
			h.close()
			return nil, err
		}
	}

	return h, nil
}

func (h *host) serveMetrics(addr string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	h.metrics = metrics.New(metrics.Config{Enabled: true, Registry: reg})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("serving metrics: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	h.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := h.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.log.Error("metrics server failed", zap.Error(err))
		}
	}()
	h.log.Info("serving metrics", zap.String("addr", ln.Addr().String()))
	return nil
}

func (h *host) connectMirror(ctx context.Context) error {
	h.redis = redis.NewClient(&redis.Options{Addr: h.cfg.RedisAddr})

	pingCtx, cancel := context.WithTimeout(ctx, redisDialTimeout)
	defer cancel()
	if err := h.redis.Ping(pingCtx).Err(); err != nil {
		return fmt.Errorf("connecting to redis at %s: %w", h.cfg.RedisAddr, err)
	}

	m, err := mirror.New(h.ui, mirror.Config{
		Client:  h.redis,
		Stream:  h.cfg.RedisStream,
		BatchID: uuid.NewString(),
		Logger:  h.log,
		Metrics: h.metrics,
	})
	if err != nil {
		return err
	}
	h.mirror = m
	h.ui = m
	h.log.Info("mirroring output", zap.String("addr", h.cfg.RedisAddr), zap.String("stream", h.cfg.RedisStream))
	return nil
}

func (h *host) close() {
	if h.mirror != nil {
		_ = h.mirror.Close()
	}
	if h.redis != nil {
		_ = h.redis.Close()
	}
	if h.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(ctx); err != nil {
			h.log.Warn("metrics server shutdown", zap.Error(err))
		}
	}
}

// runBatch runs commands as one batch. The batch is canceled when ctx is done.
func (h *host) runBatch(ctx context.Context, commands []string) error {
	var c *batch.Coordinator
	c, err := batch.New(batch.Config{
		MaxConcurrency: h.cfg.MaxConcurrency,
		Strategy:       scheduling.Strategy(h.cfg.Strategy),
		UI:             h.ui,
		Output: func(item batch.OutputItem) {
			h.printResult(c, item)
		},
		Logger:  h.log,
		Metrics: h.metrics,
	})
	if err != nil {
		return err
	}
	if err := c.Start(); err != nil {
		return err
	}

	stop := context.AfterFunc(ctx, c.Cancel)
	defer stop()

	for _, command := range commands {
		if _, err := c.Submit(h.runner.Job(command)); err != nil {
			c.Cancel()
			_ = c.Wait()
			return err
		}
	}
	return c.Wait()
}

type jsonResult struct {
	WorkerID int `json:"worker_id"`
	shell.Result
}

// printResult runs on the goroutine waiting for the batch.
func (h *host) printResult(c *batch.Coordinator, item batch.OutputItem) {
	result, ok := item.Value.(shell.Result)
	if !ok {
		h.log.Debug("ignoring output", zap.Int("worker_id", int(item.WorkerID)), zap.Any("value", item.Value))
		return
	}

	if h.results != nil {
		if err := h.results.Encode(jsonResult{WorkerID: int(item.WorkerID), Result: result}); err != nil {
			h.log.Warn("writing result", zap.Error(err))
		}
		return
	}
	c.Console().ForWorker(int(item.WorkerID)).WriteVerboseLine(result.String())
}

// schedule runs a batch of commands on every activation of expr until ctx
// is done. An activation is skipped while the previous batch still runs.
func (h *host) schedule(ctx context.Context, expr string, commands []string) error {
	logger := cronLogger{h.log.Sugar()}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)

	_, err := c.AddFunc(expr, func() {
		if err := h.runBatch(ctx, commands); err != nil {
			h.log.Warn("batch failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}

	c.Start()
	h.log.Info("waiting for schedule", zap.String("schedule", expr), zap.Int("commands", len(commands)))

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

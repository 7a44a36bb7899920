// ipk24chat is an interactive terminal client for the IPK24-CHAT protocol,
// supporting both the TCP text binding and the UDP binary-framed binding.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ipk24chat/client/internal/command"
	"github.com/ipk24chat/client/internal/config"
	"github.com/ipk24chat/client/internal/conversation"
	"github.com/ipk24chat/client/internal/message"
	"github.com/ipk24chat/client/internal/metricsx"
	"github.com/ipk24chat/client/internal/reliability"
	"github.com/ipk24chat/client/internal/transport"
	appversion "github.com/ipk24chat/client/internal/version"
)

func main() {
	os.Exit(run())
}

// flagValues holds the raw CLI flag values; flags the user did not pass
// defer to the config layer (Section 4.11: "CLI flags always win" when set).
type flagValues struct {
	host           string
	transport      string
	port           uint16
	timeoutMS      uint16
	maxRetransmits uint8
	configPath     string
	logLevel       string
	metricsAddr    string
}

func run() int {
	var fv flagValues

	var showVersion bool

	rootCmd := &cobra.Command{
		Use:           "ipk24chat",
		Short:         "Interactive IPK24-CHAT protocol client",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if showVersion {
				fmt.Println(appversion.Full("ipk24chat"))
				return nil
			}
			return runClient(cmd, fv)
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version information and exit")
	rootCmd.Flags().StringVarP(&fv.host, "server", "s", "", "server hostname or IP (required)")
	rootCmd.Flags().StringVarP(&fv.transport, "transport", "t", "", "transport binding: tcp or udp (required)")
	rootCmd.Flags().Uint16VarP(&fv.port, "port", "p", 0, "server port (default 4567)")
	rootCmd.Flags().Uint16VarP(&fv.timeoutMS, "timeout", "d", 0, "UDP confirmation timeout in milliseconds (default 250)")
	rootCmd.Flags().Uint8VarP(&fv.maxRetransmits, "retransmits", "r", 0, "UDP retransmission limit (default 3)")
	rootCmd.Flags().StringVar(&fv.configPath, "config", "", "path to configuration file (YAML)")
	rootCmd.Flags().StringVar(&fv.logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.Flags().StringVar(&fv.metricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on (disabled if empty)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERR:", err)
		return exitCodeForError(err)
	}
	return exitCode
}

// exitCode is set by runClient before returning, since cobra's RunE only
// reports success/failure, not the conversation engine's terminating kind.
var exitCode int

func exitCodeForError(err error) int {
	if errors.Is(err, errInvalidArgument) {
		return int(conversation.ExitInvalidInput)
	}
	return int(conversation.ExitConnection)
}

var errInvalidArgument = errors.New("invalid argument")

func runClient(cmd *cobra.Command, fv flagValues) error {
	if fv.host == "" {
		return fmt.Errorf("-s/--server is required: %w", errInvalidArgument)
	}
	if fv.transport == "" {
		return fmt.Errorf("-t/--transport is required: %w", errInvalidArgument)
	}

	cfg, err := config.Load(fv.configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	applyFlagOverrides(cfg, cmd, fv)

	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w: %w", err, errInvalidArgument)
	}

	logger := newLogger(cfg.Log)
	logger.Info("ipk24chat starting",
		slog.String("server", cfg.Server.Host),
		slog.Int("port", int(cfg.Server.Port)),
		slog.String("transport", cfg.Server.Transport),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tr, rel, err := buildTransport(cfg)
	if err != nil {
		return fmt.Errorf("build transport: %w", err)
	}

	if err := tr.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer tr.Disconnect()

	var collector *metricsx.Collector
	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Metrics.Addr != "" {
		reg := prometheus.NewRegistry()
		collector = metricsx.NewCollector(reg)
		srv := newMetricsServer(cfg.Metrics, reg)
		g.Go(func() error {
			logger.Info("metrics server listening", slog.String("addr", cfg.Metrics.Addr))
			return listenAndServe(gCtx, srv, cfg.Metrics.Addr)
		})
	}

	opts := []conversation.Option{}
	if collector != nil {
		opts = append(opts, conversation.WithMetrics(collector))
	}
	engine := conversation.New(tr, rel, os.Stdout, os.Stderr, opts...)

	runLoop(gCtx, engine, tr, logger)

	stop()
	if err := g.Wait(); err != nil {
		logger.Warn("background server error", slog.String("error", err.Error()))
	}

	exitCode = int(engine.ExitKind())
	logger.Info("ipk24chat stopped", slog.Int("exit_code", exitCode))
	return nil
}

// applyFlagOverrides layers explicitly-set CLI flags on top of the
// config/env/file-derived configuration. Only flags the user actually
// passed are applied (Section 4.11).
func applyFlagOverrides(cfg *config.Config, cmd *cobra.Command, fv flagValues) {
	cfg.Server.Host = fv.host
	cfg.Server.Transport = strings.ToLower(fv.transport)

	if cmd.Flags().Changed("port") {
		cfg.Server.Port = fv.port
	}
	if cmd.Flags().Changed("timeout") {
		cfg.Reliability.Timeout = time.Duration(fv.timeoutMS) * time.Millisecond
	}
	if cmd.Flags().Changed("retransmits") {
		cfg.Reliability.MaxRetransmits = int(fv.maxRetransmits)
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = fv.logLevel
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Metrics.Addr = fv.metricsAddr
	}
}

func buildTransport(cfg *config.Config) (transport.Transport, *reliability.Engine, error) {
	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(int(cfg.Server.Port)))

	switch cfg.Server.Transport {
	case "tcp":
		return transport.NewReliable(addr), nil, nil
	case "udp":
		dg, err := transport.NewDatagram(cfg.Server.Host, cfg.Server.Port)
		if err != nil {
			return nil, nil, err
		}
		rel := reliability.New(cfg.Reliability.Timeout, cfg.Reliability.MaxRetransmits)
		return dg, rel, nil
	default:
		return nil, nil, fmt.Errorf("transport %q: %w", cfg.Server.Transport, errInvalidArgument)
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.Level),
	})
	return slog.New(handler)
}

func newMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func listenAndServe(ctx context.Context, srv *http.Server, addr string) error {
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve on %s: %w", addr, err)
	}
	return nil
}

// -------------------------------------------------------------------------
// Event loop: two feeder goroutines (stdin, socket) funnel into a single
// select loop so that conversation.Engine is the sole mutator of session
// state (Section 5).
// -------------------------------------------------------------------------

func runLoop(ctx context.Context, engine *conversation.Engine, tr transport.Transport, logger *slog.Logger) {
	lines := make(chan string)
	lineErrs := make(chan error, 1)
	go readStdin(lines, lineErrs)

	inbound := make(chan message.Message)
	inboundErrs := make(chan error, 1)
	go readSocket(tr, inbound, inboundErrs)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	resetTimer := func(now time.Time) {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		if d := engine.NextTimeout(now); d >= 0 {
			timer.Reset(d)
		}
	}

	for !engine.Done() {
		now := time.Now()
		resetTimer(now)

		// Stdin is masked while the engine is not ready for input: a nil
		// channel is never selected, so the pending line waits.
		input := lines
		if !engine.ReadyForInput() {
			input = nil
		}

		select {
		case <-ctx.Done():
			engine.HandleSIGINT(now)

		case line, ok := <-input:
			if !ok {
				// A nil channel blocks forever in select, so this branch
				// fires exactly once instead of busy-spinning while the
				// engine drains its outstanding send before Done().
				lines = nil
				engine.HandleEOF(now)
				continue
			}
			cmd, err := command.Parse(line)
			if err != nil {
				engine.HandleCommandError(err)
				continue
			}
			engine.HandleCommand(cmd, now)

		case err := <-lineErrs:
			logger.Warn("stdin read error", slog.String("error", err.Error()))
			engine.HandleEOF(now)

		case msg := <-inbound:
			engine.HandleInbound(msg, time.Now())

		case err := <-inboundErrs:
			if errors.Is(err, transport.ErrWrongSourceAddress) {
				continue
			}
			logger.Warn("socket read error", slog.String("error", err.Error()))

		case <-timer.C:
			engine.HandleTimeout(time.Now())
		}
	}
}

func readStdin(lines chan<- string, errs chan<- error) {
	defer close(lines)
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, command.MaxLineLen), command.MaxLineLen)
	for scanner.Scan() {
		lines <- scanner.Text()
	}
	if err := scanner.Err(); err != nil {
		errs <- err
	}
}

// readSocket never closes msgs: a closed channel would make the event
// loop's receive case spin on zero-value messages. Fatal errors are
// reported once on errs and the goroutine exits; the event loop treats
// that as "no more inbound traffic" without busy-looping.
func readSocket(tr transport.Transport, msgs chan<- message.Message, errs chan<- error) {
	for {
		msg, err := tr.Receive()
		if err != nil {
			errs <- err
			if errors.Is(err, transport.ErrWrongSourceAddress) {
				continue
			}
			return
		}
		msgs <- msg
	}
}

package cli

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/provmark/internal/config"
	"github.com/roach88/provmark/internal/fingerprint"
	"github.com/roach88/provmark/internal/metrics"
	"github.com/roach88/provmark/internal/provenance"
	"github.com/roach88/provmark/internal/stego"
	"github.com/roach88/provmark/internal/store"
)

// needs declares which dependencies a command requires.
type needs uint8

const (
	needSecret needs = 1 << iota
	needStore
)

// app is the per-invocation wiring shared by all commands.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	out     *OutputFormatter

	gen     *fingerprint.Generator // set with needSecret
	backend store.Backend          // set with needStore
	svc     *provenance.Service    // set with needSecret|needStore
}

func newApp(opts *RootOptions, cmd *cobra.Command, n needs) (*app, error) {
	root := cmd.Root().PersistentFlags()
	cfg, err := config.Load(opts.ConfigPath,
		config.WithFlag("store.path", root.Lookup("db")),
		config.WithFlag("store.driver", root.Lookup("driver")),
		config.WithFlag("metrics.textfile", root.Lookup("metrics-file")),
	)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	validate := cfg.ValidateSettings
	if n&needSecret != 0 {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "configuration error", err)
	}

	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	logWriter := opts.LogWriter
	if logWriter == nil {
		logWriter = cmd.ErrOrStderr()
	}
	logger := slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{Level: logLevel}))
	logger.Debug("configuration loaded", "config", cfg)

	a := &app{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.New(),
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}

	if n&needSecret != 0 {
		a.gen, err = fingerprint.New(cfg.Secret, fingerprint.WithLength(cfg.Fingerprint.Length))
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "configuration error", err)
		}
	}

	if n&needStore != 0 {
		logger.Debug("opening store", "driver", cfg.Store.Driver, "path", cfg.Store.Path)
		a.backend, err = store.OpenBackend(cfg.Store.Driver, cfg.Store.Path)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open database", err)
		}
	}

	if a.gen != nil && a.backend != nil {
		traces := opts.TraceGenerator
		if traces == nil {
			traces = provenance.UUIDv7Generator{}
		}
		a.svc, err = provenance.New(a.gen, a.backend,
			provenance.WithLogger(logger),
			provenance.WithMetrics(a.metrics),
			provenance.WithRetryPolicy(cfg.RetryPolicy()),
			provenance.WithTraceIDGenerator(traces),
			provenance.WithHighlightOptions(a.highlightOptions()...),
		)
		if err != nil {
			a.backend.Close()
			return nil, WrapExitError(ExitCommandError, "failed to start provenance service", err)
		}
	}

	return a, nil
}

func (a *app) highlightOptions() []stego.HighlightOption {
	return []stego.HighlightOption{stego.WithSquareSize(a.cfg.Highlight.SquareSize)}
}

// close flushes metrics and releases the store. Errors are logged, not
// returned, so they never mask the command's own result.
func (a *app) close() {
	var errs []error
	if path := a.cfg.Metrics.Textfile; path != "" {
		errs = append(errs, a.metrics.WriteTextfile(path))
	}
	if a.backend != nil {
		errs = append(errs, a.backend.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("shutdown", "error", err)
	}
}

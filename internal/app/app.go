// Package app wires the callmark subsystems into a running service.
//
// The App struct owns the full lifecycle: New loads dictionaries, opens the
// result store and builds the analyzer, Run serves HTTP and processes the
// inbox until the context ends, and Shutdown tears everything down in order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/callmark/internal/analyzer"
	"github.com/MrWong99/callmark/internal/config"
	"github.com/MrWong99/callmark/internal/dictionary"
	"github.com/MrWong99/callmark/internal/inbox"
	"github.com/MrWong99/callmark/internal/observe"
	"github.com/MrWong99/callmark/internal/store"
	"github.com/MrWong99/callmark/internal/textmatch"
	"github.com/MrWong99/callmark/pkg/morph"
	"github.com/MrWong99/callmark/pkg/types"
)

const shutdownGrace = 10 * time.Second

// NewAnalyzer builds the matching stack described by cfg on top of l.
func NewAnalyzer(cfg config.AnalyzerConfig, l morph.Lemmatizer, m *observe.Metrics) *analyzer.Analyzer {
	norm := textmatch.NewNormalizer(l, textmatch.WithCacheLimit(cfg.NormalizerCacheLimit))
	matcher := textmatch.New(norm,
		textmatch.WithFuzzyThreshold(cfg.FuzzyThreshold),
		textmatch.WithKeywordOverlap(cfg.KeywordOverlap),
		textmatch.WithSemanticMinWords(cfg.SemanticMinWords),
	)
	return analyzer.New(matcher,
		analyzer.WithCacheLimit(cfg.CacheLimit),
		analyzer.WithWorkers(cfg.Workers),
		analyzer.WithMetrics(m),
	)
}

// App owns all subsystem lifetimes.
type App struct {
	cfg     *config.Config
	version string

	telemetry *observe.Provider
	metrics   *observe.Metrics
	analyzer  *analyzer.Analyzer
	watcher   *dictionary.Watcher
	static    []types.Dictionary
	jobs      *store.Store
	inbox     *inbox.Processor
	handler   http.Handler

	// closers are called in order during Shutdown.
	closers []func(context.Context) error

	stopOnce sync.Once
}

// Option is a functional option for New.
type Option func(*App)

// WithVersion sets the service version reported in telemetry.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// WithTelemetry uses p instead of initialising a new telemetry provider.
func WithTelemetry(p *observe.Provider) Option {
	return func(a *App) { a.telemetry = p }
}

// New creates an App from cfg. The lemmatizer comes from the config
// registry.
func New(ctx context.Context, cfg *config.Config, l morph.Lemmatizer, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	for _, o := range opts {
		o(a)
	}

	if err := a.initTelemetry(ctx); err != nil {
		return nil, fmt.Errorf("app: init telemetry: %w", err)
	}
	a.analyzer = NewAnalyzer(cfg.Analyzer, l, a.metrics)

	if err := a.initDictionaries(); err != nil {
		a.closeAll(ctx)
		return nil, fmt.Errorf("app: init dictionaries: %w", err)
	}
	if err := a.initStore(); err != nil {
		a.closeAll(ctx)
		return nil, fmt.Errorf("app: init store: %w", err)
	}
	if err := a.initInbox(); err != nil {
		a.closeAll(ctx)
		return nil, fmt.Errorf("app: init inbox: %w", err)
	}
	a.handler = a.routes()

	slog.Info("app initialised",
		"dictionaries", len(a.Dictionaries()),
		"watch", a.watcher != nil,
		"inbox", cfg.Inbox.Dir,
		"store", cfg.Store.Path,
	)
	return a, nil
}

func (a *App) initTelemetry(ctx context.Context) error {
	if a.telemetry == nil {
		p, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: a.version})
		if err != nil {
			return err
		}
		a.telemetry = p
		a.closers = append(a.closers, p.Shutdown)
	}
	m, err := observe.NewMetrics(a.telemetry.MeterProvider())
	if err != nil {
		return err
	}
	a.metrics = m
	return nil
}

func (a *App) initDictionaries() error {
	dc := a.cfg.Dictionaries
	switch {
	case dc.Path == "":
		slog.Warn("dictionaries.path is empty; nothing will be highlighted")
		return nil
	case !dc.Watch:
		dicts, err := dictionary.Load(dc.Path)
		if err != nil {
			return err
		}
		a.static = dicts
		return nil
	}

	w, err := dictionary.NewWatcher(dc.Path,
		func(_, _ []types.Dictionary, _ dictionary.Diff) {
			// Drops prepared phrases of replaced dictionaries.
			a.analyzer.ClearCache()
			a.metrics.RecordDictionaryReload(context.Background(), true)
		},
		dictionary.WithDebounce(dc.Debounce),
		dictionary.WithErrorHandler(func(error) {
			a.metrics.RecordDictionaryReload(context.Background(), false)
		}),
	)
	if err != nil {
		return err
	}
	a.watcher = w
	a.closers = append(a.closers, func(context.Context) error { return w.Stop() })
	return nil
}

func (a *App) initStore() error {
	s, err := store.Open(a.cfg.Store.Path)
	if err != nil {
		return err
	}
	a.jobs = s
	a.closers = append(a.closers, func(context.Context) error { return s.Close() })
	return nil
}

func (a *App) initInbox() error {
	ic := a.cfg.Inbox
	if ic.Dir == "" {
		return nil
	}
	p, err := inbox.New(ic.Dir, a.analyzer, a.Dictionaries, a.jobs,
		inbox.WithProcessedDir(ic.ProcessedDir),
		inbox.WithWorkers(ic.Workers),
		inbox.WithMaxPause(a.cfg.Analyzer.MaxPause()),
		inbox.WithMetrics(a.metrics),
	)
	if err != nil {
		return err
	}
	a.inbox = p
	return nil
}

// Dictionaries returns the currently active dictionaries.
func (a *App) Dictionaries() []types.Dictionary {
	if a.watcher != nil {
		return a.watcher.Current()
	}
	return a.static
}

// Analyzer returns the shared analyzer.
func (a *App) Analyzer() *analyzer.Analyzer { return a.analyzer }

// Store returns the job store.
func (a *App) Store() *store.Store { return a.jobs }

// Handler returns the HTTP handler serving probes, metrics and the job API.
func (a *App) Handler() http.Handler { return a.handler }

// Run serves HTTP on the configured address and processes the inbox until
// ctx is cancelled. It returns ctx.Err() after a clean stop.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("app: http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(sctx)
	})
	if a.inbox != nil {
		g.Go(func() error {
			slog.Info("inbox processor started", "dir", a.cfg.Inbox.Dir)
			return a.inbox.Run(gctx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// Shutdown tears down all subsystems in init order. It respects the context
// deadline: if ctx expires before all closers finish, remaining closers are
// skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		shutdownErr = a.closeAll(ctx)
		slog.Info("shutdown complete")
	})
	return shutdownErr
}

func (a *App) closeAll(ctx context.Context) error {
	for i, closer := range a.closers {
		if err := ctx.Err(); err != nil {
			slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
			return err
		}
		if err := closer(ctx); err != nil {
			slog.Warn("closer error", "index", i, "err", err)
		}
	}
	a.closers = nil
	return nil
}

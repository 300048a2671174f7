// Package analyzer finds dictionary phrases in utterances and renders the
// highlighted text, caching results per utterance and dictionary set.
//
// An [Analyzer] applies every dictionary whose scope allows the utterance's
// speaker, runs the [textmatch.Matcher] for each phrase against a text
// prepared once per utterance, and merges the resulting spans with
// [highlight.MergeAndRender].
//
// Results are cached by speaker, text and a content fingerprint of the
// dictionaries. When the cache grows past its limit it is cleared entirely.
// Concurrent misses for the same key are computed once.
package analyzer

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/MrWong99/callmark/internal/conversation"
	"github.com/MrWong99/callmark/internal/highlight"
	"github.com/MrWong99/callmark/internal/observe"
	"github.com/MrWong99/callmark/internal/textmatch"
	"github.com/MrWong99/callmark/pkg/types"
)

const (
	// DefaultCacheLimit is the number of cached results above which the
	// result cache is cleared.
	DefaultCacheLimit = 1000

	// DefaultWorkers is the number of utterances analysed concurrently by
	// [Analyzer.AnalyzeBatch].
	DefaultWorkers = 4
)

// Option is a functional option for configuring an [Analyzer].
type Option func(*Analyzer)

// WithCacheLimit sets the result cache limit. Default: [DefaultCacheLimit].
// Values <= 0 keep the default.
func WithCacheLimit(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.cacheLimit = n
		}
	}
}

// WithWorkers sets the batch concurrency. Default: [DefaultWorkers].
// Values <= 0 keep the default.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

// WithMetrics records metrics into m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Analyzer) {
		if m != nil {
			a.metrics = m
		}
	}
}

// Stats is a snapshot of the result cache counters.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Size      int
}

// HitRatio returns hits / (hits + misses), or 0 before the first lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	matcher    *textmatch.Matcher
	cacheLimit int
	workers    int
	metrics    *observe.Metrics

	group singleflight.Group

	mu       sync.Mutex
	results  map[string]types.AnalysisResult
	prepared map[uint64][]textmatch.Phrase
	stats    Stats
}

// New returns an [Analyzer] that matches with m.
func New(m *textmatch.Matcher, opts ...Option) *Analyzer {
	a := &Analyzer{
		matcher:    m,
		cacheLimit: DefaultCacheLimit,
		workers:    DefaultWorkers,
		metrics:    observe.DefaultMetrics(),
		results:    make(map[string]types.AnalysisResult),
		prepared:   make(map[uint64][]textmatch.Phrase),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Analyze matches every applicable dictionary against u. It never fails; the
// context only carries tracing.
//
// The returned result is a copy the caller may modify.
func (a *Analyzer) Analyze(ctx context.Context, u types.Utterance, dicts []types.Dictionary) types.AnalysisResult {
	return a.analyze(ctx, u, dicts, Fingerprint(dicts))
}

func (a *Analyzer) analyze(ctx context.Context, u types.Utterance, dicts []types.Dictionary, fp uint64) types.AnalysisResult {
	key := cacheKey(u, fp)

	a.mu.Lock()
	r, ok := a.results[key]
	if ok {
		a.stats.Hits++
	} else {
		a.stats.Misses++
	}
	a.mu.Unlock()
	a.metrics.RecordCacheLookup(ctx, ok)
	if ok {
		return r.Clone()
	}

	v, _, _ := a.group.Do(key, func() (any, error) {
		r := a.compute(ctx, u, dicts)
		a.store(ctx, key, r)
		return r, nil
	})
	return v.(types.AnalysisResult).Clone()
}

// cacheKey separates the fields with NUL so that no speaker/text pair can
// collide with another.
func cacheKey(u types.Utterance, fp uint64) string {
	return string(u.Speaker) + "\x00" + strconv.FormatUint(fp, 16) + "\x00" + u.Text
}

func (a *Analyzer) compute(ctx context.Context, u types.Utterance, dicts []types.Dictionary) types.AnalysisResult {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "analyzer.compute",
		trace.WithAttributes(attribute.String("speaker", string(u.Speaker))),
	)
	defer span.End()

	text := a.matcher.PrepareText(u.Text)
	result := types.AnalysisResult{
		MatchedPhrases: make(map[int64][]string),
		Highlights:     []types.MatchSpan{},
	}

	for _, d := range dicts {
		if !d.AppliesTo.Allows(u.Speaker) {
			continue
		}
		for i, p := range a.phrases(d) {
			out := a.matcher.MatchPrepared(p, text)
			if !out.Found {
				continue
			}
			result.MatchedPhrases[d.ID] = append(result.MatchedPhrases[d.ID], d.Phrases[i])
			for _, s := range out.Spans {
				result.Highlights = append(result.Highlights, types.MatchSpan{
					Phrase:          d.Phrases[i],
					Start:           s.Start,
					End:             s.End,
					DictionaryID:    d.ID,
					DictionaryName:  d.Name,
					DictionaryColor: d.Color,
					Kind:            out.Kind,
				})
				a.metrics.RecordMatch(ctx, string(out.Kind))
			}
		}
	}

	merged, rendered := highlight.MergeAndRender(u.Text, result.Highlights)
	if merged == nil {
		merged = []types.MatchSpan{}
	}
	result.Merged = merged
	result.TextWithHighlights = rendered

	span.SetAttributes(attribute.Int("highlights", len(result.Highlights)))
	a.metrics.AnalyzeDuration.Record(ctx, time.Since(start).Seconds())
	return result
}

// phrases returns the prepared phrases of d, preparing them on first use.
func (a *Analyzer) phrases(d types.Dictionary) []textmatch.Phrase {
	fp := dictionaryFingerprint(d)

	a.mu.Lock()
	p, ok := a.prepared[fp]
	a.mu.Unlock()
	if ok {
		return p
	}

	p = make([]textmatch.Phrase, len(d.Phrases))
	for i, phrase := range d.Phrases {
		p[i] = a.matcher.PreparePhrase(phrase)
	}

	a.mu.Lock()
	a.prepared[fp] = p
	if len(a.prepared) > a.cacheLimit {
		clear(a.prepared)
	}
	a.mu.Unlock()
	return p
}

func (a *Analyzer) store(ctx context.Context, key string, r types.AnalysisResult) {
	a.mu.Lock()
	a.results[key] = r
	evicted := len(a.results) > a.cacheLimit
	if evicted {
		clear(a.results)
		a.stats.Evictions++
	}
	a.mu.Unlock()

	if evicted {
		a.metrics.CacheEvictions.Add(ctx, 1)
		observe.Logger(ctx).Debug("analyzer: result cache cleared", "limit", a.cacheLimit)
	}
}

// AnalyzeBatch analyses utterances concurrently and returns the results keyed
// by [conversation.Key]. Utterances sharing a key keep the last result. The
// only error is the cancellation of ctx.
func (a *Analyzer) AnalyzeBatch(ctx context.Context, utterances []types.Utterance, dicts []types.Dictionary) (map[string]types.AnalysisResult, error) {
	start := time.Now()
	ctx, span := observe.StartSpan(ctx, "analyzer.AnalyzeBatch",
		trace.WithAttributes(attribute.Int("utterances", len(utterances))),
	)
	defer span.End()

	fp := Fingerprint(dicts)
	results := make([]types.AnalysisResult, len(utterances))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, u := range utterances {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.analyze(gctx, u, dicts, fp)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		observe.Fail(span, err)
		return nil, fmt.Errorf("analyzer: batch: %w", err)
	}

	out := make(map[string]types.AnalysisResult, len(utterances))
	for i, u := range utterances {
		out[conversation.Key(u)] = results[i]
	}

	a.metrics.BatchDuration.Record(ctx, time.Since(start).Seconds())
	s := a.Stats()
	observe.Logger(ctx).Info("analyzer: batch done",
		"utterances", len(utterances),
		"cache_hits", s.Hits,
		"cache_misses", s.Misses,
		"cache_ratio", fmt.Sprintf("%.2f", s.HitRatio()),
		"cache_size", s.Size,
	)
	return out, nil
}

// ClearCache drops cached results and prepared dictionaries, and clears the
// matcher's and normalizer's caches.
func (a *Analyzer) ClearCache() {
	a.mu.Lock()
	clear(a.results)
	clear(a.prepared)
	a.mu.Unlock()

	a.matcher.ClearCache()
	a.matcher.Normalizer().ClearCache()
}

// Stats returns a snapshot of the cache counters.
func (a *Analyzer) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats
	s.Size = len(a.results)
	return s
}

// Package inbox turns conversation files dropped into a directory into
// analysis jobs.
//
// Every *.json file that appears in the inbox directory (or is already there
// at start-up) becomes a [store.Job]. The job moves through new, pending and
// finished or failed; the annotated utterances are stored with it. Handled
// files are moved to the processed directory as "<job id>_<name>".
package inbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/callmark/internal/conversation"
	"github.com/MrWong99/callmark/internal/observe"
	"github.com/MrWong99/callmark/internal/store"
	"github.com/MrWong99/callmark/pkg/types"
)

const (
	// DefaultWorkers is the number of jobs processed concurrently.
	DefaultWorkers = 4

	// DefaultSettle is how long a file must stay unmodified before it is
	// picked up.
	DefaultSettle = 200 * time.Millisecond

	queueSize = 64
)

// JobStore persists job records.
type JobStore interface {
	Put(job store.Job) error
}

// Processor watches an inbox directory and analyses the files dropped into
// it.
type Processor struct {
	dir          string
	processedDir string
	workers      int
	settle       time.Duration
	maxPause     float64
	metrics      *observe.Metrics
	now          func() time.Time

	analyzer     conversation.BatchAnalyzer
	dictionaries func() []types.Dictionary
	jobs         JobStore

	mu       sync.Mutex
	inflight map[string]struct{}
}

// Option configures a [Processor].
type Option func(*Processor)

// WithProcessedDir sets where handled files are moved. Default: a
// "processed" subdirectory of the inbox.
func WithProcessedDir(dir string) Option {
	return func(p *Processor) {
		if dir != "" {
			p.processedDir = dir
		}
	}
}

// WithWorkers sets the number of concurrent jobs. Values <= 0 keep
// [DefaultWorkers].
func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithSettle sets how long file events must settle before a file is queued.
func WithSettle(d time.Duration) Option {
	return func(p *Processor) {
		if d > 0 {
			p.settle = d
		}
	}
}

// WithMaxPause sets the pause threshold used when joining channel segments.
// Default: [conversation.DefaultMaxPause].
func WithMaxPause(seconds float64) Option {
	return func(p *Processor) {
		p.maxPause = seconds
	}
}

// WithMetrics records metrics into m instead of [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Processor) {
		if m != nil {
			p.metrics = m
		}
	}
}

// New creates a Processor for dir, creating the inbox and processed
// directories when missing. dictionaries is called once per job so reloaded
// dictionaries apply to the next job.
func New(dir string, a conversation.BatchAnalyzer, dictionaries func() []types.Dictionary, jobs JobStore, opts ...Option) (*Processor, error) {
	if dir == "" {
		return nil, errors.New("inbox: directory is empty")
	}
	p := &Processor{
		dir:          filepath.Clean(dir),
		processedDir: filepath.Join(dir, "processed"),
		workers:      DefaultWorkers,
		settle:       DefaultSettle,
		maxPause:     conversation.DefaultMaxPause,
		metrics:      observe.DefaultMetrics(),
		now:          time.Now,
		analyzer:     a,
		dictionaries: dictionaries,
		jobs:         jobs,
		inflight:     make(map[string]struct{}),
	}
	for _, o := range opts {
		o(p)
	}
	for _, d := range []string{p.dir, p.processedDir} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("inbox: create %q: %w", d, err)
		}
	}
	return p, nil
}

// Run processes files already in the inbox, then watches it until ctx is
// cancelled. Jobs in progress finish their current step before Run returns.
func (p *Processor) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("inbox: watcher: %w", err)
	}
	defer fw.Close()
	if err := fw.Add(p.dir); err != nil {
		return fmt.Errorf("inbox: watch %q: %w", p.dir, err)
	}

	queue := make(chan string, queueSize)
	var g errgroup.Group
	for range p.workers {
		g.Go(func() error {
			for path := range queue {
				p.handle(ctx, path)
			}
			return nil
		})
	}

	existing, err := p.scan()
	if err != nil {
		observe.Logger(ctx).Warn("inbox: initial scan failed", "dir", p.dir, "err", err)
	}
	for _, path := range existing {
		p.enqueue(ctx, queue, path)
	}

	err = p.watch(ctx, fw, queue)
	close(queue)
	_ = g.Wait()
	return err
}

// watch debounces file events per path and queues settled files.
func (p *Processor) watch(ctx context.Context, fw *fsnotify.Watcher, queue chan<- string) error {
	ready := make(chan string)
	done := make(chan struct{})
	timers := make(map[string]*time.Timer)
	defer func() {
		close(done)
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			path := filepath.Clean(event.Name)
			if !isConversationFile(path) || !(event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) {
				continue
			}
			if t, ok := timers[path]; ok {
				t.Reset(p.settle)
				continue
			}
			timers[path] = time.AfterFunc(p.settle, func() {
				select {
				case ready <- path:
				case <-done:
				}
			})
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			observe.Logger(ctx).Warn("inbox: fsnotify error", "dir", p.dir, "err", err)
		case path := <-ready:
			delete(timers, path)
			p.enqueue(ctx, queue, path)
		}
	}
}

func (p *Processor) enqueue(ctx context.Context, queue chan<- string, path string) {
	p.mu.Lock()
	if _, busy := p.inflight[path]; busy {
		p.mu.Unlock()
		return
	}
	p.inflight[path] = struct{}{}
	p.mu.Unlock()

	select {
	case queue <- path:
	case <-ctx.Done():
		p.release(path)
	}
}

func (p *Processor) release(path string) {
	p.mu.Lock()
	delete(p.inflight, path)
	p.mu.Unlock()
}

func (p *Processor) handle(ctx context.Context, path string) {
	defer p.release(path)
	if ctx.Err() != nil {
		return
	}
	// Moved or deleted while queued.
	if _, err := os.Stat(path); err != nil {
		return
	}
	if _, err := p.Process(ctx, path); err != nil {
		observe.Logger(ctx).Warn("inbox: job failed", "file", filepath.Base(path), "err", err)
	}
}

// scan lists the conversation files currently in the inbox, sorted by name.
func (p *Processor) scan() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		path := filepath.Join(p.dir, e.Name())
		if e.Type().IsRegular() && isConversationFile(path) {
			paths = append(paths, path)
		}
	}
	slices.Sort(paths)
	return paths, nil
}

func isConversationFile(path string) bool {
	name := filepath.Base(path)
	return strings.HasSuffix(name, ".json") && !strings.HasPrefix(name, ".")
}

// Process runs one job for the conversation file at path and returns its
// final record. The returned error describes why the job failed; the failure
// is recorded in the store as well. The file is moved to the processed
// directory unless ctx was cancelled, so interrupted jobs run again on the
// next start.
func (p *Processor) Process(ctx context.Context, path string) (store.Job, error) {
	start := p.now()
	job := store.Job{
		ID:        uuid.NewString(),
		Source:    filepath.Base(path),
		Status:    store.StatusNew,
		CreatedAt: start,
		UpdatedAt: start,
	}
	ctx, span := observe.StartSpan(ctx, "inbox.Process",
		trace.WithAttributes(
			attribute.String("job.id", job.ID),
			attribute.String("job.source", job.Source),
		),
	)
	defer span.End()
	log := observe.Logger(ctx).With("job_id", job.ID, "file", job.Source)

	p.metrics.ActiveJobs.Add(ctx, 1)
	defer p.metrics.ActiveJobs.Add(ctx, -1)

	if err := p.save(&job, store.StatusNew); err != nil {
		observe.Fail(span, err)
		return job, err
	}
	log.Info("inbox: job created")

	runErr := p.run(ctx, path, &job)
	status := store.StatusFinished
	if runErr != nil {
		status = store.StatusFailed
		job.Error = runErr.Error()
		observe.Fail(span, runErr)
	}
	if err := p.save(&job, status); err != nil {
		observe.Fail(span, err)
		return job, errors.Join(runErr, err)
	}
	p.metrics.RecordJob(ctx, string(status), p.now().Sub(start).Seconds())

	if ctx.Err() == nil {
		if err := p.archive(path, job.ID); err != nil {
			log.Warn("inbox: archive failed", "err", err)
		}
	}
	if runErr != nil {
		return job, fmt.Errorf("inbox: job %s: %w", job.ID, runErr)
	}
	log.Info("inbox: job finished",
		"conversation_id", job.ConversationID,
		"utterances", len(job.Entries),
		"duration", conversation.FormatTime(job.Duration),
	)
	return job, nil
}

func (p *Processor) run(ctx context.Context, path string, job *store.Job) error {
	if err := p.save(job, store.StatusPending); err != nil {
		return err
	}
	f, err := conversation.Load(path)
	if err != nil {
		return err
	}
	conv, err := f.Conversation(p.maxPause)
	if err != nil {
		return err
	}
	job.ConversationID = conv.ID
	job.Duration = conv.Duration

	entries, err := conversation.Annotate(ctx, p.analyzer, conv.Utterances, p.dictionaries())
	if err != nil {
		return err
	}
	job.Entries = entries
	return nil
}

func (p *Processor) save(job *store.Job, status store.Status) error {
	job.Status = status
	job.UpdatedAt = p.now()
	if err := p.jobs.Put(*job); err != nil {
		return fmt.Errorf("inbox: save job %s: %w", job.ID, err)
	}
	return nil
}

func (p *Processor) archive(path, id string) error {
	return os.Rename(path, filepath.Join(p.processedDir, id+"_"+filepath.Base(path)))
}

// Package worker runs background enrichment for ingested listening data.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/resonance/internal/core/ports"
	"github.com/ewilliams-labs/resonance/internal/logging"
	"github.com/ewilliams-labs/resonance/internal/metrics"
)

// Kind names a job type.
type Kind string

const (
	KindArtistGenres  Kind = "artist_genres"
	KindPreviewEnergy Kind = "preview_energy"
)

// Job is a queued enrichment task.
type Job struct {
	Kind       Kind
	Artist     string
	TrackID    string
	PreviewURL string
}

func (j Job) key() string {
	if j.Kind == KindArtistGenres {
		return string(j.Kind) + ":" + j.Artist
	}
	return string(j.Kind) + ":" + j.TrackID
}

// Sink receives enrichment results. *services.Insights satisfies it.
type Sink interface {
	SaveArtistGenres(ctx context.Context, artist string, genres []string) error
	UpdateTrackEnergy(ctx context.Context, trackID string, energy float64) error
}

// EnergyFunc estimates energy from a preview clip URL.
type EnergyFunc func(ctx context.Context, previewURL string) (float64, error)

// Config sizes the pool.
type Config struct {
	Workers    int
	QueueSize  int
	JobTimeout time.Duration
}

// DefaultConfig returns two workers with a queue of 256 jobs and a 30s job
// timeout.
func DefaultConfig() Config {
	return Config{Workers: 2, QueueSize: 256, JobTimeout: 30 * time.Second}
}

// Pool manages background workers for enrichment jobs.
type Pool struct {
	genres ports.GenreProvider
	energy EnergyFunc
	cfg    Config
	log    zerolog.Logger

	jobs chan Job
	wg   sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	pending map[string]struct{}
}

var _ ports.Enricher = (*Pool)(nil)

// Option customizes a Pool.
type Option func(*Pool)

// WithEnergyFunc replaces the preview analyzer.
func WithEnergyFunc(fn EnergyFunc) Option {
	return func(p *Pool) { p.energy = fn }
}

// NewPool creates a pool. genres may be nil, in which case genre jobs are
// skipped.
func NewPool(genres ports.GenreProvider, cfg Config, opts ...Option) *Pool {
	def := DefaultConfig()
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	p := &Pool{
		genres:  genres,
		energy:  NewPreviewAnalyzer(nil).Energy,
		cfg:     cfg,
		log:     logging.WithComponent("worker"),
		jobs:    make(chan Job, cfg.QueueSize),
		pending: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the worker goroutines. Results are written to sink. Jobs
// run with a context derived from ctx.
func (p *Pool) Start(ctx context.Context, sink Sink) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for job := range p.jobs {
				metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
				p.processJob(ctx, sink, job)
				p.done(job)
			}
		}()
	}
	p.log.Info().Int("workers", p.cfg.Workers).Int("queue", p.cfg.QueueSize).Msg("worker pool started")
}

// Stop closes the queue and waits for queued jobs to finish. Jobs submitted
// after Stop are dropped.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.jobs)
	p.mu.Unlock()
	p.wg.Wait()
}

// EnqueueArtistGenres queues a genre lookup for artist without blocking.
func (p *Pool) EnqueueArtistGenres(artist string) bool {
	return p.Submit(Job{Kind: KindArtistGenres, Artist: artist})
}

// EnqueueTrackEnergy queues a preview-based energy estimate without blocking.
func (p *Pool) EnqueueTrackEnergy(trackID, previewURL string) bool {
	return p.Submit(Job{Kind: KindPreviewEnergy, TrackID: trackID, PreviewURL: previewURL})
}

// Submit queues a job without blocking. A job identical to one still queued
// or running is accepted without being queued again. It reports false when
// the queue is full or the pool is stopped.
func (p *Pool) Submit(job Job) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := job.key()
	if _, ok := p.pending[key]; ok {
		return true
	}
	if p.closed {
		metrics.RecordWorkerJob(string(job.Kind), "dropped")
		return false
	}
	select {
	case p.jobs <- job:
		p.pending[key] = struct{}{}
		metrics.WorkerQueueDepth.Set(float64(len(p.jobs)))
		return true
	default:
		metrics.RecordWorkerJob(string(job.Kind), "dropped")
		p.log.Warn().Str("kind", string(job.Kind)).Str("key", key).Msg("queue full, dropping job")
		return false
	}
}

func (p *Pool) done(job Job) {
	p.mu.Lock()
	delete(p.pending, job.key())
	p.mu.Unlock()
}

func (p *Pool) processJob(ctx context.Context, sink Sink, job Job) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()

	start := time.Now()
	var outcome string
	var err error
	switch job.Kind {
	case KindArtistGenres:
		outcome, err = p.lookupGenres(ctx, sink, job.Artist)
	case KindPreviewEnergy:
		outcome, err = p.estimateEnergy(ctx, sink, job)
	default:
		outcome = "skipped"
		p.log.Warn().Str("kind", string(job.Kind)).Msg("unknown job kind")
	}
	metrics.RecordWorkerJob(string(job.Kind), outcome)

	ev := p.log.Debug()
	if err != nil {
		ev = p.log.Warn().Err(err)
	}
	ev.Str("kind", string(job.Kind)).
		Str("key", job.key()).
		Str("outcome", outcome).
		Dur("duration", time.Since(start)).
		Msg("job finished")
}

func (p *Pool) lookupGenres(ctx context.Context, sink Sink, artist string) (string, error) {
	if p.genres == nil {
		return "skipped", nil
	}
	genres, err := p.genres.ArtistGenres(ctx, artist)
	if errors.Is(err, ports.ErrNoConfidentMatch) {
		return "skipped", nil
	}
	if err != nil {
		return "failed", err
	}
	if len(genres) == 0 {
		return "skipped", nil
	}
	if err := sink.SaveArtistGenres(ctx, artist, genres); err != nil {
		return "failed", err
	}
	return "done", nil
}

func (p *Pool) estimateEnergy(ctx context.Context, sink Sink, job Job) (string, error) {
	if job.PreviewURL == "" {
		return "skipped", nil
	}
	energy, err := p.energy(ctx, job.PreviewURL)
	if err != nil {
		return "failed", err
	}
	if err := sink.UpdateTrackEnergy(ctx, job.TrackID, energy); err != nil {
		return "failed", err
	}
	return "done", nil
}

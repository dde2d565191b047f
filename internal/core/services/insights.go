package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/resonance/internal/core/analytics"
	"github.com/ewilliams-labs/resonance/internal/core/domain"
	"github.com/ewilliams-labs/resonance/internal/core/ports"
	"github.com/ewilliams-labs/resonance/internal/logging"
	"github.com/ewilliams-labs/resonance/internal/metrics"
)

// Config controls the insights service.
type Config struct {
	Engine analytics.Config

	// PersonalityWindowDays bounds the recent plays fed to the classifier.
	PersonalityWindowDays int
	StressWindowDays      int
	RecommendK            int

	Retry RetryConfig
}

// RetryConfig is the bounded exponential backoff applied to store calls that
// fail with a transient error.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultConfig returns the service defaults.
func DefaultConfig() Config {
	return Config{
		Engine:                analytics.DefaultConfig(),
		PersonalityWindowDays: 30,
		StressWindowDays:      30,
		RecommendK:            analytics.DefaultRecommendConfig().DefaultK,
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   100 * time.Millisecond,
			Multiplier:  2,
		},
	}
}

// Insights loads listening snapshots from the store and runs the analytics
// engine over them.
type Insights struct {
	store    ports.EventStore
	writer   ports.EventWriter
	enricher ports.Enricher
	provider ports.FeatureProvider
	features FeatureCache
	genres   GenreCache
	// versioned is false when both caches are no-ops and the store
	// generation need not be read.
	versioned bool

	classifier  *analytics.PersonalityClassifier
	detector    *analytics.StressDetector
	recommender *analytics.ContentRecommender

	cfg      Config
	now      func() time.Time
	validate *validator.Validate
}

// Option customizes an Insights service.
type Option func(*Insights)

// WithWriter enables ingestion through w.
func WithWriter(w ports.EventWriter) Option {
	return func(s *Insights) { s.writer = w }
}

// WithEnricher queues background enrichment for ingested data.
func WithEnricher(e ports.Enricher) Option {
	return func(s *Insights) { s.enricher = e }
}

// WithFeatureProvider fills missing audio features of ingested tracks from a
// remote catalog before they are stored.
func WithFeatureProvider(p ports.FeatureProvider) Option {
	return func(s *Insights) { s.provider = p }
}

// FeatureCache holds raw track rows keyed by track id.
type FeatureCache = ports.Cache[ports.Versioned[domain.RawTrackFeatures]]

// GenreCache holds artist genres keyed by lowercased artist name.
type GenreCache = ports.Cache[ports.Versioned[[]string]]

// WithFeatureCache caches track rows. Entries are only served while the store
// generation they were read at is current.
func WithFeatureCache(c FeatureCache) Option {
	return func(s *Insights) {
		if c != nil {
			s.features = c
			s.versioned = true
		}
	}
}

// WithGenreCache caches artist genres under the same generation rule as
// WithFeatureCache.
func WithGenreCache(c GenreCache) Option {
	return func(s *Insights) {
		if c != nil {
			s.genres = c
			s.versioned = true
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Insights) { s.now = now }
}

// NewInsights constructs the service. Caches default to no-op.
func NewInsights(store ports.EventStore, cfg Config, opts ...Option) (*Insights, error) {
	if store == nil {
		return nil, errors.New("service: event store is required")
	}
	if err := cfg.Engine.Validate(); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = 1
	}
	if cfg.Retry.Multiplier < 1 {
		cfg.Retry.Multiplier = DefaultConfig().Retry.Multiplier
	}
	if cfg.PersonalityWindowDays <= 0 {
		cfg.PersonalityWindowDays = DefaultConfig().PersonalityWindowDays
	}
	if cfg.StressWindowDays <= 0 {
		cfg.StressWindowDays = DefaultConfig().StressWindowDays
	}
	if cfg.RecommendK <= 0 {
		cfg.RecommendK = cfg.Engine.Recommend.DefaultK
	}

	s := &Insights{
		store:       store,
		features:    noopCache[ports.Versioned[domain.RawTrackFeatures]]{},
		genres:      noopCache[ports.Versioned[[]string]]{},
		classifier:  analytics.NewPersonalityClassifier(cfg.Engine),
		detector:    analytics.NewStressDetector(cfg.Engine),
		recommender: analytics.NewContentRecommender(cfg.Engine),
		cfg:         cfg,
		now:         time.Now,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

type noopCache[V any] struct{}

func (noopCache[V]) Get(string) (V, bool) {
	var zero V
	return zero, false
}

func (noopCache[V]) Set(string, V) {}

func (noopCache[V]) Evict(string) {}

type personalityRequest struct {
	UserID     string `validate:"required,max=128,printascii"`
	WindowDays int    `validate:"min=0,max=3650"`
}

type stressRequest struct {
	UserID     string `validate:"required,max=128,printascii"`
	WindowDays int    `validate:"min=0,max=3650"`
}

type recommendRequest struct {
	UserID string `validate:"required,max=128,printascii"`
	K      int    `validate:"min=0"`
}

// ComputePersonality classifies the user's listening. windowDays of zero uses
// the configured window. Sparse history yields the default profile.
func (s *Insights) ComputePersonality(ctx context.Context, userID string, windowDays int) (res domain.PersonalityResult, err error) {
	const op = "ComputePersonality"
	start := time.Now()
	defer func() { s.record("personality", start, res.IsDefault, err) }()

	if err := s.check(op, personalityRequest{UserID: userID, WindowDays: windowDays}); err != nil {
		return domain.PersonalityResult{}, err
	}
	if windowDays == 0 {
		windowDays = s.cfg.PersonalityWindowDays
	}
	now := s.now()

	recent, err := s.loadPlays(ctx, userID, now.AddDate(0, 0, -windowDays), now, domain.ListeningSources...)
	if err != nil {
		return domain.PersonalityResult{}, fmt.Errorf("service: load recent plays: %w", err)
	}
	// Top rankings are snapshots; the latest ones are used regardless of the window.
	topPlays, err := s.loadPlays(ctx, userID, time.Time{}, now, domain.TopSources...)
	if err != nil {
		return domain.PersonalityResult{}, fmt.Errorf("service: load top tracks: %w", err)
	}

	topTracks, artistNames := distinctTracksAndArtists(topPlays)
	genres, err := s.artistGenres(ctx, artistNames)
	if err != nil {
		return domain.PersonalityResult{}, fmt.Errorf("service: load artist genres: %w", err)
	}
	topArtists := make([]domain.Artist, len(artistNames))
	for i, name := range artistNames {
		topArtists[i] = domain.Artist{Name: name, Genres: genres[name]}
	}

	res = s.classifier.Classify(analytics.PersonalityInput{
		UserID:     userID,
		Recent:     recent,
		TopTracks:  topTracks,
		TopArtists: topArtists,
	})
	s.logger(ctx).Debug().
		Str("user_id", userID).
		Str("primary", res.Primary.Name).
		Bool("default", res.IsDefault).
		Dur("took", time.Since(start)).
		Msg("personality computed")
	return res, nil
}

// ComputeStress runs the stress detector over [now - windowDays, now].
// windowDays of zero uses the configured window.
func (s *Insights) ComputeStress(ctx context.Context, userID string, windowDays int) (res domain.StressResult, err error) {
	const op = "ComputeStress"
	start := time.Now()
	defer func() { s.record("stress", start, res.Level == analytics.LevelInsufficient, err) }()

	if err := s.check(op, stressRequest{UserID: userID, WindowDays: windowDays}); err != nil {
		return domain.StressResult{}, err
	}
	if windowDays == 0 {
		windowDays = s.cfg.StressWindowDays
	}
	now := s.now()

	plays, err := s.loadPlays(ctx, userID, now.AddDate(0, 0, -windowDays), now, domain.ListeningSources...)
	if err != nil {
		return domain.StressResult{}, fmt.Errorf("service: load plays: %w", err)
	}

	res = s.detector.Detect(analytics.StressInput{
		UserID:     userID,
		Plays:      plays,
		WindowDays: windowDays,
		Now:        now,
	})
	s.logger(ctx).Debug().
		Str("user_id", userID).
		Float64("score", res.Score).
		Str("level", res.Level).
		Int("events", res.EventCount).
		Dur("took", time.Since(start)).
		Msg("stress computed")
	return res, nil
}

// ComputeRecommendations returns up to k unplayed catalog tracks ranked by
// similarity to the user's taste. k of zero uses the configured default and
// k is capped at the candidate limit.
func (s *Insights) ComputeRecommendations(ctx context.Context, userID string, k int) (recs []domain.Recommendation, err error) {
	const op = "ComputeRecommendations"
	start := time.Now()
	defer func() { s.record("recommendations", start, len(recs) == 0, err) }()

	if err := s.check(op, recommendRequest{UserID: userID, K: k}); err != nil {
		return nil, err
	}
	if k == 0 {
		k = s.cfg.RecommendK
	}
	if limit := s.cfg.Engine.Recommend.CandidateLimit; k > limit {
		k = limit
	}

	history, err := s.loadPlays(ctx, userID, time.Time{}, s.now())
	if err != nil {
		return nil, fmt.Errorf("service: load history: %w", err)
	}
	tracks, artists := distinctTracksAndArtists(history)
	if _, ok := s.recommender.TasteVector(tracks); !ok {
		return []domain.Recommendation{}, nil
	}

	genres, err := s.artistGenres(ctx, artists)
	if err != nil {
		return nil, fmt.Errorf("service: load artist genres: %w", err)
	}
	top := analytics.TopGenres(analytics.BuildArtistGenreMap(history, genres), s.cfg.Engine.Recommend.TopGenres)

	exclude := make([]string, len(tracks))
	for i, t := range tracks {
		exclude[i] = t.TrackID
	}
	in := analytics.RecommendInput{UserID: userID, History: tracks, K: k}
	if len(top) > 0 {
		if in.GenreCandidates, err = s.catalog(ctx, exclude, top); err != nil {
			return nil, fmt.Errorf("service: load genre candidates: %w", err)
		}
	}
	if len(in.GenreCandidates) == 0 {
		if in.PopularCandidates, err = s.catalog(ctx, exclude, nil); err != nil {
			return nil, fmt.Errorf("service: load popular candidates: %w", err)
		}
	}

	recs = s.recommender.Recommend(in)
	s.logger(ctx).Debug().
		Str("user_id", userID).
		Strs("top_genres", top).
		Int("returned", len(recs)).
		Dur("took", time.Since(start)).
		Msg("recommendations computed")
	return recs, nil
}

// check validates a request struct and converts failures into a domain
// validation error naming the offending fields.
func (s *Insights) check(op string, req any) error {
	if id, ok := userIDOf(req); ok && strings.TrimSpace(id) == "" {
		return domain.NewValidationError(op, "user_id must not be empty")
	}
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return domain.NewValidationError(op, err.Error())
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return domain.NewValidationError(op, strings.Join(msgs, "; "))
}

func userIDOf(req any) (string, bool) {
	switch r := req.(type) {
	case personalityRequest:
		return r.UserID, true
	case stressRequest:
		return r.UserID, true
	case recommendRequest:
		return r.UserID, true
	}
	return "", false
}

var fieldNames = map[string]string{
	"UserID":     "user_id",
	"WindowDays": "window_days",
	"K":          "k",
}

func fieldMessage(fe validator.FieldError) string {
	name := fieldNames[fe.Field()]
	if name == "" {
		name = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "min":
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "printascii":
		return name + " must contain printable ASCII only"
	}
	return fmt.Sprintf("%s failed %s validation", name, fe.Tag())
}

func (s *Insights) record(operation string, start time.Time, isDefault bool, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		if kind := domain.KindOf(err); kind != "" {
			outcome = string(kind)
		} else {
			outcome = "error"
		}
	case isDefault:
		outcome = "default"
	}
	metrics.RecordComputation(operation, outcome, time.Since(start))
}

func (s *Insights) logger(ctx context.Context) *zerolog.Logger {
	l := logging.Ctx(ctx).With().Str("component", "service").Logger()
	return &l
}

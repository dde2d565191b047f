// Package csvimport reads listening-history CSV exports into ingestion batches.
//
// The first row is a header. Column names are matched case-insensitively and
// only track_id and played_at are required:
//
//	user_id, track_id, played_at, source, name, artist, album, preview_url,
//	duration_ms, popularity, danceability, energy, valence, acousticness,
//	instrumentalness, liveness, speechiness, tempo, loudness, key, mode, genres
//
// played_at accepts RFC 3339, "2006-01-02 15:04:05" in the configured
// location, or Unix seconds. genres is a ";" separated list attached to the
// row's artist. Empty feature cells are read as missing.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
	"github.com/ewilliams-labs/resonance/internal/logging"
)

const DefaultBatchSize = 500

// Options controls how rows are read.
type Options struct {
	// BatchSize is the maximum number of events per batch.
	BatchSize int
	// UserID, when set, drops rows whose user_id column names someone else.
	UserID string
	// Location interprets played_at values without a zone. Defaults to UTC.
	Location *time.Location
	// SkipInvalid logs and skips malformed rows instead of failing.
	SkipInvalid bool
}

// Stats counts what the reader has consumed so far.
type Stats struct {
	Rows     int
	Events   int
	Skipped  int
	Filtered int
}

// Reader yields ingestion batches from a CSV stream.
type Reader struct {
	csv  *csv.Reader
	cols map[string]int
	opts Options
	line int
	done bool

	stats Stats
	log   zerolog.Logger
}

var requiredColumns = []string{"track_id", "played_at"}

// NewReader reads the header row and validates the required columns.
func NewReader(r io.Reader, opts Options) (*Reader, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("csvimport: empty input")
		}
		return nil, fmt.Errorf("csvimport: read header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))
		if key == "track_name" {
			key = "name"
		}
		if _, dup := cols[key]; !dup {
			cols[key] = i
		}
	}
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("csvimport: missing required column %q", c)
		}
	}

	return &Reader{
		csv:  cr,
		cols: cols,
		opts: opts,
		line: 1,
		log:  logging.WithComponent("csvimport"),
	}, nil
}

// Stats returns the counters accumulated so far.
func (r *Reader) Stats() Stats {
	return r.stats
}

// Next returns the next batch of up to BatchSize events together with their
// tracks and artist genres. It returns io.EOF once the input is exhausted.
func (r *Reader) Next() (domain.IngestBatch, error) {
	if r.done {
		return domain.IngestBatch{}, io.EOF
	}

	var batch domain.IngestBatch
	trackIndex := make(map[string]int)
	for len(batch.Events) < r.opts.BatchSize {
		record, err := r.csv.Read()
		if errors.Is(err, io.EOF) {
			r.done = true
			break
		}
		r.line++
		if err != nil {
			if r.opts.SkipInvalid {
				r.skip(err)
				continue
			}
			return domain.IngestBatch{}, fmt.Errorf("csvimport: line %d: %w", r.line, err)
		}
		r.stats.Rows++

		row, err := r.parse(record)
		if err != nil {
			if r.opts.SkipInvalid {
				r.skip(err)
				continue
			}
			return domain.IngestBatch{}, fmt.Errorf("csvimport: line %d: %w", r.line, err)
		}
		if r.opts.UserID != "" && row.userID != "" && row.userID != r.opts.UserID {
			r.stats.Filtered++
			continue
		}

		batch.Events = append(batch.Events, row.event)
		if i, ok := trackIndex[row.track.TrackID]; ok {
			batch.Tracks[i] = mergeRow(batch.Tracks[i], row.track)
		} else {
			trackIndex[row.track.TrackID] = len(batch.Tracks)
			batch.Tracks = append(batch.Tracks, row.track)
		}
		if len(row.genres) > 0 && strings.TrimSpace(row.track.Artist) != "" {
			if batch.ArtistGenres == nil {
				batch.ArtistGenres = make(map[string][]string)
			}
			batch.ArtistGenres[strings.TrimSpace(row.track.Artist)] = row.genres
		}
		r.stats.Events++
	}

	if len(batch.Events) == 0 && r.done {
		return domain.IngestBatch{}, io.EOF
	}
	return batch, nil
}

func (r *Reader) skip(err error) {
	r.stats.Skipped++
	r.log.Warn().Int("line", r.line).Err(err).Msg("skipping row")
}

type row struct {
	userID string
	event  domain.ListeningEvent
	track  domain.RawTrackFeatures
	genres []string
}

func (r *Reader) parse(record []string) (row, error) {
	var out row
	out.userID = r.field(record, "user_id")

	trackID := r.field(record, "track_id")
	if trackID == "" {
		return row{}, errors.New("track_id is empty")
	}
	playedAt, err := parseTime(r.field(record, "played_at"), r.opts.Location)
	if err != nil {
		return row{}, err
	}
	source := domain.SourcePlayed
	if raw := r.field(record, "source"); raw != "" {
		if source, err = domain.ParseSource(strings.ToLower(raw)); err != nil {
			return row{}, err
		}
	}
	out.event = domain.ListeningEvent{TrackID: trackID, PlayedAt: playedAt, Source: source}

	t := domain.RawTrackFeatures{
		TrackID:    trackID,
		Name:       r.field(record, "name"),
		Artist:     r.field(record, "artist"),
		Album:      r.field(record, "album"),
		PreviewURL: r.field(record, "preview_url"),
	}
	ints := []struct {
		col string
		dst **int
	}{
		{"duration_ms", &t.DurationMs},
		{"popularity", &t.Popularity},
		{"key", &t.Key},
		{"mode", &t.Mode},
	}
	for _, c := range ints {
		if *c.dst, err = r.intField(record, c.col); err != nil {
			return row{}, err
		}
	}
	floats := []struct {
		col string
		dst **float64
	}{
		{"danceability", &t.Danceability},
		{"energy", &t.Energy},
		{"valence", &t.Valence},
		{"acousticness", &t.Acousticness},
		{"instrumentalness", &t.Instrumentalness},
		{"liveness", &t.Liveness},
		{"speechiness", &t.Speechiness},
		{"tempo", &t.Tempo},
		{"loudness", &t.Loudness},
	}
	for _, c := range floats {
		if *c.dst, err = r.floatField(record, c.col); err != nil {
			return row{}, err
		}
	}
	out.track = t

	for _, g := range strings.Split(r.field(record, "genres"), ";") {
		if g = strings.TrimSpace(g); g != "" {
			out.genres = append(out.genres, g)
		}
	}
	return out, nil
}

func (r *Reader) field(record []string, col string) string {
	i, ok := r.cols[col]
	if !ok || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}

func (r *Reader) intField(record []string, col string) (*int, error) {
	raw := r.field(record, col)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		// Some exports write integral columns as floats.
		f, ferr := strconv.ParseFloat(raw, 64)
		if ferr != nil {
			return nil, fmt.Errorf("%s: %q is not a number", col, raw)
		}
		v = int(f)
	}
	return &v, nil
}

func (r *Reader) floatField(record []string, col string) (*float64, error) {
	raw := r.field(record, col)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not a number", col, raw)
	}
	return &v, nil
}

var localLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

func parseTime(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		return time.Time{}, errors.New("played_at is empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return t.UTC(), nil
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.UTC(), nil
		}
	}
	if secs, err := strconv.ParseInt(raw, 10, 64); err == nil && secs > 0 {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Time{}, fmt.Errorf("played_at: unrecognized time %q", raw)
}

// mergeRow fills fields missing from dst with those from a later row of the
// same track.
func mergeRow(dst, src domain.RawTrackFeatures) domain.RawTrackFeatures {
	if dst.Name == "" {
		dst.Name = src.Name
	}
	if dst.Artist == "" {
		dst.Artist = src.Artist
	}
	if dst.Album == "" {
		dst.Album = src.Album
	}
	if dst.PreviewURL == "" {
		dst.PreviewURL = src.PreviewURL
	}
	for _, p := range []struct{ d, s **float64 }{
		{&dst.Danceability, &src.Danceability},
		{&dst.Energy, &src.Energy},
		{&dst.Valence, &src.Valence},
		{&dst.Acousticness, &src.Acousticness},
		{&dst.Instrumentalness, &src.Instrumentalness},
		{&dst.Liveness, &src.Liveness},
		{&dst.Speechiness, &src.Speechiness},
		{&dst.Tempo, &src.Tempo},
		{&dst.Loudness, &src.Loudness},
	} {
		if *p.d == nil {
			*p.d = *p.s
		}
	}
	for _, p := range []struct{ d, s **int }{
		{&dst.DurationMs, &src.DurationMs},
		{&dst.Popularity, &src.Popularity},
		{&dst.Key, &src.Key},
		{&dst.Mode, &src.Mode},
	} {
		if *p.d == nil {
			*p.d = *p.s
		}
	}
	return dst
}

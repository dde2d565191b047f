package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ewilliams-labs/resonance/internal/core/domain"
)

// GetEvents returns a user's events in [since, until] ordered by PlayedAt.
func (a *Adapter) GetEvents(ctx context.Context, userID string, since, until time.Time, sources ...domain.Source) ([]domain.ListeningEvent, error) {
	const op = "get_events"

	var b strings.Builder
	b.WriteString("SELECT user_id, track_id, played_at, source FROM events WHERE user_id = ?")
	args := []any{userID}
	if !since.IsZero() {
		b.WriteString(" AND played_at >= ?")
		args = append(args, formatPlayedAt(since))
	}
	if !until.IsZero() {
		b.WriteString(" AND played_at <= ?")
		args = append(args, formatPlayedAt(until))
	}
	if len(sources) > 0 {
		names := make([]string, len(sources))
		for i, s := range sources {
			names[i] = string(s)
		}
		list, err := jsonList(names)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %s: encode sources: %w", op, err)
		}
		b.WriteString(" AND source IN (SELECT value FROM json_each(?))")
		args = append(args, list)
	}
	b.WriteString(" ORDER BY played_at ASC, id ASC")

	rows, err := a.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	var events []domain.ListeningEvent
	for rows.Next() {
		var e domain.ListeningEvent
		var playedAt, source string
		if err := rows.Scan(&e.UserID, &e.TrackID, &playedAt, &source); err != nil {
			return nil, storeErr(op, err)
		}
		e.PlayedAt, err = time.Parse(playedAtLayout, playedAt)
		if err != nil {
			return nil, fmt.Errorf("sqlite: %s: bad played_at %q: %w", op, playedAt, err)
		}
		e.Source = domain.Source(source)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr(op, err)
	}

	a.log.Debug().Str("user_id", userID).Int("events", len(events)).Msg("loaded events")
	return events, nil
}

// AppendEvents inserts events in one transaction, ignoring any that repeat an
// existing (user_id, track_id, played_at).
func (a *Adapter) AppendEvents(ctx context.Context, events []domain.ListeningEvent) (int, error) {
	const op = "append_events"
	if len(events) == 0 {
		return 0, nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, storeErr(op, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO events (user_id, track_id, played_at, source)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return 0, storeErr(op, err)
	}
	defer stmt.Close()

	inserted := 0
	for _, e := range events {
		res, err := stmt.ExecContext(ctx, e.UserID, e.TrackID, formatPlayedAt(e.PlayedAt), string(e.Source))
		if err != nil {
			return 0, storeErr(op, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, storeErr(op, err)
		}
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, storeErr(op, err)
	}
	return inserted, nil
}

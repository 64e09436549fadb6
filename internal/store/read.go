package store

import (
	"context"
	"fmt"

	"github.com/roach88/gatewire/internal/ir"
)

// ReadOutcomes returns all outcomes of a session in processing order.
// Returns an empty slice (not nil) if the session has none.
func (s *Store) ReadOutcomes(ctx context.Context, session string) ([]OutcomeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session, seq, kind, status, guild_id, key_kind, key_id, reason, events, replayed
		FROM outcomes
		WHERE session = ?
		ORDER BY id ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	records := []OutcomeRecord{}
	for rows.Next() {
		var (
			rec            OutcomeRecord
			kind, keyKind  string
			guildID, keyID int64
			replayed       int
		)
		if err := rows.Scan(&rec.ID, &rec.Session, &rec.Seq, &kind, &rec.Status, &guildID,
			&keyKind, &keyID, &rec.Reason, &rec.Events, &replayed); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		rec.Kind = ir.NotificationKind(kind)
		rec.GuildID = ir.Snowflake(guildID)
		if keyKind != "" {
			rec.Key = ir.Key(ir.EntityKind(keyKind), ir.Snowflake(keyID))
		}
		rec.Replayed = replayed != 0
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return records, nil
}

// PendingDeferrals returns the pending replays of a session ordered by key,
// then arrival (seq ASC, id ASC) within each key.
func (s *Store) PendingDeferrals(ctx context.Context, session string) ([]DeferralRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session, seq, key_kind, key_id, payload
		FROM pending_deferrals
		WHERE session = ?
		ORDER BY key_kind ASC, key_id ASC, seq ASC, id ASC
	`, session)
	if err != nil {
		return nil, fmt.Errorf("query pending deferrals: %w", err)
	}
	defer rows.Close()

	records := []DeferralRecord{}
	for rows.Next() {
		var (
			rec     DeferralRecord
			keyKind string
			keyID   int64
			payload []byte
		)
		if err := rows.Scan(&rec.ID, &rec.Session, &rec.Seq, &keyKind, &keyID, &payload); err != nil {
			return nil, fmt.Errorf("scan pending deferral: %w", err)
		}
		rec.Key = ir.Key(ir.EntityKind(keyKind), ir.Snowflake(keyID))
		n, err := unmarshalNotification(payload)
		if err != nil {
			return nil, fmt.Errorf("pending deferral %d: %w", rec.ID, err)
		}
		rec.Notification = n
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending deferrals: %w", err)
	}
	return records, nil
}

// ListSessions returns every session with journal rows, in first-seen order.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session FROM (
			SELECT session, MIN(id) AS first FROM outcomes GROUP BY session
		) ORDER BY first ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []string{}
	for rows.Next() {
		var session string
		if err := rows.Scan(&session); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	return sessions, nil
}

// CountByStatus returns the number of outcomes per status for a session.
func (s *Store) CountByStatus(ctx context.Context, session string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM outcomes WHERE session = ? GROUP BY status
	`, session)
	if err != nil {
		return nil, fmt.Errorf("count outcomes: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counts: %w", err)
	}
	return counts, nil
}

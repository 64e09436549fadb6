package store

import (
	"context"
	"fmt"

	"github.com/roach88/gatewire/internal/ir"
)

// OutcomeRecord is one terminal outcome of the resolution pipeline.
//
// Status and Reason are the engine's string values; the store does not
// interpret them.
type OutcomeRecord struct {
	ID       int64               `json:"id"`
	Session  string              `json:"session"`
	Seq      int64               `json:"seq"`
	Kind     ir.NotificationKind `json:"kind"`
	Status   string              `json:"status"`
	GuildID  ir.Snowflake        `json:"guild_id,omitempty"`
	Key      ir.DeferralKey      `json:"key,omitempty"`
	Reason   string              `json:"reason,omitempty"`
	Events   int                 `json:"events"`
	Replayed bool                `json:"replayed"`
}

// DeferralRecord is one pending replay waiting on Key.
type DeferralRecord struct {
	ID           int64              `json:"id"`
	Session      string             `json:"session"`
	Seq          int64              `json:"seq"`
	Key          ir.DeferralKey     `json:"key"`
	Notification ir.RawNotification `json:"notification"`
}

// RecordOutcome appends an outcome row.
func (s *Store) RecordOutcome(ctx context.Context, rec OutcomeRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes
		(session, seq, kind, status, guild_id, key_kind, key_id, reason, events, replayed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Session,
		rec.Seq,
		string(rec.Kind),
		rec.Status,
		sqlID(rec.GuildID),
		string(rec.Key.Kind),
		sqlID(rec.Key.ID),
		rec.Reason,
		rec.Events,
		boolInt(rec.Replayed),
	)
	if err != nil {
		return fmt.Errorf("record outcome: %w", err)
	}
	return nil
}

// SaveDeferral appends a pending replay row.
//
// Duplicate (session, seq, key) rows are allowed: handling the same
// notification twice before its dependency arrives queues it twice.
func (s *Store) SaveDeferral(ctx context.Context, rec DeferralRecord) error {
	payload, err := marshalNotification(rec.Notification)
	if err != nil {
		return fmt.Errorf("save deferral: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pending_deferrals
		(session, seq, key_kind, key_id, payload)
		VALUES (?, ?, ?, ?, ?)
	`,
		rec.Session,
		rec.Seq,
		string(rec.Key.Kind),
		sqlID(rec.Key.ID),
		payload,
	)
	if err != nil {
		return fmt.Errorf("save deferral: %w", err)
	}
	return nil
}

// DeleteDeferral removes the oldest pending row for (session, seq, key).
// Returns false if there was none.
func (s *Store) DeleteDeferral(ctx context.Context, session string, seq int64, key ir.DeferralKey) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM pending_deferrals
		WHERE id = (
			SELECT id FROM pending_deferrals
			WHERE session = ? AND seq = ? AND key_kind = ? AND key_id = ?
			ORDER BY id ASC
			LIMIT 1
		)
	`, session, seq, string(key.Kind), sqlID(key.ID))
	if err != nil {
		return false, fmt.Errorf("delete deferral: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete deferral: rows affected: %w", err)
	}
	return n > 0, nil
}

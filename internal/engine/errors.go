package engine

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/gatewire/internal/ir"
)

// ErrUnnamedEmote reports an uncached custom emote with no name. No
// stand-in can be synthesized for it and it is not worth awaiting.
var ErrUnnamedEmote = errors.New("uncached custom emote has no name")

// MissingEntityError reports a dependency absent from every cache tier.
// Key is the deferral key the notification should wait on.
type MissingEntityError struct {
	Key ir.DeferralKey
}

// Error implements the error interface.
func (e *MissingEntityError) Error() string {
	return fmt.Sprintf("missing %s %s", e.Key.Kind, e.Key.ID)
}

// IsMissingEntity reports whether err is a MissingEntityError and returns
// its key. Uses errors.As to handle wrapped errors.
func IsMissingEntity(err error) (ir.DeferralKey, bool) {
	var me *MissingEntityError
	if errors.As(err, &me) {
		return me.Key, true
	}
	return ir.DeferralKey{}, false
}

// RuntimeError represents a deferral bookkeeping failure.
//
// Runtime errors include:
//   - Cyclic deferral: a replay re-deferred under a key it already waited on
//   - Deferral quota: one deferral chain deferred too many times
//   - Eviction: a pending replay removed by the per-key cap or the TTL sweep
//
// RuntimeError includes structured fields for diagnostics.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Seq identifies the affected notification.
	Seq int64

	// Key identifies the deferral key, when there is one.
	Key ir.DeferralKey

	// Details contains additional context.
	Details map[string]string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeCyclicDeferral indicates a replay re-deferred under the same key.
	ErrCodeCyclicDeferral RuntimeErrorCode = "CYCLIC_DEFERRAL"

	// ErrCodeDeferralQuota indicates a deferral chain exceeded its quota.
	ErrCodeDeferralQuota RuntimeErrorCode = "DEFERRAL_QUOTA"

	// ErrCodeDeferralEvicted indicates a pending replay was discarded.
	ErrCodeDeferralEvicted RuntimeErrorCode = "DEFERRAL_EVICTED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if !e.Key.IsZero() {
		return fmt.Sprintf("%s: %s (seq=%d, key=%s)", e.Code, e.Message, e.Seq, e.Key)
	}
	return fmt.Sprintf("%s: %s (seq=%d)", e.Code, e.Message, e.Seq)
}

// IsCyclicDeferral returns true if the error is a cyclic deferral error.
// Uses errors.As to handle wrapped errors.
func IsCyclicDeferral(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeCyclicDeferral
	}
	return false
}

// IsQuotaError returns true if the error is a deferral quota error.
func IsQuotaError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDeferralQuota
	}
	return false
}

// IsEvicted returns true if the error reports an evicted pending replay.
func IsEvicted(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeDeferralEvicted
	}
	return false
}

// NewCyclicDeferralError creates a RuntimeError for a cyclic re-deferral.
func NewCyclicDeferralError(seq int64, key ir.DeferralKey) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCyclicDeferral,
		Message: "replayed notification deferred again under the same key",
		Seq:     seq,
		Key:     key,
	}
}

// NewQuotaError creates a RuntimeError for a chain over its deferral quota.
func NewQuotaError(seq int64, deferrals, limit int) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDeferralQuota,
		Message: "notification exceeded deferral quota",
		Seq:     seq,
		Details: map[string]string{
			"deferrals": strconv.Itoa(deferrals),
			"limit":     strconv.Itoa(limit),
		},
	}
}

// NewEvictionError creates a RuntimeError for an evicted pending replay.
func NewEvictionError(seq int64, key ir.DeferralKey, reason DropReason) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeDeferralEvicted,
		Message: "pending replay discarded",
		Seq:     seq,
		Key:     key,
		Details: map[string]string{
			"reason": string(reason),
		},
	}
}

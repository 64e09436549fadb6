package engine

// DefaultMaxDeferralsPerNotification bounds how often one notification may
// be deferred across all of its replays.
const DefaultMaxDeferralsPerNotification = 8

// DeferralQuota counts the deferrals of one deferral chain and enforces a
// maximum.
//
// The replay guard catches a notification bouncing on the same key; the
// quota catches a chain of distinct keys (user, then channel, then user
// again after a removal, ...). Together they bound the work one
// notification can cause.
type DeferralQuota struct {
	max     int
	current int
}

// NewDeferralQuota creates a quota with the given limit.
func NewDeferralQuota(max int) *DeferralQuota {
	return &DeferralQuota{max: max}
}

// Check increments the counter and validates it against the limit.
// Returns a deferral quota RuntimeError once the limit is passed.
func (q *DeferralQuota) Check(seq int64) error {
	q.current++
	if q.current > q.max {
		return NewQuotaError(seq, q.current, q.max)
	}
	return nil
}

// Current returns the deferral count.
func (q *DeferralQuota) Current() int {
	return q.current
}

// Max returns the limit.
func (q *DeferralQuota) Max() int {
	return q.max
}

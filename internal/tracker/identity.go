// Package tracker turns composed visit events into Matomo tracking requests:
// parameter building, target routing and the HTTP sender live here.
package tracker

import (
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

const visitorIDLen = 16

// VisitContext carries the visit-scoped identity shared by every event of one
// visit: the log/trace id, the tracking-API visitor id, the browser identity
// and the wall-clock start.
type VisitContext struct {
	VisitID   string // ULID, stable across the visit's log lines and spans
	VisitorID string // 16 lowercase hex chars, the Matomo _id format
	UserAgent string
	Started   time.Time
}

// NewVisitContext mints identity for one visit. The rand source drives both
// ids, so seeded runs produce reproducible visitor ids.
func NewVisitContext(rng *rand.Rand, userAgent string, started time.Time) VisitContext {
	return VisitContext{
		VisitID:   ulid.MustNew(ulid.Timestamp(started), rng).String(),
		VisitorID: randomHex(rng, visitorIDLen),
		UserAgent: userAgent,
		Started:   started,
	}
}

func randomHex(rng *rand.Rand, n int) string {
	const digits = "0123456789abcdef"
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = digits[rng.Intn(len(digits))]
	}
	return string(buf)
}

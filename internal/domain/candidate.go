package domain

import (
	"strings"
	"time"
)

// Candidate is a single post fetched from the origin feed. It is never persisted
// as-is; the ingestion pipeline and the moderator consume and discard it.
type Candidate struct {
	Channel   string
	Permalink string
	URL       string
	Score     int64
	Hidden    bool
	// Quarantined mirrors the channel-level quarantine flag.
	Quarantined bool
	Over18      bool
	// BannedBy is nil when the feed omits the marker and points at "" when it
	// is present but empty. Only a non-empty marker counts as a ban.
	BannedBy   *string
	Visibility string
	CreatedAt  time.Time
}

// BanMarked reports whether a moderator ban marker is present and non-empty.
func (c Candidate) BanMarked() bool {
	return c.BannedBy != nil && *c.BannedBy != ""
}

// Age returns how old the post is relative to now. Posts without a creation
// timestamp are treated as brand new.
func (c Candidate) Age(now time.Time) time.Duration {
	if c.CreatedAt.IsZero() {
		return 0
	}
	return now.Sub(c.CreatedAt)
}

// ListingOrder selects one of the feed's listing sorts.
type ListingOrder string

const (
	OrderHot ListingOrder = "hot"
	OrderNew ListingOrder = "new"
)

// ParseListingOrder normalizes a configured order name.
func ParseListingOrder(value string) (ListingOrder, bool) {
	switch ListingOrder(strings.ToLower(strings.TrimSpace(value))) {
	case OrderHot:
		return OrderHot, true
	case OrderNew:
		return OrderNew, true
	default:
		return "", false
	}
}

// Package eligibility decides whether a feed candidate may enter ingestion.
package eligibility

import (
	"strings"

	"BirbFetcher/internal/domain"
)

const (
	// DefaultHostPrefix is the only trusted media host.
	DefaultHostPrefix = "https://i.redd.it/"
	publicVisibility  = "public"
)

// DefaultExtensions are the accepted image and video suffixes.
var DefaultExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".gifv", ".webm"}

// Policy holds the URL allow-list. The zero value rejects every URL.
type Policy struct {
	HostPrefix string
	Extensions []string
}

// DefaultPolicy returns the allow-list used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		HostPrefix: DefaultHostPrefix,
		Extensions: append([]string(nil), DefaultExtensions...),
	}
}

// IsEligible is the negation of Ineligible.
func (p Policy) IsEligible(c domain.Candidate) bool {
	return !p.Ineligible(c)
}

// Ineligible reports whether any disqualifying condition holds.
func (p Policy) Ineligible(c domain.Candidate) bool {
	return c.Channel == "" ||
		c.URL == "" ||
		c.Hidden ||
		c.Quarantined ||
		c.BanMarked() ||
		c.Score < 1 ||
		c.Visibility != publicVisibility ||
		!p.URLAllowed(c.URL)
}

// URLAllowed applies the strict host prefix and extension allow-list.
func (p Policy) URLAllowed(url string) bool {
	if strings.TrimSpace(url) == "" || p.HostPrefix == "" {
		return false
	}
	if !strings.HasPrefix(url, p.HostPrefix) {
		return false
	}
	for _, ext := range p.Extensions {
		if ext != "" && strings.HasSuffix(url, ext) {
			return true
		}
	}
	return false
}

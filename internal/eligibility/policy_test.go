package eligibility

import (
	"testing"

	"BirbFetcher/internal/domain"
)

func strPtr(s string) *string { return &s }

func eligibleCandidate() domain.Candidate {
	return domain.Candidate{
		Channel:    "birbs",
		Permalink:  "/r/birbs/comments/abc/nice_birb/",
		URL:        "https://i.redd.it/x.png",
		Score:      10,
		Visibility: "public",
	}
}

func TestIsEligible(t *testing.T) {
	t.Parallel()

	policy := DefaultPolicy()

	cases := []struct {
		name   string
		mutate func(*domain.Candidate)
		want   bool
	}{
		{"baseline", func(*domain.Candidate) {}, true},
		{"ban marker absent", func(c *domain.Candidate) { c.BannedBy = nil }, true},
		{"ban marker empty", func(c *domain.Candidate) { c.BannedBy = strPtr("") }, true},
		{"ban marker set", func(c *domain.Candidate) { c.BannedBy = strPtr("moderator") }, false},
		{"empty channel", func(c *domain.Candidate) { c.Channel = "" }, false},
		{"empty url", func(c *domain.Candidate) { c.URL = "" }, false},
		{"blank url", func(c *domain.Candidate) { c.URL = "   " }, false},
		{"hidden", func(c *domain.Candidate) { c.Hidden = true }, false},
		{"quarantined", func(c *domain.Candidate) { c.Quarantined = true }, false},
		{"zero score", func(c *domain.Candidate) { c.Score = 0 }, false},
		{"negative score", func(c *domain.Candidate) { c.Score = -4 }, false},
		{"score of one", func(c *domain.Candidate) { c.Score = 1 }, true},
		{"restricted channel", func(c *domain.Candidate) { c.Visibility = "restricted" }, false},
		{"visibility is case sensitive", func(c *domain.Candidate) { c.Visibility = "Public" }, false},
		{"untrusted host", func(c *domain.Candidate) { c.URL = "https://imgur.com/x.png" }, false},
		{"http scheme", func(c *domain.Candidate) { c.URL = "http://i.redd.it/x.png" }, false},
		{"unknown extension", func(c *domain.Candidate) { c.URL = "https://i.redd.it/x.bmp" }, false},
		{"extension is case sensitive", func(c *domain.Candidate) { c.URL = "https://i.redd.it/x.PNG" }, false},
		{"gifv", func(c *domain.Candidate) { c.URL = "https://i.redd.it/x.gifv" }, true},
		{"webm", func(c *domain.Candidate) { c.URL = "https://i.redd.it/x.webm" }, true},
		{"over18 is not a filter criterion", func(c *domain.Candidate) { c.Over18 = true }, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			candidate := eligibleCandidate()
			tc.mutate(&candidate)
			if got := policy.IsEligible(candidate); got != tc.want {
				t.Fatalf("IsEligible = %v, want %v (candidate %+v)", got, tc.want, candidate)
			}
			if policy.Ineligible(candidate) == tc.want {
				t.Fatalf("Ineligible must be the negation of IsEligible")
			}
		})
	}
}

func TestZeroPolicyRejectsEverything(t *testing.T) {
	t.Parallel()

	if (Policy{}).IsEligible(eligibleCandidate()) {
		t.Fatal("zero policy must reject all urls")
	}
}

func TestCustomPolicy(t *testing.T) {
	t.Parallel()

	policy := Policy{HostPrefix: "https://cdn.example.org/", Extensions: []string{".avif"}}
	candidate := eligibleCandidate()
	candidate.URL = "https://cdn.example.org/a/b.avif"
	if !policy.IsEligible(candidate) {
		t.Fatal("expected custom allow-list to accept url")
	}
}

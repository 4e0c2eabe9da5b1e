package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"BirbFetcher/internal/domain"
	"BirbFetcher/internal/eligibility"
	"BirbFetcher/internal/metrics"
	"BirbFetcher/internal/ports"
)

const (
	DefaultMinScore     int64 = 128
	DefaultMinAge             = 60 * 24 * time.Hour
	DefaultFastInterval       = 5 * time.Second
	DefaultCooldown           = 30 * time.Minute
)

// Rules are the thresholds a re-fetched post is judged against.
type Rules struct {
	MinScore int64
	MinAge   time.Duration
	Policy   eligibility.Policy
}

// DefaultRules verifies at a score of 128 or an age of 60 days.
func DefaultRules() Rules {
	return Rules{
		MinScore: DefaultMinScore,
		MinAge:   DefaultMinAge,
		Policy:   eligibility.DefaultPolicy(),
	}
}

// Evaluate decides the new state of a pending item from a fresh copy of its
// post. found=false means the origin no longer has the post. The boolean
// result is false when the item should stay pending.
func Evaluate(candidate domain.Candidate, found bool, now time.Time, rules Rules) (domain.State, bool) {
	if !found {
		return domain.StateBanned, true
	}
	if rules.Policy.Ineligible(candidate) ||
		candidate.Over18 ||
		candidate.Quarantined ||
		candidate.BanMarked() ||
		candidate.Hidden {
		return domain.StateBanned, true
	}
	if candidate.Score >= rules.MinScore || candidate.Age(now) >= rules.MinAge {
		return domain.StateVerified, true
	}
	return domain.StatePending, false
}

// ModeratorDeps wires the re-check loop.
type ModeratorDeps struct {
	Repository   ports.ItemRepository
	Feed         ports.FeedClient
	Rules        Rules
	FastInterval time.Duration
	Cooldown     time.Duration
	Logger       *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Moderator walks pending items in id order, one per tick, and re-checks each
// against the origin feed. The cursor lives in memory only; a restart begins
// a fresh sweep.
type Moderator struct {
	repository   ports.ItemRepository
	feed         ports.FeedClient
	rules        Rules
	fastInterval time.Duration
	cooldown     time.Duration
	logger       *slog.Logger
	now          func() time.Time

	cursor int64
}

func NewModerator(deps ModeratorDeps) *Moderator {
	m := &Moderator{
		repository:   deps.Repository,
		feed:         deps.Feed,
		rules:        deps.Rules,
		fastInterval: deps.FastInterval,
		cooldown:     deps.Cooldown,
		logger:       deps.Logger,
		now:          deps.Now,
	}
	if m.fastInterval <= 0 {
		m.fastInterval = DefaultFastInterval
	}
	if m.cooldown <= 0 {
		m.cooldown = DefaultCooldown
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Cursor returns the id of the last item examined in the current sweep.
func (m *Moderator) Cursor() int64 {
	return m.cursor
}

// Tick re-checks the next pending item and returns the delay before the next
// tick. Tick is not safe for concurrent use; a single loop drives it.
func (m *Moderator) Tick(ctx context.Context) time.Duration {
	ref, err := m.repository.NextPendingAfter(ctx, m.cursor)
	if err != nil {
		metrics.ModerationErrors.Inc()
		m.logger.Warn("query next pending item failed", "cursor", m.cursor, "err", err)
		return m.fastInterval
	}
	if ref == nil {
		if m.cursor != 0 {
			metrics.ModerationSweeps.Inc()
			m.logger.Debug("moderation sweep complete", "last_id", m.cursor, "cooldown", m.cooldown)
		}
		m.cursor = 0
		return m.cooldown
	}

	// advance first so a failing item cannot stall the sweep
	m.cursor = ref.ID
	m.check(ctx, *ref)
	return m.fastInterval
}

func (m *Moderator) check(ctx context.Context, ref domain.PendingRef) {
	candidate, err := m.feed.FetchOne(ctx, ref.Permalink)
	found := true
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			metrics.ModerationErrors.Inc()
			m.logger.Warn("re-fetch failed", "id", ref.ID, "permalink", ref.Permalink, "err", err)
			return
		}
		found = false
	}

	state, changed := Evaluate(candidate, found, m.now(), m.rules)
	if !changed {
		metrics.ModerationDecisions.WithLabelValues("kept").Inc()
		m.logger.Debug("item stays pending", "id", ref.ID, "score", candidate.Score)
		return
	}

	if err := m.repository.Transition(ctx, ref.ID, state); err != nil {
		metrics.ModerationErrors.Inc()
		m.logger.Warn("persist transition failed", "id", ref.ID, "state", state, "err", err)
		return
	}
	metrics.ModerationDecisions.WithLabelValues(string(state)).Inc()
	m.logger.Info("item moderated", "id", ref.ID, "state", state, "found", found, "permalink", ref.Permalink)
}

package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"BirbFetcher/internal/domain"
	"BirbFetcher/internal/eligibility"
	"BirbFetcher/internal/logging"
)

type pipelineFixture struct {
	feed     *fakeFeed
	fetcher  *fakeFetcher
	store    *fakeStore
	repo     *fakeRepo
	notifier *fakeNotifier
	pipeline *Pipeline
}

func newPipelineFixture(channels ...string) *pipelineFixture {
	f := &pipelineFixture{
		feed: &fakeFeed{
			listings: map[string][]domain.Candidate{},
			failing:  map[string]error{},
		},
		fetcher:  &fakeFetcher{payloads: map[string]string{}, errs: map[string]error{}},
		store:    newFakeStore(),
		repo:     newFakeRepo(),
		notifier: &fakeNotifier{},
	}
	f.pipeline = NewPipeline(PipelineDeps{
		Feed:       f.feed,
		Fetcher:    f.fetcher,
		Store:      f.store,
		Repository: f.repo,
		Notifier:   f.notifier,
		Policy:     eligibility.DefaultPolicy(),
		Channels:   channels,
		Logger:     logging.Discard(),
	})
	return f
}

func (f *pipelineFixture) list(key string, candidates ...domain.Candidate) {
	f.feed.listings[key] = append(f.feed.listings[key], candidates...)
	for _, c := range candidates {
		if _, ok := f.fetcher.payloads[c.URL]; !ok {
			f.fetcher.payloads[c.URL] = "bytes of " + c.URL
		}
	}
}

func TestRunCycleIngestsEligibleCandidates(t *testing.T) {
	f := newPipelineFixture("birbs", "parrots")

	banned := eligibleCandidate("banned")
	mod := "moderator"
	banned.BannedBy = &mod

	f.list("birbs/hot", eligibleCandidate("a"), banned)
	f.list("parrots/new", eligibleCandidate("b"))

	report := f.pipeline.RunCycle(context.Background())

	assert.Equal(t, Report{Fetched: 3, Eligible: 2, Ingested: 2}, report)
	assert.ElementsMatch(t, []string{"birbs/hot", "birbs/new", "parrots/hot", "parrots/new"}, f.feed.listed)
	assert.Len(t, f.repo.items, 2)
	assert.Len(t, f.store.blobs, 2)
	require.Len(t, f.notifier.announced, 2)
	for _, item := range f.repo.items {
		assert.Equal(t, domain.StatePending, item.State)
		assert.Equal(t, "birbs", item.Channel)
	}
}

func TestRunCycleSkipsDuplicates(t *testing.T) {
	f := newPipelineFixture("birbs")

	// same bytes behind two different posts
	first := eligibleCandidate("first")
	second := eligibleCandidate("second")
	f.list("birbs/hot", first, second)
	f.fetcher.payloads[second.URL] = f.fetcher.payloads[first.URL]

	report := f.pipeline.RunCycle(context.Background())
	assert.Equal(t, 1, report.Ingested)
	assert.Equal(t, 1, report.Duplicates)
	assert.Zero(t, report.Failed)
	assert.Len(t, f.repo.items, 1)

	// a second cycle finds everything already stored
	report = f.pipeline.RunCycle(context.Background())
	assert.Zero(t, report.Ingested)
	assert.Equal(t, 2, report.Duplicates)
	assert.Len(t, f.repo.items, 1)
}

func TestRunCycleCountsOverlappingListingsOnce(t *testing.T) {
	f := newPipelineFixture("birbs")

	c := eligibleCandidate("both")
	f.list("birbs/hot", c)
	f.list("birbs/new", c)

	report := f.pipeline.RunCycle(context.Background())
	assert.Equal(t, Report{Fetched: 2, Eligible: 1, Ingested: 1}, report)
}

func TestRunCycleTreatsInsertConflictAsDuplicate(t *testing.T) {
	f := newPipelineFixture("birbs")
	f.list("birbs/hot", eligibleCandidate("raced"))
	f.repo.insertErr = domain.Wrap(domain.ErrDuplicate, "insert", nil)

	report := f.pipeline.RunCycle(context.Background())
	assert.Equal(t, 1, report.Duplicates)
	assert.Zero(t, report.Failed)
	assert.Empty(t, f.notifier.announced)
}

func TestRunCycleIsolatesFailures(t *testing.T) {
	f := newPipelineFixture("birbs", "broken")

	bad := eligibleCandidate("bad")
	f.list("birbs/hot", bad, eligibleCandidate("good"))
	f.fetcher.errs[bad.URL] = domain.Wrap(domain.ErrTooLarge, "fetch", nil)
	f.feed.failing["broken/hot"] = domain.Wrap(domain.ErrNetwork, "list", errors.New("connection reset"))
	f.feed.failing["broken/new"] = domain.Wrap(domain.ErrNetwork, "list", errors.New("connection reset"))
	f.notifier.err = errors.New("telegram down")

	report := f.pipeline.RunCycle(context.Background())
	assert.Equal(t, Report{Fetched: 2, Eligible: 2, Ingested: 1, Failed: 1}, report)
	assert.Len(t, f.repo.items, 1)
}

func TestRunCycleStorageFailure(t *testing.T) {
	f := newPipelineFixture("birbs")
	f.list("birbs/hot", eligibleCandidate("x"), eligibleCandidate("y"))
	f.store.writeErr = domain.Wrap(domain.ErrStorageIO, "write", errors.New("disk full"))

	report := f.pipeline.RunCycle(context.Background())
	assert.Equal(t, 2, report.Failed)
	assert.Empty(t, f.repo.items)
}

func TestRunCycleToleratesConcurrentBlobWrite(t *testing.T) {
	f := newPipelineFixture("birbs")
	c := eligibleCandidate("late")
	f.list("birbs/hot", c)
	f.store.writeErr = domain.Wrap(domain.ErrAlreadyExists, "write", nil)

	report := f.pipeline.RunCycle(context.Background())
	assert.Equal(t, 1, report.Ingested)
	assert.Len(t, f.repo.items, 1)
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"BirbFetcher/internal/domain"
	"BirbFetcher/internal/eligibility"
	"BirbFetcher/internal/metrics"
	"BirbFetcher/internal/ports"
)

// PipelineDeps wires all driven adapters into the ingestion pipeline.
type PipelineDeps struct {
	Feed       ports.FeedClient
	Fetcher    ports.ContentFetcher
	Store      ports.ContentStore
	Repository ports.ItemRepository
	// Notifier is optional.
	Notifier ports.Notifier
	Policy   eligibility.Policy
	Channels []string
	Orders   []domain.ListingOrder
	Logger   *slog.Logger
}

// Pipeline implements the harvest workflow: list, filter, fetch, dedupe, store.
type Pipeline struct {
	feed       ports.FeedClient
	fetcher    ports.ContentFetcher
	store      ports.ContentStore
	repository ports.ItemRepository
	notifier   ports.Notifier
	policy     eligibility.Policy
	channels   []string
	orders     []domain.ListingOrder
	logger     *slog.Logger
}

// Report summarizes one ingestion cycle.
type Report struct {
	Fetched    int
	Eligible   int
	Ingested   int
	Duplicates int
	Failed     int
}

// NewPipeline constructs the orchestration component. Orders default to hot
// and new.
func NewPipeline(deps PipelineDeps) *Pipeline {
	orders := deps.Orders
	if len(orders) == 0 {
		orders = []domain.ListingOrder{domain.OrderHot, domain.OrderNew}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		feed:       deps.Feed,
		fetcher:    deps.Fetcher,
		store:      deps.Store,
		repository: deps.Repository,
		notifier:   deps.Notifier,
		policy:     deps.Policy,
		channels:   deps.Channels,
		orders:     orders,
		logger:     logger,
	}
}

// RunCycle performs one full pass over every channel and order. Failures of a
// single listing or a single candidate are logged and counted; they never
// abort the cycle.
func (p *Pipeline) RunCycle(ctx context.Context) Report {
	started := time.Now()
	var report Report

	candidates := p.collect(ctx, &report)

	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			break
		}
		if !p.policy.IsEligible(candidate) {
			metrics.CandidatesIneligible.Inc()
			continue
		}
		// hot and new overlap heavily
		if _, ok := seen[candidate.URL]; ok {
			continue
		}
		seen[candidate.URL] = struct{}{}
		report.Eligible++

		duplicate, err := p.ingest(ctx, candidate)
		switch {
		case err != nil:
			report.Failed++
			metrics.IngestOutcomes.WithLabelValues("failed").Inc()
			p.logger.Warn("ingest candidate failed",
				"permalink", candidate.Permalink,
				"url", candidate.URL,
				"err", err)
		case duplicate:
			report.Duplicates++
			metrics.IngestOutcomes.WithLabelValues("duplicate").Inc()
		default:
			report.Ingested++
			metrics.IngestOutcomes.WithLabelValues("ingested").Inc()
		}
	}

	metrics.CycleDuration.Observe(time.Since(started).Seconds())
	p.logger.Info("ingestion cycle finished",
		"fetched", report.Fetched,
		"eligible", report.Eligible,
		"ingested", report.Ingested,
		"duplicates", report.Duplicates,
		"failed", report.Failed,
		"took", time.Since(started).Round(time.Millisecond))
	return report
}

func (p *Pipeline) collect(ctx context.Context, report *Report) []domain.Candidate {
	var all []domain.Candidate
	for _, channel := range p.channels {
		for _, order := range p.orders {
			if ctx.Err() != nil {
				return all
			}
			listed, err := p.feed.ListChannel(ctx, channel, order)
			if err != nil {
				metrics.ListingFailures.WithLabelValues(channel).Inc()
				p.logger.Warn("list channel failed", "channel", channel, "order", order, "err", err)
				continue
			}
			metrics.CandidatesFetched.WithLabelValues(channel).Add(float64(len(listed)))
			report.Fetched += len(listed)
			all = append(all, listed...)
		}
	}
	return all
}

// ingest runs the per-candidate sequence. It reports duplicate=true when the
// payload is already known, either to the blob store or to the repository.
func (p *Pipeline) ingest(ctx context.Context, candidate domain.Candidate) (bool, error) {
	content, err := p.fetcher.Fetch(ctx, candidate.URL)
	if err != nil {
		return false, err
	}

	digest := domain.SumDigest(content.Bytes)

	exists, err := p.store.Exists(ctx, digest)
	if err != nil {
		return false, err
	}
	if exists {
		p.logger.Debug("skipping known blob", "digest", digest.Hex(), "permalink", candidate.Permalink)
		return true, nil
	}

	if err := p.store.Write(ctx, digest, content.Bytes); err != nil {
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return false, err
		}
		// another cycle won the race for the blob; the insert below decides
		p.logger.Debug("blob appeared concurrently", "digest", digest.Hex())
	} else {
		metrics.BytesStored.Add(float64(len(content.Bytes)))
	}

	item := domain.NewItem{
		Digest:      digest,
		Permalink:   candidate.Permalink,
		SourceURL:   candidate.URL,
		ContentType: content.ContentType,
		Channel:     candidate.Channel,
	}
	id, err := p.repository.Insert(ctx, item)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicate) {
			p.logger.Debug("digest already recorded", "digest", digest.Hex(), "permalink", candidate.Permalink)
			return true, nil
		}
		return false, fmt.Errorf("record %s: %w", candidate.Permalink, err)
	}

	p.logger.Info("ingested item",
		"id", id,
		"digest", digest.Hex(),
		"channel", candidate.Channel,
		"content_type", content.ContentType)

	if p.notifier != nil {
		announced := domain.Item{
			ID:          id,
			Digest:      digest,
			Permalink:   item.Permalink,
			SourceURL:   item.SourceURL,
			ContentType: item.ContentType,
			Channel:     item.Channel,
			State:       domain.StatePending,
		}
		if err := p.notifier.AnnounceItem(ctx, announced); err != nil {
			p.logger.Warn("announce item failed", "id", id, "err", err)
		}
	}
	return false, nil
}

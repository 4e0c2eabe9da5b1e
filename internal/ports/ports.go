package ports

import (
	"context"
	"time"

	"BirbFetcher/internal/domain"
)

// FeedClient pulls candidate posts from the origin feed.
type FeedClient interface {
	ListChannel(ctx context.Context, channel string, order domain.ListingOrder) ([]domain.Candidate, error)
	FetchOne(ctx context.Context, permalink string) (domain.Candidate, error)
}

// ContentFetcher downloads the media a candidate points at.
type ContentFetcher interface {
	Fetch(ctx context.Context, url string) (domain.Content, error)
}

// ContentStore is a content-addressed blob store keyed by digest.
type ContentStore interface {
	Exists(ctx context.Context, digest domain.Digest) (bool, error)
	Write(ctx context.Context, digest domain.Digest, payload []byte) error
	Read(ctx context.Context, digest domain.Digest) ([]byte, error)
}

// ItemRepository persists ingested items and their moderation state.
type ItemRepository interface {
	Insert(ctx context.Context, item domain.NewItem) (int64, error)
	Transition(ctx context.Context, id int64, state domain.State) error
	NextPendingAfter(ctx context.Context, id int64) (*domain.PendingRef, error)
}

// ItemReader is the read surface consumed by the serving layer.
type ItemReader interface {
	Get(ctx context.Context, id int64) (domain.Item, error)
	Random(ctx context.Context) (domain.Item, error)
	Info(ctx context.Context, id int64) (domain.Item, error)
}

// Notifier announces freshly ingested items to moderators.
type Notifier interface {
	AnnounceItem(ctx context.Context, item domain.Item) error
}

// Job is one periodic unit of work. It returns how long to wait before the
// next run.
type Job func(ctx context.Context, trigger time.Time) time.Duration

// Scheduler drives a Job until the context is cancelled.
type Scheduler interface {
	Run(ctx context.Context, job Job) error
}

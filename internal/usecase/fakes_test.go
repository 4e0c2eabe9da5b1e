package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"BirbFetcher/internal/domain"
)

type fakeFeed struct {
	listings map[string][]domain.Candidate // key: channel/order
	failing  map[string]error
	posts    map[string]domain.Candidate
	fetchErr map[string]error
	listed   []string
}

func (f *fakeFeed) ListChannel(_ context.Context, channel string, order domain.ListingOrder) ([]domain.Candidate, error) {
	key := channel + "/" + string(order)
	f.listed = append(f.listed, key)
	if err, ok := f.failing[key]; ok {
		return nil, err
	}
	return f.listings[key], nil
}

func (f *fakeFeed) FetchOne(_ context.Context, permalink string) (domain.Candidate, error) {
	if err, ok := f.fetchErr[permalink]; ok {
		return domain.Candidate{}, err
	}
	post, ok := f.posts[permalink]
	if !ok {
		return domain.Candidate{}, domain.Wrap(domain.ErrNotFound, "fetch "+permalink, nil)
	}
	return post, nil
}

type fakeFetcher struct {
	payloads map[string]string
	errs     map[string]error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (domain.Content, error) {
	if err, ok := f.errs[url]; ok {
		return domain.Content{}, err
	}
	payload, ok := f.payloads[url]
	if !ok {
		return domain.Content{}, fmt.Errorf("no payload for %s", url)
	}
	return domain.Content{Bytes: []byte(payload), ContentType: "image/png", FinalURL: url}, nil
}

type fakeStore struct {
	mu       sync.Mutex
	blobs    map[domain.Digest][]byte
	writeErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{blobs: map[domain.Digest][]byte{}}
}

func (s *fakeStore) Exists(_ context.Context, d domain.Digest) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[d]
	return ok, nil
}

func (s *fakeStore) Write(_ context.Context, d domain.Digest, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	if _, ok := s.blobs[d]; ok {
		return domain.Wrap(domain.ErrAlreadyExists, "write", nil)
	}
	s.blobs[d] = append([]byte(nil), payload...)
	return nil
}

func (s *fakeStore) Read(_ context.Context, d domain.Digest) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	payload, ok := s.blobs[d]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return payload, nil
}

type fakeRepo struct {
	mu            sync.Mutex
	items         map[int64]domain.Item
	nextID        int64
	insertErr     error
	transitionErr error
	queryErr      error
	queries       []int64
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{items: map[int64]domain.Item{}}
}

func (r *fakeRepo) Insert(_ context.Context, item domain.NewItem) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return 0, r.insertErr
	}
	for _, existing := range r.items {
		if existing.Digest == item.Digest {
			return 0, domain.Wrap(domain.ErrDuplicate, "insert", nil)
		}
	}
	r.nextID++
	r.items[r.nextID] = domain.Item{
		ID:          r.nextID,
		Digest:      item.Digest,
		Permalink:   item.Permalink,
		SourceURL:   item.SourceURL,
		ContentType: item.ContentType,
		Channel:     item.Channel,
		State:       domain.StatePending,
	}
	return r.nextID, nil
}

func (r *fakeRepo) Transition(_ context.Context, id int64, state domain.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transitionErr != nil {
		return r.transitionErr
	}
	item, ok := r.items[id]
	if !ok {
		return domain.ErrNotFound
	}
	item.State = state
	r.items[id] = item
	return nil
}

func (r *fakeRepo) NextPendingAfter(_ context.Context, id int64) (*domain.PendingRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, id)
	if r.queryErr != nil {
		return nil, r.queryErr
	}
	ids := make([]int64, 0, len(r.items))
	for itemID, item := range r.items {
		if item.State == domain.StatePending && itemID > id {
			ids = append(ids, itemID)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	item := r.items[ids[0]]
	return &domain.PendingRef{ID: item.ID, Permalink: item.Permalink}, nil
}

func (r *fakeRepo) seed(permalink string, state domain.State) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.items[r.nextID] = domain.Item{
		ID:        r.nextID,
		Digest:    domain.SumDigest([]byte(permalink)),
		Permalink: permalink,
		State:     state,
	}
	return r.nextID
}

func (r *fakeRepo) state(id int64) domain.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id].State
}

type fakeNotifier struct {
	announced []domain.Item
	err       error
}

func (n *fakeNotifier) AnnounceItem(_ context.Context, item domain.Item) error {
	n.announced = append(n.announced, item)
	return n.err
}

func eligibleCandidate(seed string) domain.Candidate {
	return domain.Candidate{
		Channel:    "birbs",
		Permalink:  "/r/birbs/comments/" + seed + "/",
		URL:        "https://i.redd.it/" + seed + ".png",
		Score:      10,
		Visibility: "public",
	}
}

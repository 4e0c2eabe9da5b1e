// Package reddit implements the feed client against Reddit's public JSON
// listings.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"BirbFetcher/internal/domain"
	"BirbFetcher/internal/ports"
)

const (
	defaultBaseURL   = "https://www.reddit.com"
	defaultUserAgent = "Mozilla/5.0 birbfetcher/bot"
	defaultLimit     = 100
	maxResponseBytes = 8 << 20
)

// Client fetches listings and single posts.
type Client struct {
	client    *http.Client
	baseURL   string
	userAgent string
	limit     int
	logger    *slog.Logger
}

var _ ports.FeedClient = (*Client)(nil)

// Options configures NewClient. Empty fields fall back to defaults.
type Options struct {
	BaseURL   string
	UserAgent string
	Limit     int
}

// NewClient wires an HTTP client; a nil client gets a plain one with a timeout.
func NewClient(client *http.Client, opts Options, logger *slog.Logger) *Client {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		client:    client,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		userAgent: opts.UserAgent,
		limit:     opts.Limit,
		logger:    logger,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.userAgent == "" {
		c.userAgent = defaultUserAgent
	}
	if c.limit <= 0 || c.limit > defaultLimit {
		c.limit = defaultLimit
	}
	return c
}

// ListChannel returns the posts of one channel in the given order.
func (c *Client) ListChannel(ctx context.Context, channel string, order domain.ListingOrder) ([]domain.Candidate, error) {
	endpoint, err := c.listingURL(channel, order)
	if err != nil {
		return nil, err
	}
	op := fmt.Sprintf("list %s/%s", channel, order)

	c.logger.Debug("requesting listing", "channel", channel, "order", order)
	var body listing
	if err := c.getJSON(ctx, op, endpoint, &body); err != nil {
		return nil, err
	}

	candidates := make([]domain.Candidate, 0, len(body.Data.Children))
	for _, child := range body.Data.Children {
		candidates = append(candidates, child.Data.toCandidate())
	}
	c.logger.Debug("listing fetched", "channel", channel, "order", order, "posts", len(candidates))
	return candidates, nil
}

// FetchOne re-fetches a single post by permalink. A missing post yields
// domain.ErrNotFound.
func (c *Client) FetchOne(ctx context.Context, permalink string) (domain.Candidate, error) {
	endpoint, err := c.postURL(permalink)
	if err != nil {
		return domain.Candidate{}, err
	}
	op := "fetch " + permalink

	// the post endpoint answers with [post listing, comment listing]
	var body []listing
	if err := c.getJSON(ctx, op, endpoint, &body); err != nil {
		return domain.Candidate{}, err
	}
	if len(body) == 0 || len(body[0].Data.Children) == 0 {
		return domain.Candidate{}, domain.Wrap(domain.ErrNotFound, op, nil)
	}
	return body[0].Data.Children[0].Data.toCandidate(), nil
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.Wrap(domain.ErrNetwork, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s: %w", op, &domain.StatusError{Code: resp.StatusCode, URL: endpoint})
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(v); err != nil {
		return domain.Wrap(domain.ErrDeserialize, op, err)
	}
	return nil
}

func (c *Client) listingURL(channel string, order domain.ListingOrder) (string, error) {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return "", fmt.Errorf("channel name is empty")
	}
	if _, ok := domain.ParseListingOrder(string(order)); !ok {
		return "", fmt.Errorf("unknown listing order %q", order)
	}

	parsed, err := url.Parse(c.baseURL + "/r/" + url.PathEscape(channel) + "/" + string(order) + ".json")
	if err != nil {
		return "", fmt.Errorf("invalid feed url: %w", err)
	}
	query := parsed.Query()
	query.Set("limit", strconv.Itoa(c.limit))
	query.Set("raw_json", "1")
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

func (c *Client) postURL(permalink string) (string, error) {
	permalink = strings.TrimSpace(permalink)
	if !strings.HasPrefix(permalink, "/") {
		return "", fmt.Errorf("permalink %q must be site-relative", permalink)
	}

	parsed, err := url.Parse(c.baseURL + strings.TrimRight(permalink, "/") + ".json")
	if err != nil {
		return "", fmt.Errorf("invalid permalink %q: %w", permalink, err)
	}
	query := parsed.Query()
	query.Set("raw_json", "1")
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

type listing struct {
	Data struct {
		Children []struct {
			Data post `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type post struct {
	Subreddit     string  `json:"subreddit"`
	Permalink     string  `json:"permalink"`
	URL           string  `json:"url"`
	Score         int64   `json:"score"`
	Hidden        bool    `json:"hidden"`
	Quarantine    bool    `json:"quarantine"`
	Over18        bool    `json:"over_18"`
	BannedBy      *string `json:"banned_by"`
	SubredditType string  `json:"subreddit_type"`
	CreatedUTC    float64 `json:"created_utc"`
}

func (p post) toCandidate() domain.Candidate {
	c := domain.Candidate{
		Channel:     p.Subreddit,
		Permalink:   p.Permalink,
		URL:         p.URL,
		Score:       p.Score,
		Hidden:      p.Hidden,
		Quarantined: p.Quarantine,
		Over18:      p.Over18,
		BannedBy:    p.BannedBy,
		Visibility:  p.SubredditType,
	}
	if p.CreatedUTC > 0 {
		sec, frac := math.Modf(p.CreatedUTC)
		c.CreatedAt = time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	return c
}

// Package media downloads the payload a candidate links to.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"BirbFetcher/internal/domain"
	"BirbFetcher/internal/eligibility"
	"BirbFetcher/internal/ports"
)

// DefaultMaxBytes caps a single payload at 16 MiB.
const DefaultMaxBytes int64 = 16 << 20

// Fetcher downloads media, following at most one HTML wrapper page (the
// .gifv case) to the video it embeds. The embedded target must pass the same
// URL allow-list as the candidate itself.
type Fetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	policy    eligibility.Policy
	logger    *slog.Logger
}

var _ ports.ContentFetcher = (*Fetcher)(nil)

// NewFetcher wires an HTTP client; maxBytes <= 0 means DefaultMaxBytes. The
// zero Policy rejects every wrapper page target.
func NewFetcher(client *http.Client, userAgent string, maxBytes int64, policy eligibility.Policy, logger *slog.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{client: client, userAgent: userAgent, maxBytes: maxBytes, policy: policy, logger: logger}
}

// Fetch downloads rawURL. Responses without a content type fail with
// domain.ErrInvalidContentType, oversized ones with domain.ErrTooLarge.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (domain.Content, error) {
	content, err := f.get(ctx, rawURL)
	if err != nil {
		return domain.Content{}, err
	}
	if !isHTML(content.ContentType) {
		return content, nil
	}

	target, err := resolveEmbedded(content)
	if err != nil {
		return domain.Content{}, err
	}
	if !f.policy.URLAllowed(target) {
		return domain.Content{}, domain.Wrap(domain.ErrInvalidContentType, "fetch "+rawURL, fmt.Errorf("embedded media %s is outside the allow-list", target))
	}
	f.logger.Debug("resolved wrapper page", "url", rawURL, "media", target)

	resolved, err := f.get(ctx, target)
	if err != nil {
		return domain.Content{}, err
	}
	if isHTML(resolved.ContentType) {
		return domain.Content{}, domain.Wrap(domain.ErrInvalidContentType, "fetch "+target, fmt.Errorf("wrapper page points at another page"))
	}
	return resolved, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL string) (domain.Content, error) {
	op := "fetch " + rawURL

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return domain.Content{}, fmt.Errorf("%s: build request: %w", op, err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Content{}, domain.Wrap(domain.ErrNetwork, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return domain.Content{}, fmt.Errorf("%s: %w", op, &domain.StatusError{Code: resp.StatusCode, URL: rawURL})
	}

	contentType := strings.TrimSpace(resp.Header.Get("Content-Type"))
	if contentType == "" {
		return domain.Content{}, domain.Wrap(domain.ErrInvalidContentType, op, fmt.Errorf("response has no content type"))
	}
	if resp.ContentLength > f.maxBytes {
		return domain.Content{}, domain.Wrap(domain.ErrTooLarge, op, fmt.Errorf("declared %d bytes, limit %d", resp.ContentLength, f.maxBytes))
	}

	// one byte past the limit is enough to tell an oversized body apart
	payload, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return domain.Content{}, domain.Wrap(domain.ErrNetwork, op, err)
	}
	if int64(len(payload)) > f.maxBytes {
		return domain.Content{}, domain.Wrap(domain.ErrTooLarge, op, fmt.Errorf("body exceeds %d bytes", f.maxBytes))
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return domain.Content{Bytes: payload, ContentType: contentType, FinalURL: finalURL}, nil
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// resolveEmbedded picks the video a wrapper page embeds, preferring the
// og:video meta tags over inline <video> sources.
func resolveEmbedded(page domain.Content) (string, error) {
	op := "resolve " + page.FinalURL

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(page.Bytes)))
	if err != nil {
		return "", domain.Wrap(domain.ErrDeserialize, op, err)
	}

	var candidates []string
	for _, selector := range []string{
		`meta[property="og:video:secure_url"]`,
		`meta[property="og:video"]`,
		`meta[property="og:video:url"]`,
	} {
		if value, ok := doc.Find(selector).First().Attr("content"); ok {
			candidates = append(candidates, value)
		}
	}
	doc.Find("video source[src], video[src]").Each(func(_ int, s *goquery.Selection) {
		if value, ok := s.Attr("src"); ok {
			candidates = append(candidates, value)
		}
	})

	base, err := url.Parse(page.FinalURL)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		ref, err := url.Parse(candidate)
		if err != nil {
			continue
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			continue
		}
		return resolved.String(), nil
	}

	return "", domain.Wrap(domain.ErrInvalidContentType, op, fmt.Errorf("html page embeds no video"))
}

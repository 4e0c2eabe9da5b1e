package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"BirbFetcher/internal/domain"
	"BirbFetcher/internal/ports"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	permalinkHost  = "https://www.reddit.com"
)

// Notifier tells a moderator chat about freshly ingested items via the bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string) *Notifier {
	return &Notifier{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// WithAPIBase points the notifier at another bot API host.
func (n *Notifier) WithAPIBase(base string) *Notifier {
	n.apiBase = strings.TrimRight(base, "/")
	return n
}

// WithClient replaces the HTTP client.
func (n *Notifier) WithClient(client *http.Client) *Notifier {
	if client != nil {
		n.client = client
	}
	return n
}

// AnnounceItem posts a short review prompt for a new pending item.
func (n *Notifier) AnnounceItem(ctx context.Context, item domain.Item) error {
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", FormatAnnouncement(item))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		// the endpoint embeds the token, keep it out of the error
		return fmt.Errorf("new telegram request failed")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return domain.Wrap(domain.ErrNetwork, "telegram sendMessage", redact(err, n.botToken))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram sendMessage: %w", &domain.StatusError{Code: resp.StatusCode, URL: n.apiBase})
	}

	return nil
}

// FormatAnnouncement renders the plain-text message for item.
func FormatAnnouncement(item domain.Item) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New birb #%d", item.ID)
	if item.Channel != "" {
		fmt.Fprintf(&b, " from r/%s", item.Channel)
	}
	b.WriteString("\n")
	if item.Permalink != "" {
		b.WriteString(permalinkHost + item.Permalink + "\n")
	}
	b.WriteString(item.SourceURL + "\n")
	fmt.Fprintf(&b, "digest %s\n", item.Digest.Hex())
	fmt.Fprintf(&b, "birbfetcher verify %d | birbfetcher ban %d", item.ID, item.ID)
	return b.String()
}

func redact(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return errors.New(strings.ReplaceAll(err.Error(), token, "<redacted>"))
}

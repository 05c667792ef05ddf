// Package notice records non-blocking failure notices for the map UI and
// optionally forwards them to a webhook.
package notice

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crime-map/internal/config"
)

// Source identifies the data source a notice is about.
type Source string

const (
	SourceCalls      Source = "calls"
	SourceRegions    Source = "regions"
	SourceBoundaries Source = "boundaries"
)

// Notice is a single user-facing failure message.
type Notice struct {
	Source    Source         `json:"source"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Notifier keeps the most recent notices and posts new ones to the
// configured webhook without blocking the caller.
type Notifier struct {
	cfg    config.NotifyConfig
	client *http.Client

	mu      sync.Mutex
	notices []Notice
	wg      sync.WaitGroup
}

// NewNotifier creates a Notifier. MaxNotices defaults to 50.
func NewNotifier(cfg config.NotifyConfig) *Notifier {
	if cfg.MaxNotices <= 0 {
		cfg.MaxNotices = 50
	}
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Warn records a warning about a failed data source.
func (n *Notifier) Warn(source Source, message string, err error) {
	details := map[string]any{}
	if err != nil {
		details["error"] = err.Error()
	}
	n.Add(Notice{
		Source:   source,
		Severity: "warning",
		Message:  message,
		Details:  details,
	})
}

// Add records a notice. A nil Notifier drops it.
func (n *Notifier) Add(nt Notice) {
	if n == nil {
		return
	}
	if nt.Timestamp.IsZero() {
		nt.Timestamp = time.Now().UTC()
	}

	n.mu.Lock()
	n.notices = append(n.notices, nt)
	if over := len(n.notices) - n.cfg.MaxNotices; over > 0 {
		n.notices = append([]Notice(nil), n.notices[over:]...)
	}
	n.mu.Unlock()

	if n.cfg.WebhookURL == "" {
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), n.client.Timeout)
		defer cancel()
		if err := n.sendWebhook(ctx, nt); err != nil {
			zap.L().Error("notice: failed to send webhook",
				zap.String("source", string(nt.Source)),
				zap.Error(err),
			)
		}
	}()
}

// Recent returns the retained notices, oldest first.
func (n *Notifier) Recent() []Notice {
	if n == nil {
		return nil
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notice(nil), n.notices...)
}

// Flush waits for pending webhook deliveries.
func (n *Notifier) Flush() {
	if n == nil {
		return
	}
	n.wg.Wait()
}

// sendWebhook posts a single notice to the webhook URL.
func (n *Notifier) sendWebhook(ctx context.Context, nt Notice) error {
	payload, err := json.Marshal(nt)
	if err != nil {
		return eris.Wrap(err, "notice: marshal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notice: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "notice: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("notice: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

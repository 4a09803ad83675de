package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/zsprackett/agent-console/internal/events"
)

// Config holds notification settings.
type Config struct {
	Enabled bool   `json:"enabled"`
	Webhook string `json:"webhook"`
	NtfyURL string `json:"ntfy"`
}

// Notifier posts finished project results to a webhook and/or ntfy.
type Notifier struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New returns a Notifier with the given config.
func New(cfg Config, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
	}
}

// Notify reports a project result for user. Only terminal phases (success,
// error) are sent; pending and custom phases are ignored.
func (n *Notifier) Notify(user string, st events.StatusPayload) {
	if n == nil || !n.cfg.Enabled {
		return
	}
	if st.Status != events.StatusSuccess && st.Status != events.StatusError {
		return
	}
	if n.cfg.Webhook != "" {
		n.sendWebhook(user, st)
	}
	if n.cfg.NtfyURL != "" {
		n.sendNtfy(user, st)
	}
}

type webhookPayload struct {
	User      string `json:"user"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (n *Notifier) sendWebhook(user string, st events.StatusPayload) {
	payload := webhookPayload{
		User:      user,
		Status:    st.Status,
		Message:   st.Message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	resp, err := n.client.Post(n.cfg.Webhook, "application/json", bytes.NewReader(data))
	if err != nil {
		n.logger.Warn("notify: webhook failed", "err", err)
		return
	}
	resp.Body.Close()
}

type ntfyPayload struct {
	Title    string   `json:"title"`
	Message  string   `json:"message"`
	Priority int      `json:"priority"`
	Tags     []string `json:"tags"`
}

func (n *Notifier) sendNtfy(user string, st events.StatusPayload) {
	payload := ntfyPayload{
		Title:    fmt.Sprintf("project %s", st.Status),
		Message:  fmt.Sprintf("%s · %s", user, st.Message),
		Priority: 3,
		Tags:     []string{"white_check_mark"},
	}
	if st.Status == events.StatusError {
		payload.Priority = 4
		payload.Tags = []string{"rotating_light"}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	resp, err := n.client.Post(n.cfg.NtfyURL, "application/json", bytes.NewReader(data))
	if err != nil {
		n.logger.Warn("notify: ntfy failed", "err", err)
		return
	}
	resp.Body.Close()
}

package server

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"doandearn/internal/config"
	"doandearn/internal/domain"
	"doandearn/internal/engine"
	"doandearn/internal/logging"
)

const (
	defaultWebhookInterval = 2 * time.Second
	defaultWebhookTimeout  = 5 * time.Second
	defaultWebhookBatch    = 100
)

// hook is one configured endpoint and how far it has been delivered.
type hook struct {
	url    string
	secret string
	filter eventFilter
	client *http.Client
	cursor int64
	primed bool
}

type webhookDispatcher struct {
	engine   engine.Engine
	hooks    []*hook
	logger   *slog.Logger
	interval time.Duration
}

// StartWebhookDispatcher delivers new events to the configured webhooks
// until ctx is done. Delivery starts after the newest event at startup.
func StartWebhookDispatcher(ctx context.Context, e engine.Engine, logger *slog.Logger) {
	d := newWebhookDispatcher(e, logger)
	if d == nil {
		return
	}
	go d.run(ctx)
}

func newWebhookDispatcher(e engine.Engine, logger *slog.Logger) *webhookDispatcher {
	if e.Config == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Discard()
	}
	var hooks []*hook
	for _, cfg := range e.Config.Webhooks {
		if h := newHook(cfg); h != nil {
			hooks = append(hooks, h)
		}
	}
	if len(hooks) == 0 {
		return nil
	}
	return &webhookDispatcher{
		engine:   e,
		hooks:    hooks,
		logger:   logger.With("component", "webhooks"),
		interval: defaultWebhookInterval,
	}
}

func newHook(cfg config.WebhookConfig) *hook {
	if cfg.Enabled != nil && !*cfg.Enabled {
		return nil
	}
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil
	}
	timeout := defaultWebhookTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &hook{
		url:    url,
		secret: strings.TrimSpace(cfg.Secret),
		filter: newEventFilter(cfg.Events),
		client: &http.Client{Timeout: timeout},
	}
}

func (d *webhookDispatcher) run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		d.dispatchAll(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// dispatchAll runs one delivery pass. Hooks are handled in order from the
// single run goroutine, so hook state needs no locking.
func (d *webhookDispatcher) dispatchAll(ctx context.Context) {
	for _, h := range d.hooks {
		if ctx.Err() != nil {
			return
		}
		d.deliver(ctx, h)
	}
}

func (d *webhookDispatcher) deliver(ctx context.Context, h *hook) {
	if !h.primed {
		latest, err := d.engine.Repo.LatestEventID(ctx)
		if err != nil {
			d.logger.Error("init cursor failed", "url", h.url, "error", err)
			return
		}
		h.cursor, h.primed = latest, true
	}
	batch, err := d.engine.Repo.EventsAfter(ctx, defaultWebhookBatch, h.cursor)
	if err != nil {
		d.logger.Error("fetch events failed", "url", h.url, "error", err)
		return
	}
	for _, evt := range batch {
		if h.filter.match(evt.Type) {
			if err := h.post(ctx, evt); err != nil {
				// Retried from this event on the next pass.
				d.logger.Warn("delivery failed", "url", h.url, "event_id", evt.ID, "error", err)
				return
			}
			d.logger.Debug("event delivered", "url", h.url, "event_id", evt.ID, "type", evt.Type)
		}
		h.cursor = evt.ID
	}
}

type webhookEvent struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	EntityKind string          `json:"entity_kind"`
	EntityID   string          `json:"entity_id,omitempty"`
	Actor      string          `json:"actor"`
	TS         string          `json:"ts"`
	Payload    json.RawMessage `json:"payload"`
}

func encodeWebhookEvent(evt domain.Event) ([]byte, error) {
	payload := json.RawMessage("{}")
	if p := strings.TrimSpace(evt.Payload); p != "" {
		if json.Valid([]byte(p)) {
			payload = json.RawMessage(p)
		} else {
			quoted, err := json.Marshal(map[string]string{"raw": p})
			if err != nil {
				return nil, err
			}
			payload = quoted
		}
	}
	return json.Marshal(webhookEvent{
		ID:         evt.ID,
		Type:       evt.Type,
		EntityKind: evt.EntityKind,
		EntityID:   evt.EntityID,
		Actor:      evt.Actor,
		TS:         evt.TS,
		Payload:    payload,
	})
}

// signBody returns the hex HMAC-SHA256 of body under secret.
func signBody(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func (h *hook) post(ctx context.Context, evt domain.Event) error {
	body, err := encodeWebhookEvent(evt)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Doandearn-Event", evt.Type)
	req.Header.Set("X-Doandearn-Delivery", strconv.FormatInt(evt.ID, 10))
	if h.secret != "" {
		req.Header.Set("X-Doandearn-Signature", "sha256="+signBody(h.secret, body))
	}
	res, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return fmt.Errorf("status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}

// eventFilter matches exact types and "prefix.*" wildcards. No filters, or
// a "*" entry, match everything.
type eventFilter struct {
	all bool
	set map[string]struct{}
}

func newEventFilter(types []string) eventFilter {
	set := make(map[string]struct{}, len(types))
	for _, t := range types {
		t = strings.TrimSpace(t)
		switch t {
		case "":
			continue
		case "*":
			return eventFilter{all: true}
		}
		set[t] = struct{}{}
	}
	return eventFilter{all: len(set) == 0, set: set}
}

func (f eventFilter) match(evtType string) bool {
	if f.all {
		return true
	}
	if _, ok := f.set[evtType]; ok {
		return true
	}
	prefix, _, found := strings.Cut(evtType, ".")
	if !found || prefix == "" {
		return false
	}
	_, ok := f.set[prefix+".*"]
	return ok
}

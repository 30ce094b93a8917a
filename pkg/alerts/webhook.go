package alerts

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"
)

// EventNotificationCreated names the event carried by webhook and AMQP payloads.
const EventNotificationCreated = "notification.created"

// WebhookNotifier delivers notification.created events to an HTTP endpoint.
type WebhookNotifier struct {
	url    string
	secret []byte
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier. A non-empty secret signs
// each body with HMAC-SHA256 in the X-Signature-256 header.
func NewWebhookNotifier(url, secret string) *WebhookNotifier {
	w := &WebhookNotifier{url: url, client: newHTTPClient()}
	if secret != "" {
		w.secret = []byte(secret)
	}
	return w
}

func (w *WebhookNotifier) Name() string { return "webhook" }

func (w *WebhookNotifier) Send(ctx context.Context, alert Alert) error {
	var sign func([]byte, *http.Request)
	if w.secret != nil {
		sign = func(body []byte, req *http.Request) {
			req.Header.Set("X-Signature-256", "sha256="+signBody(body, w.secret))
		}
	}
	return postJSON(ctx, w.client, "webhook", w.url, newEventPayload(alert), sign)
}

// eventPayload is the envelope shared by webhook and AMQP deliveries.
type eventPayload struct {
	Event     string `json:"event"`
	Timestamp string `json:"timestamp"`
	Alert     Alert  `json:"alert"`
}

func newEventPayload(alert Alert) eventPayload {
	return eventPayload{
		Event:     EventNotificationCreated,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Alert:     alert,
	}
}

func signBody(body, key []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

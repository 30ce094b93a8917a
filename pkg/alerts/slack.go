package alerts

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vanlang-budget/budget-guardian/pkg/messages"
)

var levelColors = map[AlertLevel]string{
	AlertWarning:  "#ff9900",
	AlertExceeded: "#cc0000",
}

// SlackNotifier posts budget notifications to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	client     *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier(webhookURL, channel string) *SlackNotifier {
	return &SlackNotifier{webhookURL: webhookURL, channel: channel, client: newHTTPClient()}
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) Send(ctx context.Context, alert Alert) error {
	return postJSON(ctx, s.client, "slack", s.webhookURL, slackMessage{
		Channel:     s.channel,
		Text:        alert.Title,
		Attachments: []slackAttachment{budgetAttachment(alert)},
	}, nil)
}

// budgetAttachment renders the stored notification text with the period and
// the spent/amount line underneath, colored by level.
func budgetAttachment(alert Alert) slackAttachment {
	color, ok := levelColors[alert.Level]
	if !ok {
		color = "#36a64f"
	}

	usage := fmt.Sprintf("%sđ / %sđ (%.1f%%, threshold %d%%)",
		messages.FormatAmount(alert.Spent), messages.FormatAmount(alert.Amount),
		alert.PercentUsed, alert.Threshold)

	att := slackAttachment{
		Fallback:   alert.Title + ": " + alert.Message,
		Color:      color,
		AuthorName: alert.Category,
		Title:      fmt.Sprintf("Budget Guardian: %s", alert.Title),
		Text:       alert.Message,
		Fields: []slackField{
			{Title: "Period", Value: alert.Period, Short: true},
			{Title: "Usage", Value: usage, Short: true},
		},
		Footer: "Budget Guardian",
	}
	if alert.UserEmail != "" {
		att.Fields = append(att.Fields, slackField{Title: "Owner", Value: alert.UserEmail})
	}
	return att
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

type slackAttachment struct {
	Fallback   string       `json:"fallback"`
	Color      string       `json:"color"`
	AuthorName string       `json:"author_name,omitempty"`
	Title      string       `json:"title"`
	Text       string       `json:"text,omitempty"`
	Fields     []slackField `json:"fields"`
	Footer     string       `json:"footer"`
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

package observability

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Notifier sends alerts to an external channel.
type Notifier interface {
	Notify(alerts []Alert) error
}

// SlackConfig configures the Slack notifier.
type SlackConfig struct {
	// WebhookURL is the incoming-webhook URL alerts are posted to.
	WebhookURL string
	// APIURL is the PREQSTATION base URL; task alerts link to the task there.
	APIURL  string
	Timeout time.Duration
}

type slackNotifier struct {
	cfg    SlackConfig
	client *http.Client
}

// NewSlackNotifier creates a Notifier that posts Block Kit messages to a
// Slack incoming webhook.
func NewSlackNotifier(cfg SlackConfig) Notifier {
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &slackNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Block Kit payload. Only the block types used here are modelled.
type (
	slackMessage struct {
		Text   string       `json:"text"`
		Blocks []slackBlock `json:"blocks"`
	}

	slackBlock struct {
		Type     string      `json:"type"`
		Text     *slackText  `json:"text,omitempty"`
		Fields   []slackText `json:"fields,omitempty"`
		Elements []slackText `json:"elements,omitempty"`
	}

	slackText struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
)

func mrkdwn(s string) slackText { return slackText{Type: "mrkdwn", Text: s} }

// Notify posts all alerts as one message. Nothing is sent for no alerts.
func (s *slackNotifier) Notify(alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	body, err := json.Marshal(s.message(alerts))
	if err != nil {
		return fmt.Errorf("encoding slack message: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to slack webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Slack explains rejected payloads in a short plain-text body.
		reason, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		if r := strings.TrimSpace(string(reason)); r != "" {
			return fmt.Errorf("slack webhook returned status %d: %s", resp.StatusCode, r)
		}
		return fmt.Errorf("slack webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *slackNotifier) message(alerts []Alert) slackMessage {
	summary := alertSummary(alerts)
	blocks := []slackBlock{{
		Type: "header",
		Text: &slackText{Type: "plain_text", Text: "PREQSTATION MCP: " + summary},
	}}

	for i, a := range alerts {
		if i > 0 {
			blocks = append(blocks, slackBlock{Type: "divider"})
		}
		text := mrkdwn(fmt.Sprintf("%s *%s*", severityEmoji(a.Severity), a.Message))
		blocks = append(blocks,
			slackBlock{Type: "section", Text: &text, Fields: s.fields(a)},
			slackBlock{Type: "context", Elements: []slackText{
				mrkdwn("triggered " + a.TriggeredAt.UTC().Format("2006-01-02 15:04 UTC")),
			}},
		)
	}

	return slackMessage{Text: "PREQSTATION MCP " + summary, Blocks: blocks}
}

func (s *slackNotifier) fields(a Alert) []slackText {
	fields := []slackText{
		mrkdwn("*Condition*\n`" + a.Condition + "`"),
		mrkdwn("*Severity*\n" + strings.ToUpper(string(a.Severity))),
	}
	if a.Tool != "" {
		fields = append(fields, mrkdwn("*Tool*\n`"+a.Tool+"`"))
	}
	if a.TaskID != "" {
		fields = append(fields, mrkdwn("*Task*\n"+s.taskLink(a.TaskID)))
	}
	return fields
}

// taskLink renders taskID as a Slack link to its API resource, or as plain
// text when no API URL is configured.
func (s *slackNotifier) taskLink(taskID string) string {
	if s.cfg.APIURL == "" {
		return taskID
	}
	return fmt.Sprintf("<%s/api/tasks/%s|%s>", s.cfg.APIURL, url.PathEscape(taskID), taskID)
}

// alertSummary reads like "3 alerts (1 high, 2 low)".
func alertSummary(alerts []Alert) string {
	counts := make(map[AlertSeverity]int)
	for _, a := range alerts {
		counts[a.Severity]++
	}
	var parts []string
	for _, sev := range []AlertSeverity{SeverityHigh, SeverityMedium, SeverityLow} {
		if counts[sev] > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", counts[sev], sev))
		}
	}
	noun := "alerts"
	if len(alerts) == 1 {
		noun = "alert"
	}
	return fmt.Sprintf("%d %s (%s)", len(alerts), noun, strings.Join(parts, ", "))
}

func severityEmoji(severity AlertSeverity) string {
	switch severity {
	case SeverityHigh:
		return ":red_circle:"
	case SeverityMedium:
		return ":large_yellow_circle:"
	case SeverityLow:
		return ":large_blue_circle:"
	default:
		return ":grey_question:"
	}
}

// Package notify sends incident webhooks when an export fails
// unrecoverably. Notification failure is logged by the caller, never
// escalated over the original export error.
package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/3leaps/logvault/pkg/archive"
	"github.com/3leaps/logvault/pkg/logstore"
)

// Notifier posts MessageCard-style incident payloads to a webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a Notifier for the given webhook URL.
func New(webhookURL string) (*Notifier, error) {
	if webhookURL == "" {
		return nil, errors.New("webhook URL is required")
	}
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// card is the webhook payload shape (Teams MessageCard).
type card struct {
	Type       string    `json:"@type"`
	Context    string    `json:"@context"`
	ThemeColor string    `json:"themeColor"`
	Summary    string    `json:"summary"`
	Sections   []section `json:"sections"`
}

type section struct {
	ActivityTitle string `json:"activityTitle"`
	Text          string `json:"text"`
	Markdown      bool   `json:"markdown"`
	Facts         []fact `json:"facts"`
}

type fact struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NotifyExportFailure posts an incident for a failed export job.
func (n *Notifier) NotifyExportFailure(ctx context.Context, job archive.Job, exportErr error) error {
	payload := card{
		Type:       "MessageCard",
		Context:    "http://schema.org/extensions",
		ThemeColor: "FF0000",
		Summary:    "CloudWatch log export failure",
		Sections: []section{{
			ActivityTitle: fmt.Sprintf("CloudWatch log export failure for %s", job.Params.LogGroupName),
			Text:          "This failure needs to be investigated as soon as possible.",
			Markdown:      true,
			Facts: []fact{
				{Name: "Log Group Name", Value: job.Params.LogGroupName},
				{Name: "Export From Date", Value: logstore.MillisToTime(job.Params.ExportFromDate).Format(time.RFC3339)},
				{Name: "Export To Date", Value: logstore.MillisToTime(job.Params.ExportToDate).Format(time.RFC3339)},
				{Name: "Error Message", Value: errMessage(exportErr)},
				{Name: "Time", Value: time.Now().UTC().Format(time.RFC3339)},
			},
		}},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("sending notification: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode)
	}
	return nil
}

func errMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// Package archive implements the log-group discovery pipeline: a streaming
// source of log groups enriched with tags and export windows, published as
// export jobs to a message queue.
//
// Stages are connected by bounded channels so a slow consumer pauses the
// producer instead of buffering unboundedly. Any stage error unwinds the
// whole pipeline.
package archive

import (
	"strconv"

	"github.com/goccy/go-json"

	"github.com/3leaps/logvault/pkg/logstore"
)

// Bookmark tag keys on the external log-group resource. These tags are the
// durable state of the system; the pipeline is stateless between runs except
// for what is written here.
const (
	TagPreviousExportFromDate = "PreviousExportFromDate"
	TagPreviousExportToDate   = "PreviousExportToDate"
	TagLastRunStatus          = "LastRunStatus"
	TagLastRunStatusReason    = "LastRunStatusReason"
	TagLastUpdateTimestamp    = "LastUpdateTimestamp"
)

// ExportParams bounds one export job to a single day window.
type ExportParams struct {
	LogGroupName string `json:"logGroupName"`

	// ExportFromDate and ExportToDate bound the window in epoch
	// milliseconds: [from, to), exactly one calendar day wide with from
	// aligned to midnight UTC.
	ExportFromDate int64 `json:"exportFromDate"`
	ExportToDate   int64 `json:"exportToDate"`

	// SkipExport marks a window with no log events. The job still flows to
	// the executor, which records a skipped bookmark instead of exporting.
	SkipExport bool `json:"skipExport,omitempty"`
}

// Job is the unit of work placed on the queue: a tag-enriched log group plus
// its export window. Downstream treats it as an opaque, at-least-once,
// idempotent-by-tag-state message.
type Job struct {
	logstore.LogGroup
	Params ExportParams `json:"exportJobParams"`
}

// Marshal serializes the job for the queue.
func (j Job) Marshal() ([]byte, error) {
	return json.Marshal(j)
}

// UnmarshalJob parses a queue message body.
func UnmarshalJob(data []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return Job{}, err
	}
	return j, nil
}

// ParseBookmark parses a bookmark tag value holding epoch milliseconds.
// Returns false when the value is absent or malformed.
func ParseBookmark(tags map[string]string, key string) (int64, bool) {
	raw, ok := tags[key]
	if !ok || raw == "" {
		return 0, false
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return ms, true
}

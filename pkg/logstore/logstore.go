// Package logstore defines the interface to the external log-group store.
//
// Implementations wrap a log-management service (CloudWatch Logs) that owns
// log groups, their resource tags, and asynchronous export tasks. The
// archival pipeline consumes this interface only; the concrete client lives
// in the cloudwatch sub-package.
package logstore

import (
	"context"
	"time"
)

// LogGroup describes one log source as listed by the store.
//
// CreationTime and the export bookmarks exchanged through tags are epoch
// milliseconds, matching the wire format of the log-management API.
type LogGroup struct {
	// Name is the log group name (e.g. "/aws/lambda/my-fn").
	Name string `json:"logGroupName"`

	// ARN uniquely identifies the log group resource. Records without an
	// ARN are malformed and never enter the pipeline.
	ARN string `json:"logGroupArn"`

	// CreationTime is the creation timestamp in epoch milliseconds.
	CreationTime int64 `json:"creationTime"`

	// Tags holds the resource tags once enriched; nil until then.
	Tags map[string]string `json:"tags,omitempty"`
}

// Page is one page of a log-group listing.
type Page struct {
	LogGroups []LogGroup

	// NextToken continues the listing; empty when the listing is exhausted.
	NextToken string
}

// ExportTask describes an asynchronous export task owned by the store.
type ExportTask struct {
	TaskID        string
	TaskName      string
	LogGroupName  string
	Status        string
}

// CreateExportTaskInput carries the parameters for a new export task.
type CreateExportTaskInput struct {
	LogGroupName string

	// From and To bound the exported range in epoch milliseconds,
	// inclusive of From and exclusive of To.
	From int64
	To   int64

	// Destination is the object-store bucket receiving the export.
	Destination string

	// DestinationPrefix namespaces the exported objects within the bucket.
	DestinationPrefix string

	// TaskName labels the task for operators.
	TaskName string
}

// Store is the log-group store consumed by the pipeline and the executor.
type Store interface {
	// ListLogGroups returns one page of log groups. An empty nextToken
	// starts the listing; limit caps the page size.
	ListLogGroups(ctx context.Context, nextToken string, limit int32) (*Page, error)

	// ListTags returns the resource tags for the given log group ARN.
	ListTags(ctx context.Context, arn string) (map[string]string, error)

	// UpdateTags merges the given tags onto the resource. Existing keys not
	// present in tags are preserved by the store.
	UpdateTags(ctx context.Context, arn string, tags map[string]string) error

	// ProbeEvents reports whether at least one log event exists in
	// [from, to), both epoch milliseconds. Implementations query with a
	// limit of one; no event payloads are returned.
	ProbeEvents(ctx context.Context, logGroupName string, from, to int64) (bool, error)

	// CreateExportTask submits a new export task and returns its ID.
	CreateExportTask(ctx context.Context, in CreateExportTaskInput) (string, error)

	// ListRunningExportTasks returns export tasks currently running.
	// CloudWatch permits one running export task per account, so a
	// non-empty result means a new task would be rejected.
	ListRunningExportTasks(ctx context.Context) ([]ExportTask, error)
}

// MillisToTime converts epoch milliseconds to a UTC time.
func MillisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Package preflight validates external collaborators before a pipeline run
// so misconfiguration fails at startup instead of mid-stream.
package preflight

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/3leaps/logvault/pkg/logstore"
)

// Capability names are stable strings used in check results.
const (
	CapDestinationBucket = "destination.bucket"
	CapSourceList        = "source.list"
)

// CheckResult reports one preflight capability check.
type CheckResult struct {
	Capability string `json:"capability"`
	Allowed    bool   `json:"allowed"`
	Method     string `json:"method"`
	Detail     string `json:"detail,omitempty"`
}

// BucketAPI is the slice of the object-store client preflight needs.
type BucketAPI interface {
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, opts ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Destination verifies the export destination bucket is reachable. The
// pipeline never writes to the bucket itself, but export tasks will, so a
// missing or forbidden bucket should stop the run before jobs are queued.
func Destination(ctx context.Context, client BucketAPI, bucket string) (CheckResult, error) {
	method := fmt.Sprintf("HeadBucket(%q)", bucket)

	_, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		return CheckResult{
			Capability: CapDestinationBucket,
			Allowed:    false,
			Method:     method,
			Detail:     err.Error(),
		}, fmt.Errorf("destination bucket %s is not reachable: %w", bucket, err)
	}

	return CheckResult{
		Capability: CapDestinationBucket,
		Allowed:    true,
		Method:     method,
	}, nil
}

// SourceList verifies the log-group store is listable with minimal cost.
func SourceList(ctx context.Context, store logstore.Store) (CheckResult, error) {
	method := "ListLogGroups(limit=1)"

	_, err := store.ListLogGroups(ctx, "", 1)
	if err != nil {
		return CheckResult{
			Capability: CapSourceList,
			Allowed:    false,
			Method:     method,
			Detail:     err.Error(),
		}, fmt.Errorf("log-group store is not listable: %w", err)
	}

	return CheckResult{
		Capability: CapSourceList,
		Allowed:    true,
		Method:     method,
	}, nil
}

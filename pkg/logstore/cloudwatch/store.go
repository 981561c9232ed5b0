package cloudwatch

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/smithy-go"

	"github.com/3leaps/logvault/pkg/logstore"
)

// Store implements logstore.Store against AWS CloudWatch Logs.
type Store struct {
	client *cloudwatchlogs.Client
}

// Ensure Store implements the interface.
var _ logstore.Store = (*Store)(nil)

// New creates a CloudWatch Logs store with the given configuration.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, &logstore.StoreError{Op: "New", Err: err}
	}

	var clientOpts []func(*cloudwatchlogs.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *cloudwatchlogs.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return &Store{client: cloudwatchlogs.NewFromConfig(awsCfg, clientOpts...)}, nil
}

// NewFromClient wraps an existing CloudWatch Logs client.
func NewFromClient(client *cloudwatchlogs.Client) *Store {
	return &Store{client: client}
}

// ListLogGroups returns one page of log groups.
func (s *Store) ListLogGroups(ctx context.Context, nextToken string, limit int32) (*logstore.Page, error) {
	input := &cloudwatchlogs.DescribeLogGroupsInput{}
	if nextToken != "" {
		input.NextToken = aws.String(nextToken)
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}

	out, err := s.client.DescribeLogGroups(ctx, input)
	if err != nil {
		return nil, wrapError("ListLogGroups", "", err)
	}

	groups := make([]logstore.LogGroup, 0, len(out.LogGroups))
	for _, g := range out.LogGroups {
		arn := aws.ToString(g.LogGroupArn)
		if arn == "" {
			// Older responses populate only the wildcard ARN.
			arn = strings.TrimSuffix(aws.ToString(g.Arn), ":*")
		}
		groups = append(groups, logstore.LogGroup{
			Name:         aws.ToString(g.LogGroupName),
			ARN:          arn,
			CreationTime: aws.ToInt64(g.CreationTime),
		})
	}

	page := &logstore.Page{LogGroups: groups}
	if out.NextToken != nil {
		page.NextToken = *out.NextToken
	}
	return page, nil
}

// ListTags returns the resource tags for the given log group ARN.
func (s *Store) ListTags(ctx context.Context, arn string) (map[string]string, error) {
	out, err := s.client.ListTagsForResource(ctx, &cloudwatchlogs.ListTagsForResourceInput{
		ResourceArn: aws.String(arn),
	})
	if err != nil {
		return nil, wrapError("ListTags", arn, err)
	}
	return out.Tags, nil
}

// UpdateTags merges the given tags onto the resource.
func (s *Store) UpdateTags(ctx context.Context, arn string, tags map[string]string) error {
	_, err := s.client.TagResource(ctx, &cloudwatchlogs.TagResourceInput{
		ResourceArn: aws.String(arn),
		Tags:        tags,
	})
	if err != nil {
		return wrapError("UpdateTags", arn, err)
	}
	return nil
}

// ProbeEvents reports whether at least one log event exists in [from, to).
func (s *Store) ProbeEvents(ctx context.Context, logGroupName string, from, to int64) (bool, error) {
	out, err := s.client.FilterLogEvents(ctx, &cloudwatchlogs.FilterLogEventsInput{
		LogGroupName: aws.String(logGroupName),
		StartTime:    aws.Int64(from),
		EndTime:      aws.Int64(to),
		Limit:        aws.Int32(1),
	})
	if err != nil {
		return false, wrapError("ProbeEvents", logGroupName, err)
	}
	return len(out.Events) > 0, nil
}

// CreateExportTask submits a new export task and returns its ID.
func (s *Store) CreateExportTask(ctx context.Context, in logstore.CreateExportTaskInput) (string, error) {
	out, err := s.client.CreateExportTask(ctx, &cloudwatchlogs.CreateExportTaskInput{
		LogGroupName:      aws.String(in.LogGroupName),
		From:              aws.Int64(in.From),
		To:                aws.Int64(in.To),
		Destination:       aws.String(in.Destination),
		DestinationPrefix: aws.String(in.DestinationPrefix),
		TaskName:          aws.String(in.TaskName),
	})
	if err != nil {
		return "", wrapError("CreateExportTask", in.LogGroupName, err)
	}
	return aws.ToString(out.TaskId), nil
}

// ListRunningExportTasks returns export tasks currently in RUNNING state.
func (s *Store) ListRunningExportTasks(ctx context.Context) ([]logstore.ExportTask, error) {
	out, err := s.client.DescribeExportTasks(ctx, &cloudwatchlogs.DescribeExportTasksInput{
		StatusCode: types.ExportTaskStatusCodeRunning,
	})
	if err != nil {
		return nil, wrapError("ListRunningExportTasks", "", err)
	}

	tasks := make([]logstore.ExportTask, 0, len(out.ExportTasks))
	for _, t := range out.ExportTasks {
		task := logstore.ExportTask{
			TaskID:       aws.ToString(t.TaskId),
			TaskName:     aws.ToString(t.TaskName),
			LogGroupName: aws.ToString(t.LogGroupName),
		}
		if t.Status != nil {
			task.Status = string(t.Status.Code)
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// wrapError converts CloudWatch Logs errors to logstore errors with
// appropriate sentinels.
func wrapError(op, resource string, err error) error {
	wrapped := &logstore.StoreError{
		Op:       op,
		Resource: resource,
		Err:      err,
	}

	// Check for typed service errors first.
	var invalidParam *types.InvalidParameterException
	var notFound *types.ResourceNotFoundException
	var limitExceeded *types.LimitExceededException
	var unavailable *types.ServiceUnavailableException

	switch {
	case errors.As(err, &invalidParam):
		wrapped.Err = logstore.ErrInvalidParameter
		return wrapped
	case errors.As(err, &notFound):
		wrapped.Err = logstore.ErrNotFound
		return wrapped
	case errors.As(err, &limitExceeded):
		wrapped.Err = logstore.ErrLimitExceeded
		return wrapped
	case errors.As(err, &unavailable):
		wrapped.Err = logstore.ErrUnavailable
		return wrapped
	}

	// Check smithy API errors for error codes.
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "Throttling", "RequestLimitExceeded":
			wrapped.Err = logstore.ErrThrottled
		case "ServiceUnavailableException", "ServiceUnavailable":
			wrapped.Err = logstore.ErrUnavailable
		case "LimitExceededException":
			wrapped.Err = logstore.ErrLimitExceeded
		case "InvalidParameterException":
			wrapped.Err = logstore.ErrInvalidParameter
		case "ResourceNotFoundException":
			wrapped.Err = logstore.ErrNotFound
		}
		return wrapped
	}

	// Fallback: check error message for throttling markers.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Throttling") || strings.Contains(msg, "429"):
		wrapped.Err = logstore.ErrThrottled
	case strings.Contains(msg, "ServiceUnavailable") || strings.Contains(msg, "503"):
		wrapped.Err = logstore.ErrUnavailable
	}
	return wrapped
}

package cmd

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/3leaps/logvault/internal/config"
	"github.com/3leaps/logvault/pkg/logstore"
	"github.com/3leaps/logvault/pkg/logstore/cloudwatch"
	"github.com/3leaps/logvault/pkg/queue/sqs"
)

// loadAWSConfig builds the shared AWS SDK configuration.
func loadAWSConfig(ctx context.Context, c *config.Config) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(c.AWS.Region),
	}
	if c.AWS.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(c.AWS.Profile))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

// buildStore creates the CloudWatch Logs store.
func buildStore(awsCfg aws.Config) logstore.Store {
	return cloudwatch.NewFromClient(cloudwatchlogs.NewFromConfig(awsCfg))
}

// buildQueue creates the SQS queue client for the configured job queue.
func buildQueue(awsCfg aws.Config, queueURL string) *sqs.Client {
	return sqs.NewFromClient(awssqs.NewFromConfig(awsCfg), queueURL)
}

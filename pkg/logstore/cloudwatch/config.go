// Package cloudwatch implements the logstore interface for AWS CloudWatch Logs.
package cloudwatch

import "errors"

// Config configures a CloudWatch Logs store.
//
// Authentication follows the AWS SDK v2 default chain unless explicit
// credentials are provided:
//  1. Explicit AccessKeyID/SecretAccessKey (if provided)
//  2. Environment variables (AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY)
//  3. Shared credentials/config files with optional profile
//  4. EC2 instance metadata / ECS task role / EKS IRSA
type Config struct {
	// Region is the AWS region hosting the log groups (required).
	Region string

	// Profile is the AWS profile name from shared config. Leave empty to
	// use the default profile or environment credentials.
	Profile string

	// AccessKeyID is an explicit access key. If set, SecretAccessKey must
	// also be set and takes precedence over the default credential chain.
	AccessKeyID string

	// SecretAccessKey is an explicit secret key. Required if AccessKeyID is set.
	SecretAccessKey string

	// Endpoint is a custom endpoint URL for local stacks. Leave empty for AWS.
	Endpoint string
}

// Validate checks the configuration for required fields.
func (c Config) Validate() error {
	if c.Region == "" {
		return errors.New("region is required")
	}
	if c.AccessKeyID != "" && c.SecretAccessKey == "" {
		return errors.New("secret access key is required when access key ID is set")
	}
	return nil
}

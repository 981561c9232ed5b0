// Package sqs implements the queue transport for AWS SQS.
package sqs

import (
	"context"
	"errors"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"

	"github.com/3leaps/logvault/pkg/queue"
)

// Client implements queue.Publisher and queue.Consumer for one SQS queue.
type Client struct {
	client   *awssqs.Client
	queueURL string

	// waitTime is the long-poll duration for Receive, in seconds.
	waitTime int32
}

// Ensure Client implements the interfaces.
var (
	_ queue.Publisher = (*Client)(nil)
	_ queue.Consumer  = (*Client)(nil)
)

// New creates an SQS queue client.
func New(awsCfg aws.Config, queueURL string) (*Client, error) {
	if queueURL == "" {
		return nil, errors.New("queue URL is required")
	}
	return &Client{
		client:   awssqs.NewFromConfig(awsCfg),
		queueURL: queueURL,
		waitTime: 20,
	}, nil
}

// NewFromClient wraps an existing SQS client.
func NewFromClient(client *awssqs.Client, queueURL string) *Client {
	return &Client{client: client, queueURL: queueURL, waitTime: 20}
}

// SendBatch sends up to queue.MaxBatchSize entries in one request.
func (c *Client) SendBatch(ctx context.Context, entries []queue.Entry) error {
	batch := make([]types.SendMessageBatchRequestEntry, 0, len(entries))
	for _, e := range entries {
		batch = append(batch, types.SendMessageBatchRequestEntry{
			Id:          aws.String(e.ID),
			MessageBody: aws.String(e.Body),
		})
	}

	out, err := c.client.SendMessageBatch(ctx, &awssqs.SendMessageBatchInput{
		QueueUrl: aws.String(c.queueURL),
		Entries:  batch,
	})
	if err != nil {
		return wrapError("SendBatch", err)
	}
	if len(out.Failed) > 0 {
		f := out.Failed[0]
		return &queue.QueueError{
			Op:  "SendBatch",
			Err: errors.New(aws.ToString(f.Code) + ": " + aws.ToString(f.Message)),
		}
	}
	return nil
}

// Receive returns up to max messages from the queue.
func (c *Client) Receive(ctx context.Context, max int32) ([]queue.Message, error) {
	out, err := c.client.ReceiveMessage(ctx, &awssqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: max,
		WaitTimeSeconds:     c.waitTime,
	})
	if err != nil {
		return nil, wrapError("Receive", err)
	}

	msgs := make([]queue.Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msgs = append(msgs, queue.Message{
			ReceiptHandle: aws.ToString(m.ReceiptHandle),
			Body:          aws.ToString(m.Body),
		})
	}
	return msgs, nil
}

// Delete acknowledges a message.
func (c *Client) Delete(ctx context.Context, receiptHandle string) error {
	_, err := c.client.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return wrapError("Delete", err)
	}
	return nil
}

// wrapError converts SQS errors to queue errors with appropriate sentinels.
func wrapError(op string, err error) error {
	wrapped := &queue.QueueError{Op: op, Err: err}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "ThrottlingException", "Throttling", "RequestThrottled", "RequestLimitExceeded":
			wrapped.Err = queue.ErrThrottled
		case "ServiceUnavailable", "InternalError":
			wrapped.Err = queue.ErrUnavailable
		}
		return wrapped
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "Throttl") || strings.Contains(msg, "429"):
		wrapped.Err = queue.ErrThrottled
	case strings.Contains(msg, "ServiceUnavailable") || strings.Contains(msg, "503"):
		wrapped.Err = queue.ErrUnavailable
	}
	return wrapped
}

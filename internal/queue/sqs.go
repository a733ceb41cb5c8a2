// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package queue

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// SQSAPI is the subset of the SQS client used by SQSTransport.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// SQSTransport sends notifications to an SQS queue.
type SQSTransport struct {
	client   SQSAPI
	queueURL string
}

// NewSQSTransport creates an SQS transport from an AWS config.
func NewSQSTransport(awsCfg aws.Config, queueURL string) *SQSTransport {
	return NewSQSTransportWithClient(sqs.NewFromConfig(awsCfg), queueURL)
}

// NewSQSTransportWithClient creates an SQS transport around client.
func NewSQSTransportWithClient(client SQSAPI, queueURL string) *SQSTransport {
	return &SQSTransport{client: client, queueURL: queueURL}
}

// Name implements Transport.
func (t *SQSTransport) Name() string { return "sqs" }

// SendNotification implements Transport. The SQS message ID is returned.
func (t *SQSTransport) SendNotification(ctx context.Context, body []byte) (string, error) {
	out, err := t.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return "", fmt.Errorf("sqs SendMessage: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

// Ping checks that the queue exists and is reachable.
func (t *SQSTransport) Ping(ctx context.Context) error {
	_, err := t.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(t.queueURL),
	})
	if err != nil {
		return fmt.Errorf("sqs GetQueueAttributes: %w", err)
	}
	return nil
}

// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the subset of the SQS client the poller uses.
type SQSAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// Handler consumes one message body.
type Handler interface {
	Handle(ctx context.Context, raw []byte) ([]string, error)
}

type PollerOptions struct {
	MaxConcurrentMessages int
	WaitTimeSeconds       int32
	ErrorBackoff          time.Duration
}

func DefaultPollerOptions() PollerOptions {
	return PollerOptions{MaxConcurrentMessages: 10, WaitTimeSeconds: 20, ErrorBackoff: 5 * time.Second}
}

// Poller long-polls an SQS queue and deletes each message once its
// handler succeeds. A failed message stays on the queue for redelivery.
type Poller struct {
	client   SQSAPI
	queueURL string
	handler  Handler
	opts     PollerOptions
}

func NewPoller(client SQSAPI, queueURL string, handler Handler, opts PollerOptions) *Poller {
	return &Poller{client: client, queueURL: queueURL, handler: handler, opts: opts}
}

// Run polls until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	slog.Info("Starting SQS polling loop", slog.String("queueURL", p.queueURL))
	for {
		if ctx.Err() != nil {
			slog.Info("SQS polling loop stopped")
			return nil
		}
		if err := p.PollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			slog.Error("Failed to receive messages from SQS", slog.Any("error", err))
			select {
			case <-ctx.Done():
			case <-time.After(p.opts.ErrorBackoff):
			}
		}
	}
}

// PollOnce receives one batch and handles it.
func (p *Poller) PollOnce(ctx context.Context) error {
	result, err := p.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(p.queueURL),
		MaxNumberOfMessages: 10,
		WaitTimeSeconds:     p.opts.WaitTimeSeconds,
	})
	if err != nil {
		return err
	}
	if len(result.Messages) > 0 {
		p.processMessages(ctx, result.Messages)
	}
	return nil
}

func (p *Poller) processMessages(ctx context.Context, messages []types.Message) {
	sem := make(chan struct{}, max(p.opts.MaxConcurrentMessages, 1))
	var wg sync.WaitGroup

	for _, message := range messages {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}

		go func(msg types.Message) {
			defer wg.Done()
			defer func() { <-sem }()

			messageID := aws.ToString(msg.MessageId)
			if msg.Body == nil {
				slog.Warn("Received SQS message with nil body", slog.String("messageId", messageID))
				p.delete(msg)
				return
			}

			if _, err := p.handler.Handle(ctx, []byte(*msg.Body)); err != nil {
				messagesFailed.Add(ctx, 1)
				slog.Error("Failed to handle S3 event, leaving message in SQS for retry",
					slog.Any("error", err),
					slog.String("messageId", messageID))
				return
			}
			p.delete(msg)
		}(message)
	}

	wg.Wait()
}

func (p *Poller) delete(msg types.Message) {
	// Deletion outlives a cancelled poll so handled messages are not redelivered.
	deleteCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := p.client.DeleteMessage(deleteCtx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.queueURL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		slog.Error("Failed to delete SQS message",
			slog.Any("error", err),
			slog.String("messageId", aws.ToString(msg.MessageId)))
		return
	}
	slog.Debug("Deleted SQS message", slog.String("messageId", aws.ToString(msg.MessageId)))
}

package event

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"
)

// MessageSender is the part of the SQS client the notifier uses.
type MessageSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// sqsNotifier sends each event as a JSON message to an SQS queue.
type sqsNotifier struct {
	client   MessageSender
	queueURL string
	logger   zerolog.Logger
}

// NewSQSNotifier creates an SQS notifier using the default AWS credential chain.
func NewSQSNotifier(ctx context.Context, queueURL, region string, logger zerolog.Logger) (Notifier, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return NewSQSNotifierWithClient(sqs.NewFromConfig(cfg), queueURL, logger), nil
}

// NewSQSNotifierWithClient creates an SQS notifier around an existing client.
func NewSQSNotifierWithClient(client MessageSender, queueURL string, logger zerolog.Logger) Notifier {
	return &sqsNotifier{
		client:   client,
		queueURL: queueURL,
		logger:   logger.With().Str("component", "event-sqs").Logger(),
	}
}

func (n *sqsNotifier) Publish(ctx context.Context, e Event) error {
	body, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	out, err := n.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event": {
				DataType:    aws.String("String"),
				StringValue: aws.String(e.Name),
			},
		},
	})
	if err != nil {
		n.logger.Error().
			Err(err).
			Str("event", e.Name).
			Str("voucher_code", e.VoucherCode).
			Msg("failed to send event to SQS")
		return fmt.Errorf("failed to send event to SQS: %w", err)
	}

	n.logger.Debug().
		Str("event", e.Name).
		Str("message_id", aws.ToString(out.MessageId)).
		Msg("event sent to SQS")

	return nil
}

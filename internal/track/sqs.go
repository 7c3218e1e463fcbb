package track

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"
)

// SQSConfig holds SQS sink settings.
type SQSConfig struct {
	Region   string
	QueueURL string
}

// SQSSink publishes delivery events to an SQS queue for downstream
// analytics. Publish failures are logged and dropped.
type SQSSink struct {
	client   *sqs.Client
	queueURL string
	logger   *zap.Logger
}

// NewSQSSink creates an SQS-backed sink.
func NewSQSSink(ctx context.Context, cfg SQSConfig, logger *zap.Logger) (*SQSSink, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	logger.Info("sqs tracking sink initialized",
		zap.String("queue_url", cfg.QueueURL),
	)

	return &SQSSink{
		client:   sqs.NewFromConfig(awsCfg),
		queueURL: cfg.QueueURL,
		logger:   logger,
	}, nil
}

func (s *SQSSink) Record(ctx context.Context, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("failed to marshal tracking event",
			zap.Error(err),
			zap.String("item_id", event.ItemID.String()),
		)
		return
	}

	_, err = s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		s.logger.Error("failed to publish tracking event",
			zap.Error(err),
			zap.String("item_id", event.ItemID.String()),
		)
	}
}

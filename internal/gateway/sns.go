package gateway

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"
)

// SNSConfig holds the SNS gateway settings.
type SNSConfig struct {
	Region   string
	TopicARN string
}

// SNSGateway publishes deliveries to an SNS topic. Downstream consumers
// fan the message out to the actual push transport.
type SNSGateway struct {
	client   *sns.Client
	topicARN string
	logger   *zap.Logger
}

// NewSNSGateway creates a gateway publishing to the configured topic.
func NewSNSGateway(ctx context.Context, cfg SNSConfig, logger *zap.Logger) (*SNSGateway, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	logger.Info("sns gateway initialized",
		zap.String("topic_arn", cfg.TopicARN),
		zap.String("region", cfg.Region),
	)

	return &SNSGateway{
		client:   sns.NewFromConfig(awsCfg),
		topicARN: cfg.TopicARN,
		logger:   logger,
	}, nil
}

func (g *SNSGateway) Send(ctx context.Context, userID string, payload json.RawMessage) (*Receipt, error) {
	input := &sns.PublishInput{
		TopicArn: aws.String(g.topicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"user_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(userID),
			},
		},
	}

	result, err := g.client.Publish(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("publish to SNS: %w", err)
	}

	return &Receipt{MessageID: aws.ToString(result.MessageId)}, nil
}

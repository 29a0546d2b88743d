package sns

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/fern-folio/bookstore-api/internal/config"
	"github.com/fern-folio/bookstore-api/internal/infrastructure/awsconf"
)

// EventPublisher publishes domain events to an SNS topic.
type EventPublisher interface {
	Publish(ctx context.Context, eventType string, payload any) error
}

type snsAPI interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type publisher struct {
	client   snsAPI
	topicARN string
}

// NewPublisher creates a publisher bound to topicARN.
func NewPublisher(ctx context.Context, cfg *config.Config) (EventPublisher, error) {
	awsCfg, err := awsconf.Load(ctx, cfg, cfg.SNSRegion)
	if err != nil {
		return nil, err
	}
	var opts []func(*sns.Options)
	if cfg.AWSEndpointURL != "" {
		opts = append(opts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}
	return newPublisher(sns.NewFromConfig(awsCfg, opts...), cfg.SNSOrderTopic), nil
}

func newPublisher(client snsAPI, topicARN string) *publisher {
	return &publisher{client: client, topicARN: topicARN}
}

// Publish sends payload as JSON with an event_type message attribute so
// subscribers can filter.
func (p *publisher) Publish(ctx context.Context, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", eventType, err)
	}
	_, err = p.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(p.topicARN),
		Message:  aws.String(string(body)),
		Subject:  aws.String(eventType),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: aws.String("String"), StringValue: aws.String(eventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("sns publish %s: %w", eventType, err)
	}
	return nil
}

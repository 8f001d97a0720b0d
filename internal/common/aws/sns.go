// internal/common/aws/sns.go
package aws

import (
	"context"
	"fmt"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/dineshratn/sos-app-sub001/internal/common/config"
)

// SNSClient wraps the one SNS operation the dispatcher uses. A single client
// serves both delivery channels built on SNS: mobile push (publish to a
// platform endpoint ARN) and direct SMS (publish to a phone number).
type SNSClient struct {
	client *sns.Client
}

// NewSNSClient resolves credentials through the default AWS chain for the
// configured region.
func NewSNSClient(ctx context.Context, cfg config.AWSConfig) (*SNSClient, error) {
	awsConf, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config for sns: %w", err)
	}
	return &SNSClient{client: sns.NewFromConfig(awsConf)}, nil
}

// Publish sends one message. Channel senders classify the failure; this
// layer only adds the API context.
func (c *SNSClient) Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	out, err := c.client.Publish(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("sns publish: %w", err)
	}
	return out, nil
}

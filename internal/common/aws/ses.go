// internal/common/aws/ses.go
package aws

import (
	"context"
	"fmt"

	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"

	"github.com/dineshratn/sos-app-sub001/internal/common/config"
)

// SESClient wraps the single SES operation behind the email channel.
type SESClient struct {
	client *ses.Client
}

// NewSESClient resolves credentials through the default AWS chain for the
// configured region.
func NewSESClient(ctx context.Context, cfg config.AWSConfig) (*SESClient, error) {
	awsConf, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load aws config for ses: %w", err)
	}
	return &SESClient{client: ses.NewFromConfig(awsConf)}, nil
}

// SendEmail sends one message. The email sender classifies the failure; this
// layer only adds the API context.
func (c *SESClient) SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	out, err := c.client.SendEmail(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("ses send email: %w", err)
	}
	return out, nil
}

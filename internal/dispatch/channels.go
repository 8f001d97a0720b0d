// internal/dispatch/channels.go
package dispatch

import (
	"context"
	"fmt"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"github.com/dineshratn/sos-app-sub001/internal/common/apperrors"
	"github.com/dineshratn/sos-app-sub001/internal/common/aws"
	"github.com/dineshratn/sos-app-sub001/internal/directory"
	"github.com/dineshratn/sos-app-sub001/internal/models"
)

// Notice is the rendered notification content for one delivery.
type Notice struct {
	Subject string
	Body    string
}

// ChannelSender delivers a notice to a contact over one channel.
type ChannelSender interface {
	Send(ctx context.Context, contact directory.Contact, notice Notice) error
}

// PushSender delivers via SNS mobile platform endpoints.
type PushSender struct {
	sns *aws.SNSClient
}

// NewPushSender creates a PushSender.
func NewPushSender(client *aws.SNSClient) *PushSender {
	return &PushSender{sns: client}
}

func (s *PushSender) Send(ctx context.Context, contact directory.Contact, notice Notice) error {
	if contact.PushEndpoint == "" {
		return apperrors.NewDeliveryError(string(models.ChannelPush), fmt.Errorf("contact has no push endpoint"))
	}

	_, err := s.sns.Publish(ctx, &sns.PublishInput{
		TargetArn: awssdk.String(contact.PushEndpoint),
		Subject:   awssdk.String(notice.Subject),
		Message:   awssdk.String(notice.Body),
	})
	if err != nil {
		return apperrors.NewDeliveryError(string(models.ChannelPush), err)
	}
	return nil
}

// SMSSender delivers via SNS direct SMS publish.
type SMSSender struct {
	sns      *aws.SNSClient
	senderID string
}

// NewSMSSender creates an SMSSender.
func NewSMSSender(client *aws.SNSClient, senderID string) *SMSSender {
	return &SMSSender{sns: client, senderID: senderID}
}

func (s *SMSSender) Send(ctx context.Context, contact directory.Contact, notice Notice) error {
	if contact.PhoneNumber == "" {
		return apperrors.NewDeliveryError(string(models.ChannelSMS), fmt.Errorf("contact has no phone number"))
	}

	input := &sns.PublishInput{
		PhoneNumber: awssdk.String(contact.PhoneNumber),
		Message:     awssdk.String(notice.Body),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    awssdk.String("String"),
				StringValue: awssdk.String("Transactional"),
			},
		},
	}
	if s.senderID != "" {
		input.MessageAttributes["AWS.SNS.SMS.SenderID"] = snstypes.MessageAttributeValue{
			DataType:    awssdk.String("String"),
			StringValue: awssdk.String(s.senderID),
		}
	}

	if _, err := s.sns.Publish(ctx, input); err != nil {
		return apperrors.NewDeliveryError(string(models.ChannelSMS), err)
	}
	return nil
}

// EmailSender delivers via SES.
type EmailSender struct {
	ses  *aws.SESClient
	from string
}

// NewEmailSender creates an EmailSender.
func NewEmailSender(client *aws.SESClient, from string) *EmailSender {
	return &EmailSender{ses: client, from: from}
}

func (s *EmailSender) Send(ctx context.Context, contact directory.Contact, notice Notice) error {
	if contact.Email == "" {
		return apperrors.NewDeliveryError(string(models.ChannelEmail), fmt.Errorf("contact has no email address"))
	}

	_, err := s.ses.SendEmail(ctx, &ses.SendEmailInput{
		Source: awssdk.String(s.from),
		Destination: &sestypes.Destination{
			ToAddresses: []string{contact.Email},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: awssdk.String(notice.Subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: awssdk.String(notice.Body)},
			},
		},
	})
	if err != nil {
		return apperrors.NewDeliveryError(string(models.ChannelEmail), err)
	}
	return nil
}

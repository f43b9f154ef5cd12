package email

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// sesAPI is the subset of the SES v2 client used here.
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESConfig selects the region and, optionally, static credentials.
// Empty keys fall back to the AWS default credential chain.
type SESConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// SESSender sends emails via AWS SES v2.
type SESSender struct {
	client   sesAPI
	identity Identity
}

// NewSESSender loads AWS configuration and builds an SES client that signs
// messages as id.
// PRE: cfg.Region is set or defaults to us-east-1
// POST: Returns a ready-to-use sender or the AWS config error
func NewSESSender(ctx context.Context, cfg SESConfig, id Identity) (*SESSender, error) {
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &SESSender{client: sesv2.NewFromConfig(awsCfg), identity: id}, nil
}

// Send delivers a single email through AWS SES.
// PRE: req has at least one recipient and a subject
// POST: Email accepted by SES; returns the SES message ID
func (s *SESSender) Send(ctx context.Context, req SendRequest) (SendResult, error) {
	out, err := s.client.SendEmail(ctx, sesInput(s.identity.apply(req)))
	if err != nil {
		return SendResult{}, fmt.Errorf("ses: %w", err)
	}
	messageID := aws.ToString(out.MessageId)
	slog.Debug("email_accepted", "provider", "ses", "message_id", messageID, "tags", req.Tags)
	return SendResult{MessageID: messageID, SentAt: time.Now()}, nil
}

func sesInput(req SendRequest) *sesv2.SendEmailInput {
	msg := &types.Message{
		Subject: &types.Content{Data: aws.String(req.Subject), Charset: aws.String("UTF-8")},
		Body: &types.Body{
			Html: &types.Content{Data: aws.String(req.HTML), Charset: aws.String("UTF-8")},
		},
	}
	for _, name := range sortedKeys(req.Headers) {
		msg.Headers = append(msg.Headers, types.MessageHeader{Name: aws.String(name), Value: aws.String(req.Headers[name])})
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(req.From),
		Destination:      &types.Destination{ToAddresses: req.To},
		Content:          &types.EmailContent{Simple: msg},
	}
	if req.ReplyTo != "" {
		input.ReplyToAddresses = []string{req.ReplyTo}
	}
	for _, name := range sortedKeys(req.Tags) {
		input.EmailTags = append(input.EmailTags, types.MessageTag{Name: aws.String(name), Value: aws.String(req.Tags[name])})
	}
	return input
}

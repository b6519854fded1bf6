package mailer

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrz1836/postmark"
)

var (
	ErrInvalidConfig = errors.New("mailer.invalid_config")
	ErrSendFailed    = errors.New("mailer.send_failed")
)

type postmarkSender struct {
	client *postmark.Client
	config Config
}

// NewPostmarkSender creates a Postmark-backed sender. Both tokens are
// required: a production mailer must fail at construction, not on the first
// password-reset request.
func NewPostmarkSender(cfg Config) (Sender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	if cfg.PostmarkAccountToken == "" {
		return nil, fmt.Errorf("%w: PostmarkAccountToken is required", ErrInvalidConfig)
	}
	if cfg.SenderEmail == "" {
		return nil, fmt.Errorf("%w: SenderEmail is required", ErrInvalidConfig)
	}

	return &postmarkSender{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		config: cfg,
	}, nil
}

func (s *postmarkSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:     s.config.SenderEmail,
		To:       params.SendTo,
		Subject:  params.Subject,
		Tag:      params.Tag,
		HTMLBody: params.BodyHTML,
	})
	if err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrSendFailed, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}

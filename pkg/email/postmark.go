package email

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/mrz1836/postmark"
)

// PostmarkOption configures the Postmark sender.
type PostmarkOption func(*PostmarkSender)

// WithBaseURL overrides the Postmark API endpoint.
func WithBaseURL(url string) PostmarkOption {
	return func(s *PostmarkSender) {
		if url != "" {
			s.client.BaseURL = url
		}
	}
}

// PostmarkSender sends mail through Postmark's transactional API.
type PostmarkSender struct {
	client *postmark.Client
	from   string
}

// NewPostmarkSender validates cfg and returns a ready sender.
func NewPostmarkSender(cfg Config, opts ...PostmarkOption) (*PostmarkSender, error) {
	if cfg.PostmarkServerToken == "" {
		return nil, fmt.Errorf("%w: PostmarkServerToken is required", ErrInvalidConfig)
	}
	addr, err := mail.ParseAddress(cfg.SenderEmail)
	if err != nil {
		return nil, fmt.Errorf("%w: SenderEmail must be a valid email address", ErrInvalidConfig)
	}

	from := addr.Address
	if cfg.SenderName != "" {
		from = (&mail.Address{Name: cfg.SenderName, Address: addr.Address}).String()
	}

	s := &PostmarkSender{
		client: postmark.NewClient(cfg.PostmarkServerToken, cfg.PostmarkAccountToken),
		from:   from,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SendEmail implements EmailSender. Opens and HTML link clicks are tracked.
func (s *PostmarkSender) SendEmail(ctx context.Context, params SendEmailParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	resp, err := s.client.SendEmail(ctx, postmark.Email{
		From:       s.from,
		ReplyTo:    params.ReplyTo,
		To:         params.SendTo,
		Subject:    params.Subject,
		Tag:        params.Tag,
		HTMLBody:   params.BodyHTML,
		TrackOpens: true,
		TrackLinks: "HtmlOnly",
	})
	if err != nil {
		return errors.Join(ErrFailedToSendEmail, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrFailedToSendEmail, fmt.Errorf("postmark error %d: %s", resp.ErrorCode, resp.Message))
	}
	return nil
}

// Package email defines the outbound mail contract and its transports:
// Postmark for deployed environments and a file-writing sender for local work.
package email

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
)

// EmailSender delivers a single transactional message.
type EmailSender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams describes one outbound message.
type SendEmailParams struct {
	SendTo   string `json:"send_to"`
	ReplyTo  string `json:"reply_to,omitempty"`
	FromName string `json:"from_name,omitempty"`
	Subject  string `json:"subject"`
	BodyHTML string `json:"body_html"`
	Tag      string `json:"tag,omitempty"`
}

// Validate checks that the message can be handed to a transport.
func (p SendEmailParams) Validate() error {
	if _, err := mail.ParseAddress(p.SendTo); err != nil || strings.TrimSpace(p.SendTo) == "" {
		return fmt.Errorf("%w: invalid recipient %q", ErrInvalidParams, p.SendTo)
	}
	if p.ReplyTo != "" {
		if _, err := mail.ParseAddress(p.ReplyTo); err != nil {
			return fmt.Errorf("%w: invalid reply-to %q", ErrInvalidParams, p.ReplyTo)
		}
	}
	if strings.TrimSpace(p.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidParams)
	}
	if strings.TrimSpace(p.BodyHTML) == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidParams)
	}
	return nil
}

// New picks the transport for cfg: the file sender in dev mode, Postmark otherwise.
func New(cfg Config) (EmailSender, error) {
	if cfg.DevMode {
		return NewDevSender(cfg.DevDir), nil
	}
	s, err := NewPostmarkSender(cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Copyright 2025 The CampussGo Authors
// Licensed under the EUPL-1.2

// Package email delivers out-of-band notifications (OTP codes, reset links,
// confirmations) over SMTP.
package email

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"

	"codeberg.org/campussgo/campussgo/internal/config"
	"codeberg.org/campussgo/campussgo/internal/models"
)

// DialTimeout bounds the SMTP connection attempt so a stalled mail server
// cannot block the triggering request indefinitely.
const DialTimeout = 10 * time.Second

// Service sends notification mail via SMTP.
type Service struct {
	cfg *config.SMTPConfig
}

// NewService creates a new email service.
func NewService(cfg *config.SMTPConfig) (*Service, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("SMTP host is required")
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("SMTP from address is required")
	}
	return &Service{cfg: cfg}, nil
}

// SendOTP delivers the verification code for an outstanding OTP challenge.
func (s *Service) SendOTP(ctx context.Context, user *models.User, otp string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\n"+
			"Thank you for registering with CampussGo. Please verify your university\n"+
			"email address by entering the following verification code:\n\n"+
			"    %s\n\n"+
			"This verification code is valid for 10 minutes only.\n\n"+
			"If you did not request this verification, please ignore this email.\n",
		user.Name, otp)

	return s.send(ctx, user.Email, "Email Verification - CampussGo", body)
}

// SendResetLink delivers the password-reset URL for an outstanding challenge.
func (s *Service) SendResetLink(ctx context.Context, user *models.User, url string) error {
	body := fmt.Sprintf(
		"Hi %s,\n\n"+
			"We received a request to reset the password for your CampussGo account.\n"+
			"Open the link below to choose a new password:\n\n"+
			"    %s\n\n"+
			"This link is valid for 10 minutes only.\n\n"+
			"If you did not request a password reset, please ignore this email.\n",
		user.Name, url)

	return s.send(ctx, user.Email, "Reset Your Password - CampussGo", body)
}

// SendResetConfirmation notifies the user that their password changed.
func (s *Service) SendResetConfirmation(ctx context.Context, toEmail string) error {
	body := "Hi,\n\n" +
		"Your CampussGo password has been reset successfully. You can now log in\n" +
		"with your new password.\n\n" +
		"If you did not make this change, please contact support immediately.\n"

	return s.send(ctx, toEmail, "Password Reset Successful - CampussGo", body)
}

// send sends an email via SMTP using go-mail.
func (s *Service) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()

	if s.cfg.FromName != "" {
		if err := msg.FromFormat(s.cfg.FromName, s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	} else {
		if err := msg.From(s.cfg.From); err != nil {
			return fmt.Errorf("setting from address: %w", err)
		}
	}

	if err := msg.To(to); err != nil {
		return fmt.Errorf("setting to address: %w", err)
	}

	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTimeout(DialTimeout),
	}

	if s.cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
		// Use implicit TLS (SSL) for port 465, STARTTLS for others
		if s.cfg.Port == 465 {
			opts = append(opts, mail.WithSSL())
		}
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}

	if s.cfg.Username != "" && s.cfg.Password != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("creating mail client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}

	return nil
}

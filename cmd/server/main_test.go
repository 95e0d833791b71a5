package main

import (
	"testing"

	"go.uber.org/zap"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/config"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/notify"
)

const strongSecret = "0123456789abcdef0123456789abcdef"

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: "short"})
	if err == nil {
		t.Fatalf("expected weak security config to be rejected")
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{AuthSecret: strongSecret})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestProductionRequiresSMTPAndOrigin(t *testing.T) {
	cfg := config.Config{Env: "production", AuthSecret: strongSecret, AllowedOrigin: "https://salon.example.com"}
	if err := validateSecurityConfig(cfg); err == nil {
		t.Fatalf("expected production without smtp to be rejected")
	}

	cfg.SMTPHost = "smtp.example.com"
	cfg.SMTPFrom = "no-reply@example.com"
	if err := validateSecurityConfig(cfg); err != nil {
		t.Fatalf("expected production config to pass, got %v", err)
	}

	cfg.AllowedOrigin = "*"
	if err := validateSecurityConfig(cfg); err == nil {
		t.Fatalf("expected wildcard origin to be rejected in production")
	}
}

func TestBillSinksFollowConfiguration(t *testing.T) {
	logger := zap.NewNop()

	if sinks := billSinks(config.Config{}, logger); len(sinks) != 0 {
		t.Fatalf("expected no sinks without configuration, got %d", len(sinks))
	}

	sinks := billSinks(config.Config{
		SheetsPath:     t.TempDir() + "/bills.xlsx",
		WhatsAppAPIURL: "https://graph.example.com/v17.0/123/messages",
		WhatsAppToken:  "token",
	}, logger)
	if len(sinks) != 2 {
		t.Fatalf("expected spreadsheet and whatsapp sinks, got %d", len(sinks))
	}
	if sinks[0].Name() != "spreadsheet" || sinks[1].Name() != "whatsapp" {
		t.Fatalf("unexpected sink order %s, %s", sinks[0].Name(), sinks[1].Name())
	}
}

func TestNewMailerFallsBackToLog(t *testing.T) {
	if _, ok := newMailer(config.Config{}, zap.NewNop()).(*notify.LogMailer); !ok {
		t.Fatalf("expected log mailer without smtp configuration")
	}
	mailer := newMailer(config.Config{SMTPHost: "smtp.example.com", SMTPPort: 587, SMTPFrom: "no-reply@example.com"}, zap.NewNop())
	if _, ok := mailer.(*notify.SMTPMailer); !ok {
		t.Fatalf("expected smtp mailer when configured")
	}
}

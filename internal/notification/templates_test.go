package notification

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Aidin1998/crowdfund/internal/config"
)

func TestNotifierRendersTemplate(t *testing.T) {
	mailer := &MemoryMailer{}
	n := NewNotifier(mailer, "https://app.example.com/", zap.NewNop())

	link := n.Link("/auth/magic-link", "a b+c")
	assert.Equal(t, "https://app.example.com/auth/magic-link?token=a+b%2Bc", link)

	n.Send(context.Background(), KindMagicLink, "ada@example.com", "Ada", map[string]string{"link": link, "ttl": "15m0s"})

	msg, ok := mailer.Last(KindMagicLink)
	require.True(t, ok)
	assert.Equal(t, "ada@example.com", msg.To)
	assert.Contains(t, msg.TextBody, "Hi Ada")
	assert.Contains(t, msg.TextBody, link)
	assert.Contains(t, msg.HTMLBody, "15m0s")
	assert.NotContains(t, msg.TextBody, "{")
}

func TestNotifierIgnoresUnknownKind(t *testing.T) {
	mailer := &MemoryMailer{}
	NewNotifier(mailer, "", zap.NewNop()).Send(context.Background(), Kind("nope"), "x@example.com", "x", nil)
	assert.Empty(t, mailer.Sent())
}

func TestNewMailerWithoutHostLogs(t *testing.T) {
	_, ok := NewMailer(config.SMTPConfig{}, zap.NewNop()).(*LogMailer)
	assert.True(t, ok)
	_, ok = NewMailer(config.SMTPConfig{Host: "smtp.example.com", Port: 587}, zap.NewNop()).(*SMTPMailer)
	assert.True(t, ok)
}

func TestLogMailerKeepsBodiesOutOfInfoLogs(t *testing.T) {
	msg := Message{
		To:       "ada@example.com",
		Kind:     KindPasswordReset,
		Subject:  "Reset your password",
		TextBody: "reset here: https://app.example.com/reset?token=secret-token-123",
	}

	core, logs := observer.New(zapcore.InfoLevel)
	require.NoError(t, NewLogMailer(zap.New(core)).Send(context.Background(), msg))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "ada@example.com", entry.ContextMap()["to"])
	assert.NotContains(t, entry.ContextMap(), "body")
	for _, e := range logs.All() {
		for _, v := range e.ContextMap() {
			assert.NotContains(t, v, "secret-token-123")
		}
	}

	core, logs = observer.New(zapcore.DebugLevel)
	require.NoError(t, NewLogMailer(zap.New(core)).Send(context.Background(), msg))
	require.Equal(t, 1, logs.FilterMessage("Undelivered email body").Len())
	assert.Contains(t, logs.FilterMessage("Undelivered email body").All()[0].ContextMap()["body"], "secret-token-123")
}

func TestEveryKindHasTemplate(t *testing.T) {
	for _, kind := range []Kind{KindWelcome, KindPasswordReset, KindMagicLink, KindAccountActivated, KindAccountDeactivated, KindTestSimple} {
		mailer := &MemoryMailer{}
		NewNotifier(mailer, "", zap.NewNop()).Send(context.Background(), kind, "x@example.com", "Ada", map[string]string{"link": "l", "ttl": "1h"})
		msg, ok := mailer.Last(kind)
		require.True(t, ok, kind)
		assert.NotEmpty(t, msg.Subject)
		assert.Contains(t, msg.TextBody, "Hi Ada")
	}
}

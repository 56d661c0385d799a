package notification

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Kind identifies a message template
type Kind string

const (
	KindWelcome            Kind = "welcome"
	KindPasswordReset      Kind = "password_reset"
	KindMagicLink          Kind = "magic_link"
	KindAccountActivated   Kind = "account_activated"
	KindAccountDeactivated Kind = "account_deactivated"
	KindTestSimple         Kind = "test_simple"
)

type template struct {
	Subject  string
	TextBody string
	HTMLBody string
}

var templates = map[Kind]template{
	KindWelcome: {
		Subject:  "Welcome to Crowdfund",
		TextBody: "Hi {name},\n\nyour account is ready. Sign in at {link}\n",
		HTMLBody: "<p>Hi {name},</p><p>your account is ready. <a href=\"{link}\">Sign in</a></p>",
	},
	KindPasswordReset: {
		Subject:  "Reset your password",
		TextBody: "Hi {name},\n\nreset your password here: {link}\nThe link expires in {ttl}.\n",
		HTMLBody: "<p>Hi {name},</p><p><a href=\"{link}\">Reset your password</a>. The link expires in {ttl}.</p>",
	},
	KindMagicLink: {
		Subject:  "Your sign-in link",
		TextBody: "Hi {name},\n\nsign in with this link: {link}\nIt can be used once and expires in {ttl}.\n",
		HTMLBody: "<p>Hi {name},</p><p><a href=\"{link}\">Sign in</a>. The link can be used once and expires in {ttl}.</p>",
	},
	KindAccountActivated: {
		Subject:  "Your account has been activated",
		TextBody: "Hi {name},\n\nan administrator activated your account. Sign in at {link}\n",
		HTMLBody: "<p>Hi {name},</p><p>an administrator activated your account. <a href=\"{link}\">Sign in</a></p>",
	},
	KindAccountDeactivated: {
		Subject:  "Your account has been deactivated",
		TextBody: "Hi {name},\n\nan administrator deactivated your account.\n",
		HTMLBody: "<p>Hi {name},</p><p>an administrator deactivated your account.</p>",
	},
	KindTestSimple: {
		Subject:  "Crowdfund test email",
		TextBody: "Hi {name},\n\nthis is a test message sent by an administrator.\n",
		HTMLBody: "<p>Hi {name},</p><p>this is a test message sent by an administrator.</p>",
	},
}

// Notifier renders templates and hands them to a Mailer. Delivery failures
// are logged, never returned, so a broken relay cannot fail a request.
type Notifier struct {
	mailer      Mailer
	frontendURL string
	logger      *zap.Logger
}

func NewNotifier(mailer Mailer, frontendURL string, logger *zap.Logger) *Notifier {
	return &Notifier{mailer: mailer, frontendURL: strings.TrimRight(frontendURL, "/"), logger: logger}
}

// Link builds an absolute frontend URL carrying an optional token.
func (n *Notifier) Link(path, token string) string {
	link := n.frontendURL + path
	if token != "" {
		link += "?token=" + url.QueryEscape(token)
	}
	return link
}

// Send renders kind for recipient and delivers it, logging any failure.
func (n *Notifier) Send(ctx context.Context, kind Kind, to, name string, vars map[string]string) {
	if err := n.Deliver(ctx, kind, to, name, vars); err != nil {
		n.logger.Error("Failed to send email",
			zap.String("kind", string(kind)),
			zap.String("to", to),
			zap.Error(err))
	}
}

// Deliver renders kind for recipient and returns the mailer's error.
func (n *Notifier) Deliver(ctx context.Context, kind Kind, to, name string, vars map[string]string) error {
	tpl, ok := templates[kind]
	if !ok {
		return fmt.Errorf("unknown email template %q", kind)
	}

	pairs := []string{"{name}", name}
	for k, v := range vars {
		pairs = append(pairs, fmt.Sprintf("{%s}", k), v)
	}
	r := strings.NewReplacer(pairs...)

	msg := Message{
		To:       to,
		Kind:     kind,
		Subject:  r.Replace(tpl.Subject),
		TextBody: r.Replace(tpl.TextBody),
		HTMLBody: r.Replace(tpl.HTMLBody),
	}
	return n.mailer.Send(ctx, msg)
}

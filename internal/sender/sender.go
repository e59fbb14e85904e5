package sender

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/tracyhatemice/mailnotify/internal/config"
)

// RecipientKind tells a sink how to address a recipient ID.
type RecipientKind int

const (
	User RecipientKind = iota
	Group
)

func (k RecipientKind) String() string {
	if k == Group {
		return "group"
	}
	return "user"
}

// Recipient is one notification target.
type Recipient struct {
	Kind RecipientKind
	ID   string
}

// Sink delivers notification text. Delivery is fire-and-forget: sinks log
// their own failures and never retry.
type Sink interface {
	Deliver(ctx context.Context, to Recipient, text string)
}

// New builds the sink selected by cfg.Kind.
func New(cfg config.Notifier, logger *zap.Logger) (Sink, error) {
	switch cfg.Kind {
	case "onebot":
		return NewOneBot(cfg.OneBot.URL, cfg.OneBot.AccessToken, logger), nil
	case "smtp":
		return NewSMTP(
			cfg.SMTP.Host,
			cfg.SMTP.Port,
			cfg.SMTP.Username,
			cfg.SMTP.Password,
			cfg.SMTP.UseTLS,
			cfg.SMTP.From,
			logger,
		), nil
	case "log", "":
		return NewLog(logger), nil
	default:
		return nil, fmt.Errorf("unsupported notifier: %s", cfg.Kind)
	}
}

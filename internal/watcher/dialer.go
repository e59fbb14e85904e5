package watcher

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tracyhatemice/mailnotify/internal/config"
	"github.com/tracyhatemice/mailnotify/internal/receiver"
)

// NewDialer returns the protocol dialer for mbox.
func NewDialer(mbox config.Mailbox, logger *zap.Logger) (receiver.Dialer, error) {
	switch mbox.GetProtocol() {
	case "imap":
		return receiver.NewIMAP(
			mbox.Server, mbox.GetPort(),
			mbox.Email, mbox.Password,
			mbox.GetInbox(), logger,
		), nil
	case "pop3":
		return receiver.NewPOP3(
			mbox.Server, mbox.GetPort(),
			mbox.Email, mbox.Password,
			logger,
		), nil
	default:
		return nil, fmt.Errorf("unsupported protocol: %s", mbox.Protocol)
	}
}

package imap

import (
	"context"
	"time"

	idle "github.com/emersion/go-imap-idle"
	imapclient "github.com/emersion/go-imap/client"

	"github.com/maildeck/maildeck/internal/mailerr"
)

// watchPollInterval is the fallback polling cadence when the server does not
// support IDLE.
const watchPollInterval = 5 * time.Second

// WatchFunc receives new-mail notifications: the watched folder and its
// message count at the time of the update.
type WatchFunc func(folder string, total uint32)

// Watch selects the folder and runs an IDLE loop until the context is
// canceled or the session breaks, invoking fn on mailbox updates. The owner
// handles reconnecting with backoff; the session should be dedicated to
// watching, as the loop monopolizes it.
func (m *Mailbox) Watch(ctx context.Context, folder string, fn WatchFunc) error {
	const op = "imap.idle"

	c, _, err := m.selectFolder(op, folder)
	if err != nil {
		return err
	}

	idleClient := idle.NewClient(c)

	updates := make(chan imapclient.Update, 10)
	c.Updates = updates

	stop := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- idleClient.IdleWithFallback(stop, m.pollInterval())
	}()

	for {
		select {
		case <-ctx.Done():
			close(stop)
			return nil
		case err := <-done:
			if err != nil {
				return m.wrap(mailerr.Connection, op, err)
			}
			return nil
		case update := <-updates:
			notifyUpdate(update, folder, fn)
		}
	}
}

// notifyUpdate invokes fn for updates that indicate mailbox activity. Only
// mailbox status updates with a nonzero message count count as activity.
func notifyUpdate(update imapclient.Update, folder string, fn WatchFunc) {
	mboxUpdate, ok := update.(*imapclient.MailboxUpdate)
	if !ok || mboxUpdate.Mailbox == nil {
		return
	}
	if mboxUpdate.Mailbox.Messages == 0 {
		return
	}
	fn(folder, mboxUpdate.Mailbox.Messages)
}

func (m *Mailbox) pollInterval() time.Duration {
	if m.PollInterval > 0 {
		return m.PollInterval
	}
	return watchPollInterval
}

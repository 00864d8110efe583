package client

import (
	"context"

	"github.com/maildeck/maildeck/internal/imap"
	"github.com/maildeck/maildeck/internal/models"
)

// Read operations prefer a cached REST session and fall back to a cached IMAP
// session. Mutations go to IMAP and sends to SMTP exclusively. In every case
// the absence of the needed session is a Connection error, never an implicit
// connect and never silently empty results.

// ListFolders lists the account's folders.
func (m *Manager) ListFolders(ctx context.Context, accountID string) ([]string, error) {
	if s := m.lookupREST(accountID); s != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.client.ListFolders(ctx)
	}

	s, err := m.requireIMAP(accountID, "client.folders")
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mb.ListFolders()
}

// FetchMessages fetches up to limit newest messages from the folder.
func (m *Manager) FetchMessages(ctx context.Context, accountID, folder string, limit int) ([]*models.Message, error) {
	if s := m.lookupREST(accountID); s != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.client.FetchMessages(ctx, folder, limit)
	}

	s, err := m.requireIMAP(accountID, "client.fetch")
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mb.FetchMessages(folder, limit)
}

// FetchMessageBody fetches one message with its full body.
func (m *Manager) FetchMessageBody(ctx context.Context, accountID, folder, messageID string) (*models.Message, error) {
	if s := m.lookupREST(accountID); s != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.client.FetchMessageBody(ctx, folder, messageID)
	}

	s, err := m.requireIMAP(accountID, "client.fetch.body")
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mb.FetchMessageBody(folder, messageID)
}

// SearchMessages searches the folder server-side.
func (m *Manager) SearchMessages(ctx context.Context, accountID, folder, query string, limit int) ([]*models.Message, error) {
	if s := m.lookupREST(accountID); s != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.client.SearchMessages(ctx, folder, query, limit)
	}

	s, err := m.requireIMAP(accountID, "client.search")
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mb.SearchMessages(folder, query, limit)
}

// SendMessage submits the message over the account's cached SMTP session.
func (m *Manager) SendMessage(accountID string, msg *models.Message) error {
	s, err := m.requireSMTP(accountID, "client.send")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sender.Send(msg)
}

// MoveMessage moves a message between folders over the cached IMAP session.
func (m *Manager) MoveMessage(accountID, fromFolder, toFolder, messageID string) error {
	s, err := m.requireIMAP(accountID, "client.move")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mb.MoveMessage(fromFolder, toFolder, messageID)
}

// DeleteMessage deletes a message over the cached IMAP session. The removal
// is terminal.
func (m *Manager) DeleteMessage(accountID, folder, messageID string) error {
	s, err := m.requireIMAP(accountID, "client.delete")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mb.DeleteMessage(folder, messageID)
}

// MarkAsRead sets the Seen flag on the message over the cached IMAP session.
func (m *Manager) MarkAsRead(accountID, folder, messageID string) error {
	s, err := m.requireIMAP(accountID, "client.mark")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mb.SetFlags(folder, messageID, []models.Flag{models.FlagSeen})
}

// Watch runs the folder watch loop on a dedicated IMAP session until ctx is
// done, invoking fn on every new-message notification. The session is opened
// for the watch and torn down when it ends, leaving any cached session free
// for regular operations.
func (m *Manager) Watch(ctx context.Context, accountID, folder string, fn imap.WatchFunc) error {
	acct, err := m.Account(accountID)
	if err != nil {
		return err
	}

	mb := imap.NewMailbox(acct)
	if err := mb.Connect(); err != nil {
		return err
	}
	defer func() { _ = mb.Disconnect() }()

	return mb.Watch(ctx, folder, fn)
}

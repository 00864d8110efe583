package imap

import (
	"github.com/emersion/go-imap"

	"github.com/maildeck/maildeck/internal/mailerr"
)

// ListFolders lists all folders on the IMAP server.
func (m *Mailbox) ListFolders() ([]string, error) {
	const op = "imap.list"

	c, err := m.session(op)
	if err != nil {
		return nil, err
	}

	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)

	go func() {
		done <- c.List("", "*", mailboxes)
	}()

	var folders []string
	for mbox := range mailboxes {
		folders = append(folders, mbox.Name)
	}

	if err := <-done; err != nil {
		return nil, m.wrap(mailerr.Protocol, op, err)
	}

	return folders, nil
}

package imap

import (
	"github.com/emersion/go-imap"

	"github.com/maildeck/maildeck/internal/mailerr"
	"github.com/maildeck/maildeck/internal/models"
)

// SearchMessages runs a server-side TEXT search in the folder and fetches
// the matching headers, newest-first, truncated to limit.
func (m *Mailbox) SearchMessages(folder, query string, limit int) ([]*models.Message, error) {
	const op = "imap.search"

	c, _, err := m.selectFolder(op, folder)
	if err != nil {
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	if query != "" {
		criteria.Text = []string{query}
	}

	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, m.wrap(mailerr.Protocol, op, err)
	}

	if len(uids) == 0 {
		return []*models.Message{}, nil
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uids...)

	messages, err := m.fetchHeaders(c, folder, seqSet, true)
	if err != nil {
		return nil, m.wrap(mailerr.Protocol, op, err)
	}

	sortNewestFirst(messages)
	if limit > 0 && len(messages) > limit {
		messages = messages[:limit]
	}

	return messages, nil
}

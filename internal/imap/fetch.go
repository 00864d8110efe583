package imap

import (
	"log"
	"sort"

	"github.com/emersion/go-imap"
	sortthread "github.com/emersion/go-imap-sortthread"
	imapclient "github.com/emersion/go-imap/client"

	"github.com/maildeck/maildeck/internal/mailerr"
	"github.com/maildeck/maildeck/internal/models"
)

// headerItems are the items retrieved for message listings. Bodies are
// fetched separately, one message at a time.
var headerItems = []imap.FetchItem{
	imap.FetchEnvelope,
	imap.FetchFlags,
	imap.FetchInternalDate,
	imap.FetchRFC822Size,
	imap.FetchUid,
}

// FetchMessages fetches the newest messages in the folder, headers only.
// When the server advertises SORT, UID SORT by arrival picks the newest
// UIDs; otherwise the newest sequence-number window is fetched. The result
// is sorted newest-first and truncated to limit.
func (m *Mailbox) FetchMessages(folder string, limit int) ([]*models.Message, error) {
	const op = "imap.fetch"

	c, mbox, err := m.selectFolder(op, folder)
	if err != nil {
		return nil, err
	}

	if limit <= 0 || mbox.Messages == 0 {
		return []*models.Message{}, nil
	}

	seqSet := new(imap.SeqSet)
	byUID := false

	sortClient := sortthread.NewSortClient(c)
	if ok, err := sortClient.SupportSort(); err == nil && ok {
		criteria := []sortthread.SortCriterion{
			{Field: sortthread.SortArrival, Reverse: true},
		}
		uids, err := sortClient.UidSort(criteria, imap.NewSearchCriteria())
		if err != nil {
			return nil, m.wrap(mailerr.Protocol, op, err)
		}
		if len(uids) == 0 {
			return []*models.Message{}, nil
		}
		if len(uids) > limit {
			uids = uids[:limit]
		}
		seqSet.AddNum(uids...)
		byUID = true
	} else {
		from := uint32(1)
		if mbox.Messages > uint32(limit) {
			from = mbox.Messages - uint32(limit) + 1
		}
		seqSet.AddRange(from, mbox.Messages)
	}

	messages, err := m.fetchHeaders(c, folder, seqSet, byUID)
	if err != nil {
		return nil, m.wrap(mailerr.Protocol, op, err)
	}

	sortNewestFirst(messages)
	if len(messages) > limit {
		messages = messages[:limit]
	}

	return messages, nil
}

// FetchMessageBody fetches the full message: headers, parsed body, and
// attachment metadata.
func (m *Mailbox) FetchMessageBody(folder, id string) (*models.Message, error) {
	const op = "imap.fetch.body"

	uid, err := parseUID(id)
	if err != nil {
		return nil, mailerr.WithAccount(mailerr.E(mailerr.Parse, op, err), m.acct.ID)
	}

	c, _, err := m.selectFolder(op, folder)
	if err != nil {
		return nil, err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{}
	items := append(append([]imap.FetchItem{}, headerItems...), section.FetchItem())

	imapMessages := make(chan *imap.Message, 1)
	done := make(chan error, 1)

	go func() {
		done <- c.UidFetch(seqSet, items, imapMessages)
	}()

	imapMsg := <-imapMessages
	fetchErr := <-done
	if fetchErr != nil {
		return nil, m.wrap(mailerr.Protocol, op, fetchErr)
	}
	if imapMsg == nil {
		return nil, mailerr.WithAccount(mailerr.Errorf(mailerr.Protocol, op, "message %s not found in %s", id, folder), m.acct.ID)
	}

	msg, err := parseHeaders(imapMsg, m.acct.ID, folder)
	if err != nil {
		return nil, mailerr.WithAccount(mailerr.E(mailerr.Parse, op, err), m.acct.ID)
	}

	bodyReader := imapMsg.GetBody(section)
	if bodyReader == nil {
		return nil, mailerr.WithAccount(mailerr.Errorf(mailerr.Protocol, op, "server did not return body for message %s", id), m.acct.ID)
	}

	body, attachments, err := parseBody(bodyReader)
	if err != nil {
		return nil, mailerr.WithAccount(mailerr.E(mailerr.Parse, op, err), m.acct.ID)
	}

	msg.Body = body
	msg.Attachments = attachments
	return msg, nil
}

// fetchHeaders runs the FETCH and converts each response to the canonical
// model. Unparseable messages are skipped, not fatal.
func (m *Mailbox) fetchHeaders(c *imapclient.Client, folder string, seqSet *imap.SeqSet, byUID bool) ([]*models.Message, error) {
	imapMessages := make(chan *imap.Message, 10)
	done := make(chan error, 1)

	go func() {
		if byUID {
			done <- c.UidFetch(seqSet, headerItems, imapMessages)
		} else {
			done <- c.Fetch(seqSet, headerItems, imapMessages)
		}
	}()

	var messages []*models.Message
	for imapMsg := range imapMessages {
		msg, err := parseHeaders(imapMsg, m.acct.ID, folder)
		if err != nil {
			log.Printf("Warning: skipping unparseable message in %s: %v", folder, err)
			continue
		}
		messages = append(messages, msg)
	}

	if err := <-done; err != nil {
		return nil, err
	}

	return messages, nil
}

// sortNewestFirst orders messages by date descending.
func sortNewestFirst(messages []*models.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Date.After(messages[j].Date)
	})
}

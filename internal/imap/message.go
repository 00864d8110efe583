package imap

import (
	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"

	"github.com/maildeck/maildeck/internal/mailerr"
	"github.com/maildeck/maildeck/internal/models"
)

// SetFlags adds the mapped wire flags to the message. Flags outside the five
// shared ones are dropped; when nothing survives the mapping the call is a
// no-op.
func (m *Mailbox) SetFlags(folder, id string, flags []models.Flag) error {
	const op = "imap.store"

	uid, err := parseUID(id)
	if err != nil {
		return mailerr.WithAccount(mailerr.E(mailerr.Parse, op, err), m.acct.ID)
	}

	wireFlags := flagsToIMAP(flags)
	if len(wireFlags) == 0 {
		return nil
	}

	c, _, err := m.selectFolder(op, folder)
	if err != nil {
		return err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.UidStore(seqSet, item, wireFlags, nil); err != nil {
		return m.wrap(mailerr.Protocol, op, err)
	}

	return nil
}

// MoveMessage copies the message to another folder, then removes the
// original by marking it deleted and expunging.
func (m *Mailbox) MoveMessage(from, to, id string) error {
	const op = "imap.move"

	uid, err := parseUID(id)
	if err != nil {
		return mailerr.WithAccount(mailerr.E(mailerr.Parse, op, err), m.acct.ID)
	}

	c, _, err := m.selectFolder(op, from)
	if err != nil {
		return err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	if err := c.UidCopy(seqSet, to); err != nil {
		return m.wrap(mailerr.Protocol, op, err)
	}

	return m.expungeAsDeleted(c, op, uid)
}

// DeleteMessage marks the message deleted and expunges the folder. There is
// no soft delete; the removal is terminal.
func (m *Mailbox) DeleteMessage(folder, id string) error {
	const op = "imap.delete"

	uid, err := parseUID(id)
	if err != nil {
		return mailerr.WithAccount(mailerr.E(mailerr.Parse, op, err), m.acct.ID)
	}

	c, _, err := m.selectFolder(op, folder)
	if err != nil {
		return err
	}

	return m.expungeAsDeleted(c, op, uid)
}

// expungeAsDeleted sets \Deleted on the UID and expunges the selected folder.
func (m *Mailbox) expungeAsDeleted(c *imapclient.Client, op string, uid uint32) error {
	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	item := imap.FormatFlagsOp(imap.AddFlags, true)
	if err := c.UidStore(seqSet, item, []interface{}{imap.DeletedFlag}, nil); err != nil {
		return m.wrap(mailerr.Protocol, op, err)
	}

	if err := c.Expunge(nil); err != nil {
		return m.wrap(mailerr.Protocol, op, err)
	}

	return nil
}

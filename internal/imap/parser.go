package imap

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"

	"github.com/maildeck/maildeck/internal/models"
)

// The five shared flags map bijectively onto their IMAP wire forms.
// Everything else (\Recent, custom keywords) is dropped in both directions.
var imapToFlag = map[string]models.Flag{
	imap.SeenFlag:     models.FlagSeen,
	imap.AnsweredFlag: models.FlagAnswered,
	imap.FlaggedFlag:  models.FlagFlagged,
	imap.DeletedFlag:  models.FlagDeleted,
	imap.DraftFlag:    models.FlagDraft,
}

var flagToIMAP = map[models.Flag]string{
	models.FlagSeen:     imap.SeenFlag,
	models.FlagAnswered: imap.AnsweredFlag,
	models.FlagFlagged:  imap.FlaggedFlag,
	models.FlagDeleted:  imap.DeletedFlag,
	models.FlagDraft:    imap.DraftFlag,
}

// parseFlags converts wire flags to canonical flags, dropping unmapped ones.
func parseFlags(wireFlags []string) []models.Flag {
	var flags []models.Flag
	for _, wire := range wireFlags {
		if flag, ok := imapToFlag[wire]; ok {
			flags = append(flags, flag)
		}
	}
	return flags
}

// flagsToIMAP converts canonical flags to the wire forms STORE expects,
// dropping unmapped ones.
func flagsToIMAP(flags []models.Flag) []interface{} {
	var wireFlags []interface{}
	for _, flag := range flags {
		if wire, ok := flagToIMAP[flag]; ok {
			wireFlags = append(wireFlags, wire)
		}
	}
	return wireFlags
}

// parseUID parses a backend-native message id into an IMAP UID.
func parseUID(id string) (uint32, error) {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid message id %q: %w", id, err)
	}
	return uint32(uid), nil
}

// parseHeaders converts a FETCH response to the canonical message, bodies
// excluded. The envelope date is preferred, internal date as fallback.
func parseHeaders(imapMsg *imap.Message, accountID, folder string) (*models.Message, error) {
	if imapMsg == nil {
		return nil, errors.New("imap message is nil")
	}

	env := imapMsg.Envelope
	if env == nil {
		return nil, fmt.Errorf("message UID %d has no envelope", imapMsg.Uid)
	}

	msg := &models.Message{
		ID:        strconv.FormatUint(uint64(imapMsg.Uid), 10),
		AccountID: accountID,
		Folder:    folder,
		From:      parseAddresses(env.From),
		To:        parseAddresses(env.To),
		Cc:        parseAddresses(env.Cc),
		Bcc:       parseAddresses(env.Bcc),
		Subject:   env.Subject,
		Flags:     parseFlags(imapMsg.Flags),
	}

	msg.Date = env.Date
	if msg.Date.IsZero() {
		msg.Date = imapMsg.InternalDate
	}

	return msg, nil
}

// parseAddresses converts IMAP envelope addresses, skipping empty ones.
func parseAddresses(addresses []*imap.Address) []models.Address {
	result := make([]models.Address, 0, len(addresses))
	for _, address := range addresses {
		if address == nil {
			continue
		}
		if address.MailboxName == "" && address.HostName == "" {
			continue
		}
		result = append(result, models.Address{
			Name:    address.PersonalName,
			Address: address.Address(),
		})
	}
	return result
}

// parseBody parses a raw RFC 822 body using enmime. The canonical body is
// plain text; enmime down-converts HTML-only messages itself.
func parseBody(bodyReader io.Reader) (models.Body, []models.Attachment, error) {
	envelope, err := enmime.ReadEnvelope(bodyReader)
	if err != nil {
		return models.Body{}, nil, fmt.Errorf("failed to parse message body: %w", err)
	}

	text := envelope.Text
	if text == "" && envelope.HTML != "" {
		text = envelope.HTML
	}
	body := models.PlainBody(text)

	var attachments []models.Attachment
	for _, part := range envelope.Attachments {
		attachments = append(attachments, models.Attachment{
			Filename:    part.FileName,
			ContentType: part.ContentType,
			Size:        int64(len(part.Content)),
			Data:        part.Content,
		})
	}

	return body, attachments, nil
}

package smtp

import (
	"bytes"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/maildeck/maildeck/internal/models"
)

// buildMessage renders the canonical message to wire form. The From header is
// forced to the account identity regardless of msg.From, the body is the
// message's submission text with the account signature appended, and the
// content type follows the body kind.
func (s *Sender) buildMessage(msg *models.Message) (*bytes.Buffer, error) {
	var header mail.Header
	date := msg.Date
	if date.IsZero() {
		date = time.Now()
	}
	header.SetDate(date)
	header.SetSubject(msg.Subject)
	header.SetAddressList("From", []*mail.Address{{Name: s.acct.Name, Address: s.acct.Email}})
	if len(msg.To) > 0 {
		header.SetAddressList("To", toMailAddresses(msg.To))
	}
	if len(msg.Cc) > 0 {
		header.SetAddressList("Cc", toMailAddresses(msg.Cc))
	}
	if len(msg.Bcc) > 0 {
		header.SetAddressList("Bcc", toMailAddresses(msg.Bcc))
	}
	if msg.ID != "" {
		header.SetMsgIDList("Message-ID", []string{msg.ID})
	}

	contentType := "text/plain"
	if msg.Body.Kind == models.BodyHTML {
		contentType = "text/html"
	}
	header.SetContentType(contentType, map[string]string{"charset": "utf-8"})

	body := msg.Body.Text()
	if s.acct.Signature != "" {
		body += "\n\n--\n" + s.acct.Signature
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, header)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write([]byte(body)); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return &buf, nil
}

func toMailAddresses(addresses []models.Address) []*mail.Address {
	out := make([]*mail.Address, 0, len(addresses))
	for _, a := range addresses {
		out = append(out, &mail.Address{Name: a.Name, Address: a.Address})
	}
	return out
}

// recipientList flattens To, Cc, and Bcc into the envelope recipient list.
func recipientList(msg *models.Message) []string {
	var recipients []string
	for _, group := range [][]models.Address{msg.To, msg.Cc, msg.Bcc} {
		for _, a := range group {
			recipients = append(recipients, a.Address)
		}
	}
	return recipients
}

package rest

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/mail"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/maildeck/maildeck/internal/mailerr"
	"github.com/maildeck/maildeck/internal/models"
)

// FetchMessages lists message refs for the folder's label and resolves each
// ref to a canonical message. Refs that fail to resolve are skipped so one
// broken message does not empty the folder. Results are newest first.
func (c *Client) FetchMessages(ctx context.Context, folder string, limit int) ([]*models.Message, error) {
	const op = "rest.fetch"
	if limit <= 0 {
		return []*models.Message{}, nil
	}

	query := url.Values{}
	if labelID := folderToLabelID(folder); labelID != "" {
		query.Set("labelIds", labelID)
	}
	query.Set("maxResults", strconv.Itoa(limit))

	return c.listMessages(ctx, op, query, folder, limit)
}

// SearchMessages runs a provider-side query scoped to the folder's label and
// resolves the matches like FetchMessages. A limit of zero or less means
// unbounded.
func (c *Client) SearchMessages(ctx context.Context, folder, query string, limit int) ([]*models.Message, error) {
	const op = "rest.search"

	params := url.Values{}
	if labelID := folderToLabelID(folder); labelID != "" {
		params.Set("labelIds", labelID)
	}
	if query != "" {
		params.Set("q", query)
	}
	if limit > 0 {
		params.Set("maxResults", strconv.Itoa(limit))
	}

	return c.listMessages(ctx, op, params, folder, limit)
}

func (c *Client) listMessages(ctx context.Context, op string, query url.Values, folder string, limit int) ([]*models.Message, error) {
	var list gmailMessageList
	if err := c.get(ctx, op, "/users/me/messages?"+query.Encode(), &list); err != nil {
		return nil, err
	}

	messages := make([]*models.Message, 0, len(list.Messages))
	for _, ref := range list.Messages {
		if limit > 0 && len(messages) >= limit {
			break
		}
		var gm gmailMessage
		if err := c.get(ctx, op, "/users/me/messages/"+ref.ID, &gm); err != nil {
			log.Printf("Warning: skipping message %s in %s: %v", ref.ID, folder, err)
			continue
		}
		msg, err := c.toMessage(&gm, folder)
		if err != nil {
			log.Printf("Warning: skipping message %s in %s: %v", ref.ID, folder, err)
			continue
		}
		messages = append(messages, msg)
	}

	sortNewestFirst(messages)
	return messages, nil
}

// FetchMessageBody fetches one message and extracts its full body text in
// place of the snippet.
func (c *Client) FetchMessageBody(ctx context.Context, folder, id string) (*models.Message, error) {
	const op = "rest.fetch.body"

	var gm gmailMessage
	if err := c.get(ctx, op, "/users/me/messages/"+id, &gm); err != nil {
		return nil, err
	}

	msg, err := c.toMessage(&gm, folder)
	if err != nil {
		return nil, mailerr.WithAccount(mailerr.E(mailerr.Parse, op, err), c.acct.ID)
	}
	msg.Body = models.PlainBody(extractBody(&gm))
	return msg, nil
}

// toMessage converts a wire message to canonical form. The list body is the
// snippet; FetchMessageBody replaces it with the real part content.
func (c *Client) toMessage(gm *gmailMessage, folder string) (*models.Message, error) {
	if gm.Payload == nil {
		return nil, fmt.Errorf("message %s has no payload", gm.ID)
	}
	if len(gm.Payload.Headers) == 0 {
		return nil, fmt.Errorf("message %s has no headers", gm.ID)
	}

	msg := &models.Message{
		ID:        gm.ID,
		AccountID: c.acct.ID,
		Folder:    folder,
		Body:      models.PlainBody(gm.Snippet),
		Flags:     flagsFromLabels(gm.LabelIDs),
	}

	var dateHeader string
	for _, h := range gm.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			msg.Subject = h.Value
		case "from":
			msg.From = parseAddressHeader(h.Value)
		case "to":
			msg.To = parseAddressHeader(h.Value)
		case "date":
			dateHeader = h.Value
		}
	}
	msg.Date = parseDate(dateHeader, gm.InternalDate)

	return msg, nil
}

// parseAddressHeader parses an address list header, falling back to the raw
// header value when it does not parse.
func parseAddressHeader(value string) []models.Address {
	if value == "" {
		return nil
	}
	parsed, err := mail.ParseAddressList(value)
	if err != nil {
		return []models.Address{{Address: value}}
	}
	addresses := make([]models.Address, 0, len(parsed))
	for _, a := range parsed {
		addresses = append(addresses, models.Address{Name: a.Name, Address: a.Address})
	}
	return addresses
}

// parseDate prefers the Date header, then the server's internal timestamp in
// millis, then now.
func parseDate(header, internalMillis string) time.Time {
	if header != "" {
		if t, err := mail.ParseDate(header); err == nil {
			return t
		}
	}
	if internalMillis != "" {
		if ms, err := strconv.ParseInt(internalMillis, 10, 64); err == nil && ms > 0 {
			return time.UnixMilli(ms)
		}
	}
	return time.Now()
}

// flagsFromLabels derives read state from labels: UNREAD wins over everything,
// any other label marks the message Seen once. A coarse approximation, since
// the API does not expose per-flag state.
func flagsFromLabels(labelIDs []string) []models.Flag {
	if len(labelIDs) == 0 {
		return nil
	}
	for _, id := range labelIDs {
		if id == "UNREAD" {
			return nil
		}
	}
	return []models.Flag{models.FlagSeen}
}

// extractBody walks the payload for the first text/plain part, then falls back
// to the top-level body data, then the snippet.
func extractBody(gm *gmailMessage) string {
	if gm.Payload != nil {
		if data := findPlainPart(gm.Payload); data != "" {
			if text, err := decodeBody(data); err == nil {
				return text
			}
		}
		if gm.Payload.Body != nil && gm.Payload.Body.Data != "" {
			if text, err := decodeBody(gm.Payload.Body.Data); err == nil {
				return text
			}
		}
	}
	return gm.Snippet
}

func findPlainPart(p *gmailPayload) string {
	for i := range p.Parts {
		part := &p.Parts[i]
		if strings.HasPrefix(part.MimeType, "text/plain") && part.Body != nil && part.Body.Data != "" {
			return part.Body.Data
		}
		if data := findPlainPart(part); data != "" {
			return data
		}
	}
	return ""
}

// decodeBody decodes the URL-safe base64 the API uses, padded or not.
func decodeBody(data string) (string, error) {
	if b, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(b), nil
	}
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func sortNewestFirst(messages []*models.Message) {
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Date.After(messages[j].Date)
	})
}

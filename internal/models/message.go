package models

import (
	"strings"
	"time"
)

// Flag is a canonical message flag shared across backends. The five shared
// flags map onto their IMAP counterparts; backends may add custom flag strings.
type Flag string

const (
	FlagSeen     Flag = "Seen"
	FlagAnswered Flag = "Answered"
	FlagFlagged  Flag = "Flagged"
	FlagDeleted  Flag = "Deleted"
	FlagDraft    Flag = "Draft"
	FlagRecent   Flag = "Recent"
)

// Address is a single mailbox address with an optional display name.
type Address struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

// String formats the address as "Name <addr>", or the bare address when no
// display name is set.
func (a Address) String() string {
	if a.Name != "" {
		return a.Name + " <" + a.Address + ">"
	}
	return a.Address
}

// BodyKind distinguishes the three canonical body shapes.
type BodyKind string

const (
	BodyPlain     BodyKind = "plain"
	BodyHTML      BodyKind = "html"
	BodyMultipart BodyKind = "multipart"
)

// BodyPart is one part of a multipart body.
type BodyPart struct {
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

// Body is the canonical message body.
type Body struct {
	Kind    BodyKind   `json:"kind"`
	Content string     `json:"content,omitempty"`
	Parts   []BodyPart `json:"parts,omitempty"`
}

// PlainBody builds a text/plain body.
func PlainBody(content string) Body {
	return Body{Kind: BodyPlain, Content: content}
}

// HTMLBody builds a text/html body.
func HTMLBody(content string) Body {
	return Body{Kind: BodyHTML, Content: content}
}

// MultipartBody builds a multipart body from its parts.
func MultipartBody(parts ...BodyPart) Body {
	return Body{Kind: BodyMultipart, Parts: parts}
}

// Text returns the textual content to submit when sending: plain and HTML
// bodies as-is, multipart bodies prefer the first text/plain part, then the
// first text/* part, then empty.
func (b Body) Text() string {
	switch b.Kind {
	case BodyPlain, BodyHTML:
		return b.Content
	case BodyMultipart:
		for _, p := range b.Parts {
			if strings.HasPrefix(p.ContentType, "text/plain") {
				return p.Content
			}
		}
		for _, p := range b.Parts {
			if strings.HasPrefix(p.ContentType, "text/") {
				return p.Content
			}
		}
	}
	return ""
}

// Attachment carries attachment metadata plus, when fetched, its content.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size_bytes"`
	Data        []byte `json:"-"`
}

// Message is the canonical message exchanged between adapters, the connection
// manager, and the local cache. ID is backend-native (an IMAP UID in decimal,
// or a REST message id) and is only comparable within one account and folder.
type Message struct {
	ID          string       `json:"id"`
	AccountID   string       `json:"account_id"`
	Folder      string       `json:"folder"`
	From        []Address    `json:"from"`
	To          []Address    `json:"to"`
	Cc          []Address    `json:"cc,omitempty"`
	Bcc         []Address    `json:"bcc,omitempty"`
	Subject     string       `json:"subject"`
	Body        Body         `json:"body"`
	Date        time.Time    `json:"date"`
	Flags       []Flag       `json:"flags"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// HasFlag reports whether the flag is present.
func (m *Message) HasFlag(f Flag) bool {
	for _, have := range m.Flags {
		if have == f {
			return true
		}
	}
	return false
}

// AddFlag adds the flag if absent. Flags behave as a set.
func (m *Message) AddFlag(f Flag) {
	if !m.HasFlag(f) {
		m.Flags = append(m.Flags, f)
	}
}

// RemoveFlag removes every occurrence of the flag.
func (m *Message) RemoveFlag(f Flag) {
	kept := m.Flags[:0]
	for _, have := range m.Flags {
		if have != f {
			kept = append(kept, have)
		}
	}
	m.Flags = kept
}

// IsUnread reports whether the message lacks the Seen flag.
func (m *Message) IsUnread() bool {
	return !m.HasFlag(FlagSeen)
}

// MarkAsRead adds the Seen flag. This is an optimistic local echo; the backend
// mutation is issued by the owning adapter.
func (m *Message) MarkAsRead() {
	m.AddFlag(FlagSeen)
}

// MarkAsUnread removes the Seen flag.
func (m *Message) MarkAsUnread() {
	m.RemoveFlag(FlagSeen)
}

// ToggleFlagged flips the Flagged flag.
func (m *Message) ToggleFlagged() {
	if m.HasFlag(FlagFlagged) {
		m.RemoveFlag(FlagFlagged)
	} else {
		m.AddFlag(FlagFlagged)
	}
}

package account

// FolderType identifies the role of a mailbox folder.
type FolderType string

const (
	FolderInbox   FolderType = "inbox"
	FolderSent    FolderType = "sent"
	FolderDrafts  FolderType = "drafts"
	FolderTrash   FolderType = "trash"
	FolderSpam    FolderType = "spam"
	FolderArchive FolderType = "archive"
	FolderCustom  FolderType = "custom"
)

// FolderMapping binds a folder role to the server-side mailbox name. For
// FolderCustom mappings, CustomName carries the user-chosen identifier.
type FolderMapping struct {
	Type        FolderType `json:"type"`
	CustomName  string     `json:"custom_name,omitempty"`
	ServerName  string     `json:"server_name"`
	DisplayName string     `json:"display_name,omitempty"`
}

// FolderName resolves the server-side mailbox name for a folder type. The
// first mapping of the requested type wins. The four well-known types fall
// back to their conventional names when unmapped; everything else resolves to
// "". FolderCustom mappings resolve only through CustomFolderName.
func (a *Account) FolderName(t FolderType) string {
	if t == FolderCustom {
		return ""
	}
	for _, m := range a.IMAP.Folders {
		if m.Type == t {
			return m.ServerName
		}
	}
	switch t {
	case FolderInbox:
		return "INBOX"
	case FolderSent:
		return "Sent"
	case FolderDrafts:
		return "Drafts"
	case FolderTrash:
		return "Trash"
	}
	return ""
}

// CustomFolderName resolves a FolderCustom mapping by its configured name, or
// "" when no such mapping exists.
func (a *Account) CustomFolderName(name string) string {
	for _, m := range a.IMAP.Folders {
		if m.Type == FolderCustom && m.CustomName == name {
			return m.ServerName
		}
	}
	return ""
}

// InboxFolder returns the resolved inbox mailbox name.
func (a *Account) InboxFolder() string { return a.FolderName(FolderInbox) }

// SentFolder returns the resolved sent mailbox name.
func (a *Account) SentFolder() string { return a.FolderName(FolderSent) }

// DraftsFolder returns the resolved drafts mailbox name.
func (a *Account) DraftsFolder() string { return a.FolderName(FolderDrafts) }

// TrashFolder returns the resolved trash mailbox name.
func (a *Account) TrashFolder() string { return a.FolderName(FolderTrash) }

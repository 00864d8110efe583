package rest

import "context"

// ListFolders returns the label names visible on the account.
func (c *Client) ListFolders(ctx context.Context) ([]string, error) {
	var list gmailLabelList
	if err := c.get(ctx, "rest.labels", "/users/me/labels", &list); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(list.Labels))
	for _, l := range list.Labels {
		names = append(names, l.Name)
	}
	return names, nil
}

// folderToLabelID translates folder names, including their Japanese display
// forms, to the API's label ids. Unknown folders fetch without a label filter.
func folderToLabelID(folder string) string {
	switch folder {
	case "INBOX", "受信箱":
		return "INBOX"
	case "Sent", "送信済み":
		return "SENT"
	case "Drafts", "下書き":
		return "DRAFT"
	case "Trash", "ゴミ箱":
		return "TRASH"
	}
	return ""
}

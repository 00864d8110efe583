package imap

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maildeck/maildeck/internal/account"
	"github.com/maildeck/maildeck/internal/mailerr"
	"github.com/maildeck/maildeck/internal/models"
	"github.com/maildeck/maildeck/internal/testutil"
)

// newConnectedMailbox starts a test server and returns a connected adapter.
// The memory backend pre-seeds INBOX with one read message from 2016.
func newConnectedMailbox(t *testing.T) (*testutil.TestIMAPServer, *Mailbox) {
	t.Helper()

	server := testutil.NewTestIMAPServer(t)
	mb := NewMailbox(server.Account(t))
	require.NoError(t, mb.Connect())
	t.Cleanup(func() {
		_ = mb.Disconnect()
	})
	return server, mb
}

func TestMailboxConnect(t *testing.T) {
	t.Run("connects and disconnects cleanly", func(t *testing.T) {
		server := testutil.NewTestIMAPServer(t)
		mb := NewMailbox(server.Account(t))

		require.NoError(t, mb.Connect())
		assert.True(t, mb.Connected())

		require.NoError(t, mb.Disconnect())
		assert.False(t, mb.Connected())
	})

	t.Run("reconnect replaces the session", func(t *testing.T) {
		_, mb := newConnectedMailbox(t)

		require.NoError(t, mb.Connect())
		assert.True(t, mb.Connected())

		folders, err := mb.ListFolders()
		require.NoError(t, err)
		assert.Contains(t, folders, "INBOX")
	})

	t.Run("rejected credentials leave the adapter disconnected", func(t *testing.T) {
		server := testutil.NewTestIMAPServer(t)
		acct := server.Account(t)
		acct.IMAP.Password = "wrong"

		mb := NewMailbox(acct)
		err := mb.Connect()
		require.Error(t, err)
		assert.True(t, mailerr.IsKind(err, mailerr.Authentication))
		assert.False(t, mailerr.IsTimeout(err))
		assert.False(t, mb.Connected())
	})

	t.Run("CRAM-MD5 is rejected without dialing", func(t *testing.T) {
		acct := account.New("No Server", "user@example.com")
		acct.IMAP = account.IMAPConfig{
			Server:     "127.0.0.1",
			Port:       1,
			Username:   "user",
			Password:   "pass",
			AuthMethod: account.AuthCramMD5,
		}

		mb := NewMailbox(acct)
		err := mb.Connect()
		require.Error(t, err)
		assert.True(t, mailerr.IsKind(err, mailerr.Authentication))
		assert.Contains(t, err.Error(), "CRAM-MD5")
		assert.False(t, mb.Connected())
	})

	t.Run("OAuth2 without tokens is an authentication error", func(t *testing.T) {
		server := testutil.NewTestIMAPServer(t)
		acct := server.Account(t)
		acct.IMAP.AuthMethod = account.AuthOAuth2

		mb := NewMailbox(acct)
		err := mb.Connect()
		require.Error(t, err)
		assert.True(t, mailerr.IsKind(err, mailerr.Authentication))
		assert.False(t, mb.Connected())
	})
}

func TestMailboxNotConnected(t *testing.T) {
	server := testutil.NewTestIMAPServer(t)
	mb := NewMailbox(server.Account(t))

	t.Run("ListFolders fails fast", func(t *testing.T) {
		_, err := mb.ListFolders()
		require.Error(t, err)
		assert.True(t, mailerr.IsKind(err, mailerr.Connection))
	})

	t.Run("FetchMessages fails fast", func(t *testing.T) {
		_, err := mb.FetchMessages("INBOX", 10)
		require.Error(t, err)
		assert.True(t, mailerr.IsKind(err, mailerr.Connection))
	})

	t.Run("DeleteMessage fails fast", func(t *testing.T) {
		err := mb.DeleteMessage("INBOX", "1")
		require.Error(t, err)
		assert.True(t, mailerr.IsKind(err, mailerr.Connection))
	})

	t.Run("Watch fails fast", func(t *testing.T) {
		err := mb.Watch(context.Background(), "INBOX", func(string, uint32) {})
		require.Error(t, err)
		assert.True(t, mailerr.IsKind(err, mailerr.Connection))
	})

	t.Run("Disconnect is a no-op", func(t *testing.T) {
		assert.NoError(t, mb.Disconnect())
	})
}

func TestMailboxListFolders(t *testing.T) {
	server, mb := newConnectedMailbox(t)
	server.CreateFolder(t, "Archive")

	folders, err := mb.ListFolders()
	require.NoError(t, err)
	assert.Contains(t, folders, "INBOX")
	assert.Contains(t, folders, "Archive")
}

func TestMailboxFetchMessages(t *testing.T) {
	server, mb := newConnectedMailbox(t)

	server.AddMessage(t, "INBOX", testutil.TestMessage{
		Subject: "first",
		Date:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	})
	server.AddMessage(t, "INBOX", testutil.TestMessage{
		Subject: "second",
		Date:    time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
		Flags:   []string{imap.SeenFlag},
	})
	server.AddMessage(t, "INBOX", testutil.TestMessage{
		Subject: "third",
		Date:    time.Date(2024, 5, 3, 10, 0, 0, 0, time.UTC),
	})

	t.Run("returns the newest window, newest first", func(t *testing.T) {
		messages, err := mb.FetchMessages("INBOX", 2)
		require.NoError(t, err)
		require.Len(t, messages, 2)

		assert.Equal(t, "third", messages[0].Subject)
		assert.Equal(t, "second", messages[1].Subject)
		assert.True(t, messages[0].Date.After(messages[1].Date))
	})

	t.Run("limit beyond the mailbox returns everything", func(t *testing.T) {
		messages, err := mb.FetchMessages("INBOX", 50)
		require.NoError(t, err)
		require.Len(t, messages, 4) // three added plus the seeded message

		for i := 1; i < len(messages); i++ {
			assert.False(t, messages[i-1].Date.Before(messages[i].Date), "messages must be newest-first")
		}
	})

	t.Run("maps flags and read state", func(t *testing.T) {
		messages, err := mb.FetchMessages("INBOX", 50)
		require.NoError(t, err)

		bySubject := make(map[string]*models.Message)
		for _, msg := range messages {
			bySubject[msg.Subject] = msg
		}

		require.Contains(t, bySubject, "second")
		require.Contains(t, bySubject, "third")
		assert.True(t, bySubject["second"].HasFlag(models.FlagSeen))
		assert.False(t, bySubject["second"].IsUnread())
		assert.True(t, bySubject["third"].IsUnread())
	})

	t.Run("zero limit returns nothing", func(t *testing.T) {
		messages, err := mb.FetchMessages("INBOX", 0)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("unknown folder is a protocol error", func(t *testing.T) {
		_, err := mb.FetchMessages("NoSuchFolder", 10)
		require.Error(t, err)
		assert.True(t, mailerr.IsKind(err, mailerr.Protocol))
	})

	t.Run("headers carry no body", func(t *testing.T) {
		messages, err := mb.FetchMessages("INBOX", 1)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Empty(t, messages[0].Body.Content)
	})
}

func TestMailboxFetchMessageBody(t *testing.T) {
	server, mb := newConnectedMailbox(t)

	uid := server.AddMessage(t, "INBOX", testutil.TestMessage{
		Subject: "body test",
		Body:    "The quick brown fox.",
		Date:    time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	})

	t.Run("fetches headers and parsed body", func(t *testing.T) {
		msg, err := mb.FetchMessageBody("INBOX", fmt.Sprintf("%d", uid))
		require.NoError(t, err)

		assert.Equal(t, "body test", msg.Subject)
		assert.Equal(t, models.BodyPlain, msg.Body.Kind)
		assert.Contains(t, msg.Body.Content, "The quick brown fox.")
	})

	t.Run("non-numeric id is a parse error", func(t *testing.T) {
		_, err := mb.FetchMessageBody("INBOX", "abc")
		require.Error(t, err)
		assert.True(t, mailerr.IsKind(err, mailerr.Parse))
	})

	t.Run("unknown uid is a protocol error", func(t *testing.T) {
		_, err := mb.FetchMessageBody("INBOX", "99999")
		require.Error(t, err)
		assert.True(t, mailerr.IsKind(err, mailerr.Protocol))
	})
}

func TestMailboxSetFlags(t *testing.T) {
	server, mb := newConnectedMailbox(t)

	uid := server.AddMessage(t, "INBOX", testutil.TestMessage{
		Subject: "flag me",
		Date:    time.Date(2024, 6, 2, 9, 0, 0, 0, time.UTC),
	})
	id := fmt.Sprintf("%d", uid)

	t.Run("adds the Seen flag", func(t *testing.T) {
		require.NoError(t, mb.SetFlags("INBOX", id, []models.Flag{models.FlagSeen}))

		msg, err := mb.FetchMessageBody("INBOX", id)
		require.NoError(t, err)
		assert.True(t, msg.HasFlag(models.FlagSeen))
	})

	t.Run("unmapped flags are a no-op", func(t *testing.T) {
		require.NoError(t, mb.SetFlags("INBOX", id, []models.Flag{models.FlagRecent, models.Flag("Custom")}))

		msg, err := mb.FetchMessageBody("INBOX", id)
		require.NoError(t, err)
		for _, flag := range msg.Flags {
			assert.NotEqual(t, models.Flag("Custom"), flag)
		}
	})

	t.Run("non-numeric id is a parse error", func(t *testing.T) {
		err := mb.SetFlags("INBOX", "abc", []models.Flag{models.FlagSeen})
		require.Error(t, err)
		assert.True(t, mailerr.IsKind(err, mailerr.Parse))
	})
}

func TestMailboxMoveMessage(t *testing.T) {
	server, mb := newConnectedMailbox(t)
	server.CreateFolder(t, "Archive")

	uid := server.AddMessage(t, "INBOX", testutil.TestMessage{
		Subject: "move me",
		Date:    time.Date(2024, 6, 3, 9, 0, 0, 0, time.UTC),
	})

	require.NoError(t, mb.MoveMessage("INBOX", "Archive", fmt.Sprintf("%d", uid)))

	archived, err := mb.FetchMessages("Archive", 10)
	require.NoError(t, err)
	require.Len(t, archived, 1)
	assert.Equal(t, "move me", archived[0].Subject)

	inbox, err := mb.FetchMessages("INBOX", 10)
	require.NoError(t, err)
	for _, msg := range inbox {
		assert.NotEqual(t, "move me", msg.Subject)
	}
}

func TestMailboxDeleteMessage(t *testing.T) {
	server, mb := newConnectedMailbox(t)

	uid := server.AddMessage(t, "INBOX", testutil.TestMessage{
		Subject: "delete me",
		Date:    time.Date(2024, 6, 4, 9, 0, 0, 0, time.UTC),
	})
	server.AddMessage(t, "INBOX", testutil.TestMessage{
		Subject: "keep me",
		Date:    time.Date(2024, 6, 5, 9, 0, 0, 0, time.UTC),
	})

	require.NoError(t, mb.DeleteMessage("INBOX", fmt.Sprintf("%d", uid)))

	messages, err := mb.FetchMessages("INBOX", 10)
	require.NoError(t, err)
	subjects := make([]string, 0, len(messages))
	for _, msg := range messages {
		subjects = append(subjects, msg.Subject)
	}
	assert.Contains(t, subjects, "keep me")
	assert.NotContains(t, subjects, "delete me")
}

func TestMailboxSearchMessages(t *testing.T) {
	server, mb := newConnectedMailbox(t)

	server.AddMessage(t, "INBOX", testutil.TestMessage{
		Subject: "Quarterly report",
		Body:    "Numbers for the quarter are attached.",
		Date:    time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC),
	})
	server.AddMessage(t, "INBOX", testutil.TestMessage{
		Subject: "Lunch plans",
		Body:    "Sushi on Friday?",
		Date:    time.Date(2024, 6, 11, 9, 0, 0, 0, time.UTC),
	})

	t.Run("finds matching messages", func(t *testing.T) {
		messages, err := mb.SearchMessages("INBOX", "Quarterly", 10)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "Quarterly report", messages[0].Subject)
	})

	t.Run("no matches yields an empty result", func(t *testing.T) {
		messages, err := mb.SearchMessages("INBOX", "zeppelin", 10)
		require.NoError(t, err)
		assert.Empty(t, messages)
	})

	t.Run("empty query matches everything", func(t *testing.T) {
		messages, err := mb.SearchMessages("INBOX", "", 10)
		require.NoError(t, err)
		assert.Len(t, messages, 3) // two added plus the seeded message
	})

	t.Run("truncates to limit newest-first", func(t *testing.T) {
		messages, err := mb.SearchMessages("INBOX", "", 1)
		require.NoError(t, err)
		require.Len(t, messages, 1)
		assert.Equal(t, "Lunch plans", messages[0].Subject)
	})
}

func TestMailboxWatch(t *testing.T) {
	t.Run("returns when the context is canceled", func(t *testing.T) {
		_, mb := newConnectedMailbox(t)
		mb.PollInterval = 50 * time.Millisecond

		ctx, cancel := context.WithCancel(context.Background())
		errCh := make(chan error, 1)
		go func() {
			errCh <- mb.Watch(ctx, "INBOX", func(string, uint32) {})
		}()

		time.Sleep(100 * time.Millisecond)
		cancel()

		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("Watch did not return after context cancellation")
		}
	})
}

func TestNotifyUpdate(t *testing.T) {
	t.Run("invokes fn for mailbox updates", func(t *testing.T) {
		var gotFolder string
		var gotTotal uint32
		update := &imapclient.MailboxUpdate{
			Mailbox: &imap.MailboxStatus{Name: "INBOX", Messages: 3},
		}

		notifyUpdate(update, "INBOX", func(folder string, total uint32) {
			gotFolder = folder
			gotTotal = total
		})

		assert.Equal(t, "INBOX", gotFolder)
		assert.Equal(t, uint32(3), gotTotal)
	})

	t.Run("ignores empty mailbox updates", func(t *testing.T) {
		called := false
		update := &imapclient.MailboxUpdate{
			Mailbox: &imap.MailboxStatus{Name: "INBOX", Messages: 0},
		}

		notifyUpdate(update, "INBOX", func(string, uint32) { called = true })
		assert.False(t, called)
	})

	t.Run("ignores other update kinds", func(t *testing.T) {
		called := false
		update := &imapclient.ExpungeUpdate{SeqNum: 1}

		notifyUpdate(update, "INBOX", func(string, uint32) { called = true })
		assert.False(t, called)
	})
}

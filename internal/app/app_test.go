package app

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meszmate/buddylist/internal/account"
	"github.com/meszmate/buddylist/internal/config"
	"github.com/meszmate/buddylist/internal/events"
	"github.com/meszmate/buddylist/internal/pounce"
	"github.com/meszmate/buddylist/internal/prpl"
	"github.com/meszmate/buddylist/internal/status"
	"github.com/meszmate/buddylist/internal/storage/sqlite"
	"github.com/meszmate/buddylist/internal/storage/xmlstore"
)

type manualTimer struct {
	fn      func()
	stopped bool
}

func (t *manualTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

type manualClock struct {
	timers []*manualTimer
}

func (c *manualClock) after(_ time.Duration, fn func()) xmlstore.Timer {
	t := &manualTimer{fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (c *manualClock) fire() {
	timers := c.timers
	c.timers = nil
	for _, t := range timers {
		if !t.stopped {
			t.stopped = true
			t.fn()
		}
	}
}

func testConfig(t *testing.T, dir string) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Resolve(dir)
	return cfg
}

func newApp(t *testing.T, cfg *config.Config, opts ...Option) *App {
	t.Helper()
	a, err := New(cfg, opts...)
	require.NoError(t, err)
	require.NoError(t, a.Load())
	t.Cleanup(func() { a.Close() })
	return a
}

func signOn(t *testing.T, a *App, username string) *account.Account {
	t.Helper()
	var acct *account.Account
	a.Do(func() {
		acct = a.Accounts().NewAccount(username, prpl.JabberID)
		acct.SetPassword("secret")
		a.Accounts().Add(acct)
		a.Accounts().SetEnabled(acct, a.Accounts().UI(), true)
	})
	require.True(t, acct.IsConnected())
	return acct
}

func TestNewRequiresDataDir(t *testing.T) {
	cfg := config.DefaultConfig()
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestScores(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Status.Away = -1
	cfg.Status.Idle = -3

	s := Scores(cfg.Status)
	assert.Equal(t, -1, s.Primitive[status.PrimitiveAway])
	assert.Equal(t, -3, s.Idle)
	assert.Equal(t, 100, s.Primitive[status.PrimitiveAvailable])
}

func TestSaveAndReload(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(t, dir)
	clock := &manualClock{}

	a, err := New(cfg, WithAfterFunc(clock.after))
	require.NoError(t, err)
	require.NoError(t, a.Load())

	a.Do(func() {
		acct := a.Accounts().NewAccount("alice", prpl.GenericID)
		a.Accounts().Add(acct)
		a.AddBuddy(acct, "carol", "Caz", "Friends")
		a.AddBuddy(acct, "dave", "", "Work")
	})
	require.NotEmpty(t, clock.timers)

	// a timer firing takes the context lock
	clock.fire()
	assert.FileExists(t, filepath.Join(dir, xmlstore.BlistFile))
	assert.FileExists(t, filepath.Join(dir, xmlstore.AccountsFile))

	a.Do(func() {
		acct := a.FindAccount("ALICE", "")
		require.NotNil(t, acct)
		a.AddBuddy(acct, "erin", "", "Friends")
	})
	require.NoError(t, a.Close())

	b := newApp(t, testConfig(t, dir))
	b.Do(func() {
		acct := b.FindAccount("alice", prpl.GenericID)
		require.NotNil(t, acct)
		groups := b.List().Groups()
		require.Len(t, groups, 2)
		assert.Equal(t, "Friends", groups[0].Name())
		assert.Equal(t, 2, groups[0].TotalSize())
		assert.Equal(t, "Caz", b.List().FindBuddy(acct, "carol").Alias())
		assert.NotNil(t, b.List().FindBuddy(acct, "erin"))
	})
}

func TestPresenceReachesTheList(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Storage.LogSystem = true
	a := newApp(t, cfg)
	acct := signOn(t, a, "alice@example.com")

	var fired []pounce.Triggered
	a.Bus().Subscribe(events.PounceTriggered, func(e events.EventMsg) {
		fired = append(fired, e.Data.(pounce.Triggered))
	})

	a.Do(func() {
		b := a.AddBuddy(acct, "bob@example.com", "", "Friends")
		sess := a.Jabber().Session(acct)
		require.NotNil(t, sess)
		assert.Equal(t, 1, sess.Roster.Count())

		_, err := a.Pounces().Add(acct, "bob@example.com", pounce.SignOn, nil, false)
		require.NoError(t, err)

		require.NoError(t, a.Jabber().ReceivePresence(acct, "bob@example.com/phone", prpl.ShowOnline, "", 1))
		assert.True(t, b.Presence().IsOnline())
		assert.Equal(t, 1, b.Group().OnlineSize())

		require.NoError(t, a.Jabber().ReceivePresence(acct, "bob@example.com/phone", prpl.ShowAway, "brb", 1))
		assert.Equal(t, "away", b.Presence().ActiveStatus().ID())

		require.NoError(t, a.Jabber().ReceiveUnavailable(acct, "bob@example.com/phone"))
		assert.False(t, b.Presence().IsOnline())
		assert.Zero(t, b.Group().OnlineSize())
	})

	require.Len(t, fired, 1)
	assert.Equal(t, pounce.SignOn, fired[0].Event)
	assert.Empty(t, a.Pounces().All())

	entries, err := a.SystemLog(acct, 10)
	require.NoError(t, err)
	var kinds []string
	for _, e := range entries {
		kinds = append(kinds, e.Event)
	}
	assert.Equal(t, []string{"signed-on", "status", "signed-off"}, kinds)
	assert.Contains(t, entries[1].Message, "brb")
}

func TestRemoveBuddyLeavesTheServerRoster(t *testing.T) {
	a := newApp(t, testConfig(t, t.TempDir()))
	acct := signOn(t, a, "alice@example.com")

	a.Do(func() {
		b := a.AddBuddy(acct, "bob@example.com", "", "")
		sess := a.Jabber().Session(acct)
		require.Equal(t, 1, sess.Roster.Count())

		a.RemoveBuddy(b)
		assert.Zero(t, sess.Roster.Count())
		assert.Nil(t, a.List().FindBuddy(acct, "bob@example.com"))
	})
}

func TestDeleteAccountCascades(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Storage.LogSystem = true
	a := newApp(t, cfg)
	acct := signOn(t, a, "alice@example.com")

	a.Do(func() {
		a.AddBuddy(acct, "bob@example.com", "", "Friends")
		_, err := a.Pounces().Add(acct, "bob@example.com", pounce.SignOff, nil, true)
		require.NoError(t, err)
		require.NoError(t, a.Jabber().ReceivePresence(acct, "bob@example.com", prpl.ShowOnline, "", 0))

		a.DeleteAccount(acct)

		assert.Empty(t, a.Accounts().Accounts())
		assert.Nil(t, a.List().FindBuddy(acct, "bob@example.com"))
		assert.Empty(t, a.Pounces().All())
		assert.Nil(t, a.Jabber().Session(acct))
	})

	entries, err := a.Storage().GetLog(prpl.JabberID, "alice@example.com", 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDatabaseCanBeDisabled(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Storage.Database = false
	a := newApp(t, cfg)

	assert.Nil(t, a.Storage())
	assert.NoFileExists(t, filepath.Join(cfg.General.DataDir, "buddylist.db"))

	var entries []sqlite.LogEntry
	a.Do(func() {
		acct := a.Accounts().NewAccount("alice", prpl.GenericID)
		a.Accounts().Add(acct)
		_, err := a.Pounces().Add(acct, "carol", pounce.SignOn, nil, true)
		require.NoError(t, err)
		got, err := a.SystemLog(acct, 5)
		require.NoError(t, err)
		entries = got
	})
	assert.Empty(t, entries)
}

package pounce

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meszmate/buddylist/internal/account"
	"github.com/meszmate/buddylist/internal/blist"
	"github.com/meszmate/buddylist/internal/events"
	"github.com/meszmate/buddylist/internal/prpl"
	"github.com/meszmate/buddylist/internal/status"
	"github.com/meszmate/buddylist/internal/storage/sqlite"
)

type fixture struct {
	bus      *events.EventBus
	accounts *account.Store
	list     *blist.List
	pounces  *Manager
	alice    *account.Account
	fired    []Triggered
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{bus: events.NewEventBus()}
	f.accounts = account.NewStore(account.NewRegistry(prpl.Builtin()...), account.WithBus(f.bus))
	f.list = blist.New(blist.WithAccounts(f.accounts), blist.WithBus(f.bus))
	f.alice = f.accounts.NewAccount("alice", prpl.GenericID)
	f.accounts.Add(f.alice)

	f.pounces = NewManager(f.accounts, f.bus, opts...)
	f.pounces.Attach()
	f.bus.Subscribe(events.PounceTriggered, func(e events.EventMsg) {
		f.fired = append(f.fired, e.Data.(Triggered))
	})
	return f
}

func (f *fixture) buddy(name string) *blist.Buddy {
	b := f.list.NewBuddy(f.alice, name, "")
	f.list.AddBuddy(b, nil, nil, nil)
	return b
}

func TestParseEvents(t *testing.T) {
	tests := []struct {
		in   string
		want Event
		err  bool
	}{
		{"sign-on", SignOn, false},
		{"sign-on, away ,idle-return", SignOn | Away | IdleReturn, false},
		{"", None, false},
		{"sign-on,teleport", None, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEvents(tt.in)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "sign-on,away", (SignOn | Away).String())
	assert.Equal(t, "none", None.String())
}

func TestAddValidates(t *testing.T) {
	f := newFixture(t)

	_, err := f.pounces.Add(f.alice, "carol", None, nil, false)
	assert.ErrorIs(t, err, ErrNoEvents)
	_, err = f.pounces.Add(f.alice, "  ", SignOn, nil, false)
	assert.ErrorIs(t, err, ErrNoTarget)

	p, err := f.pounces.Add(f.alice, "CAROL", SignOn, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "carol", p.Who)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, []*Pounce{p}, f.pounces.ForAccount(f.alice))
}

func TestSignOnFiresOnce(t *testing.T) {
	f := newFixture(t)
	carol := f.buddy("carol")
	dave := f.buddy("dave")

	once, err := f.pounces.Add(f.alice, "carol", SignOn, map[string]string{"send-message": "hi"}, false)
	require.NoError(t, err)
	kept, err := f.pounces.Add(f.alice, "carol", SignOn|SignOff, nil, true)
	require.NoError(t, err)

	require.NoError(t, dave.Presence().SwitchStatus("available"))
	assert.Empty(t, f.fired)

	require.NoError(t, carol.Presence().SwitchStatus("available"))
	require.Len(t, f.fired, 2)
	assert.Same(t, once, f.fired[0].Pounce)
	assert.Equal(t, SignOn, f.fired[0].Event)
	assert.Same(t, carol, f.fired[0].Buddy)
	assert.Same(t, kept, f.fired[1].Pounce)
	assert.Equal(t, []*Pounce{kept}, f.pounces.All())

	require.NoError(t, carol.Presence().SwitchStatus("offline"))
	require.Len(t, f.fired, 3)
	assert.Equal(t, SignOff, f.fired[2].Event)
}

func TestAwayAndIdleTransitions(t *testing.T) {
	f := newFixture(t)
	carol := f.buddy("carol")
	_, err := f.pounces.Add(f.alice, "carol", Away|AwayReturn|Idle|IdleReturn, nil, true)
	require.NoError(t, err)

	require.NoError(t, carol.Presence().SwitchStatus("available"))
	assert.Empty(t, f.fired)

	require.NoError(t, carol.Presence().SwitchStatus("away"))
	require.NoError(t, carol.Presence().SwitchStatus("extended_away"))
	require.NoError(t, carol.Presence().SwitchStatus("available"))
	carol.Presence().SetIdle(true, time.Unix(1700000000, 0))
	carol.Presence().SetIdle(false, time.Time{})

	var got []Event
	for _, tr := range f.fired {
		got = append(got, tr.Event)
	}
	assert.Equal(t, []Event{Away, AwayReturn, Idle, IdleReturn}, got)
}

func TestAwayTransition(t *testing.T) {
	p := status.NewBuddyPresence(nil, "x")
	p.AddStatuses(status.DefaultTypes())
	offline := p.Status("offline")
	available := p.Status("available")
	away := p.Status("away")

	assert.Equal(t, Away, AwayTransition(available, away))
	assert.Equal(t, AwayReturn, AwayTransition(away, available))
	assert.Equal(t, None, AwayTransition(offline, away))
	assert.Equal(t, None, AwayTransition(nil, available))
	assert.Equal(t, None, AwayTransition(available, available))
}

func TestPersistence(t *testing.T) {
	db, err := sqlite.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	created := time.Unix(1700000000, 0)
	f := newFixture(t, WithStore(db), WithClock(func() time.Time { return created }))
	p, err := f.pounces.Add(f.alice, "carol", SignOn|Idle, map[string]string{"popup": ""}, true)
	require.NoError(t, err)

	ghost := account.New("ghost", prpl.GenericID)
	require.NoError(t, db.SavePounce(sqlite.Pounce{ID: "orphan", Protocol: ghost.ProtocolID(), Account: "ghost", Who: "x", Events: 1, Created: created}))

	reloaded := NewManager(f.accounts, f.bus, WithStore(db))
	require.NoError(t, reloaded.Load())
	all := reloaded.All()
	require.Len(t, all, 1)
	assert.Equal(t, p.ID, all[0].ID)
	assert.Same(t, f.alice, all[0].Account)
	assert.Equal(t, SignOn|Idle, all[0].Events)
	assert.Equal(t, map[string]string{"popup": ""}, all[0].Actions)
	assert.True(t, all[0].Created.Equal(created))

	require.NoError(t, f.pounces.DestroyAllByAccount(f.alice))
	assert.Empty(t, f.pounces.All())
	rows, err := db.GetPounces(prpl.GenericID, "alice")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) SavePounce(p sqlite.Pounce) error {
	return m.Called(p).Error(0)
}

func (m *mockStore) GetAllPounces() ([]sqlite.Pounce, error) {
	args := m.Called()
	rows, _ := args.Get(0).([]sqlite.Pounce)
	return rows, args.Error(1)
}

func (m *mockStore) DeletePounce(id string) error {
	return m.Called(id).Error(0)
}

func (m *mockStore) DeletePouncesByAccount(protocol, account string) error {
	return m.Called(protocol, account).Error(0)
}

func TestStoreFailures(t *testing.T) {
	store := &mockStore{}
	store.On("SavePounce", mock.Anything).Return(errors.New("disk full")).Once()
	store.On("GetAllPounces").Return(nil, errors.New("locked")).Once()
	store.On("DeletePouncesByAccount", prpl.GenericID, "alice").Return(nil).Once()

	f := newFixture(t, WithStore(store))

	_, err := f.pounces.Add(f.alice, "carol", SignOn, nil, false)
	assert.ErrorContains(t, err, "disk full")
	assert.Empty(t, f.pounces.All())

	assert.ErrorContains(t, f.pounces.Load(), "locked")
	assert.NoError(t, f.pounces.DestroyAllByAccount(f.alice))
	store.AssertExpectations(t)
}

func TestDetach(t *testing.T) {
	f := newFixture(t)
	carol := f.buddy("carol")
	_, err := f.pounces.Add(f.alice, "carol", SignOn, nil, true)
	require.NoError(t, err)

	f.pounces.Detach()
	require.NoError(t, carol.Presence().SwitchStatus("available"))
	assert.Empty(t, f.fired)
}

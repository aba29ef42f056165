package account

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/meszmate/buddylist/internal/events"
	"github.com/meszmate/buddylist/internal/notify"
	"github.com/meszmate/buddylist/internal/status"
	"github.com/meszmate/buddylist/internal/value"
)

const testUI = "test-ui"

type mockProtocol struct {
	mock.Mock
	caps Capability
}

func (m *mockProtocol) ID() string               { return "prpl-mock" }
func (m *mockProtocol) Name() string             { return "Mock" }
func (m *mockProtocol) Capabilities() Capability { return m.caps }

func (m *mockProtocol) StatusTypes(*Account) []*status.Type { return status.DefaultTypes() }

func (m *mockProtocol) Normalize(_ *Account, name string) string { return DefaultNormalize(name) }

func (m *mockProtocol) Login(a *Account) error {
	return m.Called(a).Error(0)
}

func (m *mockProtocol) Close(a *Account) {
	m.Called(a)
}

func (m *mockProtocol) SetStatus(a *Account, s *status.Status) {
	m.Called(a, s.ID())
}

type mockRequester struct {
	mock.Mock
	answer func(string, bool)
}

func (m *mockRequester) RequestPassword(a *Account, answer func(string, bool)) {
	m.Called(a)
	m.answer = answer
}

func (m *mockRequester) CloseWithHandle(handle any) {
	m.Called(handle)
}

type fixture struct {
	store    *Store
	proto    *mockProtocol
	notes    *notify.Log
	bus      *events.EventBus
	saver    *countingSaver
	received []events.EventType
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		proto: &mockProtocol{},
		notes: notify.NewLog(),
		bus:   events.NewEventBus(),
		saver: &countingSaver{},
	}
	for _, et := range []events.EventType{
		events.AccountAdded, events.AccountRemoved, events.AccountEnabled, events.AccountDisabled,
		events.AccountConnected, events.AccountDisconnected,
	} {
		f.bus.Subscribe(et, func(e events.EventMsg) { f.received = append(f.received, e.Type) })
	}
	base := []Option{WithUI(testUI), WithNotifier(f.notes), WithBus(f.bus), WithSaver(f.saver)}
	f.store = NewStore(NewRegistry(f.proto), append(base, opts...)...)
	return f
}

func (f *fixture) account(t *testing.T, name string) *Account {
	t.Helper()
	a := f.store.NewAccount(name, "prpl-mock")
	f.store.Add(a)
	return a
}

func TestNewAccountStartsAvailable(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "alice")

	require.NotNil(t, a.ActiveStatus())
	assert.Equal(t, "available", a.ActiveStatus().ID())
	assert.Equal(t, PrivacyAllowAll, a.PrivacyMode())
	assert.Same(t, a, f.store.NewAccount("ALICE", "prpl-mock"))
	assert.Same(t, a, f.store.Find("Alice", "prpl-mock"))
	assert.Nil(t, f.store.Find("alice", "prpl-other"))
}

func TestAccountWithoutProtocolHasNoStatuses(t *testing.T) {
	f := newFixture(t)
	a := f.store.NewAccount("alice", "prpl-gone")
	assert.Nil(t, a.ActiveStatus())
	assert.Empty(t, a.StatusTypes())
}

func TestConnectRequiresEnabled(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "alice")

	err := f.store.Connect(a)
	assert.ErrorIs(t, err, ErrDisabled)
	f.proto.AssertNotCalled(t, "Login", mock.Anything)
}

func TestEnableConnectsOnlinePresence(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "alice")
	a.SetPassword("secret")
	f.proto.On("Login", a).Return(nil).Once()

	f.store.SetEnabled(a, testUI, true)

	assert.True(t, a.IsConnected())
	assert.False(t, a.Presence().LoginTime().IsZero())
	assert.Equal(t, []events.EventType{events.AccountAdded, events.AccountEnabled, events.AccountConnected}, f.received)
	f.proto.AssertExpectations(t)
}

func TestConnectMissingProtocolNotifies(t *testing.T) {
	f := newFixture(t)
	a := f.store.NewAccount("alice", "prpl-gone")
	f.store.Add(a)
	a.SetUIBool(testUI, "auto-login", true)

	err := f.store.Connect(a)
	assert.ErrorIs(t, err, ErrMissingProtocol)
	require.Len(t, f.notes.Open(a), 1)
	assert.Equal(t, "Missing protocol plugin for alice", f.notes.Open(a)[0].Primary)
	assert.True(t, a.IsDisconnected())
}

func TestConnectLoginFailure(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "alice")
	a.SetUIBool(testUI, "auto-login", true)
	a.SetPassword("secret")
	f.proto.On("Login", a).Return(errors.New("auth failed")).Once()

	err := f.store.Connect(a)
	require.Error(t, err)
	assert.True(t, a.IsDisconnected())
	require.Len(t, f.notes.Open(a), 1)
	assert.Equal(t, "auth failed", f.notes.Open(a)[0].Primary)
}

func TestConnectRequestsPassword(t *testing.T) {
	req := &mockRequester{}
	f := newFixture(t, WithRequester(req))
	a := f.account(t, "alice")
	a.SetUIBool(testUI, "auto-login", true)

	req.On("CloseWithHandle", a).Return().Once()
	req.On("RequestPassword", a).Return().Once()
	require.NoError(t, f.store.Connect(a))
	assert.True(t, a.IsDisconnected())
	require.NotNil(t, req.answer)

	f.proto.On("Login", a).Return(nil).Once()
	req.answer("hunter2", true)

	assert.True(t, a.IsConnected())
	assert.Equal(t, "hunter2", a.Password())
	assert.True(t, a.RememberPassword())
	req.AssertExpectations(t)
	f.proto.AssertExpectations(t)
}

func TestEmptyPasswordAnswerIsRejected(t *testing.T) {
	req := &mockRequester{}
	f := newFixture(t, WithRequester(req))
	a := f.account(t, "alice")
	a.SetUIBool(testUI, "auto-login", true)
	req.On("CloseWithHandle", a).Return()
	req.On("RequestPassword", a).Return()

	require.NoError(t, f.store.Connect(a))
	req.answer("", false)

	assert.True(t, a.IsDisconnected())
	assert.Len(t, f.notes.Open(a), 1)
	f.proto.AssertNotCalled(t, "Login", mock.Anything)
}

func TestPasswordOptionalSkipsRequest(t *testing.T) {
	req := &mockRequester{}
	f := newFixture(t, WithRequester(req))
	f.proto.caps = OptPasswordOptional
	a := f.account(t, "alice")
	a.SetUIBool(testUI, "auto-login", true)
	f.proto.On("Login", a).Return(nil).Once()

	require.NoError(t, f.store.Connect(a))
	assert.True(t, a.IsConnected())
	req.AssertNotCalled(t, "RequestPassword", mock.Anything)
}

func TestDisconnectForgetsUnrememberedPassword(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "alice")
	a.SetPassword("secret")
	f.proto.On("Login", a).Return(nil)
	f.proto.On("Close", a).Return()
	f.store.SetEnabled(a, testUI, true)
	require.True(t, a.IsConnected())

	f.store.Disconnect(a)
	assert.True(t, a.IsDisconnected())
	assert.Equal(t, "", a.Password())
	assert.True(t, a.Presence().LoginTime().IsZero())

	a.SetRememberPassword(true)
	a.SetPassword("kept")
	require.NoError(t, f.store.Connect(a))
	f.store.Disconnect(a)
	assert.Equal(t, "kept", a.Password())
	f.proto.AssertNumberOfCalls(t, "Close", 2)
}

func TestStatusListDrivesConnection(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "alice")
	a.SetPassword("secret")
	a.SetRememberPassword(true)
	f.proto.On("Login", a).Return(nil)
	f.proto.On("Close", a).Return()
	f.proto.On("SetStatus", a, "away").Return().Once()
	f.store.SetEnabled(a, testUI, true)
	require.True(t, a.IsConnected())

	saves := f.saver.n
	require.NoError(t, f.store.SetStatusList(a, "away", true, map[string]value.Value{"message": value.String("brb")}))
	assert.Equal(t, "brb", a.Status("away").AttrString("message"))
	assert.Greater(t, f.saver.n, saves)

	require.NoError(t, f.store.SetStatusList(a, "offline", true, nil))
	assert.True(t, a.IsDisconnected())

	require.NoError(t, f.store.SetStatusList(a, "available", true, nil))
	assert.True(t, a.IsConnected())
	f.proto.AssertExpectations(t)
}

func TestSetStatusListSkipsExclusiveDeactivation(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "alice")
	saves := f.saver.n

	require.NoError(t, f.store.SetStatusList(a, "available", false, nil))
	assert.True(t, a.Status("available").IsActive())
	assert.Equal(t, saves+1, f.saver.n)

	err := f.store.SetStatusList(a, "nope", true, nil)
	assert.ErrorIs(t, err, status.ErrUnknownStatus)
	assert.Equal(t, saves+2, f.saver.n)

	require.NoError(t, f.store.SetStatusList(a, "mobile", true, nil))
	require.NoError(t, f.store.SetStatusList(a, "mobile", false, nil))
	assert.False(t, a.Status("mobile").IsActive())
}

func TestRestoreSuppressesAutoConnect(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "alice")
	a.SetUIBool(testUI, "auto-login", true)
	a.SetPassword("secret")
	require.NoError(t, f.store.SetStatusList(a, "offline", true, nil))

	f.store.Restore(func() {
		require.NoError(t, f.store.SetStatusList(a, "away", true, nil))
	})
	assert.True(t, a.IsDisconnected())
	f.proto.AssertNotCalled(t, "Login", mock.Anything)
}

func TestReorder(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "a")
	b := f.account(t, "b")
	c := f.account(t, "c")

	f.store.Reorder(c, 0)
	assert.Equal(t, []*Account{c, a, b}, f.store.Accounts())
	f.store.Reorder(c, 3)
	assert.Equal(t, []*Account{a, b, c}, f.store.Accounts())
}

func TestDeleteCascade(t *testing.T) {
	req := &mockRequester{}
	f := newFixture(t, WithRequester(req))
	a := f.account(t, "alice")
	a.SetPassword("secret")
	a.SetBuddyIconPath("/icons/alice.png")
	f.proto.On("Login", a).Return(nil)
	f.proto.On("Close", a).Return()
	req.On("CloseWithHandle", a).Return().Once()
	f.store.SetEnabled(a, testUI, true)
	f.notes.Error(a, "t", "pending", "")

	var order []string
	f.store.OnDelete(func(got *Account) {
		assert.Same(t, a, got)
		assert.Empty(t, f.store.Accounts())
		order = append(order, "buddies")
	})
	f.store.OnDelete(func(*Account) { order = append(order, "pounces") })

	f.store.Delete(a)

	assert.Equal(t, []string{"buddies", "pounces"}, order)
	assert.True(t, a.IsDisconnected())
	assert.False(t, a.Enabled(testUI))
	assert.Empty(t, f.notes.Open(a))
	assert.Equal(t, "", a.BuddyIconPath())
	assert.Contains(t, f.received, events.AccountDisabled)
	assert.Contains(t, f.received, events.AccountRemoved)
	req.AssertExpectations(t)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	a := f.account(t, "alice")
	assert.ErrorIs(t, f.store.ChangePassword(a, "a", "b"), ErrNotConnected)

	a.SetPassword("a")
	f.proto.On("Login", a).Return(nil)
	f.store.SetEnabled(a, testUI, true)
	assert.ErrorIs(t, f.store.ChangePassword(a, "a", "b"), ErrUnsupported)
}

// Package pounce runs actions when a watched buddy signs on, goes away,
// comes back or goes idle. Pounces are kept in memory and mirrored to the
// sqlite store when one is configured.
package pounce

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/meszmate/buddylist/internal/account"
	"github.com/meszmate/buddylist/internal/blist"
	"github.com/meszmate/buddylist/internal/events"
	"github.com/meszmate/buddylist/internal/logging"
	"github.com/meszmate/buddylist/internal/status"
	"github.com/meszmate/buddylist/internal/storage/sqlite"
)

var logger = logging.Component("pounce")

var (
	ErrNoEvents = errors.New("pounce watches no events")
	ErrNoTarget = errors.New("pounce has no buddy")
)

// Event is a set of buddy transitions
type Event int

const (
	SignOn Event = 1 << iota
	SignOff
	Away
	AwayReturn
	Idle
	IdleReturn

	None Event = 0
)

var eventNames = []struct {
	ev   Event
	name string
}{
	{SignOn, "sign-on"},
	{SignOff, "sign-off"},
	{Away, "away"},
	{AwayReturn, "away-return"},
	{Idle, "idle"},
	{IdleReturn, "idle-return"},
}

// String lists the events in e, comma separated
func (e Event) String() string {
	var names []string
	for _, n := range eventNames {
		if e&n.ev != 0 {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ",")
}

// ParseEvents parses a comma separated list such as "sign-on,away"
func ParseEvents(s string) (Event, error) {
	var e Event
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		ev := lookupEvent(field)
		if ev == None {
			return None, fmt.Errorf("unknown pounce event %q", field)
		}
		e |= ev
	}
	return e, nil
}

func lookupEvent(name string) Event {
	for _, n := range eventNames {
		if n.name == name {
			return n.ev
		}
	}
	return None
}

type Pounce struct {
	ID      string
	Account *account.Account
	Who     string
	Events  Event
	Actions map[string]string
	Save    bool
	Created time.Time
}

// Triggered is the payload of events.PounceTriggered
type Triggered struct {
	Pounce *Pounce
	Event  Event
	Buddy  *blist.Buddy
}

// Store is the persistence the manager mirrors pounces to
type Store interface {
	SavePounce(p sqlite.Pounce) error
	GetAllPounces() ([]sqlite.Pounce, error)
	DeletePounce(id string) error
	DeletePouncesByAccount(protocol, account string) error
}

type Manager struct {
	accounts *account.Store
	bus      *events.EventBus
	store    Store
	now      func() time.Time

	pounces []*Pounce
	subs    []int
}

type Option func(*Manager)

// WithStore mirrors pounces to s
func WithStore(s Store) Option {
	return func(m *Manager) { m.store = s }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(accounts *account.Store, bus *events.EventBus, opts ...Option) *Manager {
	m := &Manager{
		accounts: accounts,
		bus:      bus,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load reads the stored pounces. Pounces of unknown accounts are skipped.
func (m *Manager) Load() error {
	if m.store == nil {
		return nil
	}
	rows, err := m.store.GetAllPounces()
	if err != nil {
		return fmt.Errorf("failed to load pounces: %w", err)
	}

	m.pounces = m.pounces[:0]
	for _, row := range rows {
		a := m.accounts.Find(row.Account, row.Protocol)
		if a == nil {
			logger.Warn("Skipping pounce %s of unknown account %s (%s)", row.ID, row.Account, row.Protocol)
			continue
		}
		m.pounces = append(m.pounces, &Pounce{
			ID:      row.ID,
			Account: a,
			Who:     row.Who,
			Events:  Event(row.Events),
			Actions: row.Actions,
			Save:    row.Save,
			Created: row.Created,
		})
	}
	logger.Info("Loaded %d pounces", len(m.pounces))
	return nil
}

// Attach subscribes the manager to buddy transitions on the bus
func (m *Manager) Attach() {
	m.subs = append(m.subs,
		m.bus.Subscribe(events.BuddySignedOn, func(e events.EventMsg) {
			if ev, ok := e.Data.(blist.BuddyStatus); ok {
				m.Trigger(ev.Buddy, SignOn)
			}
		}),
		m.bus.Subscribe(events.BuddySignedOff, func(e events.EventMsg) {
			if ev, ok := e.Data.(blist.BuddyStatus); ok {
				m.Trigger(ev.Buddy, SignOff)
			}
		}),
		m.bus.Subscribe(events.BuddyStatusChanged, func(e events.EventMsg) {
			if ev, ok := e.Data.(blist.BuddyStatus); ok {
				if t := AwayTransition(ev.Old, ev.New); t != None {
					m.Trigger(ev.Buddy, t)
				}
			}
		}),
		m.bus.Subscribe(events.BuddyIdleChanged, func(e events.EventMsg) {
			ev, ok := e.Data.(blist.BuddyIdle)
			if !ok {
				return
			}
			switch {
			case ev.Idle && !ev.WasIdle:
				m.Trigger(ev.Buddy, Idle)
			case !ev.Idle && ev.WasIdle:
				m.Trigger(ev.Buddy, IdleReturn)
			}
		}),
	)
}

// Detach cancels the bus subscriptions
func (m *Manager) Detach() {
	for _, id := range m.subs {
		m.bus.Cancel(id)
	}
	m.subs = nil
}

// Add creates a pounce on who for account a
func (m *Manager) Add(a *account.Account, who string, ev Event, actions map[string]string, save bool) (*Pounce, error) {
	if ev == None {
		return nil, ErrNoEvents
	}
	if strings.TrimSpace(who) == "" {
		return nil, ErrNoTarget
	}

	p := &Pounce{
		ID:      ulid.Make().String(),
		Account: a,
		Who:     a.Normalize(who),
		Events:  ev,
		Actions: actions,
		Save:    save,
		Created: m.now(),
	}
	if m.store != nil {
		if err := m.store.SavePounce(toRow(p)); err != nil {
			return nil, fmt.Errorf("failed to save pounce: %w", err)
		}
	}
	m.pounces = append(m.pounces, p)
	logger.Debug("Added pounce %s on %s (%s)", p.ID, p.Who, p.Events)
	return p, nil
}

// Remove drops a pounce
func (m *Manager) Remove(p *Pounce) error {
	i := slices.Index(m.pounces, p)
	if i < 0 {
		return nil
	}
	m.pounces = slices.Delete(m.pounces, i, i+1)
	if m.store != nil {
		if err := m.store.DeletePounce(p.ID); err != nil {
			return fmt.Errorf("failed to delete pounce: %w", err)
		}
	}
	return nil
}

// All returns every pounce, oldest first
func (m *Manager) All() []*Pounce {
	out := slices.Clone(m.pounces)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out
}

// ForAccount returns the pounces of a, oldest first
func (m *Manager) ForAccount(a *account.Account) []*Pounce {
	var out []*Pounce
	for _, p := range m.All() {
		if p.Account == a {
			out = append(out, p)
		}
	}
	return out
}

// DestroyAllByAccount drops every pounce of a
func (m *Manager) DestroyAllByAccount(a *account.Account) error {
	m.pounces = slices.DeleteFunc(m.pounces, func(p *Pounce) bool { return p.Account == a })
	if m.store != nil {
		if err := m.store.DeletePouncesByAccount(a.ProtocolID(), a.Username()); err != nil {
			return fmt.Errorf("failed to delete pounces of %s: %w", a.Username(), err)
		}
	}
	return nil
}

// Trigger fires every pounce on b watching ev. Pounces that are not
// saved are removed once fired.
func (m *Manager) Trigger(b *blist.Buddy, ev Event) {
	a := b.Account()
	who := a.Normalize(b.Name())

	var fired []*Pounce
	for _, p := range m.pounces {
		if p.Account == a && p.Who == who && p.Events&ev != 0 {
			fired = append(fired, p)
		}
	}

	for _, p := range fired {
		logger.Info("Pounce %s fired on %s (%s)", p.ID, who, ev)
		m.bus.Emit(events.PounceTriggered, Triggered{Pounce: p, Event: ev, Buddy: b})
		if !p.Save {
			if err := m.Remove(p); err != nil {
				logger.Error("%v", err)
			}
		}
	}
}

// AwayTransition reports Away when a buddy left an available status for
// an unavailable one and AwayReturn for the reverse
func AwayTransition(old, new *status.Status) Event {
	if old == nil || new == nil || !old.IsOnline() || !new.IsOnline() {
		return None
	}
	switch {
	case old.IsAvailable() && !new.IsAvailable():
		return Away
	case !old.IsAvailable() && new.IsAvailable():
		return AwayReturn
	}
	return None
}

func toRow(p *Pounce) sqlite.Pounce {
	return sqlite.Pounce{
		ID:       p.ID,
		Protocol: p.Account.ProtocolID(),
		Account:  p.Account.Username(),
		Who:      p.Who,
		Events:   int(p.Events),
		Actions:  p.Actions,
		Save:     p.Save,
		Created:  p.Created,
	}
}

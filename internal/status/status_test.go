package status

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meszmate/buddylist/internal/value"
)

type fakeOwner map[string]int

func (o fakeOwner) GetInt(name string, def int) int {
	if v, ok := o[name]; ok {
		return v
	}
	return def
}

type change struct {
	old, new string
}

type recorder struct {
	changes []change
	idle    [][2]bool
}

func (r *recorder) StatusChanged(_ *Presence, old, new *Status) {
	c := change{new: new.ID()}
	if old != nil {
		c.old = old.ID()
	}
	r.changes = append(r.changes, c)
}

func (r *recorder) IdleChanged(_ *Presence, wasIdle, idle bool) {
	r.idle = append(r.idle, [2]bool{wasIdle, idle})
}

func newTestPresence(t *testing.T) (*Presence, *recorder) {
	t.Helper()
	p := NewBuddyPresence(fakeOwner{}, "bob")
	p.AddStatuses(DefaultTypes())
	rec := &recorder{}
	p.SetObserver(rec)
	return p, rec
}

func activeIDs(p *Presence) []string {
	var ids []string
	for _, s := range p.Statuses() {
		if s.IsActive() {
			ids = append(ids, s.ID())
		}
	}
	return ids
}

func TestExclusiveActivationSwapsActiveStatus(t *testing.T) {
	p, rec := newTestPresence(t)

	require.NoError(t, p.SwitchStatus("offline"))
	require.NoError(t, p.SwitchStatus("available"))

	assert.Equal(t, []string{"available"}, activeIDs(p))
	assert.Equal(t, "available", p.ActiveStatus().ID())
	assert.Equal(t, []change{{old: "", new: "offline"}, {old: "offline", new: "available"}}, rec.changes)
	assert.True(t, p.IsOnline())
	assert.True(t, p.IsAvailable())
}

func TestExclusiveDeactivateIsRejected(t *testing.T) {
	p, rec := newTestPresence(t)
	require.NoError(t, p.SwitchStatus("away"))
	rec.changes = nil

	err := p.SetStatusActive("away", false, nil)
	assert.ErrorIs(t, err, ErrExclusiveDeactivate)
	assert.Equal(t, []string{"away"}, activeIDs(p))
	assert.Empty(t, rec.changes)
}

func TestIndependentStatusToggles(t *testing.T) {
	p, rec := newTestPresence(t)
	require.NoError(t, p.SwitchStatus("available"))
	rec.changes = nil

	require.NoError(t, p.SetStatusActive("mobile", true, nil))
	assert.ElementsMatch(t, []string{"available", "mobile"}, activeIDs(p))
	assert.Equal(t, "available", p.ActiveStatus().ID())

	require.NoError(t, p.SetStatusActive("mobile", false, nil))
	assert.Equal(t, []string{"available"}, activeIDs(p))
	assert.Equal(t, []change{{new: "mobile"}, {new: "mobile"}}, rec.changes)
}

func TestUnknownStatus(t *testing.T) {
	p, rec := newTestPresence(t)
	err := p.SetStatusActive("busy-coding", true, nil)
	assert.ErrorIs(t, err, ErrUnknownStatus)
	assert.Empty(t, rec.changes)
}

func TestAttributesApplyAndReset(t *testing.T) {
	p, rec := newTestPresence(t)

	require.NoError(t, p.SetStatusActive("away", true, map[string]value.Value{
		"message": value.String("lunch"),
	}))
	assert.Equal(t, "lunch", p.Status("away").AttrString("message"))
	require.Len(t, rec.changes, 1)

	// Same call again changes nothing and notifies nothing.
	require.NoError(t, p.SetStatusActive("away", true, map[string]value.Value{
		"message": value.String("lunch"),
	}))
	assert.Len(t, rec.changes, 1)

	// Omitting the attribute resets it to the default.
	require.NoError(t, p.SetStatusActive("away", true, nil))
	assert.Equal(t, "", p.Status("away").AttrString("message"))
	require.Len(t, rec.changes, 2)
	assert.Equal(t, change{old: "away", new: "away"}, rec.changes[1])
}

func TestAttributeOfWrongKindIsIgnored(t *testing.T) {
	p, _ := newTestPresence(t)
	require.NoError(t, p.SetStatusActive("away", true, map[string]value.Value{
		"message": value.Int(3),
		"bogus":   value.String("x"),
	}))
	assert.Equal(t, "", p.Status("away").AttrString("message"))
	assert.True(t, p.Status("away").Attr("bogus").IsZero())
}

func TestIdleNotifications(t *testing.T) {
	p, rec := newTestPresence(t)
	require.NoError(t, p.SwitchStatus("available"))
	since := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	p.SetIdle(true, since)
	p.SetIdle(true, since)
	assert.True(t, p.IsIdle())
	assert.False(t, p.IsAvailable())

	p.SetIdle(true, since.Add(time.Minute))
	p.SetIdle(false, since)

	assert.Equal(t, [][2]bool{{false, true}, {true, true}, {true, false}}, rec.idle)
	assert.True(t, p.IdleTime().IsZero())
}

func TestOfflinePresenceIsNeverIdle(t *testing.T) {
	p, _ := newTestPresence(t)
	require.NoError(t, p.SwitchStatus("offline"))
	p.SetIdle(true, time.Now())
	assert.False(t, p.IsIdle())
}

func TestCompareStatus(t *testing.T) {
	r := NewRanker(DefaultScores())
	p, _ := newTestPresence(t)
	require.NoError(t, p.SwitchStatus("available"))
	avail := p.Status("available")
	away := p.Status("away")

	assert.Equal(t, 0, r.CompareStatus(avail, avail))
	// away is inactive and scores zero
	assert.Equal(t, -1, r.CompareStatus(avail, away))

	require.NoError(t, p.SwitchStatus("away"))
	assert.Equal(t, 1, r.CompareStatus(away, avail), "inactive status scores zero, above away's -100")
}

func TestComparePresence(t *testing.T) {
	r := NewRanker(DefaultScores())

	mk := func(id string, owner fakeOwner) *Presence {
		p := NewBuddyPresence(owner, id)
		p.AddStatuses(DefaultTypes())
		require.NoError(t, p.SwitchStatus(id))
		return p
	}

	avail := mk("available", fakeOwner{})
	away := mk("away", fakeOwner{})
	xa := mk("extended_away", fakeOwner{})
	offline := mk("offline", fakeOwner{})
	boosted := mk("away", fakeOwner{"score": 300})

	assert.Equal(t, -1, r.ComparePresence(avail, away))
	assert.Equal(t, 1, r.ComparePresence(away, avail))
	assert.Equal(t, -1, r.ComparePresence(away, xa))
	assert.Equal(t, -1, r.ComparePresence(xa, offline))
	assert.Equal(t, -1, r.ComparePresence(boosted, avail))
	assert.Equal(t, 0, r.ComparePresence(avail, avail))
	assert.Equal(t, -1, r.ComparePresence(avail, nil))
	assert.Equal(t, 1, r.ComparePresence(nil, avail))

	idle := mk("available", fakeOwner{})
	idle.SetIdle(true, time.Now().Add(-time.Hour))
	assert.Equal(t, -1, r.ComparePresence(avail, idle))
}

func TestComparePresenceIdleTieBreak(t *testing.T) {
	r := NewRanker(DefaultScores())
	now := time.Now()

	mk := func(idleFor time.Duration, bias int) *Presence {
		p := NewBuddyPresence(fakeOwner{"score": bias}, "x")
		p.AddStatuses(DefaultTypes())
		require.NoError(t, p.SwitchStatus("available"))
		if idleFor > 0 {
			p.SetIdle(true, now.Add(-idleFor))
		}
		return p
	}

	longer := mk(3*time.Hour, 0)
	shorter := mk(time.Hour, 0)
	assert.Equal(t, 1, r.ComparePresence(longer, shorter))
	assert.Equal(t, -1, r.ComparePresence(shorter, longer))

	// Equal totals: the non-idle one has a higher bias cancelled by the
	// idle penalty of the other.
	active := mk(0, -10)
	assert.Equal(t, -1, r.ComparePresence(active, shorter))

	r.Scores.IdleTime = 0
	assert.Equal(t, 0, r.ComparePresence(longer, shorter))
}

func TestComparePresenceIsTotalPreorder(t *testing.T) {
	r := NewRanker(DefaultScores())
	now := time.Now()
	var ps []*Presence
	ids := []string{"available", "away", "extended_away", "invisible", "offline", "unavailable"}
	for i := 0; i < 36; i++ {
		p := NewBuddyPresence(fakeOwner{"score": (i % 4) * 3}, "x")
		p.AddStatuses(DefaultTypes())
		require.NoError(t, p.SwitchStatus(ids[i%len(ids)]))
		if i%3 == 0 {
			p.SetIdle(true, now.Add(-time.Duration(i)*time.Minute))
		}
		ps = append(ps, p)
	}

	for _, a := range ps {
		for _, b := range ps {
			assert.Equal(t, -r.ComparePresence(b, a), r.ComparePresence(a, b))
			for _, c := range ps {
				if r.ComparePresence(a, b) <= 0 && r.ComparePresence(b, c) <= 0 {
					assert.LessOrEqual(t, r.ComparePresence(a, c), 0)
				}
			}
		}
	}

	sort.SliceStable(ps, func(i, j int) bool { return r.ComparePresence(ps[i], ps[j]) < 0 })
	for i := 1; i < len(ps); i++ {
		assert.LessOrEqual(t, r.ComparePresence(ps[i-1], ps[i]), 0)
	}
}

func TestPrimitiveIDs(t *testing.T) {
	assert.Equal(t, PrimitiveExtendedAway, PrimitiveFromID("extended_away"))
	assert.Equal(t, PrimitiveUnset, PrimitiveFromID("nope"))
	assert.Equal(t, "offline", PrimitiveOffline.ID())
	assert.Equal(t, "unset", Primitive(99).ID())
}

func TestTypeCatalog(t *testing.T) {
	types := DefaultTypes()
	away := FindTypeByID(types, "away")
	require.NotNil(t, away)
	assert.Equal(t, "message", away.PrimaryAttr)
	assert.True(t, away.IsExclusive())
	assert.NotNil(t, away.Attr("message"))
	assert.Nil(t, away.Attr("nope"))

	mobile := FindTypeByPrimitive(types, PrimitiveMobile)
	require.NotNil(t, mobile)
	assert.True(t, mobile.Independent)
	assert.Nil(t, FindTypeByID(types, "nope"))

	p := NewAccountPresence(fakeOwner{})
	s1 := p.AddStatus(away)
	s2 := p.AddStatus(away)
	assert.Same(t, s1, s2)
	assert.Equal(t, ContextAccount, p.Context())
}

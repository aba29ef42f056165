package app

import (
	"fmt"
	"time"

	"github.com/meszmate/buddylist/internal/blist"
	"github.com/meszmate/buddylist/internal/events"
	"github.com/meszmate/buddylist/internal/storage/sqlite"
)

// systemLog records buddy transitions in the system_log table
type systemLog struct {
	db  *sqlite.DB
	now func() time.Time
}

func newSystemLog(db *sqlite.DB, now func() time.Time) *systemLog {
	return &systemLog{db: db, now: now}
}

func (l *systemLog) attach(bus *events.EventBus) {
	bus.Subscribe(events.BuddySignedOn, func(e events.EventMsg) {
		if ev, ok := e.Data.(blist.BuddyStatus); ok {
			l.append(ev.Buddy, "signed-on", fmt.Sprintf("%s has signed on", ev.Buddy.DisplayName()))
		}
	})
	bus.Subscribe(events.BuddySignedOff, func(e events.EventMsg) {
		if ev, ok := e.Data.(blist.BuddyStatus); ok {
			l.append(ev.Buddy, "signed-off", fmt.Sprintf("%s has signed off", ev.Buddy.DisplayName()))
		}
	})
	bus.Subscribe(events.BuddyStatusChanged, func(e events.EventMsg) {
		ev, ok := e.Data.(blist.BuddyStatus)
		if !ok || ev.New == nil || ev.Old == ev.New {
			return
		}
		msg := fmt.Sprintf("%s is now %s", ev.Buddy.DisplayName(), ev.New.Name())
		if text := ev.New.AttrString("message"); text != "" {
			msg += ": " + text
		}
		l.append(ev.Buddy, "status", msg)
	})
	bus.Subscribe(events.BuddyIdleChanged, func(e events.EventMsg) {
		ev, ok := e.Data.(blist.BuddyIdle)
		if !ok || ev.Idle == ev.WasIdle {
			return
		}
		if ev.Idle {
			l.append(ev.Buddy, "idle", fmt.Sprintf("%s has become idle", ev.Buddy.DisplayName()))
		} else {
			l.append(ev.Buddy, "idle-return", fmt.Sprintf("%s is no longer idle", ev.Buddy.DisplayName()))
		}
	})
}

func (l *systemLog) append(b *blist.Buddy, event, message string) {
	a := b.Account()
	err := l.db.AppendLog(sqlite.LogEntry{
		Protocol:  a.ProtocolID(),
		Account:   a.Username(),
		Who:       b.Name(),
		Event:     event,
		Message:   message,
		Timestamp: l.now(),
	})
	if err != nil {
		logger.Error("Failed to write system log: %v", err)
	}
}

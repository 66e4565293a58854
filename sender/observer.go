package sender

import "time"

// FileInfo identifies the object an Event refers to.
type FileInfo struct {
	TOI uint64
}

// EventKind distinguishes the two events a Sender reports.
type EventKind uint8

const (
	// EventStartTransfer fires when a file's transfer begins.
	EventStartTransfer EventKind = iota
	// EventStopTransfer fires when a file's transfer ends, successfully or
	// because the file was removed mid-transfer.
	EventStopTransfer
)

// Event is one sender lifecycle notification.
type Event struct {
	Kind EventKind
	File FileInfo
}

// Subscriber receives Sender lifecycle events.
type Subscriber interface {
	OnSenderEvent(evt Event, now time.Time)
}

// observerList dispatches events to its subscribers. Subscribe, Unsubscribe
// and Dispatch are all called from the same cooperative control flow, so
// unlike the reference implementation's RwLock-guarded list, no
// synchronization of its own is needed here.
type observerList struct {
	subscribers []Subscriber
}

func (l *observerList) Subscribe(s Subscriber) {
	l.subscribers = append(l.subscribers, s)
}

func (l *observerList) Unsubscribe(s Subscriber) {
	for i, sub := range l.subscribers {
		if sub == s {
			l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
			return
		}
	}
}

func (l *observerList) Dispatch(evt Event, now time.Time) {
	for _, sub := range l.subscribers {
		sub.OnSenderEvent(evt, now)
	}
}

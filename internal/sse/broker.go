// Package sse implements a Server-Sent Events broker that pushes note
// changes to connected clients.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types emitted by the broker.
const (
	EventNoteSaved    = "note.saved"
	EventNoteDeleted  = "note.deleted"
	EventNoteUpdated  = "note.updated"
	EventFileChanged  = "file.changed"
	EventWordsUpdated = "words.updated"
)

const (
	clientBuffer      = 64
	heartbeatInterval = 30 * time.Second
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NoteChange is the payload of note.* events.
type NoteChange struct {
	Timestamp    int64  `json:"timestamp"`
	OldTimestamp int64  `json:"old_timestamp,omitempty"`
	Text         string `json:"text,omitempty"`
}

type message struct {
	event   Event
	touches bool // note change: the vocabulary may have moved
}

// Broker fans events out to SSE clients.
//
// One goroutine owns the client set, the event sequence and the
// words.updated throttle; everything else reaches it through channels.
// words.updated is sent at most once per throttle window, and a change
// inside the window schedules one trailing event at its end.
type Broker struct {
	wordsMin  time.Duration
	heartbeat time.Duration

	join  chan chan []byte
	leave chan chan []byte
	in    chan message
	count chan chan int

	stop    chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits words.updated at most once per
// wordsThrottle.
func NewBroker(wordsThrottle time.Duration) *Broker {
	if wordsThrottle <= 0 {
		wordsThrottle = 2 * time.Second
	}
	b := &Broker{
		wordsMin:  wordsThrottle,
		heartbeat: heartbeatInterval,
		join:      make(chan chan []byte),
		leave:     make(chan chan []byte),
		in:        make(chan message, 256),
		count:     make(chan chan int),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *Broker) loop() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		seq       uint64
		lastWords time.Time
		trailing  *time.Timer
		trailingC <-chan time.Time
	)

	send := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		seq++
		frame := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))
		for ch := range clients {
			select {
			case ch <- frame:
			default:
				// client too slow, frame dropped
			}
		}
	}
	words := func(now time.Time) {
		lastWords = now
		send(Event{Type: EventWordsUpdated, Data: struct{}{}})
	}

	for {
		select {
		case <-b.stop:
			if trailing != nil {
				trailing.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.join:
			clients[ch] = struct{}{}

		case ch := <-b.leave:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case msg := <-b.in:
			send(msg.event)
			if !msg.touches {
				continue
			}
			now := time.Now()
			if wait := b.wordsMin - now.Sub(lastWords); wait > 0 {
				if trailingC == nil {
					trailing = time.NewTimer(wait)
					trailingC = trailing.C
				}
				continue
			}
			if trailing != nil {
				trailing.Stop()
				trailing, trailingC = nil, nil
			}
			words(now)

		case now := <-trailingC:
			trailing, trailingC = nil, nil
			words(now)

		case resp := <-b.count:
			resp <- len(clients)
		}
	}
}

// Close stops the loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stop)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, clientBuffer)
	if b.closed.Load() {
		close(ch)
		return ch
	}
	select {
	case b.join <- ch:
	case <-b.stopped:
		close(ch)
	}
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.leave <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}
	resp := make(chan int, 1)
	select {
	case b.count <- resp:
	case <-b.stopped:
		return 0
	}
	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

func (b *Broker) submit(msg message) {
	if b.closed.Load() {
		return
	}
	select {
	case b.in <- msg:
	case <-b.stopped:
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	b.submit(message{event: event})
}

// NoteSaved publishes note.saved.
func (b *Broker) NoteSaved(ts int64, text string) {
	b.submit(message{
		event:   Event{Type: EventNoteSaved, Data: NoteChange{Timestamp: ts, Text: text}},
		touches: true,
	})
}

// NoteDeleted publishes note.deleted.
func (b *Broker) NoteDeleted(ts int64) {
	b.submit(message{
		event:   Event{Type: EventNoteDeleted, Data: NoteChange{Timestamp: ts}},
		touches: true,
	})
}

// NoteUpdated publishes note.updated carrying both timestamps.
func (b *Broker) NoteUpdated(oldTS, newTS int64, text string) {
	b.submit(message{
		event:   Event{Type: EventNoteUpdated, Data: NoteChange{Timestamp: newTS, OldTimestamp: oldTS, Text: text}},
		touches: true,
	})
}

// FileChanged publishes file.changed for edits made outside this process.
// The vocabulary may have moved too, so it counts toward words.updated.
func (b *Broker) FileChanged(path string) {
	b.submit(message{
		event:   Event{Type: EventFileChanged, Data: map[string]string{"path": path}},
		touches: true,
	})
}

// ServeHTTP streams events to one client until it disconnects. Idle
// connections get a comment line every heartbeat interval.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ping := time.NewTicker(b.heartbeat)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if _, err := w.Write(frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

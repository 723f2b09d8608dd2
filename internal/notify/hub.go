// Package notify fans out published-version events to connected sessions.
// Subscribers declare a consumption mode: viewers receive updates live, while
// sessions holding an open draft are deaf to updates until they reconcile.
package notify

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"quill/api/internal/util"
)

// Mode is a subscriber's consumption mode.
type Mode int32

const (
	// ViewerSync applies published updates immediately.
	ViewerSync Mode = iota
	// EditorIsolated suppresses delivery while the subscriber's draft is
	// open. The subscriber stays registered so it can flip back to
	// ViewerSync and reconcile.
	EditorIsolated
)

// Event announces a new published version of a page.
type Event struct {
	PageID  string          `json:"pageId"`
	Version int64           `json:"versionId"`
	Title   string          `json:"title,omitempty"`
	Content json.RawMessage `json:"content,omitempty"`
	// Origin is the hub node that published the event; the bridge uses it
	// to drop echoes of this node's own publishes.
	Origin string `json:"origin,omitempty"`
}

const subscriberBuffer = 16

// Subscriber receives events for one page. Events arrive in version order;
// a subscriber that cannot keep up is closed rather than reordered.
type Subscriber struct {
	id     string
	pageID string
	hub    *Hub

	mu          sync.Mutex
	mode        Mode
	lastVersion int64
	closed      bool
	ch          chan Event
}

// Events is the subscriber's ordered delivery channel. It is closed when the
// subscriber is dropped or closed.
func (s *Subscriber) Events() <-chan Event {
	return s.ch
}

// SetMode switches the consumption mode. Switching back to ViewerSync does
// not replay suppressed events; callers re-fetch the current version to
// reconcile.
func (s *Subscriber) SetMode(mode Mode) {
	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()
}

// Close unregisters the subscriber and closes its channel.
func (s *Subscriber) Close() {
	s.hub.remove(s)
}

// push delivers one event if the subscriber is accepting. Stale or duplicate
// versions are skipped so per-subscriber delivery stays monotonic. Returns
// false when the subscriber's buffer is full and it should be dropped.
func (s *Subscriber) push(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.mode == EditorIsolated {
		return true
	}
	if ev.Version <= s.lastVersion {
		return true
	}
	select {
	case s.ch <- ev:
		s.lastVersion = ev.Version
		return true
	default:
		return false
	}
}

// Hub is the in-process broadcast fabric. An optional bridge extends the
// fan-out across API nodes.
type Hub struct {
	nodeID string
	logger zerolog.Logger

	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}

	bridge Bridge
}

// Bridge forwards locally published events to other nodes. Implementations
// must call Hub.Deliver for events received from elsewhere.
type Bridge interface {
	Forward(ev Event) error
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		nodeID: util.NewID("node"),
		logger: logger,
		subs:   make(map[string]map[*Subscriber]struct{}),
	}
}

// NodeID identifies this hub instance to the bridge so it can drop echoes of
// its own events.
func (h *Hub) NodeID() string {
	return h.nodeID
}

// SetBridge attaches a cross-node bridge. Must be called before Publish.
func (h *Hub) SetBridge(b Bridge) {
	h.bridge = b
}

// Subscribe registers a session for one page's event stream.
func (h *Hub) Subscribe(pageID string, mode Mode) *Subscriber {
	sub := &Subscriber{
		id:     util.NewID("sub"),
		pageID: pageID,
		hub:    h,
		mode:   mode,
		ch:     make(chan Event, subscriberBuffer),
	}
	h.mu.Lock()
	if h.subs[pageID] == nil {
		h.subs[pageID] = make(map[*Subscriber]struct{})
	}
	h.subs[pageID][sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

// Publish fans an event out to local subscribers and forwards it across the
// bridge when one is attached.
func (h *Hub) Publish(ev Event) {
	ev.Origin = h.nodeID
	h.Deliver(ev)
	if h.bridge != nil {
		if err := h.bridge.Forward(ev); err != nil {
			h.logger.Warn().Err(err).Str("page_id", ev.PageID).Msg("notify: bridge forward failed")
		}
	}
}

// Deliver fans an event out to local subscribers only. The bridge calls this
// for events received from other nodes.
func (h *Hub) Deliver(ev Event) {
	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.subs[ev.PageID]))
	for sub := range h.subs[ev.PageID] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	for _, sub := range subs {
		if !sub.push(ev) {
			h.logger.Warn().Str("page_id", ev.PageID).Str("subscriber", sub.id).Msg("notify: dropping slow subscriber")
			h.remove(sub)
		}
	}
}

func (h *Hub) remove(sub *Subscriber) {
	h.mu.Lock()
	page, ok := h.subs[sub.pageID]
	if ok {
		if _, present := page[sub]; present {
			delete(page, sub)
			if len(page) == 0 {
				delete(h.subs, sub.pageID)
			}
		} else {
			ok = false
		}
	}
	h.mu.Unlock()
	if !ok {
		return
	}

	sub.mu.Lock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
	sub.mu.Unlock()
}

// SubscriberCount reports the number of live subscribers for a page.
func (h *Hub) SubscriberCount(pageID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[pageID])
}

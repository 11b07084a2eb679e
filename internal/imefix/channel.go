package imefix

import (
	"encoding/json"
	"strings"
	"sync"
)

// The content→host channel is one-directional and best-effort. The probe
// prepends BridgePrefix to a small JSON envelope and posts it through the
// webview's native message bridge; the host's only "reply" is the OS-level
// reinjected key event, never a channel message.
const BridgePrefix = "chatdock:msg:"

// Message names carried on the channel.
const (
	// MsgEnterFix asks the host to reinject a fresh Enter after the settle
	// delay. The payload is a sentinel; no correlation token exists because
	// the fix window guarantees at most one meaningful request at a time.
	MsgEnterFix = "imeEnterFix"

	// MsgConsoleLog forwards a content-side diagnostic line verbatim.
	MsgConsoleLog = "consoleLog"

	// MsgComposerReady signals that an editable composer element exists in
	// the page. Shell glue only; the fix path never depends on it.
	MsgComposerReady = "composerReady"
)

// Message is the channel envelope.
type Message struct {
	Name    string `json:"name"`
	Payload string `json:"payload,omitempty"`
}

// ParseRaw decodes a raw bridge string. Returns false for anything that is
// not a well-formed channel message with a known name; callers drop those.
func ParseRaw(raw string) (Message, bool) {
	if !strings.HasPrefix(raw, BridgePrefix) {
		return Message{}, false
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw[len(BridgePrefix):]), &msg); err != nil {
		return Message{}, false
	}
	switch msg.Name {
	case MsgEnterFix, MsgConsoleLog, MsgComposerReady:
		return msg, true
	}
	return Message{}, false
}

// Router fans channel messages out to registered handlers. Registration
// hands back a Subscription the owner closes at teardown; the router itself
// never owns its handlers, so no reference cycle forms between the bridge
// and the components behind it.
type Router struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[string]map[uint64]func(Message)
}

func NewRouter() *Router {
	return &Router{subs: make(map[string]map[uint64]func(Message))}
}

// Subscription is a non-owning registration handle. Close is idempotent.
type Subscription struct {
	router *Router
	name   string
	id     uint64
	once   sync.Once
}

func (s *Subscription) Close() {
	s.once.Do(func() {
		s.router.mu.Lock()
		defer s.router.mu.Unlock()
		if m, ok := s.router.subs[s.name]; ok {
			delete(m, s.id)
			if len(m) == 0 {
				delete(s.router.subs, s.name)
			}
		}
	})
}

// Register attaches fn to messages with the given name.
func (r *Router) Register(name string, fn func(Message)) *Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	if r.subs[name] == nil {
		r.subs[name] = make(map[uint64]func(Message))
	}
	r.subs[name][r.nextID] = fn
	return &Subscription{router: r, name: name, id: r.nextID}
}

// Dispatch parses a raw bridge string and delivers it. Unparseable input and
// messages with no registered handler are dropped silently; delivery failure
// must never disturb the bridge.
func (r *Router) Dispatch(raw string) {
	msg, ok := ParseRaw(raw)
	if !ok {
		return
	}
	r.mu.RLock()
	handlers := make([]func(Message), 0, len(r.subs[msg.Name]))
	for _, fn := range r.subs[msg.Name] {
		handlers = append(handlers, fn)
	}
	r.mu.RUnlock()
	for _, fn := range handlers {
		fn(msg)
	}
}

package imefix

import "github.com/chatdock/chatdock/internal/devlog"

// Relay forwards content-side log lines to a host sink verbatim. Purely
// diagnostic: lines may be dropped and nothing downstream depends on them.
type Relay struct {
	sink func(line string)
}

// NewRelay builds a relay writing to sink; nil means devlog.
func NewRelay(sink func(string)) *Relay {
	if sink == nil {
		sink = func(line string) { devlog.Printf("[page] %s\n", line) }
	}
	return &Relay{sink: sink}
}

// Forward handles a consoleLog channel message.
func (r *Relay) Forward(msg Message) {
	r.sink(msg.Payload)
}

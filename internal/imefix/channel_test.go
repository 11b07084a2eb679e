package imefix

import "testing"

func TestParseRaw(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		ok   bool
		want Message
	}{
		{"resend request", BridgePrefix + `{"name":"imeEnterFix","payload":"enter"}`, true, Message{Name: MsgEnterFix, Payload: "enter"}},
		{"log line", BridgePrefix + `{"name":"consoleLog","payload":"hello"}`, true, Message{Name: MsgConsoleLog, Payload: "hello"}},
		{"ready", BridgePrefix + `{"name":"composerReady","payload":"https://x"}`, true, Message{Name: MsgComposerReady, Payload: "https://x"}},
		{"missing prefix", `{"name":"imeEnterFix"}`, false, Message{}},
		{"unknown name", BridgePrefix + `{"name":"evil"}`, false, Message{}},
		{"garbage json", BridgePrefix + `{{{`, false, Message{}},
		{"empty", "", false, Message{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseRaw(tc.raw)
			if ok != tc.ok {
				t.Fatalf("ok = %v, want %v", ok, tc.ok)
			}
			if ok && got != tc.want {
				t.Errorf("msg = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestRouterDispatch(t *testing.T) {
	r := NewRouter()

	var got []Message
	sub := r.Register(MsgEnterFix, func(m Message) { got = append(got, m) })
	defer sub.Close()

	r.Dispatch(BridgePrefix + `{"name":"imeEnterFix","payload":"enter"}`)
	r.Dispatch(BridgePrefix + `{"name":"consoleLog","payload":"ignored here"}`)
	r.Dispatch("not a channel message")

	if len(got) != 1 {
		t.Fatalf("delivered = %d, want 1", len(got))
	}
	if got[0].Name != MsgEnterFix {
		t.Errorf("name = %s, want %s", got[0].Name, MsgEnterFix)
	}
}

func TestSubscriptionCloseStopsDelivery(t *testing.T) {
	r := NewRouter()

	n := 0
	sub := r.Register(MsgConsoleLog, func(Message) { n++ })

	r.Dispatch(BridgePrefix + `{"name":"consoleLog","payload":"a"}`)
	sub.Close()
	sub.Close() // idempotent
	r.Dispatch(BridgePrefix + `{"name":"consoleLog","payload":"b"}`)

	if n != 1 {
		t.Errorf("delivered = %d, want 1 after Close", n)
	}
}

func TestDispatchWithNoHandlerIsNoOp(t *testing.T) {
	r := NewRouter()
	// Must not panic or block.
	r.Dispatch(BridgePrefix + `{"name":"imeEnterFix"}`)
}

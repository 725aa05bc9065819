package chat

import (
	"testing"
)

func TestParseFrameJSON(t *testing.T) {
	f, err := ParseFrameJSON([]byte(`{"kind":"typing","data":{"conversationId":"c1","isTyping":true}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Kind != KindTyping {
		t.Fatalf("kind = %s, want typing", f.Kind)
	}

	p, err := DecodePayload[TypingPayload](f)
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.ConversationID != "c1" || !p.IsTyping {
		t.Fatalf("payload = %+v", p)
	}
}

func TestParseFrameRejectsGarbage(t *testing.T) {
	if _, err := ParseFrameJSON([]byte(`not json`)); err == nil {
		t.Fatalf("garbage must not parse")
	}
	if _, err := ParseFrameJSON([]byte(`{"data":{}}`)); err == nil {
		t.Fatalf("frame without kind must not parse")
	}
}

func TestMarshalFrameRoundTrip(t *testing.T) {
	data, err := MarshalFrame(KindUserOnline, UserPresencePayload{UserID: "u1", Username: "alice"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	f, err := ParseFrameJSON(data)
	if err != nil {
		t.Fatalf("parse back: %v", err)
	}
	if f.Kind != KindUserOnline || f.Data["userId"] != "u1" {
		t.Fatalf("frame = %+v", f)
	}
}

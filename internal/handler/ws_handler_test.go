package handler

import (
	"testing"

	"github.com/topiclens/topiclens-backend/internal/session"
	ws "github.com/topiclens/topiclens-backend/internal/websocket"
)

func TestEventName(t *testing.T) {
	cases := []struct {
		kind session.EventKind
		want ws.Event
	}{
		{session.EventLowTime, ws.EventLowTime},
		{session.EventExpired, ws.EventExpired},
		{session.EventCompleted, ws.EventCompleted},
		{session.EventSubmitFailed, ws.EventSubmitFailed},
		{session.EventKind("anything_else"), ws.EventState},
	}

	for _, tc := range cases {
		if got := eventName(tc.kind); got != tc.want {
			t.Errorf("eventName(%v) = %q, want %q", tc.kind, got, tc.want)
		}
	}
}

package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Hsiao1114/Alternative-Reality-Life-Sim/internal/game"
	"github.com/gorilla/websocket"
)

func dialWatch(t *testing.T, ts *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/watch/" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWatchReceivesTurnReplies(t *testing.T) {
	srv, ts := newTestServer(t, &scriptedClient{name: "gpt"})

	conn := dialWatch(t, ts, "alice")

	rec := game.TurnRecord{
		UserID: "alice",
		Reply: game.TurnReply{
			Reply: game.ModelTurnResult{Narrative: "The tide turns."},
			IsEnd: false,
		},
	}
	srv.ObserveTurn(context.Background(), rec)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got game.TurnReply
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Reply.Narrative != "The tide turns." {
		t.Errorf("narrative = %q", got.Reply.Narrative)
	}
}

func TestWatchIsScopedToUser(t *testing.T) {
	srv, ts := newTestServer(t, &scriptedClient{name: "gpt"})

	aliceConn := dialWatch(t, ts, "alice")
	bobConn := dialWatch(t, ts, "bob")

	srv.ObserveTurn(context.Background(), game.TurnRecord{
		UserID: "bob",
		Reply:  game.TurnReply{Reply: game.ModelTurnResult{Narrative: "only for bob"}},
	})

	bobConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got game.TurnReply
	if err := bobConn.ReadJSON(&got); err != nil {
		t.Fatalf("bob did not receive his turn: %v", err)
	}

	aliceConn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := aliceConn.ReadMessage(); err == nil {
		t.Error("alice received bob's turn")
	}
}

func TestHubRemovesDeadWatchers(t *testing.T) {
	srv, ts := newTestServer(t, &scriptedClient{name: "gpt"})

	conn := dialWatch(t, ts, "carol")
	conn.Close()

	// Broadcasting to a closed connection must not panic, and the
	// watcher must be cleaned up (by the failed write or by the read
	// pump noticing the close, whichever runs first).
	srv.ObserveTurn(context.Background(), game.TurnRecord{
		UserID: "carol",
		Reply:  game.TurnReply{Reply: game.ModelTurnResult{Narrative: "gone"}},
	})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		srv.hub.mu.Lock()
		n := len(srv.hub.watchers["carol"])
		srv.hub.mu.Unlock()
		if n == 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Error("dead watcher not removed")
}

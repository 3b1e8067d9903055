package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"quiz-kiosk-service/internal/app"
	"quiz-kiosk-service/internal/domain"
	"quiz-kiosk-service/internal/infra/memory"
	"github.com/gorilla/websocket"
)

func TestWebSocketQuizFlow(t *testing.T) {
	server, cleanup := newTestServer(t, 0)
	defer cleanup()

	conn := dial(t, server)
	defer conn.Close()

	// The handler pushes the current state, the category list, and the
	// preference snapshot on connect (order not guaranteed).
	waitFrame(t, conn, "categories", func(raw json.RawMessage) bool {
		var categories []string
		return json.Unmarshal(raw, &categories) == nil && len(categories) == 1 && categories[0] == "X"
	})

	writeIntent(t, conn, "begin", map[string]any{"category": "X"})
	waitFrame(t, conn, "state", func(raw json.RawMessage) bool {
		var view stateView
		return json.Unmarshal(raw, &view) == nil &&
			view.SelectedCategory != nil && view.TotalQuestions == 1
	})

	writeIntent(t, conn, "answer", map[string]any{"option": "A"})
	waitFrame(t, conn, "state", func(raw json.RawMessage) bool {
		var view stateView
		return json.Unmarshal(raw, &view) == nil &&
			view.ShowFeedback && view.Score == 1 &&
			view.IsAnswerCorrect != nil && *view.IsAnswerCorrect
	})

	// Fire-and-forget high-score write eventually reaches subscribers.
	waitFrame(t, conn, "preferences", func(raw json.RawMessage) bool {
		var prefs domain.Preferences
		return json.Unmarshal(raw, &prefs) == nil && prefs.HighScore == 1
	})

	writeIntent(t, conn, "advance", nil)
	waitFrame(t, conn, "state", func(raw json.RawMessage) bool {
		var view stateView
		return json.Unmarshal(raw, &view) == nil && view.Finished
	})
}

func TestWebSocketPreferenceIntents(t *testing.T) {
	server, cleanup := newTestServer(t, 0)
	defer cleanup()

	conn := dial(t, server)
	defer conn.Close()

	writeIntent(t, conn, "setName", map[string]any{"name": "Alice"})
	waitFrame(t, conn, "preferences", func(raw json.RawMessage) bool {
		var prefs domain.Preferences
		return json.Unmarshal(raw, &prefs) == nil && prefs.UserName == "Alice"
	})

	writeIntent(t, conn, "setTheme", map[string]any{"dark": true})
	waitFrame(t, conn, "preferences", func(raw json.RawMessage) bool {
		var prefs domain.Preferences
		return json.Unmarshal(raw, &prefs) == nil && prefs.DarkTheme
	})

	writeIntent(t, conn, "logout", nil)
	waitFrame(t, conn, "preferences", func(raw json.RawMessage) bool {
		var prefs domain.Preferences
		return json.Unmarshal(raw, &prefs) == nil && prefs.UserName == ""
	})
	waitFrame(t, conn, "state", func(raw json.RawMessage) bool {
		var view stateView
		return json.Unmarshal(raw, &view) == nil &&
			view.SelectedCategory == nil && view.TotalQuestions == 0
	})
}

func TestWebSocketCountdownAutoAdvances(t *testing.T) {
	server, cleanup := newTestServer(t, 75*time.Millisecond)
	defer cleanup()

	conn := dial(t, server)
	defer conn.Close()

	writeIntent(t, conn, "begin", map[string]any{"category": "X"})

	// No answer submitted: the handler's countdown skips the question.
	waitFrame(t, conn, "state", func(raw json.RawMessage) bool {
		var view stateView
		return json.Unmarshal(raw, &view) == nil && view.Finished && view.Score == 0
	})
}

func TestWebSocketRejectsUnknownIntent(t *testing.T) {
	server, cleanup := newTestServer(t, 0)
	defer cleanup()

	conn := dial(t, server)
	defer conn.Close()

	writeIntent(t, conn, "bogus", nil)
	waitFrame(t, conn, "error", func(json.RawMessage) bool { return true })
}

func newTestServer(t *testing.T, questionTimeout time.Duration) (*httptest.Server, func()) {
	t.Helper()
	ctx := context.Background()

	keeper := app.NewPreferenceKeeper(ctx, memory.NewPreferenceStore())
	engine := app.NewEngine(memory.NewStaticLoader([]domain.Question{
		{Prompt: "Q1", Options: []string{"A", "B"}, Correct: "A", Category: "X", Trivia: "T1"},
	}), keeper)
	engine.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for engine.State().IsLoading && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if engine.State().IsLoading {
		t.Fatalf("catalog load did not complete")
	}

	wsHandler := NewWSHandler(engine, keeper, questionTimeout)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	return server, server.Close
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func writeIntent(t *testing.T, conn *websocket.Conn, intentType string, payload map[string]any) {
	t.Helper()
	msg := map[string]any{"type": intentType}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", intentType, err)
	}
}

// waitFrame reads frames until one of the wanted type satisfies the
// predicate; unrelated frames in between are skipped.
func waitFrame(t *testing.T, conn *websocket.Conn, frameType string, match func(json.RawMessage) bool) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg struct {
			Type    string          `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("waiting for %s frame: %v", frameType, err)
		}
		if msg.Type == frameType && match(msg.Payload) {
			return
		}
	}
}

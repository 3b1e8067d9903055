package http

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"quiz-kiosk-service/internal/app"
	"quiz-kiosk-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler is the boundary with the presentation layer: it pushes state,
// category, and preference snapshots out and relays user intents in. The
// per-question countdown lives here, not in the engine; on expiry the handler
// simply calls the advance intent.
type WSHandler struct {
	engine          *app.Engine
	prefs           *app.PreferenceKeeper
	questionTimeout time.Duration
	upgrader        websocket.Upgrader
}

func NewWSHandler(engine *app.Engine, prefs *app.PreferenceKeeper, questionTimeout time.Duration) *WSHandler {
	return &WSHandler{
		engine:          engine,
		prefs:           prefs,
		questionTimeout: questionTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type beginPayload struct {
	Category string `json:"category"`
}

type answerPayload struct {
	Option string `json:"option"`
}

type namePayload struct {
	Name string `json:"name"`
}

type themePayload struct {
	Dark bool `json:"dark"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// stateView flattens the session snapshot with its derived fields so clients
// never have to recompute them.
type stateView struct {
	domain.SessionState
	CurrentQuestion *domain.Question `json:"currentQuestion"`
	TotalQuestions  int              `json:"totalQuestions"`
	IsLastQuestion  bool             `json:"isLastQuestion"`
	Finished        bool             `json:"finished"`
}

func newStateView(s domain.SessionState) stateView {
	return stateView{
		SessionState:    s,
		CurrentQuestion: s.CurrentQuestion(),
		TotalQuestions:  s.TotalQuestions(),
		IsLastQuestion:  s.IsLastQuestion(),
		Finished:        s.Finished(),
	}
}

// ServeWS upgrades HTTP requests to websockets and wires them into the quiz
// engine and preference keeper.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	states, cancelStates := h.engine.Subscribe()
	defer cancelStates()
	prefs, cancelPrefs := h.prefs.Subscribe()
	defer cancelPrefs()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)

		var countdown *time.Timer
		defer func() {
			if countdown != nil {
				countdown.Stop()
			}
		}()
		categoriesSent := false

		push := func(msg outboundMessage[any]) bool {
			select {
			case send <- msg:
				return true
			case <-closeSignals:
				return false
			}
		}

		for {
			select {
			case state, ok := <-states:
				if !ok {
					return
				}
				if countdown != nil {
					countdown.Stop()
					countdown = nil
				}
				if h.shouldArmCountdown(state) {
					countdown = time.AfterFunc(h.questionTimeout, h.engine.Advance)
				}
				if !push(outboundMessage[any]{Type: "state", Payload: newStateView(state)}) {
					return
				}
				if !state.IsLoading && !categoriesSent {
					categoriesSent = true
					if !push(outboundMessage[any]{Type: "categories", Payload: h.engine.Categories()}) {
						return
					}
				}
			case snapshot, ok := <-prefs:
				if !ok {
					return
				}
				if !push(outboundMessage[any]{Type: "preferences", Payload: snapshot}) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		h.dispatch(r, send, inbound)
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

func (h *WSHandler) dispatch(r *http.Request, send chan outboundMessage[any], inbound inboundMessage) {
	sendErr := func(message string) {
		send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message}}
	}

	switch inbound.Type {
	case "begin":
		var payload beginPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.Category == "" {
			sendErr("invalid begin payload")
			return
		}
		h.engine.BeginSession(payload.Category)
	case "answer":
		var payload answerPayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			sendErr("invalid answer payload")
			return
		}
		h.engine.SubmitAnswer(payload.Option)
	case "advance":
		h.engine.Advance()
	case "return":
		h.engine.ReturnToCategories()
	case "reset":
		h.engine.Reset()
	case "setName":
		var payload namePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			sendErr("invalid name payload")
			return
		}
		_ = h.prefs.SetUserName(r.Context(), payload.Name)
	case "setTheme":
		var payload themePayload
		if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
			sendErr("invalid theme payload")
			return
		}
		_ = h.prefs.SetDarkTheme(r.Context(), payload.Dark)
	case "logout":
		_ = h.prefs.SetUserName(r.Context(), "")
		h.engine.Reset()
	default:
		sendErr("unsupported message type")
	}
}

// shouldArmCountdown reports whether the auto-advance timer applies: an
// in-progress session showing an unanswered question.
func (h *WSHandler) shouldArmCountdown(state domain.SessionState) bool {
	return h.questionTimeout > 0 &&
		!state.IsLoading &&
		state.SelectedCategory != nil &&
		!state.Finished() &&
		state.SelectedAnswer == nil &&
		state.CurrentQuestion() != nil
}

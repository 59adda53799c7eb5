package http

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"daypo-quiz-service/internal/app"
	"daypo-quiz-service/internal/domain"
	"github.com/gorilla/websocket"
)

// WSHandler runs one quiz session per websocket connection. The session is
// created on connect and closed when the socket goes away.
type WSHandler struct {
	sessions *app.SessionService
	upgrader websocket.Upgrader
}

func NewWSHandler(sessions *app.SessionService) *WSHandler {
	return &WSHandler{
		sessions: sessions,
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

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

// ServeWS upgrades the request and optionally opens the quiz named by
// ?quizId= with ?limit= and ?random= as initial settings.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var quizID int64
	if raw := q.Get("quizId"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "invalid quizId", http.StatusBadRequest)
			return
		}
		quizID = id
	}
	settings, err := settingsFromQuery(q.Get("limit"), q.Get("random"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := r.Context()

	view, err := h.sessions.Start(ctx)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: errorMessage(err)}})
		return
	}
	id := view.ID
	defer func() {
		if err := h.sessions.Close(ctx, id); err != nil {
			log.Printf("ws close session %s: %v", id, err)
		}
	}()

	out := newOutbox(16)
	go out.run(conn)

	reply := func(v app.SessionView, err error) {
		if err != nil {
			out.push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: errorMessage(err)}})
			return
		}
		out.push(outboundMessage[any]{Type: "questions", Payload: v})
	}

	if quizID != 0 {
		reply(h.sessions.OpenQuiz(ctx, id, quizID, settings))
	} else {
		reply(view, nil)
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "open":
			var p openRequest
			if err := json.Unmarshal(inbound.Payload, &p); err != nil || p.QuizID <= 0 {
				reply(app.SessionView{}, domain.Invalid("payload", "open needs a quizId"))
				continue
			}
			reply(h.sessions.OpenQuiz(ctx, id, p.QuizID, domain.Settings{Limit: p.Limit, Randomize: p.Randomize}))
		case "settings":
			var p domain.Settings
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				reply(app.SessionView{}, domain.Invalid("payload", "invalid settings payload"))
				continue
			}
			reply(h.sessions.ChangeSettings(ctx, id, p))
		case "answer":
			var p answerRequest
			if err := json.Unmarshal(inbound.Payload, &p); err != nil {
				reply(app.SessionView{}, domain.Invalid("payload", "invalid answer payload"))
				continue
			}
			reply(h.sessions.Answer(ctx, id, p.QuestionID, p.Option))
		case "grade":
			res, err := h.sessions.Grade(ctx, id)
			if err != nil {
				reply(app.SessionView{}, err)
				continue
			}
			out.push(outboundMessage[any]{Type: "result", Payload: res})
			// graded view carries the correct indices
			reply(h.sessions.View(ctx, id))
		case "retry":
			reply(h.sessions.Retry(ctx, id))
		default:
			out.push(outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	out.close()
}

type jsonConn interface {
	WriteJSON(v any) error
	Close() error
}

// outbox hands messages to the connection writer. Once the writer has
// stopped, pushes are dropped instead of blocking on a full buffer.
type outbox struct {
	send chan outboundMessage[any]
	done chan struct{}
}

func newOutbox(size int) *outbox {
	return &outbox{
		send: make(chan outboundMessage[any], size),
		done: make(chan struct{}),
	}
}

// run writes queued messages until the outbox is closed or a write fails.
// A failed write closes conn so the read loop ends too.
func (o *outbox) run(conn jsonConn) {
	defer close(o.done)
	for msg := range o.send {
		if err := conn.WriteJSON(msg); err != nil {
			log.Printf("ws write error: %v", err)
			_ = conn.Close()
			return
		}
	}
}

func (o *outbox) push(msg outboundMessage[any]) bool {
	select {
	case o.send <- msg:
		return true
	case <-o.done:
		return false
	}
}

// close stops the writer after it drains what was queued.
func (o *outbox) close() {
	close(o.send)
	<-o.done
}

// settingsFromQuery reads ?limit= (empty or "all" means every question) and
// ?random= (any strconv.ParseBool form).
func settingsFromQuery(limit, random string) (domain.Settings, error) {
	var s domain.Settings
	if limit != "" && limit != "all" {
		n, err := strconv.Atoi(limit)
		if err != nil {
			return s, domain.Invalid("limit", "must be an integer or \"all\"")
		}
		s.Limit = &n
	}
	if random != "" {
		b, err := strconv.ParseBool(random)
		if err != nil {
			return s, domain.Invalid("random", "must be a boolean")
		}
		s.Randomize = b
	}
	return s, nil
}

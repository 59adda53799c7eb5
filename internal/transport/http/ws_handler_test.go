package http

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestWebSocketSessionFlow(t *testing.T) {
	env := newTestEnv(t)
	env.importSample(t)

	u := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?quizId=1&limit=all&random=false"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Expect the opened quiz first.
	_, payload := readNext(conn, t, "questions")
	questions, _ := payload["questions"].([]any)
	if len(questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(questions))
	}
	first := questions[0].(map[string]any)
	qid := int64(first["id"].(float64))

	answer := map[string]any{
		"type":    "answer",
		"payload": map[string]any{"questionId": qid, "option": 0},
	}
	if err := conn.WriteJSON(answer); err != nil {
		t.Fatalf("write answer: %v", err)
	}
	_, payload = readNext(conn, t, "questions")
	if sel := payload["questions"].([]any)[0].(map[string]any)["selected"]; sel != float64(0) {
		t.Fatalf("expected selection recorded, got %v", sel)
	}

	if err := conn.WriteJSON(map[string]any{"type": "grade"}); err != nil {
		t.Fatalf("write grade: %v", err)
	}
	_, payload = readNext(conn, t, "result")
	if payload["correctCount"] != float64(1) || payload["scorePercent"] != float64(50) {
		t.Fatalf("unexpected result %v", payload)
	}
	_, payload = readNext(conn, t, "questions")
	if payload["state"] != "graded" {
		t.Fatalf("expected graded view, got %v", payload["state"])
	}

	if err := conn.WriteJSON(map[string]any{"type": "retry"}); err != nil {
		t.Fatalf("write retry: %v", err)
	}
	_, payload = readNext(conn, t, "questions")
	if got := len(payload["questions"].([]any)); got != 1 {
		t.Fatalf("expected 1 question after retry, got %d", got)
	}

	if err := conn.WriteJSON(map[string]any{"type": "retry"}); err != nil {
		t.Fatalf("write retry: %v", err)
	}
	readNext(conn, t, "error")

	if err := conn.WriteJSON(map[string]any{"type": "dance"}); err != nil {
		t.Fatalf("write unknown: %v", err)
	}
	readNext(conn, t, "error")
}

func TestWebSocketRejectsBadQuery(t *testing.T) {
	env := newTestEnv(t)
	u := "ws" + strings.TrimPrefix(env.server.URL, "http") + "/ws?limit=lots"
	if _, resp, err := websocket.DefaultDialer.Dial(u, nil); err == nil || resp == nil || resp.StatusCode != 400 {
		t.Fatalf("expected 400 handshake failure, got err=%v", err)
	}
}

func TestSettingsFromQuery(t *testing.T) {
	s, err := settingsFromQuery("3", "1")
	if err != nil || s.Limit == nil || *s.Limit != 3 || !s.Randomize {
		t.Fatalf("unexpected settings %+v err=%v", s, err)
	}
	s, err = settingsFromQuery("all", "")
	if err != nil || s.Limit != nil || s.Randomize {
		t.Fatalf("unexpected settings %+v err=%v", s, err)
	}
	if _, err := settingsFromQuery("", "maybe"); err == nil {
		t.Fatalf("expected error for bad random flag")
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%s)", expect, msg.Type, msg.Payload)
	}
	var payload map[string]any
	_ = json.Unmarshal(msg.Payload, &payload)
	return msg.Type, payload
}

func TestOutboxStopsAcceptingAfterWriteFailure(t *testing.T) {
	conn := &brokenConn{}
	out := newOutbox(1)
	go out.run(conn)

	msg := outboundMessage[any]{Type: "questions"}
	done := make(chan int, 1)
	go func() {
		dropped := 0
		for i := 0; i < 5; i++ {
			if !out.push(msg) {
				dropped++
			}
		}
		out.close()
		done <- dropped
	}()

	select {
	case dropped := <-done:
		if dropped == 0 {
			t.Fatalf("expected pushes to be dropped once the writer stopped")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("push blocked after the writer stopped")
	}
	if !conn.closed {
		t.Fatalf("expected a failed write to close the connection")
	}
}

type brokenConn struct {
	closed bool
}

func (c *brokenConn) WriteJSON(any) error { return errors.New("broken pipe") }

func (c *brokenConn) Close() error {
	c.closed = true
	return nil
}

package server

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/michaelbrown/gauntlet/internal/harness"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsIncoming asks for one test run.
type wsIncoming struct {
	Type    string          `json:"type"`
	Request harness.Request `json:"request"`
}

// wsOutgoing is a message to the client.
type wsOutgoing struct {
	Type      string                     `json:"type"` // execution, done or error
	Index     *int                       `json:"index,omitempty"`
	Execution *harness.ExecutionWithTest `json:"execution,omitempty"`
	Result    *harness.Result            `json:"result,omitempty"`
	Content   string                     `json:"content,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade")
		return
	}
	defer conn.Close()

	// Cancelled on client disconnect or server shutdown
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New().String()
	as := s.streams.Add(id, conn, cancel)
	defer s.streams.Remove(id)

	// Reads run apart from test runs so a disconnect cancels the run in progress.
	msgs := make(chan wsIncoming)
	go func() {
		defer close(msgs)
		defer cancel()
		for {
			var msg wsIncoming
			if err := conn.ReadJSON(&msg); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && ctx.Err() == nil {
					s.log.Debug().Err(err).Str("stream", id).Msg("websocket read")
				}
				return
			}
			select {
			case msgs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for msg := range msgs {
		if msg.Type != "run" {
			s.send(as, wsOutgoing{Type: "error", Content: "invalid message"})
			continue
		}

		s.streamRun(ctx, as, msg.Request)
	}
}

// streamRun sends one execution message per finished test, then done or error.
func (s *Server) streamRun(ctx context.Context, as *ActiveStream, req harness.Request) {
	res, err := s.svc.RunTestsStream(ctx, req, func(i int, e harness.ExecutionWithTest) {
		s.send(as, wsOutgoing{Type: "execution", Index: &i, Execution: &e})
	})
	if err != nil {
		if ctx.Err() != nil {
			s.send(as, wsOutgoing{Type: "error", Content: "interrupted"})
		} else {
			s.send(as, wsOutgoing{Type: "error", Content: err.Error()})
		}
		return
	}
	s.send(as, wsOutgoing{Type: "done", Result: &res})
}

func (s *Server) send(as *ActiveStream, msg wsOutgoing) {
	if err := as.send(msg); err != nil {
		s.log.Debug().Err(err).Str("type", msg.Type).Msg("websocket write")
	}
}

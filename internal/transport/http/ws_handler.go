package http

import (
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"quiz-session-service/internal/app"
	"quiz-session-service/internal/domain"
)

// ResultFeedHandler streams completed-session results over a websocket.
type ResultFeedHandler struct {
	feed     *app.ResultFeed
	log      *logrus.Logger
	upgrader websocket.Upgrader
}

func NewResultFeedHandler(feed *app.ResultFeed, log *logrus.Logger) *ResultFeedHandler {
	return &ResultFeedHandler{
		feed: feed,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string               `json:"type"`
	Payload domain.SessionResult `json:"payload"`
}

// ServeWS upgrades the request and pushes a message per completed session
// until the client disconnects.
func (h *ResultFeedHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("ws upgrade failed")
		return
	}
	defer conn.Close()

	results, cancel := h.feed.Subscribe()
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		// discard inbound frames; reading surfaces the close
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case result, ok := <-results:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage{Type: "result", Payload: result}); err != nil {
				h.log.WithError(err).Debug("ws write error")
				return
			}
		case <-closed:
			return
		}
	}
}

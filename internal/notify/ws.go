package notify

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin policy is enforced by the HTTP layer's CORS configuration.
	CheckOrigin: func(*http.Request) bool { return true },
}

// controlMessage is the only inbound traffic a session sends: declaring that
// its draft opened or closed, which flips the subscription mode.
type controlMessage struct {
	Type string `json:"type"`
}

const (
	controlDraftOpen   = "draft_open"
	controlDraftClosed = "draft_closed"
)

// ServeSession upgrades the connection and streams page events to it until
// either side goes away. Sessions start in ViewerSync; a draft_open control
// message isolates them from updates until draft_closed.
func ServeSession(hub *Hub, logger zerolog.Logger, pageID string, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn().Err(err).Str("page_id", pageID).Msg("notify: websocket upgrade failed")
		return
	}

	sub := hub.Subscribe(pageID, ViewerSync)
	defer sub.Close()
	defer conn.Close()

	go readPump(conn, sub)
	writePump(conn, sub, logger, pageID)
}

func readPump(conn *websocket.Conn, sub *Subscriber) {
	defer sub.Close()
	conn.SetReadLimit(1024)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg controlMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case controlDraftOpen:
			sub.SetMode(EditorIsolated)
		case controlDraftClosed:
			sub.SetMode(ViewerSync)
		}
	}
}

func writePump(conn *websocket.Conn, sub *Subscriber, logger zerolog.Logger, pageID string) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				logger.Debug().Err(err).Str("page_id", pageID).Msg("notify: websocket write failed")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

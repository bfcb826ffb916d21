package realtime

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jcooky/go-din"
	"github.com/samber/lo"

	"github.com/habiliai/lodgechat"
	"github.com/habiliai/lodgechat/config"
	"github.com/habiliai/lodgechat/delivery"
	"github.com/habiliai/lodgechat/entity"
	"github.com/habiliai/lodgechat/errors"
	"github.com/habiliai/lodgechat/internal/auth"
	"github.com/habiliai/lodgechat/internal/mylog"
	"github.com/habiliai/lodgechat/message"
)

const (
	writeWait   = 10 * time.Second
	pingPeriod  = 30 * time.Second
	readTimeout = 60 * time.Second
)

// Handler streams the messages of one thread over a websocket:
//
//	GET /realtime?thread_id=42[&cursor=...]
//
// With a cursor query the messages after it are replayed before live delivery starts.
type Handler struct {
	logger    *slog.Logger
	messenger *lodgechat.Messenger
	buffer    int
	upgrader  websocket.Upgrader
}

// NewHandler accepts handshakes without an Origin header, from the request's own host,
// or from one of allowedOrigins. "*" accepts any origin.
func NewHandler(logger *slog.Logger, messenger *lodgechat.Messenger, buffer int, allowedOrigins []string) *Handler {
	return &Handler{
		logger:    logger,
		messenger: messenger,
		buffer:    buffer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
	}
}

func checkOrigin(allowedOrigins []string) func(r *http.Request) bool {
	anyOrigin := lo.Contains(allowedOrigins, "*")

	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || anyOrigin {
			return true
		}
		if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, r.Host) {
			return true
		}
		return lo.ContainsBy(allowedOrigins, func(allowed string) bool {
			return strings.EqualFold(strings.TrimSuffix(allowed, "/"), origin)
		})
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userId, err := auth.Caller(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	threadId, err := strconv.ParseUint(r.URL.Query().Get("thread_id"), 10, 64)
	if err != nil || threadId == 0 {
		http.Error(w, "thread_id is required", http.StatusBadRequest)
		return
	}

	var since *message.Cursor
	replay := r.URL.Query().Has("cursor")
	if replay {
		if since, err = message.ParseCursor(r.URL.Query().Get("cursor")); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := h.messenger.Threads().RequireParticipant(r.Context(), uint(threadId), userId); err != nil {
		http.Error(w, err.Error(), statusOf(err))
		return
	}

	// subscribe before the upgrade so nothing appended after the check is missed
	stream := h.messenger.Dispatcher().SubscribeStream(uint(threadId), h.buffer)
	defer stream.Close()

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", mylog.Err(err))
		return
	}
	defer ws.Close()

	logger := h.logger.With("thread_id", threadId, "user_id", userId)
	logger.Debug("realtime subscriber connected")

	done := make(chan struct{})
	go readLoop(ws, done)

	var last *entity.Message
	if replay {
		for msg, err := range h.messenger.Messages().List(r.Context(), uint(threadId), since) {
			if err != nil {
				logger.Warn("failed to replay messages", mylog.Err(err))
				closeWith(ws, websocket.CloseInternalServerErr, "replay failed")
				return
			}
			if err := writeEvent(ws, msg); err != nil {
				return
			}
			last = &msg
		}
	}

	h.writeLoop(logger, ws, stream, done, last)
}

func (h *Handler) writeLoop(logger *slog.Logger, ws *websocket.Conn, stream *delivery.Stream, done <-chan struct{}, last *entity.Message) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case msg, ok := <-stream.C:
			if !ok {
				if err := stream.Err(); err != nil {
					logger.Info("realtime subscriber fell behind", mylog.Err(err))
					closeWith(ws, websocket.CloseTryAgainLater, "subscriber fell behind, reconnect with a cursor")
				}
				return
			}
			if last != nil && !last.Before(&msg) {
				continue
			}
			if err := writeEvent(ws, msg); err != nil {
				return
			}
			last = &msg
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// readLoop drains client frames so pongs and close frames are processed.
func readLoop(ws *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	ws.SetReadLimit(4096)
	_ = ws.SetReadDeadline(time.Now().Add(readTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func writeEvent(ws *websocket.Conn, msg entity.Message) error {
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return ws.WriteJSON(NewInsertEvent(msg))
}

func closeWith(ws *websocket.Conn, code int, reason string) {
	_ = ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
}

func statusOf(err error) int {
	switch errors.Kind(err) {
	case "not_found":
		return http.StatusNotFound
	case "permission_denied":
		return http.StatusForbidden
	case "invalid_params":
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func init() {
	din.RegisterT(func(c *din.Container) (*Handler, error) {
		logger, err := din.Get[*slog.Logger](c, mylog.Key)
		if err != nil {
			return nil, err
		}
		messenger, err := din.GetT[*lodgechat.Messenger](c)
		if err != nil {
			return nil, err
		}
		conf := din.MustGetT[*config.RealtimeConfig](c)
		serverConf := din.MustGetT[*config.ServerConfig](c)

		return NewHandler(logger, messenger, conf.SubscriberBuffer, serverConf.Origins()), nil
	})
}

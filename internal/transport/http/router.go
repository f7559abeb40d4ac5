package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// roomView is the REST projection of a room.
type roomView struct {
	domain.RoomState
	Subscribers int `json:"subscribers"`
}

type rankingView struct {
	RoomID  string                `json:"roomId"`
	Ranking []domain.RankingEntry `json:"ranking"`
}

// NewRouter mounts the websocket endpoint and the read-only REST endpoints
// behind CORS and access logging.
func NewRouter(service *app.RoomService, ws *WSHandler, allowedOrigins []string, log zerolog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", ws.ServeWS)

	mux.HandleFunc("GET /rooms/{roomID}", func(w http.ResponseWriter, r *http.Request) {
		roomID := r.PathValue("roomID")
		state, err := service.Snapshot(roomID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, roomView{RoomState: state, Subscribers: ws.Hub().Subscribers(roomID)})
	})

	mux.HandleFunc("GET /rooms/{roomID}/ranking", func(w http.ResponseWriter, r *http.Request) {
		roomID := r.PathValue("roomID")
		ranking, err := service.Ranking(roomID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rankingView{RoomID: roomID, Ranking: ranking})
	})

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
	})
	return accessLog(log, c.Handler(mux))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, domain.ErrRoomNotFound) {
		status = http.StatusNotFound
	}
	writeJSON(w, status, toErrorPayload(err))
}

// accessLog attaches the logger and a request id to every request and logs
// one line per response. Websocket upgrades are hijacked before any status
// is written, so they are logged as 101.
func accessLog(log zerolog.Logger, next http.Handler) http.Handler {
	logged := hlog.AccessHandler(func(r *http.Request, status, size int, took time.Duration) {
		if status == 0 && websocket.IsWebSocketUpgrade(r) {
			status = http.StatusSwitchingProtocols
		}
		hlog.FromRequest(r).Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("took", took).
			Msg("http request")
	})(next)
	return hlog.NewHandler(log)(hlog.RequestIDHandler("req_id", "X-Request-Id")(logged))
}

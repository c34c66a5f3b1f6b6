package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/xingzihai/soundroom/internal/hub"
	"github.com/xingzihai/soundroom/internal/relay"
	"github.com/xingzihai/soundroom/internal/room"
	"github.com/xingzihai/soundroom/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}
	setupLogger()

	port := os.Getenv("PORT")
	if port == "" {
		port = "5000"
	}
	staticDir := os.Getenv("STATIC_DIR")
	if staticDir == "" {
		staticDir = "./web/static"
	}

	rooms := room.NewManager()
	groups := hub.New()
	rl := relay.New(rooms, groups)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler(rl))
	mux.HandleFunc("/healthz", healthHandler)
	mux.HandleFunc("/stats", statsHandler(rooms, groups))
	mux.Handle("/", http.FileServer(http.Dir(staticDir)))

	server := &http.Server{
		Addr:    ":" + port,
		Handler: mux,
	}

	go func() {
		slog.Info("soundroom relay starting", "port", port)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
}

func setupLogger() {
	level := slog.LevelInfo
	switch os.Getenv("LOG_LEVEL") {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

// checkOrigin allows localhost always, origins listed in ALLOWED_ORIGINS when
// the variable is set, and everything when it is not.
func checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	host := u.Hostname()

	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}

	allowedStr := os.Getenv("ALLOWED_ORIGINS")
	if allowedStr == "" {
		return true
	}
	for _, allowed := range strings.Split(allowedStr, ",") {
		allowed = strings.TrimSpace(allowed)
		if allowed == "" {
			continue
		}
		au, err := url.Parse(allowed)
		if err != nil {
			if origin == allowed {
				return true
			}
			continue
		}
		if host == au.Hostname() {
			return true
		}
	}
	return false
}

func wsHandler(rl *relay.Relay) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sock, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("websocket upgrade failed", "error", err)
			return
		}
		conn := ws.NewConn(uuid.New().String(), sock, rl)
		slog.Info("client connected", "clientId", conn.ID())
		conn.Run()
		slog.Info("client disconnected", "clientId", conn.ID())
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func statsHandler(rooms *room.Manager, groups *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, clients := groups.Stats()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]int{
			"rooms":   rooms.RoomCount(),
			"clients": clients,
		})
	}
}

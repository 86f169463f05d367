package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lrcsync/internal/ipc"
	"lrcsync/internal/session"
)

// logger 每次取全局 logger，使 SetupLogging 之后的输出配置生效
func logger() *zerolog.Logger {
	l := log.With().Str("component", "api").Logger()
	return &l
}

// Backend 事件循环的入口
type Backend interface {
	// Do 在事件循环中执行 fn
	Do(ctx context.Context, fn func(*session.Session) error) error
	// Apply 在事件循环中执行一条同步命令
	Apply(ctx context.Context, cmd ipc.Command) (string, error)
}

// Importer 在线歌词导入
type Importer interface {
	Import(ctx context.Context, name string, duration float64) (string, error)
}

// Server 展示层 HTTP/WebSocket 接口
type Server struct {
	backend    Backend
	importer   Importer
	hub        *Hub
	router     *mux.Router
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// NewServer importer 为 nil 时 /api/import 返回 501
func NewServer(addr string, backend Backend, importer Importer) *Server {
	s := &Server{
		backend:  backend,
		importer: importer,
		hub:      NewHub(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Hub 用于注册为事件循环的 Listener
func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/session", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/session", s.handleResetSession).Methods(http.MethodDelete)
	api.HandleFunc("/lyrics", s.handleGetLyrics).Methods(http.MethodGet)
	api.HandleFunc("/lyrics", s.handlePutLyrics).Methods(http.MethodPut)
	api.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)
	api.HandleFunc("/audio", s.handlePutAudio).Methods(http.MethodPut)
	api.HandleFunc("/active", s.handleActive).Methods(http.MethodGet)
	api.HandleFunc("/lines/{index:-?[0-9]+}/timestamp", s.handleSetTimestamp).Methods(http.MethodPut)
	api.HandleFunc("/lines/{index:-?[0-9]+}/timestamp", s.handleClearTimestamp).Methods(http.MethodDelete)
	api.HandleFunc("/lines/{index:-?[0-9]+}/nudge", s.handleNudge).Methods(http.MethodPost)
	api.HandleFunc("/lines/{index:-?[0-9]+}/jump", s.handleJump).Methods(http.MethodPost)
	api.HandleFunc("/sync/{action:next|prev|rewind|end}", s.handleSync).Methods(http.MethodPost)
	api.HandleFunc("/playback", s.handlePlayback).Methods(http.MethodPost)
	api.HandleFunc("/import", s.handleImport).Methods(http.MethodPost)

	router.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	// 预检请求，具体响应由 corsMiddleware 写出
	router.PathPrefix("/").Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Run 监听并服务，ctx 结束时优雅关闭
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		logger().Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.hub.Close()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger().Info().Msg("HTTP server stopped")
	return nil
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger().Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	// 先注册再取快照：注册之后发布的变化都会推送给它，不会漏掉
	c := &client{hub: s.hub, conn: conn, send: make(chan []byte, sendBuffer)}
	s.hub.register(c)
	go c.writePump()
	go c.readPump(context.Background())

	// 快照在事件循环内发给该客户端，和 Listener 的推送保持先后顺序
	if err := s.backend.Do(r.Context(), func(sess *session.Session) error {
		snap := sess.Snapshot()
		s.hub.sendTo(c, &WSMessage{Type: MsgTypeSnapshot, Active: snap.Active, Position: snap.Position, Snapshot: &snap})
		return nil
	}); err != nil {
		logger().Warn().Err(err).Msg("Failed to read session for websocket client")
		s.hub.unregister(c)
	}
}

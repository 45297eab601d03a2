package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/pairchat/server/internal/config"
	"github.com/pairchat/server/internal/handlers"
	"github.com/pairchat/server/internal/logging"
	"github.com/pairchat/server/internal/middleware"
	"github.com/pairchat/server/internal/store/pgstore"
	"github.com/pairchat/server/internal/ws"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional; env vars override)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// No logger yet.
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		os.Stderr.WriteString("logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := pgstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Info("database ready")

	secret := []byte(cfg.JWTSecret)
	relay := ws.NewRelay(st, cfg.DatabaseURL, log)

	authHandler := &handlers.AuthHandler{Store: st, Secret: secret, Log: log}
	userHandler := &handlers.UserHandler{Store: st, Log: log}
	chatHandler := &handlers.ChatHandler{Store: st, Log: log}

	r := mux.NewRouter()
	r.Use(requestLogger(log))

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	r.HandleFunc("/auth/register", authHandler.Register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", authHandler.Login).Methods(http.MethodPost)

	authed := r.NewRoute().Subrouter()
	authed.Use(middleware.Auth(secret))
	authed.HandleFunc("/users/me", userHandler.Me).Methods(http.MethodGet)
	authed.HandleFunc("/users/profile", userHandler.UpdateProfile).Methods(http.MethodPatch)
	authed.HandleFunc("/users/password", userHandler.UpdatePassword).Methods(http.MethodPatch)
	authed.HandleFunc("/chats/codes", chatHandler.CreateCode).Methods(http.MethodPost)
	authed.HandleFunc("/chats/codes", chatHandler.DeleteCode).Methods(http.MethodDelete)
	authed.HandleFunc("/chats/ws", relay.ServeWS).Methods(http.MethodGet)
	authed.HandleFunc("/chats/messages", chatHandler.UpdateMessage).Methods(http.MethodPatch)
	authed.HandleFunc("/chats/messages", chatHandler.DeleteMessage).Methods(http.MethodDelete)
	authed.HandleFunc("/chats", chatHandler.RedeemCode).Methods(http.MethodPost)
	authed.HandleFunc("/chats", chatHandler.GetMessages).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("grace_period", cfg.ShutdownGracePeriod))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// requestLogger logs one line per request after it completes.
func requestLogger(log *zap.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			log.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", sw.status),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack exposes the underlying connection so the WebSocket upgrade works
// through the logging wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return hj.Hijack()
}

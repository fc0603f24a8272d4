package app

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/selfcinema/server/internal/controller"
	"github.com/selfcinema/server/internal/repository/connection/inmemory"
	"github.com/selfcinema/server/internal/repository/room/redis"
	"github.com/selfcinema/server/internal/service/room"
	"github.com/selfcinema/server/pkg/ctxlogger"
	"github.com/selfcinema/server/pkg/redisclient"
)

type AppConfig struct {
	Host             string        `json:"host"`
	Port             int           `json:"port"`
	LogLevel         string        `json:"log_level"`
	PresenceWindow   time.Duration `json:"presence_window"`
	MessageRetention time.Duration `json:"message_retention"`
	MessagesLimit    int           `json:"messages_limit"`
	RoomExpiration   time.Duration `json:"room_expiration"`
	RedisPort        int           `json:"redis_port"`
	RedisHost        string        `json:"redis_host"`
	RedisPassword    string        `json:"-"`
}

func (cfg *AppConfig) Validate() error {
	if cfg.PresenceWindow <= 0 {
		return fmt.Errorf("presence window must be greater than 0")
	}
	if cfg.MessageRetention <= 0 {
		return fmt.Errorf("message retention must be greater than 0")
	}
	if cfg.MessagesLimit < 1 {
		return fmt.Errorf("messages limit must be greater than 0")
	}
	return nil
}

func Run(ctx context.Context, cfg *AppConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logLevel := slog.LevelInfo
	if err := logLevel.UnmarshalText([]byte(strings.ToUpper(cfg.LogLevel))); err != nil {
		log.Fatal(err)
	}

	h := ctxlogger.ContextHandler{
		Handler: slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level:     logLevel,
			AddSource: true,
		}),
	}

	logger := slog.New(&h)

	rc, err := redisclient.NewRedisClient(&redisclient.Config{
		Port:     cfg.RedisPort,
		Host:     cfg.RedisHost,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to create redis client: %w", err)
	}
	defer rc.Close()

	roomRepo := redis.NewRepo(rc, cfg.RoomExpiration, cfg.MessageRetention)
	connRepo := inmemory.NewRepo()
	roomService := room.NewService(roomRepo, &room.Config{
		PresenceWindow: cfg.PresenceWindow,
		MessagesLimit:  int64(cfg.MessagesLimit),
	})
	controller := controller.NewController(roomService, connRepo, logger)
	server := &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: controller.GetMux()}

	// graceful shutdown
	serverCtx, serverStopCtx := context.WithCancel(ctx)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	go func() {
		<-sig

		shutdownCtx, c := context.WithTimeout(serverCtx, 30*time.Second)
		defer c()

		go func() {
			<-shutdownCtx.Done()
			if shutdownCtx.Err() == context.DeadlineExceeded {
				log.Fatal("graceful shutdown timed out.. forcing exit.")
			}
		}()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Fatal(err)
		}
		serverStopCtx()
	}()

	logger.InfoContext(serverCtx, "starting server", "address", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-serverCtx.Done()

	return nil
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/Ashy-21/TWINK/internal/auth"
	"github.com/Ashy-21/TWINK/internal/config"
	"github.com/Ashy-21/TWINK/internal/database"
	"github.com/Ashy-21/TWINK/internal/handlers"
	"github.com/Ashy-21/TWINK/internal/services"
	"github.com/Ashy-21/TWINK/internal/websocket"
	"github.com/Ashy-21/TWINK/pkg/logger"

	gfshutdown "github.com/gelmium/graceful-shutdown"
)

func main() {
	// Load configuration
	cfg := config.Load()
	logger.SetLevel(logger.ParseLevel(cfg.LogLevel))

	// Initialize database
	db, err := openDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to open database: %v", err)
	}
	if err := db.Migrate(context.Background()); err != nil {
		logger.Fatal("Failed to migrate database: %v", err)
	}

	// Initialize services
	authService := auth.NewService(db, cfg)
	roomService := services.NewRoomService(db)
	messageService := services.NewMessageService(db)

	// Initialize the relay
	hub := websocket.NewHub()
	persister := websocket.NewPersister(db, cfg.Relay.PersistWorkers)
	engine := websocket.NewEngine(hub, persister)

	// Initialize handlers
	authHandlers := handlers.NewAuthHandlers(authService)
	roomHandlers := handlers.NewRoomHandlers(roomService, authService, engine.Presence())
	messageHandlers := handlers.NewMessageHandlers(messageService, authService)
	wsHandlers := handlers.NewWebSocketHandlers(authService, messageService, engine, cfg)
	healthHandlers := handlers.NewHealthHandlers(engine)

	// Setup routes
	mux := http.NewServeMux()
	setupRoutes(mux, authHandlers, roomHandlers, messageHandlers, wsHandlers, healthHandlers)

	// Create server
	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      corsMiddleware(cfg.Server.AllowedOrigins, mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	logger.Info("🚀 Server started on http://localhost%s (db: %s)", cfg.Server.Port, cfg.Database.Driver)
	logger.Info("📡 WebSocket endpoints: ws://localhost%s/ws/chat/{room}/ and /ws?room=", cfg.Server.Port)
	printAPIEndpoints()

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server error: %v", err)
		}
	}()

	// Graceful shutdown: stop accepting requests, close sockets and drain the
	// persister, then release the database.
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		cfg.Server.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"twink-server": func(ctx context.Context) error {
				logger.Info("Server shutting down...")
				if err := server.Shutdown(ctx); err != nil {
					logger.Error("HTTP shutdown error: %v", err)
				}
				if err := engine.Shutdown(ctx); err != nil {
					logger.Error("Relay shutdown error: %v", err)
				}
				return db.Close()
			},
		},
	)

	exitCode := <-wait
	logger.Info("Server exited with code %d", exitCode)
	os.Exit(exitCode)
}

func openDatabase(cfg config.DatabaseConfig) (database.Database, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return database.NewSQLiteDB(cfg.SQLitePath)
	default:
		return database.NewPostgresDB(cfg.URL)
	}
}

func setupRoutes(
	mux *http.ServeMux,
	authHandlers *handlers.AuthHandlers,
	roomHandlers *handlers.RoomHandlers,
	messageHandlers *handlers.MessageHandlers,
	wsHandlers *handlers.WebSocketHandlers,
	healthHandlers *handlers.HealthHandlers,
) {
	// Auth routes
	mux.HandleFunc("POST /login", authHandlers.Login)
	mux.HandleFunc("POST /register", authHandlers.Register)

	// Room and user routes
	mux.HandleFunc("GET /api/personal-room", roomHandlers.PersonalRoom)
	mux.HandleFunc("GET /api/groups", roomHandlers.ListGroups)
	mux.HandleFunc("POST /api/groups", roomHandlers.CreateGroup)
	mux.HandleFunc("GET /api/search-users", roomHandlers.SearchUsers)
	mux.HandleFunc("GET /api/username-check", roomHandlers.UsernameCheck)
	mux.HandleFunc("GET /api/presence", roomHandlers.Presence)

	// Message routes
	mux.HandleFunc("POST /api/send-message", messageHandlers.SendMessage)
	mux.HandleFunc("GET /api/messages", messageHandlers.Messages)

	// WebSocket routes
	mux.HandleFunc("GET /ws", wsHandlers.HandleWebSocket)
	mux.HandleFunc("GET /ws/chat/{room}/", wsHandlers.HandleWebSocket)

	mux.HandleFunc("GET /ws-test", healthHandlers.WSTest)
	mux.HandleFunc("GET /healthz", healthHandlers.Healthz)
}

func corsMiddleware(allowed []string, next http.Handler) http.Handler {
	allowOrigin := "*"
	if len(allowed) > 0 && allowed[0] != "*" {
		allowOrigin = strings.Join(allowed, ",")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowOrigin == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		} else if origin != "" && strings.Contains(","+allowOrigin+",", ","+origin+",") {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func printAPIEndpoints() {
	logger.Info("🔗 API endpoints:")
	logger.Info("   POST /login")
	logger.Info("   POST /register")
	logger.Info("   GET  /api/personal-room?username=")
	logger.Info("   GET  /api/groups")
	logger.Info("   POST /api/groups")
	logger.Info("   GET  /api/search-users?q=")
	logger.Info("   GET  /api/username-check?q=")
	logger.Info("   GET  /api/presence")
	logger.Info("   POST /api/send-message")
	logger.Info("   GET  /api/messages?room=&limit=")
	logger.Info("   GET  /ws/chat/{room}/")
	logger.Info("   GET  /ws?room=")
	logger.Info("   GET  /ws-test")
	logger.Info("   GET  /healthz")
}

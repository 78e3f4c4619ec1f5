package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"lilypad/internal/config"
	"lilypad/internal/database"
	"lilypad/internal/engine"
	"lilypad/internal/handlers"
	"lilypad/internal/middleware"
	"lilypad/internal/oauth"
	"lilypad/internal/render"
	"lilypad/internal/session"
	"lilypad/internal/utils"
	"lilypad/internal/websocket"

	"github.com/asynkron/protoactor-go/actor"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	metrics := utils.NewMetricsCollector()

	store, err := openStore(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			log.Printf("Failed to close store: %v", err)
		}
	}()

	sessionStore, err := openSessionStore(cfg.Session)
	if err != nil {
		log.Fatalf("Failed to initialize session store: %v", err)
	}
	sessions := session.NewManager(sessionStore, cfg.Session.TTL, cfg.Session.CookieName, cfg.Session.SecureCookie)

	// Initialize actor system and engine
	system := actor.NewActorSystem()
	appEngine := engine.NewEngine(system, metrics, store)

	var provider oauth.Provider
	var states *oauth.StateCodec
	if cfg.OAuth.ClientID != "" {
		provider = oauth.NewGoogleProvider(cfg.OAuth.ClientID, cfg.OAuth.ClientSecret, cfg.OAuth.RedirectURL)
		states = oauth.NewStateCodec(cfg.OAuth.StateSecret)
		log.Println("Google OAuth login enabled")
	} else {
		log.Println("Google OAuth login disabled (GOOGLE_CLIENT_ID not set)")
	}

	renderer, err := render.New()
	if err != nil {
		log.Fatalf("Failed to parse templates: %v", err)
	}

	hub := websocket.NewHub()
	go hub.Run()

	gate := middleware.NewGate(sessions, appEngine, system.Root)
	server := handlers.NewServer(system, system.Root, appEngine, gate, metrics, sessions, provider, states, renderer, hub)

	corsConfig := middleware.DefaultCORSConfig(cfg.AllowedOrigins)
	handler := middleware.CORSMiddleware(corsConfig)(newMux(server, gate))

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting server on %s (db=%s, sessions=%s)", serverAddr, cfg.Database.Type, cfg.Session.Backend)
	if err := http.ListenAndServe(serverAddr, handler); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}

// newMux builds the route table. The login and register paths serve the form
// on GET and take the submission on POST; everything under the gate redirects
// anonymous requests to the login page.
func newMux(server *handlers.Server, gate *middleware.Gate) *http.ServeMux {
	mux := http.NewServeMux()

	// Public surface
	mux.HandleFunc("/", server.HandleHome())
	mux.HandleFunc("/login", byMethod(server.HandleLoginPage(), server.HandleLogin()))
	mux.HandleFunc("/register", byMethod(server.HandleRegisterPage(), server.HandleRegister()))
	mux.HandleFunc("/logout", server.HandleLogout())
	mux.HandleFunc("/auth/google", server.HandleGoogleLogin())
	mux.HandleFunc("/auth/google/callback", server.HandleGoogleCallback())
	mux.HandleFunc("/posts/like", server.HandleLikePost())
	mux.HandleFunc("/health", server.HandleHealth())

	// Authenticated surface, all behind the gate
	mux.HandleFunc("/posts", gate.Protect(server.HandleCreatePost()))
	mux.HandleFunc("/posts/comment", gate.Protect(server.HandleComment()))
	mux.HandleFunc("/posts/delete", gate.Protect(server.HandleDeletePost()))
	mux.HandleFunc("/profile", gate.Protect(server.HandleProfile()))
	mux.HandleFunc("/ws", gate.Protect(server.HandleWebSocket()))

	return mux
}

// byMethod routes POST to the submit handler and everything else to the page
func byMethod(page, submit http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			submit(w, r)
			return
		}
		page(w, r)
	}
}

// openStore picks the storage backend from config and runs its schema setup
func openStore(cfg *config.DatabaseConfig) (database.Store, error) {
	switch cfg.Type {
	case "memory":
		log.Println("Using in-memory store; data will not survive a restart")
		return database.NewMemoryStore(), nil

	case "mongo":
		// NewMongoDB pings and creates the unique indexes itself
		return database.NewMongoDB(cfg.URI, cfg.Name)

	case "postgres":
		// NewPostgresDB connects and creates the schema itself
		return database.NewPostgresDB(cfg.URI)

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// openSessionStore picks the session backend from config
func openSessionStore(cfg *config.SessionConfig) (session.SessionStore, error) {
	switch cfg.Backend {
	case "memory":
		return session.NewMemoryStore(), nil
	case "redis":
		return session.NewRedisStore(cfg.RedisAddr, cfg.RedisPass)
	default:
		return nil, fmt.Errorf("unsupported session backend: %s", cfg.Backend)
	}
}

package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/manpreetbhatti/sketchroom/internal/activity"
	"github.com/manpreetbhatti/sketchroom/internal/api"
	"github.com/manpreetbhatti/sketchroom/internal/compaction"
	"github.com/manpreetbhatti/sketchroom/internal/config"
	"github.com/manpreetbhatti/sketchroom/internal/db"
	"github.com/manpreetbhatti/sketchroom/internal/identity"
	"github.com/manpreetbhatti/sketchroom/internal/presence"
	"github.com/manpreetbhatti/sketchroom/internal/room"
	"github.com/manpreetbhatti/sketchroom/internal/ws"
)

func main() {
	cfg := config.Load()

	store := room.NewStore(cfg.Retention)
	hub := ws.NewHub(store, identity.NewGenerator(), cfg.WebSocket)

	var (
		database  *db.Database
		recorder  *activity.Recorder
		compactor *compaction.Service
		mirror    *presence.Mirror
		directory api.Directory
	)

	if cfg.Ledger.Enabled {
		var err error
		database, err = db.New(cfg.Ledger.Path)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}

		// Rooms never outlive the process
		if n, err := database.CloseDanglingSessions(time.Now()); err != nil {
			log.Printf("⚠️ Failed to close dangling sessions: %v", err)
		} else if n > 0 {
			log.Printf("📁 Closed %d sessions left open by a previous run", n)
		}

		recorder = activity.New(database, 0)
		hub.AddObserver(recorder)
		recorder.Start()

		compactor = compaction.New(database, compaction.Config{
			Interval:    cfg.Compaction.Interval,
			MaxAge:      cfg.Compaction.MaxAge,
			KeepPerRoom: cfg.Compaction.KeepPerRoom,
		})
		compactor.Start()
	}

	if cfg.Redis.Addr != "" {
		client, err := presence.Connect(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Printf("⚠️ Presence mirror disabled, Redis unreachable: %v", err)
		} else {
			defer client.Close()

			instance := cfg.Redis.InstanceID
			if instance == "" {
				instance = uuid.NewString()
			}

			mirror = presence.NewMirror(client, instance, 0)
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			if err := mirror.Reset(ctx); err != nil {
				log.Printf("⚠️ Failed to reset presence directory: %v", err)
			}
			cancel()

			hub.AddObserver(mirror)
			mirror.Start()
			directory = mirror
			log.Printf("📡 Presence instance: %s", instance)
		}
	}

	go hub.Run()

	apiHandler := api.New(hub, database, directory)

	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, w, r)
	})

	mux.HandleFunc("/health", apiHandler.HealthHandler)
	mux.HandleFunc("/api/stats", apiHandler.StatsHandler)
	mux.HandleFunc("/api/rooms", apiHandler.RoomsRouter)
	mux.HandleFunc("/api/rooms/", apiHandler.RoomsRouter)
	mux.HandleFunc("/api/sessions/", apiHandler.SessionHandler)
	mux.HandleFunc("/api/cluster/rooms", apiHandler.ClusterRoomsHandler)

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           corsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("🎨 Sketchroom server starting on %s", cfg.Addr())
	if database != nil {
		log.Printf("📁 Ledger: %s", cfg.Ledger.Path)
	}
	log.Println("Endpoints:")
	log.Println("  - WebSocket: /ws")
	log.Println("  - Health:    GET /health")
	log.Println("  - Stats:     GET /api/stats")
	log.Println("  - Rooms:     GET /api/rooms")
	log.Println("  - Room:      GET /api/rooms/{id}")
	log.Println("  - History:   GET /api/rooms/{id}/history")
	log.Println("  - Session:   GET /api/sessions/{id}")
	log.Println("  - Cluster:   GET /api/cluster/rooms")

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.Printf("Received %v, shutting down server...", sig)
	case err := <-serverErr:
		log.Printf("ListenAndServe: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}

	// Sessions still open here are closed by CloseDanglingSessions on the next boot
	hub.Stop()

	if compactor != nil {
		compactor.Stop()
	}
	if recorder != nil {
		recorder.Stop()
	}
	if mirror != nil {
		mirror.Stop()
	}
	if database != nil {
		database.Close()
	}

	log.Println("👋 Server stopped")
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

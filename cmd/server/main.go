package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/doodledash/server/internal/config"
	"github.com/doodledash/server/internal/engine"
	"github.com/doodledash/server/internal/handlers"
	"github.com/doodledash/server/internal/housekeeper"
	"github.com/doodledash/server/internal/middleware"
	"github.com/doodledash/server/internal/registry"
	"github.com/doodledash/server/internal/store"
	"github.com/doodledash/server/internal/transport"
	"github.com/doodledash/server/internal/words"
)

func main() {
	cfg, err := config.LoadConfig("configs/config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	catalogue := words.NewCatalogue()
	for theme, path := range cfg.WordBank.ThemeFiles {
		if err := catalogue.LoadTheme(theme, path); err != nil {
			log.Fatalf("failed to load word theme %q: %v", theme, err)
		}
	}

	st := mustOpenStore(cfg)
	defer st.Close()

	hub := transport.NewHub()
	reg := registry.New(cfg, catalogue, st, hub, engine.AllowAllJoins)
	router := transport.NewRouter(hub, reg, cfg)

	hk := housekeeper.New(st, cfg)
	go hk.Run()

	httpRouter := mux.NewRouter()
	setupRoutes(httpRouter, hub, router, reg, cfg)

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      middleware.ApplyMiddleware(httpRouter, cfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Printf("server: listening on %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server: %v", err)
		}
	}()

	gracefulShutdown(srv, hub, hk)
}

func mustOpenStore(cfg *config.Config) store.Store {
	if cfg.Store.Driver != "postgres" {
		log.Println("store: using in-memory store (no durability across restarts)")
		return store.NewMemoryStore()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pg, err := store.NewPostgresStore(ctx, cfg.Store.DSN)
	if err != nil {
		log.Fatalf("store: connect postgres: %v", err)
	}
	return pg
}

func setupRoutes(r *mux.Router, hub *transport.Hub, router *transport.Router, reg *registry.Registry, cfg *config.Config) {
	r.HandleFunc("/health", handlers.Health).Methods("GET")
	r.HandleFunc("/ws", transport.ServeWS(hub, router, cfg)).Methods("GET")

	roomRouter := r.PathPrefix("/api/rooms").Subrouter()
	roomRouter.HandleFunc("/public", handlers.GetPublicRooms(reg)).Methods("GET")
	roomRouter.HandleFunc("/{roomID}", handlers.GetRoomDetails(reg)).Methods("GET")
}

func gracefulShutdown(srv *http.Server, hub *transport.Hub, hk *housekeeper.Housekeeper) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("server: shutting down")

	hub.ShutdownAll("server is restarting, please reconnect shortly")
	hk.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("server: shutdown error: %v", err)
	}
	log.Println("server: stopped")
}

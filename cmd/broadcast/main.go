// Command broadcast serves the WebSocket fan-out surface: it
// subscribes to Redis for committed projection deltas and relays them
// to every connected client watching that item. Grounded on the
// broadcast service's cmd/main.go wiring shape.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/bloomingFlower/auction-service/internal/config"
	"github.com/bloomingFlower/auction-service/internal/logging"
	"github.com/bloomingFlower/auction-service/internal/realtime"
)

func main() {
	log := logging.New()
	log.Info("starting broadcast server")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     config.GetEnv("REDIS_ADDR", "localhost:6379"),
		Password: config.GetEnv("REDIS_PASSWORD", ""),
		DB:       config.GetEnvInt("REDIS_DB", 0),
	})
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := realtime.NewManager(log)
	go manager.Run()

	subscriber := realtime.NewSubscriber(redisClient, log)
	subscriber.SubscribeAll(ctx)
	defer subscriber.Close()

	go func() {
		log.Info("broadcast pumping redis updates to websocket clients")
		if err := realtime.Pump(ctx, subscriber, manager); err != nil && ctx.Err() == nil {
			log.Error("pump stopped with error", "error", err)
		}
	}()

	handler := realtime.NewHandler(manager, log)
	router := mux.NewRouter()
	handler.Register(router)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods("GET")

	addr := config.GetEnv("BROADCAST_ADDR", ":8081")
	server := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("broadcast server listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down broadcast server")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	log.Info("broadcast server stopped gracefully")
}

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"pairgogo/backend/internal/api/handler"
	"pairgogo/backend/internal/chathub"
	"pairgogo/backend/internal/games"
	"pairgogo/backend/internal/models"
	"pairgogo/backend/internal/presence"
	"pairgogo/backend/internal/session"
	"pairgogo/backend/internal/storage"
	"pairgogo/backend/internal/store"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setupDependencies() (*gorm.DB, *redis.Client) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		env("DB_HOST", "localhost"),
		env("DB_USER", "user"),
		env("DB_PASSWORD", "password"),
		env("DB_NAME", "pairgogodb"),
		env("DB_PORT", "5432"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     env("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.ChatHistory{},
		&models.SessionRecord{},
		&models.Report{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting PairGoGo Backend...")

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	db, rdb := setupDependencies()
	storageSvc := storage.NewStorageService(db, rdb)
	docStore := store.NewRedis(rdb)
	sessions := session.NewService(docStore, storageSvc)
	gameSet := games.NewSet(docStore)
	pres := presence.NewService(rdb)

	hub := chathub.NewManagerService(docStore, sessions, gameSet, storageSvc, pres)
	go hub.Run()

	r := gin.Default()
	h := handler.NewHandler(hub, storageSvc, sessions)

	r.GET("/health", h.Health)
	r.GET("/anonid", h.GetAnonID)
	r.GET("/ws", h.ServeWebSocket)
	r.GET("/history/:session_id", h.ChatHistory)
	r.POST("/report", h.Report)

	server := &http.Server{
		Addr:           ":" + env("PORT", "8080"),
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}

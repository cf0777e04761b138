package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"pairgogo/backend/internal/config"
	"pairgogo/backend/internal/storage"
)

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: Error loading .env file")
	}

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		env("DB_HOST", "localhost"),
		env("DB_USER", "user"),
		env("DB_PASSWORD", "password"),
		env("DB_NAME", "pairgogodb"),
		env("DB_PORT", "5432"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     env("REDIS_ADDR", "localhost:6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	storageSvc := storage.NewStorageService(db, rdb)

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <ban|unban|sessions> [args]")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "ban":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin ban <user_id> [duration_in_hours]")
			os.Exit(1)
		}
		userID := os.Args[2]
		duration := config.BanDuration
		if len(os.Args) > 3 {
			hours, err := strconv.Atoi(os.Args[3])
			if err != nil {
				fmt.Println("Invalid duration. Please provide an integer.")
				os.Exit(1)
			}
			duration = time.Duration(hours) * time.Hour
		}
		if err := storageSvc.BanUser(userID, duration); err != nil {
			log.Fatalf("Error banning user: %v", err)
		}
		fmt.Printf("User %s has been banned for %s.\n", userID, duration)

	case "unban":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin unban <user_id>")
			os.Exit(1)
		}
		userID := os.Args[2]
		if err := unbanUser(storageSvc, rdb, userID); err != nil {
			log.Fatalf("Error unbanning user: %v", err)
		}
		fmt.Printf("User %s has been unbanned.\n", userID)

	case "sessions":
		records, err := storageSvc.ActiveSessionRecords()
		if err != nil {
			log.Fatalf("Error listing sessions: %v", err)
		}
		if len(records) == 0 {
			fmt.Println("No active sessions.")
			return
		}
		for _, rec := range records {
			fmt.Printf("%s  %s <-> %s  kind=%s  started=%s\n",
				rec.SessionID, rec.User1ID, rec.User2ID, rec.Kind,
				time.Unix(rec.StartedAt, 0).Format(time.RFC3339))
		}

	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

func unbanUser(s storage.Storage, rdb *redis.Client, userID string) error {
	if err := rdb.Del(context.Background(), "ban:"+userID).Err(); err != nil {
		return err
	}
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	user.IsBanned = false
	user.BanEndTime = 0
	return s.UpdateUser(user)
}

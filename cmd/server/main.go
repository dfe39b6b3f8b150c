package main

import (
	"context"
	"log"
	"time"

	"farmer-payments-backend/internal/config"
	"farmer-payments-backend/internal/models"
	"farmer-payments-backend/internal/routes"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on system env")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := config.InitDB(cfg)
	if err != nil {
		log.Fatal(err)
	}

	if err := db.AutoMigrate(
		&models.Batch{},
		&models.LineItem{},
		&models.SettlementRecord{},
		&models.ActivityEvent{},
	); err != nil {
		log.Fatal(err)
	}

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	sweeper := routes.RegisterRoutes(r, db, cfg)

	// Resume batches left in processing by a previous crash.
	go sweeper.Run(context.Background())

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"fmt"
	"os"

	"webshop/internal/config"
	"webshop/internal/db"
	"webshop/internal/logger"
	"webshop/internal/seed"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString, log)
	if err != nil {
		log.Fatal("connect db", "error", err)
	}
	defer pool.Close()

	res, err := seed.Apply(ctx, pool, log)
	if err != nil {
		log.Fatal("seed apply", "error", err)
	}

	fmt.Printf("Seeded %d products, %d new users (%d already present)\n", res.Products, res.UsersCreated, res.UsersSkipped)
	fmt.Println("Admin: admin@webshop.com / admin123")
	fmt.Println("User:  john@example.com / password123")
}

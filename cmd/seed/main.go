package main

import (
	"flag"
	"log"

	"resto-pos/config"
	"resto-pos/internal/database"
	"resto-pos/internal/database/seed"
)

func main() {
	fixturePath := flag.String("fixture", "", "YAML fixture to load instead of the built-in menu")
	flag.Parse()

	cfg := config.LoadConfig()

	db, err := database.NewConnection(cfg.DB.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to db: %v", err)
	}

	if err := database.MigratePOSDB(db); err != nil {
		log.Fatalf("Failed to migrate POS database: %v", err)
	}

	fx, err := seed.Default()
	if *fixturePath != "" {
		fx, err = seed.Load(*fixturePath)
	}
	if err != nil {
		log.Fatalf("Failed to load fixture: %v", err)
	}

	summary, err := seed.Apply(db, fx)
	if err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	log.Printf("Seeded %d categories, %d inventory items, %d products, %d recipe lines, %d tables",
		summary.Categories, summary.Items, summary.Products, summary.Ingredients, summary.Tables)
}

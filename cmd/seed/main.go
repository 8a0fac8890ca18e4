// seed inserts a few auto-refresh profiles into the local dev database so
// the refresher has something to collect. Run: go run ./cmd/seed
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type profileSpec struct {
	id       string
	username string
	name     string
	refresh  bool
}

var profiles = []profileSpec{
	{"44196397", "elonmusk", "Elon Musk", true},
	{"783214", "Twitter", "Twitter", true},
	{"12", "jack", "jack", false},
}

func main() {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	for _, p := range profiles {
		_, err := pool.Exec(ctx, `
			INSERT INTO profiles (id, username, name, auto_refresh)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET auto_refresh = EXCLUDED.auto_refresh`,
			p.id, p.username, p.name, p.refresh)
		if err != nil {
			log.Fatalf("seed profile %s: %v", p.username, err)
		}
		fmt.Printf("seeded %s (auto_refresh=%v)\n", p.username, p.refresh)
	}
}

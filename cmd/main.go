package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"pavssv/api"
	"pavssv/internal/appmanager"
	"pavssv/internal/jobs"
	"pavssv/internal/store"
)

// InitDB loads DB config from env vars
func InitDB() (*sql.DB, error) {
	user := os.Getenv("DB_USER")
	pass := os.Getenv("DB_PASSWORD")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")
	name := os.Getenv("DB_NAME")
	connStr := fmt.Sprintf(
		"user=%s password=%s host=%s port=%s dbname=%s sslmode=disable",
		user, pass, host, port, name,
	)
	return sql.Open("postgres", connStr)
}

func pgxConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_HOST"), os.Getenv("DB_PORT"), os.Getenv("DB_NAME"),
	)
}

// openStore picks the job store driver. Postgres is the default;
// PAVSSV_STORE_DRIVER=memory runs without a database (local dev, tests).
func openStore(ctx context.Context) (store.Store, error) {
	if os.Getenv("PAVSSV_STORE_DRIVER") == "memory" {
		return store.NewMemory(), nil
	}
	pool, err := pgxpool.New(ctx, pgxConnString())
	if err != nil {
		return nil, err
	}
	appmanager.SetPgxPool(pool)
	pg := store.NewPostgres(pool)
	if err := pg.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return pg, nil
}

func main() {
	// Load .env for local dev (ignored on Render)
	_ = godotenv.Load("../.env")

	ctx := context.Background()

	if os.Getenv("PAVSSV_STORE_DRIVER") != "memory" {
		db, err := InitDB()
		if err != nil {
			log.Fatal("failed to connect to DB:", err)
		}
		appmanager.SetDB(db)
		api.SetHealthDB(db)
	}

	st, err := openStore(ctx)
	if err != nil {
		log.Fatal("failed to open job store:", err)
	}

	blob, err := store.OpenBlob(ctx)
	if err != nil {
		log.Fatal("failed to open blob store:", err)
	}

	appmanager.SetStores(st, blob)

	manager := appmanager.NewAppManager()

	// Load service configs from YAML
	servicesCfg, err := appmanager.LoadServiceSequence("../services.yaml")
	if err != nil {
		log.Fatal("failed to load service sequence:", err)
	}

	// Automatically register all services
	manager.AutoRegisterServices(servicesCfg)

	// Start all services
	if err := manager.StartAll(); err != nil {
		log.Fatal("failed to start:", err)
	}

	// Sweep jobs abandoned by a crashed worker back to FAILED
	recoveryCron, err := jobs.RunRecoveryScheduler(jobs.NewDefaultRecoveryConfig(), st)
	if err != nil {
		log.Fatal("failed to start recovery scheduler:", err)
	}

	// Graceful shutdown handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	recoveryCron.Stop()

	// Stop all services
	if err := manager.StopAll(); err != nil {
		log.Fatal("failed to stop:", err)
	}
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"orchardtrace/infrastructure/audit"
	httpserver "orchardtrace/infrastructure/http"
	"orchardtrace/infrastructure/sqlite"
)

func main() {
	_ = godotenv.Load()

	addr := getenv("APP_ADDR", ":8080")
	dbPath := getenv("SQLITE_PATH", "orchardtrace.db")
	baseURL := getenv("TRACE_BASE_URL", "http://localhost:8080")

	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := sqlite.ApplyEmbeddedMigrations(context.Background(), db); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	auditSvc := audit.NewService()
	server := httpserver.NewServer(addr, db, auditSvc, baseURL)
	if err := server.Start(); err != nil {
		log.Fatalf("start server: %v", err)
	}
	log.Printf("orchardtrace listening on %s", addr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	if err := server.Stop(); err != nil {
		log.Printf("graceful shutdown error: %v", err)
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

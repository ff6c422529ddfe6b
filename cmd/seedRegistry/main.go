// seedRegistry loads chemical rules into the registry from a CSV file
// with columns: name, active_ingredient, phi_days, banned, target_market.
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"orchardtrace/infrastructure/audit"
	"orchardtrace/infrastructure/sqlite"
	"orchardtrace/registry"
)

func main() {
	csvPath := getenv("REGISTRY_CSV", "chemical_rules.csv")
	dbPath := getenv("SQLITE_PATH", "orchardtrace.db")
	actorID, err := strconv.ParseInt(getenv("ACTOR_ID", "1"), 10, 64)
	if err != nil {
		log.Fatalf("invalid ACTOR_ID: %v", err)
	}

	db, err := sqlite.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if err := sqlite.ApplyEmbeddedMigrations(context.Background(), db); err != nil {
		log.Fatalf("apply migrations: %v", err)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		log.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	rules, err := parseRulesCSV(f)
	if err != nil {
		log.Fatalf("parse csv: %v", err)
	}

	auditSvc := audit.NewService()
	for _, rule := range rules {
		if _, err := registry.UpsertRule(context.Background(), db, auditSvc, actorID, rule); err != nil {
			log.Fatalf("seed rule %s: %v", rule.Name, err)
		}
	}

	fmt.Printf("seeded %d chemical rules from %s\n", len(rules), csvPath)
}

// parseRulesCSV reads rule rows, skipping an optional header line.
func parseRulesCSV(r io.Reader) ([]registry.RuleInput, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	// Rows may omit the trailing banned/target_market columns.
	reader.FieldsPerRecord = -1

	rules := make([]registry.RuleInput, 0)
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(record) < 3 {
			return nil, fmt.Errorf("line %d: expected at least 3 columns, got %d", line, len(record))
		}
		if line == 1 && strings.EqualFold(strings.TrimSpace(record[0]), "name") {
			continue
		}

		phiDays, err := strconv.Atoi(strings.TrimSpace(record[2]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid phi_days %q", line, record[2])
		}

		rule := registry.RuleInput{
			Name:             strings.TrimSpace(record[0]),
			ActiveIngredient: strings.TrimSpace(record[1]),
			PHIDays:          phiDays,
		}
		if len(record) > 3 {
			rule.Banned = parseBool(record[3])
		}
		if len(record) > 4 {
			rule.TargetMarket = strings.TrimSpace(record[4])
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "banned":
		return true
	default:
		return false
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

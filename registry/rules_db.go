package registry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"orchardtrace/faults"
	"orchardtrace/infrastructure/audit"
	"orchardtrace/infrastructure/sqlite"
	"orchardtrace/models"
)

// GetRule returns the rule currently in effect for the named chemical.
// Name matching is case-insensitive on the trimmed name.
func GetRule(ctx context.Context, db *sqlite.DB, name string) (models.ChemicalRule, error) {
	var rule models.ChemicalRule
	name = strings.TrimSpace(name)
	if name == "" {
		return rule, faults.Validation("chemical name is required")
	}
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&rule).Where("name = ? COLLATE NOCASE", name).Limit(1).Scan(ctx)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return rule, faults.NotFound("chemical rule %q", name)
	}
	return rule, err
}

// GetRuleTx is the in-transaction variant used by the evaluator when a
// mutating operation needs safety verdicts inside its own write tx.
func GetRuleTx(ctx context.Context, tx bun.Tx, name string) (models.ChemicalRule, error) {
	var rule models.ChemicalRule
	err := tx.NewSelect().Model(&rule).Where("name = ? COLLATE NOCASE", strings.TrimSpace(name)).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return rule, faults.NotFound("chemical rule %q", name)
	}
	return rule, err
}

// ListRules returns all rules ordered by name.
func ListRules(ctx context.Context, db *sqlite.DB) ([]models.ChemicalRule, error) {
	rules := make([]models.ChemicalRule, 0)
	err := db.WithReadTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		return tx.NewSelect().Model(&rules).OrderExpr("name ASC").Scan(ctx)
	})
	return rules, err
}

// UpsertRule creates or replaces the rule for a chemical. The stored
// value is the one every future PHI evaluation reads.
func UpsertRule(ctx context.Context, db *sqlite.DB, auditSvc *audit.Service, actorID int64, input RuleInput) (models.ChemicalRule, error) {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return models.ChemicalRule{}, faults.Validation("chemical name is required")
	}
	if input.PHIDays < 0 {
		return models.ChemicalRule{}, faults.Validation("phiDays must not be negative")
	}

	var rule models.ChemicalRule
	err := db.WithWriteTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		var existing models.ChemicalRule
		err := tx.NewSelect().Model(&existing).Where("name = ? COLLATE NOCASE", input.Name).Limit(1).Scan(ctx)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return err
		}

		if err == nil {
			before := existing
			existing.ActiveIngredient = input.ActiveIngredient
			existing.PHIDays = input.PHIDays
			existing.Banned = input.Banned
			existing.TargetMarket = input.TargetMarket
			existing.UpdatedAt = time.Now()
			if _, err := tx.NewUpdate().Model(&existing).WherePK().Exec(ctx); err != nil {
				return err
			}
			rule = existing
			if auditSvc != nil {
				return auditSvc.Write(ctx, tx, actorID, "registry.update", "chemical_rules", existing.Name, before, existing)
			}
			return nil
		}

		rule = models.ChemicalRule{
			Name:             input.Name,
			ActiveIngredient: input.ActiveIngredient,
			PHIDays:          input.PHIDays,
			Banned:           input.Banned,
			TargetMarket:     input.TargetMarket,
		}
		if _, err := tx.NewInsert().Model(&rule).Exec(ctx); err != nil {
			return err
		}
		if auditSvc != nil {
			return auditSvc.Write(ctx, tx, actorID, "registry.create", "chemical_rules", rule.Name, nil, rule)
		}
		return nil
	})
	return rule, err
}

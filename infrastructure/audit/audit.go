// Package audit writes immutable before/after records for every state
// transition, inside the caller's write transaction so an audit row
// never outlives a rolled-back change.
package audit

import (
	"context"
	"encoding/json"

	"github.com/uptrace/bun"

	"orchardtrace/models"
)

// Service writes audit records inside the caller transaction.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// Write records one transition. A nil before or after marshals to an
// empty column rather than the string "null".
func (s *Service) Write(ctx context.Context, tx bun.Tx, actorID int64, action, entityType, entityID string, before, after any) error {
	beforeJSON, err := marshal(before)
	if err != nil {
		return err
	}
	afterJSON, err := marshal(after)
	if err != nil {
		return err
	}
	entry := &models.AuditLog{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		BeforeJSON: beforeJSON,
		AfterJSON:  afterJSON,
	}
	_, err = tx.NewInsert().Model(entry).Exec(ctx)
	return err
}

func marshal(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

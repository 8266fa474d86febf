// Package store provides the storage interface and implementations for the
// WagerProof control plane. The in-memory implementation backs local dev and
// tests; it enforces the same uniqueness and conditional-update semantics a
// managed database would (unique (agent, slate date) pick sets, grade-once
// compare-and-set), so orchestrator code behaves identically against either.
package store

import (
	"context"

	"github.com/wagerproof/wagerproof/pkg/models"
)

// Store is the primary storage interface for the control plane.
// All handler and orchestrator code depends on this interface.
type Store interface {
	AccountStore
	AgentStore
	GameStore
	PickStore

	// Ping checks if the backing store is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the store.
	Close() error
}

// ── Account Store ────────────────────────────────────────────

type AccountStore interface {
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	GetAccountByToken(ctx context.Context, token string) (*models.Account, error)
	CreateAccount(ctx context.Context, account *models.Account) error
	UpdateAccount(ctx context.Context, account *models.Account) error
}

// ── Agent Store ──────────────────────────────────────────────

type AgentStore interface {
	GetAgent(ctx context.Context, id string) (*models.AgentProfile, error)
	ListAgentsByOwner(ctx context.Context, ownerID string) ([]models.AgentProfile, error)
	ListPublicAgents(ctx context.Context, sport models.Sport) ([]models.AgentProfile, error)
	CreateAgent(ctx context.Context, agent *models.AgentProfile) error
	UpdateAgent(ctx context.Context, agent *models.AgentProfile) error

	// SoftDeleteAgent marks the agent deleted without removing history.
	SoftDeleteAgent(ctx context.Context, id string) error

	// CountAgents returns (active, total) for an owner. Total includes
	// soft-deleted agents — lifetime creations count against the pro cap.
	CountAgents(ctx context.Context, ownerID string) (active, total int, err error)
}

// ── Game Store ───────────────────────────────────────────────

type GameStore interface {
	GetGame(ctx context.Context, id string) (*models.Game, error)
	ListGames(ctx context.Context, sport models.Sport, slateDate string) ([]models.Game, error)
	UpsertGame(ctx context.Context, game *models.Game) error
}

// ── Pick Store ───────────────────────────────────────────────

type PickStore interface {
	// GetPickSet returns the pick set for (agent, slate date), or ErrNotFound.
	GetPickSet(ctx context.Context, agentID, slateDate string) (*models.PickSet, error)

	// CreatePickSet persists a pick set atomically. Returns ErrConflict if a
	// set already exists for the same (agent, slate date).
	CreatePickSet(ctx context.Context, set *models.PickSet) error

	// DeletePickSet removes a pick set and its picks. Used only by the
	// admin force-regenerate path.
	DeletePickSet(ctx context.Context, agentID, slateDate string) error

	// ListPicksByAgent returns all persisted picks for an agent, newest
	// first. slateDate filters to one slate when non-empty.
	ListPicksByAgent(ctx context.Context, agentID, slateDate string) ([]models.AgentPick, error)

	// ListPendingPicks returns every pick still awaiting grading.
	ListPendingPicks(ctx context.Context) ([]models.AgentPick, error)

	// GradePick transitions a pick from pending to a terminal outcome.
	// The update is conditional on the current outcome being pending:
	// returns (false, nil) if the pick is already terminal, so repeated
	// grading sweeps are no-ops rather than double-counts.
	GradePick(ctx context.Context, pickID string, outcome models.Outcome) (bool, error)

	// CountOutcomes returns the win/loss/push record for an agent.
	CountOutcomes(ctx context.Context, agentID string) (wins, losses, pushes int, err error)
}

// ── Errors ──────────────────────────────────────────────────

// ErrNotFound is returned when a requested entity does not exist.
type ErrNotFound struct {
	Entity string
	Key    string
}

func (e *ErrNotFound) Error() string {
	return e.Entity + " not found: " + e.Key
}

// ErrConflict is returned when an insert violates a uniqueness constraint
// (one pick set per (agent, slate date)).
type ErrConflict struct {
	Entity string
	Key    string
}

func (e *ErrConflict) Error() string {
	return e.Entity + " already exists: " + e.Key
}

// Package entitlement implements the plan-tier predicates that gate agent
// creation and pick visibility. Every function is pure: callers pass counts
// and tier explicitly (via Context) and re-evaluate on any change — nothing
// here caches or reads ambient state.
package entitlement

import "github.com/wagerproof/wagerproof/pkg/models"

// Plan limits.
const (
	FreeMaxActive = 1
	ProMaxActive  = 10
	ProMaxTotal   = 30

	// Free accounts see only a fixed leaderboard band.
	FreeVisibleRankMin = 6
	FreeVisibleRankMax = 10
)

// Context carries the inputs for an entitlement decision. It is built by
// the caller from server-verified account state and passed in explicitly.
type Context struct {
	Tier         models.Tier
	ActiveAgents int
	TotalAgents  int
}

// CanCreateAnotherAgent reports whether an account may create one more
// agent. Admin is unlimited; pro is bounded by two independent caps
// (active and lifetime total); free gets a single active agent.
func CanCreateAnotherAgent(activeCount, totalCount int, tier models.Tier) bool {
	switch tier {
	case models.TierAdmin:
		return true
	case models.TierPro:
		return activeCount < ProMaxActive && totalCount < ProMaxTotal
	default:
		return activeCount < FreeMaxActive
	}
}

// CanCreate is CanCreateAnotherAgent over a Context.
func (c Context) CanCreate() bool {
	return CanCreateAnotherAgent(c.ActiveAgents, c.TotalAgents, c.Tier)
}

// CanViewAgentPicks reports whether the tier may view picks from agents it
// does not own.
func CanViewAgentPicks(tier models.Tier) bool {
	return tier == models.TierPro || tier == models.TierAdmin
}

// CanCreatePublicAgent reports whether the tier may publish an agent to
// the leaderboard.
func CanCreatePublicAgent(tier models.Tier) bool {
	return tier == models.TierPro || tier == models.TierAdmin
}

// CanViewLeaderboardRank reports whether the tier may see the identity
// behind a leaderboard rank. Free sees only ranks 6–10; pro and admin see
// every rank; rank < 1 is never visible.
func CanViewLeaderboardRank(tier models.Tier, rank int) bool {
	if rank < 1 {
		return false
	}
	switch tier {
	case models.TierPro, models.TierAdmin:
		return true
	default:
		return rank >= FreeVisibleRankMin && rank <= FreeVisibleRankMax
	}
}

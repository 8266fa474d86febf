// Package grading resolves pending picks against final scores. The sweep
// is invoked by a cron schedule (and by an admin endpoint) with
// at-least-once semantics: every outcome write is a compare-and-set on
// pending, so duplicate or concurrent sweeps never double-grade a pick.
package grading

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/wagerproof/wagerproof/internal/clients/scores"
	"github.com/wagerproof/wagerproof/internal/store"
	"github.com/wagerproof/wagerproof/pkg/models"
)

// Stats summarizes one grading sweep.
type Stats struct {
	Examined int `json:"examined"`
	Graded   int `json:"graded"`
	NotFinal int `json:"not_final"`
	Skipped  int `json:"skipped"` // already terminal when the write landed
	Errors   int `json:"errors"`
}

// Grader sweeps pending picks and writes outcomes.
type Grader struct {
	store store.Store
	feed  scores.Client // nil = grade only from games already final in the store
}

// New creates a grader. feed may be nil.
func New(s store.Store, feed scores.Client) *Grader {
	return &Grader{store: s, feed: feed}
}

// ResolveOutcome grades one pick against a final game. Pure; the game
// must be final. Spread and total picks grade against the line captured
// on the pick at generation time, not the game's current line.
func ResolveOutcome(pick models.GeneratedPick, game models.Game) models.Outcome {
	switch pick.Market {
	case models.MarketMoneyline:
		if game.HomeScore == game.AwayScore {
			return models.OutcomePush
		}
		homeWon := game.HomeScore > game.AwayScore
		if (pick.Selection == models.SelectionHome) == homeWon {
			return models.OutcomeWin
		}
		return models.OutcomeLoss

	case models.MarketSpread:
		// Line is quoted from the home side: margin + line > 0 means the
		// home side covered.
		adjusted := float64(game.HomeScore-game.AwayScore) + pick.Line
		if adjusted == 0 {
			return models.OutcomePush
		}
		homeCovered := adjusted > 0
		if (pick.Selection == models.SelectionHome) == homeCovered {
			return models.OutcomeWin
		}
		return models.OutcomeLoss

	case models.MarketOverUnder:
		total := float64(game.HomeScore + game.AwayScore)
		if total == pick.Line {
			return models.OutcomePush
		}
		wentOver := total > pick.Line
		if (pick.Selection == models.SelectionOver) == wentOver {
			return models.OutcomeWin
		}
		return models.OutcomeLoss

	default:
		return models.OutcomePending
	}
}

// Sweep grades every pending pick whose game is final. Safe to invoke
// repeatedly and concurrently.
func (g *Grader) Sweep(ctx context.Context) (Stats, error) {
	var stats Stats

	pending, err := g.store.ListPendingPicks(ctx)
	if err != nil {
		return stats, fmt.Errorf("list pending picks: %w", err)
	}
	stats.Examined = len(pending)

	if g.feed != nil {
		g.refreshScores(ctx, pending)
	}

	for _, pick := range pending {
		game, err := g.store.GetGame(ctx, pick.Pick.GameID)
		if err != nil {
			var nf *store.ErrNotFound
			if errors.As(err, &nf) {
				stats.NotFinal++
				continue
			}
			stats.Errors++
			continue
		}
		if !game.Final() {
			stats.NotFinal++
			continue
		}

		outcome := ResolveOutcome(pick.Pick, *game)
		if outcome == models.OutcomePending {
			stats.Errors++
			continue
		}

		updated, err := g.store.GradePick(ctx, pick.ID, outcome)
		if err != nil {
			stats.Errors++
			log.Warn().Err(err).Str("pick", pick.ID).Msg("Grade write failed")
			continue
		}
		if !updated {
			// Another sweep got there first.
			stats.Skipped++
			continue
		}
		stats.Graded++
	}

	if stats.Graded > 0 || stats.Errors > 0 {
		log.Info().
			Int("examined", stats.Examined).
			Int("graded", stats.Graded).
			Int("not_final", stats.NotFinal).
			Int("skipped", stats.Skipped).
			Int("errors", stats.Errors).
			Msg("Grading sweep completed")
	}
	return stats, nil
}

// refreshScores pulls feed results for every distinct slate with pending
// picks and marks completed games final. Feed failures degrade to grading
// whatever the store already knows.
func (g *Grader) refreshScores(ctx context.Context, pending []models.AgentPick) {
	type slateKey struct {
		sport models.Sport
		date  string
	}
	slates := make(map[slateKey]bool)
	for _, p := range pending {
		slates[slateKey{p.Pick.Sport, p.SlateDate}] = true
	}

	for k := range slates {
		results, err := g.feed.FetchResults(ctx, k.sport, k.date)
		if err != nil {
			log.Warn().Err(err).Str("sport", string(k.sport)).Str("date", k.date).Msg("Scores feed fetch failed")
			continue
		}
		for _, r := range results {
			if !r.Final {
				continue
			}
			game, err := g.store.GetGame(ctx, r.GameID)
			if err != nil || game.Final() {
				continue
			}
			game.HomeScore = r.HomeScore
			game.AwayScore = r.AwayScore
			game.Status = models.GameFinal
			if err := g.store.UpsertGame(ctx, game); err != nil {
				log.Warn().Err(err).Str("game", r.GameID).Msg("Score update failed")
			}
		}
	}
}

package grading_test

import (
	"context"
	"testing"
	"time"

	"github.com/wagerproof/wagerproof/internal/clients/scores"
	"github.com/wagerproof/wagerproof/internal/grading"
	"github.com/wagerproof/wagerproof/internal/store"
	"github.com/wagerproof/wagerproof/pkg/models"
)

// ─── ResolveOutcome ─────────────────────────────────────────

func finalGame(home, away int) models.Game {
	return models.Game{
		ID: "g1", Sport: models.SportNBA, Status: models.GameFinal,
		HomeScore: home, AwayScore: away,
	}
}

func TestResolveOutcome_Moneyline(t *testing.T) {
	cases := []struct {
		selection  string
		home, away int
		want       models.Outcome
	}{
		{models.SelectionHome, 100, 95, models.OutcomeWin},
		{models.SelectionHome, 95, 100, models.OutcomeLoss},
		{models.SelectionAway, 95, 100, models.OutcomeWin},
		{models.SelectionAway, 100, 95, models.OutcomeLoss},
		{models.SelectionHome, 100, 100, models.OutcomePush},
	}
	for _, c := range cases {
		pick := models.GeneratedPick{Market: models.MarketMoneyline, Selection: c.selection}
		got := grading.ResolveOutcome(pick, finalGame(c.home, c.away))
		if got != c.want {
			t.Errorf("moneyline %s, %d-%d = %q, want %q", c.selection, c.home, c.away, got, c.want)
		}
	}
}

func TestResolveOutcome_Spread(t *testing.T) {
	cases := []struct {
		selection  string
		line       float64
		home, away int
		want       models.Outcome
	}{
		// home -3.5, wins by 5: covers.
		{models.SelectionHome, -3.5, 100, 95, models.OutcomeWin},
		// home -3.5, wins by 3: fails to cover.
		{models.SelectionHome, -3.5, 98, 95, models.OutcomeLoss},
		// margin exactly equal to an integer line: push.
		{models.SelectionHome, -5.0, 100, 95, models.OutcomePush},
		{models.SelectionAway, -5.0, 100, 95, models.OutcomePush},
		// away +7 (home line -7), home wins by 6: away covers.
		{models.SelectionAway, -7.0, 100, 94, models.OutcomeWin},
		// underdog home +2.5 loses by 2: covers.
		{models.SelectionHome, 2.5, 98, 100, models.OutcomeWin},
	}
	for _, c := range cases {
		pick := models.GeneratedPick{Market: models.MarketSpread, Selection: c.selection, Line: c.line}
		got := grading.ResolveOutcome(pick, finalGame(c.home, c.away))
		if got != c.want {
			t.Errorf("spread %s line %.1f, %d-%d = %q, want %q", c.selection, c.line, c.home, c.away, got, c.want)
		}
	}
}

func TestResolveOutcome_OverUnder(t *testing.T) {
	cases := []struct {
		selection  string
		line       float64
		home, away int
		want       models.Outcome
	}{
		{models.SelectionOver, 210.5, 110, 105, models.OutcomeWin},   // 215 > 210.5
		{models.SelectionUnder, 210.5, 110, 105, models.OutcomeLoss}, // 215 > 210.5
		{models.SelectionUnder, 220.5, 110, 105, models.OutcomeWin},
		{models.SelectionOver, 215.0, 110, 105, models.OutcomePush}, // exact total
	}
	for _, c := range cases {
		pick := models.GeneratedPick{Market: models.MarketOverUnder, Selection: c.selection, Line: c.line}
		got := grading.ResolveOutcome(pick, finalGame(c.home, c.away))
		if got != c.want {
			t.Errorf("total %s line %.1f, %d-%d = %q, want %q", c.selection, c.line, c.home, c.away, got, c.want)
		}
	}
}

// ─── Sweep ──────────────────────────────────────────────────

// seedPick persists one pending pick under its own agent, so each seeded
// pick gets its own (agent, date) set.
func seedPick(t *testing.T, s store.Store, gameID string, pick models.GeneratedPick) models.AgentPick {
	t.Helper()
	agentID := "agent-" + gameID + "-" + string(pick.Market)
	ap := models.AgentPick{
		ID: "pick-" + gameID + "-" + string(pick.Market), AgentID: agentID, SlateDate: "2026-01-15",
		Pick: pick, Outcome: models.OutcomePending, CreatedAt: time.Now().UTC(),
	}
	set := &models.PickSet{
		ID: "set-" + ap.ID, AgentID: agentID, SlateDate: "2026-01-15",
		Picks: []models.AgentPick{ap}, CreatedAt: time.Now().UTC(),
	}
	if err := s.CreatePickSet(context.Background(), set); err != nil {
		t.Fatalf("CreatePickSet() error = %v", err)
	}
	return ap
}

func TestSweep_GradesFinalGamesOnly(t *testing.T) {
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	s.UpsertGame(ctx, &models.Game{ID: "done", Sport: models.SportNBA, Status: models.GameFinal, HomeScore: 100, AwayScore: 95})
	s.UpsertGame(ctx, &models.Game{ID: "live", Sport: models.SportNBA, Status: models.GameLive})

	graded := seedPick(t, s, "done", models.GeneratedPick{GameID: "done", Sport: models.SportNBA, Market: models.MarketMoneyline, Selection: models.SelectionHome})
	waiting := seedPick(t, s, "live", models.GeneratedPick{GameID: "live", Sport: models.SportNBA, Market: models.MarketMoneyline, Selection: models.SelectionHome})

	stats, err := grading.New(s, nil).Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if stats.Graded != 1 || stats.NotFinal != 1 {
		t.Errorf("stats = %+v, want 1 graded / 1 not_final", stats)
	}

	picks, _ := s.ListPicksByAgent(ctx, graded.AgentID, "")
	if picks[0].Outcome != models.OutcomeWin {
		t.Errorf("graded outcome = %q, want win", picks[0].Outcome)
	}
	picks, _ = s.ListPicksByAgent(ctx, waiting.AgentID, "")
	if picks[0].Outcome != models.OutcomePending {
		t.Errorf("live-game pick outcome = %q, want pending", picks[0].Outcome)
	}
}

// Re-running the sweep must not re-grade: the second pass sees no pending
// picks for final games and changes nothing.
func TestSweep_Idempotent(t *testing.T) {
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	s.UpsertGame(ctx, &models.Game{ID: "done", Sport: models.SportNBA, Status: models.GameFinal, HomeScore: 90, AwayScore: 100})
	p := seedPick(t, s, "done", models.GeneratedPick{GameID: "done", Sport: models.SportNBA, Market: models.MarketMoneyline, Selection: models.SelectionHome})

	g := grading.New(s, nil)
	first, _ := g.Sweep(ctx)
	if first.Graded != 1 {
		t.Fatalf("first sweep graded = %d, want 1", first.Graded)
	}
	second, _ := g.Sweep(ctx)
	if second.Graded != 0 || second.Examined != 0 {
		t.Errorf("second sweep = %+v, want nothing to do", second)
	}

	picks, _ := s.ListPicksByAgent(ctx, p.AgentID, "")
	if picks[0].Outcome != models.OutcomeLoss {
		t.Errorf("outcome = %q, want loss", picks[0].Outcome)
	}
	if picks[0].GradedAt == nil {
		t.Error("GradedAt not set")
	}
}

// fakeFeed marks a configured game final.
type fakeFeed struct {
	results []scores.Result
}

func (f *fakeFeed) FetchResults(ctx context.Context, sport models.Sport, date string) ([]scores.Result, error) {
	return f.results, nil
}

func TestSweep_RefreshesScoresFromFeed(t *testing.T) {
	s := store.NewMemoryStore()
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	s.UpsertGame(ctx, &models.Game{ID: "g9", Sport: models.SportNFL, SlateDate: "2026-01-15", Status: models.GameLive})
	p := seedPick(t, s, "g9", models.GeneratedPick{GameID: "g9", Sport: models.SportNFL, Market: models.MarketOverUnder, Selection: models.SelectionOver, Line: 44.5})

	feed := &fakeFeed{results: []scores.Result{{GameID: "g9", HomeScore: 27, AwayScore: 24, Final: true}}}
	stats, err := grading.New(s, feed).Sweep(ctx)
	if err != nil {
		t.Fatalf("Sweep() error = %v", err)
	}
	if stats.Graded != 1 {
		t.Fatalf("graded = %d, want 1 (feed should finalize the game)", stats.Graded)
	}

	picks, _ := s.ListPicksByAgent(ctx, p.AgentID, "")
	if picks[0].Outcome != models.OutcomeWin {
		t.Errorf("outcome = %q, want win (51 > 44.5)", picks[0].Outcome)
	}
}

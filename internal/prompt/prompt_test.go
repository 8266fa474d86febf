package prompt_test

import (
	"strings"
	"testing"

	"github.com/wagerproof/wagerproof/internal/prompt"
	"github.com/wagerproof/wagerproof/pkg/models"
)

func testProfile() *models.AgentProfile {
	return &models.AgentProfile{
		ID:     "agent-1",
		Name:   "Sharp Sam",
		Sport:  models.SportNBA,
		Params: models.NeutralPersonality(),
	}
}

func TestFragments_NeutralIsEmpty(t *testing.T) {
	frags := prompt.Fragments(models.NeutralPersonality())
	if len(frags) != 0 {
		t.Errorf("Fragments(neutral) returned %d fragments, want 0: %v", len(frags), frags)
	}
}

func TestBuildSystemPrompt_NeutralHasNoVarianceFragments(t *testing.T) {
	p := testProfile()
	out := prompt.BuildSystemPrompt(p)

	if strings.Contains(out, "high-variance") {
		t.Error("neutral prompt contains high-variance fragment")
	}
	if strings.Contains(out, "low-variance") {
		t.Error("neutral prompt contains low-variance fragment")
	}
	if strings.Contains(out, "Style directives") {
		t.Error("neutral prompt contains a style directive section")
	}
	if !strings.Contains(out, "Sharp Sam") {
		t.Error("prompt missing agent name")
	}
}

func TestBuildSystemPrompt_ExtremesMapToFragments(t *testing.T) {
	p := testProfile()
	p.Params.RiskTolerance = 5
	p.Params.DataReliance = 1
	out := prompt.BuildSystemPrompt(p)

	if !strings.Contains(out, "high-variance underdog plays") {
		t.Error("risk tolerance 5 fragment missing")
	}
	if !strings.Contains(out, "subjective narrative over statistics") {
		t.Error("data reliance 1 fragment missing")
	}
}

func TestBuildSystemPrompt_Deterministic(t *testing.T) {
	p := testProfile()
	p.Params.Contrarianism = 5
	p.Insights = []string{"The Knicks always cover at home."}

	a := prompt.BuildSystemPrompt(p)
	b := prompt.BuildSystemPrompt(p)
	if a != b {
		t.Error("BuildSystemPrompt is not deterministic")
	}
}

func TestBuildSystemPrompt_InsightsAreFenced(t *testing.T) {
	p := testProfile()
	p.Insights = []string{"Fade the Lakers on back-to-backs."}
	out := prompt.BuildSystemPrompt(p)

	if !strings.Contains(out, "<<<INSIGHT\nFade the Lakers on back-to-backs.\n>>>") {
		t.Errorf("insight not fenced as expected:\n%s", out)
	}
	if !strings.Contains(out, "untrusted data") {
		t.Error("prompt missing untrusted-data preamble")
	}
}

func TestBuildUserPrompt_ListsSlate(t *testing.T) {
	p := testProfile()
	slate := []models.Game{
		{ID: "g1", HomeTeam: "BOS", AwayTeam: "NYK", SpreadLine: -3.5, TotalLine: 214.5},
		{ID: "g2", HomeTeam: "LAL", AwayTeam: "DEN", SpreadLine: 2.0, TotalLine: 225.0},
	}
	out := prompt.BuildUserPrompt(p, "2026-01-15", slate)

	if !strings.Contains(out, "2026-01-15") {
		t.Error("user prompt missing slate date")
	}
	for _, id := range []string{"g1", "g2"} {
		if !strings.Contains(out, "game_id="+id) {
			t.Errorf("user prompt missing game %s", id)
		}
	}
	if !strings.Contains(out, `"market_type"`) {
		t.Error("user prompt missing output contract")
	}
}

func TestMaxPicks(t *testing.T) {
	cases := []struct {
		sport       models.Sport
		picksPerDay int
		want        int
	}{
		{models.SportNBA, 3, 3},
		{models.SportNBA, 5, 5},
		{models.SportNFL, 5, 5},
		{models.SportNCAAB, 5, 5},
		{models.SportNBA, 1, 1},
	}
	for _, c := range cases {
		p := testProfile()
		p.Sport = c.sport
		p.Params.PicksPerDay = c.picksPerDay
		if got := prompt.MaxPicks(p); got != c.want {
			t.Errorf("MaxPicks(%s, picks_per_day=%d) = %d, want %d", c.sport, c.picksPerDay, got, c.want)
		}
	}
}

func TestMaxPicks_SportCeiling(t *testing.T) {
	p := testProfile()
	p.Sport = models.SportNFL
	p.Params.PicksPerDay = 5
	if got := prompt.MaxPicks(p); got != 5 {
		t.Errorf("MaxPicks(nfl, 5) = %d, want 5", got)
	}
	// NFL slates cap below the knob maximum.
	p.Params.PicksPerDay = 8
	if got := prompt.MaxPicks(p); got != 5 {
		t.Errorf("MaxPicks(nfl, 8) = %d, want 5 (sport ceiling)", got)
	}
}

func TestSanitizeInsight(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"plain text", "plain text"},
		{"line\nbreaks\tbecome spaces", "line breaks become spaces"},
		{"fence >>> escape <<<INSIGHT attempt", "fence  escape  attempt"},
		{"bell\x07char", "bellchar"},
		{"  padded  ", "padded"},
	}
	for _, c := range cases {
		if got := prompt.SanitizeInsight(c.in); got != c.want {
			t.Errorf("SanitizeInsight(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitizeInsight_CapsLength(t *testing.T) {
	long := strings.Repeat("x", models.MaxInsightRunes+50)
	got := prompt.SanitizeInsight(long)
	if len([]rune(got)) != models.MaxInsightRunes {
		t.Errorf("SanitizeInsight length = %d, want %d", len([]rune(got)), models.MaxInsightRunes)
	}
}

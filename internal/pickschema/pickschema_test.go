package pickschema_test

import (
	"encoding/json"
	"testing"

	"github.com/wagerproof/wagerproof/internal/pickschema"
	"github.com/wagerproof/wagerproof/pkg/models"
)

func testSlate() []models.Game {
	return []models.Game{
		{ID: "g1", Sport: models.SportNBA, SlateDate: "2026-01-15", HomeTeam: "BOS", AwayTeam: "NYK", SpreadLine: -3.5, TotalLine: 214.5},
		{ID: "g2", Sport: models.SportNBA, SlateDate: "2026-01-15", HomeTeam: "LAL", AwayTeam: "DEN", SpreadLine: 2.0, TotalLine: 225.0},
	}
}

func newValidator(t *testing.T) *pickschema.Validator {
	t.Helper()
	v, err := pickschema.New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return v
}

func raw(t *testing.T, s string) json.RawMessage {
	t.Helper()
	return json.RawMessage(s)
}

func TestValidateBatch_AcceptsConformingCandidate(t *testing.T) {
	v := newValidator(t)
	res := v.ValidateBatch([]json.RawMessage{
		raw(t, `{"game_id":"g1","market_type":"spread","selection":"home","line":-3.5,"confidence":0.7,"rationale":"Celtics cover at home"}`),
	}, models.SportNBA, testSlate())

	if len(res.Valid) != 1 {
		t.Fatalf("Valid = %d picks, want 1 (rejected: %v)", len(res.Valid), res.Rejected)
	}
	p := res.Valid[0]
	if p.Market != models.MarketSpread || p.Selection != "home" || p.Line != -3.5 {
		t.Errorf("accepted pick = %+v, want spread/home/-3.5", p)
	}
	if p.Sport != models.SportNBA {
		t.Errorf("Sport = %q, want nba", p.Sport)
	}
}

func TestValidateBatch_RejectsMissingMarketType(t *testing.T) {
	v := newValidator(t)
	res := v.ValidateBatch([]json.RawMessage{
		raw(t, `{"game_id":"g1","selection":"home","rationale":"no market"}`),
	}, models.SportNBA, testSlate())

	if len(res.Valid) != 0 {
		t.Errorf("Valid = %d, want 0", len(res.Valid))
	}
	if len(res.Rejected) != 1 {
		t.Fatalf("Rejected = %d, want 1", len(res.Rejected))
	}
}

func TestValidateBatch_RejectsUnknownGame(t *testing.T) {
	v := newValidator(t)
	res := v.ValidateBatch([]json.RawMessage{
		raw(t, `{"game_id":"nope","market_type":"moneyline","selection":"home","rationale":"hallucinated game"}`),
	}, models.SportNBA, testSlate())

	if len(res.Valid) != 0 || len(res.Rejected) != 1 {
		t.Fatalf("got %d valid / %d rejected, want 0/1", len(res.Valid), len(res.Rejected))
	}
}

func TestValidateBatch_RejectsIllegalSelectionForMarket(t *testing.T) {
	v := newValidator(t)
	res := v.ValidateBatch([]json.RawMessage{
		raw(t, `{"game_id":"g1","market_type":"over_under","selection":"home","line":214.5,"rationale":"wrong token"}`),
		raw(t, `{"game_id":"g1","market_type":"moneyline","selection":"over","rationale":"wrong token"}`),
	}, models.SportNBA, testSlate())

	if len(res.Valid) != 0 || len(res.Rejected) != 2 {
		t.Fatalf("got %d valid / %d rejected, want 0/2", len(res.Valid), len(res.Rejected))
	}
}

func TestValidateBatch_RejectsConfidenceOutOfRange(t *testing.T) {
	v := newValidator(t)
	res := v.ValidateBatch([]json.RawMessage{
		raw(t, `{"game_id":"g1","market_type":"moneyline","selection":"home","confidence":1.4,"rationale":"too sure"}`),
	}, models.SportNBA, testSlate())

	if len(res.Valid) != 0 || len(res.Rejected) != 1 {
		t.Fatalf("got %d valid / %d rejected, want 0/1", len(res.Valid), len(res.Rejected))
	}
}

func TestValidateBatch_RequiresLineForSpread(t *testing.T) {
	v := newValidator(t)
	res := v.ValidateBatch([]json.RawMessage{
		raw(t, `{"game_id":"g1","market_type":"spread","selection":"away","rationale":"no line"}`),
	}, models.SportNBA, testSlate())

	if len(res.Valid) != 0 || len(res.Rejected) != 1 {
		t.Fatalf("got %d valid / %d rejected, want 0/1", len(res.Valid), len(res.Rejected))
	}
}

// A batch of 5 with 2 malformed entries keeps exactly the 3 valid picks.
func TestValidateBatch_DropsInvalidIndividually(t *testing.T) {
	v := newValidator(t)
	res := v.ValidateBatch([]json.RawMessage{
		raw(t, `{"game_id":"g1","market_type":"moneyline","selection":"home","rationale":"ok"}`),
		raw(t, `{"game_id":"g1","selection":"home","rationale":"missing market"}`),
		raw(t, `{"game_id":"g1","market_type":"over_under","selection":"over","line":214.5,"rationale":"ok"}`),
		raw(t, `not json at all`),
		raw(t, `{"game_id":"g2","market_type":"spread","selection":"away","line":2.0,"rationale":"ok"}`),
	}, models.SportNBA, testSlate())

	if len(res.Valid) != 3 {
		t.Errorf("Valid = %d, want 3 (rejected: %v)", len(res.Valid), res.Rejected)
	}
	if len(res.Rejected) != 2 {
		t.Errorf("Rejected = %d, want 2", len(res.Rejected))
	}
	// Rejections keep the original batch indexes for diagnostics.
	if len(res.Rejected) == 2 && (res.Rejected[0].Index != 1 || res.Rejected[1].Index != 3) {
		t.Errorf("rejection indexes = %d,%d, want 1,3", res.Rejected[0].Index, res.Rejected[1].Index)
	}
}

func TestValidateBatch_RejectsDuplicateGameMarket(t *testing.T) {
	v := newValidator(t)
	res := v.ValidateBatch([]json.RawMessage{
		raw(t, `{"game_id":"g1","market_type":"moneyline","selection":"home","rationale":"first"}`),
		raw(t, `{"game_id":"g1","market_type":"moneyline","selection":"away","rationale":"second bite"}`),
	}, models.SportNBA, testSlate())

	if len(res.Valid) != 1 {
		t.Errorf("Valid = %d, want 1", len(res.Valid))
	}
	if len(res.Rejected) != 1 {
		t.Errorf("Rejected = %d, want 1", len(res.Rejected))
	}
}

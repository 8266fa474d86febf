// Package pickschema validates candidate picks returned by the external
// model before anything is persisted. Validation runs in two gates: a JSON
// Schema check for structural conformance, then semantic checks against the
// requested slate. A candidate that fails either gate is rejected whole —
// never partially accepted. Batches degrade per-candidate: malformed
// entries are dropped individually and the survivors keep their order.
package pickschema

import (
	"encoding/json"
	"fmt"

	"github.com/kaptinlin/jsonschema"

	"github.com/wagerproof/wagerproof/pkg/models"
)

// candidateSchema is the structural contract a raw candidate must meet
// before semantic checks run.
const candidateSchema = `{
	"type": "object",
	"required": ["game_id", "market_type", "selection", "rationale"],
	"properties": {
		"game_id":     {"type": "string", "minLength": 1},
		"market_type": {"enum": ["moneyline", "spread", "over_under"]},
		"selection":   {"enum": ["home", "away", "over", "under"]},
		"line":        {"type": "number"},
		"confidence":  {"type": "number", "minimum": 0, "maximum": 1},
		"rationale":   {"type": "string", "minLength": 1}
	}
}`

// candidate mirrors the model's output shape. Pointer fields distinguish
// absent from zero.
type candidate struct {
	GameID     string   `json:"game_id"`
	Market     string   `json:"market_type"`
	Selection  string   `json:"selection"`
	Line       *float64 `json:"line"`
	Confidence *float64 `json:"confidence"`
	Rationale  string   `json:"rationale"`
}

// Rejection records why one candidate in a batch was dropped.
type Rejection struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// BatchResult is the outcome of validating one generation response.
type BatchResult struct {
	Valid    []models.GeneratedPick
	Rejected []Rejection
}

// Validator checks candidate picks against the schema and a slate.
type Validator struct {
	schema *jsonschema.Schema
}

// New compiles the candidate schema.
func New() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile([]byte(candidateSchema))
	if err != nil {
		return nil, fmt.Errorf("compile candidate schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// ValidateBatch validates every raw candidate against the schema and the
// slate. Invalid entries are dropped individually; duplicates of an
// already-accepted (game, market) pair are rejected. The slate games must
// all belong to the sport being generated for.
func (v *Validator) ValidateBatch(raws []json.RawMessage, sport models.Sport, slate []models.Game) BatchResult {
	byID := make(map[string]models.Game, len(slate))
	for _, g := range slate {
		byID[g.ID] = g
	}

	var res BatchResult
	seen := make(map[string]bool) // game_id:market

	for i, raw := range raws {
		pick, err := v.validateOne(raw, sport, byID)
		if err != nil {
			res.Rejected = append(res.Rejected, Rejection{Index: i, Reason: err.Error()})
			continue
		}
		dupKey := pick.GameID + ":" + string(pick.Market)
		if seen[dupKey] {
			res.Rejected = append(res.Rejected, Rejection{Index: i, Reason: "duplicate pick for game and market"})
			continue
		}
		seen[dupKey] = true
		res.Valid = append(res.Valid, pick)
	}
	return res
}

// validateOne runs both gates on a single candidate.
func (v *Validator) validateOne(raw json.RawMessage, sport models.Sport, slate map[string]models.Game) (models.GeneratedPick, error) {
	var zero models.GeneratedPick

	// Gate 1: structure.
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return zero, fmt.Errorf("not valid JSON: %w", err)
	}
	if result := v.schema.Validate(generic); !result.IsValid() {
		return zero, fmt.Errorf("schema violation: %s", result.Error())
	}

	var c candidate
	if err := json.Unmarshal(raw, &c); err != nil {
		return zero, fmt.Errorf("decode candidate: %w", err)
	}

	// Gate 2: semantics.
	market := models.Market(c.Market)
	if !models.ValidSelection(market, c.Selection) {
		return zero, fmt.Errorf("selection %q is not legal for market %q", c.Selection, c.Market)
	}
	game, ok := slate[c.GameID]
	if !ok {
		return zero, fmt.Errorf("game %q is not on the requested slate", c.GameID)
	}
	if game.Sport != sport {
		return zero, fmt.Errorf("game %q belongs to sport %q, not %q", c.GameID, game.Sport, sport)
	}
	if market != models.MarketMoneyline && c.Line == nil {
		return zero, fmt.Errorf("market %q requires a line", c.Market)
	}

	pick := models.GeneratedPick{
		GameID:    c.GameID,
		Sport:     sport,
		Market:    market,
		Selection: c.Selection,
		Rationale: c.Rationale,
	}
	if c.Line != nil {
		pick.Line = *c.Line
	}
	if c.Confidence != nil {
		pick.Confidence = *c.Confidence
	}
	return pick, nil
}

// Package models defines the domain types shared across the WagerProof
// control plane: accounts and entitlement tiers, agent profiles and their
// personality knobs, generated picks with outcome state, games/slates, and
// the error taxonomy used at every service boundary.
package models

import (
	"errors"
	"fmt"
	"time"
)

// ── Sport ────────────────────────────────────────────────────

// Sport is the tagged union over supported leagues. All sport-specific
// behavior (slate density, prompt flavor) keys off this single type rather
// than per-sport type duplication.
type Sport string

const (
	SportNBA   Sport = "nba"
	SportNCAAB Sport = "ncaab"
	SportNFL   Sport = "nfl"
	SportCFB   Sport = "cfb"
)

// Valid returns true if the sport is a known league.
func (s Sport) Valid() bool {
	switch s {
	case SportNBA, SportNCAAB, SportNFL, SportCFB:
		return true
	default:
		return false
	}
}

// ── Entitlement Tier ─────────────────────────────────────────

// Tier is the derived entitlement classification. It is never stored;
// always recompute via TierFor from server-verified account flags.
type Tier string

const (
	TierFree  Tier = "free"
	TierPro   Tier = "pro"
	TierAdmin Tier = "admin"
)

// TierFor derives the entitlement tier from account flags.
// Admin wins over pro; everything else is free.
func TierFor(isAdmin, hasProAccess bool) Tier {
	switch {
	case isAdmin:
		return TierAdmin
	case hasProAccess:
		return TierPro
	default:
		return TierFree
	}
}

// ── Account & Identity ───────────────────────────────────────

// Account is a registered user. IsAdmin and HasProAccess are the only
// trust inputs for entitlement decisions; they live server-side and are
// resolved from the session token on every request.
type Account struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	IsAdmin      bool      `json:"is_admin"`
	HasProAccess bool      `json:"has_pro_access"`
	SessionToken string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// Identity is the authenticated caller attached to request context by the
// auth middleware. Handlers pass it (or values derived from it) explicitly
// into services — it is a parameter, never ambient state.
type Identity struct {
	AccountID    string `json:"account_id"`
	IsAdmin      bool   `json:"is_admin"`
	HasProAccess bool   `json:"has_pro_access"`
}

// Tier returns the derived entitlement tier for this identity.
func (id Identity) Tier() Tier {
	return TierFor(id.IsAdmin, id.HasProAccess)
}

// ── Personality Parameters ───────────────────────────────────

// Scale parameter bounds. A knob at NeutralScale contributes no prompt
// fragment.
const (
	ScaleMin     = 1
	ScaleMax     = 5
	NeutralScale = 3
)

// PersonalityParams is the fixed set of knobs that shape an agent's
// handicapping style. Every scale knob must be present and in [1,5]
// before prompt building; booleans are always valid.
type PersonalityParams struct {
	Aggressiveness int `json:"aggressiveness"`
	RiskTolerance  int `json:"risk_tolerance"`
	DataReliance   int `json:"data_reliance"`
	Contrarianism  int `json:"contrarianism"`
	HomeBias       int `json:"home_bias"`
	PicksPerDay    int `json:"picks_per_day"`

	FavorsUnderdogs bool `json:"favors_underdogs"`
	FadesPublic     bool `json:"fades_public"`
}

// NeutralPersonality returns params with every scale knob at the neutral
// midpoint and both toggles off.
func NeutralPersonality() PersonalityParams {
	return PersonalityParams{
		Aggressiveness: NeutralScale,
		RiskTolerance:  NeutralScale,
		DataReliance:   NeutralScale,
		Contrarianism:  NeutralScale,
		HomeBias:       NeutralScale,
		PicksPerDay:    NeutralScale,
	}
}

// Validate checks every scale knob is present and in range.
func (p PersonalityParams) Validate() error {
	knobs := []struct {
		name string
		v    int
	}{
		{"aggressiveness", p.Aggressiveness},
		{"risk_tolerance", p.RiskTolerance},
		{"data_reliance", p.DataReliance},
		{"contrarianism", p.Contrarianism},
		{"home_bias", p.HomeBias},
		{"picks_per_day", p.PicksPerDay},
	}
	for _, k := range knobs {
		if k.v < ScaleMin || k.v > ScaleMax {
			return E(KindInvalidArgument,
				fmt.Sprintf("personality knob %q = %d, must be in [%d,%d]", k.name, k.v, ScaleMin, ScaleMax))
		}
	}
	return nil
}

// ── Custom Insights ──────────────────────────────────────────

// Custom insight limits. Insight text is untrusted: it is sanitized and
// fenced before it ever reaches an outbound prompt.
const (
	MaxInsights     = 3
	MaxInsightRunes = 280
)

// ── Agent Profile ────────────────────────────────────────────

// AgentProfile is a user-configured handicapper persona. Archetype is a
// free-form label ("sharp", "homer", "contrarian") that flavors the system
// prompt but carries no mechanical weight.
type AgentProfile struct {
	ID        string            `json:"id"`
	OwnerID   string            `json:"owner_id"`
	Name      string            `json:"name"`
	Sport     Sport             `json:"sport"`
	Archetype string            `json:"archetype,omitempty"`
	Params    PersonalityParams `json:"params"`
	Insights  []string          `json:"insights,omitempty"`
	IsPublic  bool              `json:"is_public"`
	Active    bool              `json:"active"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	DeletedAt *time.Time        `json:"deleted_at,omitempty"`
}

// Deleted reports whether the profile is soft-deleted.
func (a *AgentProfile) Deleted() bool {
	return a.DeletedAt != nil
}

// ── Markets & Picks ──────────────────────────────────────────

// Market is the bet type of a pick.
type Market string

const (
	MarketMoneyline Market = "moneyline"
	MarketSpread    Market = "spread"
	MarketOverUnder Market = "over_under"
)

// Valid returns true if the market is a known bet type.
func (m Market) Valid() bool {
	switch m {
	case MarketMoneyline, MarketSpread, MarketOverUnder:
		return true
	default:
		return false
	}
}

// Pick selections. Moneyline and spread picks take a side; over/under
// picks take a direction.
const (
	SelectionHome  = "home"
	SelectionAway  = "away"
	SelectionOver  = "over"
	SelectionUnder = "under"
)

// ValidSelection reports whether selection is legal for the market.
func ValidSelection(m Market, selection string) bool {
	switch m {
	case MarketMoneyline, MarketSpread:
		return selection == SelectionHome || selection == SelectionAway
	case MarketOverUnder:
		return selection == SelectionOver || selection == SelectionUnder
	default:
		return false
	}
}

// GeneratedPick is one validated betting recommendation from the model.
// Produced only by the generation orchestrator after schema validation,
// never hand-edited.
type GeneratedPick struct {
	GameID     string  `json:"game_id"`
	Sport      Sport   `json:"sport"`
	Market     Market  `json:"market_type"`
	Selection  string  `json:"selection"`
	Line       float64 `json:"line,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Rationale  string  `json:"rationale"`
}

// Outcome is the graded result of a persisted pick.
type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomeWin     Outcome = "win"
	OutcomeLoss    Outcome = "loss"
	OutcomePush    Outcome = "push"
)

// Terminal reports whether the outcome can no longer change.
func (o Outcome) Terminal() bool {
	return o == OutcomeWin || o == OutcomeLoss || o == OutcomePush
}

// AgentPick is a persisted GeneratedPick plus outcome state. Outcome moves
// from pending to a terminal value exactly once, via the store's
// conditional update.
type AgentPick struct {
	ID        string        `json:"id"`
	AgentID   string        `json:"agent_id"`
	SlateDate string        `json:"slate_date"` // YYYY-MM-DD
	Pick      GeneratedPick `json:"pick"`
	Outcome   Outcome       `json:"outcome"`
	CreatedAt time.Time     `json:"created_at"`
	GradedAt  *time.Time    `json:"graded_at,omitempty"`
}

// PickSet is the atomic unit of generation: all accepted picks for one
// (agent, slate date) pair. The store enforces uniqueness on that pair.
type PickSet struct {
	ID        string      `json:"id"`
	AgentID   string      `json:"agent_id"`
	SlateDate string      `json:"slate_date"`
	Picks     []AgentPick `json:"picks"`
	SlateNote string      `json:"slate_note,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// ── Games & Slates ───────────────────────────────────────────

// SlateDateFormat is the canonical slate date layout.
const SlateDateFormat = "2006-01-02"

// ValidSlateDate reports whether s parses as a canonical slate date.
func ValidSlateDate(s string) bool {
	_, err := time.Parse(SlateDateFormat, s)
	return err == nil
}

// GameStatus tracks game lifecycle for grading.
type GameStatus string

const (
	GameScheduled GameStatus = "scheduled"
	GameLive      GameStatus = "live"
	GameFinal     GameStatus = "final"
)

// Game is one matchup on a slate, with the lines picks are graded against.
// SpreadLine is quoted from the home side: negative means home favored.
type Game struct {
	ID         string     `json:"id"`
	Sport      Sport      `json:"sport"`
	SlateDate  string     `json:"slate_date"`
	HomeTeam   string     `json:"home_team"`
	AwayTeam   string     `json:"away_team"`
	SpreadLine float64    `json:"spread_line"`
	TotalLine  float64    `json:"total_line"`
	Status     GameStatus `json:"status"`
	HomeScore  int        `json:"home_score,omitempty"`
	AwayScore  int        `json:"away_score,omitempty"`
	StartTime  time.Time  `json:"start_time"`
}

// Final reports whether the game has a final score.
func (g *Game) Final() bool {
	return g.Status == GameFinal
}

// ── Leaderboard ──────────────────────────────────────────────

// LeaderboardEntry is one ranked agent. Entries outside a caller's visible
// band are masked: only rank and record survive, identity fields are blank.
type LeaderboardEntry struct {
	Rank      int     `json:"rank"`
	AgentID   string  `json:"agent_id,omitempty"`
	AgentName string  `json:"agent_name,omitempty"`
	Sport     Sport   `json:"sport,omitempty"`
	Wins      int     `json:"wins"`
	Losses    int     `json:"losses"`
	Pushes    int     `json:"pushes"`
	WinRate   float64 `json:"win_rate"`
	Masked    bool    `json:"masked,omitempty"`
}

// ── Error Taxonomy ───────────────────────────────────────────

// ErrorKind is the stable machine-readable failure classification carried
// across service boundaries. Raw upstream error text never crosses the
// API boundary; only kind + message do.
type ErrorKind string

const (
	KindUnauthorized         ErrorKind = "unauthorized"
	KindEntitlementDenied    ErrorKind = "entitlement_denied"
	KindModelUnavailable     ErrorKind = "model_unavailable"
	KindInvalidResponseShape ErrorKind = "invalid_response_shape"
	KindAlreadyGenerated     ErrorKind = "already_generated"
	KindPersistenceConflict  ErrorKind = "persistence_conflict"
	KindGradingSkipped       ErrorKind = "grading_skipped"
	KindNotFound             ErrorKind = "not_found"
	KindInvalidArgument      ErrorKind = "invalid_argument"
	KindInternal             ErrorKind = "internal"
)

// Retryable reports whether a caller may safely retry the failed
// operation without side effects.
func (k ErrorKind) Retryable() bool {
	return k == KindModelUnavailable || k == KindInvalidResponseShape
}

// Error is a classified domain failure.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error // wrapped cause, for logs only
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// E builds a classified error.
func E(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Ef builds a classified error with a wrapped cause.
func Ef(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the ErrorKind from err, or KindInternal if unclassified.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

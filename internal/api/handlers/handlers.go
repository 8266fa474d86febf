// Package handlers implements the HTTP handlers for the WagerProof API.
// All handlers resolve the caller's Identity from request context (set by
// the auth middleware) and pass entitlement inputs explicitly into the
// evaluator — no handler consults ambient or client-supplied state for
// authorization.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wagerproof/wagerproof/internal/api/middleware"
	"github.com/wagerproof/wagerproof/internal/entitlement"
	"github.com/wagerproof/wagerproof/internal/generate"
	"github.com/wagerproof/wagerproof/internal/grading"
	"github.com/wagerproof/wagerproof/internal/prompt"
	"github.com/wagerproof/wagerproof/internal/store"
	"github.com/wagerproof/wagerproof/pkg/models"
)

// Handlers holds all handler dependencies.
type Handlers struct {
	Store     store.Store
	Generator *generate.Orchestrator
	Grader    *grading.Grader
}

// New creates a Handlers instance with all dependencies.
func New(s store.Store, gen *generate.Orchestrator, grader *grading.Grader) *Handlers {
	return &Handlers{Store: s, Generator: gen, Grader: grader}
}

// ══════════════════════════════════════════════════════════════
// ── Agent Handlers ───────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// agentRequest is the create/update payload.
type agentRequest struct {
	Name      string                   `json:"name"`
	Sport     models.Sport             `json:"sport"`
	Archetype string                   `json:"archetype"`
	Params    models.PersonalityParams `json:"params"`
	Insights  []string                 `json:"insights"`
	IsPublic  bool                     `json:"is_public"`
	Active    *bool                    `json:"active,omitempty"` // update only
}

func (h *Handlers) CreateAgent(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetIdentity(r.Context())
	if !ok {
		respondError(w, models.E(models.KindUnauthorized, "authentication required"))
		return
	}

	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, models.E(models.KindInvalidArgument, "invalid request body"))
		return
	}
	if req.Name == "" {
		respondError(w, models.E(models.KindInvalidArgument, "agent name is required"))
		return
	}
	if !req.Sport.Valid() {
		respondError(w, models.E(models.KindInvalidArgument, "unknown sport"))
		return
	}
	if err := req.Params.Validate(); err != nil {
		respondError(w, err)
		return
	}
	insights, err := sanitizeInsights(req.Insights)
	if err != nil {
		respondError(w, err)
		return
	}

	// Plan caps, from server-side counts.
	active, total, err := h.Store.CountAgents(r.Context(), caller.AccountID)
	if err != nil {
		respondError(w, models.Ef(models.KindInternal, "count agents", err))
		return
	}
	ent := entitlement.Context{Tier: caller.Tier(), ActiveAgents: active, TotalAgents: total}
	if !ent.CanCreate() {
		respondError(w, models.E(models.KindEntitlementDenied, "agent limit reached for your plan"))
		return
	}
	if req.IsPublic && !entitlement.CanCreatePublicAgent(caller.Tier()) {
		respondError(w, models.E(models.KindEntitlementDenied, "public agents require a pro plan"))
		return
	}

	now := time.Now().UTC()
	agent := &models.AgentProfile{
		ID:        uuid.New().String(),
		OwnerID:   caller.AccountID,
		Name:      req.Name,
		Sport:     req.Sport,
		Archetype: req.Archetype,
		Params:    req.Params,
		Insights:  insights,
		IsPublic:  req.IsPublic,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.Store.CreateAgent(r.Context(), agent); err != nil {
		respondError(w, models.Ef(models.KindInternal, "create agent", err))
		return
	}

	log.Info().Str("agent", agent.ID).Str("owner", caller.AccountID).Str("sport", string(agent.Sport)).Msg("Agent created")
	respondJSON(w, http.StatusCreated, agent)
}

func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetIdentity(r.Context())
	if !ok {
		respondError(w, models.E(models.KindUnauthorized, "authentication required"))
		return
	}
	agents, err := h.Store.ListAgentsByOwner(r.Context(), caller.AccountID)
	if err != nil {
		respondError(w, models.Ef(models.KindInternal, "list agents", err))
		return
	}
	if agents == nil {
		agents = []models.AgentProfile{}
	}
	respondJSON(w, http.StatusOK, agents)
}

func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	_, agent, err := h.loadAgentForViewing(r)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

func (h *Handlers) UpdateAgent(w http.ResponseWriter, r *http.Request) {
	caller, agent, err := h.loadOwnedAgent(r)
	if err != nil {
		respondError(w, err)
		return
	}

	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, models.E(models.KindInvalidArgument, "invalid request body"))
		return
	}
	if err := req.Params.Validate(); err != nil {
		respondError(w, err)
		return
	}
	insights, err := sanitizeInsights(req.Insights)
	if err != nil {
		respondError(w, err)
		return
	}
	if req.IsPublic && !agent.IsPublic && !entitlement.CanCreatePublicAgent(caller.Tier()) {
		respondError(w, models.E(models.KindEntitlementDenied, "public agents require a pro plan"))
		return
	}

	// Reactivation counts against the active cap like a fresh create.
	if req.Active != nil && *req.Active && !agent.Active {
		active, total, err := h.Store.CountAgents(r.Context(), agent.OwnerID)
		if err != nil {
			respondError(w, models.Ef(models.KindInternal, "count agents", err))
			return
		}
		if !entitlement.CanCreateAnotherAgent(active, total-1, caller.Tier()) {
			respondError(w, models.E(models.KindEntitlementDenied, "active agent limit reached for your plan"))
			return
		}
	}

	if req.Name != "" {
		agent.Name = req.Name
	}
	agent.Archetype = req.Archetype
	agent.Params = req.Params
	agent.Insights = insights
	agent.IsPublic = req.IsPublic
	if req.Active != nil {
		agent.Active = *req.Active
	}
	agent.UpdatedAt = time.Now().UTC()

	if err := h.Store.UpdateAgent(r.Context(), agent); err != nil {
		respondError(w, models.Ef(models.KindInternal, "update agent", err))
		return
	}
	respondJSON(w, http.StatusOK, agent)
}

func (h *Handlers) DeleteAgent(w http.ResponseWriter, r *http.Request) {
	_, agent, err := h.loadOwnedAgent(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := h.Store.SoftDeleteAgent(r.Context(), agent.ID); err != nil {
		respondError(w, models.Ef(models.KindInternal, "delete agent", err))
		return
	}
	log.Info().Str("agent", agent.ID).Msg("Agent deleted")
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ══════════════════════════════════════════════════════════════
// ── Pick Handlers ────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// generateRequest is the generation trigger payload.
type generateRequest struct {
	Date  string `json:"date,omitempty"`
	Force bool   `json:"force,omitempty"`
}

// generateResponse is the external generation contract.
type generateResponse struct {
	Success   bool               `json:"success"`
	Picks     []models.AgentPick `json:"picks"`
	SlateNote string             `json:"slate_note,omitempty"`
	Error     string             `json:"error,omitempty"`
}

func (h *Handlers) GeneratePicks(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetIdentity(r.Context())
	if !ok {
		respondError(w, models.E(models.KindUnauthorized, "authentication required"))
		return
	}

	var req generateRequest
	if r.Body != nil {
		// An empty body means "today, no force".
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	res, err := h.Generator.Generate(r.Context(), generate.Request{
		AgentID:   chi.URLParam(r, "agentID"),
		SlateDate: req.Date,
		Force:     req.Force,
		Caller:    caller,
	})
	if err != nil {
		kind := models.KindOf(err)
		var domErr *models.Error
		message := "pick generation failed"
		if errors.As(err, &domErr) {
			message = domErr.Message
		}
		respondJSON(w, statusForKind(kind), generateResponse{
			Success: false,
			Picks:   []models.AgentPick{},
			Error:   string(kind) + ": " + message,
		})
		return
	}

	respondJSON(w, http.StatusOK, generateResponse{
		Success:   true,
		Picks:     res.Picks,
		SlateNote: res.SlateNote,
	})
}

func (h *Handlers) ListAgentPicks(w http.ResponseWriter, r *http.Request) {
	_, agent, err := h.loadAgentForViewing(r)
	if err != nil {
		respondError(w, err)
		return
	}

	picks, err := h.Store.ListPicksByAgent(r.Context(), agent.ID, r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, models.Ef(models.KindInternal, "list picks", err))
		return
	}
	if picks == nil {
		picks = []models.AgentPick{}
	}
	respondJSON(w, http.StatusOK, picks)
}

// ══════════════════════════════════════════════════════════════
// ── Leaderboard ──────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetIdentity(r.Context())
	if !ok {
		respondError(w, models.E(models.KindUnauthorized, "authentication required"))
		return
	}

	sport := models.Sport(r.URL.Query().Get("sport"))
	if sport != "" && !sport.Valid() {
		respondError(w, models.E(models.KindInvalidArgument, "unknown sport"))
		return
	}

	agents, err := h.Store.ListPublicAgents(r.Context(), sport)
	if err != nil {
		respondError(w, models.Ef(models.KindInternal, "list public agents", err))
		return
	}

	entries := make([]models.LeaderboardEntry, 0, len(agents))
	for _, a := range agents {
		wins, losses, pushes, err := h.Store.CountOutcomes(r.Context(), a.ID)
		if err != nil {
			respondError(w, models.Ef(models.KindInternal, "count outcomes", err))
			return
		}
		decided := wins + losses
		if decided == 0 {
			continue
		}
		entries = append(entries, models.LeaderboardEntry{
			AgentID:   a.ID,
			AgentName: a.Name,
			Sport:     a.Sport,
			Wins:      wins,
			Losses:    losses,
			Pushes:    pushes,
			WinRate:   float64(wins) / float64(decided),
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].WinRate != entries[j].WinRate {
			return entries[i].WinRate > entries[j].WinRate
		}
		if entries[i].Wins != entries[j].Wins {
			return entries[i].Wins > entries[j].Wins
		}
		return entries[i].AgentID < entries[j].AgentID
	})

	// Assign ranks, then mask identity outside the caller's visible band.
	tier := caller.Tier()
	for i := range entries {
		entries[i].Rank = i + 1
		if !entitlement.CanViewLeaderboardRank(tier, entries[i].Rank) {
			entries[i].AgentID = ""
			entries[i].AgentName = ""
			entries[i].Sport = ""
			entries[i].Masked = true
		}
	}
	respondJSON(w, http.StatusOK, entries)
}

// ══════════════════════════════════════════════════════════════
// ── Grading & Games ──────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

func (h *Handlers) RunGrading(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetIdentity(r.Context())
	if !ok || !caller.IsAdmin {
		respondError(w, models.E(models.KindEntitlementDenied, "admin only"))
		return
	}
	stats, err := h.Grader.Sweep(r.Context())
	if err != nil {
		respondError(w, models.Ef(models.KindInternal, "grading sweep", err))
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (h *Handlers) CreateGame(w http.ResponseWriter, r *http.Request) {
	caller, ok := middleware.GetIdentity(r.Context())
	if !ok || !caller.IsAdmin {
		respondError(w, models.E(models.KindEntitlementDenied, "admin only"))
		return
	}

	var game models.Game
	if err := json.NewDecoder(r.Body).Decode(&game); err != nil {
		respondError(w, models.E(models.KindInvalidArgument, "invalid request body"))
		return
	}
	if !game.Sport.Valid() {
		respondError(w, models.E(models.KindInvalidArgument, "unknown sport"))
		return
	}
	if !models.ValidSlateDate(game.SlateDate) {
		respondError(w, models.E(models.KindInvalidArgument, "slate_date must be YYYY-MM-DD"))
		return
	}
	if game.ID == "" {
		game.ID = uuid.New().String()
	}
	if game.Status == "" {
		game.Status = models.GameScheduled
	}
	if err := h.Store.UpsertGame(r.Context(), &game); err != nil {
		respondError(w, models.Ef(models.KindInternal, "upsert game", err))
		return
	}
	respondJSON(w, http.StatusCreated, game)
}

func (h *Handlers) ListGames(w http.ResponseWriter, r *http.Request) {
	if _, ok := middleware.GetIdentity(r.Context()); !ok {
		respondError(w, models.E(models.KindUnauthorized, "authentication required"))
		return
	}
	sport := models.Sport(r.URL.Query().Get("sport"))
	games, err := h.Store.ListGames(r.Context(), sport, r.URL.Query().Get("date"))
	if err != nil {
		respondError(w, models.Ef(models.KindInternal, "list games", err))
		return
	}
	if games == nil {
		games = []models.Game{}
	}
	respondJSON(w, http.StatusOK, games)
}

// ══════════════════════════════════════════════════════════════
// ── Helpers ──────────────────────────────────────────────────
// ══════════════════════════════════════════════════════════════

// loadOwnedAgent fetches the route agent and requires the caller to be
// its owner or an admin.
func (h *Handlers) loadOwnedAgent(r *http.Request) (models.Identity, *models.AgentProfile, error) {
	caller, ok := middleware.GetIdentity(r.Context())
	if !ok {
		return models.Identity{}, nil, models.E(models.KindUnauthorized, "authentication required")
	}
	agent, err := h.Store.GetAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		var nf *store.ErrNotFound
		if errors.As(err, &nf) {
			return caller, nil, models.E(models.KindNotFound, "agent not found")
		}
		return caller, nil, models.Ef(models.KindInternal, "load agent", err)
	}
	if agent.Deleted() {
		return caller, nil, models.E(models.KindNotFound, "agent not found")
	}
	if agent.OwnerID != caller.AccountID && !caller.IsAdmin {
		return caller, nil, models.E(models.KindEntitlementDenied, "agent belongs to another account")
	}
	return caller, agent, nil
}

// loadAgentForViewing is loadOwnedAgent relaxed for reads: non-owners may
// view public agents if their tier allows viewing agent picks.
func (h *Handlers) loadAgentForViewing(r *http.Request) (models.Identity, *models.AgentProfile, error) {
	caller, ok := middleware.GetIdentity(r.Context())
	if !ok {
		return models.Identity{}, nil, models.E(models.KindUnauthorized, "authentication required")
	}
	agent, err := h.Store.GetAgent(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		var nf *store.ErrNotFound
		if errors.As(err, &nf) {
			return caller, nil, models.E(models.KindNotFound, "agent not found")
		}
		return caller, nil, models.Ef(models.KindInternal, "load agent", err)
	}
	if agent.Deleted() {
		return caller, nil, models.E(models.KindNotFound, "agent not found")
	}
	if agent.OwnerID == caller.AccountID || caller.IsAdmin {
		return caller, agent, nil
	}
	if agent.IsPublic && entitlement.CanViewAgentPicks(caller.Tier()) {
		return caller, agent, nil
	}
	return caller, nil, models.E(models.KindEntitlementDenied, "viewing this agent requires a pro plan")
}

// sanitizeInsights normalizes owner free text and enforces count limits.
func sanitizeInsights(raw []string) ([]string, error) {
	if len(raw) > models.MaxInsights {
		return nil, models.E(models.KindInvalidArgument, "too many insights")
	}
	var out []string
	for _, s := range raw {
		if clean := prompt.SanitizeInsight(s); clean != "" {
			out = append(out, clean)
		}
	}
	return out, nil
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, err error) {
	kind := models.KindOf(err)
	message := "internal error"
	var domErr *models.Error
	if errors.As(err, &domErr) {
		message = domErr.Message
	}
	if kind == models.KindInternal {
		// Do not leak internals; the cause is already logged upstream.
		log.Error().Err(err).Msg("Request failed")
		message = "internal error"
	}
	respondJSON(w, statusForKind(kind), map[string]string{
		"error":   string(kind),
		"message": message,
	})
}

// statusForKind maps the error taxonomy onto HTTP statuses in one place.
func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.KindUnauthorized:
		return http.StatusUnauthorized
	case models.KindEntitlementDenied:
		return http.StatusForbidden
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindInvalidArgument:
		return http.StatusBadRequest
	case models.KindModelUnavailable, models.KindInvalidResponseShape:
		return http.StatusBadGateway
	case models.KindPersistenceConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

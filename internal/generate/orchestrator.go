// Package generate implements the pick generation orchestrator. One
// request walks a fixed state machine:
//
//	Requesting → ModelCallInFlight → Validating → Persisting → Done
//
// with Failed reachable from any non-terminal state. The orchestrator is
// the only producer of persisted picks: nothing reaches the store without
// passing schema validation, and a (agent, slate date) pair is generated
// at most once — the store's uniqueness constraint backs the idempotency
// pre-check, so a lost race surfaces as AlreadyGenerated, not an error.
package generate

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/wagerproof/wagerproof/internal/clients/model"
	"github.com/wagerproof/wagerproof/internal/pickschema"
	"github.com/wagerproof/wagerproof/internal/prompt"
	"github.com/wagerproof/wagerproof/internal/store"
	"github.com/wagerproof/wagerproof/pkg/models"
)

// State is the orchestrator's position in the request lifecycle.
type State string

const (
	StateRequesting        State = "requesting"
	StateModelCallInFlight State = "model_call_in_flight"
	StateValidating        State = "validating"
	StatePersisting        State = "persisting"
	StateDone              State = "done"
	StateFailed            State = "failed"
)

// Request is one generation trigger.
type Request struct {
	AgentID   string
	SlateDate string // YYYY-MM-DD; empty means today (UTC)
	Force     bool   // regenerate despite an existing set; admin only
	Caller    models.Identity
}

// Result is the outcome of a generation request.
type Result struct {
	State            State              `json:"state"`
	Picks            []models.AgentPick `json:"picks"`
	SlateNote        string             `json:"slate_note,omitempty"`
	AlreadyGenerated bool               `json:"already_generated,omitempty"`

	// RawModelOutput preserves the rejected model response when validation
	// produced zero usable picks. Diagnostics only; never persisted.
	RawModelOutput string `json:"raw_model_output,omitempty"`
}

// Orchestrator coordinates prompt building, the model call, validation,
// and persistence for one agent's daily picks.
type Orchestrator struct {
	store     store.Store
	model     model.Client
	validator *pickschema.Validator
	timeout   time.Duration
}

// New creates an orchestrator. timeout bounds the external model call;
// zero means 60s.
func New(s store.Store, m model.Client, v *pickschema.Validator, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Orchestrator{store: s, model: m, validator: v, timeout: timeout}
}

// modelPayload is the envelope the model is instructed to return.
type modelPayload struct {
	Picks     []json.RawMessage `json:"picks"`
	SlateNote string            `json:"slate_note"`
}

// Generate runs the full pipeline for one (agent, slate date) pair.
func (o *Orchestrator) Generate(ctx context.Context, req Request) (*Result, error) {
	res := &Result{State: StateRequesting}

	slateDate := req.SlateDate
	if slateDate == "" {
		slateDate = time.Now().UTC().Format(models.SlateDateFormat)
	}
	if !models.ValidSlateDate(slateDate) {
		return o.fail(res, models.E(models.KindInvalidArgument, "slate date must be YYYY-MM-DD"))
	}

	agent, err := o.store.GetAgent(ctx, req.AgentID)
	if err != nil {
		var nf *store.ErrNotFound
		if errors.As(err, &nf) {
			return o.fail(res, models.E(models.KindNotFound, "agent not found"))
		}
		return o.fail(res, models.Ef(models.KindInternal, "load agent", err))
	}
	if agent.Deleted() {
		return o.fail(res, models.E(models.KindNotFound, "agent not found"))
	}
	if agent.OwnerID != req.Caller.AccountID && !req.Caller.IsAdmin {
		return o.fail(res, models.E(models.KindEntitlementDenied, "agent belongs to another account"))
	}
	if !agent.Active {
		return o.fail(res, models.E(models.KindEntitlementDenied, "agent is not active"))
	}
	if err := agent.Params.Validate(); err != nil {
		return o.fail(res, err)
	}

	force := req.Force && req.Caller.IsAdmin

	// Idempotency pre-check: an existing non-empty set is the answer.
	if !force {
		if existing, err := o.store.GetPickSet(ctx, agent.ID, slateDate); err == nil && len(existing.Picks) > 0 {
			res.State = StateDone
			res.Picks = existing.Picks
			res.SlateNote = existing.SlateNote
			res.AlreadyGenerated = true
			return res, nil
		}
	}

	slate, err := o.store.ListGames(ctx, agent.Sport, slateDate)
	if err != nil {
		return o.fail(res, models.Ef(models.KindInternal, "load slate", err))
	}
	if len(slate) == 0 {
		return o.fail(res, models.E(models.KindInvalidArgument, "no games on the requested slate"))
	}

	// External model call, bounded by the orchestrator timeout.
	res.State = StateModelCallInFlight
	systemPrompt := prompt.BuildSystemPrompt(agent)
	userPrompt := prompt.BuildUserPrompt(agent, slateDate, slate)

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()
	rawOutput, err := o.model.Generate(callCtx, systemPrompt, userPrompt)
	if err != nil {
		log.Warn().Err(err).Str("agent", agent.ID).Str("date", slateDate).Msg("Model call failed")
		return o.fail(res, models.Ef(models.KindModelUnavailable, "model call failed or timed out", err))
	}

	// Validation: structural + semantic, per candidate.
	res.State = StateValidating
	payload, err := parsePayload(rawOutput)
	if err != nil {
		res.RawModelOutput = rawOutput
		return o.fail(res, models.Ef(models.KindInvalidResponseShape, "model output is not the requested JSON envelope", err))
	}

	batch := o.validator.ValidateBatch(payload.Picks, agent.Sport, slate)
	for _, rej := range batch.Rejected {
		log.Debug().Int("index", rej.Index).Str("reason", rej.Reason).Str("agent", agent.ID).Msg("Candidate pick rejected")
	}
	if len(batch.Valid) == 0 {
		res.RawModelOutput = rawOutput
		return o.fail(res, models.E(models.KindInvalidResponseShape, "no valid picks in model response"))
	}

	accepted := batch.Valid
	if max := prompt.MaxPicks(agent); len(accepted) > max {
		accepted = accepted[:max]
	}

	// Persist atomically as one set.
	res.State = StatePersisting
	if force {
		// Replace semantics for admin force-regenerate; a missing set is fine.
		if err := o.store.DeletePickSet(ctx, agent.ID, slateDate); err != nil {
			var nf *store.ErrNotFound
			if !errors.As(err, &nf) {
				return o.fail(res, models.Ef(models.KindInternal, "clear existing pick set", err))
			}
		}
	}
	now := time.Now().UTC()
	set := &models.PickSet{
		ID:        uuid.New().String(),
		AgentID:   agent.ID,
		SlateDate: slateDate,
		SlateNote: payload.SlateNote,
		CreatedAt: now,
	}
	for _, p := range accepted {
		set.Picks = append(set.Picks, models.AgentPick{
			ID:        uuid.New().String(),
			AgentID:   agent.ID,
			SlateDate: slateDate,
			Pick:      p,
			Outcome:   models.OutcomePending,
			CreatedAt: now,
		})
	}

	if err := o.store.CreatePickSet(ctx, set); err != nil {
		var conflict *store.ErrConflict
		if errors.As(err, &conflict) {
			// Lost the race to a concurrent generation: fall back to
			// read-then-return, same as the idempotency pre-check.
			existing, gerr := o.store.GetPickSet(ctx, agent.ID, slateDate)
			if gerr != nil {
				return o.fail(res, models.Ef(models.KindPersistenceConflict, "concurrent generation detected but existing set unreadable", gerr))
			}
			res.State = StateDone
			res.Picks = existing.Picks
			res.SlateNote = existing.SlateNote
			res.AlreadyGenerated = true
			return res, nil
		}
		return o.fail(res, models.Ef(models.KindInternal, "persist pick set", err))
	}

	res.State = StateDone
	res.Picks = set.Picks
	res.SlateNote = set.SlateNote

	log.Info().
		Str("agent", agent.ID).
		Str("date", slateDate).
		Int("picks", len(set.Picks)).
		Int("rejected", len(batch.Rejected)).
		Msg("Pick set generated")
	return res, nil
}

func (o *Orchestrator) fail(res *Result, err error) (*Result, error) {
	res.State = StateFailed
	return res, err
}

// codeFenceRe matches markdown code fences wrapping JSON output.
var codeFenceRe = regexp.MustCompile("(?si)^```(?:json)?\\s*(.*?)\\s*```$")

// parsePayload decodes the model's JSON envelope, tolerating markdown
// code fences around it.
func parsePayload(raw string) (*modelPayload, error) {
	s := strings.TrimSpace(raw)
	if m := codeFenceRe.FindStringSubmatch(s); len(m) > 1 {
		s = strings.TrimSpace(m[1])
	}
	var payload modelPayload
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

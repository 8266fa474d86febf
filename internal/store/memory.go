// Package store — in-memory Store implementation.
// Used for local dev and tests. Supports file-based snapshot persistence so
// data survives restarts.
package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wagerproof/wagerproof/pkg/models"
)

// snapshot is the JSON-serializable shape written to disk.
type snapshot struct {
	Accounts map[string]*models.Account      `json:"accounts"`
	Agents   map[string]*models.AgentProfile `json:"agents"`
	Games    map[string]*models.Game         `json:"games"`
	PickSets map[string]*models.PickSet      `json:"pick_sets"` // key: agent_id:slate_date
	Picks    map[string]*models.AgentPick    `json:"picks"`     // key: pick id
}

// MemoryStore implements Store with in-memory maps.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]*models.Account      // key: id
	agents   map[string]*models.AgentProfile // key: id
	games    map[string]*models.Game         // key: id
	pickSets map[string]*models.PickSet      // key: agent_id:slate_date
	picks    map[string]*models.AgentPick    // key: pick id

	// Persistence
	snapshotPath string        // empty = no persistence
	saveMu       sync.Mutex    // guards file writes
	saveCh       chan struct{} // debounce channel
	doneCh       chan struct{} // signals background goroutine to stop
}

// NewMemoryStore creates a new in-memory store.
// If WAGERPROOF_DATA_DIR is set, data is persisted to a JSON file in that
// directory. Otherwise persistence is disabled.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{
		accounts: make(map[string]*models.Account),
		agents:   make(map[string]*models.AgentProfile),
		games:    make(map[string]*models.Game),
		pickSets: make(map[string]*models.PickSet),
		picks:    make(map[string]*models.AgentPick),
		saveCh:   make(chan struct{}, 1),
		doneCh:   make(chan struct{}),
	}

	if dataDir := os.Getenv("WAGERPROOF_DATA_DIR"); dataDir != "" {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			log.Warn().Err(err).Str("dir", dataDir).Msg("Cannot create data dir, persistence disabled")
		} else {
			m.snapshotPath = filepath.Join(dataDir, "data.json")
			m.loadSnapshot()
			go m.saveLoop()
		}
	}

	log.Info().Str("snapshot", m.snapshotPath).Msg("Memory store configured")
	return m
}

func setKey(agentID, slateDate string) string {
	return agentID + ":" + slateDate
}

// ── Account Store ────────────────────────────────────────────

func (m *MemoryStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "account", Key: id}
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) GetAccountByToken(ctx context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, &ErrNotFound{Entity: "account", Key: "(empty token)"}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.accounts {
		if a.SessionToken == token {
			cp := *a
			return &cp, nil
		}
	}
	return nil, &ErrNotFound{Entity: "account", Key: "(token)"}
}

func (m *MemoryStore) CreateAccount(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	cp := *account
	m.accounts[account.ID] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateAccount(ctx context.Context, account *models.Account) error {
	m.mu.Lock()
	if _, ok := m.accounts[account.ID]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "account", Key: account.ID}
	}
	cp := *account
	m.accounts[account.ID] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Agent Store ──────────────────────────────────────────────

func (m *MemoryStore) GetAgent(ctx context.Context, id string) (*models.AgentProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.agents[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "agent", Key: id}
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) ListAgentsByOwner(ctx context.Context, ownerID string) ([]models.AgentProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.AgentProfile
	for _, a := range m.agents {
		if a.OwnerID == ownerID && !a.Deleted() {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) ListPublicAgents(ctx context.Context, sport models.Sport) ([]models.AgentProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.AgentProfile
	for _, a := range m.agents {
		if !a.IsPublic || a.Deleted() {
			continue
		}
		if sport != "" && a.Sport != sport {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) CreateAgent(ctx context.Context, agent *models.AgentProfile) error {
	m.mu.Lock()
	cp := *agent
	m.agents[agent.ID] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) UpdateAgent(ctx context.Context, agent *models.AgentProfile) error {
	m.mu.Lock()
	if _, ok := m.agents[agent.ID]; !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "agent", Key: agent.ID}
	}
	cp := *agent
	m.agents[agent.ID] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) SoftDeleteAgent(ctx context.Context, id string) error {
	m.mu.Lock()
	a, ok := m.agents[id]
	if !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "agent", Key: id}
	}
	now := time.Now().UTC()
	a.DeletedAt = &now
	a.Active = false
	a.UpdatedAt = now
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) CountAgents(ctx context.Context, ownerID string) (active, total int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, a := range m.agents {
		if a.OwnerID != ownerID {
			continue
		}
		total++
		if a.Active && !a.Deleted() {
			active++
		}
	}
	return active, total, nil
}

// ── Game Store ───────────────────────────────────────────────

func (m *MemoryStore) GetGame(ctx context.Context, id string) (*models.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	if !ok {
		return nil, &ErrNotFound{Entity: "game", Key: id}
	}
	cp := *g
	return &cp, nil
}

func (m *MemoryStore) ListGames(ctx context.Context, sport models.Sport, slateDate string) ([]models.Game, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Game
	for _, g := range m.games {
		if sport != "" && g.Sport != sport {
			continue
		}
		if slateDate != "" && g.SlateDate != slateDate {
			continue
		}
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *MemoryStore) UpsertGame(ctx context.Context, game *models.Game) error {
	m.mu.Lock()
	cp := *game
	m.games[game.ID] = &cp
	m.mu.Unlock()
	m.requestSave()
	return nil
}

// ── Pick Store ───────────────────────────────────────────────

func (m *MemoryStore) GetPickSet(ctx context.Context, agentID, slateDate string) (*models.PickSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set, ok := m.pickSets[setKey(agentID, slateDate)]
	if !ok {
		return nil, &ErrNotFound{Entity: "pick set", Key: setKey(agentID, slateDate)}
	}
	return m.pickSetCopy(set), nil
}

// pickSetCopy returns a deep copy with live pick state (outcomes updated by
// grading) merged in. Callers must hold at least a read lock.
func (m *MemoryStore) pickSetCopy(set *models.PickSet) *models.PickSet {
	cp := *set
	cp.Picks = make([]models.AgentPick, len(set.Picks))
	for i, p := range set.Picks {
		if live, ok := m.picks[p.ID]; ok {
			cp.Picks[i] = *live
		} else {
			cp.Picks[i] = p
		}
	}
	return &cp
}

func (m *MemoryStore) CreatePickSet(ctx context.Context, set *models.PickSet) error {
	key := setKey(set.AgentID, set.SlateDate)
	m.mu.Lock()
	if _, ok := m.pickSets[key]; ok {
		m.mu.Unlock()
		return &ErrConflict{Entity: "pick set", Key: key}
	}
	cp := *set
	cp.Picks = append([]models.AgentPick(nil), set.Picks...)
	m.pickSets[key] = &cp
	for i := range cp.Picks {
		p := cp.Picks[i]
		m.picks[p.ID] = &p
	}
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) DeletePickSet(ctx context.Context, agentID, slateDate string) error {
	key := setKey(agentID, slateDate)
	m.mu.Lock()
	set, ok := m.pickSets[key]
	if !ok {
		m.mu.Unlock()
		return &ErrNotFound{Entity: "pick set", Key: key}
	}
	for _, p := range set.Picks {
		delete(m.picks, p.ID)
	}
	delete(m.pickSets, key)
	m.mu.Unlock()
	m.requestSave()
	return nil
}

func (m *MemoryStore) ListPicksByAgent(ctx context.Context, agentID, slateDate string) ([]models.AgentPick, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.AgentPick
	for _, p := range m.picks {
		if p.AgentID != agentID {
			continue
		}
		if slateDate != "" && p.SlateDate != slateDate {
			continue
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) ListPendingPicks(ctx context.Context) ([]models.AgentPick, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.AgentPick
	for _, p := range m.picks {
		if p.Outcome == models.OutcomePending {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) GradePick(ctx context.Context, pickID string, outcome models.Outcome) (bool, error) {
	if !outcome.Terminal() {
		return false, &ErrConflict{Entity: "pick outcome", Key: string(outcome)}
	}
	m.mu.Lock()
	p, ok := m.picks[pickID]
	if !ok {
		m.mu.Unlock()
		return false, &ErrNotFound{Entity: "pick", Key: pickID}
	}
	// Compare-and-set on pending: repeated sweeps are no-ops.
	if p.Outcome != models.OutcomePending {
		m.mu.Unlock()
		return false, nil
	}
	now := time.Now().UTC()
	p.Outcome = outcome
	p.GradedAt = &now
	m.mu.Unlock()
	m.requestSave()
	return true, nil
}

func (m *MemoryStore) CountOutcomes(ctx context.Context, agentID string) (wins, losses, pushes int, err error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.picks {
		if p.AgentID != agentID {
			continue
		}
		switch p.Outcome {
		case models.OutcomeWin:
			wins++
		case models.OutcomeLoss:
			losses++
		case models.OutcomePush:
			pushes++
		}
	}
	return wins, losses, pushes, nil
}

// ── Lifecycle ───────────────────────────────────────────────

func (m *MemoryStore) Ping(ctx context.Context) error { return nil }

func (m *MemoryStore) Close() error {
	select {
	case <-m.doneCh:
		// already closed
	default:
		close(m.doneCh)
	}
	if m.snapshotPath != "" {
		m.saveSnapshot()
	}
	return nil
}

// ── Snapshot persistence ────────────────────────────────────

// requestSave signals the background goroutine to persist data.
// Non-blocking: coalesces multiple rapid writes into one disk flush.
func (m *MemoryStore) requestSave() {
	if m.snapshotPath == "" {
		return
	}
	select {
	case m.saveCh <- struct{}{}:
	default:
		// Already pending
	}
}

// saveLoop runs in a goroutine, debouncing save requests.
func (m *MemoryStore) saveLoop() {
	for {
		select {
		case <-m.doneCh:
			return
		case <-m.saveCh:
			time.Sleep(500 * time.Millisecond) // debounce
			m.saveSnapshot()
		}
	}
}

// saveSnapshot persists all data to disk as JSON.
func (m *MemoryStore) saveSnapshot() {
	m.mu.RLock()
	snap := snapshot{
		Accounts: m.accounts,
		Agents:   m.agents,
		Games:    m.games,
		PickSets: m.pickSets,
		Picks:    m.picks,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	m.mu.RUnlock()

	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal snapshot")
		return
	}

	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	// Write to temp file then rename for atomicity
	tmp := m.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		log.Error().Err(err).Str("path", tmp).Msg("Failed to write snapshot tmp")
		return
	}
	if err := os.Rename(tmp, m.snapshotPath); err != nil {
		log.Error().Err(err).Str("path", m.snapshotPath).Msg("Failed to rename snapshot")
	}
}

// loadSnapshot restores data from disk, if a snapshot exists.
func (m *MemoryStore) loadSnapshot() {
	data, err := os.ReadFile(m.snapshotPath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Cannot read snapshot")
		}
		return
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Warn().Err(err).Str("path", m.snapshotPath).Msg("Corrupt snapshot, starting fresh")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.Accounts != nil {
		m.accounts = snap.Accounts
	}
	if snap.Agents != nil {
		m.agents = snap.Agents
	}
	if snap.Games != nil {
		m.games = snap.Games
	}
	if snap.PickSets != nil {
		m.pickSets = snap.PickSets
	}
	if snap.Picks != nil {
		m.picks = snap.Picks
	}
	log.Info().
		Int("accounts", len(m.accounts)).
		Int("agents", len(m.agents)).
		Int("games", len(m.games)).
		Int("pick_sets", len(m.pickSets)).
		Msg("Snapshot loaded")
}

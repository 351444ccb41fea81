package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"focus-ledger/internal/model"
	"focus-ledger/internal/repository"
)

// errAuditDown simulates audit-logging infrastructure being unavailable.
var errAuditDown = errors.New("audit store unavailable")

// memStore is an in-memory ProgressStore + AuditStore with the same
// conditioned-update semantics as the PostgreSQL repositories. It lets
// the service tests exercise conflict and idempotency paths without a
// database.
type memStore struct {
	mu       sync.Mutex
	progress map[string]*model.UserProgress
	audit    []*model.CoinTransaction
	sessions []*model.FocusSession

	failAudit bool // simulate audit insert failure
	nextTxID  int64
}

func newMemStore() *memStore {
	return &memStore{progress: make(map[string]*model.UserProgress)}
}

func copyProgress(p *model.UserProgress) *model.UserProgress {
	cp := *p
	if p.LastSessionDate != nil {
		d := *p.LastSessionDate
		cp.LastSessionDate = &d
	}
	return &cp
}

func (m *memStore) Get(_ context.Context, userID string) (*model.UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return copyProgress(p), nil
}

func (m *memStore) CreateWithEarn(_ context.Context, userID string, amount int64) (*model.UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.progress[userID]; ok {
		return nil, repository.ErrConflict
	}
	p := &model.UserProgress{
		UserID:           userID,
		Coins:            amount,
		TotalCoinsEarned: amount,
		CurrentLevel:     1,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}
	m.progress[userID] = p
	return copyProgress(p), nil
}

func (m *memStore) EnsureExists(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.progress[userID]; !ok {
		m.progress[userID] = &model.UserProgress{UserID: userID, CurrentLevel: 1}
	}
	return nil
}

func (m *memStore) ApplyEarn(_ context.Context, userID string, amount, expectedBalance int64) (*model.UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[userID]
	if !ok || p.Coins != expectedBalance {
		return nil, repository.ErrConflict
	}
	p.Coins += amount
	p.TotalCoinsEarned += amount
	p.UpdatedAt = time.Now()
	return copyProgress(p), nil
}

func (m *memStore) ApplySpend(_ context.Context, userID string, amount, expectedBalance int64) (*model.UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[userID]
	if !ok || p.Coins != expectedBalance {
		return nil, repository.ErrConflict
	}
	p.Coins -= amount
	p.TotalCoinsSpent += amount
	p.UpdatedAt = time.Now()
	return copyProgress(p), nil
}

func (m *memStore) ApplySessionXP(_ context.Context, upd repository.SessionXPUpdate) (*model.UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[upd.UserID]
	if !ok || p.TotalXP != upd.ExpectedTotalXP {
		return nil, repository.ErrConflict
	}
	p.TotalXP = upd.NewTotalXP
	p.CurrentLevel = upd.NewLevel
	p.TotalSessions++
	p.CurrentStreak = upd.CurrentStreak
	p.LongestStreak = upd.LongestStreak
	if d, err := time.Parse("2006-01-02", upd.SessionDate); err == nil {
		p.LastSessionDate = &d
	}
	p.UpdatedAt = time.Now()
	m.sessions = append(m.sessions, &model.FocusSession{
		UserID:          upd.UserID,
		DurationMinutes: upd.DurationMinutes,
		XPEarned:        upd.XPEarned,
		SessionType:     upd.SessionType,
		CompletedAt:     time.Now(),
	})
	return copyProgress(p), nil
}

func (m *memStore) ListSessions(_ context.Context, userID string, limit int) ([]*model.FocusSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.FocusSession
	for i := len(m.sessions) - 1; i >= 0 && len(out) < limit; i-- {
		if m.sessions[i].UserID == userID {
			out = append(out, m.sessions[i])
		}
	}
	return out, nil
}

func (m *memStore) EraseUser(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.progress[userID]; !ok {
		return repository.ErrUserNotFound
	}
	delete(m.progress, userID)
	var audit []*model.CoinTransaction
	for _, t := range m.audit {
		if t.UserID != userID {
			audit = append(audit, t)
		}
	}
	m.audit = audit
	var sessions []*model.FocusSession
	for _, s := range m.sessions {
		if s.UserID != userID {
			sessions = append(sessions, s)
		}
	}
	m.sessions = sessions
	return nil
}

func (m *memStore) Create(_ context.Context, t *model.CoinTransaction) (*model.CoinTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAudit {
		return nil, errAuditDown
	}
	if t.Operation == model.OpEarn && t.SessionID != nil {
		for _, existing := range m.audit {
			if existing.UserID == t.UserID && existing.Operation == model.OpEarn &&
				existing.SessionID != nil && *existing.SessionID == *t.SessionID {
				return nil, repository.ErrDuplicateSession
			}
		}
	}
	m.nextTxID++
	t.ID = m.nextTxID
	t.CreatedAt = time.Now()
	m.audit = append(m.audit, t)
	return t, nil
}

func (m *memStore) HasSessionReward(_ context.Context, userID, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.audit {
		if t.UserID == userID && t.Operation == model.OpEarn &&
			t.SessionID != nil && *t.SessionID == sessionID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListByUser(_ context.Context, userID string, limit int) ([]*model.CoinTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.CoinTransaction
	for i := len(m.audit) - 1; i >= 0 && len(out) < limit; i-- {
		if m.audit[i].UserID == userID {
			out = append(out, m.audit[i])
		}
	}
	return out, nil
}

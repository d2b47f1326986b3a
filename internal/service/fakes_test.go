package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"cantogame/internal/models"
	"cantogame/internal/repository"
	"cantogame/internal/stats"
)

// memStore is an in-memory implementation of every store interface. Reads
// return copies so callers cannot mutate stored state.
type memStore struct {
	mu sync.Mutex

	decks     map[string]*models.Deck
	words     map[string]models.Word
	deckWords map[string][]string
	sessions  map[string]*models.GameSession
	streaks   map[string]*models.StreakRecord
	errStats  map[[2]string]*models.ErrorStat
	users     map[string]*models.User
	students  map[string][]string

	finalizeErr error
}

func newMemStore() *memStore {
	return &memStore{
		decks:     make(map[string]*models.Deck),
		words:     make(map[string]models.Word),
		deckWords: make(map[string][]string),
		sessions:  make(map[string]*models.GameSession),
		streaks:   make(map[string]*models.StreakRecord),
		errStats:  make(map[[2]string]*models.ErrorStat),
		users:     make(map[string]*models.User),
		students:  make(map[string][]string),
	}
}

func (m *memStore) addDeck(id string, words ...models.Word) {
	m.decks[id] = &models.Deck{ID: id, Name: id}
	for i, w := range words {
		w.DeckID = id
		w.Position = i
		m.words[w.ID] = w
		m.deckWords[id] = append(m.deckWords[id], w.ID)
	}
}

func (m *memStore) addUser(u models.User, teacherID string) {
	m.users[u.ID] = &u
	if teacherID != "" {
		m.students[teacherID] = append(m.students[teacherID], u.ID)
	}
}

func cloneSession(s *models.GameSession) *models.GameSession {
	c := *s
	c.WordIDs = append([]string(nil), s.WordIDs...)
	c.Attempts = make(map[string]*models.Attempt, len(s.Attempts))
	for k, a := range s.Attempts {
		ac := *a
		c.Attempts[k] = &ac
	}
	return &c
}

func (m *memStore) GetDeck(_ context.Context, deckID string) (*models.Deck, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.decks[deckID]
	if !ok {
		return nil, nil
	}
	c := *d
	return &c, nil
}

func (m *memStore) GetWords(_ context.Context, deckID string) ([]models.Word, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Word
	for _, id := range m.deckWords[deckID] {
		out = append(out, m.words[id])
	}
	return out, nil
}

func (m *memStore) GetWordsByIDs(_ context.Context, ids []string) ([]models.Word, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Word
	for _, id := range ids {
		if w, ok := m.words[id]; ok {
			out = append(out, w)
		}
	}
	return out, nil
}

func (m *memStore) GetSession(_ context.Context, id string) (*models.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	return cloneSession(s), nil
}

func (m *memStore) CreateSessionUnlessLive(_ context.Context, s *models.GameSession, since time.Time) (*models.GameSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, live := range m.sessions {
		if live.UserID == s.UserID && live.DeckID == s.DeckID && live.Status == models.SessionInProgress && !live.StartedAt.Before(since) {
			return cloneSession(live), nil
		}
	}
	s.Status = models.SessionInProgress
	m.sessions[s.ID] = cloneSession(s)
	return nil, nil
}

func (m *memStore) SaveAttempt(_ context.Context, a *models.Attempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[a.SessionID]
	if !ok {
		return repository.ErrSessionNotFound
	}
	if s.IsEnded() {
		return repository.ErrSessionEnded
	}
	c := *a
	s.Attempts[a.WordID] = &c
	return nil
}

func (m *memStore) FinalizeSession(_ context.Context, id string, fn repository.FinalizeFunc) (*models.GameSession, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finalizeErr != nil {
		return nil, false, m.finalizeErr
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, false, repository.ErrSessionNotFound
	}
	if s.IsEnded() {
		return cloneSession(s), true, nil
	}

	var current *models.StreakRecord
	if r, ok := m.streaks[s.UserID]; ok {
		c := *r
		current = &c
	}
	fin, err := fn(cloneSession(s), current)
	if err != nil {
		return nil, false, err
	}

	applyDeltas(m.errStats, s.UserID, fin.Deltas)
	if fin.Streak != nil {
		c := *fin.Streak
		m.streaks[s.UserID] = &c
	}

	endedAt := fin.EndedAt.UTC()
	score := fin.Score
	s.Status = models.SessionEnded
	s.EndedAt = &endedAt
	s.Score = &score
	s.EndReason = fin.Reason
	return cloneSession(s), false, nil
}

func applyDeltas(dst map[[2]string]*models.ErrorStat, userID string, deltas []stats.Delta) {
	for _, d := range deltas {
		key := [2]string{userID, d.WordID}
		st, ok := dst[key]
		if !ok {
			st = &models.ErrorStat{WordID: d.WordID}
			dst[key] = st
		}
		st.TotalAttempts += d.Total
		st.IncorrectAttempts += d.Incorrect
	}
}

func (m *memStore) ListAbandoned(_ context.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, s := range m.sessions {
		if s.Status == models.SessionInProgress && s.StartedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memStore) EndedSessions(_ context.Context, userID, deckID string) ([]models.SessionScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.SessionScore
	for _, s := range m.sessions {
		if s.UserID != userID || !s.IsEnded() || (deckID != "" && s.DeckID != deckID) {
			continue
		}
		out = append(out, models.SessionScore{SessionID: s.ID, DeckID: s.DeckID, Score: *s.Score, EndedAt: *s.EndedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndedAt.Before(out[j].EndedAt) })
	return out, nil
}

func (m *memStore) GetStreak(_ context.Context, userID string) (*models.StreakRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.streaks[userID]
	if !ok {
		return nil, nil
	}
	c := *r
	return &c, nil
}

func (m *memStore) WordErrorTotals(_ context.Context, userIDs []string, deckID string) ([]models.ErrorStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if userIDs != nil && len(userIDs) == 0 {
		return nil, nil
	}
	allowed := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		allowed[id] = true
	}

	sums := make(map[string]*models.ErrorStat)
	for key, st := range m.errStats {
		if userIDs != nil && !allowed[key[0]] {
			continue
		}
		if deckID != "" && m.words[key[1]].DeckID != deckID {
			continue
		}
		sum, ok := sums[key[1]]
		if !ok {
			sum = &models.ErrorStat{WordID: key[1]}
			sums[key[1]] = sum
		}
		sum.TotalAttempts += st.TotalAttempts
		sum.IncorrectAttempts += st.IncorrectAttempts
	}

	out := make([]models.ErrorStat, 0, len(sums))
	for _, s := range sums {
		out = append(out, *s)
	}
	return out, nil
}

func (m *memStore) GetUser(_ context.Context, userID string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	c := *u
	return &c, nil
}

func (m *memStore) StudentIDs(_ context.Context, teacherID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.students[teacherID]...), nil
}

func (m *memStore) ListStudents(_ context.Context, teacherID string) ([]models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	if teacherID == "" {
		for id, u := range m.users {
			if u.Role == models.RoleStudent {
				ids = append(ids, id)
			}
		}
	} else {
		ids = append(ids, m.students[teacherID]...)
	}
	sort.Strings(ids)

	out := make([]models.User, 0, len(ids))
	for _, id := range ids {
		out = append(out, *m.users[id])
	}
	return out, nil
}

// clock is a settable time source
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

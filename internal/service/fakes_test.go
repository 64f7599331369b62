package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"dyfl-backend/internal/domain"
	"dyfl-backend/internal/repository"
)

type fakeAPI struct {
	mu        sync.Mutex
	accounts  map[string]string
	ranks     map[string]*domain.RankSet
	rankErr   error
	latest    map[string]string
	latestErr error
	matches   map[string]*domain.MatchSummary
	matchErr  error

	matchCalls int
	rankCalls  int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		accounts: map[string]string{},
		ranks:    map[string]*domain.RankSet{},
		latest:   map[string]string{},
		matches:  map[string]*domain.MatchSummary{},
	}
}

func latestKey(accountID string, queue domain.QueueKind) string {
	return accountID + "/" + string(queue)
}

func (f *fakeAPI) ResolveAccountID(_ context.Context, displayID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.accounts[displayID]
	if !ok {
		return "", errors.New("account not found")
	}
	return id, nil
}

func (f *fakeAPI) FetchRankEntries(_ context.Context, accountID string) (*domain.RankSet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rankCalls++
	if f.rankErr != nil {
		return nil, f.rankErr
	}
	if rs, ok := f.ranks[accountID]; ok {
		return rs, nil
	}
	return &domain.RankSet{}, nil
}

func (f *fakeAPI) FetchLatestMatchID(_ context.Context, accountID string, queue domain.QueueKind) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.latestErr != nil {
		return "", f.latestErr
	}
	return f.latest[latestKey(accountID, queue)], nil
}

func (f *fakeAPI) FetchMatchSummary(_ context.Context, matchID string) (*domain.MatchSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matchCalls++
	if f.matchErr != nil {
		return nil, f.matchErr
	}
	m, ok := f.matches[matchID]
	if !ok {
		return nil, errors.New("match not found")
	}
	return m, nil
}

type fakePlayerStore struct {
	mu          sync.Mutex
	players     map[string]*domain.TrackedPlayer
	referenced  map[string]bool
	listErr     error
	updateErr   error
	updateCalls int
}

func newFakePlayerStore(players ...domain.TrackedPlayer) *fakePlayerStore {
	s := &fakePlayerStore{players: map[string]*domain.TrackedPlayer{}, referenced: map[string]bool{}}
	for i := range players {
		p := players[i]
		s.players[p.DisplayID] = &p
	}
	return s
}

func (s *fakePlayerStore) ListAll(_ context.Context) ([]domain.TrackedPlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]domain.TrackedPlayer, 0, len(s.players))
	for _, p := range s.players {
		out = append(out, *p)
	}
	return out, nil
}

func (s *fakePlayerStore) GetByDisplayID(_ context.Context, displayID string) (*domain.TrackedPlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[displayID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *fakePlayerStore) Create(_ context.Context, p *domain.TrackedPlayer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[p.DisplayID]; ok {
		return repository.ErrAlreadyExists
	}
	cp := *p
	s.players[p.DisplayID] = &cp
	return nil
}

func (s *fakePlayerStore) Update(_ context.Context, displayID string, u domain.PlayerUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	if s.updateErr != nil {
		return s.updateErr
	}
	p, ok := s.players[displayID]
	if !ok {
		return repository.ErrNotFound
	}
	if u.LastMatchID != nil {
		p.LastMatchID = *u.LastMatchID
	}
	if u.LastMatchIDSolo != nil {
		p.LastMatchIDSolo = *u.LastMatchIDSolo
	}
	if u.LastMatchIDFlex != nil {
		p.LastMatchIDFlex = *u.LastMatchIDFlex
	}
	if u.SoloRank != nil {
		p.SoloRank = u.SoloRank
	}
	if u.FlexRank != nil {
		p.FlexRank = u.FlexRank
	}
	p.LastUpdated = time.Now()
	return nil
}

func (s *fakePlayerStore) UpdateAccountID(_ context.Context, displayID, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[displayID]
	if !ok {
		return repository.ErrNotFound
	}
	p.AccountID = accountID
	return nil
}

func (s *fakePlayerStore) DeleteIfUnreferenced(_ context.Context, displayID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[displayID]; !ok || s.referenced[displayID] {
		return false, nil
	}
	delete(s.players, displayID)
	return true, nil
}

func (s *fakePlayerStore) ForceDelete(_ context.Context, displayID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.players[displayID]; !ok {
		return repository.ErrNotFound
	}
	delete(s.players, displayID)
	return nil
}

func (s *fakePlayerStore) get(displayID string) domain.TrackedPlayer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.players[displayID]
}

type fakeNotifier struct {
	mu      sync.Mutex
	defeats []domain.Defeat
	err     error
}

func (n *fakeNotifier) NotifyDefeat(_ context.Context, d domain.Defeat) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.defeats = append(n.defeats, d)
	return n.err
}

type fakeHistory struct {
	mu      sync.Mutex
	records []domain.RankHistory
}

func (h *fakeHistory) Record(_ context.Context, r domain.RankHistory) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *fakeHistory) ListByAccountID(_ context.Context, accountID string, limit int) ([]domain.RankHistory, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []domain.RankHistory
	for _, r := range h.records {
		if r.AccountID == accountID && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []domain.NotificationEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e domain.NotificationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

type fakeFollowers map[string][]domain.User

func (f fakeFollowers) ListFollowers(_ context.Context, displayID string) ([]domain.User, error) {
	return f[displayID], nil
}

func rank(tier domain.Tier, div domain.Division, points int) *domain.Rank {
	return &domain.Rank{Tier: tier, Division: div, Points: points}
}

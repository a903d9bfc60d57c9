package data

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/core"
	"github.com/JuliaLoth/NLWW-socialmediamonitor/internal/domain/model"
	"github.com/google/uuid"
)

// MemoryStore keeps accounts, posts, snapshots, metrics and collection logs in process memory.
// One value implements every domain port; see Stores.
type MemoryStore struct {
	mu           sync.RWMutex
	accounts     map[string]*model.Account
	posts        map[string]map[string]*model.Post // account_id -> platform_post_id -> post
	snapshots    map[string]map[string]*model.FollowerSnapshot
	metrics      map[string]*model.MonthlyMetrics
	logs         []*model.CollectionLog
	timeProvider TimeProvider
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(cfg RepoConfig) *MemoryStore {
	tp, _ := cfg.resolve()
	return &MemoryStore{
		accounts:     map[string]*model.Account{},
		posts:        map[string]map[string]*model.Post{},
		snapshots:    map[string]map[string]*model.FollowerSnapshot{},
		metrics:      map[string]*model.MonthlyMetrics{},
		timeProvider: tp,
	}
}

// Stores exposes the MemoryStore through the domain ports.
func (s *MemoryStore) Stores() core.Stores {
	return core.Stores{
		Accounts:  memAccounts{s},
		Posts:     memPosts{s},
		Followers: memFollowers{s},
		Metrics:   memMetrics{s},
		Logs:      memLogs{s},
	}
}

// CollectionLogs returns a copy of the recorded collection logs.
func (s *MemoryStore) CollectionLogs() []model.CollectionLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CollectionLog, len(s.logs))
	for i, l := range s.logs {
		out[i] = *l
	}
	return out
}

type memAccounts struct{ s *MemoryStore }

func (m memAccounts) Upsert(_ context.Context, a *model.Account) error {
	if a == nil {
		return errors.New("account is required")
	}
	if err := a.Validate(); err != nil {
		return err
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if a.Status == "" {
		a.Status = model.AccountActive
	}
	if existing, ok := m.s.accounts[a.ID]; ok {
		existing.DisplayName = a.DisplayName
		existing.Status = a.Status
		existing.Notes = a.Notes
		return nil
	}
	cp := *a
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = m.s.timeProvider.Now().UTC()
	}
	m.s.accounts[a.ID] = &cp
	return nil
}

func (m memAccounts) GetByID(_ context.Context, id string) (*model.Account, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	a, ok := m.s.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (m memAccounts) List(_ context.Context, opts model.AccountListOptions) ([]*model.Account, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var out []*model.Account
	for _, a := range m.s.accounts {
		if opts.Matches(a) {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].Country != out[k].Country {
			return out[i].Country < out[k].Country
		}
		if out[i].Platform != out[k].Platform {
			return out[i].Platform < out[k].Platform
		}
		return out[i].Handle < out[k].Handle
	})
	return out, nil
}

func (m memAccounts) CountByPlatform(_ context.Context) ([]model.PlatformCount, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	counts := map[model.Platform]int{}
	for _, a := range m.s.accounts {
		if a.Active() {
			counts[a.Platform]++
		}
	}
	out := make([]model.PlatformCount, 0, len(counts))
	for p, n := range counts {
		out = append(out, model.PlatformCount{Platform: p, Count: n})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Platform < out[k].Platform })
	return out, nil
}

type memPosts struct{ s *MemoryStore }

func (m memPosts) Upsert(_ context.Context, posts []*model.Post) (int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	now := m.s.timeProvider.Now().UTC()
	inserted := 0
	for _, p := range posts {
		if p.AccountID == "" || p.PlatformPostID == "" {
			return inserted, errors.New("post requires account_id and platform_post_id")
		}
		byID := m.s.posts[p.AccountID]
		if byID == nil {
			byID = map[string]*model.Post{}
			m.s.posts[p.AccountID] = byID
		}
		if existing, ok := byID[p.PlatformPostID]; ok {
			existing.Likes = p.Likes
			existing.Comments = p.Comments
			existing.Shares = p.Shares
			existing.Views = p.Views
			p.ID = existing.ID
			continue
		}
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.CollectedAt.IsZero() {
			p.CollectedAt = now
		}
		cp := *p
		cp.Hashtags = append([]string(nil), p.Hashtags...)
		byID[p.PlatformPostID] = &cp
		inserted++
	}
	return inserted, nil
}

func (m memPosts) LatestPostedAt(_ context.Context, accountID string) (*time.Time, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var latest *time.Time
	for _, p := range m.s.posts[accountID] {
		if latest == nil || p.PostedAt.After(*latest) {
			t := p.PostedAt
			latest = &t
		}
	}
	return latest, nil
}

func (m memPosts) ListByAccount(_ context.Context, params core.PostRangeParams) ([]*model.Post, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var out []*model.Post
	for _, p := range m.s.posts[params.AccountID] {
		if p.PostedAt.Before(params.From) {
			continue
		}
		if !params.To.IsZero() && !p.PostedAt.Before(params.To) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].PostedAt.Before(out[k].PostedAt) })
	return out, nil
}

func (m memPosts) AccountsWithPostsSince(_ context.Context, since time.Time) ([]string, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var ids []string
	for accountID, byID := range m.s.posts {
		for _, p := range byID {
			if !p.PostedAt.Before(since) {
				ids = append(ids, accountID)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}

type memFollowers struct{ s *MemoryStore }

func (m memFollowers) Upsert(_ context.Context, snap *model.FollowerSnapshot) error {
	if snap == nil || snap.AccountID == "" {
		return ErrAccountIDRequired
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	now := m.s.timeProvider.Now().UTC()
	if snap.Date.IsZero() {
		snap.Date = now
	}
	snap.Date = snapshotDay(snap.Date)
	if snap.CollectedAt.IsZero() {
		snap.CollectedAt = now
	}
	byDay := m.s.snapshots[snap.AccountID]
	if byDay == nil {
		byDay = map[string]*model.FollowerSnapshot{}
		m.s.snapshots[snap.AccountID] = byDay
	}
	day := snap.Date.Format(time.DateOnly)
	if existing, ok := byDay[day]; ok {
		snap.ID = existing.ID
	} else if snap.ID == "" {
		snap.ID = uuid.NewString()
	}
	cp := *snap
	byDay[day] = &cp
	return nil
}

func (m memFollowers) History(_ context.Context, params core.FollowerRangeParams) ([]*model.FollowerSnapshot, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	from, to := snapshotDay(params.From), snapshotDay(params.To)
	var out []*model.FollowerSnapshot
	for _, snap := range m.s.snapshots[params.AccountID] {
		if snap.Date.Before(from) || !snap.Date.Before(to) {
			continue
		}
		cp := *snap
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Date.Before(out[k].Date) })
	return out, nil
}

func (m memFollowers) Latest(_ context.Context, accountID string) (*model.FollowerSnapshot, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var latest *model.FollowerSnapshot
	for _, snap := range m.s.snapshots[accountID] {
		if latest == nil || snap.Date.After(latest.Date) {
			latest = snap
		}
	}
	if latest == nil {
		return nil, nil //nolint:nilnil // absence is not an error
	}
	cp := *latest
	return &cp, nil
}

type memMetrics struct{ s *MemoryStore }

func (m memMetrics) Upsert(_ context.Context, mm *model.MonthlyMetrics) error {
	if mm == nil || mm.AccountID == "" {
		return ErrAccountIDRequired
	}
	if _, err := model.ParseYearMonth(mm.YearMonth); err != nil {
		return ErrInvalidYearMonth
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	mm.ID = model.MonthlyMetricsID(mm.AccountID, mm.YearMonth)
	if mm.CalculatedAt.IsZero() {
		mm.CalculatedAt = m.s.timeProvider.Now().UTC()
	}
	cp := *mm
	m.s.metrics[mm.ID] = &cp
	return nil
}

func (m memMetrics) Get(_ context.Context, accountID, yearMonth string) (*model.MonthlyMetrics, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	mm, ok := m.s.metrics[model.MonthlyMetricsID(accountID, yearMonth)]
	if !ok {
		return nil, nil //nolint:nilnil // absence is not an error
	}
	cp := *mm
	return &cp, nil
}

func (m memMetrics) withAccount(mm *model.MonthlyMetrics) (*model.MetricsWithAccount, bool) {
	a, ok := m.s.accounts[mm.AccountID]
	if !ok {
		return nil, false
	}
	return &model.MetricsWithAccount{
		MonthlyMetrics: *mm,
		Country:        a.Country,
		Platform:       a.Platform,
		Handle:         a.Handle,
	}, true
}

func (m memMetrics) ForMonth(_ context.Context, yearMonth string) ([]*model.MetricsWithAccount, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var out []*model.MetricsWithAccount
	for _, mm := range m.s.metrics {
		if mm.YearMonth != yearMonth {
			continue
		}
		if a, ok := m.s.accounts[mm.AccountID]; !ok || !a.Active() {
			continue
		}
		if row, ok := m.withAccount(mm); ok {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		ei, ek := out[i].AvgEngagementRate, out[k].AvgEngagementRate
		switch {
		case ei == nil && ek == nil:
			return out[i].AccountID < out[k].AccountID
		case ei == nil:
			return false
		case ek == nil:
			return true
		case *ei != *ek:
			return *ei > *ek
		default:
			return out[i].AccountID < out[k].AccountID
		}
	})
	return out, nil
}

func (m memMetrics) ForRange(_ context.Context, fromYM, toYM string) ([]*model.MetricsWithAccount, error) {
	m.s.mu.RLock()
	defer m.s.mu.RUnlock()
	var out []*model.MetricsWithAccount
	for _, mm := range m.s.metrics {
		if mm.YearMonth < fromYM || mm.YearMonth > toYM {
			continue
		}
		if row, ok := m.withAccount(mm); ok {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].YearMonth != out[k].YearMonth {
			return out[i].YearMonth < out[k].YearMonth
		}
		return out[i].AccountID < out[k].AccountID
	})
	return out, nil
}

type memLogs struct{ s *MemoryStore }

func (m memLogs) Insert(_ context.Context, l *model.CollectionLog) error {
	if l == nil || l.AccountID == "" {
		return ErrAccountIDRequired
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	cp := *l
	m.s.logs = append(m.s.logs, &cp)
	return nil
}

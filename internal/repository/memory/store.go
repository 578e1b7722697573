// Package memory provides in-process implementations of the repository
// interfaces. Transactions snapshot the whole store and restore it when the
// transaction function fails.
package memory

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"merchhub/internal/entity"
	"merchhub/internal/repository"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Store struct {
	mu sync.Mutex

	accounts    map[uuid.UUID]entity.Account
	profiles    map[uuid.UUID]entity.Profile
	tokens      map[uuid.UUID]entity.SessionToken
	departments map[int64]entity.Department
	logs        []entity.SecurityLog

	nextProfileID int64
}

func NewStore() *Store {
	return &Store{
		accounts:    make(map[uuid.UUID]entity.Account),
		profiles:    make(map[uuid.UUID]entity.Profile),
		tokens:      make(map[uuid.UUID]entity.SessionToken),
		departments: make(map[int64]entity.Department),
	}
}

type snapshot struct {
	accounts      map[uuid.UUID]entity.Account
	profiles      map[uuid.UUID]entity.Profile
	tokens        map[uuid.UUID]entity.SessionToken
	departments   map[int64]entity.Department
	logs          []entity.SecurityLog
	nextProfileID int64
}

func (s *Store) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	profiles := make(map[uuid.UUID]entity.Profile, len(s.profiles))
	for k, v := range s.profiles {
		profiles[k] = cloneProfile(v)
	}
	return snapshot{
		accounts:      maps.Clone(s.accounts),
		profiles:      profiles,
		tokens:        maps.Clone(s.tokens),
		departments:   maps.Clone(s.departments),
		logs:          slices.Clone(s.logs),
		nextProfileID: s.nextProfileID,
	}
}

func (s *Store) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts = snap.accounts
	s.profiles = snap.profiles
	s.tokens = snap.tokens
	s.departments = snap.departments
	s.logs = snap.logs
	s.nextProfileID = snap.nextProfileID
}

func (s *Store) Accounts() repository.AccountRepository       { return accountRepo{s} }
func (s *Store) Profiles() repository.ProfileRepository       { return profileRepo{s} }
func (s *Store) Tokens() repository.TokenRepository           { return tokenRepo{s} }
func (s *Store) Departments() repository.DepartmentRepository { return departmentRepo{s} }
func (s *Store) SecurityLogs() repository.SecurityLogRepository {
	return securityLogRepo{s}
}
func (s *Store) Transactor() repository.Transactor { return transactor{s} }

// AddDepartment seeds the department directory.
func (s *Store) AddDepartment(d entity.Department) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.departments[d.ID] = d
}

func (s *Store) CountAccounts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accounts)
}

func (s *Store) CountProfiles() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}

func (s *Store) CountTokens(accountID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tokens {
		if t.AccountID == accountID {
			n++
		}
	}
	return n
}

func (s *Store) SecurityActions() []entity.SecurityAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.SecurityAction, 0, len(s.logs))
	for _, l := range s.logs {
		out = append(out, l.Action)
	}
	return out
}

type transactor struct{ s *Store }

func (t transactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := t.s.snapshot()
	if err := fn(ctx); err != nil {
		t.s.restore(snap)
		return err
	}
	return nil
}

type accountRepo struct{ s *Store }

func (r accountRepo) Create(_ context.Context, account *entity.Account) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if strings.EqualFold(a.Email, account.Email) {
			return repository.ErrDuplicate
		}
	}
	if account.ID == uuid.Nil {
		account.ID = uuid.New()
	}
	now := time.Now()
	account.CreatedAt, account.UpdatedAt = now, now
	stored := *account
	stored.Department, stored.Profile, stored.Tokens = nil, nil, nil
	r.s.accounts[account.ID] = stored
	return nil
}

func (r accountRepo) FindByID(_ context.Context, id uuid.UUID) (*entity.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok {
		return nil, nil
	}
	return r.withDepartment(a), nil
}

func (r accountRepo) FindByEmail(_ context.Context, email string) (*entity.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.accounts {
		if a.Email == email {
			return r.withDepartment(a), nil
		}
	}
	return nil, nil
}

func (r accountRepo) withDepartment(a entity.Account) *entity.Account {
	if d, ok := r.s.departments[a.DepartmentID]; ok {
		a.Department = &d
	}
	return &a
}

func (r accountRepo) MarkEmailVerified(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.accounts[id]
	if !ok || a.EmailVerifiedAt != nil {
		return false, nil
	}
	a.EmailVerifiedAt = &at
	a.UpdatedAt = at
	r.s.accounts[id] = a
	return true, nil
}

func (r accountRepo) List(_ context.Context, limit, offset int) ([]entity.Account, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]entity.Account, 0, len(r.s.accounts))
	for _, a := range r.s.accounts {
		out = append(out, *r.withDepartment(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset > 0 {
		if offset >= len(out) {
			return []entity.Account{}, nil
		}
		out = out[offset:]
	}
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

type profileRepo struct{ s *Store }

func (r profileRepo) FindByAccountID(_ context.Context, accountID uuid.UUID) (*entity.Profile, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.profiles[accountID]
	if !ok {
		return nil, nil
	}
	p = cloneProfile(p)
	return &p, nil
}

func (r profileRepo) FindByAccountIDForUpdate(ctx context.Context, accountID uuid.UUID) (*entity.Profile, error) {
	return r.FindByAccountID(ctx, accountID)
}

func (r profileRepo) Create(_ context.Context, profile *entity.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.profiles[profile.AccountID]; ok {
		return nil
	}
	r.s.nextProfileID++
	profile.ID = r.s.nextProfileID
	now := time.Now()
	profile.CreatedAt, profile.UpdatedAt = now, now
	r.s.profiles[profile.AccountID] = cloneProfile(*profile)
	return nil
}

func (r profileRepo) Save(_ context.Context, profile *entity.Profile) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if profile.ID == 0 {
		r.s.nextProfileID++
		profile.ID = r.s.nextProfileID
		profile.CreatedAt = time.Now()
	}
	profile.UpdatedAt = time.Now()
	r.s.profiles[profile.AccountID] = cloneProfile(*profile)
	return nil
}

func cloneProfile(p entity.Profile) entity.Profile {
	if p.Preferences != nil {
		p.Preferences = datatypes.JSONMap(maps.Clone(map[string]any(p.Preferences)))
	}
	if p.Interests != nil {
		p.Interests = slices.Clone(p.Interests)
	}
	if links := p.SocialLinks.Data(); links != nil {
		p.SocialLinks = datatypes.NewJSONType(maps.Clone(links))
	}
	return p
}

type tokenRepo struct{ s *Store }

func (r tokenRepo) Create(_ context.Context, token *entity.SessionToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	token.CreatedAt = time.Now()
	stored := *token
	stored.Account = nil
	r.s.tokens[token.ID] = stored
	return nil
}

func (r tokenRepo) FindByHash(_ context.Context, hash string) (*entity.SessionToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tokens {
		if t.TokenHash == hash {
			return &t, nil
		}
	}
	return nil, nil
}

func (r tokenRepo) Touch(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.tokens[id]; ok {
		t.LastUsedAt = &at
		r.s.tokens[id] = t
	}
	return nil
}

func (r tokenRepo) DeleteAllByAccount(_ context.Context, accountID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, t := range r.s.tokens {
		if t.AccountID == accountID {
			delete(r.s.tokens, id)
			n++
		}
	}
	return n, nil
}

type departmentRepo struct{ s *Store }

func (r departmentRepo) Exists(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.departments[id]
	return ok, nil
}

func (r departmentRepo) List(_ context.Context) ([]entity.Department, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]entity.Department, 0, len(r.s.departments))
	for _, d := range r.s.departments {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type securityLogRepo struct{ s *Store }

func (r securityLogRepo) Log(_ context.Context, log *entity.SecurityLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	log.ID = uuid.New()
	log.CreatedAt = time.Now()
	r.s.logs = append(r.s.logs, *log)
	return nil
}

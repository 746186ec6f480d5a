package repository

import (
	"context"
	"fmt"
	"sync"

	"service_finder/internal/common"
	"service_finder/internal/domain/model"
)

// MemoryStore keeps every collection in process, in insertion order. It
// enforces the same unique keys as the Postgres and Mongo schemas.
type MemoryStore struct {
	mu         sync.RWMutex
	users      []*model.User
	categories []*model.Category
	providers  []*model.ServiceProvider
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Users() UserRepository          { return memoryUsers{s} }
func (s *MemoryStore) Categories() CategoryRepository { return memoryCategories{s} }
func (s *MemoryStore) Providers() ProviderRepository  { return memoryProviders{s} }

// ---- users ----

type memoryUsers struct{ s *MemoryStore }

func (r memoryUsers) indexOf(id string) int {
	for i, u := range r.s.users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

func (r memoryUsers) emailTaken(email, exceptID string) bool {
	for _, u := range r.s.users {
		if u.Email == email && u.ID != exceptID {
			return true
		}
	}
	return false
}

func (r memoryUsers) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.emailTaken(user.Email, "") {
		return fmt.Errorf("user with email %q: %w", user.Email, common.ErrDuplicateEmail)
	}
	cp := *user
	r.s.users = append(r.s.users, &cp)
	return nil
}

func (r memoryUsers) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r memoryUsers) FindByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		cp := *r.s.users[i]
		return &cp, nil
	}
	return nil, common.ErrNotFound
}

func (r memoryUsers) List(_ context.Context) ([]model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, *u)
	}
	return out, nil
}

func (r memoryUsers) Update(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.indexOf(user.ID)
	if i < 0 {
		return common.ErrNotFound
	}
	if r.emailTaken(user.Email, user.ID) {
		return fmt.Errorf("user with email %q: %w", user.Email, common.ErrDuplicateEmail)
	}
	cp := *user
	r.s.users[i] = &cp
	return nil
}

func (r memoryUsers) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return common.ErrNotFound
	}
	r.s.users = append(r.s.users[:i], r.s.users[i+1:]...)
	return nil
}

// ---- categories ----

type memoryCategories struct{ s *MemoryStore }

func (r memoryCategories) indexOf(id string) int {
	for i, c := range r.s.categories {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (r memoryCategories) nameTaken(name, exceptID string) bool {
	for _, c := range r.s.categories {
		if c.Name == name && c.ID != exceptID {
			return true
		}
	}
	return false
}

func (r memoryCategories) Create(_ context.Context, c *model.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.nameTaken(c.Name, "") {
		return fmt.Errorf("category %q: %w", c.Name, common.ErrDuplicateName)
	}
	cp := *c
	r.s.categories = append(r.s.categories, &cp)
	return nil
}

func (r memoryCategories) FindByID(_ context.Context, id string) (*model.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		cp := *r.s.categories[i]
		return &cp, nil
	}
	return nil, common.ErrNotFound
}

func (r memoryCategories) FindByName(_ context.Context, name string) (*model.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, c := range r.s.categories {
		if c.Name == name {
			cp := *c
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r memoryCategories) FindByIDs(_ context.Context, ids []string) ([]model.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	out := []model.Category{}
	for _, c := range r.s.categories {
		if _, ok := want[c.ID]; ok {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r memoryCategories) List(_ context.Context, activeOnly bool) ([]model.Category, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.Category{}
	for _, c := range r.s.categories {
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, *c)
	}
	return out, nil
}

func (r memoryCategories) Update(_ context.Context, c *model.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.indexOf(c.ID)
	if i < 0 {
		return common.ErrNotFound
	}
	if r.nameTaken(c.Name, c.ID) {
		return fmt.Errorf("category %q: %w", c.Name, common.ErrDuplicateName)
	}
	cp := *c
	r.s.categories[i] = &cp
	return nil
}

func (r memoryCategories) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return common.ErrNotFound
	}
	r.s.categories = append(r.s.categories[:i], r.s.categories[i+1:]...)
	return nil
}

// ---- providers ----

type memoryProviders struct{ s *MemoryStore }

func cloneProvider(p *model.ServiceProvider) *model.ServiceProvider {
	cp := *p
	cp.Category = nil
	if p.Contacts != nil {
		cp.Contacts = make([]model.Contact, len(p.Contacts))
		copy(cp.Contacts, p.Contacts)
	}
	cp.Images = cloneStrings(p.Images)
	cp.Services = cloneStrings(p.Services)
	cp.Certifications = cloneStrings(p.Certifications)
	cp.OpeningHours = cloneOpeningHours(p.OpeningHours)
	return &cp
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneOpeningHours(h model.OpeningHours) model.OpeningHours {
	day := func(d *model.DayHours) *model.DayHours {
		if d == nil {
			return nil
		}
		cp := *d
		return &cp
	}
	return model.OpeningHours{
		Monday:    day(h.Monday),
		Tuesday:   day(h.Tuesday),
		Wednesday: day(h.Wednesday),
		Thursday:  day(h.Thursday),
		Friday:    day(h.Friday),
		Saturday:  day(h.Saturday),
		Sunday:    day(h.Sunday),
	}
}

func (r memoryProviders) indexOf(id string) int {
	for i, p := range r.s.providers {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (r memoryProviders) Create(_ context.Context, p *model.ServiceProvider) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.providers = append(r.s.providers, cloneProvider(p))
	return nil
}

func (r memoryProviders) FindByID(_ context.Context, id string) (*model.ServiceProvider, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if i := r.indexOf(id); i >= 0 {
		return cloneProvider(r.s.providers[i]), nil
	}
	return nil, common.ErrNotFound
}

func (r memoryProviders) List(_ context.Context, filter ProviderFilter) ([]model.ServiceProvider, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []model.ServiceProvider{}
	for _, p := range r.s.providers {
		if filter.CategoryID != "" && p.CategoryID != filter.CategoryID {
			continue
		}
		if filter.AvailableOnly && !p.IsAvailable {
			continue
		}
		if filter.Box != nil && !filter.Box.Contains(p.Location) {
			continue
		}
		out = append(out, *cloneProvider(p))
	}
	return out, nil
}

func (r memoryProviders) Update(_ context.Context, p *model.ServiceProvider) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.indexOf(p.ID)
	if i < 0 {
		return common.ErrNotFound
	}
	r.s.providers[i] = cloneProvider(p)
	return nil
}

func (r memoryProviders) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.indexOf(id)
	if i < 0 {
		return common.ErrNotFound
	}
	r.s.providers = append(r.s.providers[:i], r.s.providers[i+1:]...)
	return nil
}

func (r memoryProviders) CountByCategory(_ context.Context, categoryID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, p := range r.s.providers {
		if p.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

package repositories

import (
	"context"
	"sort"
	"strings"
	"sync"

	"mithai/internal/models"
)

// MemorySweetRepository is an in-memory implementation of SweetRepository.
// A single mutex serializes every stock change.
type MemorySweetRepository struct {
	sweets map[uint]models.Sweet
	nextID uint
	mu     sync.RWMutex
}

// NewMemorySweetRepository creates a new instance of MemorySweetRepository.
func NewMemorySweetRepository() *MemorySweetRepository {
	return &MemorySweetRepository{
		sweets: make(map[uint]models.Sweet),
		nextID: 1,
	}
}

// List returns all sweets ordered by name.
func (r *MemorySweetRepository) List(ctx context.Context) ([]models.Sweet, error) {
	return r.Search(ctx, models.SearchFilter{})
}

// Search returns the sweets matching the filter ordered by name.
func (r *MemorySweetRepository) Search(_ context.Context, f models.SearchFilter) ([]models.Sweet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	text := strings.ToLower(strings.TrimSpace(f.Text))
	out := make([]models.Sweet, 0, len(r.sweets))
	for _, s := range r.sweets {
		if text != "" &&
			!strings.Contains(strings.ToLower(s.Name), text) &&
			!strings.Contains(strings.ToLower(s.Category), text) {
			continue
		}
		if f.Category != "" && s.Category != f.Category {
			continue
		}
		if f.MaxPrice != nil && s.Price > *f.MaxPrice {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Categories returns the distinct categories in ascending order.
func (r *MemorySweetRepository) Categories(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	out := []string{}
	for _, s := range r.sweets {
		if _, ok := seen[s.Category]; ok {
			continue
		}
		seen[s.Category] = struct{}{}
		out = append(out, s.Category)
	}
	sort.Strings(out)
	return out, nil
}

// GetByID returns a sweet by its ID.
func (r *MemorySweetRepository) GetByID(_ context.Context, id uint) (*models.Sweet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sweets[id]
	if !ok {
		return nil, models.ErrSweetNotFound
	}
	return &s, nil
}

// Count returns the number of sweets.
func (r *MemorySweetRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.sweets)), nil
}

// Create adds a new sweet.
func (r *MemorySweetRepository) Create(_ context.Context, sweet *models.Sweet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sweet.ID == 0 {
		sweet.ID = r.nextID
	}
	if sweet.ID >= r.nextID {
		r.nextID = sweet.ID + 1
	}
	r.sweets[sweet.ID] = *sweet
	return nil
}

// Update coalesces the patch onto the stored sweet.
func (r *MemorySweetRepository) Update(_ context.Context, id uint, patch models.SweetPatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sweets[id]
	if !ok {
		return models.ErrSweetNotFound
	}
	if patch.Name != nil {
		s.Name = *patch.Name
	}
	if patch.Category != nil {
		s.Category = *patch.Category
	}
	if patch.Price != nil {
		s.Price = *patch.Price
	}
	if patch.Description != nil {
		s.Description = *patch.Description
	}
	r.sweets[id] = s
	return nil
}

// Delete removes a sweet by its ID.
func (r *MemorySweetRepository) Delete(_ context.Context, id uint) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.sweets[id]
	delete(r.sweets, id)
	return ok, nil
}

// Purchase decrements stock only if enough is available.
func (r *MemorySweetRepository) Purchase(_ context.Context, id uint, quantity int) (models.StockResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkLocked(id, quantity); err != nil {
		return models.StockResult{}, err
	}
	return r.applyLocked(id, quantity), nil
}

// Restock increments stock and returns the new quantity.
func (r *MemorySweetRepository) Restock(_ context.Context, id uint, amount int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sweets[id]
	if !ok {
		return 0, models.ErrSweetNotFound
	}
	s.Quantity += amount
	r.sweets[id] = s
	return s.Quantity, nil
}

// Checkout validates every line before applying any of them.
func (r *MemorySweetRepository) Checkout(_ context.Context, lines []models.StockLine) ([]models.StockResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	merged := mergeLines(lines)
	for _, line := range merged {
		if err := r.checkLocked(line.SweetID, line.Quantity); err != nil {
			return nil, err
		}
	}
	results := make([]models.StockResult, 0, len(merged))
	for _, line := range merged {
		results = append(results, r.applyLocked(line.SweetID, line.Quantity))
	}
	return results, nil
}

func (r *MemorySweetRepository) checkLocked(id uint, quantity int) error {
	s, ok := r.sweets[id]
	if !ok {
		return models.ErrSweetNotFound
	}
	if s.Quantity < quantity {
		return insufficient(s.Quantity)
	}
	return nil
}

func (r *MemorySweetRepository) applyLocked(id uint, quantity int) models.StockResult {
	s := r.sweets[id]
	s.Quantity -= quantity
	r.sweets[id] = s
	return models.StockResult{
		SweetID:   s.ID,
		Name:      s.Name,
		Quantity:  quantity,
		Price:     s.Price,
		Remaining: s.Quantity,
	}
}

package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"mithai/internal/models"
)

// GORMSweetRepository is a GORM implementation of SweetRepository.
type GORMSweetRepository struct {
	db *gorm.DB
}

// NewGORMSweetRepository creates a new instance of GORMSweetRepository.
func NewGORMSweetRepository(db *gorm.DB) *GORMSweetRepository {
	return &GORMSweetRepository{db: db}
}

// List retrieves all sweets ordered by name.
func (r *GORMSweetRepository) List(ctx context.Context) ([]models.Sweet, error) {
	sweets := []models.Sweet{}
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&sweets).Error; err != nil {
		return nil, storeErr("failed to list sweets", err)
	}
	return sweets, nil
}

// Search matches the filter text against name or category, case-insensitively.
func (r *GORMSweetRepository) Search(ctx context.Context, f models.SearchFilter) ([]models.Sweet, error) {
	q := r.db.WithContext(ctx).Model(&models.Sweet{})
	if text := strings.TrimSpace(f.Text); text != "" {
		pattern := "%" + escapeLike(strings.ToLower(text)) + "%"
		q = q.Where(`(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(category) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	if f.Category != "" {
		q = q.Where("category = ?", f.Category)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}

	sweets := []models.Sweet{}
	if err := q.Order("name ASC").Find(&sweets).Error; err != nil {
		return nil, storeErr("failed to search sweets", err)
	}
	return sweets, nil
}

// Categories returns the distinct categories in ascending order.
func (r *GORMSweetRepository) Categories(ctx context.Context) ([]string, error) {
	categories := []string{}
	err := r.db.WithContext(ctx).Model(&models.Sweet{}).
		Distinct("category").
		Order("category ASC").
		Pluck("category", &categories).Error
	if err != nil {
		return nil, storeErr("failed to list categories", err)
	}
	return categories, nil
}

// GetByID retrieves a single sweet.
func (r *GORMSweetRepository) GetByID(ctx context.Context, id uint) (*models.Sweet, error) {
	return findSweet(r.db.WithContext(ctx), id)
}

// Count returns the number of catalog rows.
func (r *GORMSweetRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.Sweet{}).Count(&n).Error; err != nil {
		return 0, storeErr("failed to count sweets", err)
	}
	return n, nil
}

// Create inserts a sweet and fills in its new ID.
func (r *GORMSweetRepository) Create(ctx context.Context, sweet *models.Sweet) error {
	if err := r.db.WithContext(ctx).Create(sweet).Error; err != nil {
		return storeErr("failed to create sweet", err)
	}
	return nil
}

// Update coalesces the patch onto the stored row.
func (r *GORMSweetRepository) Update(ctx context.Context, id uint, patch models.SweetPatch) error {
	db := r.db.WithContext(ctx)
	if patch.Empty() {
		_, err := findSweet(db, id)
		return err
	}

	changes := map[string]any{}
	if patch.Name != nil {
		changes["name"] = *patch.Name
	}
	if patch.Category != nil {
		changes["category"] = *patch.Category
	}
	if patch.Price != nil {
		changes["price"] = *patch.Price
	}
	if patch.Description != nil {
		changes["description"] = *patch.Description
	}

	res := db.Model(&models.Sweet{}).Where("id = ?", id).Updates(changes)
	if res.Error != nil {
		return storeErr(fmt.Sprintf("failed to update sweet %d", id), res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrSweetNotFound
	}
	return nil
}

// Delete removes a sweet and reports whether a row existed.
func (r *GORMSweetRepository) Delete(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&models.Sweet{}, id)
	if res.Error != nil {
		return false, storeErr(fmt.Sprintf("failed to delete sweet %d", id), res.Error)
	}
	return res.RowsAffected > 0, nil
}

// Purchase decrements stock only if enough is available.
func (r *GORMSweetRepository) Purchase(ctx context.Context, id uint, quantity int) (models.StockResult, error) {
	var result models.StockResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = decrement(tx, id, quantity)
		return err
	})
	return result, err
}

// Restock increments stock and returns the new quantity.
func (r *GORMSweetRepository) Restock(ctx context.Context, id uint, amount int) (int, error) {
	var remaining int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Sweet{}).
			Where("id = ?", id).
			Update("quantity", gorm.Expr("quantity + ?", amount))
		if res.Error != nil {
			return storeErr(fmt.Sprintf("failed to restock sweet %d", id), res.Error)
		}
		if res.RowsAffected == 0 {
			return models.ErrSweetNotFound
		}
		sweet, err := findSweet(tx, id)
		if err != nil {
			return err
		}
		remaining = sweet.Quantity
		return nil
	})
	return remaining, err
}

// Checkout applies every line or none of them.
func (r *GORMSweetRepository) Checkout(ctx context.Context, lines []models.StockLine) ([]models.StockResult, error) {
	var results []models.StockResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		results = make([]models.StockResult, 0, len(lines))
		for _, line := range mergeLines(lines) {
			res, err := decrement(tx, line.SweetID, line.Quantity)
			if err != nil {
				return fmt.Errorf("sweet %d: %w", line.SweetID, err)
			}
			results = append(results, res)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// decrement is the conditional write behind Purchase and Checkout. The
// quantity guard sits in the UPDATE's WHERE clause, so the check and the
// write are one statement.
func decrement(tx *gorm.DB, id uint, quantity int) (models.StockResult, error) {
	res := tx.Model(&models.Sweet{}).
		Where("id = ? AND quantity >= ?", id, quantity).
		Update("quantity", gorm.Expr("quantity - ?", quantity))
	if res.Error != nil {
		return models.StockResult{}, storeErr(fmt.Sprintf("failed to decrement sweet %d", id), res.Error)
	}

	sweet, err := findSweet(tx, id)
	if err != nil {
		return models.StockResult{}, err
	}
	if res.RowsAffected == 0 {
		return models.StockResult{}, insufficient(sweet.Quantity)
	}
	return models.StockResult{
		SweetID:   sweet.ID,
		Name:      sweet.Name,
		Quantity:  quantity,
		Price:     sweet.Price,
		Remaining: sweet.Quantity,
	}, nil
}

func findSweet(db *gorm.DB, id uint) (*models.Sweet, error) {
	var sweet models.Sweet
	if err := db.First(&sweet, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.ErrSweetNotFound
		}
		return nil, storeErr(fmt.Sprintf("failed to get sweet %d", id), err)
	}
	return &sweet, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

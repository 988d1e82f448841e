package repositories

import (
	"context"

	"mithai/internal/models"
)

// SweetRepository defines the interface for inventory data access.
//
// Purchase, Restock and Checkout must each apply their stock change as one
// atomic step: a concurrent caller can never observe or act on a quantity
// that another caller is about to change.
type SweetRepository interface {
	List(ctx context.Context) ([]models.Sweet, error)
	Search(ctx context.Context, filter models.SearchFilter) ([]models.Sweet, error)
	Categories(ctx context.Context) ([]string, error)
	GetByID(ctx context.Context, id uint) (*models.Sweet, error)
	Count(ctx context.Context) (int64, error)
	Create(ctx context.Context, sweet *models.Sweet) error
	Update(ctx context.Context, id uint, patch models.SweetPatch) error
	Delete(ctx context.Context, id uint) (bool, error)

	Purchase(ctx context.Context, id uint, quantity int) (models.StockResult, error)
	Restock(ctx context.Context, id uint, amount int) (int, error)
	Checkout(ctx context.Context, lines []models.StockLine) ([]models.StockResult, error)
}

package services_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mithai/internal/models"
	"mithai/internal/services"
)

// MockSweetRepository is a mock implementation of repositories.SweetRepository
type MockSweetRepository struct {
	mock.Mock
}

func (m *MockSweetRepository) List(ctx context.Context) ([]models.Sweet, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Sweet), args.Error(1)
}

func (m *MockSweetRepository) Search(ctx context.Context, f models.SearchFilter) ([]models.Sweet, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]models.Sweet), args.Error(1)
}

func (m *MockSweetRepository) Categories(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockSweetRepository) GetByID(ctx context.Context, id uint) (*models.Sweet, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Sweet), args.Error(1)
}

func (m *MockSweetRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSweetRepository) Create(ctx context.Context, sweet *models.Sweet) error {
	args := m.Called(ctx, sweet)
	return args.Error(0)
}

func (m *MockSweetRepository) Update(ctx context.Context, id uint, patch models.SweetPatch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}

func (m *MockSweetRepository) Delete(ctx context.Context, id uint) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockSweetRepository) Purchase(ctx context.Context, id uint, quantity int) (models.StockResult, error) {
	args := m.Called(ctx, id, quantity)
	return args.Get(0).(models.StockResult), args.Error(1)
}

func (m *MockSweetRepository) Restock(ctx context.Context, id uint, amount int) (int, error) {
	args := m.Called(ctx, id, amount)
	return args.Int(0), args.Error(1)
}

func (m *MockSweetRepository) Checkout(ctx context.Context, lines []models.StockLine) ([]models.StockResult, error) {
	args := m.Called(ctx, lines)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.StockResult), args.Error(1)
}

// MockPublisher records published inventory events.
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishInventoryEvent(ctx context.Context, ev models.InventoryEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

var admin = models.Identity{ID: 1, Email: "admin@mithai.com", Role: models.RoleAdmin}

func eventOfType(kind models.EventType) any {
	return mock.MatchedBy(func(ev models.InventoryEvent) bool { return ev.Type == kind && ev.ID != "" })
}

func TestSweetService_List(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSweetRepository)
	service := services.NewSweetService(repo, nil, zerolog.Nop())

	expected := []models.Sweet{{ID: 1, Name: "Kaju Katli"}, {ID: 2, Name: "Masala Chai Mix"}}
	repo.On("List", ctx).Return(expected, nil).Once()

	sweets, err := service.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, expected, sweets)
	repo.AssertExpectations(t)
}

func TestSweetService_Create(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSweetRepository)
	pub := new(MockPublisher)
	service := services.NewSweetService(repo, pub, zerolog.Nop())

	sweet := &models.Sweet{ID: 99, Name: "Rasmalai", Category: "Mithai", Price: 300, Quantity: 12}
	repo.On("Create", ctx, sweet).Run(func(args mock.Arguments) {
		s := args.Get(1).(*models.Sweet)
		assert.Zero(t, s.ID, "caller-supplied id is discarded")
		s.ID = 6
	}).Return(nil).Once()
	pub.On("PublishInventoryEvent", ctx, eventOfType(models.EventSweetCreated)).Return(nil).Once()

	require.NoError(t, service.Create(ctx, admin, sweet))
	assert.Equal(t, uint(6), sweet.ID)

	// values are stored as given
	odd := &models.Sweet{Name: "Odd", Price: -5, Quantity: -1}
	repo.On("Create", ctx, odd).Return(nil).Once()
	pub.On("PublishInventoryEvent", ctx, eventOfType(models.EventSweetCreated)).Return(nil).Once()
	require.NoError(t, service.Create(ctx, admin, odd))

	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestSweetService_Update(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSweetRepository)
	pub := new(MockPublisher)
	service := services.NewSweetService(repo, pub, zerolog.Nop())

	price := 900.0
	patch := models.SweetPatch{Price: &price}
	repo.On("Update", ctx, uint(1), patch).Return(nil).Once()
	pub.On("PublishInventoryEvent", ctx, eventOfType(models.EventSweetUpdated)).Return(nil).Once()
	require.NoError(t, service.Update(ctx, admin, 1, patch))

	// Empty patch still succeeds and publishes nothing.
	repo.On("Update", ctx, uint(1), models.SweetPatch{}).Return(nil).Once()
	require.NoError(t, service.Update(ctx, admin, 1, models.SweetPatch{}))

	repo.On("Update", ctx, uint(99), patch).Return(models.ErrSweetNotFound).Once()
	assert.ErrorIs(t, service.Update(ctx, admin, 99, patch), models.ErrSweetNotFound)

	negative := -1.0
	repo.On("Update", ctx, uint(1), models.SweetPatch{Price: &negative}).Return(nil).Once()
	pub.On("PublishInventoryEvent", ctx, eventOfType(models.EventSweetUpdated)).Return(nil).Once()
	require.NoError(t, service.Update(ctx, admin, 1, models.SweetPatch{Price: &negative}))

	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestSweetService_Delete(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSweetRepository)
	pub := new(MockPublisher)
	service := services.NewSweetService(repo, pub, zerolog.Nop())

	repo.On("Delete", ctx, uint(1)).Return(true, nil).Once()
	pub.On("PublishInventoryEvent", ctx, eventOfType(models.EventSweetDeleted)).Return(nil).Once()
	assert.NoError(t, service.Delete(ctx, admin, 1))

	repo.On("Delete", ctx, uint(2)).Return(false, nil).Once()
	assert.NoError(t, service.Delete(ctx, admin, 2))

	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestSweetService_Purchase(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSweetRepository)
	pub := new(MockPublisher)
	service := services.NewSweetService(repo, pub, zerolog.Nop())
	buyer := models.Identity{ID: 2, Email: "buyer@mithai.com", Role: models.RoleUser}

	repo.On("Purchase", ctx, uint(1), 5).Return(models.StockResult{SweetID: 1, Name: "Kaju Katli", Quantity: 5, Remaining: 15}, nil).Once()
	pub.On("PublishInventoryEvent", ctx, mock.MatchedBy(func(ev models.InventoryEvent) bool {
		return ev.Type == models.EventPurchased && ev.Actor == "buyer@mithai.com" &&
			ev.Remaining != nil && *ev.Remaining == 15 && ev.Quantity == 5
	})).Return(nil).Once()

	res, err := service.Purchase(ctx, buyer, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 15, res.Remaining)

	repo.On("Purchase", ctx, uint(1), 20).Return(models.StockResult{}, fmt.Errorf("%w: only 15 left", models.ErrInsufficientStock)).Once()
	_, err = service.Purchase(ctx, buyer, 1, 20)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	for _, q := range []int{0, -3} {
		_, err = service.Purchase(ctx, buyer, 1, q)
		assert.ErrorIs(t, err, models.ErrInvalidAmount)
	}

	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestSweetService_PurchaseSurvivesPublishFailure(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSweetRepository)
	pub := new(MockPublisher)
	service := services.NewSweetService(repo, pub, zerolog.Nop())

	repo.On("Purchase", ctx, uint(1), 1).Return(models.StockResult{SweetID: 1, Quantity: 1, Remaining: 4}, nil).Once()
	pub.On("PublishInventoryEvent", ctx, mock.Anything).Return(errors.New("broker down")).Once()

	res, err := service.Purchase(ctx, admin, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Remaining)
}

func TestSweetService_Restock(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSweetRepository)
	pub := new(MockPublisher)
	service := services.NewSweetService(repo, pub, zerolog.Nop())

	repo.On("Restock", ctx, uint(1), 5).Return(20, nil).Once()
	pub.On("PublishInventoryEvent", ctx, eventOfType(models.EventRestocked)).Return(nil).Once()

	remaining, err := service.Restock(ctx, admin, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, 20, remaining)

	for _, amount := range []int{0, -5, services.MaxRestockAmount + 1} {
		_, err = service.Restock(ctx, admin, 1, amount)
		assert.ErrorIs(t, err, models.ErrInvalidAmount)
	}

	repo.On("Restock", ctx, uint(9), 5).Return(0, models.ErrSweetNotFound).Once()
	_, err = service.Restock(ctx, admin, 9, 5)
	assert.ErrorIs(t, err, models.ErrSweetNotFound)

	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestSweetService_Checkout(t *testing.T) {
	ctx := context.Background()
	repo := new(MockSweetRepository)
	pub := new(MockPublisher)
	service := services.NewSweetService(repo, pub, zerolog.Nop())

	lines := []models.StockLine{{SweetID: 1, Quantity: 2}, {SweetID: 4, Quantity: 1}}
	repo.On("Checkout", ctx, lines).Return([]models.StockResult{
		{SweetID: 1, Name: "Kaju Katli", Quantity: 2, Price: 850, Remaining: 18},
		{SweetID: 4, Name: "Dark Hazelnut Bar", Quantity: 1, Price: 150.5, Remaining: 49},
	}, nil).Once()
	pub.On("PublishInventoryEvent", ctx, eventOfType(models.EventCheckedOut)).Return(nil).Twice()

	receipt, err := service.Checkout(ctx, admin, lines)
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.OrderRef)
	assert.Len(t, receipt.Lines, 2)
	assert.InDelta(t, 1850.5, receipt.Total, 0.001)

	_, err = service.Checkout(ctx, admin, nil)
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = service.Checkout(ctx, admin, []models.StockLine{{SweetID: 1, Quantity: 0}})
	assert.ErrorIs(t, err, models.ErrInvalidAmount)

	failing := []models.StockLine{{SweetID: 5, Quantity: 100}}
	repo.On("Checkout", ctx, failing).Return(nil, models.ErrInsufficientStock).Once()
	_, err = service.Checkout(ctx, admin, failing)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)

	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

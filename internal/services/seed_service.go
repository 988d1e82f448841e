package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"mithai/internal/models"
	"mithai/internal/repositories"
)

// DefaultCatalog is inserted into an empty store.
var DefaultCatalog = []models.Sweet{
	{Name: "Kaju Katli", Category: "Mithai", Price: 850.00, Quantity: 20, Description: "Premium diamond-shaped cashew fudge with silver leaf."},
	{Name: "Gulab Jamun (1kg)", Category: "Mithai", Price: 350.00, Quantity: 15, Description: "Soft berry-sized balls dunked in rose flavored sugar syrup."},
	{Name: "Motichoor Ladoo", Category: "Mithai", Price: 400.00, Quantity: 30, Description: "Tiny droplets of chickpea flour fried and dipped in syrup."},
	{Name: "Dark Hazelnut Bar", Category: "Chocolate", Price: 150.00, Quantity: 50, Description: "70% Cocoa with roasted hazelnuts."},
	{Name: "Masala Chai Mix", Category: "Beverage", Price: 250.00, Quantity: 40, Description: "Authentic spice blend for the perfect tea."},
}

// Seeder performs first-run initialization. Running it again is a no-op.
type Seeder struct {
	auth   *AuthService
	sweets repositories.SweetRepository
	log    zerolog.Logger
}

// NewSeeder creates a new Seeder.
func NewSeeder(auth *AuthService, sweets repositories.SweetRepository, log zerolog.Logger) *Seeder {
	return &Seeder{auth: auth, sweets: sweets, log: log}
}

// Seed creates the admin credential if its email is absent and inserts the
// default catalog if the sweets table is empty.
func (s *Seeder) Seed(ctx context.Context, adminEmail, adminPassword string) error {
	if adminEmail != "" {
		created, err := s.auth.EnsureUser(ctx, adminEmail, adminPassword, models.RoleAdmin)
		if err != nil {
			return fmt.Errorf("failed to seed admin user: %w", err)
		}
		if created {
			s.log.Info().Str("email", adminEmail).Msg("admin user created")
		}
	}

	n, err := s.sweets.Count(ctx)
	if err != nil {
		return fmt.Errorf("failed to count sweets: %w", err)
	}
	if n > 0 {
		return nil
	}

	s.log.Info().Int("items", len(DefaultCatalog)).Msg("seeding database with initial inventory")
	for _, item := range DefaultCatalog {
		sweet := item
		if err := s.sweets.Create(ctx, &sweet); err != nil {
			return fmt.Errorf("failed to seed sweet %s: %w", item.Name, err)
		}
	}
	return nil
}

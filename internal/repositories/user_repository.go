package repositories

import "stockmaster/internal/models"

// UserRepository defines the interface for account data access. GetByUsername
// backs login, GetByEmail backs registration dup checks, and GetByID resolves
// the bearer principal behind /api/auth/me.
type UserRepository interface {
	Create(user *models.User) error
	GetByUsername(username string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByID(id string) (*models.User, error)
}

package handlers

import (
	"context"
	"database/sql"

	"github.com/chepyr/go-task-sync/shared/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// in-memory user repo with error injection for auth handler tests
type MockUserRepository struct {
	usersByEmail map[string]*models.User
	createErr    error
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{usersByEmail: make(map[string]*models.User)}
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.usersByEmail[user.Email] = user
	return nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, ok := m.usersByEmail[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	for _, user := range m.usersByEmail {
		if user.ID.String() == id {
			return user, nil
		}
	}
	return nil, sql.ErrNoRows
}

// setupMockUser returns a repo holding one user with the given
// credentials already hashed
func setupMockUser(email, password string) *MockUserRepository {
	repo := NewMockUserRepository()
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	repo.usersByEmail[email] = &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hash),
	}
	return repo
}

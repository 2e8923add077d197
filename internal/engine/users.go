package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"

	"opsportal/internal/domain"
	"opsportal/internal/repo"
)

type UserInput struct {
	ID    string `json:"id" validate:"required"`
	Email string `json:"email,omitempty" validate:"omitempty,email"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role" validate:"required,oneof=admin pm dev qa viewer"`
}

func (e Engine) AddUser(ctx context.Context, in UserInput) (domain.User, error) {
	in.ID = strings.TrimSpace(in.ID)
	if err := Validate(in); err != nil {
		return domain.User{}, err
	}
	u := domain.User{ID: in.ID, Email: in.Email, Name: in.Name, Role: in.Role, CreatedAt: e.timestamp()}
	if err := e.Repo.UpsertUser(ctx, nil, u); err != nil {
		return domain.User{}, err
	}
	return e.Repo.GetUser(ctx, nil, u.ID)
}

// CreateAPIKey issues a new key for userID. The plain key is returned once;
// only its hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, userID, name string) (string, domain.APIKey, error) {
	if _, err := e.Repo.GetUser(ctx, nil, userID); err != nil {
		return "", domain.APIKey{}, err
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", domain.APIKey{}, err
	}
	plain := "ops_" + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: e.timestamp(),
	}
	if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
		return "", domain.APIKey{}, err
	}
	return plain, key, nil
}

package identity

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/supplemate/api/internal/platform/apperror"
)

type Service struct {
	users UserRepository
}

func NewService(users UserRepository) *Service {
	return &Service{users: users}
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// GetDoctor returns the user only if it is a doctor.
func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role != RoleDoctor {
		return nil, apperror.NotFound("doctor not found")
	}
	return u, nil
}

// SearchDoctors matches doctors by name or clinic, for autocomplete.
func (s *Service) SearchDoctors(ctx context.Context, query string, limit, offset int) ([]*User, int, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, 0, apperror.Validation("query is required")
	}
	return s.users.SearchDoctors(ctx, query, limit, offset)
}

package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/capsula-erp/capsula/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	Exists(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, u User) (User, error)
}

// Service handles account provisioning.
type Service struct {
	repo     RepositoryPort
	logger   *slog.Logger
	validate *shared.Validator
	cost     int
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, validate: shared.NewValidator(), cost: bcrypt.DefaultCost}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.ListUsers(ctx)
	if users == nil {
		users = []User{}
	}
	return users, err
}

// Provision creates every account whose username is free. Existing accounts
// are left untouched, so running it twice is harmless.
func (s *Service) Provision(ctx context.Context, accounts []Account) (Report, error) {
	report := Report{Created: []string{}, Skipped: []string{}}
	for _, acc := range accounts {
		acc.Username = strings.TrimSpace(acc.Username)
		if err := s.validate.Struct(acc); err != nil {
			return report, fmt.Errorf("account %q: %w", acc.Username, err)
		}
		exists, err := s.repo.Exists(ctx, acc.Username)
		if err != nil {
			return report, err
		}
		if exists {
			report.Skipped = append(report.Skipped, acc.Username)
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(acc.Password), s.cost)
		if err != nil {
			return report, fmt.Errorf("hash password for %q: %w", acc.Username, err)
		}
		_, err = s.repo.Create(ctx, User{
			Username:     acc.Username,
			Email:        acc.Email,
			IsAdmin:      acc.IsAdmin,
			PasswordHash: string(hash),
		})
		if errors.Is(err, shared.ErrDuplicate) {
			report.Skipped = append(report.Skipped, acc.Username)
			continue
		}
		if err != nil {
			return report, err
		}
		s.logger.Info("user provisioned", slog.String("username", acc.Username), slog.Bool("admin", acc.IsAdmin))
		report.Created = append(report.Created, acc.Username)
	}
	return report, nil
}

package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/capsula-erp/capsula/internal/shared"
)

type memoryRepo struct {
	users   []User
	failOn  string
	raceOn  string
	created int
}

func (m *memoryRepo) ListUsers(context.Context) ([]User, error) {
	return m.users, nil
}

func (m *memoryRepo) Exists(_ context.Context, username string) (bool, error) {
	if username == m.failOn {
		return false, errors.New("connection refused")
	}
	for _, u := range m.users {
		if u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryRepo) Create(_ context.Context, u User) (User, error) {
	if u.Username == m.raceOn {
		return User{}, shared.ErrDuplicate
	}
	m.created++
	u.ID = int64(len(m.users) + 1)
	u.CreatedAt = time.Now()
	m.users = append(m.users, u)
	return u, nil
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil)
	svc.cost = bcrypt.MinCost
	return svc
}

func TestProvisionCreatesDevAccountsOnce(t *testing.T) {
	repo := &memoryRepo{}
	svc := newTestService(repo)
	ctx := context.Background()

	report, err := svc.Provision(ctx, DevAccounts())
	require.NoError(t, err)
	require.Equal(t, []string{"user1", "operador", "farmaceutico", "admin", "admin2"}, report.Created)
	require.Empty(t, report.Skipped)

	admins := 0
	for _, u := range repo.users {
		require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(DefaultPassword)))
		if u.IsAdmin {
			admins++
		}
	}
	require.Equal(t, 2, admins)

	report, err = svc.Provision(ctx, DevAccounts())
	require.NoError(t, err)
	require.Empty(t, report.Created)
	require.Len(t, report.Skipped, 5)
	require.Equal(t, 5, repo.created)
}

func TestProvisionSkipsConcurrentDuplicate(t *testing.T) {
	repo := &memoryRepo{raceOn: "operador"}
	report, err := newTestService(repo).Provision(context.Background(), DevAccounts()[:2])
	require.NoError(t, err)
	require.Equal(t, []string{"user1"}, report.Created)
	require.Equal(t, []string{"operador"}, report.Skipped)
}

func TestProvisionStopsOnErrors(t *testing.T) {
	svc := newTestService(&memoryRepo{})
	_, err := svc.Provision(context.Background(), []Account{{Username: "x", Password: "short"}})
	require.ErrorIs(t, err, shared.ErrValidation)

	repo := &memoryRepo{failOn: "operador"}
	report, err := newTestService(repo).Provision(context.Background(), DevAccounts())
	require.Error(t, err)
	require.Equal(t, []string{"user1"}, report.Created)
}

func TestHandlerListOmitsHashes(t *testing.T) {
	repo := &memoryRepo{}
	svc := newTestService(repo)
	_, err := svc.Provision(context.Background(), DevAccounts()[3:4])
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Route("/api/users", NewHandler(nil, svc).MountRoutes)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "$2a$")

	var out struct {
		Items []User `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out.Items, 1)
	require.Equal(t, "admin", out.Items[0].Username)
	require.True(t, out.Items[0].IsAdmin)
}

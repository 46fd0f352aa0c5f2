package httpapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"medshop/backend/internal/domain"
	"medshop/backend/internal/store"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users == nil {
		s.users = make(map[string]domain.UserAccount)
	}
	s.users[user.Username] = user
	return nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

const testSecret = "test-secret-key-with-enough-length!!"

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	users := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Role:      domain.RoleAdmin,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager(testSecret, time.Hour, users)
	resp, err := manager.Login(context.Background(), domain.LoginRequest{
		Username: "Admin",
		Password: "admin123",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.Role != domain.RoleAdmin {
		t.Fatalf("unexpected role %s", resp.Role)
	}

	stored, err := users.ListUsers(context.Background())
	if err != nil {
		t.Fatalf("list users failed: %v", err)
	}
	if len(stored) != 1 || !strings.HasPrefix(stored[0].Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %+v", stored)
	}
}

func TestCreateStaffStoresPasswordHash(t *testing.T) {
	users := &userStoreStub{}
	manager := NewAuthManager(testSecret, time.Hour, users)

	staff, err := manager.CreateStaff(context.Background(), domain.StaffCreateRequest{
		Username: "Pharmacist1",
		Password: "pass1234",
	})
	if err != nil {
		t.Fatalf("create staff failed: %v", err)
	}
	if staff.Username != "pharmacist1" || staff.Role != domain.RoleStaff || staff.Password != "" {
		t.Fatalf("unexpected staff account %+v", staff)
	}

	saved, ok := users.users["pharmacist1"]
	if !ok {
		t.Fatalf("expected staff to be saved")
	}
	if !strings.HasPrefix(saved.Password, "$2") {
		t.Fatalf("expected bcrypt hash prefix, got %s", saved.Password)
	}

	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "pharmacist1", Password: "pass1234"}); err != nil {
		t.Fatalf("login with new staff failed: %v", err)
	}

	_, err = manager.CreateStaff(context.Background(), domain.StaffCreateRequest{Username: "pharmacist1", Password: "another1"})
	if !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected duplicate username to be rejected, got %v", err)
	}
	if list := manager.ListStaff(context.Background()); len(list) != 1 {
		t.Fatalf("expected one staff account, got %+v", list)
	}
}

func TestCreateStaffValidatesInput(t *testing.T) {
	manager := NewAuthManager(testSecret, time.Hour, &userStoreStub{})

	cases := []domain.StaffCreateRequest{
		{Username: "abc", Password: "pass1234"},
		{Username: "has space", Password: "pass1234"},
		{Username: "pharmacist", Password: "short"},
	}
	for _, req := range cases {
		if _, err := manager.CreateStaff(context.Background(), req); !errors.Is(err, store.ErrValidation) {
			t.Fatalf("expected validation error for %+v, got %v", req, err)
		}
	}
}

func TestEnsureAdminOnlyCreatesOnce(t *testing.T) {
	users := &userStoreStub{}
	manager := NewAuthManager(testSecret, time.Hour, users)

	created, err := manager.EnsureAdmin(context.Background(), "owner", "first-password")
	if err != nil || !created {
		t.Fatalf("expected admin to be created, got %v %v", created, err)
	}
	created, err = manager.EnsureAdmin(context.Background(), "owner", "second-password")
	if err != nil || created {
		t.Fatalf("expected existing admin to be kept, got %v %v", created, err)
	}

	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "owner", Password: "first-password"}); err != nil {
		t.Fatalf("expected first password to still work: %v", err)
	}
}

func TestParseTokenRejectsForeignSecret(t *testing.T) {
	users := &userStoreStub{}
	issuer := NewAuthManager(testSecret, time.Hour, users)
	if _, err := issuer.EnsureAdmin(context.Background(), "owner", "first-password"); err != nil {
		t.Fatalf("ensure admin failed: %v", err)
	}
	resp, err := issuer.Login(context.Background(), domain.LoginRequest{Username: "owner", Password: "first-password"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	actor, err := issuer.ParseToken(resp.AccessToken)
	if err != nil || actor.Username != "owner" || actor.Role != domain.RoleAdmin {
		t.Fatalf("unexpected actor %+v, err %v", actor, err)
	}

	other := NewAuthManager("another-secret-key-with-enough-length", time.Hour, users)
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	hash, err := hashPassword("pass1234")
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	users := &userStoreStub{users: map[string]domain.UserAccount{
		"retired": {Username: "retired", Password: hash, Role: domain.RoleStaff, Active: false},
	}}
	manager := NewAuthManager(testSecret, time.Hour, users)

	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "retired", Password: "pass1234"}); !errors.Is(err, errInactiveAccount) {
		t.Fatalf("expected inactive account error, got %v", err)
	}
	if _, err := manager.Login(context.Background(), domain.LoginRequest{Username: "retired", Password: "wrong"}); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

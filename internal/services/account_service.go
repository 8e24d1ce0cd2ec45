package services

import (
	"context"
	"errors"
	"log/slog"

	"habitual/internal/core"
	"habitual/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

const invalidCredentials = "invalid email or password"

// AccountService handles signup and credential checks.
type AccountService struct {
	users storage.UserStore
	cost  int
}

func NewAccountService(users storage.UserStore, bcryptCost int) *AccountService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AccountService{users: users, cost: bcryptCost}
}

func (s *AccountService) Signup(ctx context.Context, email, password string) (core.User, error) {
	email, err := core.NormalizeEmail(email)
	if err != nil {
		return core.User{}, core.InvalidInput(err.Error())
	}
	if err := core.ValidatePassword(password); err != nil {
		return core.User{}, core.InvalidInput(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return core.User{}, core.InvalidInput("password too long")
		}
		return core.User{}, core.Internal("could not hash password", err)
	}

	user, err := s.users.CreateUser(ctx, email, string(hash))
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			return core.User{}, core.Conflict("an account with this email already exists")
		}
		return core.User{}, core.Internal("could not create account", err)
	}

	slog.InfoContext(ctx, "User signed up", "user_id", user.ID)
	return user, nil
}

func (s *AccountService) Login(ctx context.Context, email, password string) (core.User, error) {
	email, err := core.NormalizeEmail(email)
	if err != nil {
		return core.User{}, core.Unauthorized(invalidCredentials)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if isNotFound(err) {
			return core.User{}, core.Unauthorized(invalidCredentials)
		}
		return core.User{}, core.Internal("could not load account", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		slog.WarnContext(ctx, "Login failed", "user_id", user.ID)
		return core.User{}, core.Unauthorized(invalidCredentials)
	}
	return user, nil
}

// User loads an account by id, used to resolve sessions.
func (s *AccountService) User(ctx context.Context, id int64) (core.User, error) {
	user, err := s.users.GetUser(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return core.User{}, core.Unauthorized("account no longer exists")
		}
		return core.User{}, core.Internal("could not load account", err)
	}
	return user, nil
}

package auth

import (
	"context"
	"errors"
)

var (
	ErrEmailExists        = errors.New("email already exists")
	ErrUsernameExists     = errors.New("username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type User struct {
	ID       string
	Username string
	Email    string
	Hash     []byte
}

type UserStore interface {
	Create(ctx context.Context, id, username, email, password string) error
	Verify(ctx context.Context, email, password string) (User, error)
	Ping(ctx context.Context) error
}

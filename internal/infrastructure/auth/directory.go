package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"

	"github.com/vectorscan/fault-diagnosis/internal/core/domain"
)

type UserEntry struct {
	Username     string `yaml:"username"`
	PasswordHash string `yaml:"password_hash"`
	Role         string `yaml:"role"`
	Ship         string `yaml:"ship"`
}

// Directory is a read-only user directory with bcrypt password hashes.
type Directory struct {
	users map[string]UserEntry
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

func LoadDirectory(path string) (*Directory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read users file: %w", err)
	}
	return ParseDirectory(data)
}

func ParseDirectory(data []byte) (*Directory, error) {
	var file struct {
		Users []UserEntry `yaml:"users"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse users file: %w", err)
	}

	users := make(map[string]UserEntry, len(file.Users))
	for i, u := range file.Users {
		u.Username = strings.TrimSpace(u.Username)
		if u.Username == "" {
			return nil, fmt.Errorf("users file: entry %d has no username", i)
		}
		if _, err := bcrypt.Cost([]byte(u.PasswordHash)); err != nil {
			return nil, fmt.Errorf("users file: %s: invalid password hash: %w", u.Username, err)
		}
		if _, dup := users[u.Username]; dup {
			return nil, fmt.Errorf("users file: duplicate username %s", u.Username)
		}
		u.Ship = domain.ScopeLabel(u.Ship)
		users[u.Username] = u
	}
	return &Directory{users: users}, nil
}

func (d *Directory) Len() int {
	return len(d.users)
}

// Authenticate returns domain.ErrUnauthorized for unknown users and wrong passwords alike.
func (d *Directory) Authenticate(_ context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "authenticate", errors.New("username and password required"))
	}

	entry, ok := d.users[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(unknownUserHash(), []byte(password))
		return nil, domain.WrapError(domain.ErrUnauthorized, "authenticate", errors.New("invalid credentials"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(entry.PasswordHash), []byte(password)); err != nil {
		return nil, domain.WrapError(domain.ErrUnauthorized, "authenticate", errors.New("invalid credentials"))
	}
	return &domain.User{
		Username: entry.Username,
		Role:     entry.Role,
		Ship:     entry.Ship,
	}, nil
}

func HashPassword(password string) (string, error) {
	if password == "" {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// unknownUserHash keeps the unknown-user path as slow as a real comparison.
func unknownUserHash() []byte {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("unknown-user"), bcrypt.DefaultCost)
	})
	return dummyHash
}

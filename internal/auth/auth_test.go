package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"paperfolio/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memStore struct {
	users  map[string]*models.User
	nextID int
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*models.User)}
}

func (m *memStore) CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error) {
	if _, ok := m.users[username]; ok {
		return nil, models.ErrUsernameTaken
	}
	m.nextID++
	user := &models.User{
		ID:           m.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		Cash:         decimal.NewFromInt(10000),
		CreatedAt:    time.Now(),
	}
	m.users[username] = user
	return user, nil
}

func (m *memStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, ok := m.users[username]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	return user, nil
}

func newTestService(store UserStore) *Service {
	return NewService(store, "test-secret", time.Hour)
}

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
	}{
		{name: "Valid", password: "abc1!", wantErr: false},
		{name: "ValidLonger", password: `Str0ng,pass`, wantErr: false},
		{name: "TooShort", password: "a1!x", wantErr: true},
		{name: "NoDigit", password: "abcde!", wantErr: true},
		{name: "NoLetter", password: "12345!", wantErr: true},
		{name: "NoSymbol", password: "abc123", wantErr: true},
		{name: "SymbolOutsideSet", password: "abc12-", wantErr: true},
		{name: "Empty", password: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if tt.wantErr {
				assert.ErrorIs(t, err, models.ErrWeakPassword)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		username string
		password string
		setup    func(s *Service)
		wantErr  error
	}{
		{
			name:     "Success",
			username: "alice",
			password: "pass1!",
		},
		{
			name:     "DuplicateUsername",
			username: "alice",
			password: "pass1!",
			setup: func(s *Service) {
				_, err := s.Register(ctx, "alice", "pass1!")
				require.NoError(t, err)
			},
			wantErr: models.ErrUsernameTaken,
		},
		{
			name:     "WeakPassword",
			username: "bob",
			password: "short",
			wantErr:  models.ErrWeakPassword,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestService(newMemStore())
			if tt.setup != nil {
				tt.setup(s)
			}

			user, err := s.Register(ctx, tt.username, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.username, user.Username)
			assert.True(t, user.Cash.Equal(decimal.NewFromInt(10000)))
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(tt.password)))
		})
	}

	t.Run("EmptyUsername", func(t *testing.T) {
		s := newTestService(newMemStore())
		_, err := s.Register(ctx, "   ", "pass1!")
		assert.Error(t, err)
	})

	t.Run("LongUsername", func(t *testing.T) {
		s := newTestService(newMemStore())
		_, err := s.Register(ctx, strings.Repeat("a", 51), "pass1!")
		assert.Error(t, err)
	})

	t.Run("CaseSensitiveUsernames", func(t *testing.T) {
		s := newTestService(newMemStore())
		_, err := s.Register(ctx, "Alice", "pass1!")
		require.NoError(t, err)
		_, err = s.Register(ctx, "alice", "pass1!")
		assert.NoError(t, err, "differently-cased username is a distinct account")
	})
}

func TestService_Login(t *testing.T) {
	ctx := context.Background()
	s := newTestService(newMemStore())

	registered, err := s.Register(ctx, "alice", "pass1!")
	require.NoError(t, err)

	t.Run("Success", func(t *testing.T) {
		token, err := s.Login(ctx, "alice", "pass1!")
		require.NoError(t, err)

		userID, err := s.UserFromToken(token)
		require.NoError(t, err)
		assert.Equal(t, registered.ID, userID)
	})

	t.Run("WrongPassword", func(t *testing.T) {
		_, err := s.Login(ctx, "alice", "wrong1!")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})

	t.Run("UnknownUser", func(t *testing.T) {
		_, err := s.Login(ctx, "nobody", "pass1!")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	})
}

func TestService_UserFromToken(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	s := newTestService(store)

	_, err := s.Register(ctx, "alice", "pass1!")
	require.NoError(t, err)
	token, err := s.Login(ctx, "alice", "pass1!")
	require.NoError(t, err)

	t.Run("Garbage", func(t *testing.T) {
		_, err := s.UserFromToken("not-a-token")
		assert.Error(t, err)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewService(store, "other-secret", time.Hour)
		_, err := other.UserFromToken(token)
		assert.Error(t, err)
	})

	t.Run("Expired", func(t *testing.T) {
		expired := NewService(store, "test-secret", -time.Minute)
		tok, err := expired.Login(ctx, "alice", "pass1!")
		require.NoError(t, err)
		_, err = expired.UserFromToken(tok)
		assert.Error(t, err)
	})
}

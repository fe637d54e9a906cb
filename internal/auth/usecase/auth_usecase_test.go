package usecase

import (
	"sync"
	"testing"
	"time"

	authdomain "github.com/devspinn/dtown-email/internal/auth/domain"
	authdto "github.com/devspinn/dtown-email/internal/auth/dto"
	"github.com/devspinn/dtown-email/pkg/config"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryUserRepo is an in-memory UserRepository
type memoryUserRepo struct {
	mu     sync.Mutex
	users  map[string]*authdomain.User // by id
	tokens map[string]*authdomain.RefreshToken
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{
		users:  make(map[string]*authdomain.User),
		tokens: make(map[string]*authdomain.RefreshToken),
	}
}

func (r *memoryUserRepo) Create(user *authdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user.ID = uuid.New().String()
	r.users[user.ID] = user
	return nil
}

func (r *memoryUserRepo) FindByEmail(email string) (*authdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r *memoryUserRepo) FindByID(id string) (*authdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users[id], nil
}

func (r *memoryUserRepo) Update(user *authdomain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[user.ID] = user
	return nil
}

func (r *memoryUserRepo) SaveRefreshToken(token *authdomain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token.Token] = token
	return nil
}

func (r *memoryUserRepo) FindRefreshToken(token string) (*authdomain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tokens[token], nil
}

func (r *memoryUserRepo) DeleteRefreshToken(token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, token)
	return nil
}

func (r *memoryUserRepo) DeleteRefreshTokensByUser(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for t, token := range r.tokens {
		if token.UserID == userID {
			delete(r.tokens, t)
		}
	}
	return nil
}

func authConfig() *config.Config {
	return &config.Config{
		JWTSecret:        "test-secret",
		JWTAccessExpiry:  15 * time.Minute,
		JWTRefreshExpiry: 168 * time.Hour,
	}
}

func registerRequest() *authdto.RegisterRequest {
	return &authdto.RegisterRequest{
		Email:    "user@example.com",
		Password: "password1234",
		Name:     "Test User",
	}
}

func TestRegisterAndLogin(t *testing.T) {
	repo := newMemoryUserRepo()
	uc := NewAuthUsecase(repo, authConfig())

	tokens, err := uc.Register(registerRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	require.NotNil(t, tokens.User)
	assert.Equal(t, "user@example.com", tokens.User.Email)

	// Duplicate registration rejected
	_, err = uc.Register(registerRequest())
	require.Error(t, err)

	// Correct password logs in
	loginTokens, err := uc.Login(&authdto.LoginRequest{Email: "user@example.com", Password: "password1234"})
	require.NoError(t, err)
	assert.NotEmpty(t, loginTokens.AccessToken)

	// Wrong password rejected
	_, err = uc.Login(&authdto.LoginRequest{Email: "user@example.com", Password: "wrong-password"})
	require.Error(t, err)
}

func TestValidateToken(t *testing.T) {
	repo := newMemoryUserRepo()
	uc := NewAuthUsecase(repo, authConfig())

	tokens, err := uc.Register(registerRequest())
	require.NoError(t, err)

	user, err := uc.ValidateToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", user.Email)

	// Refresh token is not a valid access token
	_, err = uc.ValidateToken(tokens.RefreshToken)
	require.Error(t, err)

	// Garbage rejected
	_, err = uc.ValidateToken("not-a-jwt")
	require.Error(t, err)
}

func TestRefreshTokenRotation(t *testing.T) {
	repo := newMemoryUserRepo()
	uc := NewAuthUsecase(repo, authConfig())

	tokens, err := uc.Register(registerRequest())
	require.NoError(t, err)

	rotated, err := uc.RefreshToken(tokens.RefreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, rotated.AccessToken)

	// The old refresh token is single-use
	_, err = uc.RefreshToken(tokens.RefreshToken)
	require.Error(t, err)

	// The new one still works
	_, err = uc.RefreshToken(rotated.RefreshToken)
	require.NoError(t, err)
}

func TestLogoutInvalidatesRefreshToken(t *testing.T) {
	repo := newMemoryUserRepo()
	uc := NewAuthUsecase(repo, authConfig())

	tokens, err := uc.Register(registerRequest())
	require.NoError(t, err)

	require.NoError(t, uc.Logout(tokens.RefreshToken))

	_, err = uc.RefreshToken(tokens.RefreshToken)
	require.Error(t, err)
}

package usecase

import (
	"errors"
	"time"

	authdomain "github.com/devspinn/dtown-email/internal/auth/domain"
	authdto "github.com/devspinn/dtown-email/internal/auth/dto"
	"github.com/devspinn/dtown-email/internal/auth/repository"
	"github.com/devspinn/dtown-email/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	userRepo repository.UserRepository
	config   *config.Config
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(userRepo repository.UserRepository, cfg *config.Config) AuthUsecase {
	return &authUsecase{
		userRepo: userRepo,
		config:   cfg,
	}
}

func (u *authUsecase) Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error) {
	existing, err := u.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, errors.New("email already registered")
	}

	hashedPassword, err := repository.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &authdomain.User{
		Email:    req.Email,
		Password: hashedPassword,
		Name:     req.Name,
		Provider: "email",
	}
	if err := u.userRepo.Create(user); err != nil {
		return nil, err
	}

	return u.generateTokens(user)
}

func (u *authUsecase) Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error) {
	user, err := u.userRepo.FindByEmail(req.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("invalid email or password")
	}
	if !repository.CheckPasswordHash(req.Password, user.Password) {
		return nil, errors.New("invalid email or password")
	}

	return u.generateTokens(user)
}

func (u *authUsecase) RefreshToken(refreshToken string) (*authdto.TokenResponse, error) {
	token, err := jwt.Parse(refreshToken, func(token *jwt.Token) (interface{}, error) {
		return []byte(u.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid refresh token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	stored, err := u.userRepo.FindRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if stored == nil || stored.ExpiresAt.Before(time.Now()) {
		return nil, errors.New("refresh token expired")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user not found")
	}

	// Rotate: the old refresh token stops working once exchanged
	if err := u.userRepo.DeleteRefreshToken(refreshToken); err != nil {
		return nil, err
	}

	return u.generateTokens(user)
}

func (u *authUsecase) Logout(refreshToken string) error {
	return u.userRepo.DeleteRefreshToken(refreshToken)
}

func (u *authUsecase) ValidateToken(accessToken string) (*authdomain.User, error) {
	token, err := jwt.Parse(accessToken, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(u.config.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	tokenType, _ := claims["type"].(string)
	if tokenType != "access" {
		return nil, errors.New("not an access token")
	}

	userID, ok := claims["user_id"].(string)
	if !ok {
		return nil, errors.New("invalid token claims")
	}

	user, err := u.userRepo.FindByID(userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errors.New("user not found")
	}

	return user, nil
}

func (u *authUsecase) GetUserByID(id string) (*authdomain.User, error) {
	return u.userRepo.FindByID(id)
}

func (u *authUsecase) GetUserByEmail(email string) (*authdomain.User, error) {
	return u.userRepo.FindByEmail(email)
}

func (u *authUsecase) generateTokens(user *authdomain.User) (*authdto.TokenResponse, error) {
	now := time.Now()

	accessClaims := jwt.MapClaims{
		"user_id": user.ID,
		"type":    "access",
		"iat":     now.Unix(),
		"exp":     now.Add(u.config.JWTAccessExpiry).Unix(),
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString([]byte(u.config.JWTSecret))
	if err != nil {
		return nil, err
	}

	refreshExpiry := now.Add(u.config.JWTRefreshExpiry)
	refreshClaims := jwt.MapClaims{
		"user_id": user.ID,
		"type":    "refresh",
		"jti":     uuid.New().String(), // rotation must always mint a distinct token
		"iat":     now.Unix(),
		"exp":     refreshExpiry.Unix(),
	}
	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString([]byte(u.config.JWTSecret))
	if err != nil {
		return nil, err
	}

	if err := u.userRepo.SaveRefreshToken(&authdomain.RefreshToken{
		Token:     refreshToken,
		UserID:    user.ID,
		ExpiresAt: refreshExpiry,
	}); err != nil {
		return nil, err
	}

	return &authdto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User:         user,
	}, nil
}

package usecase

import (
	authdomain "github.com/devspinn/dtown-email/internal/auth/domain"
	authdto "github.com/devspinn/dtown-email/internal/auth/dto"
)

// AuthUsecase defines the interface for authentication use cases
type AuthUsecase interface {
	Register(req *authdto.RegisterRequest) (*authdto.TokenResponse, error)
	Login(req *authdto.LoginRequest) (*authdto.TokenResponse, error)
	RefreshToken(refreshToken string) (*authdto.TokenResponse, error)
	Logout(refreshToken string) error
	ValidateToken(accessToken string) (*authdomain.User, error)
	GetUserByID(id string) (*authdomain.User, error)
	GetUserByEmail(email string) (*authdomain.User, error)
}

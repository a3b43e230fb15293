package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"metersquare/internal/config"
	"metersquare/internal/dto"
	"metersquare/internal/model"
	"metersquare/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 12

// Token kinds carried in the "typ" claim. Only access tokens authenticate
// API calls; only refresh tokens can be exchanged at /v1/auth/refresh.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var errInvalidCredentials = &AuthorizationError{Unauthenticated: true, Msg: "invalid credentials"}

type AuthService interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error)
	// SeedUser creates or replaces an account. Used by assetctl; there is
	// no HTTP user management.
	SeedUser(ctx context.Context, username, name string, email *string, role model.Role, password string) (*dto.UserResponse, error)
}

type authService struct {
	repo repository.UserRepository
	cfg  *config.Config
}

func NewAuthService(repo repository.UserRepository, cfg *config.Config) AuthService {
	return &authService{repo: repo, cfg: cfg}
}

// HashPassword returns the bcrypt hash stored in users.password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func mapUser(u *model.User) dto.UserResponse {
	return dto.UserResponse{
		ID:       u.ID.String(),
		Username: u.Username,
		Name:     u.Name,
		Email:    u.Email,
		Role:     string(u.Role),
	}
}

func (s *authService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.repo.FindByUsername(ctx, strings.TrimSpace(req.Username))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}
	return s.issue(user)
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*dto.LoginResponse, error) {
	token, err := jwt.Parse(refreshToken, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return nil, &AuthorizationError{Unauthenticated: true, Msg: "refresh token invalid or expired"}
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, &AuthorizationError{Unauthenticated: true, Msg: "invalid claims"}
	}
	if typ, _ := claims["typ"].(string); typ != TokenTypeRefresh {
		return nil, &AuthorizationError{Unauthenticated: true, Msg: "not a refresh token"}
	}
	userIDStr, ok := claims["user_id"].(string)
	if !ok {
		return nil, &AuthorizationError{Unauthenticated: true, Msg: "malformed token"}
	}
	uid, err := uuid.Parse(userIDStr)
	if err != nil {
		return nil, &AuthorizationError{Unauthenticated: true, Msg: "malformed token"}
	}

	user, err := s.repo.FindByID(ctx, uid)
	if err != nil || !user.IsActive {
		return nil, &AuthorizationError{Unauthenticated: true, Msg: "user not found or inactive"}
	}
	return s.issue(user)
}

func (s *authService) SeedUser(ctx context.Context, username, name string, email *string, role model.Role, password string) (*dto.UserResponse, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, newValidation("username", "required")
	}
	if !role.Valid() {
		return nil, newValidation("role", "unknown role")
	}
	if len(password) < 8 {
		return nil, newValidation("password", "must be at least 8 characters")
	}
	if strings.TrimSpace(name) == "" {
		name = username
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &model.User{
		Username:     username,
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.repo.Upsert(ctx, user); err != nil {
		return nil, err
	}
	resp := mapUser(user)
	return &resp, nil
}

func (s *authService) issue(user *model.User) (*dto.LoginResponse, error) {
	accessToken, err := s.generateToken(user, TokenTypeAccess, time.Duration(s.cfg.JWTExpirationHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.generateToken(user, TokenTypeRefresh, time.Duration(s.cfg.JWTRefreshHours)*time.Hour)
	if err != nil {
		return nil, err
	}
	return &dto.LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "bearer",
		ExpiresIn:    s.cfg.JWTExpirationHours * 3600,
		User:         mapUser(user),
	}, nil
}

func (s *authService) generateToken(user *model.User, typ string, duration time.Duration) (string, error) {
	claims := jwt.MapClaims{
		"typ":      typ,
		"user_id":  user.ID.String(),
		"username": user.Username,
		"name":     user.Name,
		"role":     string(user.Role),
		"exp":      time.Now().Add(duration).Unix(),
		"iat":      time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.cfg.JWTSecret))
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"cloudsyncdrive/internal/domain"
)

type AuthService struct {
	userStore           UserStore
	jwtSecret           []byte
	tokenTTL            time.Duration
	defaultStorageLimit int64
}

type AuthResponse struct {
	Token        string `json:"token"`
	UserID       int64  `json:"user_id"`
	Email        string `json:"email"`
	FullName     string `json:"full_name"`
	StorageUsed  int64  `json:"storage_used"`
	StorageLimit int64  `json:"storage_limit"`
}

func NewAuthService(userStore UserStore, jwtSecret string, tokenTTL time.Duration, defaultStorageLimit int64) *AuthService {
	return &AuthService{
		userStore:           userStore,
		jwtSecret:           []byte(jwtSecret),
		tokenTTL:            tokenTTL,
		defaultStorageLimit: defaultStorageLimit,
	}
}

// Register создает пользователя с квотой по умолчанию и выдает токен.
func (s *AuthService) Register(ctx context.Context, email, password, fullName string) (*AuthResponse, error) {
	if email == "" || password == "" || fullName == "" {
		return nil, fmt.Errorf("%w: email, password and full name are required", domain.ErrInvalidOperation)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		Email:        email,
		PasswordHash: string(passwordHash),
		FullName:     fullName,
		StorageUsed:  0,
		StorageLimit: s.defaultStorageLimit,
	}

	if err := s.userStore.Create(ctx, user); err != nil {
		return nil, err
	}

	log.Printf("[Auth] User registered: id=%d, email=%s", user.ID, user.Email)

	return s.buildResponse(user)
}

// Login проверяет учетные данные и выдает токен. Неизвестный email и
// неверный пароль неразличимы для вызывающего.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	user, err := s.userStore.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, fmt.Errorf("%w: invalid email or password", domain.ErrUnauthorized)
	}

	if err := s.userStore.UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		log.Printf("[Auth] failed to update last login for user %d: %v", user.ID, err)
	}

	return s.buildResponse(user)
}

func (s *AuthService) GetUserByID(ctx context.Context, userID int64) (*domain.User, error) {
	return s.userStore.GetByID(ctx, userID)
}

func (s *AuthService) buildResponse(user *domain.User) (*AuthResponse, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(user.ID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &AuthResponse{
		Token:        token,
		UserID:       user.ID,
		Email:        user.Email,
		FullName:     user.FullName,
		StorageUsed:  user.StorageUsed,
		StorageLimit: user.StorageLimit,
	}, nil
}

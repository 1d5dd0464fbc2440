package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/maksimarefev/acdm-platform/internal/db"
	"github.com/maksimarefev/acdm-platform/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthService handles user authentication. Every registered user gets a
// fresh platform address; the JWT carries it so handlers know which account
// is acting.
type AuthService struct {
	DB     *db.DB
	secret []byte
}

// NewAuthService creates a new auth service signing tokens with secret
func NewAuthService(db *db.DB, secret string) *AuthService {
	return &AuthService{DB: db, secret: []byte(secret)}
}

// Register creates a new user with hashed password and a generated address
func (s *AuthService) Register(ctx context.Context, username, password string) (*models.User, error) {
	// Validate input
	if username == "" {
		return nil, fmt.Errorf("username cannot be empty")
	}
	if password == "" {
		return nil, fmt.Errorf("password cannot be empty")
	}
	if len(username) > 50 {
		return nil, fmt.Errorf("username too long (max 50 characters)")
	}
	if len(password) > 100 {
		return nil, fmt.Errorf("password too long (max 100 characters)")
	}

	// Hash the password
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	address, err := NewAddress()
	if err != nil {
		return nil, err
	}

	// Create user in database
	user, err := s.DB.CreateUser(ctx, username, string(hashedPassword), address)
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Login verifies credentials and generates a JWT
func (s *AuthService) Login(ctx context.Context, username, password string) (string, error) {
	// Get user from database
	user, err := s.DB.GetUserByUsername(ctx, username)
	if err != nil {
		return "", err
	}

	// Verify password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", err
	}

	// Generate JWT
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"address":  string(user.Address),
		"exp":      time.Now().Add(24 * time.Hour).Unix(),
	})

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// GetAddressFromToken extracts the platform address from a JWT
func (s *AuthService) GetAddressFromToken(tokenString string) (models.Address, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return models.ZeroAddress, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return models.ZeroAddress, fmt.Errorf("invalid token")
	}
	address, ok := claims["address"].(string)
	if !ok || address == "" {
		return models.ZeroAddress, fmt.Errorf("token carries no address")
	}
	return models.Address(address), nil
}

// NewAddress generates a random platform address
func NewAddress() (models.Address, error) {
	var raw [20]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return models.ZeroAddress, fmt.Errorf("failed to generate address: %w", err)
	}
	return models.Address("0x" + hex.EncodeToString(raw[:])), nil
}

// Package auth provides authentication and authorization for the API.
// It handles password hashing, JWT token generation/validation, and
// role-based access control.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// User roles for role-based access control (RBAC)
const (
	RoleAuthorityAdmin = "AUTHORITY_ADMIN"    // Aviation authority: approves flights, manages zones
	RoleOrgAdmin       = "ORGANIZATION_ADMIN" // Manages an organization's pilots and drones
	RolePilot          = "PILOT"              // Registers drones, submits and flies plans
)

var (
	// ErrInvalidCredentials is returned when authentication fails
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned when token validation fails
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Claims represents the JWT claims for a user session
type Claims struct {
	UserID         int    `json:"user_id"`
	Email          string `json:"email"`
	Role           string `json:"role"`
	OrganizationID *int   `json:"organization_id,omitempty"`
	jwt.RegisteredClaims
}

// Config holds authentication configuration
type Config struct {
	JWTSecret     string        // Secret key for signing JWTs
	TokenDuration time.Duration // How long tokens are valid
	BCryptCost    int           // BCrypt hashing cost (default: bcrypt.DefaultCost)
}

// Service provides authentication operations
type Service struct {
	config Config
}

// NewService creates a new authentication service
func NewService(cfg Config) *Service {
	if cfg.BCryptCost == 0 {
		cfg.BCryptCost = bcrypt.DefaultCost
	}
	if cfg.TokenDuration == 0 {
		cfg.TokenDuration = 24 * time.Hour
	}

	return &Service{
		config: cfg,
	}
}

// HashPassword hashes a plaintext password using bcrypt
func (s *Service) HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BCryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// ComparePassword compares a plaintext password with a hashed password
func (s *Service) ComparePassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// GenerateToken generates a JWT token for a user
func (s *Service) GenerateToken(userID int, email, role string, organizationID *int) (string, error) {
	claims := &Claims{
		UserID:         userID,
		Email:          email,
		Role:           role,
		OrganizationID: organizationID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.config.TokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "skylane",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.JWTSecret), nil
	})

	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}

// CanDecideFlights checks if a role may approve or reject flight plans
func CanDecideFlights(role string) bool {
	return role == RoleAuthorityAdmin
}

// CanManageZones checks if a role may create or modify restricted zones
func CanManageZones(role string) bool {
	return role == RoleAuthorityAdmin
}

// CanManageOrgDrones checks if a role may administer an organization's drones
func CanManageOrgDrones(role string) bool {
	return role == RoleAuthorityAdmin || role == RoleOrgAdmin
}

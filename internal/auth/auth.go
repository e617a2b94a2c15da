// Package auth provides authentication for the web API.
// It handles password checking against the configured operator account and
// JWT token generation/validation.
package auth

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Roles for access control
const (
	RoleOperator = "operator" // May select and release aircraft
	RoleViewer   = "viewer"   // Read-only access
)

const issuer = "opensky-overlay"

var (
	// ErrInvalidCredentials is returned when authentication fails
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned when token validation fails
	ErrInvalidToken = errors.New("invalid or expired token")
	// ErrUnauthorized is returned when a role lacks the required permission
	ErrUnauthorized = errors.New("unauthorized access")
)

// Claims represents the JWT claims for a session
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Config holds authentication configuration
type Config struct {
	Username      string        // Operator account name
	PasswordHash  string        // bcrypt hash of the operator password
	JWTSecret     string        // Secret key for signing JWTs
	TokenDuration time.Duration // How long tokens are valid
	BCryptCost    int           // BCrypt hashing cost (default: bcrypt.DefaultCost)
}

// Service provides authentication operations
type Service struct {
	config Config
	now    func() time.Time
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
		now:    time.Now,
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

// Authenticate checks the operator credentials and returns a signed token.
func (s *Service) Authenticate(username, password string) (string, error) {
	if s.config.PasswordHash == "" {
		return "", ErrInvalidCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.config.Username)) == 1
	passErr := bcrypt.CompareHashAndPassword([]byte(s.config.PasswordHash), []byte(password))
	if !userOK || passErr != nil {
		return "", ErrInvalidCredentials
	}
	return s.GenerateToken(username, RoleOperator)
}

// GenerateToken generates a JWT token
func (s *Service) GenerateToken(username, role string) (string, error) {
	now := s.now()
	claims := &Claims{
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TokenDuration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// ValidateToken validates a JWT token and returns the claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, ErrInvalidToken
}

// HasRole checks if a role has the required role or higher.
// Role hierarchy: Operator > Viewer
func HasRole(userRole, requiredRole string) bool {
	roleLevel := map[string]int{
		RoleOperator: 1,
		RoleViewer:   0,
	}

	userLevel, ok1 := roleLevel[userRole]
	requiredLevel, ok2 := roleLevel[requiredRole]
	if !ok1 || !ok2 {
		return false
	}
	return userLevel >= requiredLevel
}

// CanSelect checks if a role can change the selected aircraft
func CanSelect(role string) bool {
	return HasRole(role, RoleOperator)
}

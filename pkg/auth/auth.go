package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/arnavshah/ionm-board/pkg/models"
	"github.com/arnavshah/ionm-board/pkg/store"
)

var (
	ErrInvalidPin   = errors.New("invalid PIN")
	ErrInvalidToken = errors.New("invalid token")
	ErrMissingName  = errors.New("name is required")
)

var jwtAlgorithm = jwt.SigningMethodHS256

// Claims represents the JWT claims
type Claims struct {
	StaffID string `json:"staff_id"`
	Name    string `json:"name"`
	Role    string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token carries the admin role
func (c *Claims) IsAdmin() bool {
	return c.Role == models.RoleAdmin
}

// HashPin hashes a PIN using bcrypt
func HashPin(pin string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPinHash compares a PIN with its hash
func CheckPinHash(pin, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	return err == nil
}

// Issuer signs and verifies session tokens
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates an issuer for the given secret and token lifetime
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// CreateToken creates a new JWT token for a staff member
func (i *Issuer) CreateToken(rec models.StaffRecord) (string, error) {
	claims := &Claims{
		StaffID: rec.ID,
		Name:    rec.Name,
		Role:    rec.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   rec.ID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(i.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwtAlgorithm, claims)
	return token.SignedString(i.secret)
}

// VerifyToken verifies a JWT token
func (i *Issuer) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwtAlgorithm {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Login checks a name and PIN against the staff store. An unknown name is
// enrolled on first sign-in with the given PIN, or defaultPin when none is
// given; names containing "admin" are enrolled with the admin role. The
// entered PIN is always checked.
func Login(ctx context.Context, st store.Store, name, pin, defaultPin string) (models.StaffRecord, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.StaffRecord{}, ErrMissingName
	}

	rec, err := st.FindByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		rec, err = enroll(ctx, st, name, pin, defaultPin)
	}
	if err != nil {
		return models.StaffRecord{}, err
	}

	if !CheckPinHash(pin, rec.PinHash) {
		return models.StaffRecord{}, ErrInvalidPin
	}
	return rec, nil
}

func enroll(ctx context.Context, st store.Store, name, pin, defaultPin string) (models.StaffRecord, error) {
	if pin == "" {
		pin = defaultPin
	}
	hash, err := HashPin(pin)
	if err != nil {
		return models.StaffRecord{}, err
	}

	role := models.RoleUser
	if strings.Contains(strings.ToLower(name), "admin") {
		role = models.RoleAdmin
	}

	rec, err := st.Insert(ctx, models.StaffRecord{
		Name:       name,
		PinHash:    hash,
		Role:       role,
		LateNumber: models.UnassignedLateNumber,
		Status:     "prep",
	})
	if err != nil {
		return models.StaffRecord{}, fmt.Errorf("could not create staff record: %w", err)
	}
	return rec, nil
}

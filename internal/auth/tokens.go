package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"kwitansi/internal/core"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of tokens issued by the local backends.
type Claims struct {
	Username string `json:"username"`
	FullName string `json:"fullName"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue creates a token for u.
func (i *Issuer) Issue(u core.User) (string, error) {
	now := i.now()
	claims := Claims{
		Username: u.Username,
		FullName: u.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(u.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
			Issuer:    "kwitansi",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses a token and returns the user it was issued for.
func (i *Issuer) Verify(tokenString string) (core.User, error) {
	if tokenString == "" {
		return core.User{}, ErrInvalidToken
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !token.Valid {
		return core.User{}, ErrInvalidToken
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return core.User{}, ErrInvalidToken
	}
	return core.User{ID: id, Username: claims.Username, FullName: claims.FullName}, nil
}

// User verifies the bearer token carried by ctx.
func (i *Issuer) User(ctx context.Context) (core.User, error) {
	return i.Verify(FromContext(ctx).Bearer)
}

// Authorize admits a request to a single receipt. A matching capability
// token is enough; otherwise a valid bearer token is required. The user is
// zero when access came from the capability.
func (i *Issuer) Authorize(ctx context.Context, receiptToken string) (core.User, error) {
	creds := FromContext(ctx)
	if creds.Capability != "" && receiptToken != "" &&
		subtle.ConstantTimeCompare([]byte(creds.Capability), []byte(receiptToken)) == 1 {
		return core.User{}, nil
	}
	return i.Verify(creds.Bearer)
}

// HashPassword returns a bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

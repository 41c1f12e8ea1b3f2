package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const (
	AdminUsername = "admin"
	adminID       = "1"
	DefaultTTL    = time.Hour
)

type Claims struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies HS256 tokens for the single admin account.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// SetClock replaces the wall clock used for the daily password and for expiry.
func (i *Issuer) SetClock(now func() time.Time) {
	i.now = now
}

// DailyPassword is the day and month of t as DDMM.
func DailyPassword(t time.Time) string {
	return fmt.Sprintf("%02d%02d", t.Day(), int(t.Month()))
}

// Login checks the admin credential against the server-local date and
// returns a signed token on success.
func (i *Issuer) Login(username, password string) (string, error) {
	now := i.now().Local()
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(AdminUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(DailyPassword(now))) == 1
	if !userOK || !passOK {
		return "", ErrInvalidCredentials
	}
	return i.Sign(adminID, AdminUsername)
}

func (i *Issuer) Sign(id, username string) (string, error) {
	now := i.now()
	claims := Claims{
		ID:       id,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

func (i *Issuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

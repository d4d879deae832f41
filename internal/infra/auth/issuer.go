package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// Account учетная запись, которой Issuer выдает токены.
type Account struct {
	ID           int
	Username     string
	Role         string
	PasswordHash string
}

// TokenPair ответ /auth/login и /auth/refresh-token.
type TokenPair struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Issuer подписывает токены HS256. Используется фейковым бэкендом.
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewIssuer(secret []byte, accessTTL time.Duration) *Issuer {
	return &Issuer{
		secret:     secret,
		accessTTL:  accessTTL,
		refreshTTL: 7 * 24 * time.Hour,
		now:        time.Now,
	}
}

// Login проверяет пароль (bcrypt) и выдает пару токенов.
func (i *Issuer) Login(acc *Account, password string) (*TokenPair, error) {
	if acc == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return i.Issue(acc)
}

func (i *Issuer) Issue(acc *Account) (*TokenPair, error) {
	access, err := i.sign(acc, "access", i.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := i.sign(acc, "refresh", i.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Token: access, RefreshToken: refresh, ExpiresIn: int64(i.accessTTL.Seconds())}, nil
}

// Refresh принимает только refresh токен, подписанный этим же Issuer.
func (i *Issuer) Refresh(refreshToken string) (*TokenPair, error) {
	claims, err := NewHMACValidator(i.secret).VerifyToken(refreshToken)
	if err != nil {
		return nil, err
	}
	if claims.Subject != "refresh" {
		return nil, fmt.Errorf("not a refresh token")
	}
	return i.Issue(&Account{ID: claims.UserID, Username: claims.Username, Role: claims.Role})
}

func (i *Issuer) sign(acc *Account, kind string, ttl time.Duration) (string, error) {
	now := i.now()
	claims := &Claims{
		UserID:   acc.ID,
		Username: acc.Username,
		Role:     acc.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "kyyup-mock",
			Subject:   kind,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// HashPassword для фикстур учетных записей.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}

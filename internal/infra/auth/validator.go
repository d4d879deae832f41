package auth

import (
	"crypto/rsa"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/blake2b"
)

// Claims полезная нагрузка токенов бэкенда детсада.
type Claims struct {
	UserID   int    `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Validator проверяет подпись токена (HS256 или RS256).
type Validator struct {
	key    interface{}
	method jwt.SigningMethod
}

func NewHMACValidator(secret []byte) *Validator {
	return &Validator{key: secret, method: jwt.SigningMethodHS256}
}

func NewRSAValidator(pubKey *rsa.PublicKey) *Validator {
	return &Validator{key: pubKey, method: jwt.SigningMethodRS256}
}

// VerifyToken принимает токен с префиксом "Bearer " или без него.
func (v *Validator) VerifyToken(tokenStr string) (*Claims, error) {
	tokenStr = stripBearer(tokenStr)

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != v.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("invalid claims")
	}
	return claims, nil
}

// InspectToken читает claims без проверки подписи.
// Клиенту ключ бэкенда не нужен, ему достаточно знать срок жизни.
func InspectToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(stripBearer(tokenStr), claims); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}

// ExpiresWithin true, если у токена есть exp и он наступит раньше now+d.
// Непрозрачные (не JWT) токены считаются бессрочными.
func ExpiresWithin(tokenStr string, d time.Duration, now time.Time) bool {
	claims, err := InspectToken(tokenStr)
	if err != nil || claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Before(now.Add(d))
}

// Fingerprint короткий отпечаток токена для логов.
func Fingerprint(tokenStr string) string {
	if tokenStr == "" {
		return ""
	}
	sum := blake2b.Sum256([]byte(tokenStr))
	return hex.EncodeToString(sum[:6])
}

// ParseRSAPublicKey превращает PEM в ключ для проверки подписи
func ParseRSAPublicKey(data []byte) (*rsa.PublicKey, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("public key data is empty")
	}
	key, err := jwt.ParseRSAPublicKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return key, nil
}

func stripBearer(tokenStr string) string {
	tokenStr = strings.TrimSpace(tokenStr)
	tokenStr = strings.TrimPrefix(tokenStr, "Bearer ")
	return strings.TrimSpace(tokenStr)
}

package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/plastinin/docgateway/internal/config"
	"github.com/plastinin/docgateway/internal/domain"
)

// Authenticator превращает bearer токен в Principal
type Authenticator interface {
	Authenticate(token string) (domain.Principal, error)
}

// New выбирает реализацию по AUTH_MODE
func New(cfg config.AuthConfig) (Authenticator, error) {
	switch cfg.Mode {
	case "", "none":
		return Passthrough{}, nil
	case "jwt":
		return NewJWTVerifier(cfg.JWTSecret, cfg.JWTAlgorithm)
	}
	return nil, fmt.Errorf("unknown auth mode %q", cfg.Mode)
}

// Passthrough сохраняет токен как есть, без проверки
type Passthrough struct{}

func (Passthrough) Authenticate(token string) (domain.Principal, error) {
	return domain.Principal{Token: token}, nil
}

// JWTVerifier проверяет HMAC токены, subject берётся из claim sub
type JWTVerifier struct {
	secret    []byte
	algorithm string
}

// NewJWTVerifier создаёт проверку токенов с общим секретом
func NewJWTVerifier(secret, algorithm string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	if algorithm == "" {
		algorithm = jwt.SigningMethodHS256.Alg()
	}
	if _, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported jwt algorithm %q", algorithm)
	}

	return &JWTVerifier{
		secret:    []byte(secret),
		algorithm: algorithm,
	}, nil
}

func (v *JWTVerifier) Authenticate(token string) (domain.Principal, error) {
	if token == "" {
		return domain.Principal{}, fmt.Errorf("%w: missing bearer token", domain.ErrUnauthorized)
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{v.algorithm}))
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return domain.Principal{}, fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}

	return domain.Principal{Token: token, Subject: claims.Subject}, nil
}

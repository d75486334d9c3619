package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/yungbote/dosegate-backend/internal/platform/ctxutil"
	"github.com/yungbote/dosegate-backend/internal/platform/logger"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// JWTClaims: Subject is the user id. SessionID is optional.
type JWTClaims struct {
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

type AuthService interface {
	// SetContextFromToken verifies tokenString and attaches the caller's
	// RequestData to ctx.
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	IssueToken(userID uuid.UUID, ttl time.Duration) (string, error)
}

type authService struct {
	log          *logger.Logger
	jwtSecretKey []byte
	issuer       string
}

func NewAuthService(log *logger.Logger, jwtSecretKey, issuer string) AuthService {
	return &authService{
		log:          log.With("service", "AuthService"),
		jwtSecretKey: []byte(jwtSecretKey),
		issuer:       strings.TrimSpace(issuer),
	}
}

func (as *authService) IssueToken(userID uuid.UUID, ttl time.Duration) (string, error) {
	if userID == uuid.Nil {
		return "", fmt.Errorf("issue token: empty user id")
	}
	if len(as.jwtSecretKey) == 0 {
		return "", fmt.Errorf("issue token: no signing key configured")
	}
	now := time.Now()
	claims := JWTClaims{
		SessionID: uuid.New().String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    as.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(as.jwtSecretKey)
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, ErrInvalidToken
	}
	if len(as.jwtSecretKey) == 0 {
		return ctx, fmt.Errorf("%w: no signing key configured", ErrInvalidToken)
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if as.issuer != "" {
		opts = append(opts, jwt.WithIssuer(as.issuer))
	}
	parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return as.jwtSecretKey, nil
	}, opts...)
	if err != nil {
		return ctx, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	claims, ok := parsedToken.Claims.(*JWTClaims)
	if !ok || !parsedToken.Valid {
		return ctx, ErrInvalidToken
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil || userID == uuid.Nil {
		return ctx, fmt.Errorf("%w: bad subject", ErrInvalidToken)
	}
	rd := &ctxutil.RequestData{UserID: userID}
	if sid, err := uuid.Parse(claims.SessionID); err == nil {
		rd.SessionID = sid
	}
	return ctxutil.WithRequestData(ctx, rd), nil
}

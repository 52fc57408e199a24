package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"detention-service/internal/model"
)

var ErrMissingSubject = errors.New("token subject missing")

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

type Parser struct {
	secret []byte
}

func NewParser(secret string) *Parser {
	return &Parser{secret: []byte(secret)}
}

// Parse verifies an HS256 access token and resolves the caller identity from
// its subject and email claims.
func (p *Parser) Parse(tokenStr string) (model.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return p.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return model.Principal{}, err
	}
	if !token.Valid {
		return model.Principal{}, jwt.ErrTokenInvalidClaims
	}

	if claims.Subject == "" {
		return model.Principal{}, ErrMissingSubject
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return model.Principal{}, fmt.Errorf("token subject: %w", err)
	}

	return model.Principal{UserID: userID, Email: claims.Email}, nil
}

// Issue signs a token for the given identity. Used by tooling and tests.
func (p *Parser) Issue(principal model.Principal, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = principal.UserID.String()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email:            principal.Email,
		RegisteredClaims: claims,
	})
	return token.SignedString(p.secret)
}

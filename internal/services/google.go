package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"google.golang.org/api/idtoken"
)

const googleVerifyTimeout = 10 * time.Second

// GoogleClaims are the identity claims extracted from a verified
// Google ID token.
type GoogleClaims struct {
	Subject string
	Email   string
	Name    string
	Picture string
}

// GoogleVerifier validates a Google ID token and extracts its claims.
type GoogleVerifier interface {
	Verify(ctx context.Context, credential string) (GoogleClaims, error)
}

// googleIDTokenVerifier verifies tokens against Google's public keys,
// checking the signature, expiry, and audience.
type googleIDTokenVerifier struct {
	clientID string
}

// NewGoogleVerifier constructs a verifier for the given OAuth client ID.
func NewGoogleVerifier(clientID string) (GoogleVerifier, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, errors.New("google client id is required")
	}
	return &googleIDTokenVerifier{clientID: clientID}, nil
}

func (v *googleIDTokenVerifier) Verify(ctx context.Context, credential string) (GoogleClaims, error) {
	ctx, cancel := context.WithTimeout(ctx, googleVerifyTimeout)
	defer cancel()

	payload, err := idtoken.Validate(ctx, credential, v.clientID)
	if err != nil {
		return GoogleClaims{}, err
	}

	claims := GoogleClaims{
		Subject: payload.Subject,
		Email:   stringClaim(payload.Claims, "email"),
		Name:    stringClaim(payload.Claims, "name"),
		Picture: stringClaim(payload.Claims, "picture"),
	}
	if claims.Subject == "" || claims.Email == "" {
		return GoogleClaims{}, errors.New("google token is missing required claims")
	}
	return claims, nil
}

func stringClaim(claims map[string]any, key string) string {
	value, _ := claims[key].(string)
	return value
}

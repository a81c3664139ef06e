package auth

import (
	"testing"
	"time"

	"github.com/bukari-app/bukari-backend/pkg/config"
	"github.com/google/uuid"
)

func TestMintAndParseAccessToken(t *testing.T) {
	cfg := config.JWTConfig{
		Secret:            "secret",
		Issuer:            "bukari",
		ExpirationMinutes: 30,
	}
	now := time.Now().UTC()
	userID := uuid.New()

	payload := AccessTokenPayload{
		UserID: userID,
		Email:  "fan@example.com",
	}

	token, err := MintAccessToken(cfg, now, payload)
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	claims, err := ParseAccessToken(cfg, token)
	if err != nil {
		t.Fatalf("parse access token: %v", err)
	}

	if claims.UserID != userID {
		t.Fatalf("expected user_id %s, got %s", userID, claims.UserID)
	}
	if claims.Email != "fan@example.com" {
		t.Fatalf("unexpected email %q", claims.Email)
	}
	if claims.Issuer != cfg.Issuer {
		t.Fatalf("unexpected issuer %q", claims.Issuer)
	}
	if claims.ID == "" {
		t.Fatalf("expected a generated jti")
	}
}

func TestMintAccessTokenRequiresConfig(t *testing.T) {
	now := time.Now().UTC()
	payload := AccessTokenPayload{UserID: uuid.New()}

	if _, err := MintAccessToken(config.JWTConfig{Issuer: "bukari", ExpirationMinutes: 30}, now, payload); err == nil {
		t.Fatalf("expected error for missing secret")
	}
	if _, err := MintAccessToken(config.JWTConfig{Secret: "s", ExpirationMinutes: 30}, now, payload); err == nil {
		t.Fatalf("expected error for missing issuer")
	}
	if _, err := MintAccessToken(config.JWTConfig{Secret: "s", Issuer: "bukari"}, now, payload); err == nil {
		t.Fatalf("expected error for non-positive expiration")
	}
	if _, err := MintAccessToken(config.JWTConfig{Secret: "s", Issuer: "bukari", ExpirationMinutes: 30}, now, AccessTokenPayload{}); err == nil {
		t.Fatalf("expected error for missing user id")
	}
}

func TestParseAccessTokenRejectsTamperedToken(t *testing.T) {
	cfg := config.JWTConfig{Secret: "secret", Issuer: "bukari", ExpirationMinutes: 30}
	token, err := MintAccessToken(cfg, time.Now().UTC(), AccessTokenPayload{UserID: uuid.New()})
	if err != nil {
		t.Fatalf("mint access token: %v", err)
	}

	other := config.JWTConfig{Secret: "different", Issuer: "bukari"}
	if _, err := ParseAccessToken(other, token); err == nil {
		t.Fatalf("expected signature mismatch error")
	}
}

package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	tm := NewTokenMaker("secret-secret-secret-secret-1234")

	tok, err := tm.New("u_1", "misato", time.Minute)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	claims, err := tm.Parse(tok)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.UserID != "u_1" || claims.Username != "misato" {
		t.Errorf("claims = %+v", claims)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	tm := NewTokenMaker("secret-secret-secret-secret-1234")

	tok, err := tm.New("u_1", "misato", -time.Minute)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := tm.Parse(tok); err == nil {
		t.Fatal("expired token accepted")
	}
}

func TestForeignSecretRejected(t *testing.T) {
	issuer := NewTokenMaker("secret-secret-secret-secret-1234")
	verifier := NewTokenMaker("another-secret-another-secret-12")

	tok, err := issuer.New("u_1", "misato", time.Minute)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := verifier.Parse(tok); err == nil {
		t.Fatal("token with a foreign signature accepted")
	}
}

package auth_test

import (
	"testing"

	"github.com/deliverytech/api/internal/auth"
)

func int64Ptr(v int64) *int64 { return &v }

func TestGenerateAndValidateToken(t *testing.T) {
	secret := "test-secret"
	p := auth.Principal{
		UserID:       42,
		Email:        "owner@test.com",
		Role:         "RESTAURANT",
		RestaurantID: int64Ptr(7),
	}

	token, err := auth.GenerateToken(secret, p)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}

	if claims.UserID != p.UserID {
		t.Errorf("user ID: got %v, want %v", claims.UserID, p.UserID)
	}
	if claims.RestaurantID == nil || *claims.RestaurantID != 7 {
		t.Errorf("restaurant ID: got %v, want 7", claims.RestaurantID)
	}
	if claims.CustomerID != nil {
		t.Errorf("customer ID: got %v, want nil", *claims.CustomerID)
	}
	if claims.Role != p.Role {
		t.Errorf("role: got %v, want %v", claims.Role, p.Role)
	}
	if claims.Subject != p.Email {
		t.Errorf("subject: got %v, want %v", claims.Subject, p.Email)
	}
	if claims.ID == "" {
		t.Error("expected non-empty jti")
	}
}

func TestGenerateToken_UniqueIDs(t *testing.T) {
	p := auth.Principal{UserID: 1, Role: "ADMIN"}
	a, _ := auth.GenerateToken("secret", p)
	b, _ := auth.GenerateToken("secret", p)

	ca, err := auth.ValidateToken("secret", a)
	if err != nil {
		t.Fatalf("validate a: %v", err)
	}
	cb, err := auth.ValidateToken("secret", b)
	if err != nil {
		t.Fatalf("validate b: %v", err)
	}
	if ca.ID == cb.ID {
		t.Errorf("expected distinct jti, both %q", ca.ID)
	}
}

func TestValidateTokenWithWrongSecret(t *testing.T) {
	token, err := auth.GenerateToken("secret-a", auth.Principal{UserID: 1, Role: "CUSTOMER"})
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	_, err = auth.ValidateToken("secret-b", token)
	if err == nil {
		t.Fatal("expected error validating with wrong secret")
	}
}

func TestValidateTokenWithInvalidString(t *testing.T) {
	_, err := auth.ValidateToken("secret", "not-a-jwt")
	if err == nil {
		t.Fatal("expected error validating invalid token string")
	}
}

func TestValidateToken_RejectsRefreshToken(t *testing.T) {
	refresh, err := auth.GenerateRefreshToken("secret", 9)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}
	if _, err := auth.ValidateToken("secret", refresh); err == nil {
		t.Fatal("expected refresh token to be rejected as access token")
	}
}

func TestValidateRefreshToken(t *testing.T) {
	refresh, err := auth.GenerateRefreshToken("secret", 9)
	if err != nil {
		t.Fatalf("generate refresh token: %v", err)
	}

	userID, err := auth.ValidateRefreshToken("secret", refresh)
	if err != nil {
		t.Fatalf("validate refresh token: %v", err)
	}
	if userID != 9 {
		t.Errorf("user ID: got %d, want 9", userID)
	}

	if _, err := auth.ValidateRefreshToken("other", refresh); err == nil {
		t.Fatal("expected error with wrong secret")
	}
}

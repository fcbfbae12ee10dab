package utils

import "testing"

func TestGenerateAndParseToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("JWT_EXPIRE_HOURS", "")

	token, err := GenerateToken(42, "student@example.edu", []string{"Student"})
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseToken(token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != 42 || claims.Email != "student@example.edu" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "Student" {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}

	t.Setenv("JWT_SECRET", "another-secret")
	if _, err := ParseToken(token); err == nil {
		t.Fatalf("expected token signed with a different secret to be rejected")
	}
}

func TestGenerateTokenRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	if _, err := GenerateToken(1, "a@example.edu", nil); err == nil {
		t.Fatalf("expected an error without JWT_SECRET")
	}
}

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key-for-jwt-signing"

func TestGenerateAndParseAccessToken(t *testing.T) {
	token, err := GenerateAccessToken("couch-tablet", RoleOperator, "living-room", testSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	if token == "" {
		t.Fatal("GenerateAccessToken() returned empty token")
	}

	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}

	if claims.Subject != "couch-tablet" {
		t.Errorf("Subject = %q, want %q", claims.Subject, "couch-tablet")
	}
	if claims.Role != RoleOperator {
		t.Errorf("Role = %q, want %q", claims.Role, RoleOperator)
	}
	if claims.SessionID != "living-room" {
		t.Errorf("SessionID = %q, want %q", claims.SessionID, "living-room")
	}
	if claims.ID == "" {
		t.Error("JTI (ID) should not be empty")
	}

	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if ttl != 15*time.Minute {
		t.Errorf("TTL = %v, want 15m", ttl)
	}
}

func TestGenerateAccessToken_DefaultTTL(t *testing.T) {
	token, err := GenerateAccessToken("ops", RoleViewer, "", testSecret, 0)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}
	claims, err := ParseToken(token, testSecret)
	if err != nil {
		t.Fatalf("ParseToken() error = %v", err)
	}
	if ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time); ttl != defaultAccessTokenTTL {
		t.Errorf("TTL = %v, want %v", ttl, defaultAccessTokenTTL)
	}
}

func TestGenerateAccessToken_Validation(t *testing.T) {
	if _, err := GenerateAccessToken("bad subject!", RoleViewer, "", testSecret, 15); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("invalid subject error = %v, want ErrTokenInvalid", err)
	}
	if _, err := GenerateAccessToken("ops", Role("admin"), "", testSecret, 15); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("invalid role error = %v, want ErrInvalidRole", err)
	}
}

func TestParseToken_Rejects(t *testing.T) {
	valid, err := GenerateAccessToken("ops", RoleViewer, "", testSecret, 15)
	if err != nil {
		t.Fatalf("GenerateAccessToken() error = %v", err)
	}

	expired := signClaims(t, CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Role: RoleViewer,
	})
	noSubject := signClaims(t, CustomClaims{Role: RoleViewer})
	unknownRole := signClaims(t, CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ops"},
		Role:             Role("owner"),
	})

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", valid, "wrong-secret"},
		{"garbage", "not-a-valid-jwt", testSecret},
		{"expired", expired, testSecret},
		{"missing subject", noSubject, testSecret},
		{"unknown role", unknownRole, testSecret},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseToken(tt.token, tt.secret); !errors.Is(err, ErrTokenInvalid) {
				t.Errorf("ParseToken() error = %v, want ErrTokenInvalid", err)
			}
		})
	}
}

func TestParseToken_RejectsOtherAlgorithms(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, CustomClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "ops"},
		Role:             RoleOperator,
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken(signed, testSecret); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("ParseToken(HS512) error = %v, want ErrTokenInvalid", err)
	}
}

func signClaims(t *testing.T, claims CustomClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing: %v", err)
	}
	return signed
}

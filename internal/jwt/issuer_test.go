package jwt

import (
	"testing"
	"time"
)

func TestCreateTokenUniquePerIssuance(t *testing.T) {
	issuer, err := NewIssuer("idcore-test", time.Hour)
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	// Dos emisiones en el mismo segundo deben diferir igual: el jti es
	// único aunque iat/nbf/exp coincidan.
	a, err := issuer.CreateToken("subj", "", "", nil, 0)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	b, err := issuer.CreateToken("subj", "", "", nil, 0)
	if err != nil {
		t.Fatalf("CreateToken: %v", err)
	}
	if a.AccessToken == b.AccessToken {
		t.Fatal("dos emisiones produjeron el mismo token")
	}

	claims, err := issuer.Verify(a.AccessToken)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims["jti"] == "" || claims["jti"] == nil {
		t.Fatal("falta la claim jti")
	}
	if claims["sub"] != "subj" {
		t.Fatalf("sub = %v", claims["sub"])
	}
}

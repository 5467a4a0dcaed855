package server

import (
	"testing"
	"time"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
)

func newAuthEnv(t *testing.T) (*testEnv, *AuthService) {
	t.Helper()
	e := newTestEnv(t)
	if err := SetPassword(e.game.DB, refBob, "hunter2"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	if err := SetPassword(e.game.DB, refWiz, "potrzebie"); err != nil {
		t.Fatalf("SetPassword: %v", err)
	}
	return e, NewAuthService(e.game, "test-secret", 3600)
}

func TestAuthLoginIssuesValidToken(t *testing.T) {
	_, auth := newAuthEnv(t)

	token, err := auth.Login("Bob", "hunter2")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := auth.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.PlayerRef != refBob || claims.PlayerName != "Bob" {
		t.Errorf("claims = #%d %q, want #%d Bob", claims.PlayerRef, claims.PlayerName, refBob)
	}
	if claims.Staff {
		t.Error("Bob should not be staff")
	}
	if claims.Subject != "#2" {
		t.Errorf("subject = %q, want #2", claims.Subject)
	}

	wizToken, err := auth.Login("wizard", "potrzebie")
	if err != nil {
		t.Fatalf("Login wizard: %v", err)
	}
	wc, err := auth.ValidateToken(wizToken)
	if err != nil {
		t.Fatal(err)
	}
	if !wc.Staff {
		t.Error("Wizard token should carry staff")
	}
}

func TestAuthLoginRejectsBadCredentials(t *testing.T) {
	_, auth := newAuthEnv(t)
	if _, err := auth.Login("Bob", "wrong"); err == nil {
		t.Error("wrong password accepted")
	}
	if _, err := auth.Login("Nobody", "hunter2"); err == nil {
		t.Error("unknown character accepted")
	}
}

func TestAuthRejectsForeignAndExpiredTokens(t *testing.T) {
	e, auth := newAuthEnv(t)
	token, err := auth.Login("Bob", "hunter2")
	if err != nil {
		t.Fatal(err)
	}

	other := NewAuthService(e.game, "another-secret", 3600)
	if _, err := other.ValidateToken(token); err == nil {
		t.Error("token signed with another key validated")
	}

	short := NewAuthService(e.game, "test-secret", 1)
	short.expiry = -time.Minute
	expired, err := short.sign(Claims{PlayerRef: refBob, PlayerName: "Bob"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := auth.ValidateToken(expired); err == nil {
		t.Error("expired token validated")
	}
	if _, err := auth.ValidateToken("not.a.token"); err == nil {
		t.Error("garbage validated")
	}
}

func TestAuthRefreshKeepsIdentity(t *testing.T) {
	_, auth := newAuthEnv(t)
	token, err := auth.Login("Bob", "hunter2")
	if err != nil {
		t.Fatal(err)
	}
	fresh, err := auth.RefreshToken(token)
	if err != nil {
		t.Fatalf("RefreshToken: %v", err)
	}
	claims, err := auth.ValidateToken(fresh)
	if err != nil {
		t.Fatal(err)
	}
	if claims.PlayerRef != refBob {
		t.Errorf("refreshed token for #%d, want #%d", claims.PlayerRef, refBob)
	}
	if _, err := auth.RefreshToken("garbage"); err == nil {
		t.Error("refresh of garbage succeeded")
	}
}

func TestAuthRefreshRereadsCharacter(t *testing.T) {
	e, auth := newAuthEnv(t)
	token, err := auth.Login("Wizard", "potrzebie")
	if err != nil {
		t.Fatal(err)
	}
	e.game.DB.Objects[refWiz].Flags[0] &^= gamedb.FlagWizard
	fresh, err := auth.RefreshToken(token)
	if err != nil {
		t.Fatal(err)
	}
	if c, _ := auth.ValidateToken(fresh); c == nil || c.Staff {
		t.Errorf("refreshed claims = %+v, want staff dropped", c)
	}

	delete(e.game.DB.Objects, refWiz)
	if _, err := auth.RefreshToken(token); err == nil {
		t.Error("refresh for a missing character succeeded")
	}
}

func TestGenerateJWTSecret(t *testing.T) {
	a, b := GenerateJWTSecret(), GenerateJWTSecret()
	if len(a) != 64 {
		t.Errorf("secret length = %d, want 64", len(a))
	}
	if a == b {
		t.Error("secrets should differ")
	}
}

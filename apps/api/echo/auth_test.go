package echoapi

import (
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	"github.com/kazihub/kazi/core"
	"github.com/kazihub/kazi/core/user"
)

func TestTokenRoundTrip(t *testing.T) {
	conf := &core.Config{
		AppName:   "Kazi",
		SecretKey: "test-secret",
		Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
	}
	usr := user.User{
		ID:       "6a793de0-14e4-44e1-af3a-deb829208e04",
		Username: "awe",
		Email:    "awe@kazi.cd",
		Roles:    []string{user.RoleOperations},
	}

	ss, err := GenerateToken(conf, GetUserClaims(conf, usr))
	if err != nil {
		t.Fatalf("GenerateToken() failed, %v", err)
	}

	// the middleware stores whatever ParseTokenFunc returns in the context;
	// getContextClaims needs it to be a dgrijalva *jwt.Token
	cfg := newJWTConfig(conf)
	parsed, err := cfg.ParseTokenFunc(ss, nil)
	if err != nil {
		t.Fatalf("ParseTokenFunc() failed, %v", err)
	}
	token, ok := parsed.(*jwt.Token)
	if !ok {
		t.Fatalf("parsed token is %T, want *jwt.Token", parsed)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		t.Fatalf("token claims are %T, want *Claims", token.Claims)
	}
	if claims.Subject != usr.ID || claims.Username != usr.Username || !claims.IsOperations {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestParseTokenFuncRejections(t *testing.T) {
	conf := &core.Config{
		AppName:   "Kazi",
		SecretKey: "test-secret",
		Server:    core.ServerConfig{JWTExpirationDelta: time.Hour},
	}
	usr := user.User{ID: "6a793de0-14e4-44e1-af3a-deb829208e04", Username: "awe"}
	cfg := newJWTConfig(conf)

	t.Run("wrong key", func(t *testing.T) {
		otherConf := *conf
		otherConf.SecretKey = "other-secret"
		ss, err := GenerateToken(&otherConf, GetUserClaims(&otherConf, usr))
		if err != nil {
			t.Fatalf("GenerateToken() failed, %v", err)
		}
		if _, err := cfg.ParseTokenFunc(ss, nil); err == nil {
			t.Error("expected a signature error")
		}
	})

	t.Run("expired", func(t *testing.T) {
		expiredConf := *conf
		expiredConf.Server.JWTExpirationDelta = -time.Hour
		ss, err := GenerateToken(&expiredConf, GetUserClaims(&expiredConf, usr))
		if err != nil {
			t.Fatalf("GenerateToken() failed, %v", err)
		}
		if _, err := cfg.ParseTokenFunc(ss, nil); err == nil {
			t.Error("expected an expiry error")
		}
	})

	t.Run("garbage", func(t *testing.T) {
		if _, err := cfg.ParseTokenFunc("not.a.token", nil); err == nil {
			t.Error("expected a parse error")
		}
	})
}

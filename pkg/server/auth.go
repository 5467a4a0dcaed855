package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/crystal-mush/chroniclemush/pkg/gamedb"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer   = "chroniclemush"
	defaultExpiry = 24 * time.Hour
)

var errCharacterGone = errors.New("character no longer exists")

// Claims is the JWT body for a character session. Staff is a hint for web
// clients; staff routes re-check flags on every request.
type Claims struct {
	PlayerRef  gamedb.DBRef `json:"player_ref"`
	PlayerName string       `json:"player_name"`
	Staff      bool         `json:"staff,omitempty"`
	jwt.RegisteredClaims
}

// AuthService issues and checks HS256 tokens bound to a character.
type AuthService struct {
	game   *Game
	key    []byte
	expiry time.Duration
	parser *jwt.Parser
}

// NewAuthService creates an auth service. Without a secret a random key is
// used, so tokens do not survive a restart.
func NewAuthService(game *Game, secret string, expirySeconds int) *AuthService {
	key := []byte(secret)
	if secret == "" {
		key = randomBytes(32)
	}
	expiry := defaultExpiry
	if expirySeconds > 0 {
		expiry = time.Duration(expirySeconds) * time.Second
	}
	return &AuthService{
		game:   game,
		key:    key,
		expiry: expiry,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(tokenIssuer),
			jwt.WithExpirationRequired(),
		),
	}
}

// Login checks name and password and returns a token for the character.
func (a *AuthService) Login(name, password string) (string, error) {
	g := a.game
	g.mu.Lock()
	player, err := g.authenticate(name, password)
	var claims Claims
	if err == nil {
		claims = a.claimsFor(player)
	}
	g.mu.Unlock()
	if err != nil {
		return "", err
	}
	return a.sign(claims)
}

// claimsFor reads the character's current name and staff standing. The
// caller holds g.mu.
func (a *AuthService) claimsFor(player gamedb.DBRef) Claims {
	return Claims{
		PlayerRef:  player,
		PlayerName: a.game.PlayerName(player),
		Staff:      IsStaff(a.game, player),
	}
}

func (a *AuthService) sign(c Claims) (string, error) {
	now := time.Now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   fmt.Sprintf("#%d", c.PlayerRef),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.expiry)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.key)
}

// ValidateToken checks signature, issuer and expiry.
func (a *AuthService) ValidateToken(raw string) (*Claims, error) {
	var c Claims
	if _, err := a.parser.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) { return a.key, nil }); err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return &c, nil
}

// RefreshToken reissues a valid token. Name and staff standing are read
// again, and a destroyed character cannot refresh.
func (a *AuthService) RefreshToken(raw string) (string, error) {
	old, err := a.ValidateToken(raw)
	if err != nil {
		return "", err
	}
	g := a.game
	g.mu.Lock()
	obj, ok := g.DB.Objects[old.PlayerRef]
	alive := ok && obj.IsCharacter()
	var c Claims
	if alive {
		c = a.claimsFor(old.PlayerRef)
	}
	g.mu.Unlock()
	if !alive {
		return "", errCharacterGone
	}
	return a.sign(c)
}

// GenerateJWTSecret returns 32 random bytes in hex, for jwt_secret.
func GenerateJWTSecret() string {
	return hex.EncodeToString(randomBytes(32))
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	rand.Read(b)
	return b
}

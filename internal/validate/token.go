package validate

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultTokenTTL bounds how long an issued token stays valid.
const DefaultTokenTTL = 5 * time.Minute

var (
	errNoSecret = errors.New("validate: token secret required")
)

// TokenConfig configures token signing.
type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

func (c TokenConfig) normalized() TokenConfig {
	if c.Issuer == "" {
		c.Issuer = "hexclash"
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTokenTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Claims are the fields bound into an access token.
type Claims struct {
	MatchID string
	UserID  int64
	Turn    uint64
	Seq     uint64
	JWTID   string
}

// accessClaims is the internal claims type used for JWT signing.
type accessClaims struct {
	jwt.RegisteredClaims
	MatchID string `json:"match_id"`
	UserID  int64  `json:"user_id"`
	Turn    uint64 `json:"turn"`
	Seq     uint64 `json:"seq"`
}

// Gate mints and checks access tokens. Exactly one token is valid at a time:
// issuing a new one or consuming the current one invalidates everything
// issued before.
type Gate struct {
	mu      sync.Mutex
	cfg     TokenConfig
	matchID string
	seq     uint64
	current Claims
	live    bool
}

// NewGate builds a gate for one match.
func NewGate(matchID string, cfg TokenConfig) (*Gate, error) {
	cfg = cfg.normalized()
	if len(cfg.Secret) == 0 {
		return nil, errNoSecret
	}
	return &Gate{cfg: cfg, matchID: matchID}, nil
}

// Issue mints a token for user on turn, revoking any previous token.
func (g *Gate) Issue(userID int64, turn uint64) (string, error) {
	if g == nil {
		return "", errNoSecret
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	now := g.cfg.Now().UTC()
	claims := accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.cfg.Issuer,
			Subject:   fmt.Sprintf("%d", userID),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(g.cfg.TTL)),
		},
		MatchID: g.matchID,
		UserID:  userID,
		Turn:    turn,
		Seq:     g.seq,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	g.current = Claims{MatchID: g.matchID, UserID: userID, Turn: turn, Seq: g.seq, JWTID: claims.ID}
	g.live = true
	return signed, nil
}

// Verify checks that token is the one most recently issued, for userID and
// turn, and has not been consumed.
func (g *Gate) Verify(token string, userID int64, turn uint64) (Claims, error) {
	if g == nil {
		return Claims{}, reject(RejectInvalidToken, "no gate")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return Claims{}, reject(RejectMissingToken, "user %d", userID)
	}
	parsed, err := g.parse(token)
	if err != nil {
		return Claims{}, reject(RejectInvalidToken, "%v", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.live || parsed.JWTID != g.current.JWTID || parsed.Seq != g.current.Seq {
		return Claims{}, reject(RejectStaleToken, "token %s is not current", parsed.JWTID)
	}
	if parsed.MatchID != g.matchID {
		return Claims{}, reject(RejectInvalidToken, "match mismatch")
	}
	if parsed.UserID != userID || parsed.Turn != turn {
		return Claims{}, reject(RejectStaleToken, "token for user %d turn %d", parsed.UserID, parsed.Turn)
	}
	return parsed, nil
}

// Consume invalidates the current token.
func (g *Gate) Consume() {
	if g == nil {
		return
	}
	g.mu.Lock()
	g.live = false
	g.mu.Unlock()
}

// Current reports the claims of the live token, if any.
func (g *Gate) Current() (Claims, bool) {
	if g == nil {
		return Claims{}, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current, g.live
}

func (g *Gate) parse(token string) (Claims, error) {
	var parsed accessClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return g.cfg.Secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(g.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.cfg.Now),
	)
	if err != nil {
		return Claims{}, err
	}
	if parsed.ID == "" {
		return Claims{}, errors.New("token jti is required")
	}
	return Claims{
		MatchID: parsed.MatchID,
		UserID:  parsed.UserID,
		Turn:    parsed.Turn,
		Seq:     parsed.Seq,
		JWTID:   parsed.ID,
	}, nil
}

package server

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// access is the level a REST route demands of its caller.
type access int

const (
	accessAnyone    access = iota // token optional; claims attached when present
	accessCharacter               // valid token bound to a character
	accessStaff                   // character currently holds a staff flag
)

type claimsKey struct{}

// ClaimsFromContext returns the claims guard attached to the request, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey{}).(*Claims)
	return c
}

var errBadAuthHeader = errors.New("invalid authorization header")

// bearerToken pulls the token out of "Authorization: Bearer <token>".
// A missing header is not an error.
func bearerToken(r *http.Request) (string, error) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return "", nil
	}
	scheme, tok, ok := strings.Cut(h, " ")
	tok = strings.TrimSpace(tok)
	if !ok || !strings.EqualFold(scheme, "Bearer") || tok == "" {
		return "", errBadAuthHeader
	}
	return tok, nil
}

// guard wraps a REST handler with token validation for the given access
// level. Staff status is read from the live object, so a character demoted
// after the token was issued loses staff routes immediately.
func (ws *WebServer) guard(level access, next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, err := bearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if tok == "" {
			if level > accessAnyone {
				writeError(w, http.StatusUnauthorized, "authorization required")
				return
			}
			next(w, r)
			return
		}

		claims, err := ws.auth.ValidateToken(tok)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		if level == accessStaff {
			g := ws.game
			g.mu.Lock()
			staff := IsStaff(g, claims.PlayerRef)
			g.mu.Unlock()
			if !staff {
				writeError(w, http.StatusForbidden, "staff or storyteller only")
				return
			}
		}
		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
	})
}

// originPolicy is the set of browser origins allowed to call the API and
// open a WebSocket. An empty policy allows every origin.
type originPolicy map[string]bool

func newOriginPolicy(origins []string) originPolicy {
	p := make(originPolicy, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			p[strings.ToLower(o)] = true
		}
	}
	return p
}

func (p originPolicy) allows(origin string) bool {
	return len(p) == 0 || p[strings.ToLower(origin)]
}

// checkOrigin is the WebSocket upgrader hook. Non-browser clients send no
// Origin and are let through.
func (p originPolicy) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || p.allows(origin)
}

func corsMiddleware(p originPolicy, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && p.allows(origin) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Max-Age", "86400")
			h.Add("Vary", "Origin")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimiter is a per-client token bucket refilled at limit tokens per
// minute. A limit of zero or less disables it.
type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*tokenBucket
	limit   float64
	now     func() time.Time
}

type tokenBucket struct {
	tokens float64
	seen   time.Time
}

func newRateLimiter(requestsPerMinute int) *rateLimiter {
	return &rateLimiter{
		clients: make(map[string]*tokenBucket),
		limit:   float64(requestsPerMinute),
		now:     time.Now,
	}
}

// allow spends one token for client. When the bucket is empty it reports
// how long until the next token arrives.
func (rl *rateLimiter) allow(client string) (bool, time.Duration) {
	if rl.limit <= 0 {
		return true, 0
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.clients[client]
	if !ok {
		b = &tokenBucket{tokens: rl.limit, seen: now}
		rl.clients[client] = b
	}
	b.tokens = math.Min(rl.limit, b.tokens+now.Sub(b.seen).Minutes()*rl.limit)
	b.seen = now
	if b.tokens < 1 {
		wait := time.Duration((1 - b.tokens) / rl.limit * float64(time.Minute))
		return false, wait
	}
	b.tokens--
	return true, 0
}

// sweep drops buckets idle longer than idle; they would be full again anyway.
func (rl *rateLimiter) sweep(idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-idle)
	for client, b := range rl.clients {
		if b.seen.Before(cutoff) {
			delete(rl.clients, client)
		}
	}
}

func clientAddr(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func rateLimitMiddleware(rl *rateLimiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ok, wait := rl.allow(clientAddr(r)); !ok {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(math.Ceil(wait.Seconds()))))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

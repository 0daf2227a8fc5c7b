package middleware

import (
	"context"
	"errors"
	"math"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Togather-Foundation/rsvp/internal/api/problem"
	"github.com/Togather-Foundation/rsvp/internal/config"
	"golang.org/x/time/rate"
)

type RateLimitTier string

const (
	TierPublic        RateLimitTier = "public"
	TierAuthenticated RateLimitTier = "authenticated"
	TierLogin         RateLimitTier = "login" // register and login, counted per 15 minutes
)

const (
	loginWindow = 15 * time.Minute
	// idleTTL is how long an unused bucket is kept before the lazy sweep
	// drops it.
	idleTTL = 15 * time.Minute
)

var errRateLimited = errors.New("rate limit exceeded")

type rateLimitKey string

const rateLimitTierKey rateLimitKey = "rateLimitTier"

func WithRateLimitTier(ctx context.Context, tier RateLimitTier) context.Context {
	return context.WithValue(ctx, rateLimitTierKey, tier)
}

func WithRateLimitTierHandler(tier RateLimitTier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(WithRateLimitTier(r.Context(), tier)))
		})
	}
}

// RateLimit throttles requests with one token bucket per client and tier.
// The tier comes from the request context (TierPublic when unset).
// Authenticated requests are keyed by user id, everything else by client IP.
// A tier with a non-positive limit is not throttled.
//
// Rejections are 429 problems whose Retry-After is the wait until the
// client's next token.
func RateLimit(cfg config.RateLimitConfig) func(http.Handler) http.Handler {
	buckets := newBucketStore(map[RateLimitTier]policy{
		TierPublic:        perWindow(cfg.PublicPerMinute, time.Minute),
		TierAuthenticated: perWindow(cfg.AuthenticatedPerMinute, time.Minute),
		TierLogin:         perWindow(cfg.LoginPer15Minutes, loginWindow),
	})
	trusted := parseTrustedProxies(cfg.TrustedProxyCIDRs)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/healthz" || r.URL.Path == "/readyz" {
				next.ServeHTTP(w, r)
				return
			}

			tier := TierPublic
			if value, ok := r.Context().Value(rateLimitTierKey).(RateLimitTier); ok {
				tier = value
			}

			key := clientKey(r, trusted)
			if userID := UserIDFromContext(r.Context()); userID != "" && tier == TierAuthenticated {
				key = "user:" + userID
			}

			if wait, ok := buckets.take(tier, key, time.Now()); !ok {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
				problem.Write(w, r, http.StatusTooManyRequests, problem.TypeRateLimited, "Too many requests", errRateLimited, "",
					problem.WithDetail("slow down and retry after the indicated number of seconds"))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// policy is a bucket shape: burst tokens, one refilled every interval.
type policy struct {
	burst    int
	interval time.Duration
}

func perWindow(limit int, window time.Duration) policy {
	if limit <= 0 {
		return policy{}
	}
	return policy{burst: limit, interval: window / time.Duration(limit)}
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type bucketStore struct {
	mu        sync.Mutex
	policies  map[RateLimitTier]policy
	buckets   map[string]*bucket
	nextSweep time.Time
}

func newBucketStore(policies map[RateLimitTier]policy) *bucketStore {
	return &bucketStore{policies: policies, buckets: make(map[string]*bucket)}
}

// take spends one token from the (tier, key) bucket. When none is available
// it returns the wait until the next one and false.
func (s *bucketStore) take(tier RateLimitTier, key string, now time.Time) (time.Duration, bool) {
	p := s.policies[tier]
	if p.burst <= 0 {
		return 0, true
	}

	s.mu.Lock()
	s.sweepLocked(now)
	id := string(tier) + "|" + key
	b, ok := s.buckets[id]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Every(p.interval), p.burst)}
		s.buckets[id] = b
	}
	b.lastSeen = now
	s.mu.Unlock()

	res := b.limiter.ReserveN(now, 1)
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return delay, false
	}
	return 0, true
}

// sweepLocked drops idle buckets at most once per idleTTL so the table stays
// bounded without a background goroutine.
func (s *bucketStore) sweepLocked(now time.Time) {
	if now.Before(s.nextSweep) {
		return
	}
	for id, b := range s.buckets {
		if now.Sub(b.lastSeen) > idleTTL {
			delete(s.buckets, id)
		}
	}
	s.nextSweep = now.Add(idleTTL)
}

func retryAfterSeconds(wait time.Duration) int {
	seconds := int(math.Ceil(wait.Seconds()))
	if seconds < 1 {
		return 1
	}
	return seconds
}

func parseTrustedProxies(cidrs []string) []netip.Prefix {
	prefixes := make([]netip.Prefix, 0, len(cidrs))
	for _, cidr := range cidrs {
		prefix, err := netip.ParsePrefix(strings.TrimSpace(cidr))
		if err != nil {
			continue
		}
		prefixes = append(prefixes, prefix.Masked())
	}
	return prefixes
}

// clientKey identifies the client by IP. Forwarding headers are only honoured
// when the direct peer is one of the trusted proxies.
func clientKey(r *http.Request, trusted []netip.Prefix) string {
	if r == nil {
		return ""
	}
	remote := r.RemoteAddr
	if host, _, err := net.SplitHostPort(remote); err == nil {
		remote = host
	}
	if !isTrustedProxy(remote, trusted) {
		return remote
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	return remote
}

func isTrustedProxy(ip string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

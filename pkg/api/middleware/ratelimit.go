package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/strainwise/convmem/pkg/api/response"
)

// limiterIdleTTL is how long an unused per-client limiter is kept.
const limiterIdleTTL = 10 * time.Minute

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter manages token buckets per client. Clients are keyed by the
// userID route parameter, falling back to the remote IP.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	rate      rate.Limit
	burst     int
	lastPrune time.Time
	now       func() time.Time
}

// NewRateLimiter creates a new rate limiter.
func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		now:      time.Now,
	}
}

// Update changes the rate and burst of every bucket, existing ones included.
func (rl *RateLimiter) Update(requestsPerSecond float64, burst int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.rate = rate.Limit(requestsPerSecond)
	rl.burst = burst
	now := rl.now()
	for _, cl := range rl.limiters {
		cl.limiter.SetLimitAt(now, rl.rate)
		cl.limiter.SetBurstAt(now, rl.burst)
	}
}

// Allow reports whether a request from clientID may proceed. When it may
// not, the returned duration is the wait until the next token.
func (rl *RateLimiter) Allow(clientID string) (bool, time.Duration) {
	rl.mu.Lock()
	now := rl.now()
	rl.pruneLocked(now)

	cl, ok := rl.limiters[clientID]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[clientID] = cl
	}
	cl.lastSeen = now
	limiter := cl.limiter
	rl.mu.Unlock()

	if limiter.AllowN(now, 1) {
		return true, 0
	}
	reservation := limiter.ReserveN(now, 1)
	defer reservation.CancelAt(now)
	if !reservation.OK() {
		return false, time.Second
	}
	return false, reservation.DelayFrom(now)
}

// Clients returns the number of tracked clients.
func (rl *RateLimiter) Clients() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *RateLimiter) pruneLocked(now time.Time) {
	if now.Sub(rl.lastPrune) < limiterIdleTTL {
		return
	}
	rl.lastPrune = now
	for id, cl := range rl.limiters {
		if now.Sub(cl.lastSeen) > limiterIdleTTL {
			delete(rl.limiters, id)
		}
	}
}

// RateLimit rejects requests over the client's budget with 429 and a
// Retry-After header. A nil limiter disables the middleware.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if rl == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, wait := rl.Allow(clientID(r))
			if !allowed {
				retry := int(math.Ceil(wait.Seconds()))
				if retry < 1 {
					retry = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				requestID := GetRequestID(r.Context())
				if requestID == "" {
					requestID = "unknown"
				}
				response.Error(w, http.StatusTooManyRequests, response.ErrCodeTooManyRequests, "Rate limit exceeded", requestID)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientID(r *http.Request) string {
	if userID := chi.URLParam(r, "userID"); userID != "" {
		return "user:" + userID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

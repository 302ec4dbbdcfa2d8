package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/saurav-sabu/RepoScribe/internal/domain"
)

// RateLimitConfig holds configuration for the rate limiter.
type RateLimitConfig struct {
	RequestsPerMin int
	BurstSize      int
	// TrustedProxies are IPs or CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string
	// IdleTTL drops per-client state after this much inactivity.
	IdleTTL time.Duration
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterSet is a token bucket per client IP.
type limiterSet struct {
	cfg     RateLimitConfig
	proxies []*net.IPNet

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// RateLimit limits each client IP to cfg.RequestsPerMin with bursts of
// cfg.BurstSize. Stale client entries are swept until ctx is done.
// Proxy headers are ignored unless the peer is a trusted proxy.
func RateLimit(ctx context.Context, cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 3 * time.Minute
	}
	ls := &limiterSet{
		cfg:     cfg,
		proxies: parseProxies(cfg.TrustedProxies),
		clients: make(map[string]*clientLimiter),
	}
	go ls.sweep(ctx, time.Minute)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !ls.allow(clientIP(r, ls.proxies)) {
				writeJSONError(w, http.StatusTooManyRequests, domain.CodeRateLimit, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (ls *limiterSet) allow(ip string) bool {
	ls.mu.Lock()
	c, ok := ls.clients[ip]
	if !ok {
		c = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(ls.cfg.RequestsPerMin)/60.0, ls.cfg.BurstSize),
		}
		ls.clients[ip] = c
	}
	c.lastSeen = time.Now()
	lim := c.limiter
	ls.mu.Unlock()
	return lim.Allow()
}

func (ls *limiterSet) sweep(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			ls.evictIdle(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

func (ls *limiterSet) evictIdle(now time.Time) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	for ip, c := range ls.clients {
		if now.Sub(c.lastSeen) > ls.cfg.IdleTTL {
			delete(ls.clients, ip)
		}
	}
}

func (ls *limiterSet) size() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.clients)
}

func parseProxies(list []string) []*net.IPNet {
	var out []*net.IPNet
	for _, p := range list {
		if !strings.Contains(p, "/") {
			if ip := net.ParseIP(p); ip != nil && ip.To4() != nil {
				p += "/32"
			} else {
				p += "/128"
			}
		}
		if _, n, err := net.ParseCIDR(p); err == nil {
			out = append(out, n)
		}
	}
	return out
}

// clientIP returns the peer address, or the first X-Forwarded-For /
// X-Real-IP entry when the peer is a trusted proxy.
func clientIP(r *http.Request, trusted []*net.IPNet) string {
	direct := r.RemoteAddr
	if host, _, err := net.SplitHostPort(direct); err == nil {
		direct = host
	}
	if len(trusted) == 0 {
		return direct
	}

	peer := net.ParseIP(direct)
	isTrusted := false
	for _, n := range trusted {
		if peer != nil && n.Contains(peer) {
			isTrusted = true
			break
		}
	}
	if !isTrusted {
		return direct
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	return direct
}

type errorBody struct {
	Error string           `json:"error"`
	Code  domain.ErrorCode `json:"code"`
}

func writeJSONError(w http.ResponseWriter, status int, code domain.ErrorCode, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorBody{Error: msg, Code: code})
}

package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"

	"didauday/internal/config"
	"didauday/internal/domain"
	"didauday/internal/policy"

	"golang.org/x/time/rate"
)

var (
	errUnauthenticated  = errors.New("missing or invalid api key headers")
	errPermissionDenied = errors.New("permission denied")
)

type clientContextKey struct{}

// ClientFromContext returns the authenticated API client, if any.
func ClientFromContext(ctx context.Context) (config.APIClientKey, bool) {
	client, ok := ctx.Value(clientContextKey{}).(config.APIClientKey)
	return client, ok
}

// HTTPAuth authenticates API keys, checks the caller's role against the
// grant matrix and applies per-key rate limits. Payment redirect
// endpoints are public: the buyer's browser arrives there without keys.
type HTTPAuth struct {
	cfg      config.APIConfig
	clients  map[string]config.APIClientKey
	policy   domain.PolicyChecker
	limiters sync.Map // map[string]*rate.Limiter
}

func NewHTTPAuth(cfg config.APIConfig, checker domain.PolicyChecker) *HTTPAuth {
	m := make(map[string]config.APIClientKey, len(cfg.Auth.APIKeys))
	for _, k := range cfg.Auth.APIKeys {
		m[k.Key] = k
	}
	return &HTTPAuth{cfg: cfg, clients: m, policy: checker}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			if err := a.checkRateLimit(r); err != nil {
				writeError(w, http.StatusTooManyRequests, err.Error())
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if a.cfg.Auth.Enabled {
			client, err := a.authenticate(r)
			if err != nil {
				statusCode := http.StatusUnauthorized
				if errors.Is(err, errPermissionDenied) {
					statusCode = http.StatusForbidden
				}
				writeError(w, statusCode, err.Error())
				return
			}
			r = r.WithContext(context.WithValue(r.Context(), clientContextKey{}, client))
		}

		if err := a.checkRateLimit(r); err != nil {
			writeError(w, http.StatusTooManyRequests, err.Error())
			return
		}

		next.ServeHTTP(w, r)
	})
}

func isPublicPath(path string) bool {
	return path == "/booking/success" || path == "/booking/cancel" || path == "/healthz"
}

func (a *HTTPAuth) authenticate(r *http.Request) (config.APIClientKey, error) {
	apiKey := strings.TrimSpace(r.Header.Get(a.headerAPIKey()))
	extra := strings.TrimSpace(r.Header.Get(a.headerExtra()))
	if apiKey == "" || extra == "" {
		return config.APIClientKey{}, errUnauthenticated
	}

	client, ok := a.clients[apiKey]
	if !ok {
		return config.APIClientKey{}, errUnauthenticated
	}
	if subtle.ConstantTimeCompare([]byte(client.Extra), []byte(extra)) != 1 {
		return config.APIClientKey{}, errUnauthenticated
	}

	if err := a.checkGrant(r, client); err != nil {
		return config.APIClientKey{}, err
	}
	return client, nil
}

func (a *HTTPAuth) checkGrant(r *http.Request, client config.APIClientKey) error {
	resource, action, possession := requiredGrant(r)
	if resource == "" || a.policy == nil {
		return nil
	}
	allowed, err := a.policy.Allowed(r.Context(), client.Role, resource, action, possession)
	if err != nil {
		return err
	}
	if !allowed {
		return errPermissionDenied
	}
	return nil
}

// requiredGrant maps a route to the grant it needs. Routes outside the
// matrix need authentication only.
func requiredGrant(r *http.Request) (resource, action, possession string) {
	path := r.URL.Path
	switch {
	case path == "/api/v1/bookings" && r.Method == http.MethodPost:
		return policy.ResourceBooking, policy.ActionCreate, policy.PossessionOwn
	case path == "/api/v1/bookings" && r.Method == http.MethodGet:
		return policy.ResourceBooking, policy.ActionRead, policy.PossessionAny
	case path == "/api/v1/bookings/me":
		return policy.ResourceBooking, policy.ActionRead, policy.PossessionOwn
	case path == "/api/v1/coupon-codes" && r.Method == http.MethodPost:
		return policy.ResourceCoupon, policy.ActionCreate, policy.PossessionOwn
	case path == "/api/v1/coupon-codes" && r.Method == http.MethodGet:
		return policy.ResourceCoupon, policy.ActionRead, policy.PossessionOwn
	case strings.HasPrefix(path, "/api/v1/coupon-codes/") && r.Method == http.MethodPatch:
		return policy.ResourceCoupon, policy.ActionUpdate, policy.PossessionOwn
	case strings.HasPrefix(path, "/api/v1/coupon-codes/"):
		return policy.ResourceCoupon, policy.ActionRead, policy.PossessionOwn
	case path == "/api/v1/reports/ledger":
		return policy.ResourceLedger, policy.ActionRead, policy.PossessionAny
	}
	return "", "", ""
}

func (a *HTTPAuth) checkRateLimit(r *http.Request) error {
	if a.cfg.RateLimit.RPS <= 0 {
		return nil
	}
	lim := a.getLimiter(a.clientKey(r))
	if !lim.Allow() {
		return errors.New("rate limit exceeded")
	}
	return nil
}

func (a *HTTPAuth) clientKey(r *http.Request) string {
	if apiKey := strings.TrimSpace(r.Header.Get(a.headerAPIKey())); apiKey != "" {
		return apiKey
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return "unknown"
}

func (a *HTTPAuth) getLimiter(key string) *rate.Limiter {
	if v, ok := a.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	burst := a.cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 5
	}
	lim := rate.NewLimiter(rate.Limit(a.cfg.RateLimit.RPS), burst)
	actual, loaded := a.limiters.LoadOrStore(key, lim)
	if loaded {
		return actual.(*rate.Limiter)
	}
	return lim
}

func (a *HTTPAuth) headerAPIKey() string {
	h := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderAPIKey))
	if h == "" {
		h = "x-api-key"
	}
	return h
}

func (a *HTTPAuth) headerExtra() string {
	h := strings.TrimSpace(strings.ToLower(a.cfg.Auth.HeaderExtra))
	if h == "" {
		h = "x-api-extra"
	}
	return h
}

package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/domain"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/service"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/store"
)

const (
	tokenCookieName = "token"
	maxBodyBytes    = 1 << 20
)

type Options struct {
	AllowedOrigin string
	// SecureCookies marks the session cookie Secure; enabled in production.
	SecureCookies bool
	Logger        *zap.Logger
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	logger        *zap.Logger
	allowedOrigin string
	secureCookies bool
	authLimiter   *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		opts.Logger.Warn("crypto/rand unavailable, csrf tokens use a static secret", zap.Error(err))
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		logger:        opts.Logger,
		allowedOrigin: opts.AllowedOrigin,
		secureCookies: opts.SecureCookies,
		authLimiter:   newAttemptLimiter(10, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	return a.csrfTokenForHour(time.Now().UTC().Truncate(time.Hour).Unix())
}

// validateCSRFToken accepts the current and the previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	current := time.Now().UTC().Truncate(time.Hour).Unix()
	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current-3600)))
}

type attemptLimiter struct {
	mu        sync.Mutex
	max       int
	window    time.Duration
	entries   map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time), now: time.Now}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

// sweep drops clients with no attempt inside the window. Callers hold mu.
func (l *attemptLimiter) sweep(cutoff time.Time) {
	for key, history := range l.entries {
		if len(history) == 0 || !history[len(history)-1].After(cutoff) {
			delete(l.entries, key)
		}
	}
}

func (l *attemptLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)

	mux.HandleFunc("/api/auth/signup", a.limited(a.handleSignup))
	mux.HandleFunc("/api/auth/verify-otp", a.limited(a.handleVerifyOTP))
	mux.HandleFunc("/api/auth/resend-otp", a.limited(a.handleResendOTP))
	mux.HandleFunc("/api/auth/signin", a.limited(a.handleSignin))
	mux.HandleFunc("/api/auth/logout", a.handleLogout)
	mux.HandleFunc("/api/auth/csrf-token", a.handleCSRFToken)
	mux.HandleFunc("/api/auth/me", a.requireAuth(a.handleMe))
	mux.HandleFunc("/api/auth/change-password", a.requireAuth(a.handleChangePassword))

	mux.HandleFunc("/api/packages", a.requireAuth(a.handlePackages))
	mux.HandleFunc("/api/packages/", a.requireAuth(a.handlePackageActions))
	mux.HandleFunc("/api/bills", a.requireAuth(a.handleBills))
	mux.HandleFunc("/api/bills/", a.requireAuth(a.handleBillActions))
	mux.HandleFunc("/api/inventory", a.requireAuth(a.handleInventory))
	mux.HandleFunc("/api/inventory/", a.requireAuth(a.handleInventoryActions))
	mux.HandleFunc("/api/daily-expenses", a.requireAuth(a.handleDailyExpenses))
	mux.HandleFunc("/api/daily-expenses/", a.requireAuth(a.handleDailyExpenseActions))

	mux.HandleFunc("/api/dashboard/analytics", a.requireAuth(a.handleDashboard))
	mux.HandleFunc("/api/reports/sales", a.requireAuth(a.handleSalesReport))
	mux.HandleFunc("/api/reports/expenses", a.requireAuth(a.handleExpenseReport))

	return a.withMiddleware(mux)
}

// requireAuth accepts the token from the Authorization header or the session
// cookie. Cookie sessions must also present a CSRF token on mutating requests.
func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, fromCookie := bearerToken(r)
		if token == "" {
			a.writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		actor, err := a.auth.ParseToken(token)
		if err != nil {
			a.writeError(w, http.StatusUnauthorized, err)
			return
		}

		if fromCookie && isMutating(r.Method) && !a.validateCSRFToken(strings.TrimSpace(r.Header.Get("X-CSRF-Token"))) {
			a.writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authorization := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
		return strings.TrimSpace(authorization[len("Bearer "):]), false
	}
	if cookie, err := r.Cookie(tokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, true
	}
	return "", false
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func (a *API) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && !a.authLimiter.Allow(clientKey(r)) {
			a.writeError(w, http.StatusTooManyRequests, errors.New("too many attempts, please try again later"))
			return
		}
		next(w, r)
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	var req domain.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.auth.Signup(r.Context(), req); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Signup successful. Please verify the OTP sent to your email.",
	})
}

func (a *API) handleVerifyOTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	var req domain.VerifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.auth.VerifyOTP(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.setSessionCookie(w, resp.Token)
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleResendOTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	var req domain.ResendOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := a.auth.ResendOTP(r.Context(), req); err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "If this email is awaiting verification, a new OTP has been sent."})
}

func (a *API) handleSignin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	var req domain.SigninRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := a.auth.Signin(r.Context(), req)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.setSessionCookie(w, resp.Token)
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"message": "Signed out"})
}

// handleCSRFToken returns a stateless token for the X-CSRF-Token header.
func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"csrfToken": a.generateCSRFToken()})
}

func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	actor, _ := service.ActorFromContext(r.Context())
	user, err := a.auth.CurrentUser(r.Context(), actor)
	if err != nil {
		a.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": user})
}

func (a *API) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	var req domain.ChangePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	actor, _ := service.ActorFromContext(r.Context())
	otpSent, err := a.auth.ChangePassword(r.Context(), actor, req)
	if err != nil {
		a.fail(w, err)
		return
	}
	if otpSent {
		writeJSON(w, http.StatusOK, map[string]any{"message": "OTP sent to your email", "otpSent": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Password changed successfully"})
}

func (a *API) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     tokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.auth.TokenTTL().Seconds()),
		HttpOnly: true,
		Secure:   a.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		if a.allowedOrigin != "*" {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if isMutating(r.Method) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("latency", time.Since(startedAt)),
		)
	})
}

// statusFor maps service, store and auth errors onto HTTP statuses.
func statusFor(err error) int {
	var stockErr *store.InsufficientStockError
	switch {
	case errors.Is(err, service.ErrUnauthenticated),
		errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotVerified),
		errors.Is(err, store.ErrEditWindowExpired):
		return http.StatusForbidden
	case errors.Is(err, ErrInvalidOTP),
		errors.Is(err, store.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &stockErr),
		errors.Is(err, store.ErrInsufficientStock),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, ErrEmailRegistered):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, dest any) error {
	return decodeRequest(r, dest, true)
}

// decodeJSONLenient ignores fields the target does not declare, so a record
// read from the API can be sent back with its server-computed fields.
func decodeJSONLenient(r *http.Request, dest any) error {
	return decodeRequest(r, dest, false)
}

func decodeRequest(r *http.Request, dest any, strict bool) error {
	decoder := json.NewDecoder(r.Body)
	if strict {
		decoder.DisallowUnknownFields()
	}
	if err := decoder.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.New("request body too large")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (a *API) fail(w http.ResponseWriter, err error) {
	a.writeError(w, statusFor(err), err)
}

func (a *API) writeMethodNotAllowed(w http.ResponseWriter) {
	a.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; the cause only goes to the log.
	msg := err.Error()
	if status >= 500 {
		a.logger.Error("internal error", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

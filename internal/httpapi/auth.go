package httpapi

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ocenasolutions/salon-tobo-sub000/internal/cache"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/domain"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/notify"
	"github.com/ocenasolutions/salon-tobo-sub000/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotVerified        = errors.New("please verify your email before signing in")
	ErrInvalidOTP         = errors.New("invalid or expired OTP")
	ErrEmailRegistered    = errors.New("email is already registered")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

const otpDigits = 6

type AuthOptions struct {
	Secret     string
	TokenTTL   time.Duration
	OTPTTL     time.Duration
	BcryptCost int
	Logger     *zap.Logger
}

// AuthManager owns the account lifecycle: signup with an emailed one-time
// code, sign-in, password change and the JWTs handed out on success.
type AuthManager struct {
	users    store.UserStore
	otps     cache.OTPStore
	mailer   notify.Mailer
	logger   *zap.Logger
	secret   []byte
	tokenTTL time.Duration
	otpTTL   time.Duration
	cost     int
	now      func() time.Time
	newCode  func() (string, error)
}

type salonClaims struct {
	jwtlib.RegisteredClaims
	UserID string `json:"userId"`
	Email  string `json:"email"`
}

func NewAuthManager(users store.UserStore, otps cache.OTPStore, mailer notify.Mailer, opts AuthOptions) *AuthManager {
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = 7 * 24 * time.Hour
	}
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = 10 * time.Minute
	}
	if opts.BcryptCost < bcrypt.MinCost || opts.BcryptCost > bcrypt.MaxCost {
		opts.BcryptCost = 12
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if otps == nil {
		otps = cache.NewMemoryOTPStore(nil)
	}
	if mailer == nil {
		mailer = notify.NewLogMailer(opts.Logger)
	}
	return &AuthManager{
		users:    users,
		otps:     otps,
		mailer:   mailer,
		logger:   opts.Logger,
		secret:   []byte(opts.Secret),
		tokenTTL: opts.TokenTTL,
		otpTTL:   opts.OTPTTL,
		cost:     opts.BcryptCost,
		now:      time.Now,
		newCode:  generateOTP,
	}
}

// Signup registers an unverified account and emails it a verification code.
// Signing up again before verifying replaces the password and sends a new code.
func (a *AuthManager) Signup(ctx context.Context, req domain.SignupRequest) error {
	req.Email = normalizeEmail(req.Email)
	if err := domain.Validate(req); err != nil {
		return err
	}

	hash, err := a.hashPassword(req.Password)
	if err != nil {
		return err
	}
	now := a.now().UTC()

	existing, err := a.users.GetUserByEmail(ctx, req.Email)
	switch {
	case err == nil && existing.Verified:
		return ErrEmailRegistered
	case err == nil:
		existing.PasswordHash = hash
		existing.UpdatedAt = now
		if _, err := a.users.UpdateUser(ctx, *existing); err != nil {
			return err
		}
	case errors.Is(err, store.ErrNotFound):
		_, err := a.users.CreateUser(ctx, domain.User{
			Email:        req.Email,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if errors.Is(err, store.ErrConflict) {
			return ErrEmailRegistered
		}
		if err != nil {
			return err
		}
	default:
		return err
	}

	return a.sendOTP(ctx, req.Email, notify.OTPPurposeSignup)
}

func (a *AuthManager) VerifyOTP(ctx context.Context, req domain.VerifyOTPRequest) (domain.AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := domain.Validate(req); err != nil {
		return domain.AuthResponse{}, err
	}

	user, err := a.users.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.AuthResponse{}, ErrInvalidOTP
	}
	if err != nil {
		return domain.AuthResponse{}, err
	}

	ok, err := a.otps.Verify(ctx, req.Email, req.OTP)
	if err != nil {
		return domain.AuthResponse{}, err
	}
	if !ok {
		return domain.AuthResponse{}, ErrInvalidOTP
	}

	if !user.Verified {
		user.Verified = true
		user.UpdatedAt = a.now().UTC()
		user, err = a.users.UpdateUser(ctx, *user)
		if err != nil {
			return domain.AuthResponse{}, err
		}
		a.logger.Info("account verified", zap.String("user_id", user.ID))
	}
	return a.issue(*user)
}

// ResendOTP emails a fresh verification code to an account that has not been
// verified yet. Unknown and already verified emails get the same nil result
// so the endpoint does not reveal which addresses have accounts.
func (a *AuthManager) ResendOTP(ctx context.Context, req domain.ResendOTPRequest) error {
	req.Email = normalizeEmail(req.Email)
	if err := domain.Validate(req); err != nil {
		return err
	}
	user, err := a.users.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		a.logger.Info("otp resend for unknown email ignored")
		return nil
	}
	if err != nil {
		return err
	}
	if user.Verified {
		a.logger.Info("otp resend for verified account ignored", zap.String("user_id", user.ID))
		return nil
	}
	return a.sendOTP(ctx, user.Email, notify.OTPPurposeSignup)
}

func (a *AuthManager) Signin(ctx context.Context, req domain.SigninRequest) (domain.AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := domain.Validate(req); err != nil {
		return domain.AuthResponse{}, err
	}

	user, err := a.users.GetUserByEmail(ctx, req.Email)
	if errors.Is(err, store.ErrNotFound) {
		return domain.AuthResponse{}, ErrInvalidCredentials
	}
	if err != nil {
		return domain.AuthResponse{}, err
	}
	if !verifyPassword(user.PasswordHash, req.Password) {
		return domain.AuthResponse{}, ErrInvalidCredentials
	}
	if !user.Verified {
		return domain.AuthResponse{}, ErrNotVerified
	}
	return a.issue(*user)
}

// ChangePassword runs in two steps. Without an OTP it checks the current
// password and emails a code; with one it consumes the code and stores the
// new password. The returned flag reports whether a code was sent.
func (a *AuthManager) ChangePassword(ctx context.Context, actor domain.Actor, req domain.ChangePasswordRequest) (bool, error) {
	if err := domain.Validate(req); err != nil {
		return false, err
	}
	user, err := a.users.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return false, err
	}
	if !verifyPassword(user.PasswordHash, req.CurrentPassword) {
		return false, domain.Invalid("currentPassword", "current password is incorrect")
	}

	if strings.TrimSpace(req.OTP) == "" {
		if err := a.sendOTP(ctx, user.Email, notify.OTPPurposeChangePassword); err != nil {
			return false, err
		}
		return true, nil
	}

	ok, err := a.otps.Verify(ctx, user.Email, req.OTP)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, ErrInvalidOTP
	}

	hash, err := a.hashPassword(req.NewPassword)
	if err != nil {
		return false, err
	}
	user.PasswordHash = hash
	user.UpdatedAt = a.now().UTC()
	if _, err := a.users.UpdateUser(ctx, *user); err != nil {
		return false, err
	}
	a.logger.Info("password changed", zap.String("user_id", user.ID))
	return false, nil
}

func (a *AuthManager) CurrentUser(ctx context.Context, actor domain.Actor) (domain.User, error) {
	user, err := a.users.GetUserByID(ctx, actor.UserID)
	if err != nil {
		return domain.User{}, err
	}
	return *user, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (domain.Actor, error) {
	claims := &salonClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return domain.Actor{}, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" || (claims.UserID != "" && claims.UserID != sub) {
		return domain.Actor{}, ErrInvalidToken
	}
	return domain.Actor{UserID: sub, Email: claims.Email}, nil
}

// TokenTTL is also used as the session cookie lifetime.
func (a *AuthManager) TokenTTL() time.Duration {
	return a.tokenTTL
}

func (a *AuthManager) issue(user domain.User) (domain.AuthResponse, error) {
	now := a.now().UTC()
	expiresAt := now.Add(a.tokenTTL)
	claims := salonClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwtlib.NewNumericDate(now),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    "salon",
		},
		UserID: user.ID,
		Email:  user.Email,
	}
	token, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return domain.AuthResponse{}, err
	}
	return domain.AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt.Format(time.RFC3339),
		User:      user,
	}, nil
}

func (a *AuthManager) sendOTP(ctx context.Context, email string, purpose notify.OTPPurpose) error {
	code, err := a.newCode()
	if err != nil {
		return err
	}
	if err := a.otps.Put(ctx, email, code, a.otpTTL); err != nil {
		return err
	}
	if err := a.mailer.Send(ctx, notify.OTPEmail(email, code, purpose, a.otpTTL)); err != nil {
		a.logger.Error("otp delivery failed", zap.String("email", email), zap.String("purpose", string(purpose)), zap.Error(err))
		return fmt.Errorf("deliver otp: %w", err)
	}
	return nil
}

func (a *AuthManager) hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || input == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

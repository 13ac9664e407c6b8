package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/singleflight"

	"selfcheckout/internal/apperr"
	"selfcheckout/internal/logging"
	"selfcheckout/internal/models"
	"selfcheckout/internal/repositories"
)

const (
	otpTTL        = 10 * time.Minute
	resetTokenTTL = 30 * time.Minute
)

var errInvalidOTP = apperr.Validation("Invalid or expired OTP")

// Identity is a verified identity-provider subject.
type Identity struct {
	UID           string
	Email         string
	EmailVerified bool
	Name          string
	PhoneNumber   string
}

// IdentityVerifier checks an identity-provider ID token.
type IdentityVerifier interface {
	Verify(ctx context.Context, idToken string) (*Identity, error)
}

// OTPSender delivers a one-time code to a phone number.
type OTPSender interface {
	SendOTP(ctx context.Context, phone, code string) error
}

// Mailer sends the password-reset link.
type Mailer interface {
	SendPasswordReset(ctx context.Context, to, link string) error
}

// AuthOptions configures an AuthService. Identity, OTPSender and Mailer are optional.
type AuthOptions struct {
	JWTSecret   string
	TokenTTL    time.Duration
	FrontendURL string
	// ExposeOTP returns generated codes in the send-otp response. Development only.
	ExposeOTP bool

	Identity  IdentityVerifier
	OTPSender OTPSender
	Mailer    Mailer

	// Now defaults to time.Now.
	Now func() time.Time
}

// Claims are the session-token claims.
type Claims struct {
	UserID string      `json:"user_id"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

// AuthResult is returned by every successful login.
type AuthResult struct {
	Token     string       `json:"token"`
	User      *models.User `json:"user"`
	IsNewUser bool         `json:"isNewUser"`
}

// OTPResult has the same shape whether or not the phone number was known.
type OTPResult struct {
	Message   string `json:"message"`
	ExpiresIn int    `json:"expiresIn"`
	Code      string `json:"otp,omitempty"`
}

// AuthService handles business logic for authentication and authorization.
type AuthService struct {
	userRepo    repositories.UserRepository
	jwtSecret   []byte
	tokenTTL    time.Duration
	frontendURL string
	exposeOTP   bool
	identity    IdentityVerifier
	otpSender   OTPSender
	mailer      Mailer
	log         *logging.Logger
	now         func() time.Time
	resolving   singleflight.Group
}

// NewAuthService creates a new AuthService.
func NewAuthService(userRepo repositories.UserRepository, opts AuthOptions, log *logging.Logger) *AuthService {
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		userRepo:    userRepo,
		jwtSecret:   []byte(opts.JWTSecret),
		tokenTTL:    ttl,
		frontendURL: strings.TrimRight(opts.FrontendURL, "/"),
		exposeOTP:   opts.ExposeOTP,
		identity:    opts.Identity,
		otpSender:   opts.OTPSender,
		mailer:      opts.Mailer,
		log:         log,
		now:         now,
	}
}

// IdentityEnabled reports whether identity-provider tokens can be verified.
func (s *AuthService) IdentityEnabled() bool { return s.identity != nil }

// IssueToken signs a session token for user.
func (s *AuthService) IssueToken(user *models.User) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
		},
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", apperr.Internal("failed to generate token", err)
	}
	return tokenString, nil
}

// ValidateToken checks the signature, algorithm and expiry of a session token.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, apperr.Wrap(apperr.KindUnauthorized, "Token expired", err)
		}
		return nil, apperr.Wrap(apperr.KindUnauthorized, "Invalid token", err)
	}
	if !token.Valid || claims.UserID == "" {
		return nil, apperr.Unauthorized("Invalid token")
	}
	return claims, nil
}

// Authenticate resolves a bearer credential to an active user. Session tokens are tried
// first; identity-provider tokens are accepted when a verifier is configured.
func (s *AuthService) Authenticate(ctx context.Context, bearer string) (*models.User, error) {
	claims, err := s.ValidateToken(bearer)
	if err != nil {
		if s.identity == nil {
			return nil, err
		}
		user, idErr := s.ResolveIdentity(ctx, bearer)
		if idErr != nil {
			s.log.Debugf("bearer rejected as session token (%v) and identity token (%v)", err, idErr)
			return nil, err
		}
		return user, nil
	}

	user, err := s.userRepo.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Unauthorized("User not found")
		}
		return nil, err
	}
	if !user.IsActive {
		return nil, apperr.Unauthorized("Account is deactivated")
	}
	return user, nil
}

// SendOTP stores a fresh 6-digit code on the phone's user, creating an unverified user on
// first contact, and delivers it.
func (s *AuthService) SendOTP(ctx context.Context, phone string) (*OTPResult, error) {
	phone = NormalizePhone(phone)
	if err := validateStruct(struct {
		Phone string `json:"phoneNumber" validate:"required,phone"`
	}{phone}); err != nil {
		return nil, err
	}

	user, err := s.userByPhoneOrNew(ctx, phone)
	if err != nil {
		return nil, err
	}

	code, err := generateOTP()
	if err != nil {
		return nil, apperr.Internal("failed to generate OTP", err)
	}
	expires := s.now().Add(otpTTL)
	user.OTPCode = code
	user.OTPExpires = &expires
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	if s.otpSender != nil {
		if err := s.otpSender.SendOTP(ctx, phone, code); err != nil {
			return nil, apperr.Internal("failed to send OTP", err)
		}
	}

	result := &OTPResult{Message: "OTP sent successfully", ExpiresIn: int(otpTTL.Seconds())}
	if s.exposeOTP {
		result.Code = code
	}
	return result, nil
}

func (s *AuthService) userByPhoneOrNew(ctx context.Context, phone string) (*models.User, error) {
	user, err := s.userRepo.GetByPhone(ctx, phone)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, apperr.ErrNotFound) {
		return nil, err
	}

	user = &models.User{
		PhoneNumber:  &phone,
		Role:         models.RoleCustomer,
		AuthProvider: models.ProviderPhone,
		IsActive:     true,
		IsNewUser:    true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return s.userRepo.GetByPhone(ctx, phone)
		}
		return nil, err
	}
	return user, nil
}

// VerifyOTP succeeds iff code equals the last issued code and it has not expired.
// The code is cleared and the phone marked verified.
func (s *AuthService) VerifyOTP(ctx context.Context, phone, code string) (*AuthResult, error) {
	phone = NormalizePhone(phone)
	if err := validateStruct(struct {
		Phone string `json:"phoneNumber" validate:"required,phone"`
		Code  string `json:"otp" validate:"required,len=6,numeric"`
	}{phone, strings.TrimSpace(code)}); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, errInvalidOTP
		}
		return nil, err
	}
	if !otpMatches(user, strings.TrimSpace(code), s.now()) {
		return nil, errInvalidOTP
	}
	if !user.IsActive {
		return nil, apperr.Unauthorized("Account is deactivated")
	}

	now := s.now()
	user.OTPCode = ""
	user.OTPExpires = nil
	user.IsPhoneVerified = true
	user.LastLogin = &now
	if user.AuthProvider == "" {
		user.AuthProvider = models.ProviderPhone
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.result(user)
}

func otpMatches(user *models.User, code string, now time.Time) bool {
	if user.OTPCode == "" || user.OTPExpires == nil {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(user.OTPCode), []byte(code)) != 1 {
		return false
	}
	return now.Before(*user.OTPExpires)
}

// Login authenticates a password account.
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateStruct(struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}{email, password}); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, apperr.Unauthorized("Invalid credentials")
		}
		return nil, err
	}
	if user.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, apperr.Unauthorized("Invalid credentials")
	}
	if !user.IsActive {
		return nil, apperr.Unauthorized("Account is deactivated")
	}

	now := s.now()
	user.LastLogin = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return s.result(user)
}

// ForgotPassword emails a reset link when the account exists. The outcome is the same
// either way.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validateStruct(struct {
		Email string `json:"email" validate:"required,email"`
	}{email}); err != nil {
		return err
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			s.log.Debugf("password reset requested for unknown email")
			return nil
		}
		return err
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return apperr.Internal("failed to generate reset token", err)
	}
	token := hex.EncodeToString(raw)
	expires := s.now().Add(resetTokenTTL)
	user.ResetTokenHash = hashToken(token)
	user.ResetTokenExpires = &expires
	if err := s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	if s.mailer != nil {
		link := fmt.Sprintf("%s/reset-password/%s", s.frontendURL, token)
		if err := s.mailer.SendPasswordReset(ctx, email, link); err != nil {
			s.log.Errorf("failed to send password reset email to user %s: %v", user.ID, err)
		}
	}
	return nil
}

// ResetPassword sets a new password for the holder of an unexpired reset token.
func (s *AuthService) ResetPassword(ctx context.Context, token, password string) error {
	if err := validateStruct(struct {
		Token    string `json:"token" validate:"required"`
		Password string `json:"password" validate:"required,min=8,max=72"`
	}{token, password}); err != nil {
		return err
	}

	invalid := apperr.Validation("Invalid or expired reset token")
	user, err := s.userRepo.GetByResetTokenHash(ctx, hashToken(token))
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return invalid
		}
		return err
	}
	if user.ResetTokenExpires == nil || !s.now().Before(*user.ResetTokenExpires) {
		return invalid
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return apperr.Internal("failed to hash password", err)
	}
	user.PasswordHash = string(hashed)
	user.ResetTokenHash = ""
	user.ResetTokenExpires = nil
	return s.userRepo.Update(ctx, user)
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CompleteRegistrationInput finishes a first-time signup.
type CompleteRegistrationInput struct {
	Name  string `json:"name" validate:"required,min=1,max=100"`
	Email string `json:"email" validate:"omitempty,email"`
}

// CompleteRegistration records the user's name (and email) and clears isNewUser.
func (s *AuthService) CompleteRegistration(ctx context.Context, user *models.User, in CompleteRegistrationInput) (*models.User, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	user.Name = in.Name
	if in.Email != "" {
		user.Email = &in.Email
	}
	user.IsNewUser = false
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// GetProfile returns the user by id.
func (s *AuthService) GetProfile(ctx context.Context, userID string) (*models.User, error) {
	return s.userRepo.GetByID(ctx, userID)
}

// UpdateProfileInput changes only the fields that are present.
type UpdateProfileInput struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
	Email *string `json:"email" validate:"omitempty,email"`
}

func (s *AuthService) UpdateProfile(ctx context.Context, user *models.User, in UpdateProfileInput) (*models.User, error) {
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
	}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		in.Email = &email
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	if in.Name != nil {
		user.Name = *in.Name
	}
	if in.Email != nil {
		user.Email = in.Email
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// FirebaseLogin exchanges an identity-provider ID token for a session token.
func (s *AuthService) FirebaseLogin(ctx context.Context, idToken string) (*AuthResult, error) {
	if strings.TrimSpace(idToken) == "" {
		return nil, apperr.Validation("idToken is required")
	}
	user, err := s.ResolveIdentity(ctx, idToken)
	if err != nil {
		return nil, err
	}
	return s.result(user)
}

// ResolveIdentity verifies idToken and returns the user bound to its subject, creating
// the user on first sign-in. Concurrent resolutions of one subject share a single lookup.
func (s *AuthService) ResolveIdentity(ctx context.Context, idToken string) (*models.User, error) {
	if s.identity == nil {
		return nil, apperr.Configuration("identity provider is not configured")
	}
	ident, err := s.identity.Verify(ctx, idToken)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindUnauthorized, "Invalid identity token", err)
	}

	// the shared lookup outlives any single caller's cancellation
	shared := context.WithoutCancel(ctx)
	v, err, _ := s.resolving.Do(ident.UID, func() (any, error) {
		return s.findOrCreate(shared, ident)
	})
	if err != nil {
		return nil, err
	}
	// callers sharing a result must not share the struct
	user := *v.(*models.User)
	if !user.IsActive {
		return nil, apperr.Unauthorized("Account is deactivated")
	}
	return &user, nil
}

func (s *AuthService) findOrCreate(ctx context.Context, ident *Identity) (*models.User, error) {
	user, err := s.lookupBySubject(ctx, ident.UID)
	if errors.Is(err, apperr.ErrNotFound) {
		user, err = s.createIfAbsent(ctx, ident)
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	user.LastLogin = &now
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *AuthService) lookupBySubject(ctx context.Context, uid string) (*models.User, error) {
	return s.userRepo.GetByFirebaseUID(ctx, uid)
}

// createIfAbsent inserts a user for the subject. An existing customer account with the
// same email is linked instead, but only when the provider has verified that email.
// Staff accounts are never linked. Losing a create race re-reads the winner.
func (s *AuthService) createIfAbsent(ctx context.Context, ident *Identity) (*models.User, error) {
	uid := ident.UID
	email := strings.ToLower(strings.TrimSpace(ident.Email))

	if email != "" {
		existing, err := s.userRepo.GetByEmail(ctx, email)
		switch {
		case err == nil && ident.EmailVerified && existing.FirebaseUID == nil && !existing.IsStaff():
			existing.FirebaseUID = &uid
			return existing, nil
		case err == nil:
			// the email is taken by an account this subject may not claim
			s.log.Warnf("identity subject not linked to existing account %s", existing.ID)
			email = ""
		case !errors.Is(err, apperr.ErrNotFound):
			return nil, err
		}
	}

	user := &models.User{
		FirebaseUID:  &uid,
		Name:         ident.Name,
		Role:         models.RoleCustomer,
		AuthProvider: models.ProviderFirebase,
		IsActive:     true,
		IsNewUser:    true,
	}
	if email != "" {
		user.Email = &email
	}
	if phone := NormalizePhone(ident.PhoneNumber); phone != "" {
		if _, err := s.userRepo.GetByPhone(ctx, phone); errors.Is(err, apperr.ErrNotFound) {
			user.PhoneNumber = &phone
			user.IsPhoneVerified = true
		}
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, apperr.ErrConflict) {
			return s.lookupBySubject(ctx, uid)
		}
		return nil, err
	}
	s.log.Infof("created user %s for identity subject", user.ID)
	return user, nil
}

// EnsureAdmin makes sure an active admin account with the given email exists. An existing
// password is kept.
func (s *AuthService) EnsureAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		return err
	}

	if user == nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return apperr.Internal("failed to hash password", err)
		}
		user = &models.User{
			Email:        &email,
			Name:         "Administrator",
			Role:         models.RoleAdmin,
			AuthProvider: models.ProviderPassword,
			PasswordHash: string(hashed),
			IsActive:     true,
		}
		if err := s.userRepo.Create(ctx, user); err != nil {
			return err
		}
		s.log.Infof("admin account %s created", user.ID)
		return nil
	}

	if user.Role == models.RoleAdmin && user.IsActive && user.PasswordHash != "" {
		return nil
	}
	user.Role = models.RoleAdmin
	user.IsActive = true
	if user.PasswordHash == "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return apperr.Internal("failed to hash password", err)
		}
		user.PasswordHash = string(hashed)
	}
	s.log.Infof("admin account %s updated", user.ID)
	return s.userRepo.Update(ctx, user)
}

func (s *AuthService) result(user *models.User) (*AuthResult, error) {
	token, err := s.IssueToken(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user, IsNewUser: user.IsNewUser}, nil
}

var otpMax = big.NewInt(1000000)

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpMax)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

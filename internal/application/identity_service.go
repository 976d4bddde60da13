package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/example/room-reservations/internal/persistence"
)

// CredentialStore exposes the account operations required by the identity service.
type CredentialStore interface {
	CreateUser(ctx context.Context, credentials UserCredentials) error
	GetUserCredentials(ctx context.Context, id string) (UserCredentials, error)
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string, updatedAt time.Time) error
}

// SessionRepository captures the persistence interactions for issued sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	RevokeUserSessions(ctx context.Context, userID string, revokedAt time.Time) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// AdminChecker decides administrator privilege from an email address.
type AdminChecker interface {
	IsAdmin(email string) bool
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// IdentityServiceConfig tunes session and password reset behaviour.
type IdentityServiceConfig struct {
	SessionTTL    time.Duration
	ResetTokenTTL time.Duration
	ResetSecret   []byte
	Issuer        string
	HashPassword  PasswordHasher
	Verify        PasswordVerifier
}

// IdentityService coordinates sign-up, sign-in, sessions and password resets.
type IdentityService struct {
	credentials    CredentialStore
	sessions       SessionRepository
	admins         AdminChecker
	mailer         Mailer
	hashPassword   PasswordHasher
	verifyPassword PasswordVerifier
	tokenGenerator func() string
	now            func() time.Time
	sessionTTL     time.Duration
	resetTokens    resetTokenCodec
	consumed       *consumedTokenCache
	logger         *slog.Logger
}

// NewIdentityService constructs an IdentityService with the provided dependencies.
func NewIdentityService(credentials CredentialStore, sessions SessionRepository, admins AdminChecker, mailer Mailer, tokenGenerator func() string, now func() time.Time, config IdentityServiceConfig) *IdentityService {
	return NewIdentityServiceWithLogger(credentials, sessions, admins, mailer, tokenGenerator, now, config, nil)
}

// NewIdentityServiceWithLogger constructs an IdentityService with a specified logger.
func NewIdentityServiceWithLogger(credentials CredentialStore, sessions SessionRepository, admins AdminChecker, mailer Mailer, tokenGenerator func() string, now func() time.Time, config IdentityServiceConfig, logger *slog.Logger) *IdentityService {
	if config.HashPassword == nil {
		config.HashPassword = NewPasswordHasher(DefaultArgon2idParams)
	}
	if config.Verify == nil {
		config.Verify = VerifyPassword
	}
	if tokenGenerator == nil {
		tokenGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if config.SessionTTL <= 0 {
		config.SessionTTL = 24 * time.Hour
	}
	if config.ResetTokenTTL <= 0 {
		config.ResetTokenTTL = time.Hour
	}
	if config.Issuer == "" {
		config.Issuer = "room-reservations"
	}
	logger = defaultLogger(logger)
	if mailer == nil {
		mailer = NewLogMailer(logger)
	}
	return &IdentityService{
		credentials:    credentials,
		sessions:       sessions,
		admins:         admins,
		mailer:         mailer,
		hashPassword:   config.HashPassword,
		verifyPassword: config.Verify,
		tokenGenerator: tokenGenerator,
		now:            now,
		sessionTTL:     config.SessionTTL,
		resetTokens: resetTokenCodec{
			secret: config.ResetSecret,
			issuer: config.Issuer,
			ttl:    config.ResetTokenTTL,
			now:    now,
		},
		consumed: newConsumedTokenCache(0, now),
		logger:   logger,
	}
}

func (s *IdentityService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "IdentityService", operation, attrs...)
}

// SignUp registers an account and issues its first session.
func (s *IdentityService) SignUp(ctx context.Context, params SignUpParams) (result AuthResult, err error) {
	if s == nil {
		err = fmt.Errorf("IdentityService is nil")
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "SignUp", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "sign-up failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "account created")
	}()

	vErr := &ValidationError{}
	validateEmail(email, vErr)
	validatePassword("password", params.Password, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	displayName := strings.TrimSpace(params.DisplayName)
	if displayName == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}

	var hash string
	hash, err = s.hashPassword(params.Password)
	if err != nil {
		err = fmt.Errorf("hash password: %w", err)
		return
	}

	now := s.now()
	user := User{
		ID:          s.tokenGenerator(),
		Email:       email,
		DisplayName: displayName,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err = s.credentials.CreateUser(ctx, UserCredentials{User: user, PasswordHash: hash}); err != nil {
		err = mapUserRepoError(err)
		return
	}

	var session Session
	session, err = s.issueSession(ctx, user.ID, now)
	if err != nil {
		return
	}

	user.IsAdmin = s.isAdmin(email)
	result = AuthResult{User: user, Session: session}
	return
}

// SignIn validates credentials and issues a new session token.
func (s *IdentityService) SignIn(ctx context.Context, params SignInParams) (result AuthResult, err error) {
	if s == nil {
		err = fmt.Errorf("IdentityService is nil")
		return
	}
	if s.credentials == nil {
		err = fmt.Errorf("credential store not configured")
		return
	}

	email := normalizeEmail(params.Email)
	logger := s.loggerWith(ctx, "SignIn", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "sign-in failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"user_id", result.User.ID,
			"session_id", result.Session.ID,
		).InfoContext(ctx, "sign-in succeeded")
	}()

	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds UserCredentials
	creds, err = s.credentials.GetUserCredentialsByEmail(ctx, email)
	if err != nil {
		err = mapUserRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}

	if err = s.verifyPassword(creds.PasswordHash, params.Password); err != nil {
		err = ErrInvalidCredentials
		return
	}

	now := s.now()
	var session Session
	session, err = s.issueSession(ctx, creds.User.ID, now)
	if err != nil {
		return
	}

	user := creds.User
	user.IsAdmin = s.isAdmin(user.Email)
	result = AuthResult{User: user, Session: session}
	return
}

// SignOut revokes the session identified by token.
func (s *IdentityService) SignOut(ctx context.Context, token string) error {
	if s == nil {
		return fmt.Errorf("IdentityService is nil")
	}
	if s.sessions == nil {
		return fmt.Errorf("session repository not configured")
	}

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ErrInvalidCredentials
	}

	logger := s.loggerWith(ctx, "SignOut", "token_provided", true)

	if _, err := s.sessions.RevokeSession(ctx, trimmed, s.now()); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
			logger.ErrorContext(ctx, "failed to revoke session", "error", ErrInvalidCredentials, "error_kind", ErrorKind(ErrInvalidCredentials))
			return ErrInvalidCredentials
		}
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	if err := s.sessions.DeleteExpiredSessions(ctx, s.now()); err != nil {
		logger.WarnContext(ctx, "failed to prune expired sessions", "error", err, "error_kind", ErrorKind(err))
	}
	logger.InfoContext(ctx, "session revoked")
	return nil
}

// ValidateSession verifies that the provided token corresponds to an active session and returns its principal.
func (s *IdentityService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("IdentityService is nil")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateSession", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "session validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("principal_id", principal.UserID).DebugContext(ctx, "session validated")
	}()

	var user User
	user, err = s.userForSession(ctx, trimmed)
	if err != nil {
		return
	}

	principal = Principal{UserID: user.ID, Email: user.Email, IsAdmin: user.IsAdmin}
	return
}

// CurrentIdentity returns the profile behind a session token, with the admin flag resolved.
func (s *IdentityService) CurrentIdentity(ctx context.Context, token string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("IdentityService is nil")
	}
	return s.userForSession(ctx, strings.TrimSpace(token))
}

// RequestPasswordReset issues a signed single-use reset token and hands it to the mailer.
func (s *IdentityService) RequestPasswordReset(ctx context.Context, email string) (err error) {
	if s == nil {
		return fmt.Errorf("IdentityService is nil")
	}
	if s.credentials == nil {
		return fmt.Errorf("credential store not configured")
	}

	email = normalizeEmail(email)
	logger := s.loggerWith(ctx, "RequestPasswordReset", "email", email)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "password reset request failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "password reset dispatched")
	}()

	vErr := &ValidationError{}
	validateEmail(email, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var creds UserCredentials
	creds, err = s.credentials.GetUserCredentialsByEmail(ctx, email)
	if err != nil {
		err = mapUserRepoError(err)
		return
	}

	var (
		token     string
		expiresAt time.Time
	)
	token, expiresAt, err = s.resetTokens.issue(creds.User.ID, s.tokenGenerator(), creds.PasswordHash)
	if err != nil {
		return
	}

	err = s.mailer.SendPasswordReset(ctx, PasswordResetMessage{
		To:          creds.User.Email,
		DisplayName: creds.User.DisplayName,
		Token:       token,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		err = fmt.Errorf("dispatch password reset: %w", err)
	}
	return
}

// ConfirmPasswordReset redeems a reset token, replaces the password and
// revokes every session of the account.
func (s *IdentityService) ConfirmPasswordReset(ctx context.Context, params ConfirmPasswordResetParams) (err error) {
	if s == nil {
		return fmt.Errorf("IdentityService is nil")
	}
	if s.credentials == nil {
		return fmt.Errorf("credential store not configured")
	}

	logger := s.loggerWith(ctx, "ConfirmPasswordReset")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "password reset failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "password reset completed")
	}()

	vErr := &ValidationError{}
	validatePassword("new_password", params.NewPassword, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var claims *resetClaims
	claims, err = s.resetTokens.parse(strings.TrimSpace(params.Token))
	if err != nil {
		return
	}
	logger = logger.With("user_id", claims.Subject, "token_id", claims.ID)

	if s.consumed.Consumed(claims.ID) {
		err = fmt.Errorf("%w: already used", ErrInvalidResetToken)
		return
	}

	var creds UserCredentials
	creds, err = s.credentials.GetUserCredentials(ctx, claims.Subject)
	if err != nil {
		err = mapUserRepoError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidResetToken
		}
		return
	}
	if claims.PasswordFingerprint != passwordFingerprint(creds.PasswordHash) {
		err = fmt.Errorf("%w: password already changed", ErrInvalidResetToken)
		return
	}

	if !s.consumed.Consume(claims.ID, claims.ExpiresAt.Time) {
		err = fmt.Errorf("%w: already used", ErrInvalidResetToken)
		return
	}
	defer func() {
		if err != nil {
			s.consumed.Release(claims.ID)
		}
	}()

	var hash string
	hash, err = s.hashPassword(params.NewPassword)
	if err != nil {
		err = fmt.Errorf("hash password: %w", err)
		return
	}

	now := s.now()
	if err = s.credentials.UpdatePasswordHash(ctx, creds.User.ID, hash, now); err != nil {
		err = mapUserRepoError(err)
		return
	}

	if s.sessions != nil {
		if err = s.sessions.RevokeUserSessions(ctx, creds.User.ID, now); err != nil {
			return
		}
	}
	return
}

func (s *IdentityService) issueSession(ctx context.Context, userID string, now time.Time) (Session, error) {
	id := s.tokenGenerator()
	token := s.tokenGenerator()
	if token == "" {
		token = id
	}
	session := Session{
		ID:        id,
		UserID:    userID,
		Token:     token,
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(s.sessionTTL),
	}
	if s.sessions == nil {
		return session, nil
	}

	if err := s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		return Session{}, err
	}
	persisted, err := s.sessions.CreateSession(ctx, session)
	if err != nil {
		return Session{}, mapUserRepoError(err)
	}
	return persisted, nil
}

func (s *IdentityService) userForSession(ctx context.Context, token string) (User, error) {
	if s.sessions == nil {
		return User{}, fmt.Errorf("session repository not configured")
	}
	if s.credentials == nil {
		return User{}, fmt.Errorf("credential store not configured")
	}
	if token == "" {
		return User{}, ErrInvalidCredentials
	}

	session, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
			return User{}, ErrUnauthorized
		}
		return User{}, err
	}

	now := s.now()
	if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
		return User{}, ErrSessionRevoked
	}
	if !session.ExpiresAt.IsZero() && !session.ExpiresAt.After(now) {
		return User{}, ErrSessionExpired
	}

	creds, err := s.credentials.GetUserCredentials(ctx, session.UserID)
	if err != nil {
		err = mapUserRepoError(err)
		if errors.Is(err, ErrNotFound) {
			return User{}, ErrUnauthorized
		}
		return User{}, err
	}

	user := creds.User
	user.IsAdmin = s.isAdmin(user.Email)
	return user, nil
}

func (s *IdentityService) isAdmin(email string) bool {
	return s.admins != nil && s.admins.IsAdmin(email)
}

func validateEmail(email string, vErr *ValidationError) {
	if email == "" {
		vErr.add("email", "email is required")
		return
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		vErr.add("email", "email is invalid")
	}
}

func mapUserRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyExists):
		return err
	case errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrAlreadyExists
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("email", "email is invalid")
		return vErr
	}
	return err
}

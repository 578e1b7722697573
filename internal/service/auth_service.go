package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"merchhub/internal/dto"
	"merchhub/internal/entity"
	"merchhub/internal/repository"
	"merchhub/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

const (
	dummyPasswordHash = "$2a$10$CwTycUXWue0Thq9StjUM0uJ8yQbWc1x9uxw2sQ2sXUNx5x9xJ9F2S"
	tokenBytes        = 20
	defaultTokenName  = "auth_token"
)

type AuthService struct {
	accounts     repository.AccountRepository
	profiles     repository.ProfileRepository
	tokens       repository.TokenRepository
	departments  repository.DepartmentRepository
	securityLogs repository.SecurityLogRepository
	tx           repository.Transactor

	notifier     VerificationNotifier
	passwordHash PasswordHasher
	signer       VerificationSigner
	validate     *validator.Validate
	clock        Clock
	config       AuthConfig
	logger       logrus.FieldLogger
}

func NewAuthService(
	accounts repository.AccountRepository,
	profiles repository.ProfileRepository,
	tokens repository.TokenRepository,
	departments repository.DepartmentRepository,
	securityLogs repository.SecurityLogRepository,
	tx repository.Transactor,
	notifier VerificationNotifier,
	passwordHash PasswordHasher,
	signer VerificationSigner,
	validate *validator.Validate,
	clock Clock,
	config AuthConfig,
	logger logrus.FieldLogger,
) *AuthService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AuthService{
		accounts:     accounts,
		profiles:     profiles,
		tokens:       tokens,
		departments:  departments,
		securityLogs: securityLogs,
		tx:           tx,
		notifier:     notifier,
		passwordHash: passwordHash,
		signer:       signer,
		validate:     validate,
		clock:        clock,
		config:       config,
		logger:       logger,
	}
}

// Register creates the account, its profile and a token, and sends the
// verification mail. Nothing is persisted unless all of it succeeds.
func (s *AuthService) Register(ctx context.Context, input dto.RegisterRequest, meta ClientMetadata) (*AuthResult, error) {
	input.Email = utils.NormalizeEmail(input.Email)
	input.Name = strings.TrimSpace(input.Name)

	report := validateStruct(s.validate, input)
	if !report.Has("email") {
		existing, err := s.accounts.FindByEmail(ctx, input.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			report.Add("email", "The email has already been taken.")
		}
	}
	if !report.Has("department_id") {
		ok, err := s.departments.Exists(ctx, input.DepartmentID)
		if err != nil {
			return nil, err
		}
		if !ok {
			report.Add("department_id", "The selected department id is invalid.")
		}
	}
	if err := report.OrNil(); err != nil {
		return nil, err
	}

	hash, err := s.passwordHash.Hash(input.Password)
	if err != nil {
		return nil, err
	}

	account := &entity.Account{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         entity.AccountRole(input.Role),
		DepartmentID: input.DepartmentID,
	}
	var profile *entity.Profile
	var token string
	var notified bool

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.accounts.Create(ctx, account); err != nil {
			if repository.IsDuplicate(err) {
				return fieldError("email", "The email has already been taken.")
			}
			return err
		}
		profile = entity.NewProfileFor(account)
		if err := s.profiles.Create(ctx, profile); err != nil {
			return err
		}
		var err error
		token, err = s.issueToken(ctx, account)
		if err != nil {
			return err
		}
		// must stay the last step inside the transaction
		notified, err = s.sendVerification(ctx, account)
		return err
	})
	if err != nil {
		return nil, err
	}

	if stored, err := s.accounts.FindByID(ctx, account.ID); err == nil && stored != nil {
		account = stored
	}
	_ = s.logSecurity(ctx, &account.ID, meta.IPAddress, entity.Register, map[string]any{"role": account.Role})
	if notified {
		_ = s.logSecurity(ctx, &account.ID, meta.IPAddress, entity.VerificationSent, nil)
	}
	return &AuthResult{Account: account, Profile: profile, Token: token}, nil
}

// Login issues a token for verified accounts. Unverified accounts get a fresh
// verification mail and ErrEmailNotVerified; the result then carries only the
// account and whether a mail went out.
func (s *AuthService) Login(ctx context.Context, input dto.LoginRequest, meta ClientMetadata) (*AuthResult, error) {
	input.Email = utils.NormalizeEmail(input.Email)
	if err := validateStruct(s.validate, input).OrNil(); err != nil {
		return nil, err
	}

	account, err := s.accounts.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if account == nil {
		_ = s.passwordHash.Verify(dummyPasswordHash, input.Password)
		_ = s.logSecurity(ctx, nil, meta.IPAddress, entity.LoginFailed, map[string]any{"email": input.Email})
		return nil, ErrInvalidCredentials
	}
	if !s.passwordHash.Verify(account.PasswordHash, input.Password) {
		_ = s.logSecurity(ctx, &account.ID, meta.IPAddress, entity.LoginFailed, map[string]any{"email": input.Email})
		return nil, ErrInvalidCredentials
	}

	if !account.IsVerified() {
		sent, err := s.sendVerification(ctx, account)
		if err != nil {
			s.logger.WithError(err).WithField("account_id", account.ID).Warn("resend verification on login failed")
		}
		if sent {
			_ = s.logSecurity(ctx, &account.ID, meta.IPAddress, entity.VerificationSent, map[string]any{"trigger": "login"})
		}
		_ = s.logSecurity(ctx, &account.ID, meta.IPAddress, entity.LoginUnverified, nil)
		return &AuthResult{Account: account, VerificationSent: sent}, ErrEmailNotVerified
	}

	var profile *entity.Profile
	var token string
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		profile, err = s.ensureProfile(ctx, account)
		if err != nil {
			return err
		}
		token, err = s.issueToken(ctx, account)
		return err
	})
	if err != nil {
		return nil, err
	}

	_ = s.logSecurity(ctx, &account.ID, meta.IPAddress, entity.LoginSuccess, nil)
	return &AuthResult{Account: account, Profile: profile, Token: token}, nil
}

// Logout deletes every token of the account, not only the caller's.
func (s *AuthService) Logout(ctx context.Context, accountID uuid.UUID, meta ClientMetadata) error {
	removed, err := s.tokens.DeleteAllByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	_ = s.logSecurity(ctx, &accountID, meta.IPAddress, entity.Logout, map[string]any{"tokens": removed})
	return nil
}

// Authenticate resolves a plaintext bearer token to its account.
func (s *AuthService) Authenticate(ctx context.Context, plaintext string) (*entity.Account, *entity.SessionToken, error) {
	if strings.TrimSpace(plaintext) == "" {
		return nil, nil, ErrUnauthenticated
	}
	token, err := s.tokens.FindByHash(ctx, utils.TokenDigest(plaintext))
	if err != nil {
		return nil, nil, err
	}
	if token == nil {
		return nil, nil, ErrUnauthenticated
	}
	account, err := s.accounts.FindByID(ctx, token.AccountID)
	if err != nil {
		return nil, nil, err
	}
	if account == nil {
		return nil, nil, ErrUnauthenticated
	}
	if err := s.tokens.Touch(ctx, token.ID, s.now()); err != nil {
		s.logger.WithError(err).Debug("token touch failed")
	}
	return account, token, nil
}

// ConfirmEmail checks a verification link token and marks the account
// verified. Confirming an already verified account is a no-op.
func (s *AuthService) ConfirmEmail(ctx context.Context, token string, meta ClientMetadata) (*entity.Account, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		return nil, err
	}
	account, err := s.accounts.FindByID(ctx, claims.AccountID)
	if err != nil {
		return nil, err
	}
	if account == nil || EmailHash(account.Email) != claims.EmailHash {
		return nil, ErrInvalidVerificationLink
	}
	if account.IsVerified() {
		return account, nil
	}
	return s.markVerified(ctx, account, meta, "link")
}

// ResendVerification sends a new link to an unverified consumer account. It
// reports success for unknown addresses so callers cannot probe for accounts.
func (s *AuthService) ResendVerification(ctx context.Context, input dto.ResendVerificationRequest) error {
	input.Email = utils.NormalizeEmail(input.Email)
	if err := validateStruct(s.validate, input).OrNil(); err != nil {
		return err
	}
	account, err := s.accounts.FindByEmail(ctx, input.Email)
	if err != nil {
		return err
	}
	if account == nil || account.IsVerified() {
		return nil
	}
	sent, err := s.sendVerification(ctx, account)
	if err != nil {
		return err
	}
	if sent {
		_ = s.logSecurity(ctx, &account.ID, nil, entity.VerificationSent, map[string]any{"trigger": "resend"})
	}
	return nil
}

// AdminVerify marks an account verified on behalf of an administrator. It is
// the only verification path for roles that never receive the mail.
func (s *AuthService) AdminVerify(ctx context.Context, actorID uuid.UUID, accountID uuid.UUID, meta ClientMetadata) (*entity.Account, error) {
	if actorID == accountID {
		return nil, ErrForbidden
	}
	actor, err := s.accounts.FindByID(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil || !actor.Role.IsAdministrative() || !actor.IsVerified() {
		return nil, ErrForbidden
	}

	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if account.IsVerified() {
		return account, nil
	}
	return s.markVerified(ctx, account, meta, "admin:"+actorID.String())
}

// VerifyByEmail marks an account verified without a link or an acting
// administrator. It backs the operator command that bootstraps the first
// staff account.
func (s *AuthService) VerifyByEmail(ctx context.Context, email string) (*entity.Account, error) {
	account, err := s.accounts.FindByEmail(ctx, utils.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAccountNotFound
	}
	if account.IsVerified() {
		return account, nil
	}
	return s.markVerified(ctx, account, ClientMetadata{}, "operator")
}

func (s *AuthService) CurrentAccount(ctx context.Context, accountID uuid.UUID) (*entity.Account, *entity.Profile, error) {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	if account == nil {
		return nil, nil, ErrAccountNotFound
	}
	profile, err := s.profiles.FindByAccountID(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	if profile == nil {
		profile = entity.NewProfileFor(account)
	}
	return account, profile, nil
}

func (s *AuthService) ListAccounts(ctx context.Context, limit, offset int) ([]entity.Account, error) {
	return s.accounts.List(ctx, limit, offset)
}

func (s *AuthService) RevokeAccountTokens(ctx context.Context, accountID uuid.UUID, meta ClientMetadata) error {
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return ErrAccountNotFound
	}
	removed, err := s.tokens.DeleteAllByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	_ = s.logSecurity(ctx, &accountID, meta.IPAddress, entity.TokensRevoked, map[string]any{"tokens": removed})
	return nil
}

func (s *AuthService) Departments(ctx context.Context) ([]entity.Department, error) {
	return s.departments.List(ctx)
}

// VerificationLink builds the URL mailed to the account.
func (s *AuthService) VerificationLink(account *entity.Account) (string, error) {
	token, _, err := s.signer.Issue(account)
	if err != nil {
		return "", err
	}
	base := s.config.VerificationURL
	if base == "" {
		return token, nil
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("verification url: %w", err)
	}
	query := u.Query()
	query.Set("token", token)
	if s.config.RedirectURL != "" {
		query.Set("redirect", s.config.RedirectURL)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}

func (s *AuthService) markVerified(ctx context.Context, account *entity.Account, meta ClientMetadata, source string) (*entity.Account, error) {
	if _, err := s.accounts.MarkEmailVerified(ctx, account.ID, s.now()); err != nil {
		return nil, err
	}
	updated, err := s.accounts.FindByID(ctx, account.ID)
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrAccountNotFound
	}
	_ = s.logSecurity(ctx, &account.ID, meta.IPAddress, entity.EmailVerified, map[string]any{"source": source})
	return updated, nil
}

// sendVerification is a no-op for roles other than the consumer role. It
// reports whether a message was handed to the notifier.
func (s *AuthService) sendVerification(ctx context.Context, account *entity.Account) (bool, error) {
	if s.notifier == nil || !account.Role.IsConsumer() {
		return false, nil
	}
	link, err := s.VerificationLink(account)
	if err != nil {
		return false, err
	}
	if err := s.notifier.SendVerification(ctx, account, link); err != nil {
		return false, fmt.Errorf("send verification: %w", err)
	}
	return true, nil
}

func (s *AuthService) ensureProfile(ctx context.Context, account *entity.Account) (*entity.Profile, error) {
	return ensureProfile(ctx, s.profiles, account, false)
}

func (s *AuthService) issueToken(ctx context.Context, account *entity.Account) (string, error) {
	raw, err := utils.RandomString(tokenBytes)
	if err != nil {
		return "", err
	}
	name := s.config.TokenName
	if name == "" {
		name = defaultTokenName
	}
	token := &entity.SessionToken{
		AccountID: account.ID,
		Name:      name,
		TokenHash: utils.TokenDigest(raw),
	}
	if err := s.tokens.Create(ctx, token); err != nil {
		return "", err
	}
	return raw, nil
}

func (s *AuthService) logSecurity(
	ctx context.Context,
	accountID *uuid.UUID,
	ipAddress *string,
	action entity.SecurityAction,
	metadata map[string]any,
) error {
	if s.securityLogs == nil {
		return nil
	}
	var payload datatypes.JSON
	if metadata != nil {
		bytes, err := json.Marshal(metadata)
		if err != nil {
			return err
		}
		payload = datatypes.JSON(bytes)
	}

	log := &entity.SecurityLog{
		AccountID: accountID,
		IPAddress: ipAddress,
		Action:    action,
		Metadata:  payload,
	}
	if err := s.securityLogs.Log(ctx, log); err != nil {
		s.logger.WithError(err).WithField("action", action).Warn("security log write failed")
		return err
	}
	return nil
}

func (s *AuthService) now() time.Time {
	if s.clock == nil {
		return RealClock{}.Now()
	}
	return s.clock.Now()
}

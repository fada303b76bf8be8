package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kskor/folio/internal/config"
	"github.com/kskor/folio/internal/domain"
)

const providerGitHub = "github.com"

// ProviderResolver exchanges an OAuth token for the provider-side identity.
// The composition root wraps the GitHub API client into one of these.
type ProviderResolver func(ctx context.Context, token string) (domain.Provider, error)

// CodePrompt shows the device user code to the user while the flow waits
// for approval.
type CodePrompt func(userCode, verificationURI string)

// Service implements domain.Authenticator on top of the identity vault and
// the device-code flow.
type Service struct {
	vault   *Vault
	device  *DeviceClient
	creds   *config.Holder
	resolve ProviderResolver
	prompt  CodePrompt
	logger  *slog.Logger

	mu      sync.RWMutex
	current *identityRecord
	token   string
}

func NewService(vault *Vault, device *DeviceClient, creds *config.Holder, resolve ProviderResolver, prompt CodePrompt, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if prompt == nil {
		prompt = func(string, string) {}
	}
	return &Service{
		vault:   vault,
		device:  device,
		creds:   creds,
		resolve: resolve,
		prompt:  prompt,
		logger:  logger,
	}
}

// Init restores the previous session, if any.
func (s *Service) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec, ok := s.vault.LoadSession()
	if !ok {
		return nil
	}
	s.mu.Lock()
	s.current = &rec
	if s.creds != nil {
		s.token = s.creds.Snapshot().Token
	}
	s.mu.Unlock()
	s.logger.Debug("session restored", "id", rec.ID, "anonymous", rec.Anonymous)
	return nil
}

func (s *Service) IsSignedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

func (s *Service) CurrentAccount() (domain.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return domain.Account{}, false
	}
	return s.current.account(), true
}

func (s *Service) HasProvider(method domain.SignInMethod) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return false
	}
	switch method {
	case domain.MethodGitHub:
		return s.current.hasProvider(providerGitHub)
	case domain.MethodEmail:
		return len(s.current.PasswordHash) > 0
	case domain.MethodAnonymous:
		return s.current.Anonymous
	}
	return false
}

// ShouldLinkAccounts reports whether signing in with method ought to link
// the provider to the current account rather than switch identities.
func (s *Service) ShouldLinkAccounts(method domain.SignInMethod) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || method == domain.MethodAnonymous {
		return false
	}
	switch method {
	case domain.MethodGitHub:
		return !s.current.hasProvider(providerGitHub)
	case domain.MethodEmail:
		return len(s.current.PasswordHash) == 0
	}
	return false
}

func (s *Service) SignIn(ctx context.Context, req domain.SignInRequest) (domain.User, error) {
	switch req.Method {
	case domain.MethodAnonymous:
		return s.signInAnonymous(ctx)
	case domain.MethodEmail:
		return s.signInEmail(ctx, req)
	case domain.MethodGitHub:
		return s.signInGitHub(ctx, req)
	default:
		return domain.User{}, fmt.Errorf("unknown sign-in method %q", req.Method)
	}
}

func (s *Service) signInAnonymous(ctx context.Context) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}
	rec, err := s.vault.CreateAnonymous()
	if err != nil {
		return domain.User{}, err
	}
	if err := s.adopt(rec, ""); err != nil {
		return domain.User{}, err
	}
	return domain.GuestUser(rec.account()), nil
}

func (s *Service) signInEmail(ctx context.Context, req domain.SignInRequest) (domain.User, error) {
	if err := ctx.Err(); err != nil {
		return domain.User{}, err
	}

	var (
		rec identityRecord
		err error
	)
	if req.Create {
		rec, err = s.vault.CreateEmail(req.Email, req.Password)
	} else {
		rec, err = s.vault.VerifyEmail(req.Email, req.Password)
	}
	if err != nil {
		return domain.User{}, err
	}

	if err := s.adopt(rec, ""); err != nil {
		return domain.User{}, err
	}
	return domain.User{Account: rec.account(), SignInMethod: string(domain.MethodEmail)}, nil
}

func (s *Service) signInGitHub(ctx context.Context, req domain.SignInRequest) (domain.User, error) {
	token, err := s.obtainToken(ctx, req.Refresh)
	if err != nil {
		return domain.User{}, err
	}

	provider, err := s.resolve(ctx, token)
	if err != nil {
		return domain.User{}, err
	}
	provider.ProviderID = providerGitHub

	rec, err := s.resolveIdentity(provider, req.Link)
	if err != nil {
		return domain.User{}, err
	}

	if err := s.adopt(rec, token); err != nil {
		return domain.User{}, err
	}
	return domain.User{
		Account:      rec.account(),
		Providers:    rec.Providers,
		OAuthToken:   token,
		SignInMethod: string(domain.MethodGitHub),
	}, nil
}

// obtainToken reuses the stored token unless a refresh is forced, falling
// back to a full device flow.
func (s *Service) obtainToken(ctx context.Context, refresh bool) (string, error) {
	if !refresh && s.creds != nil {
		if token := s.creds.Snapshot().Token; token != "" {
			return token, nil
		}
	}

	code, err := s.device.RequestCode(ctx)
	if err != nil {
		return "", err
	}
	s.prompt(code.UserCode, code.VerificationURI)
	return s.device.WaitForToken(ctx, code)
}

// resolveIdentity maps a provider identity onto a vault account: the linked
// account when one exists, the current account when linking was requested,
// and a fresh account otherwise. An email collision with an account owned
// by a different method surfaces as *domain.AccountExistsError.
func (s *Service) resolveIdentity(provider domain.Provider, link bool) (identityRecord, error) {
	if rec, ok := s.vault.LookupProvider(provider.ProviderID, provider.UID); ok {
		return rec, nil
	}

	if link {
		s.mu.RLock()
		current := s.current
		s.mu.RUnlock()
		if current == nil {
			return identityRecord{}, domain.ErrNotSignedIn
		}
		return s.vault.AttachProvider(current.ID, provider)
	}

	if provider.Email != "" {
		if existing, ok := s.vault.LookupEmail(provider.Email); ok && !existing.hasProvider(provider.ProviderID) {
			method := "password"
			if len(existing.Providers) > 0 {
				method = existing.Providers[0].ProviderID
			}
			return identityRecord{}, &domain.AccountExistsError{Email: provider.Email, Provider: method}
		}
	}

	fresh, err := s.vault.CreateAnonymous()
	if err != nil {
		return identityRecord{}, err
	}
	return s.vault.AttachProvider(fresh.ID, provider)
}

func (s *Service) adopt(rec identityRecord, token string) error {
	if err := s.vault.SaveSession(rec.ID); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = &rec
	s.token = token
	s.mu.Unlock()
	return nil
}

func (s *Service) SignOut() error {
	s.mu.Lock()
	s.current = nil
	s.token = ""
	s.mu.Unlock()
	return s.vault.ClearSession()
}

func (s *Service) DeleteAccount(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	current := s.current
	s.current = nil
	s.token = ""
	s.mu.Unlock()
	if current == nil {
		return domain.ErrNotSignedIn
	}
	return s.vault.DeleteIdentity(current.ID)
}

var _ domain.Authenticator = (*Service)(nil)

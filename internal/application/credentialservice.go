package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ericfisherdev/appdepo/internal/domain/port/driven"
)

// GitHubCredentialService is the credential store key for the GitHub token.
const GitHubCredentialService = "github"

// GitHubClientFactory builds a client for the given token. An empty token
// yields an unauthenticated client.
type GitHubClientFactory func(token string) driven.GitHubClient

// CredentialService persists the GitHub token and swaps the live client.
type CredentialService struct {
	store    driven.CredentialStore
	provider *GitHubClientProvider
	factory  GitHubClientFactory
	envToken string
}

// NewCredentialService creates a CredentialService. store may be nil when no
// encryption key is configured; writes then fail with
// driven.ErrEncryptionKeyNotSet. envToken is what the client falls back to
// after the stored token is cleared.
func NewCredentialService(store driven.CredentialStore, provider *GitHubClientProvider, factory GitHubClientFactory, envToken string) *CredentialService {
	return &CredentialService{store: store, provider: provider, factory: factory, envToken: envToken}
}

// ResolveToken returns the stored token when present, otherwise the
// environment token.
func (s *CredentialService) ResolveToken(ctx context.Context) string {
	if s.store == nil {
		return s.envToken
	}

	stored, err := s.store.Get(ctx, GitHubCredentialService)
	if err != nil {
		slog.Warn("failed to read stored github token, using environment", "error", err)
		return s.envToken
	}
	if stored != "" {
		return stored
	}
	return s.envToken
}

// SetGitHubToken stores token and swaps in a client authenticated with it.
func (s *CredentialService) SetGitHubToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrTokenRequired
	}
	if s.store == nil {
		return driven.ErrEncryptionKeyNotSet
	}

	if err := s.store.Set(ctx, GitHubCredentialService, token); err != nil {
		return fmt.Errorf("store github token: %w", err)
	}

	s.provider.Replace(s.factory(token), true)
	slog.Info("github client replaced", "authenticated", true)
	return nil
}

// ClearGitHubToken removes the stored token and falls back to the
// environment token, or to anonymous access when there is none.
func (s *CredentialService) ClearGitHubToken(ctx context.Context) error {
	if s.store == nil {
		return driven.ErrEncryptionKeyNotSet
	}

	if err := s.store.Delete(ctx, GitHubCredentialService); err != nil {
		return fmt.Errorf("delete github token: %w", err)
	}

	s.provider.Replace(s.factory(s.envToken), s.envToken != "")
	slog.Info("github client replaced", "authenticated", s.envToken != "")
	return nil
}

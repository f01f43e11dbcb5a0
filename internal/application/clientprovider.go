package application

import (
	"sync"

	"github.com/ericfisherdev/appdepo/internal/domain/port/driven"
)

// GitHubClientProvider enables runtime hot-swap of the GitHub client.
// It holds a mutex-protected reference to the current driven.GitHubClient so
// a token update takes effect without restarting the application.
type GitHubClientProvider struct {
	mu            sync.RWMutex
	client        driven.GitHubClient
	authenticated bool
}

// NewGitHubClientProvider creates a provider holding the given initial client.
func NewGitHubClientProvider(client driven.GitHubClient, authenticated bool) *GitHubClientProvider {
	return &GitHubClientProvider{client: client, authenticated: authenticated}
}

// Get returns the current GitHub client.
func (p *GitHubClientProvider) Get() driven.GitHubClient {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client
}

// Authenticated reports whether the current client carries a token.
func (p *GitHubClientProvider) Authenticated() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.authenticated
}

// Replace swaps the current client. The next caller of Get receives it.
func (p *GitHubClientProvider) Replace(client driven.GitHubClient, authenticated bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.client = client
	p.authenticated = authenticated
}

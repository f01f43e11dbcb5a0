package application_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ericfisherdev/appdepo/internal/application"
)

func TestGitHubClientProvider_GetReturnsInitialClient(t *testing.T) {
	client := &mockGitHubClient{}
	provider := application.NewGitHubClientProvider(client, false)

	assert.Same(t, client, provider.Get())
	assert.False(t, provider.Authenticated())
}

func TestGitHubClientProvider_ReplaceSwapsClient(t *testing.T) {
	original := &mockGitHubClient{}
	replacement := &mockGitHubClient{}

	provider := application.NewGitHubClientProvider(original, false)
	provider.Replace(replacement, true)

	assert.Same(t, replacement, provider.Get())
	assert.True(t, provider.Authenticated())
}

func TestGitHubClientProvider_ConcurrentAccess(t *testing.T) {
	provider := application.NewGitHubClientProvider(&mockGitHubClient{}, false)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			provider.Replace(&mockGitHubClient{}, i%2 == 0)
		}()
		go func() {
			defer wg.Done()
			_ = provider.Get()
			_ = provider.Authenticated()
		}()
	}
	wg.Wait()

	assert.NotNil(t, provider.Get())
}

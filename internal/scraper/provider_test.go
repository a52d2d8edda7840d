package scraper

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProviderErrorCarriesSession(t *testing.T) {
	t.Parallel()

	cause := context.DeadlineExceeded
	err := fmt.Errorf("scrape: %w", &ProviderError{
		Provider:   NameBrowser,
		SessionID:  "sess_123",
		SessionURL: "https://replay/sess_123",
		Err:        cause,
	})

	require.ErrorIs(t, err, context.DeadlineExceeded)
	id, url, ok := SessionFrom(err)
	require.True(t, ok)
	require.Equal(t, "sess_123", id)
	require.Equal(t, "https://replay/sess_123", url)
	require.Contains(t, err.Error(), "session sess_123")
}

func TestSessionFromWithoutSession(t *testing.T) {
	t.Parallel()

	_, _, ok := SessionFrom(&ProviderError{Provider: NameActor, Err: ErrEmptyDataset})
	require.False(t, ok)
	_, _, ok = SessionFrom(errors.New("plain"))
	require.False(t, ok)
	require.EqualError(t, &ProviderError{Provider: NameActor, Err: ErrEmptyDataset}, "actor provider failed: provider returned no items")
}

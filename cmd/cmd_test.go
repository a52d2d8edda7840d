package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/business-discovery/internal/app"
	"github.com/JakeFAU/business-discovery/internal/business"
	"github.com/JakeFAU/business-discovery/internal/config"
)

func offlineFactory(ctx context.Context, _ string) (*app.App, error) {
	return app.Build(ctx, config.Config{
		Server:   config.ServerConfig{Port: 8080, RequestTimeoutSeconds: 30},
		Logging:  config.LoggingConfig{Level: "error"},
		Browser:  config.BrowserConfig{Mode: config.BrowserModeDisabled},
		Actor:    config.ActorConfig{WaitSeconds: 120},
		LLM:      config.LLMConfig{Provider: config.LLMProviderNone, HarnessVariant: "metric"},
		Store:    config.StoreConfig{Driver: config.DriverMemory},
		Messages: config.MessagesConfig{Driver: config.DriverMemory},
	})
}

func run(t *testing.T, factory appFactory, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(factory)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestDiscoverCommandJSON(t *testing.T) {
	t.Parallel()

	stdout, stderr, err := run(t, offlineFactory, "discover", "https://maps.example/cafe")
	require.NoError(t, err)
	require.Contains(t, stderr, "[connecting]")

	var report app.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	require.Equal(t, business.MockName, report.Discovery.Business.Name)
	require.Equal(t, "https://maps.example/cafe", report.Discovery.Business.SourceURL)
	require.Nil(t, report.Profile)
}

func TestDiscoverCommandYAMLWithAnalysis(t *testing.T) {
	t.Parallel()

	stdout, _, err := run(t, offlineFactory, "discover", "https://maps.example/cafe", "--analyze", "-o", "yaml")
	require.NoError(t, err)

	var out struct {
		Discovery struct {
			Business struct {
				Name        string `yaml:"name"`
				ReviewCount int    `yaml:"review_count"`
			} `yaml:"business"`
		} `yaml:"discovery"`
		Profile struct {
			MockAnalysis bool             `yaml:"mock_analysis"`
			Tasks        []map[string]any `yaml:"tasks"`
		} `yaml:"profile"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &out))
	require.Equal(t, business.MockName, out.Discovery.Business.Name)
	require.Equal(t, 214, out.Discovery.Business.ReviewCount)
	require.True(t, out.Profile.MockAnalysis)
	require.NotEmpty(t, out.Profile.Tasks)
}

func TestDiscoverCommandRejectsBadInput(t *testing.T) {
	t.Parallel()

	_, _, err := run(t, offlineFactory, "discover")
	require.Error(t, err)

	_, _, err = run(t, offlineFactory, "discover", "https://maps.example/cafe", "-o", "xml")
	require.ErrorContains(t, err, "unsupported output")
}

func TestFactoryErrorStopsCommand(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	_, _, err := run(t, func(context.Context, string) (*app.App, error) { return nil, boom }, "discover", "https://x")
	require.ErrorIs(t, err, boom)
}

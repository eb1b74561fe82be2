// Package secrets resolves named credentials, preferring local environment
// values and falling back to Google Secret Manager.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"

	"github.com/kritika-bot/kritika/internal/logger"
)

// ErrSecretUnavailable indicates a required credential could not be resolved
// from any source. Fatal at startup.
var ErrSecretUnavailable = errors.New("secret unavailable")

// Provider resolves a named credential.
type Provider interface {
	Resolve(ctx context.Context, name string) (string, error)
}

// Env resolves secrets from environment variables of the same name.
type Env struct{}

func (Env) Resolve(_ context.Context, name string) (string, error) {
	if v := os.Getenv(name); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s not set in environment", ErrSecretUnavailable, name)
}

// accessFunc fetches one secret version payload. Indirected so tests can
// fake Secret Manager without dialing GCP.
type accessFunc func(ctx context.Context, name string) ([]byte, error)

// Manager resolves secrets from Google Secret Manager, latest version.
type Manager struct {
	projectID string
	client    accessFunc
}

// NewManager dials Secret Manager for the given project.
func NewManager(ctx context.Context, projectID string) (*Manager, error) {
	c, err := secretmanager.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("secret manager client: %w", err)
	}
	return &Manager{
		projectID: projectID,
		client: func(ctx context.Context, name string) ([]byte, error) {
			resp, err := c.AccessSecretVersion(ctx, &secretmanagerpb.AccessSecretVersionRequest{Name: name})
			if err != nil {
				return nil, err
			}
			return resp.GetPayload().GetData(), nil
		},
	}, nil
}

func (m *Manager) Resolve(ctx context.Context, name string) (string, error) {
	version := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", m.projectID, name)
	data, err := m.client(ctx, version)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrSecretUnavailable, name, err)
	}
	return string(data), nil
}

// Chain tries each provider in order and returns the first value found.
type Chain []Provider

func (c Chain) Resolve(ctx context.Context, name string) (string, error) {
	for _, p := range c {
		v, err := p.Resolve(ctx, name)
		if err == nil {
			return v, nil
		}
		logger.L.Debug("secret provider miss", "secret", name, "error", err)
	}
	return "", fmt.Errorf("%w: %s", ErrSecretUnavailable, name)
}

// Package auth resolves Google Cloud credentials into oauth2 token sources.
package auth

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Scope is the OAuth scope required by the Chronicle API.
const Scope = "https://www.googleapis.com/auth/cloud-platform"

// FromJSON builds a token source from service account key JSON.
func FromJSON(ctx context.Context, data []byte) (oauth2.TokenSource, error) {
	creds, err := google.CredentialsFromJSON(ctx, data, Scope)
	if err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}
	return creds.TokenSource, nil
}

// FromFile builds a token source from a service account key file.
func FromFile(ctx context.Context, path string) (oauth2.TokenSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	return FromJSON(ctx, data)
}

// Default resolves application default credentials from the environment.
func Default(ctx context.Context) (oauth2.TokenSource, error) {
	creds, err := google.FindDefaultCredentials(ctx, Scope)
	if err != nil {
		return nil, fmt.Errorf("resolving application default credentials: %w", err)
	}
	return creds.TokenSource, nil
}

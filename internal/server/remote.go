package server

import (
	"context"
	"fmt"

	"github.com/dukerupert/fridgetracker/internal/config"
	"github.com/dukerupert/fridgetracker/internal/remote"
	"github.com/dukerupert/fridgetracker/internal/store"
)

// OpenRemote builds the configured sync target. For the GitHub remote it
// also returns the stored token, seeding it from the environment when
// nothing is stored yet; other remotes return a nil credential.
func OpenRemote(ctx context.Context, cfg config.RemoteConfig, creds *store.CredentialStore) (remote.Store, *store.NamedCredential, error) {
	var named *store.NamedCredential
	if cfg.Kind == config.RemoteGitHub {
		named = creds.Named(config.GitHubCredential)
		current, err := named.Credential(ctx)
		if err != nil {
			return nil, nil, err
		}
		if current == "" && cfg.GitHubToken != "" {
			if err := named.Set(ctx, cfg.GitHubToken); err != nil {
				return nil, nil, fmt.Errorf("seed github token: %w", err)
			}
		}
	}

	rs, err := cfg.Store(named)
	if err != nil {
		return nil, nil, err
	}
	return rs, named, nil
}

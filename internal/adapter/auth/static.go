package auth

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/fairyhunter13/docqueue/internal/domain"
)

// StaticVerifier resolves tokens from a YAML file loaded once at startup.
// Intended for development and tests where no verification service runs.
type StaticVerifier struct {
	tokens map[string]domain.Identity
}

type staticEntry struct {
	UserID   string `yaml:"user_id"`
	UserName string `yaml:"user_name"`
	Role     string `yaml:"role"`
}

// NewStaticVerifier loads the token table from path. The file maps each
// token string to an identity:
//
//	tok-alice:
//	  user_id: u-1
//	  user_name: alice
//	  role: user
func NewStaticVerifier(path string) (*StaticVerifier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("op=auth.NewStaticVerifier: %w", err)
	}
	var entries map[string]staticEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("op=auth.NewStaticVerifier: parse %s: %w", path, err)
	}
	tokens := make(map[string]domain.Identity, len(entries))
	for token, e := range entries {
		if e.UserID == "" {
			return nil, fmt.Errorf("op=auth.NewStaticVerifier: token entry %q missing user_id", token)
		}
		role := domain.Role(e.Role)
		if e.Role == "" {
			role = domain.RoleUser
		}
		tokens[token] = domain.Identity{UserID: e.UserID, UserName: e.UserName, Role: role}
	}
	return &StaticVerifier{tokens: tokens}, nil
}

// Verify implements domain.TokenVerifier.
func (v *StaticVerifier) Verify(_ context.Context, token string) (domain.Identity, error) {
	identity, ok := v.tokens[token]
	if !ok {
		return domain.Identity{}, fmt.Errorf("%w: unknown token", domain.ErrUnauthorized)
	}
	return identity, nil
}

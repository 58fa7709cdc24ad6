// Package credentials resolves provider credential references into carrier secrets.
package credentials

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/kelseyhightower/envconfig"
	"github.com/tournevent/fulfillment/internal/fulfillment"
	"github.com/tournevent/fulfillment/pkg/shipper"
)

var refPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// secrets lists every credential an adapter may ask for.
type secrets struct {
	Token  string `envconfig:"TOKEN"`
	ShopID string `envconfig:"SHOP_ID"`
	APIKey string `envconfig:"API_KEY"`
}

// Env reads credentials from environment variables prefixed by the reference:
// reference "GHN_SHOP_A" resolves GHN_SHOP_A_TOKEN and GHN_SHOP_A_SHOP_ID.
type Env struct{}

// NewEnv creates an environment-backed resolver.
func NewEnv() *Env {
	return &Env{}
}

// Resolve looks up the credentials filed under ref.
func (Env) Resolve(ctx context.Context, ref string) (shipper.Credentials, error) {
	prefix := strings.ToUpper(strings.TrimSpace(ref))
	if !refPattern.MatchString(prefix) {
		return nil, fmt.Errorf("invalid credential reference %q", ref)
	}

	var s secrets
	if err := envconfig.Process(prefix, &s); err != nil {
		return nil, fmt.Errorf("reading credentials %s: %w", prefix, err)
	}

	creds := shipper.Credentials{}
	for name, value := range map[string]string{"token": s.Token, "shop_id": s.ShopID, "api_key": s.APIKey} {
		if value != "" {
			creds[name] = value
		}
	}
	if len(creds) == 0 {
		return nil, fmt.Errorf("no credentials set for reference %s", prefix)
	}
	return creds, nil
}

// Static serves credentials from memory, for development and tests.
type Static struct {
	mu    sync.RWMutex
	creds map[string]shipper.Credentials
}

// NewStatic creates an in-memory resolver.
func NewStatic() *Static {
	return &Static{creds: make(map[string]shipper.Credentials)}
}

// Set files creds under ref.
func (s *Static) Set(ref string, creds shipper.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[ref] = creds
}

// Resolve returns the credentials filed under ref.
func (s *Static) Resolve(ctx context.Context, ref string) (shipper.Credentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	creds, ok := s.creds[ref]
	if !ok {
		return nil, fmt.Errorf("no credentials for reference %s", ref)
	}
	out := make(shipper.Credentials, len(creds))
	for k, v := range creds {
		out[k] = v
	}
	return out, nil
}

var (
	_ fulfillment.CredentialResolver = Env{}
	_ fulfillment.CredentialResolver = (*Static)(nil)
)

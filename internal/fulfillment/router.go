package fulfillment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/tournevent/fulfillment/pkg/shipper"
)

// Route is everything needed to call one carrier on behalf of one tenant.
type Route struct {
	Config  *ProviderConfig
	Adapter shipper.Shipper
	Account *shipper.Account
}

// Router maps a tenant's carrier code to a concrete adapter.
// "Not configured" is NotFound; "configured but no adapter" is Configuration.
type Router struct {
	providers *ProviderRegistry
	adapters  *shipper.Registry
	creds     CredentialResolver
}

// NewRouter creates a router.
func NewRouter(providers *ProviderRegistry, adapters *shipper.Registry, creds CredentialResolver) *Router {
	return &Router{providers: providers, adapters: adapters, creds: creds}
}

// Providers returns the provider registry behind the router.
func (r *Router) Providers() *ProviderRegistry {
	return r.providers
}

// Resolve returns the route for tenantID and carrierCode.
func (r *Router) Resolve(ctx context.Context, tenantID uuid.UUID, carrierCode string) (*Route, error) {
	cfg, err := r.providers.Lookup(ctx, tenantID, carrierCode)
	if err != nil {
		return nil, err
	}
	return r.routeFor(ctx, cfg)
}

// ResolveProvider returns the route for the config with the given id,
// active or not. Cancellation uses it so a later deactivation does not strand shipments.
func (r *Router) ResolveProvider(ctx context.Context, tenantID uuid.UUID, carrierCode string, providerID uuid.UUID) (*Route, error) {
	cfg, err := r.providers.repo.Find(ctx, tenantID, shipper.NormalizeCode(carrierCode))
	if err != nil {
		return nil, err
	}
	if cfg.ID != providerID {
		return nil, notFoundError("provider %s for %s no longer exists", providerID, carrierCode)
	}
	return r.routeFor(ctx, cfg)
}

// Adapter returns the adapter registered for carrierCode.
func (r *Router) Adapter(carrierCode string) (shipper.Shipper, error) {
	adapter, err := r.adapters.Get(carrierCode)
	if err != nil {
		if errors.Is(err, shipper.ErrCarrierNotFound) {
			return nil, configurationError(err, "carrier %s is configured but no adapter is registered", shipper.NormalizeCode(carrierCode))
		}
		return nil, err
	}
	return adapter, nil
}

// Account resolves cfg's credentials into a per-call carrier account.
func (r *Router) Account(ctx context.Context, cfg *ProviderConfig) (*shipper.Account, error) {
	var creds shipper.Credentials
	if cfg.HasCredentials() && r.creds != nil {
		resolved, err := r.creds.Resolve(ctx, cfg.CredentialsRef)
		if err != nil {
			return nil, configurationError(err, "credentials for provider %s could not be resolved", cfg.CarrierCode)
		}
		creds = resolved
	}
	return &shipper.Account{
		ProviderID:    cfg.ID.String(),
		TenantID:      cfg.TenantID.String(),
		CarrierCode:   cfg.CarrierCode,
		Environment:   cfg.Environment,
		BaseURL:       cfg.BaseURL,
		Credentials:   creds,
		WebhookSecret: cfg.WebhookSecret,
	}, nil
}

func (r *Router) routeFor(ctx context.Context, cfg *ProviderConfig) (*Route, error) {
	adapter, err := r.Adapter(cfg.CarrierCode)
	if err != nil {
		return nil, err
	}
	acct, err := r.Account(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Route{Config: cfg, Adapter: adapter, Account: acct}, nil
}

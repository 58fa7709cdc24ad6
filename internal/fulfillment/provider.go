package fulfillment

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tournevent/fulfillment/pkg/shipper"
)

// ProviderConfig is a tenant's configuration for one carrier.
type ProviderConfig struct {
	ID                uuid.UUID
	TenantID          uuid.UUID
	CarrierCode       string
	DisplayName       string
	Environment       shipper.Environment
	BaseURL           string
	CredentialsRef    string // Opaque; resolved by a CredentialResolver, never exposed
	WebhookSecret     string
	SupportedServices []shipper.ServiceType // Empty means every service
	SortOrder         int
	Active            bool
	SupportsCOD       bool
	SupportsInsurance bool
	MaxWeightGrams    int             // Zero means unlimited
	MaxCODAmount      decimal.Decimal // Zero means unlimited
	HealthStatus      shipper.HealthState
	HealthMessage     string
	LastHealthCheck   *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasCredentials reports whether a credential reference is configured.
func (p *ProviderConfig) HasCredentials() bool {
	return p.CredentialsRef != ""
}

// SupportsService reports whether the provider offers t.
func (p *ProviderConfig) SupportsService(t shipper.ServiceType) bool {
	if t == "" || len(p.SupportedServices) == 0 {
		return true
	}
	for _, s := range p.SupportedServices {
		if s == t {
			return true
		}
	}
	return false
}

// capabilityGap returns a description of why the provider cannot carry the parcel, or "".
func (p *ProviderConfig) capabilityGap(service shipper.ServiceType, weightGrams int, cod decimal.Decimal, insurance bool) string {
	switch {
	case !p.SupportsService(service):
		return "service " + string(service) + " is not offered by " + p.CarrierCode
	case cod.IsPositive() && !p.SupportsCOD:
		return p.CarrierCode + " does not support cash on delivery"
	case insurance && !p.SupportsInsurance:
		return p.CarrierCode + " does not support insurance"
	case p.MaxWeightGrams > 0 && weightGrams > p.MaxWeightGrams:
		return "weight exceeds " + p.CarrierCode + " limit"
	case p.MaxCODAmount.IsPositive() && cod.GreaterThan(p.MaxCODAmount):
		return "COD amount exceeds " + p.CarrierCode + " limit"
	}
	return ""
}

// View returns the client-safe projection of the config.
func (p *ProviderConfig) View() ProviderView {
	services := make([]shipper.ServiceType, len(p.SupportedServices))
	copy(services, p.SupportedServices)
	return ProviderView{
		ID:                p.ID,
		CarrierCode:       p.CarrierCode,
		Name:              p.DisplayName,
		SortOrder:         p.SortOrder,
		SupportedServices: services,
		SupportsCOD:       p.SupportsCOD,
		SupportsInsurance: p.SupportsInsurance,
		HasCredentials:    p.HasCredentials(),
		HealthStatus:      p.HealthStatus,
	}
}

// ProviderView is what callers outside the core may see of a provider.
type ProviderView struct {
	ID                uuid.UUID             `json:"id"`
	CarrierCode       string                `json:"carrierCode"`
	Name              string                `json:"name"`
	SortOrder         int                   `json:"sortOrder"`
	SupportedServices []shipper.ServiceType `json:"supportedServices"`
	SupportsCOD       bool                  `json:"supportsCod"`
	SupportsInsurance bool                  `json:"supportsInsurance"`
	HasCredentials    bool                  `json:"hasCredentials"`
	HealthStatus      shipper.HealthState   `json:"healthStatus"`
}

package fulfillment

import (
	"context"
	"sort"
	"time"

	"github.com/tournevent/fulfillment/pkg/shipper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RatePolicy selects the recommended rate.
type RatePolicy string

const (
	// PolicyCheapest prefers the lowest total, then the fewest transit days.
	PolicyCheapest RatePolicy = "cheapest"
	// PolicyFastest prefers the fewest transit days, then the lowest total.
	PolicyFastest RatePolicy = "fastest"
)

// ProviderError is a provider left out of a quote and why.
type ProviderError struct {
	Carrier string `json:"carrier"`
	Message string `json:"message"`
}

// Quote is the merged result of a rate fan-out, ordered by the policy.
type Quote struct {
	Policy      RatePolicy
	Rates       []shipper.Rate
	Recommended *shipper.Rate
	Skipped     []ProviderError // Providers that failed or could not carry the parcel
}

// QuoteRates asks every active, capable provider of the tenant for rates in
// parallel. A provider that fails is left out rather than failing the quote.
func (s *Service) QuoteRates(ctx context.Context, cmd *QuoteRatesCommand) (*Quote, error) {
	ctx, span := s.tracer.Start(ctx, "fulfillment.QuoteRates",
		trace.WithAttributes(attribute.Int("weight_grams", cmd.WeightGrams)))
	defer span.End()

	if err := validateStruct(cmd); err != nil {
		return nil, err
	}
	policy := cmd.Policy
	if policy == "" {
		policy = s.opts.RatePolicy
	}

	configs, err := s.router.Providers().activeForTenant(ctx, cmd.TenantID)
	if err != nil {
		return nil, err
	}

	quote := &Quote{Policy: policy}
	eligible := make([]*ProviderConfig, 0, len(configs))
	for _, cfg := range configs {
		if gap := cfg.capabilityGap(cmd.ServiceType, cmd.WeightGrams, cmd.CODAmount, cmd.RequireInsurance); gap != "" {
			quote.Skipped = append(quote.Skipped, ProviderError{Carrier: cfg.CarrierCode, Message: gap})
			continue
		}
		eligible = append(eligible, cfg)
	}

	req := &shipper.RateRequest{
		PickupAddress:    cmd.PickupAddress,
		DeliveryAddress:  cmd.DeliveryAddress,
		WeightGrams:      cmd.WeightGrams,
		DeclaredValue:    cmd.DeclaredValue,
		CODAmount:        cmd.CODAmount,
		RequireInsurance: cmd.RequireInsurance,
		ServiceType:      cmd.ServiceType,
	}

	results := make([][]shipper.Rate, len(eligible))
	failures := make([]error, len(eligible))

	var g errgroup.Group
	for i, cfg := range eligible {
		g.Go(func() error {
			results[i], failures[i] = s.ratesFrom(ctx, cfg, req)
			return nil
		})
	}
	_ = g.Wait()

	for i, cfg := range eligible {
		if failures[i] != nil {
			msg := s.carrierFailureMessage(cfg.CarrierCode, failures[i])
			quote.Skipped = append(quote.Skipped, ProviderError{Carrier: cfg.CarrierCode, Message: msg})
			s.logger.Ctx(ctx).Warn("Provider omitted from quote",
				zap.String("carrier", cfg.CarrierCode),
				zap.String("provider_id", cfg.ID.String()),
				zap.Error(failures[i]),
			)
			continue
		}
		quote.Rates = append(quote.Rates, results[i]...)
	}

	sortRates(quote.Rates, policy)
	if len(quote.Rates) > 0 {
		best := quote.Rates[0]
		quote.Recommended = &best
	}
	return quote, nil
}

func (s *Service) ratesFrom(ctx context.Context, cfg *ProviderConfig, req *shipper.RateRequest) ([]shipper.Rate, error) {
	route, err := s.router.routeFor(ctx, cfg)
	if err != nil {
		return nil, err
	}
	callCtx, cancel := s.callTimeout(ctx)
	defer cancel()

	start := time.Now()
	rates, err := route.Adapter.GetRates(callCtx, req, route.Account)
	s.metrics.RecordRequest("get_rates", cfg.CarrierCode, resultLabel(err), time.Since(start).Seconds())
	if err != nil {
		s.metrics.RecordError(cfg.CarrierCode, errorType(err))
		return nil, err
	}

	out := make([]shipper.Rate, 0, len(rates))
	for _, r := range rates {
		if req.ServiceType != "" && r.ServiceType != req.ServiceType {
			continue
		}
		r.ProviderID = cfg.ID.String()
		if r.Carrier == "" {
			r.Carrier = cfg.CarrierCode
		}
		out = append(out, r)
	}
	return out, nil
}

// sortRates orders rates so the recommendation under policy comes first.
func sortRates(rates []shipper.Rate, policy RatePolicy) {
	sort.SliceStable(rates, func(i, j int) bool {
		a, b := rates[i], rates[j]
		if policy == PolicyFastest {
			if a.TransitDays != b.TransitDays {
				return a.TransitDays < b.TransitDays
			}
			return a.Total.LessThan(b.Total)
		}
		if !a.Total.Equal(b.Total) {
			return a.Total.LessThan(b.Total)
		}
		return a.TransitDays < b.TransitDays
	})
}

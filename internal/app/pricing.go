/**
 * @description
 * The pricing resolver. Given a (service category, city, country, as-of date)
 * tuple it selects the single applicable PricingRule by specificity and
 * recency, falling back to platform-wide default terms when nothing matches,
 * so pricing never blocks booking creation. Rules are read through a small
 * per-country TTL cache since rule edits are rare and never apply
 * retroactively to in-flight bookings.
 *
 * @dependencies
 * - internal/domain, internal/store: Domain models and data access.
 * - github.com/google/uuid: For UUID handling.
 */

package app

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rossostudios/maidconnect-booking/internal/domain"
	"github.com/rossostudios/maidconnect-booking/internal/store"
)

// Platform-wide default terms, used when no rule matches the query.
const (
	DefaultCommissionRate          = 0.18
	DefaultLateCancelHours         = 24
	DefaultLateCancelFeePercentage = 0.5
)

type cachedRuleSet struct {
	rules     []domain.PricingRule
	fetchedAt time.Time
}

// PricingResolver resolves the pricing terms for a booking and derives its
// quote amounts.
type PricingResolver struct {
	repo     store.Repository
	cacheTTL time.Duration

	mu    sync.Mutex
	cache map[string]cachedRuleSet // keyed by country
}

// NewPricingResolver creates a resolver reading rules through repo with the
// given cache TTL.
func NewPricingResolver(repo store.Repository, cacheTTL time.Duration) *PricingResolver {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &PricingResolver{
		repo:     repo,
		cacheTTL: cacheTTL,
		cache:    make(map[string]cachedRuleSet),
	}
}

// InvalidateCountry drops the cached rule set for a country. Called by the
// operator surface after a rule is created or deactivated.
func (p *PricingResolver) InvalidateCountry(country string) {
	p.mu.Lock()
	delete(p.cache, strings.ToUpper(country))
	p.mu.Unlock()
}

func (p *PricingResolver) activeRules(ctx context.Context, country string) ([]domain.PricingRule, error) {
	key := strings.ToUpper(country)

	p.mu.Lock()
	entry, ok := p.cache[key]
	p.mu.Unlock()
	if ok && time.Since(entry.fetchedAt) < p.cacheTTL {
		return entry.rules, nil
	}

	rules, err := p.repo.ListActivePricingRulesByCountry(ctx, key)
	if err != nil {
		// Serve the stale set rather than failing resolution outright.
		if ok {
			log.Printf("level=warn component=pricing msg=\"rule refresh failed; serving stale cache\" country=%s err=%v", key, err)
			return entry.rules, nil
		}
		return nil, fmt.Errorf("failed to load pricing rules for %s: %w", key, err)
	}

	p.mu.Lock()
	p.cache[key] = cachedRuleSet{rules: rules, fetchedAt: time.Now()}
	p.mu.Unlock()
	return rules, nil
}

func specificityScore(rule domain.PricingRule, category, city string) (int, bool) {
	score := 0
	if rule.ServiceCategory != nil {
		if category == "" || !strings.EqualFold(*rule.ServiceCategory, category) {
			return 0, false
		}
		score += 2
	}
	if rule.City != nil {
		if city == "" || !strings.EqualFold(*rule.City, city) {
			return 0, false
		}
		score += 2
	}
	return score, true
}

// Resolve selects the applicable terms for the query. Country is required;
// category and city are optional narrowing filters. The same inputs always
// yield the same result for a fixed rule set.
func (p *PricingResolver) Resolve(ctx context.Context, category, city, country string, asOf time.Time) (*domain.ResolvedTerms, error) {
	if strings.TrimSpace(country) == "" {
		return nil, fmt.Errorf("%w: country is required", ErrInvalidInput)
	}

	rules, err := p.activeRules(ctx, country)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		rule  domain.PricingRule
		score int
	}
	var candidates []candidate
	for _, rule := range rules {
		if rule.EffectiveFrom.After(asOf) {
			continue
		}
		if rule.EffectiveUntil != nil && rule.EffectiveUntil.Before(asOf) {
			continue
		}
		score, ok := specificityScore(rule, category, city)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{rule: rule, score: score})
	}

	if len(candidates) == 0 {
		return defaultTerms(asOf), nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		if !candidates[i].rule.EffectiveFrom.Equal(candidates[j].rule.EffectiveFrom) {
			return candidates[i].rule.EffectiveFrom.After(candidates[j].rule.EffectiveFrom)
		}
		return candidates[i].rule.CreatedAt.After(candidates[j].rule.CreatedAt)
	})

	winner := candidates[0].rule
	ruleID := winner.ID
	return &domain.ResolvedTerms{
		RuleID:                  &ruleID,
		CommissionRate:          winner.CommissionRate,
		BackgroundCheckFee:      winner.BackgroundCheckFee,
		MinPrice:                winner.MinPrice,
		MaxPrice:                winner.MaxPrice,
		DepositPercentage:       winner.DepositPercentage,
		LateCancelHours:         winner.LateCancelHours,
		LateCancelFeePercentage: winner.LateCancelFeePercentage,
		ResolvedAt:              asOf,
	}, nil
}

func defaultTerms(asOf time.Time) *domain.ResolvedTerms {
	return &domain.ResolvedTerms{
		CommissionRate:          DefaultCommissionRate,
		LateCancelHours:         DefaultLateCancelHours,
		LateCancelFeePercentage: DefaultLateCancelFeePercentage,
		ResolvedAt:              asOf,
	}
}

// BuildQuote derives the booking amounts from resolved terms. The plan
// discount, when present, applies to the base amount before the commission is
// computed. The min/max window from the rule clamps the base amount.
func BuildQuote(terms *domain.ResolvedTerms, hourlyRate int64, durationHours float64, discountPercentage float64) domain.BookingQuote {
	base := int64(math.Round(float64(hourlyRate) * durationHours))
	if discountPercentage > 0 {
		base = int64(math.Round(float64(base) * (1 - discountPercentage)))
	}
	if terms.MinPrice != nil && base < *terms.MinPrice {
		base = *terms.MinPrice
	}
	if terms.MaxPrice != nil && base > *terms.MaxPrice {
		base = *terms.MaxPrice
	}

	commission := int64(math.Round(float64(base) * terms.CommissionRate))
	var deposit int64
	if terms.DepositPercentage != nil {
		deposit = int64(math.Round(float64(base) * *terms.DepositPercentage))
	}
	addons := terms.BackgroundCheckFee

	return domain.BookingQuote{
		BaseAmount:      base,
		Commission:      commission,
		AddonFees:       addons,
		DepositAmount:   deposit,
		AmountEstimated: base + commission + addons,
	}
}

// LateCancelFee computes the fee owed when a booking is cancelled at
// cancelledAt, given its snapshot terms. Zero outside the late window.
func LateCancelFee(baseAmount int64, lateCancelHours int, lateCancelFeePercentage float64, scheduledStart, cancelledAt time.Time) int64 {
	if lateCancelHours <= 0 {
		return 0
	}
	windowStart := scheduledStart.Add(-time.Duration(lateCancelHours) * time.Hour)
	if cancelledAt.Before(windowStart) {
		return 0
	}
	return int64(math.Round(float64(baseAmount) * lateCancelFeePercentage))
}

// ValidatePricingRulePayload checks operator input against the allowed ranges.
func ValidatePricingRulePayload(payload domain.CreatePricingRulePayload) error {
	if strings.TrimSpace(payload.Country) == "" {
		return fmt.Errorf("%w: country is required", ErrInvalidInput)
	}
	if payload.CommissionRate < 0.10 || payload.CommissionRate > 0.30 {
		return fmt.Errorf("%w: commission_rate must be between 0.10 and 0.30", ErrInvalidInput)
	}
	if payload.BackgroundCheckFee < 0 {
		return fmt.Errorf("%w: background_check_fee must be non-negative", ErrInvalidInput)
	}
	if payload.MinPrice != nil && payload.MaxPrice != nil && *payload.MinPrice > *payload.MaxPrice {
		return fmt.Errorf("%w: min_price must not exceed max_price", ErrInvalidInput)
	}
	if payload.DepositPercentage != nil && (*payload.DepositPercentage < 0 || *payload.DepositPercentage > 1) {
		return fmt.Errorf("%w: deposit_percentage must be between 0 and 1", ErrInvalidInput)
	}
	if payload.LateCancelHours < 0 {
		return fmt.Errorf("%w: late_cancel_hours must be non-negative", ErrInvalidInput)
	}
	if payload.LateCancelFeePercentage < 0 || payload.LateCancelFeePercentage > 1 {
		return fmt.Errorf("%w: late_cancel_fee_percentage must be between 0 and 1", ErrInvalidInput)
	}
	if payload.EffectiveUntil != nil && payload.EffectiveUntil.Before(payload.EffectiveFrom) {
		return fmt.Errorf("%w: effective_until must not precede effective_from", ErrInvalidInput)
	}
	return nil
}

// CreatePricingRule persists a validated operator rule and invalidates the
// country's cached set.
func (p *PricingResolver) CreatePricingRule(ctx context.Context, payload domain.CreatePricingRulePayload) (*domain.PricingRule, error) {
	if err := ValidatePricingRulePayload(payload); err != nil {
		return nil, err
	}
	rule := &domain.PricingRule{
		ID:                      uuid.New(),
		ServiceCategory:         payload.ServiceCategory,
		City:                    payload.City,
		Country:                 strings.ToUpper(strings.TrimSpace(payload.Country)),
		CommissionRate:          payload.CommissionRate,
		BackgroundCheckFee:      payload.BackgroundCheckFee,
		MinPrice:                payload.MinPrice,
		MaxPrice:                payload.MaxPrice,
		DepositPercentage:       payload.DepositPercentage,
		LateCancelHours:         payload.LateCancelHours,
		LateCancelFeePercentage: payload.LateCancelFeePercentage,
		EffectiveFrom:           payload.EffectiveFrom,
		EffectiveUntil:          payload.EffectiveUntil,
		IsActive:                true,
	}
	if err := p.repo.CreatePricingRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("failed to create pricing rule: %w", err)
	}
	p.InvalidateCountry(rule.Country)
	return rule, nil
}

// ListPricingRules returns every rule for the operator surface.
func (p *PricingResolver) ListPricingRules(ctx context.Context) ([]domain.PricingRule, error) {
	return p.repo.ListPricingRules(ctx)
}

// DeactivatePricingRule retires a rule without deleting it. The whole cache
// is dropped since the rule's country is not part of the request.
func (p *PricingResolver) DeactivatePricingRule(ctx context.Context, ruleID uuid.UUID) error {
	if err := p.repo.DeactivatePricingRule(ctx, ruleID); err != nil {
		return err
	}
	p.mu.Lock()
	p.cache = make(map[string]cachedRuleSet)
	p.mu.Unlock()
	return nil
}

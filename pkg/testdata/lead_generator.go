package testdata

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"

	"github.com/dealerreach/backend/pkg/models"
)

// LeadGeneratorConfig configures lead generation parameters
type LeadGeneratorConfig struct {
	Count            int
	Segment          models.Segment
	PhoneChance      float64 // 0.0-1.0 (probability of having a phone)
	EmailChance      float64
	SecondaryChance  float64 // probability of a secondary phone
	OptedOutChance   float64
	HighIntentChance float64
	MinScore         int // 0-100
	MaxScore         int // 0-100
}

// DefaultConfig returns a realistic mix for one segment: almost all
// leads reachable by phone, most by email.
func DefaultConfig(segment models.Segment, count int) LeadGeneratorConfig {
	return LeadGeneratorConfig{
		Count:            count,
		Segment:          segment,
		PhoneChance:      0.95,
		EmailChance:      0.80,
		SecondaryChance:  0.15,
		OptedOutChance:   0.03,
		HighIntentChance: 0.05,
		MinScore:         10,
		MaxScore:         95,
	}
}

// languages weighted for a Spanish dealership book.
var languages = []string{"es", "es", "es", "es", "en", "ca"}

// spanishMobilePrefixes are valid Spanish mobile leading digits.
var spanishMobilePrefixes = []string{"6", "7"}

// GenerateLeads builds fake leads without persisting them.
func GenerateLeads(cfg LeadGeneratorConfig) []*models.Lead {
	leads := make([]*models.Lead, 0, cfg.Count)
	for i := 0; i < cfg.Count; i++ {
		lead := &models.Lead{
			FirstName: gofakeit.FirstName(),
			LastName:  gofakeit.LastName(),
			Segment:   cfg.Segment,
			Language:  languages[rand.Intn(len(languages))],
			Score:     cfg.MinScore + rand.Intn(cfg.MaxScore-cfg.MinScore+1),
			OptedOut:  rand.Float64() < cfg.OptedOutChance,
		}

		if rand.Float64() < cfg.PhoneChance {
			lead.Phone = spanishMobile()
		}
		if rand.Float64() < cfg.SecondaryChance {
			lead.SecondaryPhone = spanishMobile()
		}
		if rand.Float64() < cfg.EmailChance || (lead.Phone == "" && lead.SecondaryPhone == "") {
			lead.Email = gofakeit.Email()
		}
		if rand.Float64() < cfg.HighIntentChance {
			lead.Tags = models.Tags{models.TagSuperHot}
		}

		leads = append(leads, lead)
	}
	return leads
}

// SeedLeads generates and persists leads for local development.
func SeedLeads(ctx context.Context, db *gorm.DB, cfg LeadGeneratorConfig) ([]*models.Lead, error) {
	leads := GenerateLeads(cfg)
	if err := db.WithContext(ctx).CreateInBatches(leads, 100).Error; err != nil {
		return nil, fmt.Errorf("failed to seed leads: %w", err)
	}
	return leads, nil
}

// SeedAllSegments seeds count leads into each of the four segments.
func SeedAllSegments(ctx context.Context, db *gorm.DB, count int) (int, error) {
	total := 0
	for _, segment := range []models.Segment{
		models.SegmentHot, models.SegmentWarm, models.SegmentCold, models.SegmentFrozen,
	} {
		leads, err := SeedLeads(ctx, db, DefaultConfig(segment, count))
		if err != nil {
			return total, err
		}
		total += len(leads)
	}
	return total, nil
}

// spanishMobile returns an E.164 Spanish mobile number.
func spanishMobile() string {
	prefix := spanishMobilePrefixes[rand.Intn(len(spanishMobilePrefixes))]
	return fmt.Sprintf("+34%s%08d", prefix, rand.Intn(100000000))
}

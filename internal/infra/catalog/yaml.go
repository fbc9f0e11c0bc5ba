package catalog

import (
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"rentalspot/internal/domain/pricing"
	"rentalspot/internal/domain/property"
	"rentalspot/internal/domain/shared/daterange"
)

type fileConfig struct {
	Properties []propertyConfig `yaml:"properties"`
}

type propertyConfig struct {
	ID            string           `yaml:"id"`
	Name          string           `yaml:"name"`
	BaseRate      string           `yaml:"base_rate"`
	Currency      string           `yaml:"currency"`
	SeasonalRules []ruleConfig     `yaml:"seasonal_rules"`
	Overrides     []overrideConfig `yaml:"overrides"`
}

type ruleConfig struct {
	ID          string `yaml:"id"`
	Start       string `yaml:"start"`        // "2026-07-01"
	End         string `yaml:"end"`          // inclusive
	Multiplier  string `yaml:"multiplier"`   // "1.5"
	MinimumStay int    `yaml:"minimum_stay"` // nights
	Enabled     *bool  `yaml:"enabled,omitempty"`
}

type overrideConfig struct {
	ID          string `yaml:"id"`
	Date        string `yaml:"date"`
	Price       string `yaml:"price,omitempty"`
	Available   *bool  `yaml:"available,omitempty"`
	MinimumStay *int   `yaml:"minimum_stay,omitempty"`
	Reason      string `yaml:"reason,omitempty"`
}

// Load reads the property catalog file. Only malformed values are rejected
// here; rule semantics are checked per property when calendars are
// generated, so one bad rule does not take the whole catalog down.
func Load(path string) ([]property.Property, error) {
	if path == "" {
		path = "configs/properties.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read property catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) ([]property.Property, error) {
	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse property catalog: %w", err)
	}
	seen := map[string]bool{}
	out := make([]property.Property, 0, len(cfg.Properties))
	for i, pc := range cfg.Properties {
		p, err := pc.toProperty()
		if err != nil {
			return nil, fmt.Errorf("property #%d (%s): %w", i+1, pc.ID, err)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("property %s: duplicate id", p.ID)
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out, nil
}

func (pc propertyConfig) toProperty() (property.Property, error) {
	id := strings.TrimSpace(pc.ID)
	if id == "" {
		return property.Property{}, fmt.Errorf("id is required")
	}
	base, err := parseDecimal("base_rate", pc.BaseRate)
	if err != nil {
		return property.Property{}, err
	}
	p := property.Property{
		ID:       id,
		Name:     pc.Name,
		BaseRate: base,
		Currency: strings.ToUpper(strings.TrimSpace(pc.Currency)),
	}
	ruleIDs := map[string]bool{}
	for _, rc := range pc.SeasonalRules {
		if rc.ID == "" || ruleIDs[rc.ID] {
			return property.Property{}, fmt.Errorf("seasonal rule %q: missing or duplicate id", rc.ID)
		}
		ruleIDs[rc.ID] = true
		rule, err := rc.toRule(id)
		if err != nil {
			return property.Property{}, fmt.Errorf("seasonal rule %s: %w", rc.ID, err)
		}
		p.Rules = append(p.Rules, rule)
	}
	overrideIDs := map[string]bool{}
	for _, oc := range pc.Overrides {
		if oc.ID == "" || overrideIDs[oc.ID] {
			return property.Property{}, fmt.Errorf("override %q: missing or duplicate id", oc.ID)
		}
		overrideIDs[oc.ID] = true
		o, err := oc.toOverride(id)
		if err != nil {
			return property.Property{}, fmt.Errorf("override %s: %w", oc.ID, err)
		}
		p.Overrides = append(p.Overrides, o)
	}
	return p, nil
}

func (rc ruleConfig) toRule(propertyID string) (pricing.SeasonalRule, error) {
	start, err := daterange.ParseDay(rc.Start)
	if err != nil {
		return pricing.SeasonalRule{}, fmt.Errorf("start: %w", err)
	}
	end, err := daterange.ParseDay(rc.End)
	if err != nil {
		return pricing.SeasonalRule{}, fmt.Errorf("end: %w", err)
	}
	mult, err := parseDecimal("multiplier", rc.Multiplier)
	if err != nil {
		return pricing.SeasonalRule{}, err
	}
	enabled := rc.Enabled == nil || *rc.Enabled
	return pricing.SeasonalRule{
		ID:              rc.ID,
		PropertyID:      propertyID,
		StartDate:       start,
		EndDate:         end,
		PriceMultiplier: mult,
		MinimumStay:     rc.MinimumStay,
		Enabled:         enabled,
	}, nil
}

func (oc overrideConfig) toOverride(propertyID string) (pricing.DateOverride, error) {
	date, err := daterange.ParseDay(oc.Date)
	if err != nil {
		return pricing.DateOverride{}, fmt.Errorf("date: %w", err)
	}
	o := pricing.DateOverride{
		ID:          oc.ID,
		PropertyID:  propertyID,
		Date:        date,
		Available:   oc.Available,
		MinimumStay: oc.MinimumStay,
		Reason:      oc.Reason,
	}
	if oc.Price != "" {
		price, err := parseDecimal("price", oc.Price)
		if err != nil {
			return pricing.DateOverride{}, err
		}
		o.CustomPrice = &price
	}
	return o, nil
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s %q is not a number", field, raw)
	}
	return v, nil
}

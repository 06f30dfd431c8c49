// Package catalog holds the curated list of transit agencies and the region
// configuration that scopes feed aggregation. The catalog is static input:
// definitions are loaded once and never mutated at runtime.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yml
var defaultCatalog []byte

// AgencyDefinition identifies one agency: branding for its status card, the
// feed ids known to belong to it, and provider-name substrings used as a
// fallback matching key when no id is declared.
type AgencyDefinition struct {
	ID             string   `yaml:"id" json:"id" validate:"required"`
	Name           string   `yaml:"name" json:"name" validate:"required"`
	Slug           string   `yaml:"slug" json:"slug" validate:"required"`
	Website        string   `yaml:"website,omitempty" json:"website,omitempty"`
	Logo           string   `yaml:"logo,omitempty" json:"logo,omitempty"`
	Color          string   `yaml:"color,omitempty" json:"color,omitempty"`
	SecondaryColor string   `yaml:"secondary_color,omitempty" json:"secondary_color,omitempty"`
	TextColor      string   `yaml:"text_color,omitempty" json:"text_color,omitempty"`
	ShowName       *bool    `yaml:"show_name,omitempty" json:"show_name,omitempty"`
	GtfsFeedIDs    []string `yaml:"gtfs_feed_ids" json:"gtfs_feed_ids,omitempty"`
	GtfsRtFeedIDs  []string `yaml:"gtfs_rt_feed_ids" json:"gtfs_rt_feed_ids,omitempty"`
	Providers      []string `yaml:"providers" json:"providers,omitempty"`
}

// FeedIDs returns the declared schedule and realtime feed ids, in that order.
func (a AgencyDefinition) FeedIDs() []string {
	ids := make([]string, 0, len(a.GtfsFeedIDs)+len(a.GtfsRtFeedIDs))
	ids = append(ids, a.GtfsFeedIDs...)
	ids = append(ids, a.GtfsRtFeedIDs...)
	return ids
}

// MatchesProvider reports whether the given registry provider name contains
// one of the agency's provider aliases.
func (a AgencyDefinition) MatchesProvider(provider string) bool {
	for _, alias := range a.Providers {
		if alias != "" && strings.Contains(provider, alias) {
			return true
		}
	}
	return false
}

// DisplaysName reports whether the agency name should be shown on its card.
// Defaults to true when unset.
func (a AgencyDefinition) DisplaysName() bool {
	return a.ShowName == nil || *a.ShowName
}

// RegionConfig defines the geographic scope of aggregation: subdivision names
// as they appear in the registry, and ISO country codes to page through.
type RegionConfig struct {
	Subdivisions []string `yaml:"subdivisions" json:"subdivisions" validate:"min=1"`
	CountryCodes []string `yaml:"country_codes" json:"country_codes" validate:"min=1"`
}

// Catalog is the full static configuration: the region plus every agency.
type Catalog struct {
	Region   RegionConfig       `yaml:"region" json:"region"`
	Agencies []AgencyDefinition `yaml:"agencies" json:"agencies" validate:"min=1,dive"`
}

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	return parse(defaultCatalog)
}

// Load reads a catalog from a YAML file, for deployments covering a different
// region than the built-in one.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator-supplied configuration
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return &c, nil
}

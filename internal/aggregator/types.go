// Package aggregator combines registry feed records into per-agency status
// views.
//
// This package enables transitboard to:
// - Fetch declared feeds by id and discover regional feeds by scanning
// - Normalize heterogeneous registry records into one display model
// - Join feeds to catalog agencies and derive an overall health status
package aggregator

import (
	"github.com/dmvtransit/transitboard/internal/catalog"
	"github.com/dmvtransit/transitboard/internal/mobilitydata"
)

// Status is the derived health badge for an agency.
type Status string

const (
	StatusHealthy Status = "healthy"
	StatusIssues  Status = "issues"
	StatusError   Status = "error"
	StatusUnknown Status = "unknown"
)

// DownloadURLs pairs the registry-hosted copy of a dataset with the
// producer's direct URL.
type DownloadURLs struct {
	MobilityData string `json:"mobility_data,omitempty"`
	Direct       string `json:"direct,omitempty"`
}

// Authentication describes what a consumer needs to access a feed.
type Authentication struct {
	Type          int    `json:"type"`
	InfoURL       string `json:"info_url,omitempty"`
	ParameterName string `json:"parameter_name,omitempty"`
}

// FeedLicense is the license summary shown in the feed detail view.
type FeedLicense struct {
	ID     string `json:"id,omitempty"`
	URL    string `json:"url,omitempty"`
	IsSPDX bool   `json:"is_spdx,omitempty"`
}

// ProcessedFeed is the canonical, display-ready form of one registry record.
// It is created once per unique raw feed id; only the validation summary may
// be overwritten later, by the dataset freshness pass.
type ProcessedFeed struct {
	ID             string                         `json:"id"`
	Type           mobilitydata.DataType          `json:"type"`
	Name           string                         `json:"name"`
	Status         mobilitydata.FeedStatus        `json:"status"`
	DownloadURLs   DownloadURLs                   `json:"download_urls"`
	LastUpdated    string                         `json:"last_updated,omitempty"`
	Validation     *mobilitydata.ValidationReport `json:"validation,omitempty"`
	DatasetID      string                         `json:"dataset_id,omitempty"`
	RealtimeTypes  []mobilitydata.EntityType      `json:"realtime_types,omitempty"`
	Locations      []mobilitydata.Location        `json:"locations,omitempty"`
	BoundingBox    *mobilitydata.BoundingBox      `json:"bounding_box,omitempty"`
	Authentication *Authentication                `json:"authentication,omitempty"`
	License        *FeedLicense                   `json:"license,omitempty"`
	FeedReferences []string                       `json:"feed_references,omitempty"`
	Official       bool                           `json:"official,omitempty"`
	Note           string                         `json:"note,omitempty"`
}

// Agency is one catalog agency joined with its matched feeds. Built fresh on
// every aggregation run, never persisted.
type Agency struct {
	catalog.AgencyDefinition
	Feeds         []ProcessedFeed `json:"feeds"`
	OverallStatus Status          `json:"overall_status"`
}

package mobilitydata

import (
	"net/url"
	"strconv"
	"strings"
)

// DataType discriminates the feed union returned by the registry.
type DataType string

const (
	DataTypeGTFS   DataType = "gtfs"
	DataTypeGTFSRT DataType = "gtfs_rt"
	DataTypeGBFS   DataType = "gbfs"
)

// FeedStatus is the lifecycle status the registry assigns to a feed.
type FeedStatus string

const (
	StatusActive      FeedStatus = "active"
	StatusDeprecated  FeedStatus = "deprecated"
	StatusInactive    FeedStatus = "inactive"
	StatusDevelopment FeedStatus = "development"
	StatusFuture      FeedStatus = "future"
)

// EntityType identifies the realtime entity kinds a GTFS-RT feed publishes.
type EntityType string

const (
	EntityVehiclePositions EntityType = "vp"
	EntityTripUpdates      EntityType = "tu"
	EntityServiceAlerts    EntityType = "sa"
)

// ExternalID links a feed to an identifier in another catalog.
type ExternalID struct {
	ExternalID string `json:"external_id"`
	Source     string `json:"source"`
}

// Redirect points a retired feed id at its replacement.
type Redirect struct {
	TargetID string `json:"target_id"`
	Comment  string `json:"comment,omitempty"`
}

// Location is a geographic area a feed covers.
type Location struct {
	CountryCode     string `json:"country_code"`
	Country         string `json:"country,omitempty"`
	SubdivisionName string `json:"subdivision_name,omitempty"`
	Municipality    string `json:"municipality,omitempty"`
}

// SourceInfo describes where and how a feed's data is published by its producer.
type SourceInfo struct {
	ProducerURL           string `json:"producer_url,omitempty"`
	AuthenticationType    int    `json:"authentication_type,omitempty"`
	AuthenticationInfoURL string `json:"authentication_info_url,omitempty"`
	APIKeyParameterName   string `json:"api_key_parameter_name,omitempty"`
	LicenseURL            string `json:"license_url,omitempty"`
	LicenseID             string `json:"license_id,omitempty"`
	LicenseIsSPDX         bool   `json:"license_is_spdx,omitempty"`
	LicenseNotes          string `json:"license_notes,omitempty"`
}

// BoundingBox is the geographic extent of a schedule dataset.
type BoundingBox struct {
	MinimumLatitude  float64 `json:"minimum_latitude"`
	MaximumLatitude  float64 `json:"maximum_latitude"`
	MinimumLongitude float64 `json:"minimum_longitude"`
	MaximumLongitude float64 `json:"maximum_longitude"`
}

// ValidationReport summarizes a canonical-validator run over a dataset.
type ValidationReport struct {
	ValidatedAt        string   `json:"validated_at"`
	Features           []string `json:"features,omitempty"`
	ValidatorVersion   string   `json:"validator_version,omitempty"`
	TotalError         int      `json:"total_error"`
	TotalWarning       int      `json:"total_warning"`
	TotalInfo          int      `json:"total_info"`
	UniqueErrorCount   int      `json:"unique_error_count"`
	UniqueWarningCount int      `json:"unique_warning_count"`
	UniqueInfoCount    int      `json:"unique_info_count"`
	URLJSON            string   `json:"url_json,omitempty"`
	URLHTML            string   `json:"url_html,omitempty"`
}

// LatestDataset is the most recent dataset the registry has harvested for a
// GTFS schedule feed.
type LatestDataset struct {
	ID               string            `json:"id"`
	HostedURL        string            `json:"hosted_url"`
	BoundingBox      *BoundingBox      `json:"bounding_box,omitempty"`
	DownloadedAt     string            `json:"downloaded_at"`
	Hash             string            `json:"hash,omitempty"`
	AgencyTimezone   string            `json:"agency_timezone,omitempty"`
	ValidationReport *ValidationReport `json:"validation_report,omitempty"`
}

// Feed is a raw registry record. The registry returns a union of schedule
// (gtfs), realtime (gtfs_rt) and bikeshare (gbfs) records; DataType is the
// discriminant and the trailing field groups only apply to one variant.
type Feed struct {
	ID               string       `json:"id"`
	DataType         DataType     `json:"data_type"`
	Provider         string       `json:"provider"`
	FeedName         string       `json:"feed_name,omitempty"`
	Status           FeedStatus   `json:"status,omitempty"`
	Official         bool         `json:"official,omitempty"`
	Note             string       `json:"note,omitempty"`
	FeedContactEmail string       `json:"feed_contact_email,omitempty"`
	CreatedAt        string       `json:"created_at,omitempty"`
	ExternalIDs      []ExternalID `json:"external_ids,omitempty"`
	Redirects        []Redirect   `json:"redirects,omitempty"`
	SourceInfo       *SourceInfo  `json:"source_info,omitempty"`
	Locations        []Location   `json:"locations,omitempty"`

	// GTFS schedule feeds only.
	LatestDataset *LatestDataset `json:"latest_dataset,omitempty"`
	BoundingBox   *BoundingBox   `json:"bounding_box,omitempty"`

	// GTFS realtime feeds only.
	EntityTypes    []EntityType `json:"entity_types,omitempty"`
	FeedReferences []string     `json:"feed_references,omitempty"`
}

// Dataset is a harvested GTFS dataset, fetched by id to refresh validation
// results after the feed record itself was retrieved.
type Dataset struct {
	ID               string            `json:"id"`
	FeedID           string            `json:"feed_id"`
	HostedURL        string            `json:"hosted_url"`
	Note             string            `json:"note,omitempty"`
	DownloadedAt     string            `json:"downloaded_at"`
	Hash             string            `json:"hash,omitempty"`
	BoundingBox      *BoundingBox      `json:"bounding_box,omitempty"`
	ValidationReport *ValidationReport `json:"validation_report,omitempty"`
}

// License is a data license known to the registry.
type License struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	IsSPDX      bool   `json:"is_spdx"`
	Name        string `json:"name"`
	URL         string `json:"url,omitempty"`
	Description string `json:"description,omitempty"`
}

// LicenseRule is one permission, condition or limitation of a license.
type LicenseRule struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

// LicenseDetail is a license together with its rules.
type LicenseDetail struct {
	License
	Rules []LicenseRule `json:"license_rules"`
}

// Metadata describes the registry deployment itself.
type Metadata struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
}

// FeedFilter narrows the generic /feeds list endpoint. Zero-valued fields are
// omitted from the query.
type FeedFilter struct {
	Limit           int
	Offset          int
	Status          string
	Provider        string
	ProducerURL     string
	CountryCode     string
	SubdivisionName string
	Municipality    string
	IsOfficial      *bool
}

func (f FeedFilter) query() url.Values {
	q := url.Values{}
	setInt(q, "limit", f.Limit)
	setInt(q, "offset", f.Offset)
	setString(q, "status", f.Status)
	setString(q, "provider", f.Provider)
	setString(q, "producer_url", f.ProducerURL)
	setString(q, "country_code", f.CountryCode)
	setString(q, "subdivision_name", f.SubdivisionName)
	setString(q, "municipality", f.Municipality)
	setBool(q, "is_official", f.IsOfficial)
	return q
}

// GtfsFeedFilter narrows the /gtfs_feeds list endpoint.
type GtfsFeedFilter struct {
	Limit                int
	Offset               int
	Provider             string
	ProducerURL          string
	CountryCode          string
	SubdivisionName      string
	Municipality         string
	DatasetLatitudes     string
	DatasetLongitudes    string
	BoundingFilterMethod string
	IsOfficial           *bool
}

func (f GtfsFeedFilter) query() url.Values {
	q := url.Values{}
	setInt(q, "limit", f.Limit)
	setInt(q, "offset", f.Offset)
	setString(q, "provider", f.Provider)
	setString(q, "producer_url", f.ProducerURL)
	setString(q, "country_code", f.CountryCode)
	setString(q, "subdivision_name", f.SubdivisionName)
	setString(q, "municipality", f.Municipality)
	setString(q, "dataset_latitudes", f.DatasetLatitudes)
	setString(q, "dataset_longitudes", f.DatasetLongitudes)
	setString(q, "bounding_filter_method", f.BoundingFilterMethod)
	setBool(q, "is_official", f.IsOfficial)
	return q
}

// GtfsRtFeedFilter narrows the /gtfs_rt_feeds list endpoint.
type GtfsRtFeedFilter struct {
	Limit           int
	Offset          int
	Provider        string
	ProducerURL     string
	EntityTypes     []EntityType
	CountryCode     string
	SubdivisionName string
	Municipality    string
	IsOfficial      *bool
}

func (f GtfsRtFeedFilter) query() url.Values {
	q := url.Values{}
	setInt(q, "limit", f.Limit)
	setInt(q, "offset", f.Offset)
	setString(q, "provider", f.Provider)
	setString(q, "producer_url", f.ProducerURL)
	if len(f.EntityTypes) > 0 {
		types := make([]string, 0, len(f.EntityTypes))
		for _, et := range f.EntityTypes {
			types = append(types, string(et))
		}
		q.Set("entity_types", strings.Join(types, ","))
	}
	setString(q, "country_code", f.CountryCode)
	setString(q, "subdivision_name", f.SubdivisionName)
	setString(q, "municipality", f.Municipality)
	setBool(q, "is_official", f.IsOfficial)
	return q
}

// DatasetFilter narrows the /gtfs_feeds/{id}/datasets endpoint.
type DatasetFilter struct {
	Latest           *bool
	Limit            int
	Offset           int
	DownloadedAfter  string
	DownloadedBefore string
}

func (f DatasetFilter) query() url.Values {
	q := url.Values{}
	setBool(q, "latest", f.Latest)
	setInt(q, "limit", f.Limit)
	setInt(q, "offset", f.Offset)
	setString(q, "downloaded_after", f.DownloadedAfter)
	setString(q, "downloaded_before", f.DownloadedBefore)
	return q
}

// SearchFilter narrows the /search endpoint.
type SearchFilter struct {
	SearchQuery string
	Limit       int
	Offset      int
	Status      []FeedStatus
	FeedID      string
	DataType    DataType
	IsOfficial  *bool
	Version     string
	Feature     []string
}

func (f SearchFilter) query() url.Values {
	q := url.Values{}
	setString(q, "search_query", f.SearchQuery)
	setInt(q, "limit", f.Limit)
	setInt(q, "offset", f.Offset)
	if len(f.Status) > 0 {
		statuses := make([]string, 0, len(f.Status))
		for _, s := range f.Status {
			statuses = append(statuses, string(s))
		}
		q.Set("status", strings.Join(statuses, ","))
	}
	setString(q, "feed_id", f.FeedID)
	setString(q, "data_type", string(f.DataType))
	setBool(q, "is_official", f.IsOfficial)
	setString(q, "version", f.Version)
	if len(f.Feature) > 0 {
		q.Set("feature", strings.Join(f.Feature, ","))
	}
	return q
}

// SearchResult is one page of search hits plus the total match count.
type SearchResult struct {
	Total   int    `json:"total"`
	Results []Feed `json:"results"`
}

// LicenseFilter pages through the /licenses endpoint.
type LicenseFilter struct {
	Limit  int
	Offset int
}

func (f LicenseFilter) query() url.Values {
	q := url.Values{}
	setInt(q, "limit", f.Limit)
	setInt(q, "offset", f.Offset)
	return q
}

func setString(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func setInt(q url.Values, key string, value int) {
	if value != 0 {
		q.Set(key, strconv.Itoa(value))
	}
}

func setBool(q url.Values, key string, value *bool) {
	if value != nil {
		q.Set(key, strconv.FormatBool(*value))
	}
}

package aggregator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmvtransit/transitboard/internal/mobilitydata"
)

// ErrUnsupportedFeedType marks a registry record this application cannot
// process. Bikeshare (GBFS) feeds are out of scope and must never be coerced
// into the schedule/realtime model.
var ErrUnsupportedFeedType = errors.New("unsupported feed type")

// Normalize converts one raw registry record into its display form. It is a
// pure function: deterministic, no I/O, and re-normalizing the same record
// yields identical output.
func Normalize(raw mobilitydata.Feed) (ProcessedFeed, error) {
	switch raw.DataType {
	case mobilitydata.DataTypeGTFS, mobilitydata.DataTypeGTFSRT:
	case mobilitydata.DataTypeGBFS:
		return ProcessedFeed{}, fmt.Errorf("%w: feed %s is gbfs", ErrUnsupportedFeedType, raw.ID)
	default:
		return ProcessedFeed{}, fmt.Errorf("%w: feed %s has data type %q", ErrUnsupportedFeedType, raw.ID, raw.DataType)
	}

	feed := ProcessedFeed{
		ID:       raw.ID,
		Type:     raw.DataType,
		Name:     resolveName(raw),
		Status:   raw.Status,
		Official: raw.Official,
		Note:     raw.Note,
	}

	if si := raw.SourceInfo; si != nil {
		if si.AuthenticationType != 0 {
			feed.Authentication = &Authentication{
				Type:          si.AuthenticationType,
				InfoURL:       si.AuthenticationInfoURL,
				ParameterName: si.APIKeyParameterName,
			}
		}
		if si.LicenseID != "" || si.LicenseURL != "" {
			feed.License = &FeedLicense{
				ID:     si.LicenseID,
				URL:    si.LicenseURL,
				IsSPDX: si.LicenseIsSPDX,
			}
		}
	}

	if len(raw.Locations) > 0 {
		feed.Locations = raw.Locations
	}

	switch raw.DataType {
	case mobilitydata.DataTypeGTFS:
		if ds := raw.LatestDataset; ds != nil {
			feed.DownloadURLs.MobilityData = ds.HostedURL
			feed.LastUpdated = ds.DownloadedAt
			feed.Validation = ds.ValidationReport
			feed.DatasetID = ds.ID
		}
		if raw.SourceInfo != nil && raw.SourceInfo.ProducerURL != "" {
			feed.DownloadURLs.Direct = raw.SourceInfo.ProducerURL
		}
		if raw.BoundingBox != nil {
			feed.BoundingBox = raw.BoundingBox
		}
	case mobilitydata.DataTypeGTFSRT:
		if len(raw.EntityTypes) > 0 {
			feed.RealtimeTypes = raw.EntityTypes
		}
		if raw.SourceInfo != nil && raw.SourceInfo.ProducerURL != "" {
			feed.DownloadURLs.Direct = raw.SourceInfo.ProducerURL
		}
		if len(raw.FeedReferences) > 0 {
			feed.FeedReferences = raw.FeedReferences
		}
	}

	return feed, nil
}

// resolveName uses the feed's explicit name when present, otherwise
// synthesizes "{provider} {TYPE}" from the uppercased data type.
func resolveName(raw mobilitydata.Feed) string {
	if raw.FeedName != "" {
		return raw.FeedName
	}
	return raw.Provider + " " + strings.ToUpper(string(raw.DataType))
}

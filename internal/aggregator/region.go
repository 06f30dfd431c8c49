package aggregator

import (
	"slices"

	"github.com/dmvtransit/transitboard/internal/catalog"
	"github.com/dmvtransit/transitboard/internal/mobilitydata"
)

// InRegion reports whether a raw feed belongs to the configured geography.
// A feed qualifies when either condition holds, independently:
//
//  1. a declared location's subdivision is on the region allow-list, or
//  2. the provider name contains a provider alias of any catalog agency.
//
// The OR is deliberate: feeds with missing location metadata are recovered by
// provider name, and in-region feeds from providers not yet in the catalog
// are recovered by geography.
func InRegion(feed mobilitydata.Feed, agencies []catalog.AgencyDefinition, region catalog.RegionConfig) bool {
	for _, loc := range feed.Locations {
		if loc.SubdivisionName != "" && slices.Contains(region.Subdivisions, loc.SubdivisionName) {
			return true
		}
	}
	for _, agency := range agencies {
		if agency.MatchesProvider(feed.Provider) {
			return true
		}
	}
	return false
}

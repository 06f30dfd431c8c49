package aggregator

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/dmvtransit/transitboard/internal/catalog"
	"github.com/dmvtransit/transitboard/internal/mobilitydata"
)

// regionPageSize is the page size for by-region scans; a page shorter than
// this terminates the scan for that country.
const regionPageSize = 100

// Client is the subset of the registry client the aggregator uses.
type Client interface {
	GetGtfsFeedByID(ctx context.Context, id string) (*mobilitydata.Feed, error)
	GetGtfsRtFeedByID(ctx context.Context, id string) (*mobilitydata.Feed, error)
	GetGtfsFeeds(ctx context.Context, filter mobilitydata.GtfsFeedFilter) ([]mobilitydata.Feed, error)
	GetGtfsRtFeeds(ctx context.Context, filter mobilitydata.GtfsRtFeedFilter) ([]mobilitydata.Feed, error)
	GetGtfsDatasetByID(ctx context.Context, datasetID string) (*mobilitydata.Dataset, error)
}

// Option configures the Aggregator.
type Option func(*Aggregator)

// WithLogger sets the logger used for per-feed and per-page fetch failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Aggregator) {
		a.logger = logger
	}
}

// Aggregator runs the multi-phase pipeline that turns registry records into
// per-agency status views.
type Aggregator struct {
	client  Client
	catalog *catalog.Catalog
	logger  *slog.Logger
}

// New creates an Aggregator over the given client and catalog.
func New(client Client, cat *catalog.Catalog, opts ...Option) *Aggregator {
	a := &Aggregator{
		client:  client,
		catalog: cat,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate fetches, filters, normalizes and joins feeds into agencies.
// Individual fetch failures are logged and skipped; a failed token exchange
// or an unprocessable record aborts the run.
func (a *Aggregator) Aggregate(ctx context.Context) ([]Agency, error) {
	declared, err := a.fetchDeclared(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(declared))
	for _, feed := range declared {
		seen[feed.ID] = true
	}
	regional, err := a.scanRegion(ctx, seen)
	if err != nil {
		return nil, err
	}
	all := append(declared, regional...)

	processed := make(map[string]*ProcessedFeed, len(all))
	for _, raw := range all {
		feed, err := Normalize(raw)
		if err != nil {
			return nil, err
		}
		processed[raw.ID] = &feed
	}

	a.refreshValidation(ctx, all, processed)

	return a.buildAgencies(all, processed), nil
}

// fatal reports whether a fetch error should abort the whole run rather than
// skip one feed. Only a failed token exchange qualifies.
func fatal(err error) bool {
	var authErr *mobilitydata.AuthError
	return errors.As(err, &authErr)
}

// fetchDeclared looks up every feed id declared in the catalog, schedule ids
// then realtime ids per agency. One failing id never aborts the run, but a
// token exchange failure does.
func (a *Aggregator) fetchDeclared(ctx context.Context) ([]mobilitydata.Feed, error) {
	seen := make(map[string]bool)
	var feeds []mobilitydata.Feed

	for _, agency := range a.catalog.Agencies {
		for _, id := range agency.GtfsFeedIDs {
			if seen[id] {
				continue
			}
			feed, err := a.client.GetGtfsFeedByID(ctx, id)
			if fatal(err) {
				return nil, err
			}
			if err != nil {
				a.logger.Warn("failed to fetch GTFS feed", "feed", id, "agency", agency.ID, "error", err)
				continue
			}
			seen[id] = true
			feeds = append(feeds, *feed)
		}
		for _, id := range agency.GtfsRtFeedIDs {
			if seen[id] {
				continue
			}
			feed, err := a.client.GetGtfsRtFeedByID(ctx, id)
			if fatal(err) {
				return nil, err
			}
			if err != nil {
				a.logger.Warn("failed to fetch GTFS-RT feed", "feed", id, "agency", agency.ID, "error", err)
				continue
			}
			seen[id] = true
			feeds = append(feeds, *feed)
		}
	}

	return feeds, nil
}

// scanRegion pages through the schedule and realtime list endpoints for each
// configured country, keeping in-region feeds not already fetched by id.
func (a *Aggregator) scanRegion(ctx context.Context, seen map[string]bool) ([]mobilitydata.Feed, error) {
	var feeds []mobilitydata.Feed

	for _, country := range a.catalog.Region.CountryCodes {
		kept, err := a.scanCountry(ctx, country, seen, func(ctx context.Context, offset int) ([]mobilitydata.Feed, error) {
			return a.client.GetGtfsFeeds(ctx, mobilitydata.GtfsFeedFilter{
				Limit:       regionPageSize,
				Offset:      offset,
				CountryCode: country,
			})
		})
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, kept...)
	}
	for _, country := range a.catalog.Region.CountryCodes {
		kept, err := a.scanCountry(ctx, country, seen, func(ctx context.Context, offset int) ([]mobilitydata.Feed, error) {
			return a.client.GetGtfsRtFeeds(ctx, mobilitydata.GtfsRtFeedFilter{
				Limit:       regionPageSize,
				Offset:      offset,
				CountryCode: country,
			})
		})
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, kept...)
	}

	return feeds, nil
}

// scanCountry drives one paginated endpoint for one country. A page failure
// stops this country's scan without aborting the run.
func (a *Aggregator) scanCountry(ctx context.Context, country string, seen map[string]bool, fetch func(ctx context.Context, offset int) ([]mobilitydata.Feed, error)) ([]mobilitydata.Feed, error) {
	var kept []mobilitydata.Feed

	for offset := 0; ; offset += regionPageSize {
		page, err := fetch(ctx, offset)
		if fatal(err) {
			return nil, err
		}
		if err != nil {
			a.logger.Warn("region scan stopped", "country", country, "offset", offset, "error", err)
			break
		}
		for _, feed := range page {
			if seen[feed.ID] {
				continue
			}
			if !InRegion(feed, a.catalog.Agencies, a.catalog.Region) {
				continue
			}
			seen[feed.ID] = true
			kept = append(kept, feed)
		}
		if len(page) < regionPageSize {
			break
		}
	}

	return kept, nil
}

// refreshValidation re-fetches the dataset behind each normalized schedule
// feed and overwrites its validation summary when the dataset carries a
// fresher report. Failures leave the original summary in place.
func (a *Aggregator) refreshValidation(ctx context.Context, all []mobilitydata.Feed, processed map[string]*ProcessedFeed) {
	for _, raw := range all {
		feed := processed[raw.ID]
		if feed == nil || feed.Type != mobilitydata.DataTypeGTFS || feed.DatasetID == "" {
			continue
		}
		dataset, err := a.client.GetGtfsDatasetByID(ctx, feed.DatasetID)
		if err != nil {
			a.logger.Warn("failed to refresh dataset", "feed", feed.ID, "dataset", feed.DatasetID, "error", err)
			continue
		}
		if dataset.ValidationReport != nil {
			feed.Validation = dataset.ValidationReport
		}
	}
}

// buildAgencies joins feeds to catalog agencies by declared id first, then by
// provider alias, and derives each agency's status. Agencies with no matched
// feeds are dropped. Output preserves catalog order for agencies and
// discovery order for feeds.
func (a *Aggregator) buildAgencies(all []mobilitydata.Feed, processed map[string]*ProcessedFeed) []Agency {
	agencies := make([]Agency, 0, len(a.catalog.Agencies))

	for _, def := range a.catalog.Agencies {
		declaredIDs := def.FeedIDs()

		var feeds []ProcessedFeed
		for _, raw := range all {
			if !slices.Contains(declaredIDs, raw.ID) && !def.MatchesProvider(raw.Provider) {
				continue
			}
			if feed := processed[raw.ID]; feed != nil {
				feeds = append(feeds, *feed)
			}
		}
		if len(feeds) == 0 {
			continue
		}

		agencies = append(agencies, Agency{
			AgencyDefinition: def,
			Feeds:            feeds,
			OverallStatus:    DetermineAgencyStatus(statusFeeds(feeds)),
		})
	}

	return agencies
}

// statusFeeds selects the subset that drives the health badge: deprecated
// feeds stay visible in the feed list but do not count against status, unless
// excluding them would leave nothing to judge.
func statusFeeds(feeds []ProcessedFeed) []ProcessedFeed {
	kept := make([]ProcessedFeed, 0, len(feeds))
	for _, feed := range feeds {
		if feed.Status != mobilitydata.StatusDeprecated {
			kept = append(kept, feed)
		}
	}
	if len(kept) == 0 {
		return feeds
	}
	return kept
}

package aggregator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/dmvtransit/transitboard/internal/catalog"
	"github.com/dmvtransit/transitboard/internal/mobilitydata"
)

// fakeClient serves canned registry responses. List pages are keyed by
// country code and sliced by offset, matching the caller-driven pagination
// contract.
type fakeClient struct {
	gtfsByID  map[string]mobilitydata.Feed
	rtByID    map[string]mobilitydata.Feed
	gtfsLists map[string][]mobilitydata.Feed
	rtLists   map[string][]mobilitydata.Feed
	datasets  map[string]mobilitydata.Dataset

	byIDErr    map[string]error
	gtfsListErr map[string]error
	datasetErr map[string]error

	datasetCalls int
}

func (f *fakeClient) GetGtfsFeedByID(_ context.Context, id string) (*mobilitydata.Feed, error) {
	if err := f.byIDErr[id]; err != nil {
		return nil, err
	}
	feed, ok := f.gtfsByID[id]
	if !ok {
		return nil, &mobilitydata.RequestError{Endpoint: "/gtfs_feeds/" + id, StatusCode: 404, Status: "404 Not Found"}
	}
	return &feed, nil
}

func (f *fakeClient) GetGtfsRtFeedByID(_ context.Context, id string) (*mobilitydata.Feed, error) {
	if err := f.byIDErr[id]; err != nil {
		return nil, err
	}
	feed, ok := f.rtByID[id]
	if !ok {
		return nil, &mobilitydata.RequestError{Endpoint: "/gtfs_rt_feeds/" + id, StatusCode: 404, Status: "404 Not Found"}
	}
	return &feed, nil
}

func (f *fakeClient) GetGtfsFeeds(_ context.Context, filter mobilitydata.GtfsFeedFilter) ([]mobilitydata.Feed, error) {
	if err := f.gtfsListErr[filter.CountryCode]; err != nil {
		return nil, err
	}
	return page(f.gtfsLists[filter.CountryCode], filter.Offset, filter.Limit), nil
}

func (f *fakeClient) GetGtfsRtFeeds(_ context.Context, filter mobilitydata.GtfsRtFeedFilter) ([]mobilitydata.Feed, error) {
	return page(f.rtLists[filter.CountryCode], filter.Offset, filter.Limit), nil
}

func (f *fakeClient) GetGtfsDatasetByID(_ context.Context, datasetID string) (*mobilitydata.Dataset, error) {
	f.datasetCalls++
	if err := f.datasetErr[datasetID]; err != nil {
		return nil, err
	}
	dataset, ok := f.datasets[datasetID]
	if !ok {
		return nil, &mobilitydata.RequestError{Endpoint: "/datasets/gtfs/" + datasetID, StatusCode: 404, Status: "404 Not Found"}
	}
	return &dataset, nil
}

func page(feeds []mobilitydata.Feed, offset, limit int) []mobilitydata.Feed {
	if offset >= len(feeds) {
		return nil
	}
	end := offset + limit
	if end > len(feeds) {
		end = len(feeds)
	}
	return feeds[offset:end]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func singleAgencyCatalog(def catalog.AgencyDefinition) *catalog.Catalog {
	return &catalog.Catalog{
		Region: catalog.RegionConfig{
			Subdivisions: []string{"Virginia"},
			CountryCodes: []string{"US"},
		},
		Agencies: []catalog.AgencyDefinition{def},
	}
}

func TestAggregate_DeclaredFeedYieldsHealthyAgency(t *testing.T) {
	cat := singleAgencyCatalog(catalog.AgencyDefinition{
		ID: "metro", Name: "Metro", Slug: "metro",
		GtfsFeedIDs: []string{"X-1"},
	})
	client := &fakeClient{
		gtfsByID: map[string]mobilitydata.Feed{
			"X-1": {ID: "X-1", DataType: mobilitydata.DataTypeGTFS, Provider: "Metro", Status: mobilitydata.StatusActive},
		},
	}

	agencies, err := New(client, cat, WithLogger(quietLogger())).Aggregate(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agencies) != 1 {
		t.Fatalf("expected 1 agency, got %d", len(agencies))
	}
	agency := agencies[0]
	if len(agency.Feeds) != 1 || agency.Feeds[0].ID != "X-1" {
		t.Fatalf("expected one feed X-1, got %+v", agency.Feeds)
	}
	if agency.OverallStatus != StatusHealthy {
		t.Errorf("expected healthy, got %s", agency.OverallStatus)
	}
}

func TestAggregate_RegionScanMatchesByProviderAlias(t *testing.T) {
	cat := singleAgencyCatalog(catalog.AgencyDefinition{
		ID: "metro", Name: "Metro", Slug: "metro",
		Providers: []string{"Metro Co"},
	})
	client := &fakeClient{
		gtfsLists: map[string][]mobilitydata.Feed{
			"US": {{ID: "mdb-7", DataType: mobilitydata.DataTypeGTFS, Provider: "Metro Co Transit", Status: mobilitydata.StatusDevelopment}},
		},
	}

	agencies, err := New(client, cat, WithLogger(quietLogger())).Aggregate(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agencies) != 1 {
		t.Fatalf("expected 1 agency, got %d", len(agencies))
	}
	if len(agencies[0].Feeds) != 1 || agencies[0].Feeds[0].ID != "mdb-7" {
		t.Fatalf("expected feed mdb-7 matched by alias, got %+v", agencies[0].Feeds)
	}
	if agencies[0].OverallStatus != StatusIssues {
		t.Errorf("development feed should yield issues, got %s", agencies[0].OverallStatus)
	}
}

func TestAggregate_DeduplicatesDeclaredAndRegionalFeeds(t *testing.T) {
	declared := mobilitydata.Feed{ID: "X-1", DataType: mobilitydata.DataTypeGTFS, Provider: "Metro", Status: mobilitydata.StatusActive}
	cat := singleAgencyCatalog(catalog.AgencyDefinition{
		ID: "metro", Name: "Metro", Slug: "metro",
		GtfsFeedIDs: []string{"X-1"},
		Providers:   []string{"Metro"},
	})
	client := &fakeClient{
		gtfsByID: map[string]mobilitydata.Feed{"X-1": declared},
		// The region scan returns the same feed again.
		gtfsLists: map[string][]mobilitydata.Feed{"US": {declared}},
	}

	agencies, err := New(client, cat, WithLogger(quietLogger())).Aggregate(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agencies) != 1 || len(agencies[0].Feeds) != 1 {
		t.Fatalf("feed fetched by id and by region should appear exactly once, got %+v", agencies)
	}
}

func TestAggregate_PagesUntilShortPage(t *testing.T) {
	var feeds []mobilitydata.Feed
	for i := 0; i < regionPageSize+5; i++ {
		feeds = append(feeds, mobilitydata.Feed{
			ID:        fmt.Sprintf("mdb-%d", i),
			DataType:  mobilitydata.DataTypeGTFS,
			Provider:  "Metro Co Transit",
			Status:    mobilitydata.StatusActive,
			Locations: []mobilitydata.Location{{CountryCode: "US", SubdivisionName: "Virginia"}},
		})
	}
	cat := singleAgencyCatalog(catalog.AgencyDefinition{
		ID: "metro", Name: "Metro", Slug: "metro",
		Providers: []string{"Metro Co"},
	})
	client := &fakeClient{gtfsLists: map[string][]mobilitydata.Feed{"US": feeds}}

	agencies, err := New(client, cat, WithLogger(quietLogger())).Aggregate(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agencies) != 1 {
		t.Fatalf("expected 1 agency, got %d", len(agencies))
	}
	if len(agencies[0].Feeds) != regionPageSize+5 {
		t.Errorf("scan should cross the page boundary, got %d feeds", len(agencies[0].Feeds))
	}
}

func TestAggregate_ContinuesPastFailedByIDLookup(t *testing.T) {
	cat := singleAgencyCatalog(catalog.AgencyDefinition{
		ID: "metro", Name: "Metro", Slug: "metro",
		GtfsFeedIDs: []string{"broken", "X-1"},
	})
	client := &fakeClient{
		gtfsByID: map[string]mobilitydata.Feed{
			"X-1": {ID: "X-1", DataType: mobilitydata.DataTypeGTFS, Provider: "Metro", Status: mobilitydata.StatusActive},
		},
		byIDErr: map[string]error{"broken": errors.New("boom")},
	}

	agencies, err := New(client, cat, WithLogger(quietLogger())).Aggregate(context.Background())

	if err != nil {
		t.Fatalf("one failing feed id must not abort the aggregation: %v", err)
	}
	if len(agencies) != 1 || len(agencies[0].Feeds) != 1 || agencies[0].Feeds[0].ID != "X-1" {
		t.Fatalf("expected the surviving feed only, got %+v", agencies)
	}
}

func TestAggregate_RegionScanFailureDoesNotAbortRun(t *testing.T) {
	cat := singleAgencyCatalog(catalog.AgencyDefinition{
		ID: "metro", Name: "Metro", Slug: "metro",
		GtfsFeedIDs: []string{"X-1"},
	})
	client := &fakeClient{
		gtfsByID: map[string]mobilitydata.Feed{
			"X-1": {ID: "X-1", DataType: mobilitydata.DataTypeGTFS, Provider: "Metro", Status: mobilitydata.StatusActive},
		},
		gtfsListErr: map[string]error{"US": errors.New("upstream down")},
	}

	agencies, err := New(client, cat, WithLogger(quietLogger())).Aggregate(context.Background())

	if err != nil {
		t.Fatalf("a failing region scan must not abort the aggregation: %v", err)
	}
	if len(agencies) != 1 || len(agencies[0].Feeds) != 1 {
		t.Fatalf("declared feeds should survive a failed region scan, got %+v", agencies)
	}
}

func TestAggregate_TokenExchangeFailureAbortsRun(t *testing.T) {
	authErr := &mobilitydata.AuthError{Status: "401 Unauthorized"}
	cat := singleAgencyCatalog(catalog.AgencyDefinition{
		ID: "metro", Name: "Metro", Slug: "metro",
		GtfsFeedIDs: []string{"X-1"},
	})
	client := &fakeClient{
		byIDErr: map[string]error{"X-1": authErr},
	}

	_, err := New(client, cat, WithLogger(quietLogger())).Aggregate(context.Background())

	var got *mobilitydata.AuthError
	if !errors.As(err, &got) {
		t.Fatalf("a failed token exchange must abort the run, got %v", err)
	}
}

func TestAggregate_FreshnessPassOverwritesValidation(t *testing.T) {
	cat := singleAgencyCatalog(catalog.AgencyDefinition{
		ID: "metro", Name: "Metro", Slug: "metro",
		GtfsFeedIDs: []string{"X-1"},
	})
	client := &fakeClient{
		gtfsByID: map[string]mobilitydata.Feed{
			"X-1": {
				ID: "X-1", DataType: mobilitydata.DataTypeGTFS, Provider: "Metro", Status: mobilitydata.StatusActive,
				LatestDataset: &mobilitydata.LatestDataset{
					ID:               "X-1-202401",
					HostedURL:        "https://files.example.com/X-1.zip",
					ValidationReport: &mobilitydata.ValidationReport{TotalError: 9},
				},
			},
		},
		datasets: map[string]mobilitydata.Dataset{
			"X-1-202401": {ID: "X-1-202401", FeedID: "X-1", ValidationReport: &mobilitydata.ValidationReport{TotalError: 1}},
		},
	}

	agencies, err := New(client, cat, WithLogger(quietLogger())).Aggregate(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := agencies[0].Feeds[0].Validation
	if got == nil || got.TotalError != 1 {
		t.Errorf("freshness pass should overwrite the validation summary, got %+v", got)
	}
}

func TestAggregate_FreshnessFailureKeepsOriginalValidation(t *testing.T) {
	cat := singleAgencyCatalog(catalog.AgencyDefinition{
		ID: "metro", Name: "Metro", Slug: "metro",
		GtfsFeedIDs: []string{"X-1"},
	})
	client := &fakeClient{
		gtfsByID: map[string]mobilitydata.Feed{
			"X-1": {
				ID: "X-1", DataType: mobilitydata.DataTypeGTFS, Provider: "Metro", Status: mobilitydata.StatusActive,
				LatestDataset: &mobilitydata.LatestDataset{
					ID:               "X-1-202401",
					ValidationReport: &mobilitydata.ValidationReport{TotalError: 9},
				},
			},
		},
		datasetErr: map[string]error{"X-1-202401": errors.New("boom")},
	}

	agencies, err := New(client, cat, WithLogger(quietLogger())).Aggregate(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := agencies[0].Feeds[0].Validation
	if got == nil || got.TotalError != 9 {
		t.Errorf("failed refresh should leave the original validation summary, got %+v", got)
	}
	if client.datasetCalls != 1 {
		t.Errorf("expected exactly one dataset lookup, got %d", client.datasetCalls)
	}
}

func TestAggregate_DeprecatedFeedsVisibleButNotCounted(t *testing.T) {
	cat := singleAgencyCatalog(catalog.AgencyDefinition{
		ID: "metro", Name: "Metro", Slug: "metro",
		GtfsFeedIDs: []string{"X-1", "X-old"},
	})
	client := &fakeClient{
		gtfsByID: map[string]mobilitydata.Feed{
			"X-1":   {ID: "X-1", DataType: mobilitydata.DataTypeGTFS, Provider: "Metro", Status: mobilitydata.StatusActive},
			"X-old": {ID: "X-old", DataType: mobilitydata.DataTypeGTFS, Provider: "Metro", Status: mobilitydata.StatusDeprecated},
		},
	}

	agencies, err := New(client, cat, WithLogger(quietLogger())).Aggregate(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	agency := agencies[0]
	if len(agency.Feeds) != 2 {
		t.Fatalf("deprecated feed should remain in the feed list, got %+v", agency.Feeds)
	}
	if agency.OverallStatus != StatusHealthy {
		t.Errorf("status should be computed from the non-deprecated subset, got %s", agency.OverallStatus)
	}
}

func TestAggregate_DropsAgenciesWithoutFeeds(t *testing.T) {
	cat := &catalog.Catalog{
		Region: catalog.RegionConfig{Subdivisions: []string{"Virginia"}, CountryCodes: []string{"US"}},
		Agencies: []catalog.AgencyDefinition{
			{ID: "metro", Name: "Metro", Slug: "metro", GtfsFeedIDs: []string{"X-1"}},
			{ID: "ghost", Name: "Ghost Lines", Slug: "ghost", Providers: []string{"Ghost Lines"}},
		},
	}
	client := &fakeClient{
		gtfsByID: map[string]mobilitydata.Feed{
			"X-1": {ID: "X-1", DataType: mobilitydata.DataTypeGTFS, Provider: "Metro", Status: mobilitydata.StatusActive},
		},
	}

	agencies, err := New(client, cat, WithLogger(quietLogger())).Aggregate(context.Background())

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(agencies) != 1 || agencies[0].ID != "metro" {
		t.Fatalf("agency with no matched feeds should be dropped, got %+v", agencies)
	}
}

func TestAggregate_BikeshareRecordAbortsRun(t *testing.T) {
	cat := singleAgencyCatalog(catalog.AgencyDefinition{
		ID: "metro", Name: "Metro", Slug: "metro",
		GtfsFeedIDs: []string{"X-1"},
	})
	client := &fakeClient{
		gtfsByID: map[string]mobilitydata.Feed{
			"X-1": {ID: "X-1", DataType: mobilitydata.DataTypeGBFS, Provider: "Capital Bikeshare"},
		},
	}

	_, err := New(client, cat, WithLogger(quietLogger())).Aggregate(context.Background())

	if !errors.Is(err, ErrUnsupportedFeedType) {
		t.Fatalf("a bikeshare record reaching the normalizer must fail the run, got %v", err)
	}
}

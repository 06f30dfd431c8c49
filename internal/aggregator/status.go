package aggregator

import "github.com/dmvtransit/transitboard/internal/mobilitydata"

// DetermineAgencyStatus derives the health badge for a set of feeds, in
// priority order: any inactive feed is an error; otherwise any feed still in
// development means issues; all feeds active is healthy; anything else
// (including an all-deprecated set) is issues.
func DetermineAgencyStatus(feeds []ProcessedFeed) Status {
	if len(feeds) == 0 {
		return StatusUnknown
	}

	allActive := true
	allDeprecated := true
	hasDevelopment := false
	for _, feed := range feeds {
		switch feed.Status {
		case mobilitydata.StatusInactive:
			return StatusError
		case mobilitydata.StatusDevelopment:
			hasDevelopment = true
		}
		if feed.Status != mobilitydata.StatusActive {
			allActive = false
		}
		if feed.Status != mobilitydata.StatusDeprecated {
			allDeprecated = false
		}
	}

	if hasDevelopment {
		return StatusIssues
	}
	if allActive {
		return StatusHealthy
	}
	if allDeprecated {
		return StatusIssues
	}
	return StatusIssues
}

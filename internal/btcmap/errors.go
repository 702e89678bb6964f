package btcmap

import "errors"

// Fatal run errors. Causes are wrapped, match with errors.Is.
var (
	// ErrCommunityNotFound covers both a failed lookup and a missing community.
	ErrCommunityNotFound = errors.New("community not found")
	ErrNoBoundaryData    = errors.New("community has no boundary data")
	ErrFeedFetch         = errors.New("event feed fetch failed")
	ErrElementFetch      = errors.New("element fetch failed")
)

package query

import "tenderwatch/internal/api"

const (
	healthKey        = "health"
	scraperStatusKey = "scraper-status"
	tenderKeyPrefix  = "tender/"
	tenderListPrefix = "tenders?"
)

func tenderKey(id string) string {
	return tenderKeyPrefix + id
}

// tenderListKey folds every list parameter into the key, so a new search
// text or page is a distinct cache entry.
func tenderListKey(p api.ListParams) string {
	return tenderListPrefix + p.Values().Encode()
}

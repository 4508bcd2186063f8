package media

import (
	"context"
	"fmt"

	"github.com/hbomb79/Siphon/pkg/logger"
	"golang.org/x/time/rate"
)

var log = logger.Get("Formats")

// Enumerator is the format extraction adapter: it throttles outbound calls
// to the extractor, classifies failures and normalizes the result.
type Enumerator struct {
	extractor Extractor
	throttle  *rate.Limiter
}

// NewEnumerator wraps the extractor. A nil throttle disables outbound
// throttling.
func NewEnumerator(extractor Extractor, throttle *rate.Limiter) *Enumerator {
	return &Enumerator{extractor: extractor, throttle: throttle}
}

// Enumerate fetches and normalizes the metadata for url. The URL is assumed
// to have been validated already. This call blocks for the duration of the
// extractor call and should be run off the request goroutine.
func (enumerator *Enumerator) Enumerate(ctx context.Context, url string) (*VideoMetadata, error) {
	if enumerator.throttle != nil {
		if err := enumerator.throttle.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for outbound extractor slot: %w", err)
		}
	}

	log.Emit(logger.DEBUG, "Fetching formats for URL: %s\n", url)
	raw, err := enumerator.extractor.Extract(ctx, url)
	if err != nil {
		log.Emit(logger.WARNING, "Extraction for %s failed: %v\n", url, err)
		return nil, Classify(err)
	}
	if raw == nil {
		return nil, fmt.Errorf("extractor returned no information for %s", url)
	}

	metadata := Normalize(raw)
	log.Emit(logger.DEBUG, "Extracted %d usable formats (of %d) for %s\n", len(metadata.Formats), len(raw.Formats), metadata.VideoID)
	return metadata, nil
}

// Package domain models building identification: candidates, scoring, and
// the durable building records behind the cache source.
//
// # Identification
//
// A request is a GPS coordinate plus an optional compass heading. Candidates
// come from three kinds of sources: the places provider (point-of-interest
// search within the search radius), the reverse-geocode chain (best-guess
// address at the exact point, used as a fallback when few candidates were
// gathered), and previously persisted building records (source "cache").
// Every candidate gets its distance and bearing from the query point
// computed by the geo package, then a confidence score, then a stable
// descending sort.
//
// # Confidence scoring
//
// The score is a weighted sum of four components, scaled to [0,100] and
// rounded to two decimals:
//
//	Distance (0.40):  1.0 within 10 m, exp(-0.05 * (d - 10)) beyond.
//	                  The closest candidate is usually the correct one.
//	Bearing  (0.30):  1.0 within 15° of the user's heading, 0.0 at 90° or
//	                  more, linear between. Neutral 0.5 when no heading was
//	                  supplied, since bearing only disambiguates when the
//	                  phone knows where it is pointing.
//	Source   (0.20):  fixed reliability per provider: foursquare 1.0,
//	                  mapbox 0.8, nominatim 0.6, cache 0.7. Encodes
//	                  observed data quality differences between providers.
//	Metadata (0.10):  0.6 for a named candidate, +0.4 when a rating is
//	                  present, capped at 1.0. Rewards well-populated records
//	                  over bare coordinate hits.
//
// # Cache keys
//
// Coordinates are rounded before cache keying so near-duplicate queries
// share entries: 5 decimal places (~1 m) for places lookups and identify
// results, 6 places (~0.1 m) for reverse geocoding. The identify-result key
// also includes the heading rounded to a whole degree, since bearingDiff
// depends on the request heading and is never reused across headings, and
// the radius in whole meters.
//
// # Building records
//
// A building record is created the first time a non-cache candidate scores
// above the persistence threshold, and updated in place when the same
// (ExternalID, Source) pair reappears. The upsert is a single atomic
// insert-or-update so concurrent identical saves converge without duplicate
// rows. Records are never deleted by this service; an expiry sweep is the
// store owner's concern.
package domain

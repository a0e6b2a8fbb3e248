package spotify

import (
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

type scoredTrack struct {
	track domain.Track
	score float64
}

var jaroWinkler = metrics.NewJaroWinkler()

// matchScore rates how well a candidate answers q. A query that names the
// artist is compared against "title artist"; otherwise the better of the
// title-only and title+artist comparisons counts.
func matchScore(q searchQuery, candidate domain.Track) float64 {
	title := normalizeText(stripBracketed(candidate.Title))
	artist := normalizeText(stripBracketed(candidate.Artist))
	text := q.text()
	if text == "" || title == "" {
		return 0
	}

	full := title
	if artist != "" {
		full = title + " " + artist
	}
	combinedSim := strutil.Similarity(text, full, jaroWinkler)
	if q.artist != "" {
		return combinedSim
	}
	return max(strutil.Similarity(text, title, jaroWinkler), combinedSim)
}

package spotify

import (
	"testing"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

func TestMatchScore(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		candidate domain.Track
		wantMin   float64
		wantMax   float64
	}{
		{
			name:      "exact title",
			query:     "Blinding Lights",
			candidate: domain.Track{Title: "Blinding Lights", Artist: "The Weeknd"},
			wantMin:   1,
			wantMax:   1,
		},
		{
			name:      "noise tokens ignored",
			query:     "blinding lights",
			candidate: domain.Track{Title: "Blinding Lights (Remastered 2020)", Artist: "The Weeknd"},
			wantMin:   1,
			wantMax:   1,
		},
		{
			name:      "title and artist",
			query:     "blinding lights the weeknd",
			candidate: domain.Track{Title: "Blinding Lights", Artist: "The Weeknd"},
			wantMin:   1,
			wantMax:   1,
		},
		{
			name:      "title by artist",
			query:     "Blinding Lights by The Weeknd",
			candidate: domain.Track{Title: "Blinding Lights", Artist: "The Weeknd"},
			wantMin:   1,
			wantMax:   1,
		},
		{
			name:      "empty query",
			query:     "",
			candidate: domain.Track{Title: "Levitating"},
			wantMin:   0,
			wantMax:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := matchScore(parseSearchQuery(tt.query), tt.candidate)
			if got < tt.wantMin-1e-9 || got > tt.wantMax+1e-9 {
				t.Fatalf("matchScore: got %v, want in [%v, %v]", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestMatchScoreRanksCloserTitleHigher(t *testing.T) {
	query := parseSearchQuery("bohemian rhapsody")
	exact := matchScore(query, domain.Track{Title: "Bohemian Rhapsody", Artist: "Queen"})
	near := matchScore(query, domain.Track{Title: "Bohemian Like You", Artist: "The Dandy Warhols"})
	far := matchScore(query, domain.Track{Title: "Levitating", Artist: "Dua Lipa"})

	if !(exact > near && near > far) {
		t.Fatalf("ranking: exact=%v near=%v far=%v", exact, near, far)
	}
}

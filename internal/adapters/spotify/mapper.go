package spotify

import (
	"strings"

	spotifyapi "github.com/zmb3/spotify/v2"

	"github.com/ewilliams-labs/cadence/internal/core/domain"
)

// mapTrackToDomain converts an API track to a domain track.
func mapTrackToDomain(ft spotifyapi.FullTrack) domain.Track {
	return domain.Track{
		ID:         ft.ID.String(),
		Title:      ft.Name,
		Artist:     joinArtistNames(ft.Artists),
		Album:      ft.Album.Name,
		PreviewURL: ft.PreviewURL,
	}
}

// mapFeaturesToDomain keeps the attributes in domain.FeatureOrder.
func mapFeaturesToDomain(af *spotifyapi.AudioFeatures) domain.FeatureSet {
	return domain.FeatureSet{
		"danceability":     float64(af.Danceability),
		"energy":           float64(af.Energy),
		"loudness":         float64(af.Loudness),
		"speechiness":      float64(af.Speechiness),
		"acousticness":     float64(af.Acousticness),
		"instrumentalness": float64(af.Instrumentalness),
		"liveness":         float64(af.Liveness),
		"valence":          float64(af.Valence),
		"tempo":            float64(af.Tempo),
	}
}

func joinArtistNames(artists []spotifyapi.SimpleArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

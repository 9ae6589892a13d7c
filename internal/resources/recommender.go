package resources

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
)

//go:embed catalog.json
var catalogData []byte

// Playlist is a curated YouTube playlist entry.
type Playlist struct {
	Title           string  `json:"title"`
	TitleAr         string  `json:"title_ar,omitempty"`
	PlaylistID      string  `json:"playlist_id"`
	ChannelName     string  `json:"channel_name"`
	Language        string  `json:"language"`
	VideoCount      int     `json:"video_count,omitempty"`
	DurationMinutes int     `json:"duration_minutes,omitempty"`
	QualityScore    float64 `json:"quality_score"`
	Difficulty      string  `json:"difficulty"`
}

// URL returns the playlist's YouTube URL.
func (p Playlist) URL() string {
	return "https://www.youtube.com/playlist?list=" + p.PlaylistID
}

// Channel is a curated YouTube channel entry.
type Channel struct {
	ChannelName  string   `json:"channel_name"`
	ChannelID    string   `json:"channel_id"`
	Language     string   `json:"language"`
	QualityScore float64  `json:"quality_score"`
	Description  string   `json:"description,omitempty"`
	Topics       []string `json:"topics,omitempty"`
}

// Book is a curated book entry.
type Book struct {
	Title        string  `json:"title"`
	TitleAr      string  `json:"title_ar,omitempty"`
	Author       string  `json:"author"`
	Language     string  `json:"language"`
	IsFree       bool    `json:"is_free"`
	URL          string  `json:"url,omitempty"`
	Difficulty   string  `json:"difficulty"`
	QualityScore float64 `json:"quality_score"`
	PageCount    int     `json:"page_count,omitempty"`
	Description  string  `json:"description,omitempty"`
}

type catalog struct {
	Channels  map[string][]Channel  `json:"channels"`
	Playlists map[string][]Playlist `json:"playlists"`
	Books     map[string][]Book     `json:"books"`
}

// Recommendation groups curated resources for one subject.
type Recommendation struct {
	Playlists []Playlist `json:"youtube_playlists"`
	Channels  []Channel  `json:"youtube_channels"`
	Books     []Book     `json:"books"`
	FreeBooks []Book     `json:"free_books"`
}

// Recommender serves the curated multilingual catalog, sorted by the
// learner's language preference first, then quality.
type Recommender struct {
	catalog catalog
}

func NewRecommender() (*Recommender, error) {
	var c catalog
	if err := json.Unmarshal(catalogData, &c); err != nil {
		return nil, fmt.Errorf("parse resource catalog: %w", err)
	}
	return &Recommender{catalog: c}, nil
}

// Arabic content ranks ahead of other languages when the learner's own
// language has no match, reflecting the primary audience.
func languagePriority(language, preferred string) int {
	if language == preferred {
		return 0
	}
	switch language {
	case "ar":
		return 1
	case "en":
		return 2
	case "fr":
		return 3
	default:
		return 99
	}
}

// Playlists returns up to limit curated playlists for a subject.
func (r *Recommender) Playlists(subject, language string, limit int) []Playlist {
	items := append([]Playlist(nil), r.catalog.Playlists[subject]...)

	sort.SliceStable(items, func(i, j int) bool {
		pi, pj := languagePriority(items[i].Language, language), languagePriority(items[j].Language, language)
		if pi != pj {
			return pi < pj
		}
		return items[i].QualityScore > items[j].QualityScore
	})

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// Channels returns curated channels covering the subject.
func (r *Recommender) Channels(subject string, limit int) []Channel {
	var items []Channel
	for _, group := range r.catalog.Channels {
		for _, ch := range group {
			for _, topic := range ch.Topics {
				if topic == subject {
					items = append(items, ch)
					break
				}
			}
		}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].QualityScore > items[j].QualityScore })

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// Books returns curated books for a subject, optionally free only.
func (r *Recommender) Books(subject, language string, freeOnly bool, limit int) []Book {
	var items []Book
	for _, b := range r.catalog.Books[subject] {
		if freeOnly && !b.IsFree {
			continue
		}
		items = append(items, b)
	}

	sort.SliceStable(items, func(i, j int) bool {
		pi, pj := languagePriority(items[i].Language, language), languagePriority(items[j].Language, language)
		if pi != pj {
			return pi < pj
		}
		return items[i].QualityScore > items[j].QualityScore
	})

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// ForSubject bundles every curated resource type for one subject.
func (r *Recommender) ForSubject(subject, language string) Recommendation {
	return Recommendation{
		Playlists: r.Playlists(subject, language, 5),
		Channels:  r.Channels(subject, 3),
		Books:     r.Books(subject, language, false, 5),
		FreeBooks: r.Books(subject, language, true, 3),
	}
}

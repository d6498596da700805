package source

import "html"

// VideoRecord is one playable short video. Immutable once created; identity
// is ID, and two records with the same ID are the same video.
type VideoRecord struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Channel    string `json:"channel"`
	Thumbnail  string `json:"thumbnail,omitempty"`
	CategoryID string `json:"category_id"`
}

// searchResponse is the mirror protocol's search document
type searchResponse struct {
	Items         []searchItem `json:"items"`
	NextPageToken string       `json:"nextPageToken"`
}

// searchItem is one raw result row
type searchItem struct {
	ID      itemID      `json:"id"`
	Snippet itemSnippet `json:"snippet"`
}

type itemID struct {
	VideoID string `json:"videoId"`
}

type itemSnippet struct {
	Title           string     `json:"title"`
	ChannelTitle    string     `json:"channelTitle"`
	Thumbnails      thumbnails `json:"thumbnails"`
	ShortForm       bool       `json:"shortForm"`
	DurationSeconds int        `json:"durationSeconds"`
}

type thumbnails struct {
	High    thumbnail `json:"high"`
	Medium  thumbnail `json:"medium"`
	Default thumbnail `json:"default"`
}

type thumbnail struct {
	URL string `json:"url"`
}

// maxShortSeconds is the duration cutoff for short-form classification
const maxShortSeconds = 4 * 60

// usable reports whether a raw result can become a VideoRecord: it must
// expose a video id and be classified short-form
func (it searchItem) usable() bool {
	if it.ID.VideoID == "" {
		return false
	}
	if it.Snippet.ShortForm {
		return true
	}
	return it.Snippet.DurationSeconds > 0 && it.Snippet.DurationSeconds <= maxShortSeconds
}

// toRecord maps a raw result to a VideoRecord. Titles arrive HTML-escaped
// from the search backend.
func (it searchItem) toRecord(categoryID string) VideoRecord {
	thumb := it.Snippet.Thumbnails.High.URL
	if thumb == "" {
		thumb = it.Snippet.Thumbnails.Medium.URL
	}
	if thumb == "" {
		thumb = it.Snippet.Thumbnails.Default.URL
	}

	return VideoRecord{
		ID:         it.ID.VideoID,
		Title:      html.UnescapeString(it.Snippet.Title),
		Channel:    it.Snippet.ChannelTitle,
		Thumbnail:  thumb,
		CategoryID: categoryID,
	}
}

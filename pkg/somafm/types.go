package somafm

// Playlist is one encoding of a channel's stream.
type Playlist struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Quality string `json:"quality"`
}

// Channel is a directory entry as published by SomaFM.
type Channel struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DJ          string     `json:"dj"`
	Genre       string     `json:"genre"`
	Image       string     `json:"image"`
	LargeImage  string     `json:"largeimage"`
	Listeners   string     `json:"listeners"`
	LastPlaying string     `json:"lastPlaying"`
	Playlists   []Playlist `json:"playlists"`
}

// Station is a channel with its stream resolved.
type Station struct {
	Channel
	StreamURL string
}

type channelList struct {
	Channels []Channel `json:"channels"`
}

// Package somafm provides a client for the SomaFM station directory.
//
// # Overview
//
// SomaFM publishes its channel list as JSON. Each channel carries several
// playlists in PLS format, one per codec and quality. This package fetches
// the directory, picks the best MP3 playlist for each channel and resolves
// it to a direct stream URL.
//
// # Quick Start
//
//	client := somafm.NewClient(somafm.Config{})
//
//	stations, err := client.Stations(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, st := range stations {
//	    fmt.Println(st.ID, st.StreamURL)
//	}
//
// # Error Handling
//
// HTTP failures are reported as *Error carrying the status code:
//
//	var apiErr *somafm.Error
//	if errors.As(err, &apiErr) && apiErr.Temporary() {
//	    // Retry later
//	}
//
// Channels whose playlist cannot be resolved are skipped by Stations and
// reported through the optional Logger.
//
// # Configuration
//
// The base URL and HTTP client can be replaced, which is how the tests
// point the client at an httptest server:
//
//	client := somafm.NewClient(somafm.Config{
//	    BaseURL:    server.URL + "/channels.json",
//	    HTTPClient: &http.Client{Timeout: 10 * time.Second},
//	    Logger:     myLogger,
//	})
package somafm

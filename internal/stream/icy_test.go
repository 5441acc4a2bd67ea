package stream

import (
	"bytes"
	"io"
	"testing"
)

// icyPayload interleaves audio chunks of metaint bytes with metadata
// blocks. An empty title produces a zero-length block.
func icyPayload(metaint int, audio []byte, titles ...string) []byte {
	var buf bytes.Buffer
	for i := 0; len(audio) > 0; i++ {
		n := min(metaint, len(audio))
		buf.Write(audio[:n])
		audio = audio[n:]
		if n < metaint {
			break
		}

		title := ""
		if i < len(titles) {
			title = titles[i]
		}
		if title == "" {
			buf.WriteByte(0)
			continue
		}
		meta := []byte("StreamTitle='" + title + "';")
		blocks := (len(meta) + 15) / 16
		buf.WriteByte(byte(blocks))
		buf.Write(meta)
		buf.Write(make([]byte, blocks*16-len(meta)))
	}
	return buf.Bytes()
}

func TestICYReaderStripsMetadata(t *testing.T) {
	audio := []byte("0123456789abcdefghij")
	payload := icyPayload(8, audio, "Artist - Song", "", "Other - Tune")

	var titles []string
	r := NewICYReader(bytes.NewReader(payload), 8, func(title string) {
		titles = append(titles, title)
	})

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if !bytes.Equal(got, audio) {
		t.Errorf("audio = %q, want %q", got, audio)
	}

	want := []string{"Artist - Song"}
	if len(titles) != len(want) {
		t.Fatalf("titles = %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Errorf("titles[%d] = %q, want %q", i, titles[i], want[i])
		}
	}
}

func TestICYReaderDisabled(t *testing.T) {
	src := bytes.NewReader([]byte("raw"))
	if r := NewICYReader(src, 0, nil); r != io.Reader(src) {
		t.Error("expected metaint 0 to return the source reader")
	}
}

func TestParseStreamTitle(t *testing.T) {
	tests := []struct {
		name   string
		meta   string
		want   string
		wantOK bool
	}{
		{"standard", "StreamTitle='Boards of Canada - Roygbiv';StreamUrl='';", "Boards of Canada - Roygbiv", true},
		{"apostrophe in title", "StreamTitle='Don't Stop';", "Don't Stop", true},
		{"no terminator", "StreamTitle='Unterminated'", "Unterminated", true},
		{"empty title", "StreamTitle='';", "", false},
		{"missing key", "StreamUrl='http://example.com';", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseStreamTitle(tt.meta)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("parseStreamTitle(%q) = (%q, %v), want (%q, %v)", tt.meta, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestParseBitrate(t *testing.T) {
	tests := []struct {
		header string
		want   int
	}{
		{"128", 128},
		{"256,256", 256},
		{" 64 ", 64},
		{"", DefaultBitrate},
		{"fast", DefaultBitrate},
		{"-1", DefaultBitrate},
	}

	for _, tt := range tests {
		if got := parseBitrate(tt.header); got != tt.want {
			t.Errorf("parseBitrate(%q) = %d, want %d", tt.header, got, tt.want)
		}
	}
}

func TestPrefetchBytes(t *testing.T) {
	tests := []struct {
		bitrate, seconds, want int
	}{
		{128, 5, 81920},
		{256, 5, 163840},
		{128, 10, 163840},
		{64, 1, 8192},
	}

	for _, tt := range tests {
		if got := PrefetchBytes(tt.bitrate, tt.seconds); got != tt.want {
			t.Errorf("PrefetchBytes(%d, %d) = %d, want %d", tt.bitrate, tt.seconds, got, tt.want)
		}
	}
}

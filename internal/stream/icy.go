package stream

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DefaultBitrate is assumed when a server omits icy-br (kbps)
const DefaultBitrate = 128

// icyReader strips SHOUTcast/Icecast metadata blocks from an audio stream.
// Every metaint audio bytes the server inserts one length byte (in units of
// 16) followed by that many bytes of metadata.
type icyReader struct {
	r         io.Reader
	metaint   int
	remaining int
	onTitle   func(string)
}

// NewICYReader wraps r so that reads return audio bytes only. onTitle is
// called with each non-empty StreamTitle. A metaint of zero disables
// stripping.
func NewICYReader(r io.Reader, metaint int, onTitle func(string)) io.Reader {
	if metaint <= 0 {
		return r
	}
	return &icyReader{
		r:         r,
		metaint:   metaint,
		remaining: metaint,
		onTitle:   onTitle,
	}
}

func (ir *icyReader) Read(p []byte) (int, error) {
	if ir.remaining == 0 {
		if err := ir.readMetadata(); err != nil {
			return 0, err
		}
		ir.remaining = ir.metaint
	}

	if len(p) > ir.remaining {
		p = p[:ir.remaining]
	}
	n, err := ir.r.Read(p)
	ir.remaining -= n
	return n, err
}

func (ir *icyReader) readMetadata() error {
	var lenByte [1]byte
	if _, err := io.ReadFull(ir.r, lenByte[:]); err != nil {
		return err
	}

	size := int(lenByte[0]) * 16
	if size == 0 {
		return nil
	}

	meta := make([]byte, size)
	if _, err := io.ReadFull(ir.r, meta); err != nil {
		return fmt.Errorf("read icy metadata: %w", err)
	}

	if title, ok := parseStreamTitle(string(bytes.TrimRight(meta, "\x00"))); ok && ir.onTitle != nil {
		ir.onTitle(title)
	}
	return nil
}

// parseStreamTitle extracts the StreamTitle value from an ICY metadata
// block such as "StreamTitle='Artist - Song';StreamUrl='x';".
func parseStreamTitle(meta string) (string, bool) {
	const key = "StreamTitle='"
	start := strings.Index(meta, key)
	if start < 0 {
		return "", false
	}
	rest := meta[start+len(key):]

	end := strings.Index(rest, "';")
	if end < 0 {
		end = strings.LastIndex(rest, "'")
	}
	if end < 0 {
		return "", false
	}

	title := strings.TrimSpace(rest[:end])
	return title, title != ""
}

// parseBitrate reads an icy-br header value. Some servers repeat the value
// ("128,128"); only the first is used.
func parseBitrate(header string) int {
	if header == "" {
		return DefaultBitrate
	}
	first, _, _ := strings.Cut(header, ",")
	br, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil || br <= 0 {
		return DefaultBitrate
	}
	return br
}

// PrefetchBytes returns how many compressed bytes cover the given number of
// seconds at bitrate kbps.
func PrefetchBytes(bitrate, seconds int) int {
	return bitrate / 8 * 1024 * seconds
}

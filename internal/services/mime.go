package services

import (
	"bytes"
	"strings"
)

const defaultImageMime = "image/png"

// resolveImageMime picks the mime type for an uploaded image: a usable
// client hint wins, then magic-byte sniffing, then a png default.
func resolveImageMime(hint string, data []byte) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "image/jpg" {
		hint = "image/jpeg"
	}
	if strings.HasPrefix(hint, "image/") {
		return hint
	}
	if sniffed := sniffImageMime(data); sniffed != "" {
		return sniffed
	}
	return defaultImageMime
}

func sniffImageMime(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png"
	case bytes.HasPrefix(data, []byte("\xff\xd8\xff")):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return "image/gif"
	case bytes.HasPrefix(data, []byte("BM")):
		return "image/bmp"
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return "image/webp"
	}
	return ""
}

package audio

import (
	"mime"
	"strings"
)

// CanonicalMediaType is the media type of normalized recordings
const CanonicalMediaType = "audio/wav"

var canonicalAliases = map[string]bool{
	"audio/wav":      true,
	"audio/x-wav":    true,
	"audio/wave":     true,
	"audio/vnd.wave": true,
}

var extensionMediaTypes = map[string]string{
	"wav":  CanonicalMediaType,
	"webm": "audio/webm",
	"ogg":  "audio/ogg",
	"oga":  "audio/ogg",
	"opus": "audio/ogg",
	"mp3":  "audio/mpeg",
	"m4a":  "audio/mp4",
	"mp4":  "audio/mp4",
	"aac":  "audio/aac",
	"flac": "audio/flac",
}

// baseMediaType strips parameters such as ";codecs=opus" and lowercases the type
func baseMediaType(mediaType string) string {
	if base, _, err := mime.ParseMediaType(mediaType); err == nil {
		return base
	}
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// IsCanonical reports whether mediaType already denotes uncompressed WAV
func IsCanonical(mediaType string) bool {
	return canonicalAliases[baseMediaType(mediaType)]
}

// FallbackExtension picks the file extension for a capture kept in its original
// encoding: "webm" when the type mentions webm, otherwise "ogg".
func FallbackExtension(mediaType string) string {
	if strings.Contains(strings.ToLower(mediaType), "webm") {
		return "webm"
	}
	return "ogg"
}

// MediaTypeForExtension maps a file extension (with or without the dot) to a media type.
// Unknown extensions map to application/octet-stream.
func MediaTypeForExtension(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if mt, ok := extensionMediaTypes[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}

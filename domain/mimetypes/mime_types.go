package mimetypes

import (
	"mime"
	"strings"
)

type MIME string

const (
	Unknown   MIME = "unknown"
	TextPlain MIME = "text/plain"

	ApplicationJSON MIME = "application/json"

	ImagePNG  MIME = "image/png"
	ImageJPEG MIME = "image/jpeg"
	ImageGIF  MIME = "image/gif"
	ImageWEBP MIME = "image/webp"
)

// Matches reports whether a detected content type (possibly carrying parameters) is the expected one.
func Matches(detected string, expected MIME) (MIME, bool) {
	mt, _, err := mime.ParseMediaType(detected)
	if err != nil {
		return Unknown, false
	}
	return expected, mt == string(expected)
}

// FromImageFormat maps the short format of a data URI ("jpg", "png", ...) to its MIME type.
func FromImageFormat(format string) MIME {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpg", "jpeg":
		return ImageJPEG
	case "png":
		return ImagePNG
	case "gif":
		return ImageGIF
	case "webp":
		return ImageWEBP
	default:
		return Unknown
	}
}

// ParseImageFormats turns an accept-list ("jpeg,jpg,png" or "jpeg|jpg|png") into MIME types.
// Unknown formats are skipped and duplicates collapse.
func ParseImageFormats(list string) []MIME {
	var res []MIME
	seen := make(map[MIME]struct{})
	formats := strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == '|' || r == ' ' })
	for _, f := range formats {
		m := FromImageFormat(f)
		if m == Unknown {
			continue
		}
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		res = append(res, m)
	}
	return res
}

package transport

import (
	"strings"

	"github.com/umisama/go-regexpcache"
)

const ContentTypeApplicationJSONRegexp = `^application/([a-zA-Z0-9\.\-]+\+)?json$`

// isJSONContentType matches the media type, parameters, e.g. charset, are ignored.
func isJSONContentType(contentType string) bool {
	mediaType, _, _ := strings.Cut(contentType, ";")
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	return regexpcache.MustCompile(ContentTypeApplicationJSONRegexp).MatchString(mediaType)
}

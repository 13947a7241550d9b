package utils

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NowMillis is the exchange timestamp format, milliseconds since epoch.
func NowMillis() int64 {
	return time.Now().UnixNano() / int64(time.Millisecond)
}

// CanonicalQuery joins the first value of every key as k=v in ascending key order, values are not escaped.
func CanonicalQuery(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(values.Get(k))
	}
	return b.String()
}

func CopyValues(values url.Values) url.Values {
	dst := make(url.Values, len(values))
	for k, v := range values {
		dst[k] = append([]string(nil), v...)
	}
	return dst
}

func GenerateOrderClientId(prefix string, size int) string {
	uuidStr := strings.Replace(uuid.New().String(), "-", "", -1)
	if prefix == "" {
		prefix = "tgex"
	}
	if size <= len(prefix) || size-len(prefix) > len(uuidStr) {
		size = len(prefix) + len(uuidStr)
	}
	return prefix + uuidStr[0:size-len(prefix)]
}

package event

import (
	"net/url"
	"sort"
	"strings"

	"github.com/tidwall/sjson"
)

// FromForm rebuilds the JSON document of a form-encoded notification so it can
// go through Normalize. Nested keys may use brackets ("sender[user_id]") or
// dots ("sender.user_id"). Repeated keys keep their first value. Values lose
// the same control bytes Sanitize drops from JSON bodies.
func FromForm(values url.Values) []byte {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	doc := []byte("{}")
	for _, k := range keys {
		vs := values[k]
		if len(vs) == 0 {
			continue
		}
		path := formPath(k)
		if path == "" {
			continue
		}
		next, err := sjson.SetBytes(doc, path, string(Sanitize([]byte(vs[0]))))
		if err != nil {
			continue
		}
		doc = next
	}
	return doc
}

var pathEscaper = strings.NewReplacer("*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`)

// formPath maps "a[b][c]" and "a.b.c" to the sjson path "a.b.c"
func formPath(key string) string {
	key = strings.ReplaceAll(key, "]", "")
	key = strings.ReplaceAll(key, "[", ".")
	parts := strings.Split(key, ".")
	out := parts[:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, pathEscaper.Replace(p))
	}
	return strings.Join(out, ".")
}

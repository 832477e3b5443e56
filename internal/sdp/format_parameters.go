package sdp

import (
	"encoding/base64"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// FormatParameters holds the "key=value; ..." pairs of an fmtp attribute.
// Keys are stored in lower case, since RFC 3640 and friends define them as
// case-insensitive.
type FormatParameters map[string]string

// ParseFormatParameters parses an fmtp parameter string. Parameters without a
// value map to "". Whitespace around separators is ignored.
func ParseFormatParameters(s string) FormatParameters {
	p := make(FormatParameters)
	for _, param := range strings.Split(s, ";") {
		param = strings.TrimSpace(param)
		if param == "" {
			continue
		}
		pieces := strings.SplitN(param, "=", 2)
		key := strings.ToLower(strings.TrimSpace(pieces[0]))
		if len(pieces) == 2 {
			p[key] = strings.TrimSpace(pieces[1])
		} else {
			p[key] = ""
		}
	}
	return p
}

// Has reports whether the parameter is present.
func (p FormatParameters) Has(key string) bool {
	_, ok := p[strings.ToLower(key)]
	return ok
}

// Get returns the value of a parameter, or "" if absent.
func (p FormatParameters) Get(key string) string {
	return p[strings.ToLower(key)]
}

// Int returns a decimal integer parameter, or def if it is absent.
func (p FormatParameters) Int(key string, def int) (int, error) {
	v, ok := p[strings.ToLower(key)]
	if !ok {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, &sdpParseError{"format parameter " + key, v, err}
	}
	return n, nil
}

// Base64List decodes a comma-separated list of base64 strings, as used by
// sprop-parameter-sets.
func (p FormatParameters) Base64List(key string) ([][]byte, error) {
	v := p.Get(key)
	if v == "" {
		return nil, nil
	}
	var list [][]byte
	for _, s := range strings.Split(v, ",") {
		b, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
		if err != nil {
			return nil, &sdpParseError{"format parameter " + key, s, err}
		}
		list = append(list, b)
	}
	return list, nil
}

// Marshal format parameters to string, with keys in sorted order.
func (p FormatParameters) Marshal() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	format := make([]string, 0, len(keys))
	for _, k := range keys {
		if p[k] == "" {
			format = append(format, k)
		} else {
			format = append(format, fmt.Sprintf("%s=%s", k, p[k]))
		}
	}
	return strings.Join(format, ";")
}

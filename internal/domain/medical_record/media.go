package medical_record

import (
	"mime"
	"sort"
	"strings"
)

// AcceptedMediaTypes is the file-selection policy. Entries are exact media
// types ("image/png") or a type wildcard ("image/*").
//
// The object store does not re-validate content; a server-side check there is
// still required for correctness.
type AcceptedMediaTypes struct {
	exact     map[string]struct{}
	wildcards map[string]struct{}
}

func NewAcceptedMediaTypes(types ...string) AcceptedMediaTypes {
	a := AcceptedMediaTypes{
		exact:     make(map[string]struct{}),
		wildcards: make(map[string]struct{}),
	}
	for _, t := range types {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if major, ok := strings.CutSuffix(t, "/*"); ok {
			a.wildcards[major] = struct{}{}
			continue
		}
		a.exact[t] = struct{}{}
	}
	return a
}

// DefaultAcceptedMediaTypes accepts the PNG/JPEG family used for scans.
func DefaultAcceptedMediaTypes() AcceptedMediaTypes {
	return NewAcceptedMediaTypes("image/png", "image/jpeg")
}

func (a AcceptedMediaTypes) Accepts(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	if _, ok := a.exact[mt]; ok {
		return true
	}
	major, _, _ := strings.Cut(mt, "/")
	_, ok := a.wildcards[major]
	return ok
}

func (a AcceptedMediaTypes) List() []string {
	out := make([]string, 0, len(a.exact)+len(a.wildcards))
	for t := range a.exact {
		out = append(out, t)
	}
	for major := range a.wildcards {
		out = append(out, major+"/*")
	}
	sort.Strings(out)
	return out
}

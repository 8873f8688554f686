package grammar

import (
	"fmt"
	"strings"

	"llmcascade/internal/pkgerrors"
)

// AllowedSchemes is the closed set of URL schemes FauxURL accepts. Shared
// with the URL-extraction workflow, which reuses this same allowlist when
// validating candidate entities pulled from free text.
var AllowedSchemes = []string{"https", "http"}

// SlugAlphabet is the character set permitted in a FauxURL slug segment.
// Shared with the URL-extraction workflow for the same reason as
// AllowedSchemes.
const SlugAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

const (
	minSlugSegments = 3
	maxSlugSegments = 7
)

// FauxURL constrains output to "scheme://host/" followed by 3..7
// lowercase, hyphen-joined slug segments — a URL-shaped string without
// requiring the host to resolve.
type FauxURL struct {
	Host string
}

func (p FauxURL) Grammar() string {
	schemes := make([]string, len(AllowedSchemes))
	for i, s := range AllowedSchemes {
		schemes[i] = `"` + s + `"`
	}
	return fmt.Sprintf(`root ::= (%s) "://" "%s" "/" slug ("-" slug){%d,%d}
slug ::= [%s]+`, strings.Join(schemes, " | "), p.Host, minSlugSegments-1, maxSlugSegments-1, SlugAlphabet)
}

func (p FauxURL) Parse(text string) (interface{}, error) {
	trimmed := strings.TrimSpace(text)

	var scheme string
	for _, s := range AllowedSchemes {
		if strings.HasPrefix(trimmed, s+"://") {
			scheme = s
			break
		}
	}
	if scheme == "" {
		return nil, fmt.Errorf("%w: url %q has no allowed scheme (want one of %v)", pkgerrors.ErrValidation, trimmed, AllowedSchemes)
	}

	rest := strings.TrimPrefix(trimmed, scheme+"://")
	hostPrefix := p.Host + "/"
	if !strings.HasPrefix(rest, hostPrefix) {
		return nil, fmt.Errorf("%w: url %q does not target host %q", pkgerrors.ErrValidation, trimmed, p.Host)
	}
	slugPart := strings.TrimPrefix(rest, hostPrefix)

	segments := strings.Split(slugPart, "-")
	if len(segments) < minSlugSegments || len(segments) > maxSlugSegments {
		return nil, fmt.Errorf("%w: url %q has %d slug segments, want %d..%d", pkgerrors.ErrValidation, trimmed, len(segments), minSlugSegments, maxSlugSegments)
	}
	for _, seg := range segments {
		if seg == "" || strings.ContainsFunc(seg, func(r rune) bool { return !strings.ContainsRune(SlugAlphabet, r) }) {
			return nil, fmt.Errorf("%w: slug segment %q contains characters outside %q", pkgerrors.ErrValidation, seg, SlugAlphabet)
		}
	}

	return trimmed, nil
}

package ident

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// QuantTag is a closed set of GGUF quantization labels, ordered so that
// longer, more specific tags are matched before their prefixes (e.g.
// "Q4_K_M" before "Q4_K").
var QuantTags = []string{
	"F32", "F16", "BF16",
	"Q8_0", "Q8_1", "Q8_K",
	"Q6_K",
	"Q5_0", "Q5_1", "Q5_K_S", "Q5_K_M", "Q5_K",
	"Q4_0", "Q4_1", "Q4_K_S", "Q4_K_M", "Q4_K",
	"Q3_K_S", "Q3_K_M", "Q3_K_L", "Q3_K",
	"Q2_K",
	"IQ4_NL", "IQ4_XS",
	"IQ3_XXS", "IQ3_XS", "IQ3_S", "IQ3_M",
	"IQ2_XXS", "IQ2_XS", "IQ2_S", "IQ2_M",
	"IQ1_S", "IQ1_M",
}

// delimiterClass matches the delimiters the shard/quant tokenizer treats as
// separators: hyphen, underscore, period, and the Unicode hyphen-like
// punctuation block U+2010-U+2015.
const delimiterClass = "[-_.‐-―]"

var shardSuffixRe = regexp.MustCompile(`(?i)-(\d+)-of-(\d+)$`)

// ShardID is either the sentinel "single" or a 1-based (index, total) pair.
type ShardID struct {
	Single bool
	Index  int
	Total  int
}

func (s ShardID) String() string {
	if s.Single {
		return "single"
	}
	return fmt.Sprintf("(%d of %d)", s.Index, s.Total)
}

// CheckpointFileName is the structured decomposition of a GGUF filename.
type CheckpointFileName struct {
	BaseName      string
	FullModelName string
	QuantTag      string
	Shard         ShardID
}

// ParseCheckpointFileName parses filename, whose extension (case
// insensitive) must be present in allowedExts.
func ParseCheckpointFileName(filename string, allowedExts []string) (*CheckpointFileName, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	matched := false
	for _, a := range allowedExts {
		norm := strings.ToLower(a)
		if !strings.HasPrefix(norm, ".") {
			norm = "." + norm
		}
		if ext == norm {
			matched = true
			break
		}
	}
	if !matched {
		return nil, fmt.Errorf("%w: %q does not have an allowed extension %v", errFilesystem, filename, allowedExts)
	}

	stem := filename[:len(filename)-len(filepath.Ext(filename))]

	shard := ShardID{Single: true}
	if m := shardSuffixRe.FindStringSubmatchIndex(stem); m != nil {
		idx, _ := strconv.Atoi(stem[m[2]:m[3]])
		total, _ := strconv.Atoi(stem[m[4]:m[5]])
		if idx < 1 || total < 1 || idx > total {
			return nil, fmt.Errorf("%w: shard index/total out of range in %q", errFilesystem, filename)
		}
		shard = ShardID{Single: false, Index: idx, Total: total}
		stem = stem[:m[0]]
	}

	fullModelName := stem
	quantTag, baseName := splitQuantTag(stem)

	return &CheckpointFileName{
		BaseName:      baseName,
		FullModelName: fullModelName,
		QuantTag:      quantTag,
		Shard:         shard,
	}, nil
}

// splitQuantTag finds the longest quantization tag that appears as a
// delimiter-bounded suffix segment (or segment sequence) of stem, and
// returns (tag, stem-with-tag-and-its-leading-delimiter-removed).
func splitQuantTag(stem string) (string, string) {
	delimRe := regexp.MustCompile(delimiterClass)

	best := ""
	bestStart := -1
	for _, tag := range QuantTags {
		// Build a pattern matching the tag with its internal '_'
		// generalized to the delimiter class, anchored so it is preceded
		// by a delimiter and followed by end-of-string.
		tagPattern := delimRe.ReplaceAllString(regexp.QuoteMeta(tag), delimiterClass)
		re := regexp.MustCompile(`(?i)` + delimiterClass + `(` + tagPattern + `)$`)
		loc := re.FindStringSubmatchIndex(stem)
		if loc == nil {
			continue
		}
		if len(tag) > len(best) {
			best = tag
			bestStart = loc[0]
		}
	}
	if bestStart < 0 {
		return "", stem
	}
	return strings.ToUpper(best), stem[:bestStart]
}

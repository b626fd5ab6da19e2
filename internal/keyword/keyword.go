// Package keyword implements C1, the keyword extractor: a pure,
// deterministic function from a filename to a token list, a
// deduplicated keyword set, and a coarse type hint. It has no
// external dependencies, the same "pure business logic" posture the
// teacher's domain/usecases package insists on.
package keyword

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/sortai/sortai/internal/model"
)

// defaultStopWords is the configurable stop-word list named in §4.1.
// Callers needing a different list should build an Extractor with
// NewExtractor and override StopWords.
var defaultStopWords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "of": {}, "a": {}, "an": {},
	"copy": {}, "final": {}, "finalfinal": {}, "draft": {}, "new": {},
	"old": {}, "untitled": {}, "v1": {}, "v2": {}, "v3": {}, "version": {},
	"rev": {}, "revised": {}, "tmp": {}, "temp": {},
}

var extensionType = map[string]model.FileType{
	".pdf": model.FileTypeDocument, ".doc": model.FileTypeDocument, ".docx": model.FileTypeDocument,
	".txt": model.FileTypeDocument, ".md": model.FileTypeDocument, ".rtf": model.FileTypeDocument,
	".xls": model.FileTypeDocument, ".xlsx": model.FileTypeDocument, ".ppt": model.FileTypeDocument,
	".pptx": model.FileTypeDocument, ".csv": model.FileTypeDocument, ".pages": model.FileTypeDocument,
	".jpg": model.FileTypeImage, ".jpeg": model.FileTypeImage, ".png": model.FileTypeImage,
	".gif": model.FileTypeImage, ".heic": model.FileTypeImage, ".bmp": model.FileTypeImage,
	".tiff": model.FileTypeImage, ".webp": model.FileTypeImage, ".raw": model.FileTypeImage,
	".mp4": model.FileTypeVideo, ".mov": model.FileTypeVideo, ".avi": model.FileTypeVideo,
	".mkv": model.FileTypeVideo, ".webm": model.FileTypeVideo, ".m4v": model.FileTypeVideo,
	".mp3": model.FileTypeAudio, ".wav": model.FileTypeAudio, ".flac": model.FileTypeAudio,
	".aac": model.FileTypeAudio, ".m4a": model.FileTypeAudio, ".ogg": model.FileTypeAudio,
	".zip": model.FileTypeArchive, ".tar": model.FileTypeArchive, ".gz": model.FileTypeArchive,
	".7z": model.FileTypeArchive, ".rar": model.FileTypeArchive,
}

// Result is the output of extracting keywords from a single filename.
type Result struct {
	Tokens   []string // ordered, lowercased, deduplication-preserving order
	Keywords map[string]struct{}
	Type     model.FileType
}

// Extractor holds configuration for keyword extraction; the zero value
// uses the package defaults.
type Extractor struct {
	StopWords map[string]struct{}
}

// NewExtractor builds an Extractor with the default stop-word list.
func NewExtractor() *Extractor {
	return &Extractor{StopWords: defaultStopWords}
}

func isDelimiter(r rune) bool {
	switch r {
	case ' ', '_', '-', '.', '+', '(', ')', '[', ']':
		return true
	}
	return false
}

// Extract tokenizes a filename deterministically: splits on configured
// delimiters, letter/digit transitions, and camelCase boundaries;
// strips stop words; drops tokens shorter than two characters and
// purely numeric tokens under four digits unless they look like a
// year (1900-2099) or an ISO date fragment.
func (e *Extractor) Extract(filename string) Result {
	ext := strings.ToLower(filepath.Ext(filename))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	raw := splitBoundaries(base)

	stop := e.StopWords
	if stop == nil {
		stop = defaultStopWords
	}

	lowered := make([]string, len(raw))
	for i, t := range raw {
		lowered[i] = strings.ToLower(strings.TrimSpace(t))
	}

	var tokens []string
	seen := map[string]struct{}{}
	keywords := map[string]struct{}{}

	for i, t := range lowered {
		if t == "" {
			continue
		}
		if _, stopped := stop[t]; stopped {
			continue
		}
		if !keepToken(t, lowered, i) {
			continue
		}
		tokens = append(tokens, t)
		if _, dup := seen[t]; !dup {
			seen[t] = struct{}{}
			keywords[t] = struct{}{}
		}
	}

	return Result{
		Tokens:   tokens,
		Keywords: keywords,
		Type:     typeHint(ext),
	}
}

// splitBoundaries splits on configured delimiter runes, letter<->digit
// transitions, and camelCase boundaries (lower->upper).
func splitBoundaries(s string) []string {
	var tokens []string
	var cur strings.Builder
	runes := []rune(s)

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for i, r := range runes {
		if isDelimiter(r) {
			flush()
			continue
		}
		if i > 0 {
			prev := runes[i-1]
			switch {
			case unicode.IsDigit(prev) && unicode.IsLetter(r):
				flush()
			case unicode.IsLetter(prev) && unicode.IsDigit(r):
				flush()
			case unicode.IsLower(prev) && unicode.IsUpper(r):
				flush()
			}
		}
		cur.WriteRune(r)
	}
	flush()
	return tokens
}

// keepToken applies the length and numeric-token filtering rule from
// §4.1: tokens under two characters are dropped; purely numeric tokens
// under four digits are dropped unless they look like a year
// themselves, or the filename's token sequence also contains a
// year-looking token elsewhere (the ISO-date-fragment case, e.g. the
// "06" and "16" in "receipt-2023-06-16" survive because "2023" is
// present in the same split).
func keepToken(t string, all []string, idx int) bool {
	if len(t) < 2 {
		return false
	}
	if !isAllDigits(t) {
		return true
	}
	if len(t) >= 4 {
		return true
	}
	if looksLikeYear(t) {
		return true
	}
	for i, other := range all {
		if i == idx {
			continue
		}
		if looksLikeYear(other) {
			return true
		}
	}
	return false
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// looksLikeYear accepts 4-digit tokens in [1900,2099]; shorter numeric
// tokens never look like a year (keepToken decides whether they survive).
func looksLikeYear(t string) bool {
	if len(t) != 4 {
		return false
	}
	n, err := strconv.Atoi(t)
	if err != nil {
		return false
	}
	return n >= 1900 && n <= 2099
}

func typeHint(ext string) model.FileType {
	if t, ok := extensionType[ext]; ok {
		return t
	}
	return model.FileTypeOther
}

package categorize

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/sortai/sortai/internal/model"
)

// MediaInspector extracts deeper content signals from a file on disk
// (§4.11 Phase 2: "media-inspector port"), the categorization
// equivalent of the teacher's parser.DocumentParser abstraction — a
// port Phase 2 depends on without caring which concrete extractor is
// behind it.
type MediaInspector interface {
	Inspect(ctx context.Context, path string, typ model.FileType) (model.ExtractedSignals, error)
	Supports(typ model.FileType) bool
}

// StubInspector is a minimal inspector that only looks at the
// filename and extension, standing in for the real OCR/text-extraction
// backends the original system would plug in here; it satisfies the
// MediaInspector contract so Phase 2's queueing and routing logic can
// be exercised and tested without a heavyweight content pipeline.
type StubInspector struct{}

// NewStubInspector builds a StubInspector.
func NewStubInspector() StubInspector { return StubInspector{} }

func (StubInspector) Supports(typ model.FileType) bool {
	switch typ {
	case model.FileTypeDocument, model.FileTypeImage, model.FileTypeAudio, model.FileTypeVideo:
		return true
	default:
		return false
	}
}

func (StubInspector) Inspect(ctx context.Context, path string, typ model.FileType) (model.ExtractedSignals, error) {
	base := filepath.Base(path)
	signals := model.ExtractedSignals{
		TextCue: strings.TrimSuffix(base, filepath.Ext(base)),
	}
	switch typ {
	case model.FileTypeDocument:
		signals.WordCount = len(strings.Fields(signals.TextCue))
		signals.PageCount = 1
	case model.FileTypeImage:
		signals.SceneTags = []string{"unclassified"}
	}
	return signals, nil
}

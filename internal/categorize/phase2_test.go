package categorize

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sortai/sortai/internal/llmrouter"
	"github.com/sortai/sortai/internal/model"
	"github.com/sortai/sortai/internal/obs"
)

func TestPhase2Engine_UnsupportedTypeFallsBackToPhase1(t *testing.T) {
	router := llmrouter.New(obs.Noop(), []llmrouter.Provider{llmrouter.NewHeuristicProvider()})
	e := NewPhase2Engine(NewStubInspector(), router, nil, 2)

	phase1 := model.FileAssignment{FileID: "f1", CategoryID: "Other", Confidence: 0.3}
	e.Enqueue(QueueItem{File: model.FileRecord{ID: "f1", Type: model.FileTypeArchive}, Phase1Assignment: phase1})

	results, err := e.Run(context.Background(), time.Unix(1, 0))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, phase1, results[0].Assignment)
}

func TestPhase2Engine_SupportedTypeEscalatesToRouter(t *testing.T) {
	router := llmrouter.New(obs.Noop(), []llmrouter.Provider{llmrouter.NewHeuristicProvider()})
	e := NewPhase2Engine(NewStubInspector(), router, nil, 2)

	e.Enqueue(QueueItem{
		File:                model.FileRecord{ID: "f1", Path: "invoice-march.pdf", Type: model.FileTypeDocument},
		CandidateCategories: []string{"Finance/Invoices", "Photos"},
	})

	results, err := e.Run(context.Background(), time.Unix(1, 0))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.SourcePhase2, results[0].Assignment.Source)
}

func TestPhase2Engine_DrainOrdersByPriorityThenEnqueueTime(t *testing.T) {
	router := llmrouter.New(obs.Noop(), []llmrouter.Provider{llmrouter.NewHeuristicProvider()})
	e := NewPhase2Engine(NewStubInspector(), router, nil, 1)

	e.Enqueue(QueueItem{File: model.FileRecord{ID: "low"}, Priority: 5, EnqueuedAt: time.Unix(1, 0)})
	e.Enqueue(QueueItem{File: model.FileRecord{ID: "high"}, Priority: 1, EnqueuedAt: time.Unix(2, 0)})

	items := e.drain()
	require.Len(t, items, 2)
	assert.Equal(t, "high", items[0].File.ID)
}

func TestPhase2Engine_LenReflectsBacklog(t *testing.T) {
	router := llmrouter.New(obs.Noop(), []llmrouter.Provider{llmrouter.NewHeuristicProvider()})
	e := NewPhase2Engine(NewStubInspector(), router, nil, 1)
	assert.Equal(t, 0, e.Len())
	e.Enqueue(QueueItem{File: model.FileRecord{ID: "f1"}})
	assert.Equal(t, 1, e.Len())
}

func TestStubInspector_SupportsDocumentsAndImages(t *testing.T) {
	inspector := NewStubInspector()
	assert.True(t, inspector.Supports(model.FileTypeDocument))
	assert.True(t, inspector.Supports(model.FileTypeImage))
	assert.False(t, inspector.Supports(model.FileTypeArchive))
}

func TestStubInspector_InspectDerivesTextCueFromFilename(t *testing.T) {
	inspector := NewStubInspector()
	signals, err := inspector.Inspect(context.Background(), "/a/b/invoice march.pdf", model.FileTypeDocument)
	require.NoError(t, err)
	assert.Equal(t, "invoice march", signals.TextCue)
	assert.Equal(t, 2, signals.WordCount)
}

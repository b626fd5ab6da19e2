package keyword

import (
	"testing"

	"github.com/sortai/sortai/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestExtract_SplitsOnDelimitersAndCamelCase(t *testing.T) {
	e := NewExtractor()
	r := e.Extract("Q4_2023_Sales-Report.pdf")

	assert.Equal(t, model.FileTypeDocument, r.Type)
	assert.Contains(t, r.Keywords, "2023")
	assert.Contains(t, r.Keywords, "sales")
	assert.Contains(t, r.Keywords, "report")
	assert.NotContains(t, r.Keywords, "q4") // letter/digit boundary splits "q" and "4"
}

func TestExtract_CamelCaseBoundary(t *testing.T) {
	e := NewExtractor()
	r := e.Extract("tutorialPythonDecorators.mp4")

	assert.Equal(t, model.FileTypeVideo, r.Type)
	assert.Contains(t, r.Keywords, "tutorial")
	assert.Contains(t, r.Keywords, "python")
	assert.Contains(t, r.Keywords, "decorators")
}

func TestExtract_DropsStopWordsAndShortNumerics(t *testing.T) {
	e := NewExtractor()
	r := e.Extract("Final_Copy_of_Budget_v2_99.xlsx")

	assert.Contains(t, r.Keywords, "budget")
	assert.NotContains(t, r.Keywords, "final")
	assert.NotContains(t, r.Keywords, "copy")
	assert.NotContains(t, r.Keywords, "v2")
	assert.NotContains(t, r.Keywords, "99") // 2-digit, and no year token in the filename
}

func TestExtract_YearKept(t *testing.T) {
	e := NewExtractor()
	r := e.Extract("budget_2024.xlsx")
	assert.Contains(t, r.Keywords, "2024")
}

func TestExtract_CompactISODateKeptWhole(t *testing.T) {
	e := NewExtractor()
	r := e.Extract("IMG_20230616_sunset.jpg")

	// "20230616" is a single 8-digit token, kept outright (len >= 4).
	assert.Equal(t, model.FileTypeImage, r.Type)
	assert.Contains(t, r.Keywords, "20230616")
	assert.Contains(t, r.Keywords, "sunset")
}

func TestExtract_HyphenatedISODate(t *testing.T) {
	e := NewExtractor()
	r := e.Extract("receipt-2023-06-16.pdf")

	assert.Contains(t, r.Keywords, "2023")
	assert.Contains(t, r.Keywords, "06") // kept because "2023" is in the same filename
	assert.Contains(t, r.Keywords, "16") // kept for the same reason
	assert.Contains(t, r.Keywords, "receipt")
}

func TestExtract_Deterministic(t *testing.T) {
	e := NewExtractor()
	a := e.Extract("recipe_chocolate_cake.md")
	b := e.Extract("recipe_chocolate_cake.md")
	assert.Equal(t, a.Tokens, b.Tokens)
	assert.Equal(t, a.Type, b.Type)
}

func TestExtract_UnknownExtensionIsOther(t *testing.T) {
	e := NewExtractor()
	r := e.Extract("notes.xyz123abc")
	assert.Equal(t, model.FileTypeOther, r.Type)
}

func TestExtract_EmptyBase(t *testing.T) {
	e := NewExtractor()
	r := e.Extract(".gitignore")
	assert.Empty(t, r.Tokens)
}

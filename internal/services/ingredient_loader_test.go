package services

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDataset = `[
	{"name": "flour", "measurement_unit": "g"},
	{"name": "egg", "measurement_unit": "pc"},
	{"name": "milk", "measurement_unit": "ml"}
]`

func TestParseIngredientsJSON(t *testing.T) {
	t.Run("reports malformed elements individually", func(t *testing.T) {
		input := `[
			{"name": "flour", "measurement_unit": "g"},
			{"name": "salt"},
			{"name": 7, "measurement_unit": "g"},
			"sugar",
			{"name": "milk", "measurement_unit": "ml", "comment": "ignored"}
		]`

		records, failures, err := ParseIngredientsJSON(strings.NewReader(input))
		require.NoError(t, err)

		assert.Equal(t, []IngredientRecord{
			{Name: "flour", MeasurementUnit: "g"},
			{Name: "milk", MeasurementUnit: "ml"},
		}, records)
		require.Len(t, failures, 3)
		assert.Equal(t, RecordFailure{Index: 1, Fields: map[string]string{"measurement_unit": "required"}}, failures[0])
		assert.Equal(t, RecordFailure{Index: 2, Fields: map[string]string{"name": "must be a string"}}, failures[1])
		assert.Equal(t, RecordFailure{Index: 3, Fields: map[string]string{"record": "must be an object"}}, failures[2])
	})

	t.Run("rejects a document that is not an array", func(t *testing.T) {
		_, _, err := ParseIngredientsJSON(strings.NewReader(`{"name": "flour"}`))
		assert.ErrorIs(t, err, ErrMalformedDataset)
	})
}

func TestParseIngredientsCSV(t *testing.T) {
	input := "name,measurement_unit\nflour,g\nlonely\negg, pc\n"

	records, failures, err := ParseIngredientsCSV(strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []IngredientRecord{
		{Name: "flour", MeasurementUnit: "g"},
		{Name: "egg", MeasurementUnit: "pc"},
	}, records)
	require.Len(t, failures, 1)
	assert.Equal(t, 2, failures[0].Index)
}

func TestDetectFormat(t *testing.T) {
	assert.Equal(t, FormatCSV, DetectFormat("data/ingredients.CSV"))
	assert.Equal(t, FormatJSON, DetectFormat("data/ingredients.json"))
	assert.Equal(t, FormatJSON, DetectFormat("data/ingredients"))
}

func TestLoadIngredientsIsIdempotent(t *testing.T) {
	db := testhelpers.SetupSQLiteDB(t)
	loader := NewIngredientLoader(db)
	ctx := context.Background()

	first, err := loader.LoadIngredientsReader(ctx, strings.NewReader(sampleDataset), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Inserted)
	assert.Equal(t, 0, first.Skipped)
	assert.Equal(t, 0, first.Failed)

	second, err := loader.LoadIngredientsReader(ctx, strings.NewReader(sampleDataset), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 3, second.Skipped)

	var count int64
	require.NoError(t, db.Model(&models.Ingredient{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestLoadIngredientsPartialFailure(t *testing.T) {
	db := testhelpers.SetupSQLiteDB(t)
	loader := NewIngredientLoader(db)

	summary, err := loader.LoadIngredients(context.Background(), []IngredientRecord{
		{Name: " flour ", MeasurementUnit: "g"},
		{Name: "", MeasurementUnit: "g"},
		{Name: "flour", MeasurementUnit: "g"},
		{Name: "flour", MeasurementUnit: "kg"},
		{Name: strings.Repeat("x", 129), MeasurementUnit: "g"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 2, summary.Failed)
	require.Len(t, summary.Failures, 2)
	assert.Equal(t, 1, summary.Failures[0].Index)
	assert.Equal(t, "required", summary.Failures[0].Fields["name"])
	assert.Equal(t, 4, summary.Failures[1].Index)
	assert.Contains(t, summary.Failures[1].Fields["name"], "128")

	var stored models.Ingredient
	require.NoError(t, db.Where("name = ? AND measurement_unit = ?", "flour", "g").First(&stored).Error)
}

func TestLoadIngredientsFile(t *testing.T) {
	db := testhelpers.SetupSQLiteDB(t)
	loader := NewIngredientLoader(db)
	dir := t.TempDir()

	csvPath := filepath.Join(dir, "ingredients.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("flour,g\nsalt\nmilk,ml\n"), 0o644))

	summary, err := loader.LoadIngredientsFile(context.Background(), csvPath, "")
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Inserted)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Failures[0].Index)

	_, err = loader.LoadIngredientsFile(context.Background(), filepath.Join(dir, "missing.json"), "")
	assert.Error(t, err)

	_, err = loader.LoadIngredientsFile(context.Background(), csvPath, "xml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/metrics"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Dataset formats accepted by the loader
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

const ingredientBatchSize = 500

var (
	// ErrUnsupportedFormat is returned for dataset formats other than json and csv
	ErrUnsupportedFormat = errors.New("unsupported dataset format")
	// ErrMalformedDataset is returned when the dataset cannot be decoded at all
	ErrMalformedDataset = errors.New("malformed ingredient dataset")
)

// IngredientRecord is one entry of an ingredient dataset
type IngredientRecord struct {
	Name            string `json:"name" validate:"required,max=128"`
	MeasurementUnit string `json:"measurement_unit" validate:"required,max=64"`
}

// RecordFailure describes why the record at Index of the dataset was rejected
type RecordFailure struct {
	Index  int               `json:"index"`
	Fields map[string]string `json:"fields"`
}

// LoadSummary is the outcome of a catalog load. Failures never abort the batch.
type LoadSummary struct {
	Inserted int             `json:"inserted"`
	Skipped  int             `json:"skipped"`
	Failed   int             `json:"failed"`
	Failures []RecordFailure `json:"failures"`
}

// IngredientLoader imports ingredient datasets into the catalog
type IngredientLoader interface {
	// LoadIngredients inserts the records whose (name, measurement unit) pair is not in the catalog yet
	LoadIngredients(ctx context.Context, records []IngredientRecord) (LoadSummary, error)
	// LoadIngredientsReader parses a dataset in the given format and loads it
	LoadIngredientsReader(ctx context.Context, r io.Reader, format string) (LoadSummary, error)
	// LoadIngredientsFile loads a dataset file; an empty format is detected from the extension
	LoadIngredientsFile(ctx context.Context, path, format string) (LoadSummary, error)
}

type ingredientLoader struct {
	db *gorm.DB
}

// NewIngredientLoader creates a new instance of IngredientLoader
func NewIngredientLoader(db *gorm.DB) IngredientLoader {
	return &ingredientLoader{db: db}
}

// dataset keeps the source position of every parsed record so failures point into the input
type dataset struct {
	records   []IngredientRecord
	positions []int
	failures  []RecordFailure
}

func (d *dataset) add(index int, rec IngredientRecord) {
	d.records = append(d.records, rec)
	d.positions = append(d.positions, index)
}

func (d *dataset) fail(index int, fields map[string]string) {
	d.failures = append(d.failures, RecordFailure{Index: index, Fields: fields})
}

// ParseIngredientsJSON reads a JSON array of {name, measurement_unit} objects.
// A document that is not an array is an error; malformed elements are returned as failures.
func ParseIngredientsJSON(r io.Reader) ([]IngredientRecord, []RecordFailure, error) {
	ds, err := parseJSONDataset(r)
	if err != nil {
		return nil, nil, err
	}
	return ds.records, ds.failures, nil
}

// ParseIngredientsCSV reads name,measurement_unit rows. A leading header row is skipped.
func ParseIngredientsCSV(r io.Reader) ([]IngredientRecord, []RecordFailure, error) {
	ds, err := parseCSVDataset(r)
	if err != nil {
		return nil, nil, err
	}
	return ds.records, ds.failures, nil
}

func parseJSONDataset(r io.Reader) (*dataset, error) {
	var raw []any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDataset, err)
	}

	ds := &dataset{}
	for i, elem := range raw {
		obj, ok := elem.(map[string]any)
		if !ok {
			ds.fail(i, map[string]string{"record": "must be an object"})
			continue
		}

		fields := map[string]string{}
		name := stringField(obj, "name", fields)
		unit := stringField(obj, "measurement_unit", fields)
		if len(fields) > 0 {
			ds.fail(i, fields)
			continue
		}
		ds.add(i, IngredientRecord{Name: name, MeasurementUnit: unit})
	}
	return ds, nil
}

func stringField(obj map[string]any, key string, fields map[string]string) string {
	value, present := obj[key]
	if !present || value == nil {
		fields[key] = "required"
		return ""
	}
	s, ok := value.(string)
	if !ok {
		fields[key] = "must be a string"
		return ""
	}
	return s
}

func parseCSVDataset(r io.Reader) (*dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	ds := &dataset{}
	for index := 0; ; index++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrMalformedDataset, err)
		}

		if index == 0 && isCSVHeader(row) {
			continue
		}
		if len(row) < 2 {
			ds.fail(index, map[string]string{"measurement_unit": "required"})
			continue
		}
		ds.add(index, IngredientRecord{Name: row[0], MeasurementUnit: row[1]})
	}
	return ds, nil
}

func isCSVHeader(row []string) bool {
	return len(row) >= 2 &&
		strings.EqualFold(strings.TrimSpace(row[0]), "name") &&
		strings.EqualFold(strings.TrimSpace(row[1]), "measurement_unit")
}

// DetectFormat derives the dataset format from a file name
func DetectFormat(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return FormatCSV
	}
	return FormatJSON
}

func (l *ingredientLoader) LoadIngredients(ctx context.Context, records []IngredientRecord) (LoadSummary, error) {
	return l.load(ctx, &dataset{records: records})
}

func (l *ingredientLoader) LoadIngredientsReader(ctx context.Context, r io.Reader, format string) (LoadSummary, error) {
	var (
		ds  *dataset
		err error
	)
	switch strings.ToLower(format) {
	case FormatJSON:
		ds, err = parseJSONDataset(r)
	case FormatCSV:
		ds, err = parseCSVDataset(r)
	default:
		return LoadSummary{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return LoadSummary{}, err
	}
	return l.load(ctx, ds)
}

func (l *ingredientLoader) LoadIngredientsFile(ctx context.Context, path, format string) (LoadSummary, error) {
	if format == "" {
		format = DetectFormat(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return LoadSummary{}, fmt.Errorf("open ingredient dataset: %w", err)
	}
	defer f.Close()

	return l.LoadIngredientsReader(ctx, f, format)
}

// load validates the records, then inserts the valid ones with ON CONFLICT DO NOTHING in one transaction.
// Rows the database did not insert were already in the catalog and count as skipped.
func (l *ingredientLoader) load(ctx context.Context, ds *dataset) (LoadSummary, error) {
	summary := LoadSummary{Failures: append([]RecordFailure{}, ds.failures...)}

	seen := make(map[[2]string]struct{}, len(ds.records))
	batch := make([]models.Ingredient, 0, len(ds.records))
	for i, rec := range ds.records {
		index := i
		if ds.positions != nil {
			index = ds.positions[i]
		}

		rec.Name = strings.TrimSpace(rec.Name)
		rec.MeasurementUnit = strings.TrimSpace(rec.MeasurementUnit)
		if fields := validateRecord(rec); fields != nil {
			summary.Failures = append(summary.Failures, RecordFailure{Index: index, Fields: fields})
			continue
		}

		key := [2]string{rec.Name, rec.MeasurementUnit}
		if _, dup := seen[key]; dup {
			summary.Skipped++
			continue
		}
		seen[key] = struct{}{}
		batch = append(batch, models.Ingredient{Name: rec.Name, MeasurementUnit: rec.MeasurementUnit})
	}

	if len(batch) > 0 {
		err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}, {Name: "measurement_unit"}},
				DoNothing: true,
			}).CreateInBatches(&batch, ingredientBatchSize)
			if result.Error != nil {
				return result.Error
			}
			summary.Inserted = int(result.RowsAffected)
			return nil
		})
		if err != nil {
			return LoadSummary{}, fmt.Errorf("insert ingredients: %w", err)
		}
		summary.Skipped += len(batch) - summary.Inserted
	}

	sort.SliceStable(summary.Failures, func(i, j int) bool {
		return summary.Failures[i].Index < summary.Failures[j].Index
	})
	summary.Failed = len(summary.Failures)

	metrics.IngredientRecordsTotal.WithLabelValues("inserted").Add(float64(summary.Inserted))
	metrics.IngredientRecordsTotal.WithLabelValues("skipped").Add(float64(summary.Skipped))
	metrics.IngredientRecordsTotal.WithLabelValues("failed").Add(float64(summary.Failed))

	log.WithFields(logrus.Fields{
		"inserted": summary.Inserted,
		"skipped":  summary.Skipped,
		"failed":   summary.Failed,
	}).Info("Ingredient catalog loaded")

	return summary, nil
}

func validateRecord(rec IngredientRecord) map[string]string {
	return validateStruct(rec)
}

package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/metrics"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CartEntry is one ingredient line of a recipe in the cart
type CartEntry struct {
	Name            string
	MeasurementUnit string
	Amount          int
}

// ShoppingItem is the total amount of one ingredient across the aggregated recipes
type ShoppingItem struct {
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int    `json:"amount"`
}

// ShoppingList is the aggregated shopping list. Missing lists requested recipes that no longer exist.
type ShoppingList struct {
	Items   []ShoppingItem `json:"items"`
	Missing []uint         `json:"missing_recipes,omitempty"`
}

// ShoppingService builds shopping lists out of recipes
type ShoppingService interface {
	// AggregateRecipes sums the ingredient amounts of the given recipes
	AggregateRecipes(ctx context.Context, recipeIDs []uint) (ShoppingList, error)
	// AggregateCart sums the ingredient amounts of every recipe in the user's cart
	AggregateCart(ctx context.Context, userID uint) (ShoppingList, error)
}

type shoppingService struct {
	db *gorm.DB
}

// NewShoppingService creates a new instance of ShoppingService
func NewShoppingService(db *gorm.DB) ShoppingService {
	return &shoppingService{db: db}
}

// AggregateEntries groups the entries by (name, measurement unit) and sums their amounts.
// The result is ordered by name, then by unit, and is never nil.
func AggregateEntries(entries []CartEntry) []ShoppingItem {
	type key struct{ name, unit string }

	positions := make(map[key]int, len(entries))
	items := make([]ShoppingItem, 0, len(entries))
	for _, e := range entries {
		k := key{e.Name, e.MeasurementUnit}
		if i, ok := positions[k]; ok {
			items[i].Amount += e.Amount
			continue
		}
		positions[k] = len(items)
		items = append(items, ShoppingItem{Name: e.Name, MeasurementUnit: e.MeasurementUnit, Amount: e.Amount})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].MeasurementUnit < items[j].MeasurementUnit
	})
	return items
}

func (s *shoppingService) AggregateRecipes(ctx context.Context, recipeIDs []uint) (ShoppingList, error) {
	var list ShoppingList
	err := s.readTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		list, err = aggregate(tx, recipeIDs)
		return err
	})
	return list, err
}

func (s *shoppingService) AggregateCart(ctx context.Context, userID uint) (ShoppingList, error) {
	var list ShoppingList
	err := s.readTransaction(ctx, func(tx *gorm.DB) error {
		var recipeIDs []uint
		if err := tx.Model(&models.ShoppingCart{}).Where("user_id = ?", userID).Pluck("recipe_id", &recipeIDs).Error; err != nil {
			return fmt.Errorf("read cart: %w", err)
		}

		var err error
		list, err = aggregate(tx, recipeIDs)
		return err
	})
	return list, err
}

// readTransaction runs fn in a read-only transaction. PostgreSQL gets REPEATABLE READ so the
// cart and the ingredient rows are read from one snapshot; SQLite transactions are serializable.
func (s *shoppingService) readTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	var opts []*sql.TxOptions
	if s.db.Dialector.Name() == "postgres" {
		opts = append(opts, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	}
	return s.db.WithContext(ctx).Transaction(fn, opts...)
}

func aggregate(tx *gorm.DB, recipeIDs []uint) (ShoppingList, error) {
	list := ShoppingList{Items: []ShoppingItem{}}
	ids := uniqueIDs(recipeIDs)
	if len(ids) == 0 {
		return list, nil
	}

	var found []uint
	if err := tx.Model(&models.Recipe{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return list, fmt.Errorf("read recipes: %w", err)
	}
	if missing := difference(ids, found); len(missing) > 0 {
		list.Missing = missing
		metrics.ShoppingConsistencyFaultsTotal.Add(float64(len(missing)))
		log.WithFields(logrus.Fields{
			"missing_recipes": missing,
			"requested":       len(ids),
		}).Warn("Shopping list references recipes that do not exist")
	}
	if len(found) == 0 {
		return list, nil
	}

	var entries []CartEntry
	err := tx.Table("recipe_ingredients").
		Select("ingredients.name AS name, ingredients.measurement_unit AS measurement_unit, recipe_ingredients.amount AS amount").
		Joins("JOIN ingredients ON ingredients.id = recipe_ingredients.ingredient_id").
		Where("recipe_ingredients.recipe_id IN ?", found).
		Scan(&entries).Error
	if err != nil {
		return list, fmt.Errorf("read recipe ingredients: %w", err)
	}

	list.Items = AggregateEntries(entries)
	return list, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// difference returns the ids of want absent from have, in ascending order
func difference(want, have []uint) []uint {
	present := make(map[uint]struct{}, len(have))
	for _, id := range have {
		present[id] = struct{}{}
	}

	var missing []uint
	for _, id := range want {
		if _, ok := present[id]; !ok {
			missing = append(missing, id)
		}
	}
	sort.Slice(missing, func(i, j int) bool { return missing[i] < missing[j] })
	return missing
}

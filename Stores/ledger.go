package Stores

import (
	"context"
	"fmt"
	"time"

	"FalconFreight/Models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GetStock returns the depot balance, creating the singleton row at zero the
// first time it is read.
func (s *Store) GetStock(ctx context.Context) (Models.FuelStock, error) {
	return loadStock(s.db.WithContext(ctx))
}

// AppendEntry writes one ledger entry and, if mutate changed the stock, the
// new stock row. Both happen in one transaction; a concurrent writer that
// bumped the stock version first makes this call fail with a ConflictError.
func (s *Store) AppendEntry(ctx context.Context, entry *Models.FuelEntry, mutate LedgerMutation) (Models.FuelStock, error) {
	var out Models.FuelStock
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stock, err := loadStock(tx)
		if err != nil {
			return err
		}
		before := stock

		if err := mutate(&stock, entry); err != nil {
			return err
		}

		if !stock.AvailableLiters.Equal(before.AvailableLiters) || !stock.UnitPrice.Equal(before.UnitPrice) {
			if err := casStock(tx, before.Version, &stock); err != nil {
				return err
			}
		}

		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("create fuel entry: %w", err)
		}
		out = stock
		return nil
	})
	return out, err
}

// UpdateStock changes the stock row without a ledger entry. It is only used
// for the depot unit price; liters must always move through AppendEntry.
func (s *Store) UpdateStock(ctx context.Context, mutate func(stock *Models.FuelStock) error) (Models.FuelStock, error) {
	var out Models.FuelStock
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		stock, err := loadStock(tx)
		if err != nil {
			return err
		}
		liters := stock.AvailableLiters
		version := stock.Version
		if err := mutate(&stock); err != nil {
			return err
		}
		if !stock.AvailableLiters.Equal(liters) {
			return Models.Invalid("available_liters", "stock liters can only change through a ledger entry")
		}
		if err := casStock(tx, version, &stock); err != nil {
			return err
		}
		out = stock
		return nil
	})
	return out, err
}

func (s *Store) ListEntries(ctx context.Context, filter Models.FuelEntryFilter) ([]Models.FuelEntry, error) {
	query := s.db.WithContext(ctx).Model(&Models.FuelEntry{})
	if filter.Kind != "" {
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.Month > 0 {
		query = query.Where("month = ?", filter.Month)
	}
	if filter.Year > 0 {
		query = query.Where("year = ?", filter.Year)
	}
	if filter.TruckID != nil {
		query = query.Where("truck_id = ?", *filter.TruckID)
	}

	var entries []Models.FuelEntry
	if err := query.Order("id").Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list fuel entries: %w", err)
	}
	return entries, nil
}

func loadStock(db *gorm.DB) (Models.FuelStock, error) {
	seed := Models.FuelStock{ID: Models.FuelStockID, Version: 1, UpdatedAt: time.Now()}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return Models.FuelStock{}, fmt.Errorf("init fuel stock: %w", err)
	}
	var stock Models.FuelStock
	if err := db.First(&stock, Models.FuelStockID).Error; err != nil {
		return stock, fmt.Errorf("load fuel stock: %w", err)
	}
	stock.AvailableLiters = Models.Round2(stock.AvailableLiters)
	stock.UnitPrice = Models.Round2(stock.UnitPrice)
	return stock, nil
}

func casStock(tx *gorm.DB, expected uint, stock *Models.FuelStock) error {
	stock.Version = expected + 1
	stock.UpdatedAt = time.Now()
	result := tx.Model(&Models.FuelStock{}).
		Where("id = ? AND version = ?", Models.FuelStockID, expected).
		Updates(map[string]interface{}{
			"available_liters": stock.AvailableLiters,
			"unit_price":       stock.UnitPrice,
			"version":          stock.Version,
			"updated_at":       stock.UpdatedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("update fuel stock: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return &Models.ConflictError{Entity: "fuel stock", ID: Models.FuelStockID, Reason: "modified concurrently"}
	}
	return nil
}

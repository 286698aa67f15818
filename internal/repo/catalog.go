// Package repo implements the read-only data access layer for the machine
// catalog, backed by GORM. This file provides the four query shapes the
// wizard needs: city list, shops per city, machines per shop, and point
// lookups for a machine and a shop's terminal URL.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only query
// composition. Connections are acquired per call from the GORM pool and
// released when the query returns, on every exit path.
//
// Error semantics:
//   - When a row is not found, point lookups return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (connectivity issues, etc.), the raw gorm error is
//     propagated; the service layer maps it to its own taxonomy.
//
// Functions:
//
//   - ListCities(ctx, db) -> []domain.City, error
//     Returns every city ordered by name ascending.
//
//   - ListShops(ctx, db, cityID) -> []domain.Shop, error
//     Returns the shops of a city ordered by name ascending.
//
//   - ListMachines(ctx, db, shopID) -> []domain.Machine, error
//     Returns the machines of a shop ordered by machine number ascending,
//     unnumbered machines last, ties broken by row ID.
//
//   - GetMachine(ctx, db, id) -> *domain.Machine, error
//     Fetches a single machine, or ErrNotFound if missing.
//
//   - GetShopTerminalURL(ctx, db, shopID) -> (string, error)
//     Fetches a shop's terminal URL; "" with nil error when the shop exists
//     but has no terminal configured, ErrNotFound when the shop is missing.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/washpoint/launchbot/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer.
var ErrNotFound = gorm.ErrRecordNotFound

// ListCities returns all cities ordered by name ascending. It returns an
// empty slice when the catalog has no cities. On DB error, it returns the
// error.
func ListCities(ctx context.Context, db *gorm.DB) ([]domain.City, error) {
	var out []domain.City
	err := db.WithContext(ctx).
		Order("name asc").
		Find(&out).Error
	return out, err
}

// ListShops returns the shops belonging to cityID, ordered by name
// ascending. It returns an empty slice when the city has no shops.
// On DB error, it returns the error.
func ListShops(ctx context.Context, db *gorm.DB, cityID int64) ([]domain.Shop, error) {
	var out []domain.Shop
	err := db.WithContext(ctx).
		Where("city_id = ?", cityID).
		Order("name asc").
		Find(&out).Error
	return out, err
}

// ListMachines returns the machines installed in shopID, ordered by the
// user-facing machine number ascending with unnumbered machines sorted
// last, ties broken by row ID ascending.
func ListMachines(ctx context.Context, db *gorm.DB, shopID int64) ([]domain.Machine, error) {
	var out []domain.Machine
	err := db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("machine_number IS NULL, machine_number asc, id asc").
		Find(&out).Error
	return out, err
}

// GetMachine fetches a single machine by its ID. If the record does not
// exist, it returns ErrNotFound. On other DB errors, the raw error is
// returned.
func GetMachine(ctx context.Context, db *gorm.DB, id int64) (*domain.Machine, error) {
	var m domain.Machine
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetShopTerminalURL fetches the terminal URL of shopID. A shop that exists
// but has no terminal configured yields ("", nil); a missing shop yields
// ErrNotFound. On other DB errors, the raw error is returned.
func GetShopTerminalURL(ctx context.Context, db *gorm.DB, shopID int64) (string, error) {
	var s domain.Shop
	err := db.WithContext(ctx).
		Select("id", "terminal_url").
		Where("id = ?", shopID).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	if s.TerminalURL == nil {
		return "", nil
	}
	return *s.TerminalURL, nil
}

// Package storetest opens throwaway SQLite databases for package tests.
package storetest

import (
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"FalconFreight/Models"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var seq atomic.Int64

// Open returns a migrated in-memory database private to t.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, seq.Add(1))

	db, err := Models.Connect("sqlite", dsn)
	require.NoError(t, err)

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// Fleet is a minimal set of reference rows.
type Fleet struct {
	Truck   Models.Truck
	Trailer Models.Trailer
	Client  Models.Client
}

func SeedFleet(t testing.TB, db *gorm.DB) Fleet {
	t.Helper()
	n := seq.Add(1)
	f := Fleet{
		Truck:   Models.Truck{Plate: fmt.Sprintf("AB%03dCD", n), Brand: "Scania"},
		Trailer: Models.Trailer{Plate: fmt.Sprintf("TR%03d", n)},
		Client:  Models.Client{Name: "Acopio Norte"},
	}
	require.NoError(t, db.Create(&f.Truck).Error)
	require.NoError(t, db.Create(&f.Trailer).Error)
	require.NoError(t, db.Create(&f.Client).Error)
	return f
}

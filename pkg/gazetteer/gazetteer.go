// Package gazetteer provides read-only place lookups against a prebuilt
// embedded SQLite database. The database ships with the project; this
// package never writes to it.
package gazetteer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Place is one candidate row from the gazetteer.
type Place struct {
	Name        string
	FeatureType string
	Category    string
	Latitude    float64
	Longitude   float64
	Authority   string
	SupplyDate  string
}

// DB is a read-only gazetteer handle.
type DB struct {
	db *sql.DB
}

// Open opens the gazetteer database at path in read-only mode.
func Open(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open gazetteer: %w", err)
	}

	return &DB{db: db}, nil
}

// Close releases the database handle.
func (g *DB) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}

// Lookup returns all candidate places matching name exactly
// (case-insensitive). Zero candidates is a normal outcome: many historical
// place names never made it into the official gazetteer.
func (g *DB) Lookup(ctx context.Context, name string) ([]Place, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("name is required")
	}

	rows, err := g.db.QueryContext(ctx, `
		SELECT name, feature_type, category, latitude, longitude, authority, supply_date
		FROM places
		WHERE name = ? COLLATE NOCASE
		ORDER BY authority, feature_type`, name)
	if err != nil {
		return nil, fmt.Errorf("query places: %w", err)
	}
	defer rows.Close()

	return scanPlaces(rows)
}

// Search returns candidates whose name starts with prefix, capped at limit.
func (g *DB) Search(ctx context.Context, prefix string, limit int) ([]Place, error) {
	if strings.TrimSpace(prefix) == "" {
		return nil, errors.New("prefix is required")
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := g.db.QueryContext(ctx, `
		SELECT name, feature_type, category, latitude, longitude, authority, supply_date
		FROM places
		WHERE name LIKE ? COLLATE NOCASE
		ORDER BY name, authority
		LIMIT ?`, prefix+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("query places: %w", err)
	}
	defer rows.Close()

	return scanPlaces(rows)
}

func scanPlaces(rows *sql.Rows) ([]Place, error) {
	var places []Place
	for rows.Next() {
		var p Place
		if err := rows.Scan(&p.Name, &p.FeatureType, &p.Category, &p.Latitude, &p.Longitude, &p.Authority, &p.SupplyDate); err != nil {
			return nil, fmt.Errorf("scan place: %w", err)
		}
		places = append(places, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate places: %w", err)
	}
	return places, nil
}

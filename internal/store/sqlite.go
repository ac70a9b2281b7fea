package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/i474232898/weather-gateway/internal/weather"
)

// SQLiteStore persists favorites and preferences in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:" for
// a throwaway database.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("sqlite")
	logger.Info("Initializing SQLite store", zap.String("path", path))

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time; a single connection also
	// keeps ":memory:" databases from splitting per connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initDatabase(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, logger: logger, now: time.Now}, nil
}

func initDatabase(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS favorites (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			country TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT '',
			lat REAL NOT NULL DEFAULT 0,
			lon REAL NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create favorites table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS preferences (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			default_city TEXT NOT NULL,
			temperature_unit TEXT NOT NULL,
			wind_speed_unit TEXT NOT NULL,
			show_current_card INTEGER NOT NULL,
			show_line_chart INTEGER NOT NULL,
			show_bar_chart INTEGER NOT NULL,
			show_gauge_card INTEGER NOT NULL,
			show_alerts_card INTEGER NOT NULL,
			show_ai_assistant INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create preferences table: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// ListFavorites returns all favorites, newest first.
func (s *SQLiteStore) ListFavorites(ctx context.Context) ([]Favorite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, country, state, lat, lon, created_at
		FROM favorites
		ORDER BY created_at DESC, rowid DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query favorites: %w", err)
	}
	defer rows.Close()

	favorites := []Favorite{}
	for rows.Next() {
		var (
			f       Favorite
			created int64
		)
		if err := rows.Scan(&f.ID, &f.Name, &f.Country, &f.State, &f.Lat, &f.Lon, &created); err != nil {
			return nil, fmt.Errorf("failed to scan favorite: %w", err)
		}
		f.CreatedAt = time.UnixMilli(created).UTC()
		favorites = append(favorites, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate favorites: %w", err)
	}
	return favorites, nil
}

func (s *SQLiteStore) findFavorite(ctx context.Context, city weather.CityCandidate) (Favorite, error) {
	var (
		f       Favorite
		created int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, country, state, lat, lon, created_at
		FROM favorites
		WHERE name = ? AND country = ? AND abs(lat - ?) < ? AND abs(lon - ?) < ?
		LIMIT 1
	`, city.Name, city.Country, city.Lat, coordTolerance, city.Lon, coordTolerance).
		Scan(&f.ID, &f.Name, &f.Country, &f.State, &f.Lat, &f.Lon, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Favorite{}, ErrNotFound
	}
	if err != nil {
		return Favorite{}, fmt.Errorf("failed to query favorite: %w", err)
	}
	f.CreatedAt = time.UnixMilli(created).UTC()
	return f, nil
}

// AddFavorite saves city. Adding a city that is already saved returns the
// existing entry.
func (s *SQLiteStore) AddFavorite(ctx context.Context, city weather.CityCandidate) (Favorite, error) {
	existing, err := s.findFavorite(ctx, city)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Favorite{}, err
	}

	f := Favorite{
		ID:            uuid.NewString(),
		CityCandidate: city,
		CreatedAt:     s.now().UTC().Truncate(time.Millisecond),
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO favorites (id, name, country, state, lat, lon, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.Name, f.Country, f.State, f.Lat, f.Lon, f.CreatedAt.UnixMilli())
	if err != nil {
		return Favorite{}, fmt.Errorf("failed to insert favorite: %w", err)
	}

	s.logger.Debug("favorite added", zap.String("id", f.ID), zap.String("name", f.Name))
	return f, nil
}

// RemoveFavorite deletes the favorite matching city by name, country and
// coordinates.
func (s *SQLiteStore) RemoveFavorite(ctx context.Context, city weather.CityCandidate) error {
	f, err := s.findFavorite(ctx, city)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM favorites WHERE id = ?`, f.ID); err != nil {
		return fmt.Errorf("failed to delete favorite: %w", err)
	}
	return nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// GetPreferences returns the saved preferences, or the defaults.
func (s *SQLiteStore) GetPreferences(ctx context.Context) (Preferences, error) {
	return getPreferences(ctx, s.db)
}

// UpdatePreferences applies fn to the saved preferences inside one
// transaction.
func (s *SQLiteStore) UpdatePreferences(ctx context.Context, fn func(Preferences) Preferences) (Preferences, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cur, err := getPreferences(ctx, tx)
	if err != nil {
		return Preferences{}, err
	}
	next, err := savePreferences(ctx, tx, fn(cur))
	if err != nil {
		return Preferences{}, err
	}
	if err := tx.Commit(); err != nil {
		return Preferences{}, fmt.Errorf("failed to commit preferences: %w", err)
	}
	return next, nil
}

func getPreferences(ctx context.Context, q execer) (Preferences, error) {
	var p Preferences
	err := q.QueryRowContext(ctx, `
		SELECT default_city, temperature_unit, wind_speed_unit, show_current_card, show_line_chart,
			show_bar_chart, show_gauge_card, show_alerts_card, show_ai_assistant
		FROM preferences WHERE id = 1
	`).Scan(&p.DefaultCity, &p.TemperatureUnit, &p.WindSpeedUnit, &p.ShowCurrentCard, &p.ShowLineChart,
		&p.ShowBarChart, &p.ShowGaugeCard, &p.ShowAlertsCard, &p.ShowAIAssistant)
	if errors.Is(err, sql.ErrNoRows) {
		return DefaultPreferences(), nil
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to query preferences: %w", err)
	}
	return p, nil
}

func savePreferences(ctx context.Context, q execer, p Preferences) (Preferences, error) {
	_, err := q.ExecContext(ctx, `
		INSERT INTO preferences (id, default_city, temperature_unit, wind_speed_unit, show_current_card,
			show_line_chart, show_bar_chart, show_gauge_card, show_alerts_card, show_ai_assistant)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			default_city = excluded.default_city,
			temperature_unit = excluded.temperature_unit,
			wind_speed_unit = excluded.wind_speed_unit,
			show_current_card = excluded.show_current_card,
			show_line_chart = excluded.show_line_chart,
			show_bar_chart = excluded.show_bar_chart,
			show_gauge_card = excluded.show_gauge_card,
			show_alerts_card = excluded.show_alerts_card,
			show_ai_assistant = excluded.show_ai_assistant
	`, p.DefaultCity, p.TemperatureUnit, p.WindSpeedUnit, p.ShowCurrentCard, p.ShowLineChart,
		p.ShowBarChart, p.ShowGaugeCard, p.ShowAlertsCard, p.ShowAIAssistant)
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to save preferences: %w", err)
	}
	return p, nil
}

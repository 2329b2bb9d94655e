// Package database reads warehouse transactions from an Oracle table.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/sijms/go-ora/v2"

	"valuation/internal/dataset"
	"valuation/internal/geo"
	"valuation/internal/types"
)

const (
	defaultTable = "WAREHOUSE_SALES"
	pingTimeout  = 10 * time.Second
)

var tableName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_$#]*(\.[A-Za-z][A-Za-z0-9_$#]*)?$`)

// dsn builds a properly encoded connection string for Oracle Autonomous Database
func dsn(username, password, host, port, service string, walletLocation string) string {
	if walletLocation != "" {
		// Use wallet-based mTLS connection
		return fmt.Sprintf(
			"oracle://%s:%s@%s:%s/%s?ssl=true&wallet_location=%s",
			url.PathEscape(username), url.PathEscape(password), host, port, service, url.PathEscape(walletLocation))
	}

	return (&url.URL{
		Scheme:   "oracle",
		User:     url.UserPassword(username, password),
		Host:     host + ":" + port,
		Path:     "/" + service,
		RawQuery: "ssl=true", // ADB requires TCPS
	}).String()
}

// DBConfig holds database connection configuration
type DBConfig struct {
	Host           string
	Port           string
	Service        string
	Username       string
	Password       string
	WalletLocation string
	Table          string
}

// Database holds the database connection and configuration
type Database struct {
	db     *sql.DB
	config DBConfig
}

// NewDatabase opens the connection and pings it within ten seconds.
func NewDatabase(ctx context.Context, config DBConfig) (*Database, error) {
	if config.Table == "" {
		config.Table = defaultTable
	}
	if !tableName.MatchString(config.Table) {
		return nil, fmt.Errorf("invalid table name %q", config.Table)
	}

	slog.Info("connecting to oracle", "host", config.Host, "service", config.Service, "table", config.Table,
		"wallet", config.WalletLocation != "")

	db, err := sql.Open("oracle", dsn(config.Username, config.Password, config.Host, config.Port, config.Service, config.WalletLocation))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Database{
		db:     db,
		config: config,
	}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}

// QueryTarget returns the transaction whose normalised identifier matches.
func (d *Database) QueryTarget(ctx context.Context, identifier string) (types.Record, error) {
	query, args := targetQuery(d.config.Table, identifier)

	rec, err := scanRecord(d.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return types.Record{}, fmt.Errorf("%w: %q", types.ErrTargetNotFound, identifier)
	}
	if err != nil {
		return types.Record{}, fmt.Errorf("failed to query target: %w", err)
	}
	return rec, nil
}

// QueryComparables returns the candidate transactions inside the bounding box
// of a radiusKm circle around center. Callers still apply the exact geodesic
// filter; the box only limits what is read.
func (d *Database) QueryComparables(ctx context.Context, center types.Point, radiusKm float64) ([]types.Record, error) {
	b, err := geo.BoundAround(center, radiusKm)
	if err != nil {
		return nil, err
	}
	query, args := comparablesQuery(d.config.Table, b)
	return d.queryRecords(ctx, query, args...)
}

// QueryAll returns every transaction in the table.
func (d *Database) QueryAll(ctx context.Context) ([]types.Record, error) {
	return d.queryRecords(ctx, selectColumns(d.config.Table)+" ORDER BY IDENTIFIER")
}

func (d *Database) queryRecords(ctx context.Context, query string, args ...any) ([]types.Record, error) {
	start := time.Now()
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transactions: %w", err)
	}

	slog.Debug("queried transactions", "rows", len(records), "elapsed", time.Since(start))
	return records, nil
}

func selectColumns(table string) string {
	return "SELECT IDENTIFIER, LATITUDE, LONGITUDE, TOTAL_AREA, PRICE, UNIT_PRICE FROM " + table
}

func targetQuery(table, identifier string) (string, []any) {
	q := selectColumns(table) +
		` WHERE UPPER(REPLACE(REPLACE(IDENTIFIER, ',', ''), '  ', ' ')) = :1 FETCH FIRST 1 ROWS ONLY`
	return q, []any{dataset.Normalize(identifier)}
}

func comparablesQuery(table string, b geo.Bound) (string, []any) {
	var sb strings.Builder
	sb.WriteString(selectColumns(table))
	sb.WriteString(" WHERE LATITUDE BETWEEN :1 AND :2")
	args := []any{b.MinLat, b.MaxLat}
	if b.LonLimited {
		sb.WriteString(" AND LONGITUDE BETWEEN :3 AND :4")
		args = append(args, b.MinLon, b.MaxLon)
	} else {
		sb.WriteString(" AND LONGITUDE IS NOT NULL")
	}
	sb.WriteString(" ORDER BY IDENTIFIER")
	return sb.String(), args
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRecord maps NULL numeric columns to NaN, except a NULL unit price which
// is derived from price and area as the file loaders do.
func scanRecord(s scanner) (types.Record, error) {
	var (
		ident                            sql.NullString
		lat, lon, area, price, unitPrice sql.NullFloat64
	)
	if err := s.Scan(&ident, &lat, &lon, &area, &price, &unitPrice); err != nil {
		return types.Record{}, err
	}

	rec := types.Record{
		Identifier: ident.String,
		Latitude:   nullToNaN(lat),
		Longitude:  nullToNaN(lon),
		TotalArea:  nullToNaN(area),
		Price:      price.Float64,
		UnitPrice:  unitPrice.Float64,
	}
	if !unitPrice.Valid && rec.TotalArea > 0 {
		rec.UnitPrice = rec.Price / rec.TotalArea
	}
	return rec, nil
}

func nullToNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// LoadDatabaseConfig loads database configuration from the environment,
// reading a .env file first when present. Variables already set win.
func LoadDatabaseConfig() DBConfig {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("could not read .env", "error", err)
	}

	return DBConfig{
		Host:           getEnvOrDefault("DB_HOST", "localhost"),
		Port:           getEnvOrDefault("DB_PORT", "1521"),
		Service:        getEnvOrDefault("DB_SERVICE", "XE"),
		Username:       getEnvOrDefault("DB_USERNAME", ""),
		Password:       getEnvOrDefault("DB_PASSWORD", ""),
		WalletLocation: getEnvOrDefault("DB_WALLET_LOCATION", ""),
		Table:          getEnvOrDefault("DB_TABLE", defaultTable),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

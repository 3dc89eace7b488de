package repositories

import (
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/desertthunder/plmigrate/internal/models"
)

const tokenColumns = `service, access_token, refresh_token, expires_at, auth_type, raw_value`

// GetToken retrieves the stored credential for a service
func (s *SQLStore) GetToken(service string) (*models.TokenRecord, error) {
	row := s.db.QueryRow(`SELECT `+tokenColumns+` FROM tokens WHERE service = ?`, service)

	rec, err := scanToken(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return rec, nil
}

// UpsertToken inserts or replaces the credential for rec.Service
func (s *SQLStore) UpsertToken(rec *models.TokenRecord) error {
	if rec.Service == "" {
		return fmt.Errorf("validation failed: service is required")
	}

	var expiresAt sql.NullInt64
	if rec.ExpiresAt != nil {
		expiresAt = sql.NullInt64{Int64: toMillis(*rec.ExpiresAt), Valid: true}
	}

	authType := rec.AuthType
	if authType == "" {
		authType = models.AuthOAuth
	}

	query := `
		INSERT INTO tokens (` + tokenColumns + `)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (service) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			auth_type = excluded.auth_type,
			raw_value = excluded.raw_value
	`

	_, err := s.db.Exec(query,
		rec.Service,
		rec.AccessToken,
		nullString(rec.RefreshToken),
		expiresAt,
		string(authType),
		nullString(rec.RawValue),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert token: %w", err)
	}
	return nil
}

// DeleteToken removes the credential for a service. Deleting a missing token is not an error.
func (s *SQLStore) DeleteToken(service string) error {
	if _, err := s.db.Exec(`DELETE FROM tokens WHERE service = ?`, service); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// ListTokens returns every stored credential ordered by service
func (s *SQLStore) ListTokens() ([]models.TokenRecord, error) {
	rows, err := s.db.Query(`SELECT ` + tokenColumns + ` FROM tokens ORDER BY service`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}
	defer rows.Close()

	var records []models.TokenRecord
	for rows.Next() {
		rec, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan token: %w", err)
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// MatchThreshold returns the stored threshold, or [DefaultMatchThreshold] when unset.
func (s *SQLStore) MatchThreshold() (float64, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM config WHERE key = ?`, matchThresholdKey).Scan(&value)
	if err == sql.ErrNoRows {
		return DefaultMatchThreshold, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read match threshold: %w", err)
	}
	return parseThreshold(value)
}

// SetMatchThreshold validates and stores v.
func (s *SQLStore) SetMatchThreshold(v float64) error {
	if err := ValidateThreshold(v); err != nil {
		return err
	}

	_, err := s.db.Exec(
		`INSERT INTO config (key, value) VALUES (?, ?) ON CONFLICT (key) DO UPDATE SET value = excluded.value`,
		matchThresholdKey, formatThreshold(v),
	)
	if err != nil {
		return fmt.Errorf("failed to store match threshold: %w", err)
	}
	return nil
}

func parseThreshold(value string) (float64, error) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse stored match threshold %q: %w", value, err)
	}
	return v, nil
}

func formatThreshold(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func scanToken(row scanner) (*models.TokenRecord, error) {
	var (
		rec       models.TokenRecord
		refresh   sql.NullString
		expiresAt sql.NullInt64
		authType  string
		raw       sql.NullString
	)

	if err := row.Scan(&rec.Service, &rec.AccessToken, &refresh, &expiresAt, &authType, &raw); err != nil {
		return nil, err
	}

	at, err := models.ParseAuthType(authType)
	if err != nil {
		return nil, err
	}

	rec.RefreshToken = refresh.String
	rec.AuthType = at
	rec.RawValue = raw.String
	if expiresAt.Valid {
		t := time.UnixMilli(expiresAt.Int64)
		rec.ExpiresAt = &t
	}
	return &rec, nil
}

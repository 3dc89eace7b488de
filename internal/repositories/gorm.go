package repositories

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/plmigrate/internal/models"
	"github.com/desertthunder/plmigrate/internal/shared"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type playlistRow struct {
	SourcePlaylistID string  `gorm:"primaryKey"`
	TargetPlaylistID *string `gorm:"uniqueIndex"`
	Name             string  `gorm:"not null"`
	Description      string  `gorm:"not null;default:''"`
	Status           string  `gorm:"not null"`
	LastUpdated      int64   `gorm:"not null"`
}

func (playlistRow) TableName() string { return "migrated_playlists" }

type trackRow struct {
	SourcePlaylistID string  `gorm:"primaryKey;uniqueIndex:idx_migrated_tracks_target,priority:1"`
	SourceTrackID    string  `gorm:"primaryKey"`
	TargetTrackID    *string `gorm:"uniqueIndex:idx_migrated_tracks_target,priority:2"`
	Title            string  `gorm:"not null;default:''"`
	Artists          string  `gorm:"not null;default:''"`
	Score            *float64
	Status           string `gorm:"not null;index"`
	LastUpdated      int64  `gorm:"not null"`
}

func (trackRow) TableName() string { return "migrated_tracks" }

type tokenRow struct {
	Service      string `gorm:"primaryKey"`
	AccessToken  string `gorm:"not null"`
	RefreshToken *string
	ExpiresAt    *int64
	AuthType     string `gorm:"not null;default:oauth"`
	RawValue     *string
}

func (tokenRow) TableName() string { return "tokens" }

type configRow struct {
	Key   string `gorm:"primaryKey"`
	Value string `gorm:"not null"`
}

func (configRow) TableName() string { return "config" }

// GormStore implements [Backend] with gorm, over SQLite or Postgres.
type GormStore struct {
	db *gorm.DB
}

// OpenGormStore opens the gorm dialector selected by cfg and auto-migrates the schema.
func OpenGormStore(cfg shared.DatabaseConfig) (*GormStore, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case shared.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	case shared.DriverGormSQLite:
		dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", cfg.Path)
		if cfg.Path == shared.InMemoryDatabase {
			dsn = "file::memory:?_foreign_keys=on"
		}
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("%w: driver %q is not a gorm driver", shared.ErrInvalidConfig, cfg.Driver)
	}

	gormLogger := logger.New(log.StandardLog(), logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLogger, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	if cfg.Path == shared.InMemoryDatabase && cfg.Driver == shared.DriverGormSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		shared.ConfigureDatabase(sqlDB, cfg)
	}

	return NewGormStore(db)
}

// NewGormStore wraps an open gorm handle and auto-migrates the schema, seeding the default threshold.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(&playlistRow{}, &trackRow{}, &tokenRow{}, &configRow{}); err != nil {
		return nil, fmt.Errorf("failed to auto-migrate: %w", err)
	}

	seed := configRow{Key: matchThresholdKey, Value: formatThreshold(DefaultMatchThreshold)}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
		return nil, fmt.Errorf("failed to seed config: %w", err)
	}
	return &GormStore{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) GetPlaylist(id string) (*models.PlaylistRecord, error) {
	var row playlistRow
	err := s.db.Where("source_playlist_id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get playlist: %w", err)
	}
	rec := row.record()
	return &rec, nil
}

func (s *GormStore) UpsertPlaylist(rec *models.PlaylistRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	stamp(&rec.LastUpdated)

	row := playlistRow{
		SourcePlaylistID: rec.SourcePlaylistID,
		TargetPlaylistID: optional(rec.TargetPlaylistID),
		Name:             rec.Name,
		Description:      rec.Description,
		Status:           string(rec.Status),
		LastUpdated:      toMillis(rec.LastUpdated),
	}

	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if isDuplicate(err) {
		return fmt.Errorf("%w: target playlist %s already recorded", ErrConflict, rec.TargetPlaylistID)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert playlist: %w", err)
	}
	return nil
}

func (s *GormStore) ListPlaylists() ([]models.PlaylistRecord, error) {
	var rows []playlistRow
	if err := s.db.Order("last_updated DESC, source_playlist_id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query playlists: %w", err)
	}

	records := make([]models.PlaylistRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (s *GormStore) GetTrack(playlistID, trackID string) (*models.TrackRecord, error) {
	return s.firstTrack("source_playlist_id = ? AND source_track_id = ?", playlistID, trackID)
}

func (s *GormStore) FindTrackByTarget(playlistID, targetID string) (*models.TrackRecord, error) {
	return s.firstTrack("source_playlist_id = ? AND target_track_id = ?", playlistID, targetID)
}

func (s *GormStore) firstTrack(query string, args ...any) (*models.TrackRecord, error) {
	var row trackRow
	err := s.db.Where(query, args...).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track: %w", err)
	}
	rec := row.record()
	return &rec, nil
}

func (s *GormStore) UpsertTrack(rec *models.TrackRecord) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	stamp(&rec.LastUpdated)

	row := trackRow{
		SourcePlaylistID: rec.SourcePlaylistID,
		SourceTrackID:    rec.SourceTrackID,
		TargetTrackID:    optional(rec.TargetTrackID),
		Title:            rec.Title,
		Artists:          rec.Artists,
		Score:            rec.Score,
		Status:           string(rec.Status),
		LastUpdated:      toMillis(rec.LastUpdated),
	}

	err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error
	if isDuplicate(err) {
		return fmt.Errorf("%w: target track %s already recorded in playlist %s", ErrConflict, rec.TargetTrackID, rec.SourcePlaylistID)
	}
	if err != nil {
		return fmt.Errorf("failed to upsert track: %w", err)
	}
	return nil
}

func (s *GormStore) ListTracks(playlistID string) ([]models.TrackRecord, error) {
	var rows []trackRow
	err := s.db.Where("source_playlist_id = ?", playlistID).Order("last_updated, source_track_id").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}

	records := make([]models.TrackRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (s *GormStore) CountTracks(playlistID string) (models.TrackCounts, error) {
	var (
		counts models.TrackCounts
		groups []struct {
			Status string
			N      int
		}
	)

	err := s.db.Model(&trackRow{}).
		Select("status, COUNT(*) AS n").
		Where("source_playlist_id = ?", playlistID).
		Group("status").
		Scan(&groups).Error
	if err != nil {
		return counts, fmt.Errorf("failed to count tracks: %w", err)
	}

	for _, g := range groups {
		switch models.TrackStatus(g.Status) {
		case models.TrackMigrated:
			counts.Migrated = g.N
		case models.TrackSkipped:
			counts.Skipped = g.N
		case models.TrackFailed:
			counts.Failed = g.N
		case models.TrackPending:
			counts.Pending = g.N
		}
	}
	return counts, nil
}

func (s *GormStore) DeletePlaylistAndTracks(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("source_playlist_id = ?", id).Delete(&trackRow{}).Error; err != nil {
			return fmt.Errorf("failed to delete tracks: %w", err)
		}
		if err := tx.Where("source_playlist_id = ?", id).Delete(&playlistRow{}).Error; err != nil {
			return fmt.Errorf("failed to delete playlist: %w", err)
		}
		return nil
	})
}

func (s *GormStore) GetToken(service string) (*models.TokenRecord, error) {
	var row tokenRow
	err := s.db.Where("service = ?", service).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return row.record()
}

func (s *GormStore) UpsertToken(rec *models.TokenRecord) error {
	if rec.Service == "" {
		return fmt.Errorf("validation failed: service is required")
	}

	row := tokenRow{
		Service:      rec.Service,
		AccessToken:  rec.AccessToken,
		RefreshToken: optional(rec.RefreshToken),
		AuthType:     string(rec.AuthType),
		RawValue:     optional(rec.RawValue),
	}
	if row.AuthType == "" {
		row.AuthType = string(models.AuthOAuth)
	}
	if rec.ExpiresAt != nil {
		ms := toMillis(*rec.ExpiresAt)
		row.ExpiresAt = &ms
	}

	if err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to upsert token: %w", err)
	}
	return nil
}

func (s *GormStore) DeleteToken(service string) error {
	if err := s.db.Where("service = ?", service).Delete(&tokenRow{}).Error; err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

func (s *GormStore) ListTokens() ([]models.TokenRecord, error) {
	var rows []tokenRow
	if err := s.db.Order("service").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query tokens: %w", err)
	}

	records := make([]models.TokenRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

func (s *GormStore) MatchThreshold() (float64, error) {
	var row configRow
	err := s.db.Where("key = ?", matchThresholdKey).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultMatchThreshold, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read match threshold: %w", err)
	}
	return parseThreshold(row.Value)
}

func (s *GormStore) SetMatchThreshold(v float64) error {
	if err := ValidateThreshold(v); err != nil {
		return err
	}

	row := configRow{Key: matchThresholdKey, Value: formatThreshold(v)}
	if err := s.db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&row).Error; err != nil {
		return fmt.Errorf("failed to store match threshold: %w", err)
	}
	return nil
}

func (r playlistRow) record() models.PlaylistRecord {
	return models.PlaylistRecord{
		SourcePlaylistID: r.SourcePlaylistID,
		TargetPlaylistID: deref(r.TargetPlaylistID),
		Name:             r.Name,
		Description:      r.Description,
		Status:           models.PlaylistStatus(r.Status),
		LastUpdated:      fromMillis(r.LastUpdated),
	}
}

func (r trackRow) record() models.TrackRecord {
	return models.TrackRecord{
		SourcePlaylistID: r.SourcePlaylistID,
		SourceTrackID:    r.SourceTrackID,
		TargetTrackID:    deref(r.TargetTrackID),
		Title:            r.Title,
		Artists:          r.Artists,
		Score:            r.Score,
		Status:           models.TrackStatus(r.Status),
		LastUpdated:      fromMillis(r.LastUpdated),
	}
}

func (r tokenRow) record() (*models.TokenRecord, error) {
	at, err := models.ParseAuthType(r.AuthType)
	if err != nil {
		return nil, err
	}

	rec := &models.TokenRecord{
		Service:      r.Service,
		AccessToken:  r.AccessToken,
		RefreshToken: deref(r.RefreshToken),
		AuthType:     at,
		RawValue:     deref(r.RawValue),
	}
	if r.ExpiresAt != nil {
		t := fromMillis(*r.ExpiresAt)
		rec.ExpiresAt = &t
	}
	return rec, nil
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

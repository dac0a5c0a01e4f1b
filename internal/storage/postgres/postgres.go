package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/princekumarofficial/media-service/internal/apperr"
	"github.com/princekumarofficial/media-service/internal/config"
	"github.com/princekumarofficial/media-service/internal/storage"
	"github.com/princekumarofficial/media-service/internal/types"
	"github.com/princekumarofficial/media-service/internal/types/users"
)

const uniqueViolation = "23505"

type Postgres struct {
	Db *sql.DB
}

func NewPostgres(cfg *config.Config) (*Postgres, error) {
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.PGSQL.Host, cfg.PGSQL.Port, cfg.PGSQL.User, cfg.PGSQL.Password, cfg.PGSQL.DBName, cfg.PGSQL.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	slog.Info("Connected to Postgres database")

	// Create tables if they don't exist
	pg := &Postgres{Db: db}
	if err := pg.CreateTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return pg, nil
}

func (p *Postgres) CreateTables() error {
	queries := []string{
		`
		CREATE TABLE IF NOT EXISTS profiles (
			owner_id TEXT PRIMARY KEY,
			owner_type VARCHAR(16) NOT NULL CHECK (owner_type IN ('ESCORT', 'CLUB')),
			gallery JSONB,
			primary_photo_url TEXT NOT NULL DEFAULT '',
			photos_count INTEGER NOT NULL DEFAULT 0,
			videos_count INTEGER NOT NULL DEFAULT 0,
			has_profile_photo BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		`,
		`
		CREATE TABLE IF NOT EXISTS media (
			id UUID PRIMARY KEY,
			owner_type VARCHAR(16) NOT NULL CHECK (owner_type IN ('ESCORT', 'CLUB')),
			owner_id TEXT NOT NULL,
			type VARCHAR(8) NOT NULL CHECK (type IN ('IMAGE', 'VIDEO')),
			url TEXT NOT NULL,
			thumb_url TEXT,
			visibility VARCHAR(16) NOT NULL CHECK (visibility IN ('PUBLIC', 'PREMIUM', 'PRIVATE')),
			price BIGINT,
			description TEXT NOT NULL DEFAULT '',
			position INTEGER NOT NULL DEFAULT 0,
			external_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			deleted_at TIMESTAMPTZ
		);
		`,
		`CREATE UNIQUE INDEX IF NOT EXISTS media_owner_external_id_key
			ON media (owner_type, owner_id, external_id)
			WHERE external_id IS NOT NULL;`,
		`CREATE INDEX IF NOT EXISTS media_owner_position_idx
			ON media (owner_type, owner_id, position);`,
	}

	for _, q := range queries {
		if _, err := p.Db.Exec(q); err != nil {
			return err
		}
	}

	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.Db.PingContext(ctx)
}

const mediaColumns = `id, owner_type, owner_id, type, url, COALESCE(thumb_url, ''), visibility, price,
	description, position, COALESCE(external_id, ''), created_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMedia(row rowScanner) (types.Media, error) {
	var m types.Media
	var price sql.NullInt64

	err := row.Scan(&m.ID, &m.OwnerType, &m.OwnerID, &m.Type, &m.URL, &m.ThumbURL, &m.Visibility, &price,
		&m.Description, &m.Position, &m.ExternalID, &m.CreatedAt)
	if err != nil {
		return m, err
	}
	if price.Valid {
		v := price.Int64
		m.Price = &v
	}
	return m, nil
}

func (p *Postgres) FindByExternalID(ctx context.Context, ownerType types.OwnerType, ownerID, externalID string) (*types.Media, error) {
	query := `
	SELECT ` + mediaColumns + `
	FROM media
	WHERE owner_type = $1 AND owner_id = $2 AND external_id = $3
	`

	m, err := scanMedia(p.Db.QueryRowContext(ctx, query, ownerType, ownerID, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *Postgres) InsertMedia(ctx context.Context, m types.Media) (types.Media, bool, error) {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	query := `
	INSERT INTO media (id, owner_type, owner_id, type, url, thumb_url, visibility, price, description, position, external_id, created_at)
	VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9,
		(SELECT COALESCE(MAX(position) + 1, 0) FROM media WHERE owner_type = $2 AND owner_id = $3),
		NULLIF($10, ''), $11)
	ON CONFLICT (owner_type, owner_id, external_id) WHERE external_id IS NOT NULL DO NOTHING
	RETURNING ` + mediaColumns

	var price sql.NullInt64
	if m.Price != nil {
		price = sql.NullInt64{Int64: *m.Price, Valid: true}
	}

	stored, err := scanMedia(p.Db.QueryRowContext(ctx, query,
		m.ID, m.OwnerType, m.OwnerID, m.Type, m.URL, m.ThumbURL, m.Visibility, price, m.Description, m.ExternalID, m.CreatedAt))

	var pqErr *pq.Error
	switch {
	case err == nil:
		return stored, true, nil
	case errors.Is(err, sql.ErrNoRows), errors.As(err, &pqErr) && pqErr.Code == uniqueViolation:
		// lost the race to a concurrent finalization of the same asset
		existing, findErr := p.FindByExternalID(ctx, m.OwnerType, m.OwnerID, m.ExternalID)
		if findErr != nil {
			return types.Media{}, false, findErr
		}
		if existing == nil {
			return types.Media{}, false, fmt.Errorf("media %s conflicted but could not be found", m.ExternalID)
		}
		return *existing, false, nil
	default:
		return types.Media{}, false, err
	}
}

func (p *Postgres) ListMedia(ctx context.Context, ownerType types.OwnerType, ownerID string) ([]types.Media, error) {
	query := `
	SELECT ` + mediaColumns + `
	FROM media
	WHERE owner_type = $1 AND owner_id = $2 AND deleted_at IS NULL
	ORDER BY position ASC, created_at ASC
	`

	rows, err := p.Db.QueryContext(ctx, query, ownerType, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := []types.Media{}
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (p *Postgres) ResolveOwner(ctx context.Context, ownerID string) (types.OwnerType, error) {
	var ownerType types.OwnerType
	err := p.Db.QueryRowContext(ctx, `SELECT owner_type FROM profiles WHERE owner_id = $1`, ownerID).Scan(&ownerType)
	if errors.Is(err, sql.ErrNoRows) {
		return "", apperr.New(apperr.UnknownOwner, "no profile for owner")
	}
	if err != nil {
		return "", err
	}
	return ownerType, nil
}

const profileColumns = `owner_id, owner_type, gallery, primary_photo_url, photos_count, videos_count, has_profile_photo`

func scanProfile(row rowScanner) (users.Profile, error) {
	var prof users.Profile
	var gallery []byte

	err := row.Scan(&prof.OwnerID, &prof.OwnerType, &gallery, &prof.PrimaryPhotoURL,
		&prof.PhotosCount, &prof.VideosCount, &prof.HasProfilePhoto)
	if err != nil {
		return prof, err
	}
	prof.Gallery = json.RawMessage(gallery)
	return prof, nil
}

func (p *Postgres) GetProfile(ctx context.Context, ownerID string) (*users.Profile, error) {
	prof, err := scanProfile(p.Db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE owner_id = $1`, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.UnknownOwner, "no profile for owner")
	}
	if err != nil {
		return nil, err
	}
	return &prof, nil
}

func (p *Postgres) UpdateGallery(ctx context.Context, ownerID string, mutate storage.GalleryMutation) (users.Profile, error) {
	tx, err := p.Db.BeginTx(ctx, nil)
	if err != nil {
		return users.Profile{}, err
	}
	defer tx.Rollback()

	current, err := scanProfile(tx.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE owner_id = $1 FOR UPDATE`, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return users.Profile{}, apperr.New(apperr.UnknownOwner, "no profile for owner")
	}
	if err != nil {
		return users.Profile{}, err
	}

	next, err := mutate(current)
	if err != nil {
		return users.Profile{}, err
	}

	_, err = tx.ExecContext(ctx, `
	UPDATE profiles
	SET gallery = $2, primary_photo_url = $3, photos_count = $4, videos_count = $5,
		has_profile_photo = $6, updated_at = CURRENT_TIMESTAMP
	WHERE owner_id = $1
	`, ownerID, galleryParam(next.Gallery), next.PrimaryPhotoURL, next.PhotosCount, next.VideosCount, next.HasProfilePhoto)
	if err != nil {
		return users.Profile{}, err
	}

	if err := tx.Commit(); err != nil {
		return users.Profile{}, err
	}
	return next, nil
}

// galleryParam passes the slot column as text; lib/pq would send a []byte
// as bytea.
func galleryParam(raw json.RawMessage) sql.NullString {
	if len(raw) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const uniqueViolation = "23505"

var (
	// ErrDuplicate signals that the unique dedupe-key constraint rejected an
	// insert. It is the authoritative duplicate signal: the pre-insert lookup
	// is only a heuristic and two concurrent imports can both pass it.
	ErrDuplicate = errors.New("listing already exists")

	ErrNotFound = errors.New("not found")
)

// Account is a directory user able to call the import API.
type Account struct {
	ID    string
	Email string
	Role  string
}

// Listing is the persisted business record targeted by an import.
type Listing struct {
	ID           string
	OwnerID      string
	BusinessName string
	Category     string
	Description  string
	Address      string
	City         string
	State        string
	Zip          string
	Phone        string
	Email        string
	Website      string
	ImageURL     string
	IsPublished  bool
	DedupeKey    string
}

// HourRow is one hours-of-operation child record. DayOfWeek is 0=Sunday..6=Saturday.
type HourRow struct {
	DayOfWeek int
	Open      string
	Close     string
	Closed    bool
}

// ServiceRow is one service/price child record.
type ServiceRow struct {
	Name         string
	Description  string
	Price        decimal.Decimal
	PriceUnit    string
	DisplayOrder int
}

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// AccountByToken resolves an API token to its account.
func (r *Repository) AccountByToken(ctx context.Context, token string) (Account, error) {
	const q = `SELECT id, email, role FROM accounts WHERE api_token = $1 LIMIT 1`

	var acc Account

	err := r.db.QueryRowContext(ctx, q, token).Scan(&acc.ID, &acc.Email, &acc.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrNotFound
		}

		return Account{}, err
	}

	return acc, nil
}

// FindByBusinessName returns listings whose business name matches
// case-insensitively. Used by the duplicate pre-check.
func (r *Repository) FindByBusinessName(ctx context.Context, name string) ([]Listing, error) {
	const q = `SELECT id, owner_id, business_name, category, description, address, city, state, zip,
		phone, email, website, COALESCE(image_url, ''), is_published, dedupe_key
		FROM listings WHERE lower(business_name) = lower($1)`

	rows, err := r.db.QueryContext(ctx, q, name)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var listings []Listing

	for rows.Next() {
		var l Listing

		err := rows.Scan(&l.ID, &l.OwnerID, &l.BusinessName, &l.Category, &l.Description,
			&l.Address, &l.City, &l.State, &l.Zip, &l.Phone, &l.Email, &l.Website,
			&l.ImageURL, &l.IsPublished, &l.DedupeKey)
		if err != nil {
			return nil, err
		}

		listings = append(listings, l)
	}

	return listings, rows.Err()
}

// CreateListing inserts a new listing together with its child records in one
// transaction. Bulk-imported listings are always stored unpublished; a manual
// review flips the flag later. A unique violation on the dedupe key maps to
// ErrDuplicate.
func (r *Repository) CreateListing(ctx context.Context, listing *Listing, hours []HourRow, services []ServiceRow) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}

	defer func() {
		_ = tx.Rollback()
	}()

	id := uuid.New().String()
	now := time.Now().UTC()

	const insertListing = `INSERT INTO listings
		(id, owner_id, business_name, category, description, address, city, state, zip,
		phone, email, website, image_url, is_published, dedupe_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''), FALSE, $14, $15, $15)`

	_, err = tx.ExecContext(ctx, insertListing,
		id, listing.OwnerID, listing.BusinessName, listing.Category, listing.Description,
		listing.Address, listing.City, listing.State, listing.Zip,
		listing.Phone, listing.Email, listing.Website, listing.ImageURL,
		listing.DedupeKey, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrDuplicate
		}

		return "", err
	}

	const insertHour = `INSERT INTO business_hours
		(listing_id, day_of_week, open_time, close_time, closed)
		VALUES ($1, $2, $3, $4, $5)`

	for _, h := range hours {
		if _, err := tx.ExecContext(ctx, insertHour, id, h.DayOfWeek, h.Open, h.Close, h.Closed); err != nil {
			return "", fmt.Errorf("failed to insert hours for day %d: %w", h.DayOfWeek, err)
		}
	}

	const insertService = `INSERT INTO business_services
		(listing_id, name, description, price, price_unit, display_order)
		VALUES ($1, $2, $3, $4, $5, $6)`

	for _, s := range services {
		if _, err := tx.ExecContext(ctx, insertService, id, s.Name, s.Description, s.Price, s.PriceUnit, s.DisplayOrder); err != nil {
			return "", fmt.Errorf("failed to insert service %q: %w", s.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	return id, nil
}

// UpdateListing refreshes an existing listing in place. Child records are
// deliberately untouched: the update path of an import only replaces the
// listing's own fields, and the image only when a new one was resolved.
func (r *Repository) UpdateListing(ctx context.Context, id string, listing *Listing) error {
	const q = `UPDATE listings SET
		category = $2, description = $3, address = $4, city = $5, state = $6, zip = $7,
		phone = $8, email = $9, website = $10,
		image_url = COALESCE(NULLIF($11, ''), image_url),
		updated_at = $12
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, q,
		id, listing.Category, listing.Description,
		listing.Address, listing.City, listing.State, listing.Zip,
		listing.Phone, listing.Email, listing.Website, listing.ImageURL,
		time.Now().UTC(),
	)
	if err != nil {
		return err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

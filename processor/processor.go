// Package processor implements the server side of the bulk import: duplicate
// resolution, logo handling and persistence, one batch at a time.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rentdir/bulk-importer/config"
	"github.com/rentdir/bulk-importer/deduper"
	"github.com/rentdir/bulk-importer/fetchers"
	"github.com/rentdir/bulk-importer/importer"
	"github.com/rentdir/bulk-importer/postgres"
)

const RoleAdmin = "admin"

const (
	defaultRowConcurrency = 1
	defaultLogoDelay      = 200 * time.Millisecond
)

// ErrUnauthorized aborts a whole batch before any row is touched.
var ErrUnauthorized = errors.New("administrator role required")

// ErrUnknownPolicy rejects a batch whose duplicate handling policy is not recognized.
var ErrUnknownPolicy = errors.New("unknown duplicate handling policy")

// Identity is the authenticated caller on whose behalf a batch is imported.
type Identity struct {
	AccountID string
	Role      string
}

// Repository is the listing storage consumed by the processor.
type Repository interface {
	FindByBusinessName(ctx context.Context, name string) ([]postgres.Listing, error)
	CreateListing(ctx context.Context, listing *postgres.Listing, hours []postgres.HourRow, services []postgres.ServiceRow) (string, error)
	UpdateListing(ctx context.Context, id string, listing *postgres.Listing) error
}

// ImageStore persists resolved logo bytes and exposes their public URL.
type ImageStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) error
	PublicURL(key string) string
}

type Processor struct {
	repo    Repository
	images  ImageStore
	fetcher fetchers.LogoFetcher
	cfg     *config.Service
	lg      *zap.Logger
}

// New creates a processor. images, fetcher and cfg may be nil: without an
// image store logos are skipped, without a config service the defaults apply.
func New(repo Repository, images ImageStore, fetcher fetchers.LogoFetcher, cfg *config.Service, lg *zap.Logger) *Processor {
	if lg == nil {
		lg = zap.NewNop()
	}

	return &Processor{
		repo:    repo,
		images:  images,
		fetcher: fetcher,
		cfg:     cfg,
		lg:      lg,
	}
}

type rowOutcome struct {
	failed bool
	msg    string
}

// ProcessBatch imports every row of a batch and returns the tally. The admin
// role is verified once per call, before any row is touched. Rows run through
// a bounded worker pool (size 1 by default, tunable via config) and the
// results keep input order; a failing row never affects its siblings.
func (p *Processor) ProcessBatch(ctx context.Context, rows []importer.Row, opts importer.BatchOptions, identity Identity) (importer.BatchResult, error) {
	if identity.Role != RoleAdmin {
		return importer.BatchResult{}, ErrUnauthorized
	}

	if opts.DuplicateHandling == "" {
		opts.DuplicateHandling = importer.DuplicateSkip
	}

	if opts.DuplicateHandling != importer.DuplicateSkip && opts.DuplicateHandling != importer.DuplicateUpdate {
		return importer.BatchResult{}, fmt.Errorf("%w %q", ErrUnknownPolicy, opts.DuplicateHandling)
	}

	concurrency, logoDelay := p.settings(ctx)
	outcomes := make([]rowOutcome, len(rows))
	seen := deduper.New()

	g := &errgroup.Group{}
	g.SetLimit(concurrency)

	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			outcomes[i] = p.processRow(ctx, row, opts, identity, seen, logoDelay)

			return nil
		})
	}

	_ = g.Wait()

	result := importer.BatchResult{}

	for i, out := range outcomes {
		if out.failed {
			result.Failed++
			result.Errors = append(result.Errors, importer.RowError{Row: i + 1, Error: out.msg})
		} else {
			result.Successful++
		}
	}

	p.lg.Info("batch processed",
		zap.Int("rows", len(rows)),
		zap.Int("successful", result.Successful),
		zap.Int("failed", result.Failed),
		zap.String("duplicate_handling", opts.DuplicateHandling),
	)

	return result, nil
}

func (p *Processor) processRow(ctx context.Context, row importer.Row, opts importer.BatchOptions, identity Identity, seen deduper.Deduper, logoDelay time.Duration) (out rowOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = rowOutcome{failed: true, msg: fmt.Sprintf("row processing panicked: %v", r)}
		}
	}()

	fullAddress := row.FullAddress()
	key := deduper.Key(row.BusinessName, fullAddress)

	// Only keys that actually persisted count as seen, so a row repeated after
	// a failed sibling still gets its own attempt against the store.
	if opts.DuplicateHandling == importer.DuplicateSkip && seen.Exists(ctx, key) {
		return rowOutcome{failed: true, msg: importer.DuplicateSkippedMessage}
	}

	existing, err := p.repo.FindByBusinessName(ctx, row.BusinessName)
	if err != nil {
		return rowOutcome{failed: true, msg: fmt.Sprintf("duplicate check failed: %v", err)}
	}

	var match *postgres.Listing

	for i := range existing {
		if deduper.MatchAddress(storedFullAddress(&existing[i]), fullAddress) {
			match = &existing[i]

			break
		}
	}

	if match != nil && opts.DuplicateHandling == importer.DuplicateSkip {
		return rowOutcome{failed: true, msg: importer.DuplicateSkippedMessage}
	}

	var imageURL string

	if row.LogoURL != "" && !opts.SkipLogos {
		// A missing image must never fail an otherwise valid import.
		imageURL = p.resolveLogo(ctx, &row, logoDelay)
	}

	listing := &postgres.Listing{
		OwnerID:      identity.AccountID,
		BusinessName: row.BusinessName,
		Category:     row.Category,
		Description:  row.Description,
		Address:      row.Address,
		City:         row.City,
		State:        row.State,
		Zip:          row.Zip,
		Phone:        row.Phone,
		Email:        row.Email,
		Website:      row.Website,
		ImageURL:     imageURL,
		DedupeKey:    key,
	}

	if match != nil {
		if err := p.repo.UpdateListing(ctx, match.ID, listing); err != nil {
			return rowOutcome{failed: true, msg: fmt.Sprintf("update failed: %v", err)}
		}

		seen.AddIfNotExists(ctx, key)

		return rowOutcome{}
	}

	hours := p.hourRows(&row)
	services := p.serviceRows(&row)

	_, err = p.repo.CreateListing(ctx, listing, hours, services)
	if err != nil {
		if errors.Is(err, postgres.ErrDuplicate) {
			// The unique constraint caught what the pre-check missed.
			if opts.DuplicateHandling == importer.DuplicateUpdate {
				out := p.updateAfterConstraint(ctx, listing, fullAddress)
				if !out.failed {
					seen.AddIfNotExists(ctx, key)
				}

				return out
			}

			return rowOutcome{failed: true, msg: importer.DuplicateSkippedMessage}
		}

		return rowOutcome{failed: true, msg: fmt.Sprintf("insert failed: %v", err)}
	}

	seen.AddIfNotExists(ctx, key)

	return rowOutcome{}
}

// updateAfterConstraint handles the race where a listing appeared between the
// pre-check and the insert while the policy asks for updates.
func (p *Processor) updateAfterConstraint(ctx context.Context, listing *postgres.Listing, fullAddress string) rowOutcome {
	existing, err := p.repo.FindByBusinessName(ctx, listing.BusinessName)
	if err != nil {
		return rowOutcome{failed: true, msg: fmt.Sprintf("duplicate re-check failed: %v", err)}
	}

	for i := range existing {
		if deduper.MatchAddress(storedFullAddress(&existing[i]), fullAddress) {
			if err := p.repo.UpdateListing(ctx, existing[i].ID, listing); err != nil {
				return rowOutcome{failed: true, msg: fmt.Sprintf("update failed: %v", err)}
			}

			return rowOutcome{}
		}
	}

	return rowOutcome{failed: true, msg: importer.DuplicateSkippedMessage}
}

func (p *Processor) hourRows(row *importer.Row) []postgres.HourRow {
	if row.HoursJSON == "" {
		return nil
	}

	hours, problems := importer.ParseHours(row.HoursJSON)

	for _, problem := range problems {
		p.lg.Warn("skipping malformed hours entry",
			zap.String("business_name", row.BusinessName),
			zap.String("problem", problem),
		)
	}

	var out []postgres.HourRow

	for idx, day := range importer.DayNames() {
		dh, ok := hours[day]
		if !ok {
			continue
		}

		out = append(out, postgres.HourRow{
			DayOfWeek: idx,
			Open:      dh.Open,
			Close:     dh.Close,
			Closed:    dh.Closed,
		})
	}

	return out
}

func (p *Processor) serviceRows(row *importer.Row) []postgres.ServiceRow {
	if row.ServicesJSON == "" {
		return nil
	}

	services, problems := importer.ParseServices(row.ServicesJSON)

	for _, problem := range problems {
		p.lg.Warn("skipping malformed service entry",
			zap.String("business_name", row.BusinessName),
			zap.String("problem", problem),
		)
	}

	out := make([]postgres.ServiceRow, 0, len(services))

	for i, svc := range services {
		out = append(out, postgres.ServiceRow{
			Name:         svc.Name,
			Description:  svc.Description,
			Price:        decimal.NewFromFloat(svc.Price),
			PriceUnit:    svc.Unit,
			DisplayOrder: i,
		})
	}

	return out
}

func (p *Processor) settings(ctx context.Context) (concurrency int, logoDelay time.Duration) {
	concurrency = defaultRowConcurrency
	logoDelay = defaultLogoDelay

	if p.cfg == nil {
		return concurrency, logoDelay
	}

	if v, err := p.cfg.GetInt(ctx, config.KeyRowConcurrency, defaultRowConcurrency); err == nil && v > 0 {
		concurrency = v
	}

	if v, err := p.cfg.GetDuration(ctx, config.KeyLogoDelayMs, time.Millisecond, defaultLogoDelay); err == nil && v >= 0 {
		logoDelay = v
	}

	return concurrency, logoDelay
}

func storedFullAddress(l *postgres.Listing) string {
	return l.Address + ", " + l.City + ", " + l.State + " " + l.Zip
}

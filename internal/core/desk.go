// Package core ties the storage, credential, view and schedule layers
// together behind one facade the CLI drives.
package core

import (
	"context"
	"errors"
	"path/filepath"

	"go.uber.org/zap"

	"examdesk/internal/audit"
	"examdesk/internal/config"
	"examdesk/internal/credentials"
	"examdesk/internal/schedule"
	"examdesk/internal/tablefile"
	"examdesk/internal/tables"
	"examdesk/internal/view"
)

// AuthResult is the outcome of an Authenticate call.
type AuthResult int

const (
	// AuthInvalid means the secret does not grant access.
	AuthInvalid AuthResult = iota
	// AuthFirstLogin means no secret is set and the bootstrap secret was
	// presented; the caller must set a real one before anything else.
	AuthFirstLogin
	// AuthSuccess means the stored secret matched.
	AuthSuccess
)

func (r AuthResult) String() string {
	switch r {
	case AuthFirstLogin:
		return "first_login"
	case AuthSuccess:
		return "success"
	default:
		return "invalid"
	}
}

const auditFileName = "audit_log.jsonl"

// Desk is the facade over one data directory.
type Desk struct {
	cfg   *config.Config
	ch    *tablefile.Channel
	creds *credentials.Store
	views *view.Assembler
	trail *audit.Trail
	log   *zap.Logger
}

// NewDesk wires a desk over the configured data directory. Close must
// be called when done.
func NewDesk(cfg *config.Config, log *zap.Logger) (*Desk, error) {
	if log == nil {
		log = zap.NewNop()
	}
	ch := tablefile.NewChannel(log.Named("tablefile"))

	trail, err := audit.Open(filepath.Join(cfg.Storage.Dir, auditFileName), log.Named("audit"))
	if err != nil {
		return nil, err
	}

	return &Desk{
		cfg:   cfg,
		ch:    ch,
		creds: credentials.NewStore(ch, cfg.CredentialsPath(), cfg.Auth.BcryptCost),
		views: view.NewAssembler(ch, view.Sources{
			Dir:               cfg.Storage.Dir,
			Roster:            cfg.RosterPath(),
			Catalog:           cfg.CatalogPath(),
			PlacementDeclared: cfg.Storage.PlacementSources,
			PlacementGlob:     cfg.Storage.PlacementGlob,
			Header:            cfg.Header(),
		}, log.Named("view")),
		trail: trail,
		log:   log,
	}, nil
}

// Close flushes and closes the audit trail.
func (d *Desk) Close() error {
	return d.trail.Close()
}

// Channel exposes the storage channel for callers that run their own
// table operations.
func (d *Desk) Channel() *tablefile.Channel { return d.ch }

// Authenticate checks a candidate secret for key. A student with no
// stored secret presenting the configured bootstrap secret gets
// AuthFirstLogin; any other candidate for such a student is invalid.
func (d *Desk) Authenticate(ctx context.Context, key, secret string) (AuthResult, error) {
	if err := ctx.Err(); err != nil {
		return AuthInvalid, err
	}
	key = tables.NormalizeKey(key)

	status, err := d.creds.Verify(key, secret)
	if err != nil {
		return AuthInvalid, err
	}
	switch status {
	case credentials.StatusMatch:
		return AuthSuccess, nil
	case credentials.StatusUnset:
		if secret == d.cfg.Auth.DefaultSecret {
			d.log.Info("bootstrap login", zap.String("key", key))
			return AuthFirstLogin, nil
		}
		return AuthInvalid, nil
	default:
		return AuthInvalid, nil
	}
}

// SetPassword stores a new secret for key and audits the change.
func (d *Desk) SetPassword(ctx context.Context, key, newSecret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if newSecret == "" {
		return errors.New("empty secret")
	}
	key = tables.NormalizeKey(key)

	if err := d.creds.Upsert(key, newSecret); err != nil {
		return err
	}
	opID, err := d.trail.Record(audit.OpSetPassword, key, "")
	if err != nil {
		d.log.Warn("audit write failed", zap.Error(err))
		return nil
	}
	d.log.Info("secret updated", zap.String("key", key), zap.String("op", opID))
	return nil
}

// View assembles the per-student schedule view for key.
func (d *Desk) View(ctx context.Context, key string) ([]view.Row, error) {
	return d.views.Assemble(ctx, tables.NormalizeKey(key))
}

// scheduleSources maps the configuration onto the schedule package's
// source set.
func (d *Desk) scheduleSources() schedule.Sources {
	return schedule.Sources{
		Dir:               d.cfg.Storage.Dir,
		Roster:            d.cfg.RosterPath(),
		Catalog:           d.cfg.CatalogPath(),
		Rooms:             d.cfg.RoomsPath(),
		PlacementDeclared: d.cfg.Storage.PlacementSources,
		PlacementGlob:     d.cfg.Storage.PlacementGlob,
		Header:            d.cfg.Header(),
	}
}

// Allocate seats every session in the catalog and audits the run.
func (d *Desk) Allocate(ctx context.Context) ([]string, error) {
	written, err := schedule.NewAllocator(d.ch, d.scheduleSources(), d.log.Named("schedule")).AllocateAll(ctx)
	if len(written) > 0 {
		detail := filepath.Base(written[0])
		if len(written) > 1 {
			detail = detail + " ..."
		}
		if _, aerr := d.trail.Record(audit.OpAllocate, "", detail); aerr != nil {
			d.log.Warn("audit write failed", zap.Error(aerr))
		}
	}
	return written, err
}

// Conflicts runs the double-booking report over every placement source.
func (d *Desk) Conflicts(ctx context.Context) ([]schedule.Conflict, map[string]tables.Test, error) {
	conflicts, err := schedule.NewScanner(d.ch, d.scheduleSources(), d.log.Named("schedule")).Conflicts(ctx)
	if err != nil {
		return nil, nil, err
	}
	catalog, err := tables.NewCatalog(d.ch, d.cfg.CatalogPath(), d.cfg.Header()).Map()
	if err != nil {
		return nil, nil, err
	}
	return conflicts, catalog, nil
}

// Counts aggregates distinct students per test across the placement
// sources.
func (d *Desk) Counts(ctx context.Context) ([]schedule.CourseCount, error) {
	return schedule.NewScanner(d.ch, d.scheduleSources(), d.log.Named("schedule")).Counts(ctx)
}

// Import merges the cohort exports under dir into the roster table.
func (d *Desk) Import(ctx context.Context, dir string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := schedule.ImportRoster(d.ch, dir, d.cfg.RosterPath())
	if err != nil {
		return 0, err
	}
	if _, aerr := d.trail.Record(audit.OpImport, "", dir); aerr != nil {
		d.log.Warn("audit write failed", zap.Error(aerr))
	}
	return n, nil
}

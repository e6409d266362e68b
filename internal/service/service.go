// Package service is the tenant-scoped core: every read and write the
// presentation layer, report generator and dispatcher perform goes through a
// *Service method that takes an explicit TenantContext.
package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"regtrack/internal/apperr"
	"regtrack/internal/database"
	"regtrack/internal/metrics"
	"regtrack/internal/models"
)

// TenantContext identifies the caller of a tenant-scoped operation. ActorID is
// the local user id; its role is re-read on every call.
type TenantContext struct {
	TenantID uint
	ActorID  uint
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the wall clock; tests use it to pin due dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(db *gorm.DB, opts ...Option) *Service {
	s := &Service{
		db:  db,
		log: zap.NewNop(),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) clock() time.Time {
	return s.now().UTC()
}

// inTx runs fn in one transaction and maps store failures onto the error
// taxonomy. Audit and notification rows written by fn commit with it.
func (s *Service) inTx(ctx context.Context, op string, fn func(tx *gorm.DB) error) error {
	start := time.Now()
	err := translate(s.db.WithContext(ctx).Transaction(fn))
	s.observe(op, start, err)
	return err
}

func (s *Service) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		code := apperr.CodeOf(err)
		outcome = string(code)
		if code == apperr.CodeInternal {
			s.log.Error("operation failed", zap.String("operation", op), zap.Error(err))
		} else {
			s.log.Debug("operation rejected", zap.String("operation", op), zap.String("code", outcome), zap.Error(err))
		}
	}
	s.metrics.ObserveOperation(op, outcome, start)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case apperr.IsCoded(err):
		return err
	case database.IsUniqueViolation(err):
		return apperr.Wrap(err, apperr.CodeUniqueness, "record already exists")
	case database.IsForeignKeyViolation(err):
		return apperr.Wrap(err, apperr.CodeReferential, "referenced record does not exist")
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.Wrap(err, apperr.CodeNotFound, "record not found")
	default:
		return apperr.Wrap(err, apperr.CodeInternal, "store failure")
	}
}

// ====== AUTHORIZATION ======

type permission int

const (
	permRead permission = iota
	permWrite
	permAdmin
	permAudit
)

// actor is the caller as loaded inside the current transaction.
type actor struct {
	user   models.User
	tenant models.Tenant
}

func (a *actor) userID() *uint {
	id := a.user.ID
	return &id
}

func (a *actor) audit(tx *gorm.DB, entity string, entityID uint, action string, details map[string]any) error {
	return database.AppendAudit(tx, a.tenant.ID, a.userID(), entity, entityID, action, details)
}

// authorize re-reads tenant and actor on tx and checks perm against the
// actor's current role.
func (s *Service) authorize(tx *gorm.DB, tc TenantContext, perm permission) (*actor, error) {
	var tenant models.Tenant
	if err := tx.First(&tenant, tc.TenantID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Newf(apperr.CodeNotFound, "tenant %d not found", tc.TenantID)
		}
		return nil, err
	}

	user, err := load[models.User](tx, tc.TenantID, tc.ActorID, "user")
	if err != nil {
		if apperr.HasCode(err, apperr.CodeNotFound) {
			return nil, apperr.New(apperr.CodeForbidden, "unknown actor")
		}
		return nil, err
	}

	var allowed bool
	switch perm {
	case permRead:
		allowed = user.Role.Valid()
	case permWrite:
		allowed = user.Role.CanWrite()
	case permAdmin:
		allowed = user.Role.CanAdminister()
	case permAudit:
		allowed = user.Role.CanReadAudit()
	}
	if !allowed {
		return nil, apperr.Newf(apperr.CodeForbidden, "role %s may not perform this operation", user.Role)
	}

	switch {
	case perm == permWrite && !tenant.IsActive():
		return nil, apperr.Newf(apperr.CodeForbidden, "tenant is %s", tenant.Status)
	case perm == permAdmin && tenant.Status == models.TenantClosed:
		return nil, apperr.New(apperr.CodeForbidden, "tenant is closed")
	}

	return &actor{user: *user, tenant: tenant}, nil
}

// ====== TENANT-SCOPED LOADERS ======

// fetch loads a tenant-owned row by id. A miss is probed without the tenant
// predicate so a row owned by another tenant surfaces as cross-tenant access
// rather than as absent.
func fetch[T any](tx *gorm.DB, tenantID, id uint, entity string, lock bool, missing apperr.Code) (*T, error) {
	q := tx.Scopes(database.TenantScope(tenantID))
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var row T
	err := q.First(&row, id).Error
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var n int64
	if err := tx.Model(new(T)).Where("id = ?", id).Count(&n).Error; err != nil {
		return nil, err
	}
	if n > 0 {
		return nil, apperr.Newf(apperr.CodeCrossTenant, "%s %d belongs to another tenant", entity, id)
	}
	return nil, apperr.Newf(missing, "%s %d not found", entity, id)
}

// load fetches the direct target of an operation.
func load[T any](tx *gorm.DB, tenantID, id uint, entity string) (*T, error) {
	return fetch[T](tx, tenantID, id, entity, false, apperr.CodeNotFound)
}

// loadForUpdate fetches a row whose state the caller is about to change.
func loadForUpdate[T any](tx *gorm.DB, tenantID, id uint, entity string) (*T, error) {
	return fetch[T](tx, tenantID, id, entity, true, apperr.CodeNotFound)
}

// ref checks an optional reference held by a row being written.
func ref[T any](tx *gorm.DB, tenantID uint, id *uint, entity string) error {
	if id == nil {
		return nil
	}
	_, err := fetch[T](tx, tenantID, *id, entity, false, apperr.CodeReferential)
	return err
}

func requirementRef(tx *gorm.DB, id *uint) error {
	if id == nil {
		return nil
	}
	var n int64
	if err := tx.Model(&models.Requirement{}).Where("id = ?", *id).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return apperr.Newf(apperr.CodeReferential, "requirement %d not found", *id)
	}
	return nil
}

func notify(tx *gorm.DB, tenantID uint, kind models.NotificationKind, entity string, entityID uint, payload map[string]any) error {
	n := models.Notification{
		TenantID: tenantID,
		Kind:     kind,
		Entity:   entity,
		EntityID: entityID,
		Payload:  datatypes.JSONMap(payload),
	}
	return tx.Create(&n).Error
}

func scoped(tx *gorm.DB, tenantID uint) *gorm.DB {
	return tx.Scopes(database.TenantScope(tenantID))
}

func validEnum(ok bool, field string, v any) error {
	if ok {
		return nil
	}
	return apperr.Newf(apperr.CodeValidation, "invalid %s %q", field, v)
}

func requireText(field, v string) error {
	if v == "" {
		return apperr.Newf(apperr.CodeValidation, "%s is required", field)
	}
	return nil
}

func badTransition(entity string, from, to any) error {
	return apperr.Newf(apperr.CodeInvalidTransition, "%s cannot move from %v to %v", entity, from, to)
}

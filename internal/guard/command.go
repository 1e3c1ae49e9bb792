package guard

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"time"

	"github.com/odyssey-erp/rowguard/internal/access"
	"github.com/odyssey-erp/rowguard/internal/identity"
	"github.com/odyssey-erp/rowguard/internal/policy"
	"github.com/odyssey-erp/rowguard/internal/store"
)

// ErrNilEntity is returned when a write is issued without an entity.
var ErrNilEntity = errors.New("guard: nil entity")

// Outcome labels a write decision.
type Outcome string

const (
	OutcomeAllowed     Outcome = "allowed"
	OutcomeDenied      Outcome = "denied"
	OutcomeBypass      Outcome = "bypass"
	OutcomeUnprotected Outcome = "unprotected"
)

// Observer is told about every write decision.
type Observer interface {
	ObserveDecision(entity string, op access.Operation, outcome Outcome)
}

// Denial describes a rejected write for auditing.
type Denial struct {
	IdentityID int64
	Entity     string
	Operation  access.Operation
	Required   access.Rights
	At         time.Time
}

// DenialRecorder persists denials. Recording failures are logged and never change the result.
type DenialRecorder interface {
	RecordDenial(ctx context.Context, d Denial) error
}

// Option configures Commands.
type Option func(*Commands)

// WithLogger sets the logger used for decisions.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Commands) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithObserver sets the decision observer.
func WithObserver(o Observer) Option {
	return func(c *Commands) { c.observer = o }
}

// WithDenialRecorder sets the denial recorder.
func WithDenialRecorder(r DenialRecorder) Option {
	return func(c *Commands) { c.recorder = r }
}

// WriteOption configures a single write.
type WriteOption func(*writeOptions)

type writeOptions struct {
	persist bool
}

// WithPersist commits the unit of work right after staging when persist is true.
func WithPersist(persist bool) WriteOption {
	return func(o *writeOptions) { o.persist = persist }
}

// Commands is the secured write side of a unit of work.
type Commands struct {
	session     store.Session
	facts       identity.Facts
	requirement *access.Requirement
	policies    *policy.Registry
	logger      *slog.Logger
	observer    Observer
	recorder    DenialRecorder
	now         func() time.Time
}

// NewCommands builds the write side. facts defaults to anonymous, requirement to a fresh one.
func NewCommands(session store.Session, facts identity.Facts, requirement *access.Requirement, policies *policy.Registry, opts ...Option) *Commands {
	if facts == nil {
		facts = identity.Anonymous()
	}
	if requirement == nil {
		requirement = access.NewRequirement()
	}
	c := &Commands{
		session:     session,
		facts:       facts,
		requirement: requirement,
		policies:    policies,
		logger:      discardLogger(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Insert authorizes and stages obj for insertion.
func (c *Commands) Insert(ctx context.Context, obj any, opts ...WriteOption) error {
	return c.write(ctx, obj, access.Insert, c.session.Add, opts)
}

// Update authorizes and stages obj for update.
func (c *Commands) Update(ctx context.Context, obj any, opts ...WriteOption) error {
	return c.write(ctx, obj, access.Update, c.session.Update, opts)
}

// Delete authorizes and stages obj for removal.
func (c *Commands) Delete(ctx context.Context, obj any, opts ...WriteOption) error {
	return c.write(ctx, obj, access.Delete, c.session.Remove, opts)
}

// Save commits every staged mutation of the unit of work.
func (c *Commands) Save(ctx context.Context) error {
	return c.session.Commit(ctx)
}

func (c *Commands) write(ctx context.Context, obj any, op access.Operation, stage func(context.Context, any) error, opts []WriteOption) error {
	defer c.requirement.Reset()

	if obj == nil {
		return ErrNilEntity
	}
	if v := reflect.ValueOf(obj); v.Kind() == reflect.Pointer && v.IsNil() {
		return ErrNilEntity
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.requirement.IsExplicit() {
		// ReadWrite is never None.
		_ = c.requirement.Set(access.ReadWrite)
	}
	level := c.requirement.Level()
	typ := store.EntityType(obj)

	allowed, outcome, err := c.authorize(ctx, obj, op, level)
	if err != nil {
		return err
	}
	if c.observer != nil {
		c.observer.ObserveDecision(typ.String(), op, outcome)
	}
	if !allowed {
		denied := &access.DeniedError{Entity: typ.String(), Operation: op, IdentityID: c.facts.ID(), Required: level}
		c.logger.Warn("guard: write denied",
			slog.String("entity", denied.Entity),
			slog.String("operation", op.String()),
			slog.Int64("identity_id", denied.IdentityID),
			slog.String("required", level.String()))
		c.recordDenial(ctx, denied)
		return denied
	}
	c.logger.Debug("guard: write authorized",
		slog.String("entity", typ.String()),
		slog.String("operation", op.String()),
		slog.String("outcome", string(outcome)))

	if err := stage(ctx, obj); err != nil {
		return err
	}

	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.persist {
		return c.Save(ctx)
	}
	return nil
}

func (c *Commands) authorize(ctx context.Context, obj any, op access.Operation, level access.Rights) (bool, Outcome, error) {
	if c.facts.HasRole(identity.RoleSuperAdmin) {
		return true, OutcomeBypass, nil
	}
	check, ok := c.policies.Authorizer(store.EntityType(obj))
	if !ok {
		return true, OutcomeUnprotected, nil
	}
	allowed, err := check(ctx, obj, c.facts.ID(), op, level)
	if err != nil {
		return false, "", err
	}
	if !allowed {
		return false, OutcomeDenied, nil
	}
	return true, OutcomeAllowed, nil
}

func (c *Commands) recordDenial(ctx context.Context, denied *access.DeniedError) {
	if c.recorder == nil {
		return
	}
	err := c.recorder.RecordDenial(ctx, Denial{
		IdentityID: denied.IdentityID,
		Entity:     denied.Entity,
		Operation:  denied.Operation,
		Required:   denied.Required,
		At:         c.now().UTC(),
	})
	if err != nil {
		c.logger.Error("guard: record denial", slog.Any("error", err))
	}
}

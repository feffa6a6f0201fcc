// Package engine is the write-side of the order book: it loads orders,
// validates transitions, applies them in a transaction and appends the audit
// entry, then hands the committed document to the backup scheduler.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/facumancuso/minoil/internal/backup"
	"github.com/facumancuso/minoil/internal/domain"
	"github.com/facumancuso/minoil/internal/metrics"
	"github.com/facumancuso/minoil/internal/repo"
	"github.com/facumancuso/minoil/internal/timeline"
	"github.com/facumancuso/minoil/internal/workflow"
)

// CreationNote is the audit note every new order starts with.
const CreationNote = "Order created in the system."

const ordersCollection = "work_orders"

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Backup *backup.Scheduler
	Log    zerolog.Logger
	Now    func() time.Time
}

func New(db *sql.DB, bk *backup.Scheduler, log zerolog.Logger) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Backup: bk,
		Log:    log,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// OrderCreateOptions are parameters for registering a work order.
type OrderCreateOptions struct {
	ID           string
	OrderNumber  string
	Client       string
	ClientID     string
	Component    string
	Brand        string
	SerialNumber string
	Equipment    string
	OrderType    domain.OrderType
	SpareParts   []domain.SparePart
	Solped       string

	// CreatedAt backdates the order for imported records; zero means now.
	CreatedAt                    time.Time
	EstimatedEvaluationStartDate *time.Time

	ActorID string
}

// CreateOrder registers a new order in the initial stage with its creation
// audit entry, atomically.
func (e Engine) CreateOrder(ctx context.Context, opts OrderCreateOptions) (domain.WorkOrder, error) {
	if opts.OrderNumber == "" {
		return domain.WorkOrder{}, errors.New("order number is required")
	}
	if opts.Client == "" {
		return domain.WorkOrder{}, errors.New("client is required")
	}
	if opts.OrderType == "" {
		opts.OrderType = domain.OrderTypeNormal
	}
	if opts.OrderType != domain.OrderTypeNormal && opts.OrderType != domain.OrderTypeWarranty {
		return domain.WorkOrder{}, fmt.Errorf("unknown order type %q", opts.OrderType)
	}
	id := opts.ID
	if id == "" {
		id = uuid.New().String()
	}
	createdAt := opts.CreatedAt
	if createdAt.IsZero() {
		createdAt = e.now()
	}
	o := domain.WorkOrder{
		ID:                           id,
		OrderNumber:                  opts.OrderNumber,
		Client:                       opts.Client,
		ClientID:                     opts.ClientID,
		Component:                    opts.Component,
		Brand:                        opts.Brand,
		SerialNumber:                 opts.SerialNumber,
		Equipment:                    opts.Equipment,
		OrderType:                    opts.OrderType,
		Status:                       domain.StageInitial,
		Progress:                     workflow.Progress(domain.StageInitial),
		CreatedAt:                    createdAt,
		UpdatedAt:                    createdAt,
		SpareParts:                   opts.SpareParts,
		Solped:                       opts.Solped,
		EstimatedEvaluationStartDate: opts.EstimatedEvaluationStartDate,
	}
	first := domain.StageLogEntry{
		Stage:     domain.StageInitial,
		Note:      CreationNote,
		Timestamp: createdAt,
		User:      actorOrSystem(opts.ActorID),
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertOrderTx(ctx, tx, o); err != nil {
		if isUniqueViolation(err) {
			return domain.WorkOrder{}, fmt.Errorf("order number %s already exists", o.OrderNumber)
		}
		return domain.WorkOrder{}, fmt.Errorf("insert order: %w", err)
	}
	if err := e.Repo.AppendNoteTx(ctx, tx, o.ID, first); err != nil {
		return domain.WorkOrder{}, fmt.Errorf("append creation note: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.WorkOrder{}, err
	}
	o.Notes = []domain.StageLogEntry{first}

	e.Log.Info().Str("order_id", o.ID).Str("order_number", o.OrderNumber).Msg("order created")
	e.scheduleBackup(o.ID)
	return o, nil
}

// ApplyTransition moves an order to the target stage. The payload is checked
// against the stage's requirement table before anything is written; rejection
// leaves the order byte-for-byte as it was. On success the order document and
// its new audit entry commit together.
func (e Engine) ApplyTransition(ctx context.Context, orderID string, target domain.Stage, p workflow.Payload, note, actorID string) (domain.WorkOrder, error) {
	o, err := e.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	if err := workflow.Validate(o.Status, target, p); err != nil {
		return o, err
	}

	at := e.now()
	if p.TransitionDate != nil {
		at = *p.TransitionDate
	}
	workflow.Apply(&o, target, p, at)
	o.UpdatedAt = e.now()

	entry := domain.StageLogEntry{
		Stage:     target,
		Note:      note,
		Timestamp: at,
		User:      actorOrSystem(actorID),
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return o, err
	}
	defer tx.Rollback()

	o, err = e.Repo.UpdateOrderTx(ctx, tx, o)
	if err != nil {
		return o, fmt.Errorf("update order: %w", err)
	}
	if err := e.Repo.AppendNoteTx(ctx, tx, o.ID, entry); err != nil {
		return o, fmt.Errorf("append transition note: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return o, err
	}
	o.Notes = append(o.Notes, entry)

	e.Log.Info().
		Str("order_id", o.ID).
		Str("order_number", o.OrderNumber).
		Str("status", string(target)).
		Str("actor", entry.User).
		Msg("order transitioned")
	e.scheduleBackup(o.ID)
	return o, nil
}

// AddNote appends a free-form audit entry under the order's current stage
// without changing any order field.
func (e Engine) AddNote(ctx context.Context, orderID, note, actorID string) (domain.WorkOrder, error) {
	if strings.TrimSpace(note) == "" {
		return domain.WorkOrder{}, errors.New("note is required")
	}
	o, err := e.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return domain.WorkOrder{}, err
	}
	entry := domain.StageLogEntry{
		Stage:     o.Status,
		Note:      note,
		Timestamp: e.now(),
		User:      actorOrSystem(actorID),
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return o, err
	}
	defer tx.Rollback()
	if err := e.Repo.AppendNoteTx(ctx, tx, o.ID, entry); err != nil {
		return o, err
	}
	if err := tx.Commit(); err != nil {
		return o, err
	}
	o.Notes = append(o.Notes, entry)
	e.scheduleBackup(o.ID)
	return o, nil
}

func (e Engine) GetOrder(ctx context.Context, id string) (domain.WorkOrder, error) {
	return e.Repo.GetOrder(ctx, id)
}

// ResolveOrder accepts either an order id or an order number.
func (e Engine) ResolveOrder(ctx context.Context, ref string) (domain.WorkOrder, error) {
	o, err := e.Repo.GetOrder(ctx, ref)
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return o, err
	}
	return e.Repo.GetOrderByNumber(ctx, ref)
}

func (e Engine) ListOrders(ctx context.Context) ([]domain.WorkOrder, error) {
	return e.Repo.ListOrders(ctx)
}

// DeleteOrder removes an order and, through the cascade, its audit log. The
// record is snapshotted to the backup directory first so the deletion is
// recoverable.
func (e Engine) DeleteOrder(ctx context.Context, orderID, actorID string) error {
	o, err := e.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if e.Backup != nil {
		if err := e.Backup.WriteOrderSnapshot(o); err != nil {
			return fmt.Errorf("snapshot before delete: %w", err)
		}
	}
	if err := e.Repo.DeleteOrder(ctx, o.ID); err != nil {
		return err
	}
	e.Log.Warn().
		Str("order_id", o.ID).
		Str("order_number", o.OrderNumber).
		Str("actor", actorOrSystem(actorID)).
		Msg("order deleted")
	return nil
}

// Timeline reconstructs the order's stage intervals, optionally clipped to a
// display window.
func (e Engine) Timeline(ctx context.Context, orderID string, from, to *time.Time) ([]domain.StageInterval, error) {
	o, err := e.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	intervals := timeline.Reconstruct(o, e.now())
	if from != nil || to != nil {
		lo := time.Time{}
		hi := e.now()
		if from != nil {
			lo = *from
		}
		if to != nil {
			hi = *to
		}
		intervals = timeline.Clip(intervals, lo, hi)
	}
	return intervals, nil
}

// CycleTimes aggregates phase averages and compliance across all orders.
func (e Engine) CycleTimes(ctx context.Context) (metrics.Report, error) {
	orders, err := e.Repo.ListOrders(ctx)
	if err != nil {
		return metrics.Report{}, err
	}
	return metrics.Aggregate(orders, e.now()), nil
}

func (e Engine) scheduleBackup(orderID string) {
	if e.Backup == nil {
		return
	}
	e.Backup.ScheduleIncremental(ordersCollection, orderID)
}

func actorOrSystem(actorID string) string {
	if actorID == "" {
		return domain.SystemUser
	}
	return actorID
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

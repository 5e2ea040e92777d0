package stock

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"stocktrack-backend/internal/models"
	"stocktrack-backend/internal/notify"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultMaxAttempts = 3
	followUpTimeout    = 10 * time.Second
)

// Publisher receives domain events after a movement commits. Publish must not
// block.
type Publisher interface {
	Publish(ev notify.Event)
}

// Engine applies stock movements. Every movement locks its product row, writes
// the new quantity and a ledger entry in one transaction, then checks for low
// stock and notifies operators off the caller's path.
type Engine struct {
	db          *gorm.DB
	events      Publisher
	log         *zap.Logger
	tracer      trace.Tracer
	now         func() time.Time
	maxAttempts int

	followUps sync.WaitGroup
}

type Option func(*Engine)

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMaxAttempts bounds how often a transaction is retried after losing a
// version race.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

func NewEngine(db *gorm.DB, events Publisher, log *zap.Logger, opts ...Option) *Engine {
	e := &Engine{
		db:          db,
		events:      events,
		log:         log,
		tracer:      otel.Tracer("stocktrack-backend/stock"),
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Adjust applies a single movement.
func (e *Engine) Adjust(ctx context.Context, actor models.Actor, req AdjustRequest) (*AdjustResult, error) {
	ctx, span := e.tracer.Start(ctx, "stock.adjust", trace.WithAttributes(
		attribute.String("product.id", req.ProductID),
		attribute.String("stock.change_type", req.ChangeType),
		attribute.Int("stock.quantity_requested", req.QuantityChanged),
	))
	defer span.End()

	mr, err := req.parse()
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var applied movement
	err = e.retry(func() error {
		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			products, err := lockProducts(tx, []uuid.UUID{mr.productID})
			if err != nil {
				return err
			}
			p, ok := products[mr.productID]
			if !ok {
				return &NotFoundError{Resource: "product", ID: mr.productID}
			}
			applied, err = e.apply(tx, p, actor, mr)
			return err
		})
	})
	if err != nil {
		err = e.classify("adjust stock", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("stock.quantity_before", applied.before),
		attribute.Int("stock.quantity_after", applied.after),
	)
	e.afterCommit(span.SpanContext(), actor, []movement{applied})

	res := applied.result()
	return &res, nil
}

// BulkAdjust applies up to MaxBulkItems movements in one transaction.
// Failing items are reported and skipped; if every item fails nothing is
// committed and a *BatchFailedError is returned.
func (e *Engine) BulkAdjust(ctx context.Context, actor models.Actor, req BulkAdjustRequest) (*BulkResult, error) {
	ctx, span := e.tracer.Start(ctx, "stock.bulk_adjust", trace.WithAttributes(
		attribute.Int("stock.items", len(req.Updates)),
	))
	defer span.End()

	if err := req.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var (
		out     *BulkResult
		applied []movement
	)
	err := e.retry(func() error {
		out = &BulkResult{Results: []BulkItemResult{}}
		applied = applied[:0]

		return e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			parsed := make([]movementRequest, len(req.Updates))
			parseErrs := make([]error, len(req.Updates))
			ids := make([]uuid.UUID, 0, len(req.Updates))
			for i, item := range req.Updates {
				parsed[i], parseErrs[i] = item.parse()
				if parseErrs[i] == nil {
					ids = append(ids, parsed[i].productID)
				}
			}

			products, err := lockProducts(tx, ids)
			if err != nil {
				return err
			}

			for i, item := range req.Updates {
				if parseErrs[i] != nil {
					out.Errors = append(out.Errors, itemError(i, item.ProductID, parseErrs[i]))
					continue
				}
				mr := parsed[i]
				p, ok := products[mr.productID]
				if !ok {
					out.Errors = append(out.Errors, itemError(i, item.ProductID, &NotFoundError{Resource: "product", ID: mr.productID}))
					continue
				}

				savepoint := fmt.Sprintf("bulk_item_%d", i)
				if err := tx.SavePoint(savepoint).Error; err != nil {
					return err
				}
				m, err := e.apply(tx, p, actor, mr)
				if errors.Is(err, errStaleVersion) {
					return err
				}
				if err != nil {
					var te *TransactionError
					if errors.As(err, &te) {
						if rbErr := tx.RollbackTo(savepoint).Error; rbErr != nil {
							return rbErr
						}
						e.log.Warn("bulk item rolled back",
							zap.Int("index", i),
							zap.String("product_id", mr.productID.String()),
							zap.Error(err),
						)
					}
					out.Errors = append(out.Errors, itemError(i, item.ProductID, err))
					continue
				}

				applied = append(applied, m)
				out.Results = append(out.Results, BulkItemResult{Index: i, AdjustResult: m.result(), Success: true})
			}

			if len(out.Results) == 0 {
				return &BatchFailedError{Errors: out.Errors}
			}
			return nil
		})
	})
	if err != nil {
		err = e.classify("bulk adjust stock", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("stock.succeeded", len(out.Results)),
		attribute.Int("stock.failed", len(out.Errors)),
	)
	e.afterCommit(span.SpanContext(), actor, append([]movement(nil), applied...))
	return out, nil
}

// Wait blocks until every post-commit follow-up has finished.
func (e *Engine) Wait() {
	e.followUps.Wait()
}

// afterCommit runs alert checks and notifications in the background. It holds
// no locks and its failures never reach the caller.
func (e *Engine) afterCommit(parent trace.SpanContext, actor models.Actor, moves []movement) {
	if len(moves) == 0 {
		return
	}
	e.followUps.Add(1)
	go func() {
		defer e.followUps.Done()

		ctx, cancel := context.WithTimeout(trace.ContextWithSpanContext(context.Background(), parent), followUpTimeout)
		defer cancel()

		checked := make(map[uuid.UUID]bool, len(moves))
		for _, m := range moves {
			e.publish(notify.NewInventoryUpdate(notify.InventoryUpdate{
				ProductID:       m.product.ID,
				ProductName:     m.product.Name,
				SKU:             m.product.SKU,
				QuantityBefore:  m.before,
				QuantityAfter:   m.after,
				ChangeType:      string(m.changeType),
				QuantityChanged: m.changed(),
				UpdatedBy:       actor.Name,
				Timestamp:       m.at,
			}))

			if checked[m.product.ID] {
				continue
			}
			checked[m.product.ID] = true

			issued, err := e.CheckLowStock(ctx, m.product.ID)
			if err != nil {
				e.log.Error("low stock check failed",
					zap.String("product_id", m.product.ID.String()),
					zap.String("actor_id", actor.ID.String()),
					zap.Error(err),
				)
				continue
			}
			if issued != nil {
				e.publish(notify.NewLowStockAlert(issued.event()))
			}
		}
	}()
}

func (e *Engine) publish(ev notify.Event) {
	if e.events == nil {
		return
	}
	e.events.Publish(ev)
}

func (e *Engine) retry(fn func() error) error {
	var err error
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		err = fn()
		if !errors.Is(err, errStaleVersion) {
			return err
		}
		e.log.Debug("stock version conflict, retrying", zap.Int("attempt", attempt))
	}
	return err
}

// classify passes domain errors through and wraps everything else.
func (e *Engine) classify(op string, err error) error {
	if IsClientError(err) {
		return err
	}
	var te *TransactionError
	if errors.As(err, &te) {
		return te
	}
	return &TransactionError{Op: op, Err: err}
}

func itemError(index int, productID string, err error) ItemError {
	return ItemError{Index: index, ProductID: productID, Message: err.Error(), Err: err}
}

// sortedUnique drops duplicate ids and sorts the rest so batches resolve
// deterministically. Lock order itself comes from the ORDER BY in lockProducts.
func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i][:], out[j][:]) < 0
	})
	return out
}

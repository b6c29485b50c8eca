package collection

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jyl/universe/internal/domain"
)

type opKind string

const (
	opLoad    opKind = "load"
	opInsert  opKind = "insert"
	opUpdate  opKind = "update"
	opDelete  opKind = "delete"
	opReorder opKind = "reorder"
)

// placeholderPrefix marks ids the list assigns to optimistic inserts
// until the row store returns the real id.
const placeholderPrefix = "local-"

func isPlaceholder(id string) bool {
	return strings.HasPrefix(id, placeholderPrefix)
}

// syncOp is the remote half of a list command.
type syncOp struct {
	kind   opKind
	seq    uint64
	rowIDs []string // cache rows marked pending until this op completes

	row    domain.Row    // insert
	id     string        // update, delete
	fields domain.Fields // update
	rows   []domain.Row  // reorder
}

type syncResult struct {
	op       syncOp
	inserted domain.Row
	fetched  []domain.Row
	err      error
}

// syncer executes the row store calls of one list in dispatch order on a
// single goroutine. Enqueue never blocks; results are delivered to the
// owning manager's actor.
type syncer struct {
	store     RowStore
	scope     string
	list      string
	results   chan<- syncResult
	opCtx     context.Context
	timeout   time.Duration
	telemetry *telemetry

	mu     sync.Mutex
	queue  []syncOp
	closed bool
	wake   chan struct{}
	quit   chan struct{}
	done   chan struct{}

	// placeholder id -> store id; only touched by the run goroutine.
	assigned map[string]string
}

func newSyncer(ctx context.Context, store RowStore, list, scope string, results chan<- syncResult, timeout time.Duration, tel *telemetry) *syncer {
	s := &syncer{
		store:     store,
		scope:     scope,
		list:      list,
		results:   results,
		opCtx:     context.WithoutCancel(ctx),
		timeout:   timeout,
		telemetry: tel,
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		assigned:  map[string]string{},
	}
	go s.run()
	return s
}

// enqueue appends op to the queue. Returns false once the syncer is closed.
func (s *syncer) enqueue(op syncOp) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, op)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// close stops accepting ops. Queued ops are still executed before done closes.
func (s *syncer) close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.quit)
	}
	s.mu.Unlock()
}

func (s *syncer) next() (syncOp, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return syncOp{}, false
	}
	op := s.queue[0]
	s.queue[0] = syncOp{}
	s.queue = s.queue[1:]
	return op, true
}

func (s *syncer) run() {
	defer close(s.done)

	for {
		if op, ok := s.next(); ok {
			s.results <- s.execute(op)
			continue
		}

		select {
		case <-s.wake:
		case <-s.quit:
			for {
				op, ok := s.next()
				if !ok {
					return
				}
				s.results <- s.execute(op)
			}
		}
	}
}

func (s *syncer) execute(op syncOp) (res syncResult) {
	res.op = op

	ctx, cancel := s.operationContext()
	defer cancel()

	ctx, span := s.telemetry.tracer.Start(ctx, "collection.sync."+string(op.kind),
		trace.WithAttributes(
			attribute.String("list", s.list),
			attribute.Int("rows", len(op.rowIDs)),
		))
	start := time.Now()
	defer func() {
		s.telemetry.recordOperation(ctx, s.list, op.kind, start, res.err)
		if res.err != nil {
			span.RecordError(res.err)
			span.SetStatus(codes.Error, res.err.Error())
		}
		span.End()
	}()

	switch op.kind {
	case opLoad:
		res.fetched, res.err = s.store.List(ctx, s.scope)

	case opInsert:
		res.inserted, res.err = s.store.Insert(ctx, op.row)
		if res.err == nil {
			s.assigned[op.row.ID] = res.inserted.ID
		}

	case opUpdate:
		var id string
		if id, res.err = s.resolve(op.id); res.err == nil {
			res.err = s.store.UpdateFields(ctx, id, op.fields)
		}

	case opDelete:
		var id string
		if id, res.err = s.resolve(op.id); res.err == nil {
			res.err = s.store.DeleteByID(ctx, id)
		}

	case opReorder:
		res.err = s.upsertResolved(ctx, op.rows)

	default:
		res.err = fmt.Errorf("unknown sync operation %q", op.kind)
	}

	if res.err != nil {
		slog.WarnContext(ctx, "row store operation failed",
			slog.String("list", s.list),
			slog.String("operation", string(op.kind)),
			slog.Uint64("seq", op.seq),
			slog.String("error", res.err.Error()))
	}

	return res
}

// upsertResolved writes every row whose id is known to the store. Rows
// whose optimistic insert never completed are skipped and reported so the
// manager reconciles.
func (s *syncer) upsertResolved(ctx context.Context, rows []domain.Row) error {
	resolved := make([]domain.Row, 0, len(rows))
	var unresolved []string
	for _, r := range rows {
		id, err := s.resolve(r.ID)
		if err != nil {
			unresolved = append(unresolved, r.ID)
			continue
		}
		resolved = append(resolved, r.WithID(id))
	}

	if len(resolved) > 0 {
		if err := s.store.UpsertMany(ctx, resolved); err != nil {
			return err
		}
	}
	if len(unresolved) > 0 {
		return fmt.Errorf("%w: inserts never completed for %s", domain.ErrRowNotFound, strings.Join(unresolved, ", "))
	}
	return nil
}

func (s *syncer) resolve(id string) (string, error) {
	if real, ok := s.assigned[id]; ok {
		return real, nil
	}
	if isPlaceholder(id) {
		return "", fmt.Errorf("%w: insert of %s never completed", domain.ErrRowNotFound, id)
	}
	return id, nil
}

// operationContext bounds one store call. Zero timeout means none.
func (s *syncer) operationContext() (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(s.opCtx, s.timeout)
	}
	return context.WithCancel(s.opCtx)
}

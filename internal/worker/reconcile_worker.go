package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"minishop/internal/model"
	"minishop/internal/reconcile"
	"minishop/internal/service"
)

// notifiedRetention keeps dedup markers well past the point where an
// archived order could trigger another notification.
const notifiedRetention = 24 * time.Hour

type OrderStore interface {
	List(ctx context.Context) ([]model.Order, error)
	SetStatus(ctx context.Context, id string, status model.OrderStatus) error
	Import(ctx context.Context, o model.Order) error
	NotifiedIDs(ctx context.Context) (map[string]struct{}, error)
	MarkNotified(ctx context.Context, id string) error
	PruneNotified(ctx context.Context, before time.Time) error
}

type RemoteStore interface {
	FetchStats(ctx context.Context) (*service.Snapshot, error)
	UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) error
}

type Notifier interface {
	Send(ctx context.Context, text string) error
}

// ReconcileWorker merges the local order cache with the sheet log on a
// fixed interval, converges statuses and archives abandoned orders.
type ReconcileWorker struct {
	store    OrderStore
	remote   RemoteStore
	notifier Notifier
	interval time.Duration
	expiry   time.Duration

	// guards against overlapping ticks: a tick that is still running when
	// the ticker fires again is skipped, not queued
	running sync.Mutex

	now func() time.Time
}

func NewReconcileWorker(store OrderStore, remote RemoteStore, notifier Notifier, interval time.Duration) *ReconcileWorker {
	return &ReconcileWorker{
		store:    store,
		remote:   remote,
		notifier: notifier,
		interval: interval,
		expiry:   reconcile.ExpiryThreshold,
		now:      time.Now,
	}
}

func (w *ReconcileWorker) Start(ctx context.Context) {
	slog.Info("starting reconcile worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reconcile worker stopped")
			return
		case <-ticker.C:
			if err := w.Tick(ctx); err != nil {
				slog.Error("reconcile tick failed", "error", err)
			}
		}
	}
}

// Tick runs one reconciliation pass. Errors from individual orders are
// logged and do not abort the rest of the pass; only a failure to read
// the local store aborts the tick.
func (w *ReconcileWorker) Tick(ctx context.Context) (err error) {
	if !w.running.TryLock() {
		slog.Warn("previous reconcile tick still running, skipping")
		return nil
	}
	defer w.running.Unlock()

	defer func() {
		// a panicking tick must not kill the timer loop
		if r := recover(); r != nil {
			err = fmt.Errorf("reconcile tick panicked: %v", r)
		}
	}()

	local, err := w.store.List(ctx)
	if err != nil {
		return fmt.Errorf("load local orders: %w", err)
	}

	notified, err := w.store.NotifiedIDs(ctx)
	if err != nil {
		return fmt.Errorf("load notified set: %w", err)
	}

	// a fetch failure means "no remote data this tick", not "remote is
	// empty": reconciliation proceeds on local data alone and the sheet
	// is retried on the next tick
	var remoteOrders []model.RemoteOrder
	snap, err := w.remote.FetchStats(ctx)
	if err != nil {
		slog.Warn("remote fetch failed, reconciling local data only", "error", err)
	} else {
		remoteOrders = snap.Orders
	}

	now := w.now()
	pairs := reconcile.MergeByID(local, remoteOrders)

	for _, p := range pairs {
		w.apply(ctx, p, now, notified)
	}

	if err := w.store.PruneNotified(ctx, now.Add(-notifiedRetention)); err != nil {
		slog.Error("prune notified set failed", "error", err)
	}

	return nil
}

func (w *ReconcileWorker) apply(ctx context.Context, p reconcile.Pair, now time.Time, notified map[string]struct{}) {
	id := p.ID()

	switch reconcile.Decide(p, now, w.expiry) {
	case reconcile.ActionMarkPaid:
		if err := w.persist(ctx, p, model.StatusPaid, now); err != nil {
			slog.Error("persist paid status failed", "order", id, "error", err)
			return
		}
		slog.Info("order paid", "order", id)

	case reconcile.ActionMarkFailed:
		if err := w.persist(ctx, p, model.StatusFailed, now); err != nil {
			slog.Error("persist failed status failed", "order", id, "error", err)
			return
		}
		slog.Info("order archived", "order", id)

		// the marker is written before dispatch so a repeated evaluation
		// can never send twice; a lost notification is accepted
		if _, seen := notified[id]; !seen {
			if err := w.store.MarkNotified(ctx, id); err != nil {
				slog.Error("mark notified failed", "order", id, "error", err)
				return
			}
			notified[id] = struct{}{}

			if err := w.notifier.Send(ctx, service.OrderFailedMessage(w.orderView(p, model.StatusFailed, now))); err != nil {
				slog.Warn("archive notification failed", "order", id, "error", err)
			}
			if err := w.remote.UpdateStatus(ctx, id, model.StatusFailed); err != nil {
				slog.Warn("remote status update failed", "order", id, "error", err)
			}
		}
	}
}

// persist converges the local store: an existing order gets the terminal
// status, a remote-only order is imported so the admin view reflects the
// full union durably.
func (w *ReconcileWorker) persist(ctx context.Context, p reconcile.Pair, status model.OrderStatus, now time.Time) error {
	if p.Local != nil {
		err := w.store.SetStatus(ctx, p.Local.ID, status)
		if errors.Is(err, service.ErrStatusFinal) {
			return nil
		}
		return err
	}
	return w.store.Import(ctx, w.orderView(p, status, now))
}

// orderView materializes the merged pair as a local order record.
func (w *ReconcileWorker) orderView(p reconcile.Pair, status model.OrderStatus, now time.Time) model.Order {
	if p.Local != nil {
		o := *p.Local
		o.Status = status
		return o
	}

	r := p.Remote
	created := now
	if r.Timestamp > 0 {
		created = time.UnixMilli(r.Timestamp)
	}
	return model.Order{
		ID:            reconcile.CanonicalID(r.ID),
		ProductTitle:  r.ProductTitle,
		Price:         r.Price,
		CustomerName:  r.CustomerName,
		CustomerEmail: r.CustomerEmail,
		CustomerPhone: r.CustomerPhone,
		TgUsername:    r.TgUsername,
		SourceTag:     r.SourceTag,
		Status:        status,
		CreatedAt:     created,
	}
}

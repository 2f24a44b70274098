package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minishop/internal/model"
	"minishop/internal/reconcile"
	"minishop/internal/service"
)

type fakeStore struct {
	mu       sync.Mutex
	orders   map[string]*model.Order
	seq      []string
	notified map[string]time.Time
	listErr  error
}

func newFakeStore(orders ...model.Order) *fakeStore {
	s := &fakeStore{
		orders:   make(map[string]*model.Order),
		notified: make(map[string]time.Time),
	}
	for i := range orders {
		o := orders[i]
		s.orders[o.ID] = &o
		s.seq = append(s.seq, o.ID)
	}
	return s
}

func (s *fakeStore) List(ctx context.Context) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []model.Order
	for _, id := range s.seq {
		out = append(out, *s.orders[id])
	}
	return out, nil
}

func (s *fakeStore) SetStatus(ctx context.Context, id string, status model.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return errors.New("order not found")
	}
	if o.Status.Terminal() {
		return service.ErrStatusFinal
	}
	o.Status = status
	return nil
}

func (s *fakeStore) Import(ctx context.Context, o model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return nil
	}
	s.orders[o.ID] = &o
	s.seq = append(s.seq, o.ID)
	return nil
}

func (s *fakeStore) NotifiedIDs(ctx context.Context) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]struct{}, len(s.notified))
	for id := range s.notified {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *fakeStore) MarkNotified(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified[id] = time.Now()
	return nil
}

func (s *fakeStore) PruneNotified(ctx context.Context, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, at := range s.notified {
		if at.Before(before) {
			delete(s.notified, id)
		}
	}
	return nil
}

func (s *fakeStore) status(id string) model.OrderStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.orders[id]; ok {
		return o.Status
	}
	return ""
}

type fakeRemote struct {
	mu            sync.Mutex
	snap          *service.Snapshot
	fetchErr      error
	statusUpdates []string
}

func (r *fakeRemote) FetchStats(ctx context.Context) (*service.Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetchErr != nil {
		return nil, r.fetchErr
	}
	if r.snap == nil {
		return &service.Snapshot{}, nil
	}
	return r.snap, nil
}

func (r *fakeRemote) UpdateStatus(ctx context.Context, orderID string, status model.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statusUpdates = append(r.statusUpdates, orderID+":"+string(status))
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []string
	err   error
	block chan struct{}
}

func (n *fakeNotifier) Send(ctx context.Context, text string) error {
	if n.block != nil {
		<-n.block
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, text)
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func newTestWorker(store OrderStore, remote RemoteStore, notifier Notifier, now time.Time) *ReconcileWorker {
	w := NewReconcileWorker(store, remote, notifier, time.Second)
	w.now = func() time.Time { return now }
	return w
}

func pendingOrder(id string, createdAt time.Time) model.Order {
	return model.Order{
		ID:           id,
		ProductTitle: "Course",
		Price:        "1500",
		CustomerName: "Ivan",
		Status:       model.StatusPending,
		CreatedAt:    createdAt,
	}
}

// Order created, never synced to the sheet, unpaid past the threshold:
// one tick archives it, notifies once, updates the sheet once. Further
// ticks change nothing.
func TestTickExpiresAbandonedLocalOrder(t *testing.T) {
	now := time.Now()
	store := newFakeStore(pendingOrder("a1", now.Add(-11*time.Minute)))
	remote := &fakeRemote{}
	notifier := &fakeNotifier{}
	w := newTestWorker(store, remote, notifier, now)

	require.NoError(t, w.Tick(context.Background()))

	assert.Equal(t, model.StatusFailed, store.status("a1"))
	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, []string{"a1:failed"}, remote.statusUpdates)

	// idempotence across arbitrarily many further ticks
	for i := 0; i < 5; i++ {
		require.NoError(t, w.Tick(context.Background()))
	}
	assert.Equal(t, model.StatusFailed, store.status("a1"))
	assert.Equal(t, 1, notifier.count())
	assert.Equal(t, []string{"a1:failed"}, remote.statusUpdates)
}

// Remote record reports paid before expiry: converge to paid, no
// notification, no expiry despite nonzero age.
func TestTickConvergesToRemotePaid(t *testing.T) {
	now := time.Now()
	store := newFakeStore(pendingOrder("a1", now.Add(-3*time.Minute)))
	remote := &fakeRemote{snap: &service.Snapshot{Orders: []model.RemoteOrder{
		{ID: "a1", RawStatus: "Оплачено", Timestamp: now.Add(-2 * time.Minute).UnixMilli()},
	}}}
	notifier := &fakeNotifier{}
	w := newTestWorker(store, remote, notifier, now)

	require.NoError(t, w.Tick(context.Background()))

	assert.Equal(t, model.StatusPaid, store.status("a1"))
	assert.Zero(t, notifier.count())
	assert.Empty(t, remote.statusUpdates)
}

// Merge is a union: a not-yet-synced local order and a remote-only order
// from another client are both reconciled in one tick.
func TestTickMergeUnion(t *testing.T) {
	now := time.Now()
	store := newFakeStore(pendingOrder("a1", now.Add(-20*time.Minute)))
	remote := &fakeRemote{snap: &service.Snapshot{Orders: []model.RemoteOrder{
		{ID: "b2", RawStatus: "ожидание", Timestamp: now.Add(-20 * time.Minute).UnixMilli(), ProductTitle: "Other"},
	}}}
	notifier := &fakeNotifier{}
	w := newTestWorker(store, remote, notifier, now)

	require.NoError(t, w.Tick(context.Background()))

	assert.Equal(t, model.StatusFailed, store.status("a1"))
	assert.Equal(t, model.StatusFailed, store.status("b2"), "remote-only order imported and archived")
	assert.Equal(t, 2, notifier.count())
	assert.ElementsMatch(t, []string{"a1:failed", "b2:failed"}, remote.statusUpdates)
}

// Terminal statuses are monotonic: no tick sequence moves paid or failed
// back to pending, and paid never flips to failed.
func TestTickMonotonicity(t *testing.T) {
	now := time.Now()
	paid := pendingOrder("p", now.Add(-30*time.Minute))
	paid.Status = model.StatusPaid
	store := newFakeStore(paid)

	// malformed remote write tries to downgrade
	remote := &fakeRemote{snap: &service.Snapshot{Orders: []model.RemoteOrder{
		{ID: "p", RawStatus: "отменен", Timestamp: now.Add(-30 * time.Minute).UnixMilli()},
	}}}
	notifier := &fakeNotifier{}
	w := newTestWorker(store, remote, notifier, now)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Tick(context.Background()))
	}

	assert.Equal(t, model.StatusPaid, store.status("p"))
	assert.Zero(t, notifier.count())
	assert.Empty(t, remote.statusUpdates)
}

// An unparseable timestamp is "age unknown", not "infinitely old": the
// expiry check must skip it. An explicit remote cancellation still lands.
func TestTickExpiryExclusion(t *testing.T) {
	now := time.Now()
	store := newFakeStore(pendingOrder("a1", now.Add(-2*time.Hour)))
	remote := &fakeRemote{snap: &service.Snapshot{Orders: []model.RemoteOrder{
		{ID: "a1", RawStatus: "ожидание", Timestamp: 0},
	}}}
	notifier := &fakeNotifier{}
	w := newTestWorker(store, remote, notifier, now)

	require.NoError(t, w.Tick(context.Background()))
	assert.Equal(t, model.StatusPending, store.status("a1"))
	assert.Zero(t, notifier.count())

	remote.mu.Lock()
	remote.snap.Orders[0].RawStatus = "отменен"
	remote.mu.Unlock()

	require.NoError(t, w.Tick(context.Background()))
	assert.Equal(t, model.StatusFailed, store.status("a1"))
	assert.Equal(t, 1, notifier.count())
}

// Remote fetch failure means "no remote data this tick": local state is
// still reconciled and the next tick retries the sheet.
func TestTickRemoteFetchFailure(t *testing.T) {
	now := time.Now()
	store := newFakeStore(
		pendingOrder("fresh", now.Add(-1*time.Minute)),
		pendingOrder("stale", now.Add(-15*time.Minute)),
	)
	remote := &fakeRemote{fetchErr: errors.New("network down")}
	notifier := &fakeNotifier{}
	w := newTestWorker(store, remote, notifier, now)

	require.NoError(t, w.Tick(context.Background()))

	assert.Equal(t, model.StatusPending, store.status("fresh"))
	assert.Equal(t, model.StatusFailed, store.status("stale"))
	assert.Equal(t, 1, notifier.count())
}

// A tick still running when the next interval fires is skipped entirely.
func TestTickSkipsWhenOverlapping(t *testing.T) {
	now := time.Now()
	store := newFakeStore(pendingOrder("a1", now.Add(-11*time.Minute)))
	remote := &fakeRemote{}
	notifier := &fakeNotifier{block: make(chan struct{})}
	w := newTestWorker(store, remote, notifier, now)

	done := make(chan error, 1)
	go func() { done <- w.Tick(context.Background()) }()

	// wait until the first tick is parked inside the notifier
	require.Eventually(t, func() bool {
		if w.running.TryLock() {
			w.running.Unlock()
			return false
		}
		return true
	}, time.Second, time.Millisecond)

	require.NoError(t, w.Tick(context.Background()), "overlapping tick must return immediately")
	assert.Zero(t, notifier.count(), "overlapping tick must not have done any work")

	close(notifier.block)
	require.NoError(t, <-done)
	assert.Equal(t, 1, notifier.count())
}

// Notification dispatch failure does not roll back the dedup marker or
// the state transition; the miss is accepted.
func TestTickNotificationFailureStillCommits(t *testing.T) {
	now := time.Now()
	store := newFakeStore(pendingOrder("a1", now.Add(-11*time.Minute)))
	remote := &fakeRemote{}
	notifier := &fakeNotifier{err: errors.New("bot unreachable")}
	w := newTestWorker(store, remote, notifier, now)

	require.NoError(t, w.Tick(context.Background()))
	assert.Equal(t, model.StatusFailed, store.status("a1"))

	require.NoError(t, w.Tick(context.Background()))
	assert.Equal(t, 1, notifier.count(), "failed dispatch is not retried")
}

// The archive notification carries order identity, product and customer
// fields with markup escaped.
func TestFailedNotificationContent(t *testing.T) {
	now := time.Now()
	o := pendingOrder("a1", now.Add(-11*time.Minute))
	o.CustomerName = "Ivan <script>"
	store := newFakeStore(o)
	remote := &fakeRemote{}
	notifier := &fakeNotifier{}
	w := newTestWorker(store, remote, notifier, now)

	require.NoError(t, w.Tick(context.Background()))
	require.Equal(t, 1, notifier.count())

	msg := notifier.sent[0]
	assert.Contains(t, msg, "a1")
	assert.Contains(t, msg, "Course")
	assert.Contains(t, msg, "Ivan &lt;script&gt;")
	assert.NotContains(t, msg, "<script>")
}

// Sanity check that the worker merges with the same identity coercion the
// reconcile package promises.
func TestTickCoercedIdentityMatch(t *testing.T) {
	now := time.Now()
	store := newFakeStore(pendingOrder("42", now.Add(-5*time.Minute)))
	remote := &fakeRemote{snap: &service.Snapshot{Orders: []model.RemoteOrder{
		{ID: reconcile.CanonicalID("0042"), RawStatus: "Оплачено", Timestamp: now.UnixMilli()},
	}}}
	notifier := &fakeNotifier{}
	w := newTestWorker(store, remote, notifier, now)

	require.NoError(t, w.Tick(context.Background()))
	assert.Equal(t, model.StatusPaid, store.status("42"))
}

func TestTickPrunesNotifiedSet(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.notified["ancient"] = now.Add(-48 * time.Hour)
	store.notified["recent"] = now.Add(-time.Hour)
	w := newTestWorker(store, &fakeRemote{}, &fakeNotifier{}, now)

	require.NoError(t, w.Tick(context.Background()))

	store.mu.Lock()
	defer store.mu.Unlock()
	assert.NotContains(t, store.notified, "ancient")
	assert.Contains(t, store.notified, "recent")
}

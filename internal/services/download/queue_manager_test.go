package download

import (
	"sync"
	"testing"

	"galleryrip/internal/domain"
)

func newTestQueue(store *fakeStore) (*queueManager, *sync.Mutex) {
	cfg, _, _ := testConfig(store)
	mu := &sync.Mutex{}
	cond := sync.NewCond(mu)
	return newQueueManager(cfg, mu, cond, &reconciler{cfg: cfg}, &keyedMutex{}), mu
}

func batchFor(postID string, imageIDs ...string) []domain.QueueElement {
	batch := make([]domain.QueueElement, 0, len(imageIDs))
	for _, id := range imageIDs {
		batch = append(batch, domain.QueueElement{ImageID: id, PostRecordID: postID, Host: 1})
	}
	return batch
}

func rankOrder(state domain.QueueState) []string {
	ids := make([]string, 0, len(state.Rank))
	for _, rank := range state.Rank {
		ids = append(ids, rank.PostRecordID)
	}
	return ids
}

func assertOrder(t *testing.T, state domain.QueueState, want ...string) {
	t.Helper()
	got := rankOrder(state)
	if len(got) != len(want) {
		t.Fatalf("rank = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rank = %v, want %v", got, want)
		}
	}
	for i, rank := range state.Rank {
		if rank.Position != i+1 {
			t.Errorf("rank[%d].Position = %d, want %d", i, rank.Position, i+1)
		}
	}
}

func TestQueueStateFIFOAndCounts(t *testing.T) {
	q, mu := newTestQueue(newFakeStore())
	mu.Lock()
	defer mu.Unlock()

	q.addPending(batchFor("a", "a1", "a2"))
	q.addPending(batchFor("b", "b1"))
	q.addPending(batchFor("c", "c1", "c2", "c3"))

	state := q.queueState()
	assertOrder(t, state, "a", "b", "c")
	if state.Remaining != 6 {
		t.Errorf("remaining = %d, want 6", state.Remaining)
	}
	if state.Running != 0 {
		t.Errorf("running = %d, want 0", state.Running)
	}
}

func TestQueueMove(t *testing.T) {
	q, mu := newTestQueue(newFakeStore())
	mu.Lock()
	defer mu.Unlock()

	q.addPending(batchFor("a", "a1"))
	q.addPending(batchFor("b", "b1"))
	q.addPending(batchFor("c", "c1"))

	q.move("c", domain.MoveUp)
	assertOrder(t, q.queueState(), "a", "c", "b")

	q.move("a", domain.MoveDown)
	assertOrder(t, q.queueState(), "c", "a", "b")

	q.move("b", domain.MoveTop)
	assertOrder(t, q.queueState(), "b", "c", "a")

	q.move("b", domain.MoveBottom)
	assertOrder(t, q.queueState(), "c", "a", "b")
}

func TestQueueMoveBoundariesAreNoOps(t *testing.T) {
	q, mu := newTestQueue(newFakeStore())
	mu.Lock()
	defer mu.Unlock()

	q.addPending(batchFor("a", "a1"))
	q.addPending(batchFor("b", "b1"))

	q.move("a", domain.MoveUp)
	assertOrder(t, q.queueState(), "a", "b")
	q.move("a", domain.MoveTop)
	assertOrder(t, q.queueState(), "a", "b")
	q.move("b", domain.MoveDown)
	assertOrder(t, q.queueState(), "a", "b")
	q.move("b", domain.MoveBottom)
	assertOrder(t, q.queueState(), "a", "b")
	q.move("missing", domain.MoveTop)
	assertOrder(t, q.queueState(), "a", "b")
}

func TestClearPendingScoped(t *testing.T) {
	q, mu := newTestQueue(newFakeStore())
	mu.Lock()
	defer mu.Unlock()

	q.addPending(batchFor("a", "a1"))
	q.addPending(batchFor("b", "b1", "b2"))
	q.addPending(batchFor("c", "c1"))

	q.clearPending("b")
	state := q.queueState()
	assertOrder(t, state, "a", "c")
	if state.Remaining != 2 {
		t.Errorf("remaining = %d, want 2", state.Remaining)
	}
	if q.isPending("b") {
		t.Error("b still pending after scoped clear")
	}

	q.clearPending("")
	if got := q.queueState(); got.Remaining != 0 || len(got.Rank) != 0 {
		t.Errorf("queue not empty after full clear: %+v", got)
	}
}

func TestIsPendingMatchesByPost(t *testing.T) {
	q, mu := newTestQueue(newFakeStore())
	mu.Lock()
	defer mu.Unlock()

	q.addPending(batchFor("a", "a1"))
	if !q.isPending("a") {
		t.Error("isPending(a) = false, want true")
	}
	if q.isPending("z") {
		t.Error("isPending(z) = true, want false")
	}
}

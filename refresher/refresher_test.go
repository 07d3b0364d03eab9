package refresher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"disbahn/models"
	"disbahn/reconciler"

	"go.uber.org/zap"
)

type fakeSource struct {
	anns []models.Announcement
	err  error
}

func (f *fakeSource) Fetch(context.Context) ([]models.Announcement, error) {
	return f.anns, f.err
}

type fakePruner struct {
	keep   []uint64
	pruned int64
	err    error
	calls  int
}

func (f *fakePruner) PruneRetiredWebhooks(_ context.Context, keep []uint64) (int64, error) {
	f.calls++
	f.keep = keep
	return f.pruned, f.err
}

type memLedger struct {
	mu   sync.Mutex
	rows map[string]models.Post
}

func newMemLedger() *memLedger {
	return &memLedger{rows: make(map[string]models.Post)}
}

func ledgerKey(announcementID string, webhookID uint64) string {
	return fmt.Sprintf("%s/%d", announcementID, webhookID)
}

func (m *memLedger) Get(_ context.Context, announcementID string, webhookID uint64) (models.Post, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.rows[ledgerKey(announcementID, webhookID)]
	return post, ok, nil
}

func (m *memLedger) ListForAnnouncement(_ context.Context, announcementID string) ([]models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var posts []models.Post
	for _, post := range m.rows {
		if post.AnnouncementID == announcementID {
			posts = append(posts, post)
		}
	}
	return posts, nil
}

func (m *memLedger) Upsert(_ context.Context, post models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := ledgerKey(post.AnnouncementID, post.WebhookID)
	if existing, ok := m.rows[key]; ok && existing.LastUpdated.After(post.LastUpdated) {
		return nil
	}
	m.rows[key] = post
	return nil
}

func (m *memLedger) Delete(_ context.Context, announcementID string, webhookID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, ledgerKey(announcementID, webhookID))
	return nil
}

type memDelivery struct {
	mu        sync.Mutex
	nextID    uint64
	creates   int
	edits     int
	createErr map[uint64]error
}

func newMemDelivery() *memDelivery {
	return &memDelivery{nextID: 1000, createErr: make(map[uint64]error)}
}

func (m *memDelivery) Create(_ context.Context, webhookID uint64, _ reconciler.Payload) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.createErr[webhookID]; err != nil {
		return 0, err
	}
	m.nextID++
	m.creates++
	return m.nextID, nil
}

func (m *memDelivery) Edit(_ context.Context, _ uint64, _ uint64, _ reconciler.Payload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits++
	return nil
}

func (m *memDelivery) stats() (creates, edits int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.creates, m.edits
}

func announcementsAt(published time.Time) []models.Announcement {
	return []models.Announcement{
		{GUID: "him-1", Title: "RE 1: Ausfall", Published: published},
		{GUID: "him-2", Title: "S 8: Verspätungen", Published: published},
	}
}

func newTestRefresher(source Source, pruner Pruner, delivery reconciler.Delivery, targets []uint64) (*Refresher, *memLedger) {
	ledger := newMemLedger()
	engine := reconciler.New(zap.NewNop(), ledger, delivery)
	return New(zap.NewNop(), source, engine, pruner, targets), ledger
}

func TestRefreshConvergesAnnouncements(t *testing.T) {
	t.Parallel()

	v1 := time.Date(2023, 6, 9, 16, 34, 0, 0, time.UTC)
	v2 := v1.Add(2 * time.Hour)
	source := &fakeSource{anns: announcementsAt(v1)}
	delivery := newMemDelivery()
	ref, ledger := newTestRefresher(source, &fakePruner{}, delivery, []uint64{10, 20})

	// First pass posts every announcement to every webhook.
	if err := ref.Refresh(context.Background()); err != nil {
		t.Fatalf("first refresh: %v", err)
	}
	if creates, edits := delivery.stats(); creates != 4 || edits != 0 {
		t.Fatalf("expected 4 creates after first pass, got %d/%d", creates, edits)
	}

	// An unchanged feed leaves everything alone.
	if err := ref.Refresh(context.Background()); err != nil {
		t.Fatalf("second refresh: %v", err)
	}
	if creates, edits := delivery.stats(); creates != 4 || edits != 0 {
		t.Fatalf("unchanged feed caused deliveries: %d/%d", creates, edits)
	}

	// A newer revision edits the tracked messages in place.
	source.anns = announcementsAt(v2)
	if err := ref.Refresh(context.Background()); err != nil {
		t.Fatalf("third refresh: %v", err)
	}
	if creates, edits := delivery.stats(); creates != 4 || edits != 4 {
		t.Fatalf("expected 4 edits after update, got %d/%d", creates, edits)
	}

	post, found, err := ledger.Get(context.Background(), "him-1", 10)
	if err != nil || !found {
		t.Fatalf("tracked row missing: %v", err)
	}
	if !post.LastUpdated.Equal(v2) {
		t.Fatalf("ledger not at newest revision: %+v", post)
	}
}

func TestRefreshFailsWhenFetchFails(t *testing.T) {
	t.Parallel()

	fetchErr := errors.New("connection refused")
	source := &fakeSource{err: fetchErr}
	pruner := &fakePruner{}
	ref, _ := newTestRefresher(source, pruner, newMemDelivery(), []uint64{10})

	err := ref.Refresh(context.Background())
	if !errors.Is(err, fetchErr) {
		t.Fatalf("expected the fetch error, got %v", err)
	}
	if pruner.calls != 0 {
		t.Fatal("nothing may be pruned when the feed is unreachable")
	}
}

func TestRefreshToleratesFailingWebhook(t *testing.T) {
	t.Parallel()

	v1 := time.Date(2023, 6, 9, 16, 34, 0, 0, time.UTC)
	source := &fakeSource{anns: announcementsAt(v1)}
	delivery := newMemDelivery()
	delivery.createErr[20] = errors.New("boom")
	ref, ledger := newTestRefresher(source, &fakePruner{}, delivery, []uint64{10, 20})

	// A broken webhook is logged, not propagated.
	if err := ref.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if creates, _ := delivery.stats(); creates != 2 {
		t.Fatalf("expected 2 creates on the healthy webhook, got %d", creates)
	}
	if _, found, _ := ledger.Get(context.Background(), "him-1", 20); found {
		t.Fatal("failed webhook must not be tracked")
	}
}

func TestRefreshPrunesRetiredWebhooks(t *testing.T) {
	t.Parallel()

	v1 := time.Date(2023, 6, 9, 16, 34, 0, 0, time.UTC)
	source := &fakeSource{anns: announcementsAt(v1)}
	pruner := &fakePruner{pruned: 2}
	targets := []uint64{10, 20}
	ref, _ := newTestRefresher(source, pruner, newMemDelivery(), targets)

	if err := ref.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if pruner.calls != 1 {
		t.Fatalf("expected 1 prune call, got %d", pruner.calls)
	}
	if len(pruner.keep) != 2 || pruner.keep[0] != 10 || pruner.keep[1] != 20 {
		t.Fatalf("prune must keep the configured webhooks, got %v", pruner.keep)
	}
}

func TestRefreshToleratesPruneFailure(t *testing.T) {
	t.Parallel()

	v1 := time.Date(2023, 6, 9, 16, 34, 0, 0, time.UTC)
	source := &fakeSource{anns: announcementsAt(v1)}
	pruner := &fakePruner{err: errors.New("database locked")}
	ref, _ := newTestRefresher(source, pruner, newMemDelivery(), []uint64{10})

	if err := ref.Refresh(context.Background()); err != nil {
		t.Fatalf("a failed prune must not fail the pass: %v", err)
	}
}

func TestRefreshStopsWhenCancelled(t *testing.T) {
	t.Parallel()

	v1 := time.Date(2023, 6, 9, 16, 34, 0, 0, time.UTC)
	source := &fakeSource{anns: announcementsAt(v1)}
	delivery := newMemDelivery()
	pruner := &fakePruner{}
	ref, _ := newTestRefresher(source, pruner, delivery, []uint64{10})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := ref.Refresh(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if creates, edits := delivery.stats(); creates != 0 || edits != 0 {
		t.Fatalf("cancelled pass still delivered: %d/%d", creates, edits)
	}
	if pruner.calls != 0 {
		t.Fatal("cancelled pass still pruned")
	}
}

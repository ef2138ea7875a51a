package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/tabstash/internal/domain"
	"github.com/MrSnakeDoc/tabstash/internal/importer"
	"github.com/MrSnakeDoc/tabstash/internal/logger"
	"github.com/MrSnakeDoc/tabstash/internal/store/memory"
)

const bookmarksYAML = `---
- Developer:
    - Github:
        - abbr: GH
          href: https://github.com/?utm_source=homepage
    - Go:
        - abbr: GO
          href: https://go.dev
`

type countingImporter struct {
	calls atomic.Int32
	next  Importer
}

func (c *countingImporter) Import(ctx context.Context, req domain.ImportRequest) (domain.ImportResult, error) {
	c.calls.Add(1)
	return c.next.Import(ctx, req)
}

func newService() (*importer.Service, *memory.ResourceStore) {
	resources := memory.NewResourceStore()
	return importer.NewService(resources, memory.NewReplayStore(time.Hour), logger.NewNop()), resources
}

func writeBookmarks(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bookmarks.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write bookmarks: %v", err)
	}
	return path
}

func TestBookmarkImporterReload(t *testing.T) {
	svc, resources := newService()
	path := writeBookmarks(t, bookmarksYAML)
	bi := NewBookmarkImporter(path, "alice", svc, logger.NewNop(), time.Hour, nil)

	res, err := bi.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if len(res.Created) != 2 {
		t.Fatalf("created %d, want 2", len(res.Created))
	}

	list := resources.ListByOwner("alice")
	if len(list) != 2 {
		t.Fatalf("stored %d resources, want 2", len(list))
	}
	if list[0].CanonicalURL != "https://github.com/" || list[0].Title != "Github" {
		t.Errorf("unexpected first resource: %+v", list[0])
	}
}

func TestBookmarkImporterSkipsUnchangedFile(t *testing.T) {
	svc, _ := newService()
	counter := &countingImporter{next: svc}
	path := writeBookmarks(t, bookmarksYAML)
	bi := NewBookmarkImporter(path, "alice", counter, logger.NewNop(), time.Hour, nil)

	for i := 0; i < 3; i++ {
		if _, err := bi.Reload(context.Background()); err != nil {
			t.Fatalf("Reload() error = %v", err)
		}
	}
	if got := counter.calls.Load(); got != 1 {
		t.Errorf("import ran %d times, want 1", got)
	}

	if err := os.WriteFile(path, []byte(bookmarksYAML+`    - Docs:
        - href: https://pkg.go.dev
`), 0o644); err != nil {
		t.Fatalf("rewrite bookmarks: %v", err)
	}
	res, err := bi.Reload(context.Background())
	if err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if got := counter.calls.Load(); got != 2 {
		t.Errorf("import ran %d times after change, want 2", got)
	}
	if len(res.Created) != 1 || len(res.Reused) != 2 {
		t.Errorf("created=%d reused=%d, want 1/2", len(res.Created), len(res.Reused))
	}
}

func TestBookmarkImporterSameContentReplaysAcrossInstances(t *testing.T) {
	resources := memory.NewResourceStore()
	replays := memory.NewReplayStore(time.Hour)
	path := writeBookmarks(t, bookmarksYAML)

	first := NewBookmarkImporter(path, "alice", importer.NewService(resources, replays, logger.NewNop()), logger.NewNop(), time.Hour, nil)
	second := NewBookmarkImporter(path, "alice", importer.NewService(resources, replays, logger.NewNop()), logger.NewNop(), time.Hour, nil)

	a, err := first.Reload(context.Background())
	if err != nil {
		t.Fatalf("first Reload() error = %v", err)
	}
	b, err := second.Reload(context.Background())
	if err != nil {
		t.Fatalf("second Reload() error = %v", err)
	}
	if len(b.Created) != len(a.Created) || b.Created[0].VersionTag != a.Created[0].VersionTag {
		t.Error("second instance should replay the recorded result")
	}
}

func TestBookmarkImporterStartFailsOnMissingFile(t *testing.T) {
	svc, _ := newService()
	bi := NewBookmarkImporter("/nonexistent/bookmarks.yaml", "alice", svc, logger.NewNop(), time.Hour, nil)

	err := bi.Start(context.Background())
	bi.Stop()
	if err == nil {
		t.Fatal("Start() should fail when the file is missing")
	}
}

func TestBookmarkImporterRecoversAfterBrokenFile(t *testing.T) {
	svc, resources := newService()
	counter := &countingImporter{next: svc}
	path := writeBookmarks(t, "- Developer: [unclosed")
	trigger := make(chan struct{}, 1)
	bi := NewBookmarkImporter(path, "alice", counter, logger.NewNop(), time.Hour, trigger)

	if err := bi.Start(context.Background()); err == nil {
		t.Fatal("Start() should report the broken file")
	}
	defer bi.Stop()

	if err := os.WriteFile(path, []byte(bookmarksYAML), 0o644); err != nil {
		t.Fatalf("fix bookmarks: %v", err)
	}
	trigger <- struct{}{}

	deadline := time.Now().Add(2 * time.Second)
	for len(resources.ListByOwner("alice")) < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if len(trigger) != 0 {
		t.Fatal("trigger was never consumed")
	}
	if got := len(resources.ListByOwner("alice")); got != 2 {
		t.Fatalf("stored %d resources, want 2", got)
	}
	if got := counter.calls.Load(); got != 1 {
		t.Errorf("import ran %d times, want 1", got)
	}
}

func TestBookmarkImporterManualTrigger(t *testing.T) {
	svc, _ := newService()
	counter := &countingImporter{next: svc}
	path := writeBookmarks(t, bookmarksYAML)
	trigger := make(chan struct{}, 1)
	bi := NewBookmarkImporter(path, "alice", counter, logger.NewNop(), time.Hour, trigger)

	if err := bi.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer bi.Stop()

	// change the file so the triggered run imports again
	if err := os.WriteFile(path, []byte(bookmarksYAML+"\n"), 0o644); err != nil {
		t.Fatalf("rewrite bookmarks: %v", err)
	}
	trigger <- struct{}{}

	deadline := time.Now().Add(2 * time.Second)
	for counter.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := counter.calls.Load(); got != 2 {
		t.Errorf("import ran %d times, want 2", got)
	}
	bi.Stop()
}

func TestReplayJanitorCleanup(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	store := memory.NewReplayStore(time.Hour).WithClock(func() time.Time { return now })
	ctx := context.Background()

	for _, tok := range []string{"a", "b"} {
		if err := store.Save(ctx, tok, domain.NewImportResult()); err != nil {
			t.Fatalf("save: %v", err)
		}
	}
	now = now.Add(30 * time.Minute)
	if err := store.Save(ctx, "c", domain.NewImportResult()); err != nil {
		t.Fatalf("save: %v", err)
	}

	j := NewReplayJanitor(store, logger.NewNop(), time.Hour)

	now = now.Add(45 * time.Minute)
	n, err := j.Cleanup(ctx)
	if err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if n != 2 {
		t.Errorf("removed %d, want 2", n)
	}
	if store.Len() != 1 {
		t.Errorf("%d records left, want 1", store.Len())
	}
}

func TestReplayJanitorStartStop(t *testing.T) {
	j := NewReplayJanitor(memory.NewReplayStore(time.Hour), logger.NewNop(), 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	j.Stop()
	j.Stop()
}

func TestDigest(t *testing.T) {
	if Digest([]byte("a")) == Digest([]byte("b")) {
		t.Error("different content should differ")
	}
	if len(Digest(nil)) != 64 {
		t.Error("digest should be hex sha256")
	}
}

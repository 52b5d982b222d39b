package pairing

import (
	"context"
	"errors"
	"testing"
	"time"

	"pcos-backend/internal/shared/storage/kv"
)

func newTestService(t *testing.T) (*Service, *kv.MemoryStore) {
	t.Helper()
	store := kv.NewMemoryStore()
	t.Cleanup(store.Close)
	return NewService(store, 5*time.Minute), store
}

func TestIssueCodeFormat(t *testing.T) {
	svc, _ := newTestService(t)

	code, err := svc.IssueCode(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("issue code: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("code %q is not 6 digits", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("code %q contains non-digit", code)
		}
	}
}

func TestIssueCodeReplacesPrior(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.IssueCode(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue first: %v", err)
	}
	second, err := svc.IssueCode(ctx, "user-1")
	if err != nil {
		t.Fatalf("issue second: %v", err)
	}
	if first == second {
		t.Fatal("expected a fresh code")
	}

	// The first code is dead: devices can no longer stage against it.
	err = svc.StageReading(ctx, first, Reading{HeightCm: 165, WeightKg: 68})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("stage on old code err = %v, want ErrNotFound", err)
	}
	if err := svc.StageReading(ctx, second, Reading{HeightCm: 165, WeightKg: 68}); err != nil {
		t.Fatalf("stage on new code: %v", err)
	}
}

func TestStageReadingUnknownCode(t *testing.T) {
	svc, _ := newTestService(t)
	err := svc.StageReading(context.Background(), "000000", Reading{HeightCm: 165, WeightKg: 68})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestStageReadingOverwrites(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, _ := svc.IssueCode(ctx, "user-1")
	if err := svc.StageReading(ctx, code, Reading{HeightCm: 160, WeightKg: 60}); err != nil {
		t.Fatalf("stage first: %v", err)
	}
	if err := svc.StageReading(ctx, code, Reading{HeightCm: 165, WeightKg: 68}); err != nil {
		t.Fatalf("stage second: %v", err)
	}

	reading, err := svc.Resolve(ctx, code, "user-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if reading.HeightCm != 165 || reading.WeightKg != 68 {
		t.Fatalf("got stale reading %+v", reading)
	}
	if reading.RecordedAt.IsZero() {
		t.Fatal("recordedAt not set")
	}
}

func TestResolveOwnershipAndPending(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, _ := svc.IssueCode(ctx, "user-1")

	if _, err := svc.Resolve(ctx, code, "user-2"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("foreign resolve err = %v, want ErrForbidden", err)
	}
	if _, err := svc.Resolve(ctx, code, "user-1"); !errors.Is(err, ErrReadingPending) {
		t.Fatalf("early resolve err = %v, want ErrReadingPending", err)
	}
	if _, err := svc.Resolve(ctx, "999999", "user-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown code err = %v, want ErrNotFound", err)
	}
}

func TestCodeExpiry(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	code, _ := svc.IssueCode(ctx, "user-1")

	store.SetClock(func() time.Time { return time.Now().Add(6 * time.Minute) })

	if err := svc.StageReading(ctx, code, Reading{HeightCm: 165, WeightKg: 68}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("stage after expiry err = %v, want ErrNotFound", err)
	}
	if _, err := svc.Resolve(ctx, code, "user-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("resolve after expiry err = %v, want ErrNotFound", err)
	}
}

func TestConsumeRemovesAllKeys(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	code, _ := svc.IssueCode(ctx, "user-1")
	_ = svc.StageReading(ctx, code, Reading{HeightCm: 165, WeightKg: 68})

	svc.Consume(ctx, code, "user-1")

	if _, err := svc.Resolve(ctx, code, "user-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("resolve after consume err = %v, want ErrNotFound", err)
	}
	// A new code can be issued immediately after consumption.
	if _, err := svc.IssueCode(ctx, "user-1"); err != nil {
		t.Fatalf("issue after consume: %v", err)
	}
}

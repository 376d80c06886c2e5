package service

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"stockpipe/internal/adapters/credentials"
	"stockpipe/internal/adapters/sink/ndjson"
	"stockpipe/internal/adapters/warehouse/memwh"
	"stockpipe/internal/core/record"
	perr "stockpipe/internal/platform/errors"
	kit "stockpipe/internal/platform/testkit"
	"stockpipe/internal/services/load/domain"
)

type sinkSource struct{}

func (sinkSource) Verify(h domain.SinkHandle) error { return ndjson.Verify(h) }

func (sinkSource) Open(h domain.SinkHandle, s record.Schema) (domain.SinkReader, error) {
	r, err := ndjson.NewReader(h, s)
	if err != nil {
		return nil, err
	}
	return r, nil
}

type events struct {
	mu  sync.Mutex
	evs []domain.BatchEvent
}

func (e *events) BatchEvent(_ context.Context, ev domain.BatchEvent) {
	e.mu.Lock()
	e.evs = append(e.evs, ev)
	e.mu.Unlock()
}

func (e *events) count(st domain.BatchStatus) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.evs {
		if ev.Status == st {
			n++
		}
	}
	return n
}

func stock(name string, day int, price float64) record.Record {
	return record.New(
		record.Field{Name: record.FieldStockName, Value: record.String(name)},
		record.Field{Name: record.FieldDate, Value: record.Date(time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC))},
		record.Field{Name: record.FieldPrice, Value: record.Float(price)},
	)
}

func writeSink(t *testing.T, recs ...record.Record) domain.SinkHandle {
	t.Helper()
	w, err := ndjson.New(t.TempDir()).Create(context.Background(), "run-1")
	if err != nil {
		t.Fatal(err)
	}
	for _, r := range recs {
		if err := w.Write(r); err != nil {
			t.Fatal(err)
		}
	}
	h, err := w.Commit("StockData", 0)
	if err != nil {
		t.Fatal(err)
	}
	return h
}

func fiveStocks() []record.Record {
	return []record.Record{stock("A", 2, 1), stock("B", 2, 2), stock("C", 2, 3), stock("D", 2, 4), stock("E", 2, 5)}
}

type harness struct {
	svc    *Service
	wh     *memwh.Warehouse
	ev     *events
	sleeps *kit.Sleeps
	opened int
}

func newHarness(t *testing.T, cfg Config, creds domain.CredentialPort) *harness {
	t.Helper()
	h := &harness{wh: memwh.New(), ev: &events{}, sleeps: &kit.Sleeps{}}
	if creds == nil {
		creds = credentials.Static{}
	}
	open := func(context.Context, domain.Credential) (domain.Warehouse, error) {
		h.opened++
		return h.wh, nil
	}
	h.svc = New(creds, open, sinkSource{}, record.StockSchema(""), cfg).
		WithEvents(h.ev).
		WithSleep(h.sleeps.Sleep)
	return h
}

func TestRunBatchesAndReports(t *testing.T) {
	h := newHarness(t, Config{BatchSize: 2, Workers: 1}, nil)
	res, err := h.svc.Run(context.Background(), writeSink(t, fiveStocks()...))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := domain.Result{RunID: "run-1", Warehouse: "memory", Records: 5, RowsWritten: 5, Batches: 3, TableRows: 5}
	if res != want {
		t.Fatalf("result = %+v, want %+v", res, want)
	}
	if h.ev.count(domain.BatchCommitted) != 3 || h.ev.count(domain.BatchAttempted) != 3 {
		t.Fatalf("events = %+v", h.ev.evs)
	}
}

func TestRunTwiceIsIdempotent(t *testing.T) {
	h := newHarness(t, Config{BatchSize: 2, Workers: 3}, nil)
	sink := writeSink(t, fiveStocks()...)
	if _, err := h.svc.Run(context.Background(), sink); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	first := h.wh.Rows("StockData")
	res, err := h.svc.Run(context.Background(), sink)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	second := h.wh.Rows("StockData")
	if res.TableRows != 5 || len(second) != len(first) {
		t.Fatalf("rows changed: %d -> %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Key != second[i].Key || !first[i].Values[2].Equal(second[i].Values[2]) {
			t.Fatalf("row %d changed", i)
		}
	}
}

func TestRunRetriesTransientFailures(t *testing.T) {
	const n = 3
	h := newHarness(t, Config{BatchSize: 10, MaxRetries: n, RetryBase: time.Millisecond}, nil)
	h.wh.WithFault(memwh.FailTimes(n-1, perr.WarehouseUnavailablef("backend busy")))

	res, err := h.svc.Run(context.Background(), writeSink(t, fiveStocks()...))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.RowsWritten != 5 || len(h.sleeps.All()) != n-1 {
		t.Fatalf("rows = %d sleeps = %d", res.RowsWritten, len(h.sleeps.All()))
	}
	if h.ev.count(domain.BatchAttempted) != n {
		t.Fatalf("attempts = %d", h.ev.count(domain.BatchAttempted))
	}
}

func TestRunEscalatesExhaustedRetriesOnce(t *testing.T) {
	const n = 3
	h := newHarness(t, Config{BatchSize: 10, MaxRetries: n}, nil)
	h.wh.WithFault(memwh.FailTimes(n, perr.WarehouseUnavailablef("backend busy")))

	res, err := h.svc.Run(context.Background(), writeSink(t, fiveStocks()...))
	kit.MustCode(t, err, perr.ErrorCodeLoadFailed)
	kit.MustContain(t, err.Error(), "gave up after 3 attempts")
	if !perr.HasCode(err, perr.ErrorCodeWarehouseUnavailable) {
		t.Fatalf("cause lost: %v", err)
	}
	if h.ev.count(domain.BatchFailed) != 1 || h.ev.count(domain.BatchAttempted) != n {
		t.Fatalf("events = %+v", h.ev.evs)
	}
	if res.RowsWritten != 0 || h.wh.Commits() != 0 {
		t.Fatalf("nothing should be committed, rows = %d", res.RowsWritten)
	}
	if n, _ := h.wh.Count(context.Background(), record.StockSchema("")); n != 0 {
		t.Fatalf("partial batch visible: %d rows", n)
	}
}

func TestRunPermanentFailureIsNotRetried(t *testing.T) {
	h := newHarness(t, Config{BatchSize: 10, MaxRetries: 5}, nil)
	h.wh.WithFault(memwh.FailTimes(1, perr.SchemaViolationf("column type mismatch")))

	_, err := h.svc.Run(context.Background(), writeSink(t, fiveStocks()...))
	kit.MustCode(t, err, perr.ErrorCodeSchemaViolation)
	if h.ev.count(domain.BatchAttempted) != 1 || h.ev.count(domain.BatchRejected) != 1 {
		t.Fatalf("events = %+v", h.ev.evs)
	}
	if len(h.sleeps.All()) != 0 {
		t.Fatalf("permanent error should not back off")
	}
}

func TestRunSchemaViolationInSink(t *testing.T) {
	bad := stock("X", 2, 1)
	bad.Set("Bogus", record.String("x"))
	h := newHarness(t, Config{BatchSize: 1, Workers: 1}, nil)

	res, err := h.svc.Run(context.Background(), writeSink(t, stock("A", 2, 1), bad, stock("B", 2, 1)))
	kit.MustCode(t, err, perr.ErrorCodeSchemaViolation)
	if e, _ := perr.As(err); e.Field() != "Bogus" || e.Op() != "sink record 2" {
		t.Fatalf("field = %q op = %q", e.Field(), e.Op())
	}
	if h.ev.count(domain.BatchRejected) != 1 {
		t.Fatalf("rejected events = %d", h.ev.count(domain.BatchRejected))
	}
	if res.RowsWritten > 1 {
		t.Fatalf("records after the violation were committed: %d", res.RowsWritten)
	}
	for _, r := range h.wh.Rows("StockData") {
		if r.Values[0].Str() != "A" {
			t.Fatalf("unexpected committed row %q", r.Values[0].Str())
		}
	}
}

func TestRunCollapsesDuplicateKeys(t *testing.T) {
	h := newHarness(t, Config{BatchSize: 10, Workers: 2}, nil)
	res, err := h.svc.Run(context.Background(), writeSink(t, stock("A", 2, 1), stock("B", 2, 1), stock("A", 2, 9)))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Deduped != 1 || res.RowsWritten != 2 || res.TableRows != 2 {
		t.Fatalf("result = %+v", res)
	}
	for _, r := range h.wh.Rows("StockData") {
		if r.Values[0].Str() == "A" && r.Values[2].Float() != 9 {
			t.Fatalf("last occurrence should win, got %v", r.Values[2].Float())
		}
	}
}

func TestRunKeepsPerKeyOrderAcrossBatches(t *testing.T) {
	var recs []record.Record
	for i := range 40 {
		recs = append(recs, stock(string(rune('A'+i%8)), 2, float64(i)))
	}
	h := newHarness(t, Config{BatchSize: 1, Workers: 4}, nil)
	if _, err := h.svc.Run(context.Background(), writeSink(t, recs...)); err != nil {
		t.Fatalf("Run: %v", err)
	}
	for _, r := range h.wh.Rows("StockData") {
		name := r.Values[0].Str()
		want := float64(32 + int(name[0]-'A'))
		if r.Values[2].Float() != want {
			t.Fatalf("%s price = %v, want the last write %v", name, r.Values[2].Float(), want)
		}
	}
}

func TestRunPreconditions(t *testing.T) {
	t.Run("credential missing", func(t *testing.T) {
		h := newHarness(t, Config{}, credentials.Static{Err: perr.CredentialMissingf("no key")})
		_, err := h.svc.Run(context.Background(), writeSink(t, fiveStocks()...))
		kit.MustCode(t, err, perr.ErrorCodeCredentialMissing)
		if h.opened != 0 {
			t.Fatalf("warehouse opened without a credential")
		}
	})

	t.Run("table mismatch", func(t *testing.T) {
		h := newHarness(t, Config{}, nil)
		sink := writeSink(t, fiveStocks()...)
		sink.Manifest.Table = "Other"
		_, err := h.svc.Run(context.Background(), sink)
		kit.MustCode(t, err, perr.ErrorCodeSchemaViolation)
	})

	t.Run("tampered sink", func(t *testing.T) {
		h := newHarness(t, Config{}, nil)
		sink := writeSink(t, fiveStocks()...)
		if err := os.WriteFile(sink.DataPath(), []byte("{}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := h.svc.Run(context.Background(), sink)
		kit.MustCode(t, err, perr.ErrorCodeLoadFailed)
		if h.opened != 0 {
			t.Fatalf("warehouse opened for a corrupt sink")
		}
	})

	t.Run("canceled", func(t *testing.T) {
		h := newHarness(t, Config{}, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := h.svc.Run(ctx, writeSink(t, fiveStocks()...))
		kit.MustCode(t, err, perr.ErrorCodeCanceled)
		if h.wh.Commits() != 0 {
			t.Fatalf("commits after cancel")
		}
	})
}

func TestConfigDefaults(t *testing.T) {
	c := Config{}.withDefaults()
	if c.BatchSize != 500 || c.Workers != 1 || c.MaxRetries != 5 || c.RetryCap != 30*time.Second {
		t.Fatalf("defaults = %+v", c)
	}
}

func TestPartitionOfIsStable(t *testing.T) {
	for _, k := range []string{"a", "b", "c"} {
		if partitionOf(k, 4) != partitionOf(k, 4) || partitionOf(k, 1) != 0 {
			t.Fatalf("partition not stable for %q", k)
		}
	}
}

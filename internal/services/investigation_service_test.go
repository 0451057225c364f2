package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/incidentfox/incidentfox/internal/database"
	"github.com/incidentfox/incidentfox/internal/testhelpers"
)

var testStart = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newInvestigationService(t *testing.T) (*InvestigationService, *testhelpers.Clock) {
	t.Helper()
	db := testhelpers.NewTestDB(t)
	clock := testhelpers.NewClock(testStart, time.Second)
	return NewInvestigationService(db, WithClock(clock.Now)), clock
}

func TestInvestigationService_Start_FreshState(t *testing.T) {
	svc, _ := newInvestigationService(t)
	ctx := context.Background()

	inv, err := svc.Start(ctx, StartParams{Service: "checkout", Summary: "5xx spike"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inv.ID) != 8 {
		t.Errorf("expected 8-char id, got %q", inv.ID)
	}

	detail, err := svc.Get(ctx, inv.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if detail.Status != database.InvestigationStatusInProgress {
		t.Errorf("expected status in_progress, got %s", detail.Status)
	}
	if detail.EndedAt != nil {
		t.Errorf("expected nil ended_at, got %v", detail.EndedAt)
	}
	if detail.FindingCount != 0 || len(detail.Findings) != 0 {
		t.Errorf("expected no findings, got %d", detail.FindingCount)
	}
	if detail.Severity != DefaultSeverity {
		t.Errorf("expected default severity, got %q", detail.Severity)
	}
	if !detail.StartedAt.Equal(testStart) {
		t.Errorf("expected started_at %v, got %v", testStart, detail.StartedAt)
	}
}

func TestInvestigationService_Start_OptionalFieldsNull(t *testing.T) {
	svc, _ := newInvestigationService(t)

	inv, err := svc.Start(context.Background(), StartParams{Severity: "P1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.Service != nil || inv.Summary != nil || inv.Tags != nil {
		t.Error("expected unset fields to be nil")
	}
	if inv.Severity != "P1" {
		t.Errorf("expected severity P1, got %s", inv.Severity)
	}
}

func TestInvestigationService_Start_UniqueIDs(t *testing.T) {
	svc, _ := newInvestigationService(t)

	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		inv, err := svc.Start(context.Background(), StartParams{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if seen[inv.ID] {
			t.Fatalf("duplicate id %s", inv.ID)
		}
		seen[inv.ID] = true
	}
}

func TestInvestigationService_AddFinding_OrderAndCount(t *testing.T) {
	svc, _ := newInvestigationService(t)
	ctx := context.Background()

	inv, _ := svc.Start(ctx, StartParams{Service: "checkout"})
	titles := []string{"p99 latency up", "db connections maxed", "pool size too small"}
	for _, title := range titles {
		if _, err := svc.AddFinding(ctx, inv.ID, "metric_anomaly", title, `{"value": 1}`); err != nil {
			t.Fatalf("AddFinding() error = %v", err)
		}
	}

	detail, err := svc.Get(ctx, inv.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if detail.FindingCount != len(titles) {
		t.Fatalf("expected %d findings, got %d", len(titles), detail.FindingCount)
	}
	for i, f := range detail.Findings {
		if f.Title != titles[i] {
			t.Errorf("finding %d: expected %q, got %q", i, titles[i], f.Title)
		}
		if i > 0 && f.Timestamp.Before(detail.Findings[i-1].Timestamp) {
			t.Errorf("finding %d is out of timestamp order", i)
		}
	}
}

func TestInvestigationService_AddFinding_UnknownInvestigation(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	svc := NewInvestigationService(db)

	_, err := svc.AddFinding(context.Background(), "missing1", "log_error", "boom", "")
	if !errors.Is(err, ErrInvestigationNotFound) {
		t.Fatalf("expected ErrInvestigationNotFound, got %v", err)
	}

	var count int64
	db.Model(&database.Finding{}).Count(&count)
	if count != 0 {
		t.Errorf("expected no findings inserted, got %d", count)
	}
}

func TestInvestigationService_Complete(t *testing.T) {
	svc, clock := newInvestigationService(t)
	ctx := context.Background()

	inv, _ := svc.Start(ctx, StartParams{Summary: "original summary"})
	clock.Advance(30 * time.Minute)

	done, err := svc.Complete(ctx, inv.ID, "cert expired", "rotated cert", "")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if done.Status != database.InvestigationStatusCompleted {
		t.Errorf("expected completed, got %s", done.Status)
	}
	if done.EndedAt == nil || !done.EndedAt.After(done.StartedAt) {
		t.Errorf("expected ended_at after started_at, got %v", done.EndedAt)
	}
	if done.Summary == nil || *done.Summary != "original summary" {
		t.Errorf("expected summary kept, got %v", done.Summary)
	}
}

func TestInvestigationService_Complete_ReplacesSummaryWhenGiven(t *testing.T) {
	svc, _ := newInvestigationService(t)
	ctx := context.Background()

	inv, _ := svc.Start(ctx, StartParams{Summary: "original"})
	done, err := svc.Complete(ctx, inv.ID, "rc", "fix", "better summary")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if *done.Summary != "better summary" {
		t.Errorf("expected new summary, got %q", *done.Summary)
	}
}

func TestInvestigationService_Complete_TwiceOverwrites(t *testing.T) {
	svc, _ := newInvestigationService(t)
	ctx := context.Background()

	inv, _ := svc.Start(ctx, StartParams{})
	if _, err := svc.Complete(ctx, inv.ID, "first cause", "first fix", ""); err != nil {
		t.Fatalf("first Complete() error = %v", err)
	}
	if _, err := svc.Complete(ctx, inv.ID, "second cause", "second fix", ""); err != nil {
		t.Fatalf("second Complete() error = %v", err)
	}

	detail, _ := svc.Get(ctx, inv.ID)
	if *detail.RootCause != "second cause" || *detail.Resolution != "second fix" {
		t.Errorf("expected second values, got %q / %q", *detail.RootCause, *detail.Resolution)
	}
}

func TestInvestigationService_Complete_Unknown(t *testing.T) {
	svc, _ := newInvestigationService(t)

	_, err := svc.Complete(context.Background(), "nope0000", "rc", "fix", "")
	if !errors.Is(err, ErrInvestigationNotFound) {
		t.Fatalf("expected ErrInvestigationNotFound, got %v", err)
	}
}

func TestInvestigationService_Get_Unknown(t *testing.T) {
	svc, _ := newInvestigationService(t)

	_, err := svc.Get(context.Background(), "nope0000")
	if !errors.Is(err, ErrInvestigationNotFound) {
		t.Fatalf("expected ErrInvestigationNotFound, got %v", err)
	}
}

func TestInvestigationService_Search_DaysAgoBoundary(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	now := testStart
	svc := NewInvestigationService(db, WithClock(func() time.Time { return now }))

	exact := testhelpers.NewInvestigationBuilder().
		WithSummary("gateway timeout on checkout").
		StartedAt(now.Add(-7 * 24 * time.Hour)).
		Create(t, db)
	testhelpers.NewInvestigationBuilder().
		WithSummary("upstream timeout").
		StartedAt(now.Add(-7*24*time.Hour - time.Second)).
		Create(t, db)
	testhelpers.NewInvestigationBuilder().
		WithSummary("another timeout").
		StartedAt(now.Add(-8 * 24 * time.Hour)).
		Create(t, db)
	recent := testhelpers.NewInvestigationBuilder().
		WithSummary("TIMEOUT talking to redis").
		StartedAt(now.Add(-time.Hour)).
		Create(t, db)
	testhelpers.NewInvestigationBuilder().
		WithSummary("disk full").
		StartedAt(now.Add(-time.Hour)).
		Create(t, db)

	results, err := svc.Search(context.Background(), SearchParams{Query: "timeout", DaysAgo: 7})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ID != recent.ID || results[1].ID != exact.ID {
		t.Errorf("expected newest first [%s %s], got [%s %s]", recent.ID, exact.ID, results[0].ID, results[1].ID)
	}
}

func TestInvestigationService_Search_Filters(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	svc := NewInvestigationService(db, WithClock(func() time.Time { return testStart }))

	base := testStart.Add(-time.Hour)
	testhelpers.NewInvestigationBuilder().WithService("payment-api").WithTags("redis,latency").StartedAt(base).Create(t, db)
	testhelpers.NewInvestigationBuilder().WithService("checkout").WithTags("redis").StartedAt(base.Add(time.Minute)).Create(t, db)
	testhelpers.NewInvestigationBuilder().WithService("payment-api").
		StartedAt(base.Add(2*time.Minute)).
		Completed("100% cpu on node", "cordoned node").
		Create(t, db)

	tests := []struct {
		name   string
		params SearchParams
		want   int
	}{
		{name: "tag match", params: SearchParams{Query: "REDIS"}, want: 2},
		{name: "service filter", params: SearchParams{Service: "payment-api"}, want: 2},
		{name: "query and service", params: SearchParams{Query: "redis", Service: "checkout"}, want: 1},
		{name: "root cause match", params: SearchParams{Query: "cpu"}, want: 1},
		{name: "percent is literal", params: SearchParams{Query: "100%"}, want: 1},
		{name: "underscore is literal", params: SearchParams{Query: "redis_"}, want: 0},
		{name: "limit", params: SearchParams{Limit: 1}, want: 1},
		{name: "no filters", params: SearchParams{}, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := svc.Search(context.Background(), tt.params)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if len(results) != tt.want {
				t.Errorf("expected %d results, got %d", tt.want, len(results))
			}
		})
	}
}

func TestInvestigationService_Search_NonASCII(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	svc := NewInvestigationService(db, WithClock(func() time.Time { return testStart }))

	testhelpers.NewInvestigationBuilder().
		WithSummary("Échec de connexion à Redis").
		StartedAt(testStart.Add(-time.Hour)).
		Create(t, db)

	tests := []struct {
		query string
		want  int
	}{
		{query: "Échec", want: 1},
		{query: "Échec de connexion à Redis", want: 1},
		{query: "connexion à", want: 1},
		{query: "CONNEXION", want: 1},
		{query: "timeout", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			results, err := svc.Search(context.Background(), SearchParams{Query: tt.query})
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if len(results) != tt.want {
				t.Errorf("Search(%q) expected %d results, got %d", tt.query, tt.want, len(results))
			}
		})
	}
}

func TestInvestigationService_FindSimilar_Scoring(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	svc := NewInvestigationService(db, WithClock(func() time.Time { return testStart }))

	base := testStart.Add(-24 * time.Hour)
	rootCauseHit := testhelpers.NewInvestigationBuilder().
		WithService("payment-api").
		StartedAt(base).
		Completed("Connection refused by redis", "restarted redis").
		Create(t, db)
	summaryHit := testhelpers.NewInvestigationBuilder().
		WithService("payment-api").
		WithSummary("connection refused errors in checkout").
		StartedAt(base.Add(time.Minute)).
		Completed("bad deploy", "rollback").
		Create(t, db)
	tagHit := testhelpers.NewInvestigationBuilder().
		WithService("search").
		WithTags(" Connection , network").
		StartedAt(base.Add(2*time.Minute)).
		Completed("dns flake", "none").
		Create(t, db)
	testhelpers.NewInvestigationBuilder().
		WithService("payment-api").
		StartedAt(base.Add(3*time.Minute)).
		Completed("disk full", "cleaned logs").
		Create(t, db)
	testhelpers.NewInvestigationBuilder().
		WithSummary("connection refused").
		StartedAt(base.Add(4 * time.Minute)).
		Create(t, db) // in progress, never a candidate

	results, err := svc.FindSimilar(context.Background(), SimilarParams{ErrorMessage: "connection refused"})
	if err != nil {
		t.Fatalf("FindSimilar() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 scored results, got %d", len(results))
	}

	want := []struct {
		id    string
		score int
	}{
		{rootCauseHit.ID, 10},
		{summaryHit.ID, 5},
		{tagHit.ID, 3},
	}
	for i, w := range want {
		if results[i].ID != w.id || results[i].Score != w.score {
			t.Errorf("result %d: expected %s/%d, got %s/%d", i, w.id, w.score, results[i].ID, results[i].Score)
		}
	}

	results, err = svc.FindSimilar(context.Background(), SimilarParams{ErrorMessage: "connection refused", Service: "payment-api", Limit: 1})
	if err != nil {
		t.Fatalf("FindSimilar() error = %v", err)
	}
	if len(results) != 1 || results[0].ID != rootCauseHit.ID {
		t.Errorf("expected only the root cause hit, got %+v", results)
	}
}

func TestInvestigationService_FindSimilar_EmptyTagsNeverMatch(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	svc := NewInvestigationService(db, WithClock(func() time.Time { return testStart }))

	testhelpers.NewInvestigationBuilder().
		WithTags("storage,, ").
		StartedAt(testStart.Add(-time.Hour)).
		Completed("dns flake", "none").
		Create(t, db)

	results, err := svc.FindSimilar(context.Background(), SimilarParams{ErrorMessage: "connection refused"})
	if err != nil {
		t.Fatalf("FindSimilar() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("blank tags must not score, got %+v", results)
	}
}

func TestInvestigationService_FindSimilar_TiesKeepRecency(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	svc := NewInvestigationService(db)

	older := testhelpers.NewInvestigationBuilder().StartedAt(testStart.Add(-2*time.Hour)).Completed("oom killed", "more memory").Create(t, db)
	newer := testhelpers.NewInvestigationBuilder().StartedAt(testStart.Add(-time.Hour)).Completed("oom killed again", "more memory").Create(t, db)

	results, err := svc.FindSimilar(context.Background(), SimilarParams{ErrorMessage: "OOM killed"})
	if err != nil {
		t.Fatalf("FindSimilar() error = %v", err)
	}
	if len(results) != 2 || results[0].ID != newer.ID || results[1].ID != older.ID {
		t.Errorf("expected newer before older on equal score, got %+v", results)
	}
}

func TestInvestigationService_FindSimilar_NoMessage(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	svc := NewInvestigationService(db)

	for i := 0; i < 7; i++ {
		testhelpers.NewInvestigationBuilder().
			StartedAt(testStart.Add(time.Duration(i) * time.Minute)).
			Completed("rc", "fix").
			Create(t, db)
	}
	newest := testhelpers.NewInvestigationBuilder().
		StartedAt(testStart.Add(time.Hour)).
		Completed("rc", "fix").
		Create(t, db)

	results, err := svc.FindSimilar(context.Background(), SimilarParams{})
	if err != nil {
		t.Fatalf("FindSimilar() error = %v", err)
	}
	if len(results) != DefaultSimilarLimit {
		t.Fatalf("expected %d results, got %d", DefaultSimilarLimit, len(results))
	}
	if results[0].ID != newest.ID {
		t.Errorf("expected newest first, got %s", results[0].ID)
	}
	for _, r := range results {
		if r.Score != 0 {
			t.Errorf("expected unranked results, got score %d", r.Score)
		}
	}
}

func TestInvestigationService_Statistics(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	svc := NewInvestigationService(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		testhelpers.NewInvestigationBuilder().WithService("payment-api").StartedAt(testStart.Add(time.Duration(i) * time.Minute)).Create(t, db)
	}
	testhelpers.NewInvestigationBuilder().WithService("checkout").StartedAt(testStart.Add(time.Hour)).Completed("rc", "fix").Create(t, db)
	for i := 0; i < 3; i++ {
		testhelpers.NewInvestigationBuilder().StartedAt(testStart.Add(2*time.Hour + time.Duration(i)*time.Minute)).Create(t, db)
	}
	db.Create(&database.KnownPattern{ID: "kp000001", Pattern: "OOMKilled", CreatedAt: testStart, LastSeen: testStart})

	stats, err := svc.Statistics(ctx)
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if stats.TotalInvestigations != 7 {
		t.Errorf("expected 7 investigations, got %d", stats.TotalInvestigations)
	}
	if stats.ByStatus["in_progress"] != 6 || stats.ByStatus["completed"] != 1 {
		t.Errorf("unexpected by_status %v", stats.ByStatus)
	}
	if len(stats.TopServices) != 2 || stats.TopServices[0].Service != "payment-api" || stats.TopServices[0].Count != 3 {
		t.Errorf("unexpected top services %+v", stats.TopServices)
	}
	if stats.KnownPatterns != 1 {
		t.Errorf("expected 1 known pattern, got %d", stats.KnownPatterns)
	}
	if len(stats.RecentInvestigations) != 5 {
		t.Fatalf("expected 5 recent, got %d", len(stats.RecentInvestigations))
	}
	for i := 1; i < len(stats.RecentInvestigations); i++ {
		if stats.RecentInvestigations[i].StartedAt.After(stats.RecentInvestigations[i-1].StartedAt) {
			t.Error("recent investigations not ordered newest first")
		}
	}
}

func TestInvestigationService_Statistics_Empty(t *testing.T) {
	svc, _ := newInvestigationService(t)

	stats, err := svc.Statistics(context.Background())
	if err != nil {
		t.Fatalf("Statistics() error = %v", err)
	}
	if stats.TotalInvestigations != 0 || len(stats.ByStatus) != 0 || len(stats.TopServices) != 0 {
		t.Errorf("expected empty statistics, got %+v", stats)
	}
}

func TestInvestigationService_EndToEnd_PaymentAPI(t *testing.T) {
	svc, _ := newInvestigationService(t)
	ctx := context.Background()

	inv, err := svc.Start(ctx, StartParams{Service: "payment-api", Severity: "P2"})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.AddFinding(ctx, inv.ID, "log_error", "connection refused", ""); err != nil {
			t.Fatalf("AddFinding() error = %v", err)
		}
	}
	if _, err := svc.Complete(ctx, inv.ID, "redis pool exhausted", "scaled redis", ""); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	detail, err := svc.Get(ctx, inv.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if detail.Status != database.InvestigationStatusCompleted {
		t.Errorf("expected completed, got %s", detail.Status)
	}
	if detail.FindingCount != 2 {
		t.Errorf("expected 2 findings, got %d", detail.FindingCount)
	}
	if detail.RootCause == nil || *detail.RootCause != "redis pool exhausted" {
		t.Errorf("unexpected root cause %v", detail.RootCause)
	}
	if detail.Severity != "P2" {
		t.Errorf("expected severity P2, got %s", detail.Severity)
	}
}

package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	apperrors "github.com/rajasatyajit/IssueRadar/internal/errors"
	"github.com/rajasatyajit/IssueRadar/internal/models"
)

type mockDB struct {
	configured bool

	ExecFn     func(ctx context.Context, sql string, args ...any) (int64, error)
	QueryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
	HealthFn   func(ctx context.Context) error
}

func (m *mockDB) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if m.ExecFn != nil {
		return m.ExecFn(ctx, sql, args...)
	}
	return 1, nil
}

func (m *mockDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if m.QueryFn != nil {
		return m.QueryFn(ctx, sql, args...)
	}
	return &fakeRows{}, nil
}

func (m *mockDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if m.QueryRowFn != nil {
		return m.QueryRowFn(ctx, sql, args...)
	}
	return fakeRow{err: pgx.ErrNoRows}
}

func (m *mockDB) Health(ctx context.Context) error {
	if m.HealthFn != nil {
		return m.HealthFn(ctx)
	}
	return nil
}

func (m *mockDB) IsConfigured() bool { return m.configured }

// assign copies values into scan destinations of the matching type
func assign(dest []any, values []any) error {
	if len(dest) != len(values) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(values))
	}
	for i, v := range values {
		reflect.ValueOf(dest[i]).Elem().Set(reflect.ValueOf(v))
	}
	return nil
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(dest, r.values)
}

type fakeRows struct {
	pgx.Rows // unimplemented methods panic if called
	data     [][]any
	idx      int
	err      error
	closed   bool
}

func (r *fakeRows) Next() bool {
	if r.idx >= len(r.data) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeRows) Scan(dest ...any) error { return assign(dest, r.data[r.idx-1]) }
func (r *fakeRows) Err() error             { return r.err }
func (r *fakeRows) Close()                 { r.closed = true }

func pgError(code string) error {
	return &pgconn.PgError{Code: code, Message: "constraint"}
}

func validMention() models.Mention {
	return models.Mention{
		BrandID:    "b1",
		SourceType: models.SourceRSS,
		URL:        "https://example.com/a",
		URLHash:    "h",
		Text:       "battery fire",
		CreatedAt:  time.Now(),
	}
}

func TestPostgresStore_CreateMention_DuplicateIsConflict(t *testing.T) {
	var gotSQL string
	db := &mockDB{ExecFn: func(ctx context.Context, sql string, args ...any) (int64, error) {
		gotSQL = sql
		return 0, pgError("23505")
	}}
	s := NewPostgresStore(db)

	_, err := s.CreateMention(context.Background(), validMention())
	if !errors.Is(err, apperrors.ErrConflict) {
		t.Fatalf("Expected ErrConflict, got %v", err)
	}
	if !strings.Contains(gotSQL, "INSERT INTO mentions") {
		t.Errorf("Unexpected SQL: %s", gotSQL)
	}
}

func TestPostgresStore_CreateMention_InvalidSkipsDB(t *testing.T) {
	db := &mockDB{ExecFn: func(ctx context.Context, sql string, args ...any) (int64, error) {
		t.Fatal("Exec must not be called for an invalid mention")
		return 0, nil
	}}
	m := validMention()
	m.URLHash = ""

	if _, err := NewPostgresStore(db).CreateMention(context.Background(), m); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestPostgresStore_CreateMention_NullRaw(t *testing.T) {
	var rawArg any = "unset"
	db := &mockDB{ExecFn: func(ctx context.Context, sql string, args ...any) (int64, error) {
		rawArg = args[len(args)-1]
		return 1, nil
	}}
	created, err := NewPostgresStore(db).CreateMention(context.Background(), validMention())
	if err != nil {
		t.Fatal(err)
	}
	if rawArg != nil {
		t.Errorf("Expected NULL raw payload, got %v", rawArg)
	}
	if created.ID == "" {
		t.Error("Expected generated id")
	}
}

func TestPostgresStore_AttachMention_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
	}{
		{"unique violation", pgError("23505"), apperrors.ErrConflict},
		{"foreign key violation", pgError("23503"), apperrors.ErrNotFound},
		{"bad uuid", pgError("22P02"), apperrors.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := &mockDB{ExecFn: func(ctx context.Context, sql string, args ...any) (int64, error) {
				return 0, tt.err
			}}
			err := NewPostgresStore(db).AttachMention(context.Background(), "i1", "m1")
			if !errors.Is(err, tt.target) {
				t.Errorf("Expected %v, got %v", tt.target, err)
			}
		})
	}
}

func TestPostgresStore_GenericErrorIsDatabaseError(t *testing.T) {
	db := &mockDB{ExecFn: func(ctx context.Context, sql string, args ...any) (int64, error) {
		return 0, errors.New("connection reset")
	}}
	err := NewPostgresStore(db).UpsertRiskScore(context.Background(), models.RiskScore{IssueID: "i1"})

	var dbErr apperrors.DatabaseError
	if !errors.As(err, &dbErr) {
		t.Fatalf("Expected DatabaseError, got %T %v", err, err)
	}
	if dbErr.Operation != "upsert risk score" {
		t.Errorf("Unexpected operation %q", dbErr.Operation)
	}
}

func TestPostgresStore_UpsertsUseOnConflict(t *testing.T) {
	var stmts []string
	db := &mockDB{ExecFn: func(ctx context.Context, sql string, args ...any) (int64, error) {
		stmts = append(stmts, sql)
		return 1, nil
	}}
	s := NewPostgresStore(db)
	ctx := context.Background()

	if err := s.UpsertRiskScore(ctx, models.RiskScore{IssueID: "i1", Score: 50}); err != nil {
		t.Fatal(err)
	}
	rec := models.Recommendation{IssueID: "i1", Action: models.ActionMonitor, Owner: models.OwnerPR, Posture: models.PostureSilent}
	if err := s.UpsertRecommendation(ctx, rec); err != nil {
		t.Fatal(err)
	}

	if len(stmts) != 2 {
		t.Fatalf("Expected 2 statements, got %d", len(stmts))
	}
	for _, sql := range stmts {
		if !strings.Contains(sql, "ON CONFLICT (issue_id) DO UPDATE") {
			t.Errorf("Expected upsert, got %s", sql)
		}
	}
}

func TestPostgresStore_UpdateIssueStatus(t *testing.T) {
	db := &mockDB{ExecFn: func(ctx context.Context, sql string, args ...any) (int64, error) {
		return 0, nil
	}}
	s := NewPostgresStore(db)

	if err := s.UpdateIssueStatus(context.Background(), "i1", models.StatusActive); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected ErrNotFound when no row updated, got %v", err)
	}
	if err := s.UpdateIssueStatus(context.Background(), "i1", "OPEN"); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}

func TestPostgresStore_GetOrganization_NotFound(t *testing.T) {
	s := NewPostgresStore(&mockDB{})
	if _, err := s.GetOrganization(context.Background(), "x"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPostgresStore_ListOrganizations_Scans(t *testing.T) {
	rows := &fakeRows{data: [][]any{
		{"o1", "Demo Org", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"o2", "Other", time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)},
	}}
	var gotSQL string
	db := &mockDB{QueryFn: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
		gotSQL = sql
		return rows, nil
	}}

	orgs, err := NewPostgresStore(db).ListOrganizations(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(orgs) != 2 || orgs[0].Name != "Demo Org" || orgs[1].ID != "o2" {
		t.Errorf("Unexpected organizations: %+v", orgs)
	}
	if !rows.closed {
		t.Error("Expected rows to be closed")
	}
	if !strings.Contains(gotSQL, "ORDER BY created_at ASC") {
		t.Errorf("Unexpected SQL: %s", gotSQL)
	}
}

func TestPostgresStore_ListUnclusteredMentions_Query(t *testing.T) {
	var gotSQL string
	var gotArgs []any
	db := &mockDB{QueryFn: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
		gotSQL, gotArgs = sql, args
		return &fakeRows{}, nil
	}}

	got, err := NewPostgresStore(db).ListUnclusteredMentions(context.Background(), "b1", 200)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("Expected no mentions, got %d", len(got))
	}

	for _, want := range []string{"FROM mentions m", "NOT EXISTS", "m.brand_id = $1", "ORDER BY m.created_at DESC", "LIMIT 200"} {
		if !strings.Contains(gotSQL, want) {
			t.Errorf("Expected SQL to contain %q, got %s", want, gotSQL)
		}
	}
	if len(gotArgs) != 1 || gotArgs[0] != "b1" {
		t.Errorf("Unexpected args: %v", gotArgs)
	}
}

func TestPostgresStore_ListIssueMentions_ScansRaw(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := &fakeRows{data: [][]any{
		{"m1", "b1", "RSS", "Feed", "https://a", "h1", "text", "", "", at, 0.0, []byte(`{"k":1}`)},
		{"m2", "b1", "REDDIT", "Reddit", "https://b", "h2", "text", "", "", at, 0.0, []byte(nil)},
	}}
	db := &mockDB{QueryFn: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
		if !strings.Contains(sql, "JOIN mentions m ON m.id = im.mention_id") {
			t.Errorf("Unexpected SQL: %s", sql)
		}
		return rows, nil
	}}

	ms, err := NewPostgresStore(db).ListIssueMentions(context.Background(), "i1", 25)
	if err != nil {
		t.Fatal(err)
	}
	if len(ms) != 2 {
		t.Fatalf("Expected 2 mentions, got %d", len(ms))
	}
	if ms[0].SourceType != models.SourceRSS || string(ms[0].Raw) != `{"k":1}` {
		t.Errorf("Unexpected first mention: %+v", ms[0])
	}
	if ms[1].SourceType != models.SourceReddit || ms[1].Raw != nil {
		t.Errorf("Unexpected second mention: %+v", ms[1])
	}
}

func TestPostgresStore_QueryErrorPropagates(t *testing.T) {
	db := &mockDB{QueryFn: func(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
		return nil, errors.New("db error")
	}}
	_, err := NewPostgresStore(db).ListRecentIssues(context.Background(), "b1", 50)
	if err == nil || !strings.Contains(err.Error(), "list issues") {
		t.Errorf("Expected wrapped error, got %v", err)
	}
}

func TestPostgresStore_CountIssueMentionsSince(t *testing.T) {
	since := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	db := &mockDB{QueryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
		if !strings.Contains(sql, "m.created_at >= $2") {
			t.Errorf("Unexpected SQL: %s", sql)
		}
		if len(args) != 2 || args[1] != since {
			t.Errorf("Unexpected args: %v", args)
		}
		return fakeRow{values: []any{7}}
	}}

	n, err := NewPostgresStore(db).CountIssueMentionsSince(context.Background(), "i1", since)
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 {
		t.Errorf("Expected 7, got %d", n)
	}
}

func TestPostgresStore_Health(t *testing.T) {
	want := errors.New("down")
	s := NewPostgresStore(&mockDB{HealthFn: func(ctx context.Context) error { return want }})
	if err := s.Health(context.Background()); !errors.Is(err, want) {
		t.Errorf("Expected health error to propagate, got %v", err)
	}
}

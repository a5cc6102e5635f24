package catalog

import (
	"context"
	"errors"
	"testing"
)

const (
	convJSON = `{"system_prompt":{"prompt":"You are a bank assistant","metadata":{"customer":"c-1"}},
		"turns":[
			{"user_prompt":"What is my balance?","agent_response":"Let me check.","context":{"context_type":"API_CALL","agent_query":{"sql":"SELECT 1"},"query_response":{"balance":10}}},
			{"user_prompt":"Thanks","agent_response":"You are welcome, 100% happy to help","context":null}
		]}`
	metricsJSON = `{"system_tokens":12,"context_cost":0.5,"conversation_cost":1.25,"total_cost":1.75,
		"metrics":[
			{"context_usage":{"prompt_tokens":5,"input_tokens":17,"output_tokens":4},"context_cost":0.5,"conversation_usage":{"prompt_tokens":5,"input_tokens":25,"output_tokens":3},"conversation_cost":0.75},
			{"context_usage":null,"context_cost":null,"conversation_usage":{"prompt_tokens":1,"input_tokens":21,"output_tokens":8},"conversation_cost":0.5}
		]}`
)

func newTestService(t *testing.T) *DBService {
	t.Helper()
	svc, err := NewDBService(":memory:")
	if err != nil {
		t.Fatalf("NewDBService(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { svc.Close() })
	return svc
}

// TestInsertAndGet covers the insert, summary, document round trip.
func TestInsertAndGet(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tr, err := svc.Insert(ctx, "bank support", []byte(convJSON), []byte(metricsJSON))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if tr.ID == "" {
		t.Fatal("expected a generated id")
	}

	got, err := svc.Get(ctx, tr.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "bank support" || got.Turns != 2 || got.ContextTurns != 1 {
		t.Errorf("unexpected summary %+v", got)
	}
	if got.SystemTokens != 12 || got.TotalCost != 1.75 {
		t.Errorf("unexpected totals %+v", got)
	}

	doc, err := svc.Document(ctx, tr.ID, DocConversation)
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}
	if string(doc) != convJSON {
		t.Error("conversation document was not stored verbatim")
	}
	doc, err = svc.Document(ctx, tr.ID, DocMetrics)
	if err != nil {
		t.Fatalf("Document failed: %v", err)
	}
	if string(doc) != metricsJSON {
		t.Error("metrics document was not stored verbatim")
	}
}

func TestInsertRejectsMalformed(t *testing.T) {
	svc := newTestService(t)

	if _, err := svc.Insert(context.Background(), "bad", []byte(`{"turns":`), []byte(metricsJSON)); err == nil {
		t.Fatal("expected an error for a truncated conversation")
	}
	if _, err := svc.Insert(context.Background(), "bad", []byte(convJSON), []byte(`{}`)); err == nil {
		t.Fatal("expected an error for metrics without entries")
	}

	list, err := svc.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected nothing stored, got %d", len(list))
	}
}

func TestGetNotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	_, err = svc.Document(context.Background(), "missing", DocMetrics)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.Document(context.Background(), "missing", "summary"); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("expected an unknown document error, got %v", err)
	}
}

func TestListFilter(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, name := range []string{"bank support", "retail", "bank_fraud"} {
		if _, err := svc.Insert(ctx, name, []byte(convJSON), []byte(metricsJSON)); err != nil {
			t.Fatalf("Insert(%s) failed: %v", name, err)
		}
	}

	all, err := svc.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 transcripts, got %d", len(all))
	}
	if all[0].Name != "bank_fraud" {
		t.Errorf("expected newest first, got %s", all[0].Name)
	}

	bank, err := svc.List(ctx, Filter{Name: "bank"})
	if err != nil {
		t.Fatalf("List(bank) failed: %v", err)
	}
	if len(bank) != 2 {
		t.Errorf("expected 2 bank transcripts, got %d", len(bank))
	}

	// '_' is literal, not a wildcard.
	underscore, err := svc.List(ctx, Filter{Name: "k_f"})
	if err != nil {
		t.Fatalf("List(k_f) failed: %v", err)
	}
	if len(underscore) != 1 {
		t.Errorf("expected 1 match for k_f, got %d", len(underscore))
	}

	page, err := svc.List(ctx, Filter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("List(page) failed: %v", err)
	}
	if len(page) != 1 || page[0].Name != "retail" {
		t.Errorf("unexpected page %+v", page)
	}
}

func TestSearchTurns(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tr, err := svc.Insert(ctx, "bank support", []byte(convJSON), []byte(metricsJSON))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	hits, err := svc.SearchTurns(ctx, "balance", 10)
	if err != nil {
		t.Fatalf("SearchTurns failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	h := hits[0]
	if h.TranscriptID != tr.ID || h.Turn != 0 {
		t.Errorf("unexpected hit %+v", h)
	}
	if h.ContextType == nil || *h.ContextType != "API_CALL" {
		t.Errorf("expected API_CALL context, got %v", h.ContextType)
	}
	if h.Cost != 1.25 {
		t.Errorf("expected turn cost 1.25, got %v", h.Cost)
	}

	hits, err = svc.SearchTurns(ctx, "100%", 10)
	if err != nil {
		t.Fatalf("SearchTurns(100%%) failed: %v", err)
	}
	if len(hits) != 1 || hits[0].Turn != 1 {
		t.Errorf("expected the second turn, got %+v", hits)
	}
}

func TestDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tr, err := svc.Insert(ctx, "bank support", []byte(convJSON), []byte(metricsJSON))
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := svc.Delete(ctx, tr.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := svc.Get(ctx, tr.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}

	hits, err := svc.SearchTurns(ctx, "balance", 10)
	if err != nil {
		t.Fatalf("SearchTurns failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected turns to be deleted with the transcript, got %d", len(hits))
	}

	if err := svc.Delete(ctx, tr.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

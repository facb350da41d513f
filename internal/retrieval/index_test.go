package retrieval

import (
	"context"
	"strings"
	"testing"
)

func TestTopKRanksByOverlap(t *testing.T) {
	ix, err := NewIndex()
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	ix.AddDocument("handbuch", "Die Bestellung wird im SAP System erfasst und geprüft.")
	ix.AddDocument("handbuch", "Das Team trifft sich jeden Montag zum Frühstück.")

	got, err := ix.TopK(context.Background(), "Wie wird die Bestellung im SAP System erfasst?", 3)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("results = %d, want 1 (the unrelated chunk is below threshold)", len(got))
	}
	if !strings.Contains(got[0], "SAP") {
		t.Fatalf("wrong chunk returned: %q", got[0])
	}
}

func TestTopKEmptyIndex(t *testing.T) {
	ix, err := NewIndex()
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	got, err := ix.TopK(context.Background(), "irgendwas", 3)
	if err != nil {
		t.Fatalf("TopK: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("empty index returned %v", got)
	}
}

func TestChunkingOverlap(t *testing.T) {
	ix, err := NewIndex()
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	ix.AddDocument("lang", strings.Repeat("prozess dokumentation ", 200))
	if ix.Len() < 2 {
		t.Fatalf("long document should split into several chunks, got %d", ix.Len())
	}
	for _, c := range ix.chunks {
		if n := len([]rune(c.text)); n > chunkSize {
			t.Fatalf("chunk exceeds window: %d runes", n)
		}
	}
}

func TestCacheInvalidatedByAdd(t *testing.T) {
	ix, err := NewIndex()
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	ix.AddDocument("a", "Schnittstellen zwischen SAP und dem Ticketsystem laufen über REST.")

	first, err := ix.TopK(context.Background(), "Schnittstellen zwischen SAP und Ticketsystem", 2)
	if err != nil || len(first) != 1 {
		t.Fatalf("first query: %v %v", first, err)
	}

	ix.AddDocument("b", "Weitere Schnittstellen zwischen SAP und dem Archivsystem nutzen ebenfalls REST.")
	second, err := ix.TopK(context.Background(), "Schnittstellen zwischen SAP und Ticketsystem", 2)
	if err != nil {
		t.Fatalf("second query: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("new document not visible after add, results = %d", len(second))
	}
}

func TestTokenizeSkipsShortAndNumeric(t *testing.T) {
	words := tokenize("A 42 SAP-System, REST_API!")
	if words["a"] || words["42"] {
		t.Fatalf("single letters and bare numbers must be dropped: %v", words)
	}
	for _, want := range []string{"sap", "system", "rest_api"} {
		if !words[want] {
			t.Fatalf("missing token %q in %v", want, words)
		}
	}
}

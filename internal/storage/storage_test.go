package storage

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"swapScope/internal/model"
)

func TestSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	store := NewSettingsStore(path)

	if _, found, err := store.Load(); err != nil || found {
		t.Fatalf("fresh store: found=%v err=%v", found, err)
	}

	if err := store.Save(Settings{Slippage: "0.5"}); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, found, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !found {
		t.Fatal("settings not found after save")
	}
	if loaded.Slippage != "0.5" {
		t.Fatalf("slippage %q, want 0.5", loaded.Slippage)
	}
	if loaded.UpdatedAt == "" {
		t.Fatal("missing updated_at stamp")
	}

	// No tmp file left behind.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("tmp file survived: %v", err)
	}
}

func TestImportTokenUpserts(t *testing.T) {
	store := NewSettingsStore(filepath.Join(t.TempDir(), "settings.json"))

	first := model.Token{Root: "token-a", Symbol: "AAA", Decimals: 9}
	if err := store.ImportToken(first); err != nil {
		t.Fatalf("import: %v", err)
	}
	second := model.Token{Root: "token-b", Symbol: "BBB", Decimals: 6}
	if err := store.ImportToken(second); err != nil {
		t.Fatalf("import second: %v", err)
	}
	// Re-importing a known root replaces it instead of duplicating.
	renamed := model.Token{Root: "token-a", Symbol: "AAA2", Decimals: 9}
	if err := store.ImportToken(renamed); err != nil {
		t.Fatalf("re-import: %v", err)
	}

	settings, _, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(settings.ImportedTokens) != 2 {
		t.Fatalf("expected 2 imported tokens, got %d", len(settings.ImportedTokens))
	}
	if settings.ImportedTokens[0].Symbol != "AAA2" {
		t.Fatalf("token-a not replaced: %+v", settings.ImportedTokens[0])
	}
	for _, token := range settings.ImportedTokens {
		if !token.Imported {
			t.Fatalf("token %s not flagged imported", token.Root)
		}
	}
}

func TestJsonlJournalAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "swaps.jsonl")
	journal := NewJsonlJournal(path)

	records := []model.SwapRecord{
		{
			CorrelationID: 101,
			Owner:         "0:owner",
			FromRoot:      "token-a",
			ToRoot:        "token-c",
			Status:        model.SwapStatusSettled,
			Spent:         decimal.NewFromInt(1000),
			Received:      decimal.NewFromInt(498),
		},
		{
			CorrelationID: 102,
			Owner:         "0:owner",
			FromRoot:      "token-a",
			ToRoot:        "token-c",
			Status:        model.SwapStatusCancelled,
			CancelledHop:  1,
		},
	}
	if err := journal.PutSwapBatch(records[:1]); err != nil {
		t.Fatalf("first batch: %v", err)
	}
	if err := journal.PutSwapBatch(records[1:]); err != nil {
		t.Fatalf("second batch: %v", err)
	}
	if err := journal.PutSwapBatch(nil); err != nil {
		t.Fatalf("empty batch: %v", err)
	}

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer file.Close()

	var got []model.SwapRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var record model.SwapRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			t.Fatalf("parse line: %v", err)
		}
		got = append(got, record)
	}
	if err := scanner.Err(); err != nil {
		t.Fatalf("scan: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(got))
	}
	if got[0].CorrelationID != 101 || got[1].CorrelationID != 102 {
		t.Fatalf("records out of order: %d, %d", got[0].CorrelationID, got[1].CorrelationID)
	}
	if got[1].Status != model.SwapStatusCancelled || got[1].CancelledHop != 1 {
		t.Fatalf("cancelled record mangled: %+v", got[1])
	}
}

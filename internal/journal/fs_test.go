package journal

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dropDatabas3/posbridge/internal/domain"
)

func sampleTx() *domain.LogicalTransaction {
	return &domain.LogicalTransaction{
		GUID:     "0b84ef1c-1111-2222-3333-444455556666",
		Seq:      "000123",
		Channel:  "pos1",
		Type:     "sale",
		Store:    "0711",
		Terminal: "1",
		TsUTC:    "2026-08-21T14:03:22",
		Amount:   decimal.RequireFromString("6.99"),
	}
}

func TestFSSaveEvent(t *testing.T) {
	dir := t.TempDir()
	j := NewFS(dir)
	tx := sampleTx()

	if err := j.SaveEvent(context.Background(), tx); err != nil {
		t.Fatalf("SaveEvent: %v", err)
	}
	path := filepath.Join(dir, "events", "000123_"+tx.GUID+".json")
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read event file: %v", err)
	}
	var rec fsRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		t.Fatalf("decode event file: %v", err)
	}
	if rec.Transaction == nil || rec.Transaction.GUID != tx.GUID {
		t.Fatalf("event file does not round-trip the transaction: %+v", rec.Transaction)
	}
	if rec.Result != nil {
		t.Fatal("event record must not carry a result")
	}
}

func TestFSSaveResultOutcomeDirs(t *testing.T) {
	dir := t.TempDir()
	j := NewFS(dir)
	tx := sampleTx()
	payload := []byte(`{"model":"Transaction"}`)

	ok := Result{Sent: true, Status: 200, Kind: "sale", Endpoint: "https://api/tx"}
	if err := j.SaveResult(context.Background(), tx, payload, ok); err != nil {
		t.Fatalf("SaveResult sent: %v", err)
	}
	sent := filepath.Join(dir, "transactions", "2026", "08", "21", "sent", "000123_"+tx.GUID+".json")
	if _, err := os.Stat(sent); err != nil {
		t.Fatalf("sent file missing: %v", err)
	}

	bad := Result{Sent: false, Status: 422, Body: "rejected", Kind: "sale"}
	if err := j.SaveResult(context.Background(), tx, payload, bad); err != nil {
		t.Fatalf("SaveResult failed: %v", err)
	}
	failed := filepath.Join(dir, "transactions", "2026", "08", "21", "failed", "000123_"+tx.GUID+".json")
	b, err := os.ReadFile(failed)
	if err != nil {
		t.Fatalf("failed file missing: %v", err)
	}
	var rec fsRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rec.Result == nil || rec.Result.Status != 422 {
		t.Fatalf("result not archived: %+v", rec.Result)
	}
	if string(rec.Payload) != string(payload) {
		t.Fatalf("payload not archived verbatim: %s", rec.Payload)
	}
}

package paper

import (
	"testing"
)

func TestLedgerRecordSnapshot(t *testing.T) {
	ledger := NewLedger(4)
	ledger.Record(Fill{Symbol: "BTCUSD", Qty: 1, Price: 10})
	ledger.Record(Fill{Symbol: "ETHUSD", Qty: 2, Price: 20})
	ledger.Record(Fill{Symbol: "BTCUSD", Qty: 3, Price: 30})

	snapshot := ledger.Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("expected 3 fills, got %d", len(snapshot))
	}
	last, ok := ledger.Last("BTCUSD")
	if !ok || last.Price != 30 {
		t.Fatalf("unexpected last fill %+v", last)
	}
	if _, ok := ledger.Last("SOLUSD"); ok {
		t.Fatalf("expected no fill for unknown symbol")
	}
}

func TestLedgerDropsOldestPastCapacity(t *testing.T) {
	ledger := NewLedger(2)
	for i := 1; i <= 5; i++ {
		ledger.Record(Fill{Symbol: "BTCUSD", Price: float64(i)})
	}
	snapshot := ledger.Snapshot()
	if ledger.Len() != 2 || len(snapshot) != 2 {
		t.Fatalf("expected ledger capped at 2, got %d", ledger.Len())
	}
	if snapshot[0].Price != 4 || snapshot[1].Price != 5 {
		t.Fatalf("expected the two newest fills in order, got %+v", snapshot)
	}
	if last, _ := ledger.Last("BTCUSD"); last.Price != 5 {
		t.Fatalf("unexpected last fill %+v", last)
	}
}

func TestLedgerDefaultCapacity(t *testing.T) {
	ledger := NewLedger(0)
	for i := 0; i < defaultLedgerCapacity+10; i++ {
		ledger.Record(Fill{Symbol: "BTCUSD"})
	}
	if ledger.Len() != defaultLedgerCapacity {
		t.Fatalf("expected default cap %d, got %d", defaultLedgerCapacity, ledger.Len())
	}
}

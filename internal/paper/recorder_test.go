package paper

import (
	"bufio"
	"encoding/json"
	"os"
	"testing"

	"volumebot-go/internal/exchange"
)

func TestJSONLRecorder(t *testing.T) {
	tmp := t.TempDir()
	path := tmp + "/fills/fills.jsonl"

	recorder, err := NewJSONLRecorder(path)
	if err != nil {
		t.Fatalf("NewJSONLRecorder error: %v", err)
	}
	fill := Fill{OrderID: "o-1", Symbol: "BTCUSD", Side: exchange.Buy, Qty: 1, Price: 1000, Notional: 1000}
	recorder.Record(fill)
	if err := recorder.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	recorder.Record(fill)

	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recorded file: %v", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lines := 0
	var decoded Fill
	for scanner.Scan() {
		lines++
		if err := json.Unmarshal(scanner.Bytes(), &decoded); err != nil {
			t.Fatalf("json decode: %v", err)
		}
	}
	if lines != 1 {
		t.Fatalf("expected exactly one line, got %d", lines)
	}
	if decoded.Symbol != fill.Symbol || decoded.Side != fill.Side || decoded.OrderID != "o-1" {
		t.Fatalf("unexpected decoded fill %+v", decoded)
	}
}

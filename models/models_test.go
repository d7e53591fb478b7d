package models

import (
	"encoding/json"
	"strings"
	"testing"
)

// The serving boundary depends on these exact field names; a rename would
// silently break API consumers.
func TestBookSnapshotWireFields(t *testing.T) {
	snap := BookSnapshot{
		Market: MarketRef{Symbol: "SOL-PERP", MarketIndex: 0},
		Bids:   []PriceLevel{{Price: 100, Size: 8, Notional: 800}},
		Asks:   []PriceLevel{{Price: 101, Size: 4, Notional: 404}},
		Mid:    100.5,
		Spread: 1,
		TS:     1700000000000,
		Status: StatusOK,
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	for _, field := range []string{
		`"market"`, `"symbol"`, `"marketIndex"`, `"bids"`, `"asks"`,
		`"mid"`, `"spread"`, `"ts"`, `"status"`, `"price"`, `"size"`, `"notional"`,
	} {
		if !strings.Contains(string(data), field) {
			t.Errorf("snapshot JSON missing field %s: %s", field, data)
		}
	}
}

func TestHealthOmitsEmptyError(t *testing.T) {
	data, err := json.Marshal(Health{Status: StatusOK, LastOkAt: 1})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "lastError") {
		t.Errorf("expected lastError omitted when empty: %s", data)
	}
}

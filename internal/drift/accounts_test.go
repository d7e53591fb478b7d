package drift

import (
	"encoding/binary"
	"testing"
)

func buildPerpMarket(name string, oracle [32]byte, index uint16, status uint8) []byte {
	data := make([]byte, perpMarketAccountSize)
	copy(data[8:40], name)
	copy(data[40:72], oracle[:])
	binary.LittleEndian.PutUint16(data[72:74], index)
	data[74] = status
	return data
}

func putOrderSlot(data []byte, slot int, ord Order) {
	off := 40 + slot*orderSlotSize
	data[off] = ord.Status
	data[off+1] = ord.Side
	data[off+2] = ord.OrderType
	binary.LittleEndian.PutUint16(data[off+4:off+6], ord.MarketIndex)
	binary.LittleEndian.PutUint64(data[off+8:off+16], ord.Slot)
	binary.LittleEndian.PutUint64(data[off+16:off+24], uint64(ord.Price))
	binary.LittleEndian.PutUint64(data[off+24:off+32], uint64(ord.OracleOffset))
	binary.LittleEndian.PutUint64(data[off+32:off+40], uint64(ord.BaseAmount))
	binary.LittleEndian.PutUint64(data[off+40:off+48], uint64(ord.BaseFilled))
}

func buildUser(authority [32]byte, orders ...Order) []byte {
	data := make([]byte, userAccountSize)
	copy(data[8:40], authority[:])
	for i, ord := range orders {
		putOrderSlot(data, i, ord)
	}
	return data
}

func TestDecodePerpMarket(t *testing.T) {
	oracle := [32]byte{1, 2, 3}
	data := buildPerpMarket("SOL-PERP", oracle, 7, 1)

	acct, err := decodePerpMarket(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if acct.Name != "SOL-PERP" {
		t.Errorf("expected name SOL-PERP, got %q", acct.Name)
	}
	if acct.Oracle != oracle {
		t.Error("oracle address mismatch")
	}
	if acct.MarketIndex != 7 {
		t.Errorf("expected market index 7, got %d", acct.MarketIndex)
	}
	if acct.Status != 1 {
		t.Errorf("expected status 1, got %d", acct.Status)
	}
}

func TestDecodePerpMarketTooShort(t *testing.T) {
	if _, err := decodePerpMarket(make([]byte, 10)); err == nil {
		t.Error("expected error for truncated account")
	}
}

func TestDecodeMarketNamePadding(t *testing.T) {
	raw := make([]byte, 32)
	copy(raw, "BTC-PERP ")

	if got := decodeMarketName(raw); got != "BTC-PERP" {
		t.Errorf("expected trimmed name, got %q", got)
	}
}

func TestDecodeUser(t *testing.T) {
	authority := [32]byte{9}
	open := Order{
		Status:      orderStatusOpen,
		Side:        orderSideBid,
		OrderType:   orderTypeLimit,
		MarketIndex: 3,
		Slot:        42,
		Price:       100_000_000,
		BaseAmount:  5_000_000_000,
		BaseFilled:  1_000_000_000,
	}
	data := buildUser(authority, open)

	user, err := decodeUser(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if user.Authority != authority {
		t.Error("authority mismatch")
	}
	if len(user.Orders) != 1 {
		t.Fatalf("expected 1 open order, got %d", len(user.Orders))
	}
	if user.Orders[0] != open {
		t.Errorf("order mismatch: %+v", user.Orders[0])
	}
}

func TestDecodeUserDropsUnusedSlots(t *testing.T) {
	data := buildUser([32]byte{},
		Order{Status: orderStatusNone, Price: 1},
		Order{Status: orderStatusOpen, OrderType: orderTypeLimit, Price: 2},
		Order{Status: orderStatusNone, Price: 3},
	)

	user, err := decodeUser(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(user.Orders) != 1 {
		t.Fatalf("expected only the open slot, got %d orders", len(user.Orders))
	}
	if user.Orders[0].Price != 2 {
		t.Errorf("expected the open order kept, got price %d", user.Orders[0].Price)
	}
}

func TestDecodeUserTooShort(t *testing.T) {
	if _, err := decodeUser(make([]byte, userAccountSize-1)); err == nil {
		t.Error("expected error for truncated account")
	}
}

func TestDecodeOracle(t *testing.T) {
	data := make([]byte, oracleAccountSize)
	binary.LittleEndian.PutUint64(data[8:16], uint64(101_500_000))
	binary.LittleEndian.PutUint64(data[16:24], 250)
	binary.LittleEndian.PutUint64(data[24:32], 9000)

	oracle, err := decodeOracle(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if oracle.Price != 101_500_000 {
		t.Errorf("expected price 101500000, got %d", oracle.Price)
	}
	if oracle.Confidence != 250 {
		t.Errorf("expected confidence 250, got %d", oracle.Confidence)
	}
	if oracle.Slot != 9000 {
		t.Errorf("expected slot 9000, got %d", oracle.Slot)
	}
}

func TestDecodeOracleNegativePrice(t *testing.T) {
	data := make([]byte, oracleAccountSize)
	price := int64(-5)
	binary.LittleEndian.PutUint64(data[8:16], uint64(price))

	oracle, err := decodeOracle(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if oracle.Price != -5 {
		t.Errorf("expected signed price -5, got %d", oracle.Price)
	}
}

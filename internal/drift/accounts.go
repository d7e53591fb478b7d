package drift

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"
)

// On-chain account layouts of the perp program. All integers are
// little-endian at fixed offsets; the first 8 bytes of every account are its
// kind tag.
const (
	perpMarketAccountSize = 80
	oracleAccountSize     = 32

	maxOrderSlots   = 32
	orderSlotSize   = 48
	userAccountSize = 8 + 32 + maxOrderSlots*orderSlotSize
)

// Order slot status values.
const (
	orderStatusNone uint8 = 0
	orderStatusOpen uint8 = 1
)

// Order side values.
const (
	orderSideBid uint8 = 0
	orderSideAsk uint8 = 1
)

// Order pricing modes.
const (
	// orderTypeLimit carries a fixed raw price.
	orderTypeLimit uint8 = 0
	// orderTypeOracle prices as oracle price plus a signed offset.
	orderTypeOracle uint8 = 1
)

// PerpMarketAccount is the decoded on-chain market definition.
type PerpMarketAccount struct {
	Name        string
	Oracle      [32]byte
	MarketIndex uint16
	Status      uint8
}

// decodePerpMarket parses a perp market account:
//
//	0:8    kind tag
//	8:40   name, NUL padded utf8
//	40:72  oracle address
//	72:74  market index u16
//	74:75  status u8
func decodePerpMarket(data []byte) (PerpMarketAccount, error) {
	if len(data) < 75 {
		return PerpMarketAccount{}, fmt.Errorf("perp market account too short: %d bytes", len(data))
	}
	var acct PerpMarketAccount
	acct.Name = decodeMarketName(data[8:40])
	copy(acct.Oracle[:], data[40:72])
	acct.MarketIndex = binary.LittleEndian.Uint16(data[72:74])
	acct.Status = data[74]
	return acct, nil
}

// decodeMarketName strips the NUL padding of a fixed-width on-chain name.
func decodeMarketName(raw []byte) string {
	return strings.TrimSpace(string(bytes.TrimRight(raw, "\x00")))
}

// Order is one resting order slot of a user account.
type Order struct {
	Status       uint8
	Side         uint8
	OrderType    uint8
	MarketIndex  uint16
	Slot         uint64
	Price        int64
	OracleOffset int64
	BaseAmount   int64
	BaseFilled   int64
}

// UserAccount is the decoded on-chain user (order owner) state.
type UserAccount struct {
	Authority [32]byte
	Orders    []Order
}

// decodeUser parses a user account: 8-byte kind tag, 32-byte authority, then
// a fixed array of order slots:
//
//	0      status u8
//	1      side u8
//	2      order type u8
//	4:6    market index u16
//	8:16   placement slot u64
//	16:24  price u64 (raw price units)
//	24:32  oracle offset i64 (raw price units)
//	32:40  base amount u64 (raw base units)
//	40:48  base filled u64 (raw base units)
//
// Unused slots have status none and are dropped here.
func decodeUser(data []byte) (UserAccount, error) {
	if len(data) < userAccountSize {
		return UserAccount{}, fmt.Errorf("user account too short: %d bytes", len(data))
	}
	var user UserAccount
	copy(user.Authority[:], data[8:40])

	for i := 0; i < maxOrderSlots; i++ {
		slot := data[40+i*orderSlotSize : 40+(i+1)*orderSlotSize]
		if slot[0] != orderStatusOpen {
			continue
		}
		user.Orders = append(user.Orders, Order{
			Status:       slot[0],
			Side:         slot[1],
			OrderType:    slot[2],
			MarketIndex:  binary.LittleEndian.Uint16(slot[4:6]),
			Slot:         binary.LittleEndian.Uint64(slot[8:16]),
			Price:        int64(binary.LittleEndian.Uint64(slot[16:24])),
			OracleOffset: int64(binary.LittleEndian.Uint64(slot[24:32])),
			BaseAmount:   int64(binary.LittleEndian.Uint64(slot[32:40])),
			BaseFilled:   int64(binary.LittleEndian.Uint64(slot[40:48])),
		})
	}
	return user, nil
}

// OracleAccount is the decoded oracle price account.
type OracleAccount struct {
	Price      int64
	Confidence uint64
	Slot       uint64
}

// decodeOracle parses an oracle account: 8-byte kind tag, price i64 in raw
// price units, confidence u64, publish slot u64.
func decodeOracle(data []byte) (OracleAccount, error) {
	if len(data) < oracleAccountSize {
		return OracleAccount{}, fmt.Errorf("oracle account too short: %d bytes", len(data))
	}
	return OracleAccount{
		Price:      int64(binary.LittleEndian.Uint64(data[8:16])),
		Confidence: binary.LittleEndian.Uint64(data[16:24]),
		Slot:       binary.LittleEndian.Uint64(data[24:32]),
	}, nil
}

package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TradeRecord struct {
	ID       uint      `gorm:"primaryKey"`
	RunID    uuid.UUID `gorm:"type:varchar(36);index;not null"`
	WindowID *int      `gorm:"index"`

	Side       string          `gorm:"not null"`
	EntryIndex int             `gorm:"not null"`
	ExitIndex  int             `gorm:"not null"`
	EntryPrice decimal.Decimal `gorm:"type:decimal(20,8);not null"`
	ExitPrice  decimal.Decimal `gorm:"type:decimal(20,8);not null"`

	PnL          decimal.Decimal `gorm:"type:decimal(20,8)"`
	PnLPct       float64
	SizeFraction float64
	Duration     int
	ExitReason   string `gorm:"not null"`
}

func (TradeRecord) TableName() string {
	return "trade_records"
}

type EquityRecord struct {
	ID      uint            `gorm:"primaryKey"`
	RunID   uuid.UUID       `gorm:"type:varchar(36);index;not null"`
	Index   int             `gorm:"column:bar_index;not null"`
	Capital decimal.Decimal `gorm:"type:decimal(20,8);not null"`
}

func (EquityRecord) TableName() string {
	return "equity_records"
}

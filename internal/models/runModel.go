package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type BacktestRun struct {
	ID        uuid.UUID `gorm:"type:varchar(36);primaryKey"`
	Kind      string    `gorm:"index;not null"`
	Symbol    string    `gorm:"index"`
	TimeFrame string
	Model     string
	Params    string

	StartTime time.Time
	EndTime   time.Time
	Bars      int

	InitialCapital decimal.Decimal `gorm:"type:decimal(20,8)"`
	FinalCapital   decimal.Decimal `gorm:"type:decimal(20,8)"`
	Trades         int

	// validation runs
	Succeeded int
	Failed    int

	Status string `gorm:"not null"`
	Error  string

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
}

const (
	RunKindBacktest   = "backtest"
	RunKindValidation = "validation"
	RunKindOptimize   = "optimize"

	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// NewRun creates a run with a fresh identifier
func NewRun(kind, symbol, timeFrame string) *BacktestRun {
	return &BacktestRun{
		ID:        uuid.New(),
		Kind:      kind,
		Symbol:    symbol,
		TimeFrame: timeFrame,
		Status:    RunStatusCompleted,
	}
}

func (BacktestRun) TableName() string {
	return "backtest_runs"
}

package models

import "github.com/google/uuid"

type MetricRecord struct {
	ID       uint      `gorm:"primaryKey"`
	RunID    uuid.UUID `gorm:"type:varchar(36);index;not null"`
	WindowID *int      `gorm:"index"` // nil for run-level values
	Name     string    `gorm:"index;not null"`
	Value    float64
}

func (MetricRecord) TableName() string {
	return "metric_records"
}

type WindowRecord struct {
	ID         uint      `gorm:"primaryKey"`
	RunID      uuid.UUID `gorm:"type:varchar(36);index;not null"`
	WindowID   int       `gorm:"not null"`
	TrainStart int
	TrainEnd   int
	TestStart  int
	TestEnd    int
	Trades     int
	Status     string `gorm:"not null"`
	Error      string
}

const (
	WindowStatusSucceeded = "succeeded"
	WindowStatusFailed    = "failed"
)

func (WindowRecord) TableName() string {
	return "window_records"
}

// AllModels lists every table for auto-migration
func AllModels() []interface{} {
	return []interface{}{
		&Price{},
		&BacktestRun{},
		&TradeRecord{},
		&EquityRecord{},
		&MetricRecord{},
		&WindowRecord{},
	}
}

package repositories

import (
	"ForecastBacktester/internal/models"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new instance of RunRepository
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// SaveBacktest stores a run with its ledger, equity curve and metrics in
// one transaction
func (r *RunRepository) SaveBacktest(run *models.BacktestRun, trades []models.TradeRecord, equity []models.EquityRecord, metrics []models.MetricRecord) error {
	if run == nil {
		return errors.New("run cannot be nil")
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		for i := range trades {
			trades[i].RunID = run.ID
		}
		for i := range equity {
			equity[i].RunID = run.ID
		}
		for i := range metrics {
			metrics[i].RunID = run.ID
		}
		if len(trades) > 0 {
			if err := tx.CreateInBatches(trades, 500).Error; err != nil {
				return fmt.Errorf("create trades: %w", err)
			}
		}
		if len(equity) > 0 {
			if err := tx.CreateInBatches(equity, 500).Error; err != nil {
				return fmt.Errorf("create equity: %w", err)
			}
		}
		if len(metrics) > 0 {
			if err := tx.CreateInBatches(metrics, 500).Error; err != nil {
				return fmt.Errorf("create metrics: %w", err)
			}
		}
		return nil
	})
}

// SaveValidation stores a validation or search run with its windows and
// metrics in one transaction
func (r *RunRepository) SaveValidation(run *models.BacktestRun, windows []models.WindowRecord, metrics []models.MetricRecord) error {
	if run == nil {
		return errors.New("run cannot be nil")
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return fmt.Errorf("create run: %w", err)
		}
		for i := range windows {
			windows[i].RunID = run.ID
		}
		for i := range metrics {
			metrics[i].RunID = run.ID
		}
		if len(windows) > 0 {
			if err := tx.Create(&windows).Error; err != nil {
				return fmt.Errorf("create windows: %w", err)
			}
		}
		if len(metrics) > 0 {
			if err := tx.CreateInBatches(metrics, 500).Error; err != nil {
				return fmt.Errorf("create metrics: %w", err)
			}
		}
		return nil
	})
}

// FindByID retrieves a run by its ID
func (r *RunRepository) FindByID(id uuid.UUID) (*models.BacktestRun, error) {
	var run models.BacktestRun
	err := r.db.Where("id = ?", id).First(&run).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	return &run, err
}

// FindRecent lists the latest runs, newest first
func (r *RunRepository) FindRecent(limit int) ([]models.BacktestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []models.BacktestRun
	err := r.db.Order("created_at DESC").Limit(limit).Find(&runs).Error
	return runs, err
}

// MetricsForRun retrieves run-level metrics
func (r *RunRepository) MetricsForRun(id uuid.UUID) ([]models.MetricRecord, error) {
	var metrics []models.MetricRecord
	err := r.db.Where("run_id = ? AND window_id IS NULL", id).
		Order("name ASC").
		Find(&metrics).Error
	return metrics, err
}

// TradesForRun retrieves the trade ledger of a run
func (r *RunRepository) TradesForRun(id uuid.UUID) ([]models.TradeRecord, error) {
	var trades []models.TradeRecord
	err := r.db.Where("run_id = ?", id).
		Order("exit_index ASC").
		Find(&trades).Error
	return trades, err
}

// WindowsForRun retrieves the windows of a validation run
func (r *RunRepository) WindowsForRun(id uuid.UUID) ([]models.WindowRecord, error) {
	var windows []models.WindowRecord
	err := r.db.Where("run_id = ?", id).
		Order("window_id ASC").
		Find(&windows).Error
	return windows, err
}

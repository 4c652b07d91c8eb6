package metrics

import "sort"

// Bundle maps a metric name to its value
type Bundle map[string]float64

// Metric names shared by the simulator, validator and reports
const (
	TotalReturn        = "total_return"
	CAGRName           = "cagr"
	SharpeRatio        = "sharpe_ratio"
	SortinoRatio       = "sortino_ratio"
	CalmarRatio        = "calmar_ratio"
	MaxDrawdown        = "max_drawdown"
	UlcerIndexName     = "ulcer_index"
	AnnualVolatility   = "annual_volatility"
	RecoveryFactor     = "recovery_factor"
	SharpeStability    = "rolling_sharpe_stability"
	TailRatio          = "tail_ratio"
	VaR95              = "var_95"
	VaR99              = "var_99"
	CVaR95             = "cvar_95"
	NumTrades          = "n_trades"
	WinRate            = "win_rate"
	ProfitFactor       = "profit_factor"
	AvgWin             = "avg_win"
	AvgLoss            = "avg_loss"
	WinLossRatio       = "win_loss_ratio"
	Expectancy         = "expectancy"
	MaxConsecutiveWins = "max_consecutive_wins"
	MaxConsecutiveLoss = "max_consecutive_losses"
	AvgTradeDuration   = "avg_trade_duration"
	FinalCapital       = "final_capital"
)

// Forecast-quality metric names
const (
	MAE             = "mae"
	MSE             = "mse"
	RMSE            = "rmse"
	R2              = "r2"
	DirectionalHits = "directional_accuracy"
	Accuracy        = "accuracy"
	Precision       = "precision"
	Recall          = "recall"
	F1              = "f1"
)

const (
	// RatioCap bounds profit factor and win/loss ratio so reports never carry +Inf
	RatioCap = 999.0

	DefaultAnnualization = 252.0
	DefaultRiskFreeRate  = 0.02

	rollingSharpeWindow = 60
	varianceEpsilon     = 1e-12
)

// Options controls annualization of the return statistics
type Options struct {
	AnnualizationFactor float64
	RiskFreeRate        float64
}

// DefaultOptions returns daily-bar annualization with a 2% risk-free rate
func DefaultOptions() Options {
	return Options{
		AnnualizationFactor: DefaultAnnualization,
		RiskFreeRate:        DefaultRiskFreeRate,
	}
}

func (o Options) annualization() float64 {
	if o.AnnualizationFactor <= 0 {
		return DefaultAnnualization
	}
	return o.AnnualizationFactor
}

// Names returns the bundle keys in sorted order
func (b Bundle) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge copies every value of other into b, overwriting duplicates
func (b Bundle) Merge(other Bundle) Bundle {
	for k, v := range other {
		b[k] = v
	}
	return b
}

// Clone returns an independent copy
func (b Bundle) Clone() Bundle {
	out := make(Bundle, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

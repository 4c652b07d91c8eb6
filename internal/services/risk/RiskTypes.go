package risk

// Config holds the hard and soft limits of a Manager
type Config struct {
	MaxPositionSize float64 // fraction of capital
	MinPositionSize float64
	MaxDailyLoss    float64 // fraction of capital
	MaxDrawdown     float64 // fraction below equity peak

	VolatilityLookback int
	KellyCap           float64
	KellySafety        float64
	MinTradesForKelly  int
	MaxTradesPerDay    int
}

const (
	HistoryLimit = 100

	concentrationWindow = 10
	correlationWindow   = 5
	correlationWarning  = 0.8
	minVolatilitySample = 5
	sizeTolerance       = 1e-12
)

// Default limits
const (
	DefaultMaxPositionSize    = 0.02
	DefaultMinPositionSize    = 0.001
	DefaultMaxDailyLoss       = 0.05
	DefaultMaxDrawdown        = 0.20
	DefaultVolatilityLookback = 20
	DefaultKellyCap           = 0.25
	DefaultKellySafety        = 0.5
	DefaultMinTradesForKelly  = 10
	DefaultMaxTradesPerDay    = 10
)

// NewConfig creates default config
func NewConfig() Config {
	return Config{
		MaxPositionSize:    DefaultMaxPositionSize,
		MinPositionSize:    DefaultMinPositionSize,
		MaxDailyLoss:       DefaultMaxDailyLoss,
		MaxDrawdown:        DefaultMaxDrawdown,
		VolatilityLookback: DefaultVolatilityLookback,
		KellyCap:           DefaultKellyCap,
		KellySafety:        DefaultKellySafety,
		MinTradesForKelly:  DefaultMinTradesForKelly,
		MaxTradesPerDay:    DefaultMaxTradesPerDay,
	}
}

// Regime tags the market state a trade is proposed in
type Regime int

const (
	RegimeUnknown Regime = iota - 1
	RegimeHighVolatility
	RegimeNormal
	RegimeTrending
)

// Multiplier on the position ceiling. A regime never loosens the hard limit.
func (r Regime) Multiplier() float64 {
	switch r {
	case RegimeHighVolatility:
		return 0.7
	default:
		return 1.0
	}
}

// Decision is the outcome of a limit check. A denial is not an error.
type Decision struct {
	Allowed  bool
	Reason   string
	Warnings []string
}

// SizeRequest carries the inputs of a sizing call. Volatility and
// Confidence are optional.
type SizeRequest struct {
	Prediction float64
	Price      float64
	Capital    float64
	Volatility *float64
	Confidence *float64
}

// Sizing breaks down the final position fraction
type Sizing struct {
	Fraction    float64
	Kelly       float64
	VolAdj      float64
	ConfAdj     float64
	DrawdownAdj float64
	Amount      float64
}

// TradeResult is what the simulator reports back after a close
type TradeResult struct {
	Direction int // 1 long, -1 short
	PnL       float64
	Size      float64
	Duration  int
	Day       int64
}

// State is the complete mutable state of a Manager. It is owned by exactly
// one Manager and must not be shared between concurrent simulations.
type State struct {
	EquityPeak      float64
	CurrentDrawdown float64
	DailyPnL        float64
	CurrentDay      int64
	HasDay          bool

	TradeHistory      []TradeResult
	VolatilityHistory []float64

	WinCount    int
	LossCount   int
	TotalWins   float64
	TotalLosses float64
}

// Summary is a point-in-time view of the risk state
type Summary struct {
	MaxDrawdownLimit  float64 `json:"max_drawdown_limit"`
	CurrentDrawdown   float64 `json:"current_drawdown"`
	DailyPnL          float64 `json:"daily_pnl"`
	MaxDailyLossLimit float64 `json:"max_daily_loss_limit"`
	RecentWinRate     float64 `json:"recent_win_rate"`
	TotalTrades       int     `json:"total_trades"`
	Wins              int     `json:"wins"`
	Losses            int     `json:"losses"`
	AvgVolatility     float64 `json:"avg_volatility"`
}

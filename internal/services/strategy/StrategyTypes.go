package strategy

// Default trend strategy settings
const (
	DefaultEMAPeriod     = 20
	DefaultRSIPeriod     = 14
	DefaultVolWindow     = 20
	DefaultMinConfidence = 0.3

	rsiLow            = 25.0
	rsiHigh           = 75.0
	trendingRatio     = 0.02
	highVolMultiplier = 1.5
)

// Config of a TrendStrategy
type Config struct {
	EMAPeriod     int
	RSIPeriod     int
	VolWindow     int
	MinConfidence float64 // setups below this stay flat
}

// NewConfig creates default config
func NewConfig() Config {
	return Config{
		EMAPeriod:     DefaultEMAPeriod,
		RSIPeriod:     DefaultRSIPeriod,
		VolWindow:     DefaultVolWindow,
		MinConfidence: DefaultMinConfidence,
	}
}

// Setup is the strategy's reading of one bar
type Setup struct {
	Direction  int // 1 long, -1 short, 0 flat
	Confidence float64
	Regime     int // risk.Regime
	Reason     string
}

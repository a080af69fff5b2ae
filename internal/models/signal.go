package models

// Signal constants
const (
	SignalBuy  = "BUY"
	SignalSell = "SELL"
	SignalWait = "WAIT"
)

// Analysis mode constants
const (
	ModeScalp = "scalp"
	ModeSwing = "swing"
)

// ValidMode reports whether mode is one of the supported analysis modes
func ValidMode(mode string) bool {
	return mode == ModeScalp || mode == ModeSwing
}

// ValidSignal reports whether s is one of the canonical signal values
func ValidSignal(s string) bool {
	return s == SignalBuy || s == SignalSell || s == SignalWait
}

// SignalPlan is the structured trade recommendation extracted from the
// model's response. Price fields are kept as free-form strings because the
// model may include currency symbols or zone notation.
type SignalPlan struct {
	Signal     string   `json:"signal"`
	Confidence int      `json:"confidence"`
	Entry      string   `json:"entry"`
	StopLoss   string   `json:"stopLoss"`
	Targets    []string `json:"targets"`
	Reasoning  []string `json:"reasoning"`
}

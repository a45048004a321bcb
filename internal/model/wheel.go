package model

import "time"

// WheelState is the position's place in the wheel cycle.
type WheelState string

const (
	WheelNone        WheelState = "NONE"
	WheelPutSold     WheelState = "PUT_SOLD"
	WheelAssigned    WheelState = "ASSIGNED"
	WheelCallSold    WheelState = "CALL_SOLD"
	WheelClosedEarly WheelState = "CLOSED_EARLY"
)

// WheelRole is the kind of short option currently held.
type WheelRole string

const (
	RoleNone           WheelRole = "none"
	RoleCashSecuredPut WheelRole = "cash_secured_put"
	RoleCoveredCall    WheelRole = "covered_call"
)

// WheelPosition is the persisted per-symbol wheel record.
// Amounts are per share.
type WheelPosition struct {
	Symbol         string     `json:"symbol"`
	State          WheelState `json:"state"`
	Role           WheelRole  `json:"role"`
	Contract       string     `json:"contract,omitempty"`
	EntryPremium   float64    `json:"entry_premium"`
	EntryDate      time.Time  `json:"entry_date"`
	Strike         float64    `json:"strike"`
	Expiration     time.Time  `json:"expiration"`
	Assigned       bool       `json:"assigned"`
	CostBasis      float64    `json:"cost_basis"`
	MaxProfit      float64    `json:"max_profit"`
	RealizedProfit float64    `json:"realized_profit"`
	Cycles         int        `json:"cycles"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewWheelPosition returns an empty position in NONE.
func NewWheelPosition(symbol string) WheelPosition {
	return WheelPosition{Symbol: symbol, State: WheelNone, Role: RoleNone}
}

// Open reports whether a short option is outstanding.
func (p WheelPosition) Open() bool {
	return p.State == WheelPutSold || p.State == WheelCallSold
}

// ProfitRatio is realized profit over max profit; 0 when nothing was collected.
func (p WheelPosition) ProfitRatio() float64 {
	if p.MaxProfit <= 0 {
		return 0
	}
	return p.RealizedProfit / p.MaxProfit
}

// WheelAction is what the engine asks the operator to do.
type WheelAction string

const (
	ActionNone     WheelAction = "no_action"
	ActionHold     WheelAction = "hold"
	ActionSellPut  WheelAction = "sell_put"
	ActionSellCall WheelAction = "sell_call"
	ActionClose    WheelAction = "close"
	ActionReset    WheelAction = "reset"
)

// ExitRule names the rule that closed a position early.
type ExitRule string

const (
	ExitNone ExitRule = ""
	ExitFast ExitRule = "profit_80_within_24h"
	ExitHigh ExitRule = "profit_90_before_expiry"
)

// WheelDecision is the engine output for one evaluation.
type WheelDecision struct {
	Symbol   string
	Action   WheelAction
	From     WheelState
	To       WheelState
	Contract *OptionContract
	ROI      float64
	Exit     ExitRule
	Reason   string
	Position WheelPosition
	At       time.Time
}

package wheel

import (
	"time"

	"MarketFortress/internal/errors"
	"MarketFortress/internal/model"
)

// EventKind names a wheel transition trigger.
type EventKind string

const (
	EventSellPut    EventKind = "sell_put"
	EventSellCall   EventKind = "sell_call"
	EventAssigned   EventKind = "assigned"
	EventExpired    EventKind = "expired_worthless"
	EventCalledAway EventKind = "called_away"
	EventCloseEarly EventKind = "close_early"
	EventReset      EventKind = "reset"
)

// Event drives one transition. Contract is required for the sell events.
type Event struct {
	Kind     EventKind
	Contract *model.OptionContract
	Exit     model.ExitRule
	At       time.Time
}

var transitions = map[model.WheelState]map[EventKind]model.WheelState{
	model.WheelNone: {
		EventSellPut: model.WheelPutSold,
	},
	model.WheelPutSold: {
		EventAssigned:   model.WheelAssigned,
		EventExpired:    model.WheelNone,
		EventCloseEarly: model.WheelClosedEarly,
	},
	model.WheelAssigned: {
		EventSellCall: model.WheelCallSold,
	},
	model.WheelCallSold: {
		EventExpired:    model.WheelNone,
		EventCalledAway: model.WheelNone,
		EventCloseEarly: model.WheelClosedEarly,
	},
	model.WheelClosedEarly: {
		EventReset: model.WheelNone,
	},
}

// Apply is the only way a position changes state. It returns a new position and leaves pos untouched.
func Apply(pos model.WheelPosition, ev Event) (model.WheelPosition, error) {
	to, ok := transitions[pos.State][ev.Kind]
	if !ok {
		return pos, errors.Newf(errors.ErrCodePositionState, "%s: %s not allowed in state %s", pos.Symbol, ev.Kind, pos.State)
	}

	next := pos
	next.State = to
	next.UpdatedAt = ev.At

	switch ev.Kind {
	case EventSellPut, EventSellCall:
		if ev.Contract == nil {
			return pos, errors.Newf(errors.ErrCodeInvalidRequest, "%s: %s requires a contract", pos.Symbol, ev.Kind)
		}
		c := ev.Contract
		next.Role = model.RoleCashSecuredPut
		if ev.Kind == EventSellCall {
			next.Role = model.RoleCoveredCall
		}
		next.Contract = c.Symbol
		next.EntryPremium = c.Bid
		next.EntryDate = ev.At
		next.Strike = c.Strike
		next.Expiration = model.Day(c.Expiration)
		next.MaxProfit = c.Bid
		next.RealizedProfit = 0

	case EventAssigned:
		next.Assigned = true
		next.CostBasis = pos.Strike
		next.RealizedProfit = pos.MaxProfit
		next.Role = model.RoleNone
		next.Contract = ""

	case EventExpired, EventCalledAway:
		next.RealizedProfit = pos.MaxProfit
		next = closeCycle(next)

	case EventCloseEarly:
		// realized profit stays at the last mark

	case EventReset:
		next = closeCycle(next)
	}
	return next, nil
}

// closeCycle returns the position to an empty NONE record, counting the finished cycle.
func closeCycle(p model.WheelPosition) model.WheelPosition {
	out := model.NewWheelPosition(p.Symbol)
	out.Cycles = p.Cycles + 1
	out.RealizedProfit = p.RealizedProfit
	out.UpdatedAt = p.UpdatedAt
	return out
}

// MarkToMarket sets realized profit to entry premium minus the cost to buy the option back now.
func MarkToMarket(pos model.WheelPosition, quote model.OptionContract) model.WheelPosition {
	if !pos.Open() {
		return pos
	}
	cost := quote.Ask
	if cost <= 0 {
		cost = quote.Mid()
	}
	pos.RealizedProfit = pos.EntryPremium - cost
	return pos
}

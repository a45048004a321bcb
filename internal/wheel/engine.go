package wheel

import (
	"fmt"
	"math"
	"sort"
	"time"

	"MarketFortress/internal/errors"
	"MarketFortress/internal/model"
)

// Params holds the entry threshold and exit rules.
type Params struct {
	MinROI         float64
	FastExitRatio  float64
	FastExitWindow time.Duration
	ExitRatio      float64
}

var DefaultParams = Params{
	MinROI:         30,
	FastExitRatio:  0.80,
	FastExitWindow: 24 * time.Hour,
	ExitRatio:      0.90,
}

// MarketView is what the engine sees for one symbol at one moment.
type MarketView struct {
	Now   time.Time
	Price float64
	// PutLimit is the highest strike the operator is willing to own; zero means Price.
	PutLimit float64
	Chain    []model.OptionContract
}

// ROIs closer than this are treated as equal when ranking.
const roiEpsilon = 1e-9

// Candidate is a contract that passed the entry filters.
type Candidate struct {
	Contract model.OptionContract
	DTE      int
	ROI      float64
}

type Engine struct {
	params Params
}

func NewEngine(p Params) *Engine {
	if p.MinROI <= 0 {
		p.MinROI = DefaultParams.MinROI
	}
	if p.FastExitRatio <= 0 {
		p.FastExitRatio = DefaultParams.FastExitRatio
	}
	if p.FastExitWindow <= 0 {
		p.FastExitWindow = DefaultParams.FastExitWindow
	}
	if p.ExitRatio <= 0 {
		p.ExitRatio = DefaultParams.ExitRatio
	}
	return &Engine{params: p}
}

// Evaluate decides the next step for pos. A missing strike is a no_action decision, not an error;
// errors are reserved for positions that cannot legally move.
func (e *Engine) Evaluate(pos model.WheelPosition, view MarketView) (model.WheelDecision, error) {
	d := model.WheelDecision{
		Symbol:   pos.Symbol,
		Action:   model.ActionNone,
		From:     pos.State,
		To:       pos.State,
		Position: pos,
		At:       view.Now,
	}

	switch pos.State {
	case model.WheelNone:
		limit := view.PutLimit
		if limit <= 0 {
			limit = view.Price
		}
		return e.open(d, pos, view, model.OptionPut, limit, EventSellPut, model.ActionSellPut)

	case model.WheelAssigned:
		return e.open(d, pos, view, model.OptionCall, pos.CostBasis, EventSellCall, model.ActionSellCall)

	case model.WheelPutSold, model.WheelCallSold:
		return e.manage(d, pos, view)

	case model.WheelClosedEarly:
		next, err := Apply(pos, Event{Kind: EventReset, At: view.Now})
		if err != nil {
			return d, err
		}
		d.Action = model.ActionReset
		d.To = next.State
		d.Position = next
		d.Reason = "closed early last cycle, restarting"
		return d, nil

	default:
		return d, errors.Newf(errors.ErrCodePositionState, "%s: unknown state %q", pos.Symbol, pos.State)
	}
}

func (e *Engine) open(d model.WheelDecision, pos model.WheelPosition, view MarketView, typ model.OptionType, limit float64, kind EventKind, action model.WheelAction) (model.WheelDecision, error) {
	best, err := e.BestCandidate(view.Now, view.Chain, typ, limit)
	if err != nil {
		if errors.HasCode(err, errors.ErrCodeStrategyPreconditionUnmet) {
			d.Reason = err.Error()
			return d, nil
		}
		return d, err
	}

	c := best.Contract
	next, err := Apply(pos, Event{Kind: kind, Contract: &c, At: view.Now})
	if err != nil {
		return d, err
	}
	d.Action = action
	d.To = next.State
	d.Contract = &c
	d.ROI = best.ROI
	d.Position = next
	d.Reason = fmt.Sprintf("%s %s strike %.2f exp %s bid %.2f ROI %.1f%% (%dd)",
		action, c.Symbol, c.Strike, c.Expiration.Format("2006-01-02"), c.Bid, best.ROI, best.DTE)
	return d, nil
}

// manage runs the exit rules for an open short option, or settles it once expired.
func (e *Engine) manage(d model.WheelDecision, pos model.WheelPosition, view MarketView) (model.WheelDecision, error) {
	remaining := TimeRemaining(view.Now, pos.Expiration)
	if remaining <= 0 {
		return e.settle(d, pos, view)
	}

	for _, c := range view.Chain {
		if c.Symbol == pos.Contract {
			pos = MarkToMarket(pos, c)
			d.Contract = &c
			break
		}
	}
	d.Position = pos

	exit := e.ExitRule(pos, remaining)
	if exit == model.ExitNone {
		d.Action = model.ActionHold
		d.Reason = fmt.Sprintf("profit %.0f%% of max, %s to expiry", pos.ProfitRatio()*100, remaining.Round(time.Minute))
		return d, nil
	}

	next, err := Apply(pos, Event{Kind: EventCloseEarly, Exit: exit, At: view.Now})
	if err != nil {
		return d, err
	}
	d.Action = model.ActionClose
	d.Exit = exit
	d.To = next.State
	d.Position = next
	d.Reason = fmt.Sprintf("%s: profit %.0f%% of max with %s to expiry", exit, pos.ProfitRatio()*100, remaining.Round(time.Minute))
	return d, nil
}

// ExitRule checks the fast exit first, then the high-profit exit. Expired positions never exit early.
func (e *Engine) ExitRule(pos model.WheelPosition, remaining time.Duration) model.ExitRule {
	if !pos.Open() || remaining <= 0 || pos.MaxProfit <= 0 {
		return model.ExitNone
	}
	ratio := pos.ProfitRatio()
	switch {
	case ratio >= e.params.FastExitRatio && remaining <= e.params.FastExitWindow:
		return model.ExitFast
	case ratio >= e.params.ExitRatio:
		return model.ExitHigh
	default:
		return model.ExitNone
	}
}

// settle infers the expiry outcome from the underlying price.
func (e *Engine) settle(d model.WheelDecision, pos model.WheelPosition, view MarketView) (model.WheelDecision, error) {
	if view.Price <= 0 {
		d.Action = model.ActionHold
		d.Reason = "expired, waiting for underlying price to settle"
		return d, nil
	}

	var kind EventKind
	switch {
	case pos.State == model.WheelPutSold && view.Price < pos.Strike:
		kind = EventAssigned
	case pos.State == model.WheelCallSold && view.Price >= pos.Strike:
		kind = EventCalledAway
	default:
		kind = EventExpired
	}

	next, err := Apply(pos, Event{Kind: kind, At: view.Now})
	if err != nil {
		return d, err
	}
	d.Action = model.ActionHold
	d.To = next.State
	d.Position = next
	d.Reason = fmt.Sprintf("%s at %.2f (strike %.2f)", kind, view.Price, pos.Strike)
	return d, nil
}

// BestCandidate picks the highest-ROI contract of typ on an allowed expiration.
// Puts must be struck at or below limit, calls at or above it.
// Ties go to the nearer expiration, then to the strike closer to limit.
func (e *Engine) BestCandidate(now time.Time, chain []model.OptionContract, typ model.OptionType, limit float64) (Candidate, error) {
	listed := make([]time.Time, 0, len(chain))
	for _, c := range chain {
		if c.Type == typ {
			listed = append(listed, c.Expiration)
		}
	}
	allowed := map[time.Time]bool{}
	for _, exp := range SelectExpirations(now, listed) {
		allowed[exp] = true
	}
	if len(allowed) == 0 {
		return Candidate{}, errors.Newf(errors.ErrCodeStrategyPreconditionUnmet, "no %s expiration allowed on %s", typ, model.MarketTime(now).Weekday())
	}

	var cands []Candidate
	for _, c := range chain {
		if c.Type != typ || c.Bid <= 0 || !allowed[model.Day(c.Expiration)] {
			continue
		}
		if (typ == model.OptionPut && c.Strike > limit) || (typ == model.OptionCall && c.Strike < limit) {
			continue
		}
		dte := DaysToExpiration(now, c.Expiration)
		roi := AnnualizedROI(c.Bid, c.Strike, dte)
		if roi < e.params.MinROI {
			continue
		}
		cands = append(cands, Candidate{Contract: c, DTE: dte, ROI: roi})
	}
	if len(cands) == 0 {
		return Candidate{}, errors.Newf(errors.ErrCodeStrategyPreconditionUnmet,
			"no %s with ROI >= %.0f%% against limit %.2f", typ, e.params.MinROI, limit)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if math.Abs(a.ROI-b.ROI) > roiEpsilon {
			return a.ROI > b.ROI
		}
		if !a.Contract.Expiration.Equal(b.Contract.Expiration) {
			return a.Contract.Expiration.Before(b.Contract.Expiration)
		}
		return math.Abs(a.Contract.Strike-limit) < math.Abs(b.Contract.Strike-limit)
	})
	return cands[0], nil
}

package wheel

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"MarketFortress/internal/model"
)

// Journal receives every decision that changed or evaluated a position.
type Journal interface {
	RecordWheelTransition(d *model.WheelDecision) error
}

// Manager serializes engine runs per symbol and persists the result.
type Manager struct {
	engine  *Engine
	store   Store
	journal Journal
	log     *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewManager(engine *Engine, store Store, journal Journal, log *zap.Logger) *Manager {
	return &Manager{
		engine:  engine,
		store:   store,
		journal: journal,
		log:     log,
		locks:   map[string]*sync.Mutex{},
	}
}

func (m *Manager) lock(symbol string) func() {
	m.mu.Lock()
	l, ok := m.locks[symbol]
	if !ok {
		l = &sync.Mutex{}
		m.locks[symbol] = l
	}
	m.mu.Unlock()
	l.Lock()
	return l.Unlock
}

// Evaluate loads the position for symbol, runs the engine and saves the outcome.
func (m *Manager) Evaluate(ctx context.Context, symbol string, view MarketView) (model.WheelDecision, error) {
	unlock := m.lock(symbol)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return model.WheelDecision{Symbol: symbol, Action: model.ActionNone}, err
	}

	pos, err := m.store.Load(symbol)
	if err != nil {
		return model.WheelDecision{Symbol: symbol, Action: model.ActionNone}, err
	}

	d, err := m.engine.Evaluate(pos, view)
	if err != nil {
		m.log.Error("wheel evaluation failed", zap.String("symbol", symbol), zap.String("state", string(pos.State)), zap.Error(err))
		return d, err
	}
	return d, m.commit(pos, &d)
}

// ApplyEvent records an externally reported event such as an early assignment.
func (m *Manager) ApplyEvent(ctx context.Context, symbol string, ev Event) (model.WheelDecision, error) {
	unlock := m.lock(symbol)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return model.WheelDecision{Symbol: symbol, Action: model.ActionNone}, err
	}

	pos, err := m.store.Load(symbol)
	if err != nil {
		return model.WheelDecision{Symbol: symbol, Action: model.ActionNone}, err
	}
	next, err := Apply(pos, ev)
	if err != nil {
		return model.WheelDecision{Symbol: symbol, Action: model.ActionNone, From: pos.State, To: pos.State, Position: pos}, err
	}
	d := model.WheelDecision{
		Symbol:   symbol,
		Action:   model.ActionHold,
		From:     pos.State,
		To:       next.State,
		Contract: ev.Contract,
		Exit:     ev.Exit,
		Reason:   "reported: " + string(ev.Kind),
		Position: next,
		At:       ev.At,
	}
	return d, m.commit(pos, &d)
}

// commit saves the position when it changed and journals the decision. Journal failures are logged only.
func (m *Manager) commit(prev model.WheelPosition, d *model.WheelDecision) error {
	log := m.log.With(zap.String("symbol", d.Symbol))
	if d.Position != prev {
		if err := m.store.Save(d.Position); err != nil {
			log.Error("saving wheel position failed", zap.Error(err))
			return err
		}
	}
	if d.From != d.To {
		log.Info("wheel transition",
			zap.String("from", string(d.From)),
			zap.String("to", string(d.To)),
			zap.String("action", string(d.Action)),
			zap.String("reason", d.Reason))
	}
	if m.journal != nil {
		if err := m.journal.RecordWheelTransition(d); err != nil {
			log.Warn("recording wheel decision failed", zap.Error(err))
		}
	}
	return nil
}

// Positions lists every persisted position.
func (m *Manager) Positions() ([]model.WheelPosition, error) {
	return m.store.List()
}

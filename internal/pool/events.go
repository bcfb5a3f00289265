package pool

import (
	"go.uber.org/zap"

	"liquidityCore/internal/model"
)

// record queues an event for delivery after the current call commits. The attached
// pool meta is the state the call leaves behind.
func (p *Pool) record(tx *txn, name string, data interface{}) {
	p.seq++
	meta := p.meta()
	meta.Slot0.Unlocked = true
	tx.events = append(tx.events, model.TypedEvent{
		Source:    model.SourceEngine,
		Seq:       p.seq,
		Address:   p.cfg.Address.Hex(),
		EventName: name,
		Timestamp: uint64(tx.now),
		Decoded:   data,
		PoolMeta:  meta,
	})
}

// emit hands committed events to the sink. A failing sink cannot undo the call.
func (p *Pool) emit(events []model.TypedEvent) {
	if p.cfg.Events == nil || len(events) == 0 {
		return
	}
	if err := p.cfg.Events.PutEventBatch(events); err != nil {
		p.logger.Warn("event sink failed",
			zap.Uint64("first_seq", events[0].Seq),
			zap.Int("events", len(events)),
			zap.Error(err),
		)
	}
}

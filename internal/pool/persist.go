package pool

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"liquidityCore/internal/position"
	"liquidityCore/internal/storage"
)

var (
	metaConfigID  = []byte("config")
	metaGlobalsID = []byte("globals")
)

// flush writes slot0, the globals and every record touched since the last commit as
// one atomic batch. Records that no longer exist are deleted.
func (p *Pool) flush(ctx context.Context) error {
	if p.cfg.Store == nil {
		return nil
	}
	batch, err := p.batch()
	if err != nil {
		return fmt.Errorf("encode pool records: %w", err)
	}
	if err := p.cfg.Store.Apply(ctx, batch); err != nil {
		return fmt.Errorf("persist pool records: %w", err)
	}
	return nil
}

func (p *Pool) batch() (*storage.Batch, error) {
	batch := &storage.Batch{}

	identity, err := encodeIdentity(poolIdentity{
		Token0:      p.cfg.Token0,
		Token1:      p.cfg.Token1,
		Fee:         p.cfg.Fee,
		TickSpacing: p.cfg.TickSpacing,
	})
	if err != nil {
		return nil, err
	}
	batch.Put(p.ns.Key(storage.KindMeta, metaConfigID), identity)

	// stored state is what a committed call leaves behind, so the guard reads unlocked
	slot0 := p.slot0.clone()
	slot0.Unlocked = p.initialized()
	slot0Bytes, err := encodeSlot0(slot0)
	if err != nil {
		return nil, err
	}
	batch.Put(p.ns.Prefix(storage.KindSlot0), slot0Bytes)

	globalsBytes, err := encodeGlobals(globals{
		FeeGrowthGlobal0X128: p.feeGrowthGlobal0X128,
		FeeGrowthGlobal1X128: p.feeGrowthGlobal1X128,
		ProtocolFees:         p.protocolFees,
		Liquidity:            p.liquidity,
		Seq:                  p.seq,
	})
	if err != nil {
		return nil, err
	}
	batch.Put(p.ns.Key(storage.KindMeta, metaGlobalsID), globalsBytes)

	ticks, words := p.ticks.Touched()
	for _, t := range ticks {
		key := p.ns.Key(storage.KindTick, storage.SignedID(t))
		if !p.ticks.Has(t) {
			batch.Delete(key)
			continue
		}
		value, err := encodeTick(p.ticks.Get(t))
		if err != nil {
			return nil, err
		}
		batch.Put(key, value)
	}
	for _, pos := range words {
		key := p.ns.Key(storage.KindWord, storage.SignedID(int32(pos)))
		w := p.ticks.Word(pos)
		if w.IsZero() {
			batch.Delete(key)
			continue
		}
		value, err := encodeWord(w)
		if err != nil {
			return nil, err
		}
		batch.Put(key, value)
	}

	for _, k := range p.positions.Touched() {
		key := p.ns.Key(storage.KindPosition, k[:])
		entry, ok := p.positions.Lookup(k)
		if !ok {
			batch.Delete(key)
			continue
		}
		value, err := encodePosition(entry)
		if err != nil {
			return nil, err
		}
		batch.Put(key, value)
	}

	for _, index := range p.oracle.Touched() {
		key := p.ns.Key(storage.KindObservation, storage.IndexID(index))
		if int(index) >= p.oracle.Len() {
			batch.Delete(key)
			continue
		}
		value, err := encodeObservation(p.oracle.At(index))
		if err != nil {
			return nil, err
		}
		batch.Put(key, value)
	}

	return batch, nil
}

// Load rebuilds the pool described by cfg from cfg.Store. A store without records for
// this pool yields a fresh, uninitialized pool.
func Load(ctx context.Context, cfg Config) (*Pool, error) {
	p, err := New(cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Store == nil {
		return p, nil
	}

	raw, err := cfg.Store.Get(ctx, p.ns.Key(storage.KindMeta, metaConfigID))
	if errors.Is(err, storage.ErrNotFound) {
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load pool identity: %w", err)
	}
	identity, err := decodeIdentity(raw)
	if err != nil {
		return nil, err
	}
	if identity.Token0 != cfg.Token0 || identity.Token1 != cfg.Token1 ||
		identity.Fee != cfg.Fee || identity.TickSpacing != cfg.TickSpacing {
		return nil, ErrConfigMismatch
	}

	if err := p.load(ctx); err != nil {
		return nil, err
	}
	p.logger.Info("pool loaded",
		zap.String("namespace", p.ns.Hex()),
		zap.String("sqrt_price_x96", p.slot0.SqrtPriceX96.Dec()),
		zap.Int32("tick", p.slot0.Tick),
		zap.Int("ticks", len(p.ticks.Ticks())),
		zap.Int("positions", len(p.positions.Entries())),
		zap.Int("observations", p.oracle.Len()),
	)
	return p, nil
}

func (p *Pool) load(ctx context.Context) error {
	store := p.cfg.Store

	raw, err := store.Get(ctx, p.ns.Prefix(storage.KindSlot0))
	if err != nil {
		return fmt.Errorf("load slot0: %w", err)
	}
	if p.slot0, err = decodeSlot0(raw); err != nil {
		return err
	}

	raw, err = store.Get(ctx, p.ns.Key(storage.KindMeta, metaGlobalsID))
	if err != nil {
		return fmt.Errorf("load globals: %w", err)
	}
	g, err := decodeGlobals(raw)
	if err != nil {
		return err
	}
	p.feeGrowthGlobal0X128 = g.FeeGrowthGlobal0X128
	p.feeGrowthGlobal1X128 = g.FeeGrowthGlobal1X128
	p.protocolFees = g.ProtocolFees
	p.liquidity = g.Liquidity
	p.seq = g.Seq

	tickPrefix := p.ns.Prefix(storage.KindTick)
	err = store.Iterate(ctx, tickPrefix, func(key, value []byte) error {
		info, err := decodeTick(value)
		if err != nil {
			return err
		}
		p.ticks.Set(storage.ParseSignedID(key[len(tickPrefix):]), info)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load ticks: %w", err)
	}

	wordPrefix := p.ns.Prefix(storage.KindWord)
	err = store.Iterate(ctx, wordPrefix, func(key, value []byte) error {
		w, err := decodeWord(value)
		if err != nil {
			return err
		}
		p.ticks.SetWord(int16(storage.ParseSignedID(key[len(wordPrefix):])), w)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load tick bitmap: %w", err)
	}

	positionPrefix := p.ns.Prefix(storage.KindPosition)
	err = store.Iterate(ctx, positionPrefix, func(key, value []byte) error {
		entry, err := decodePosition(value)
		if err != nil {
			return err
		}
		if position.Key(common.BytesToHash(key[len(positionPrefix):])) != entry.Key() {
			return fmt.Errorf("position record %x does not match its key", key)
		}
		p.positions.Set(entry)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load positions: %w", err)
	}

	observationPrefix := p.ns.Prefix(storage.KindObservation)
	err = store.Iterate(ctx, observationPrefix, func(key, value []byte) error {
		obs, err := decodeObservation(value)
		if err != nil {
			return err
		}
		p.oracle.Set(storage.ParseIndexID(key[len(observationPrefix):]), obs)
		return nil
	})
	if err != nil {
		return fmt.Errorf("load observations: %w", err)
	}
	return nil
}

package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/polycopy/internal/application/risk"
	"github.com/alejandrodnm/polycopy/internal/domain"
)

// run carries one signal through the pipeline. sig always holds the latest
// successfully applied transition so a failure can be recorded against it.
type run struct {
	src   domain.TrackedSource
	delta domain.PositionDelta
	quote domain.MarketQuote
	sig   domain.CopySignal

	executed bool // outcome already reported to the gate by the executor
}

// process turns one delta into a terminal CopySignal. It reports false when
// the market quote was unavailable and the delta was dropped.
func (e *Engine) process(ctx context.Context, src domain.TrackedSource, delta domain.PositionDelta) (domain.CopySignal, bool) {
	quote, err := e.deps.Quotes.FetchQuote(ctx, delta.Entry.MarketID)
	if err != nil {
		slog.Warn("engine: quote unavailable, delta dropped",
			"source", src.Label(),
			"market", delta.Entry.MarketID,
			"err", err,
		)
		return domain.CopySignal{}, false
	}

	r := &run{
		src:   src,
		delta: delta,
		quote: quote,
		sig:   domain.NewCopySignal(e.deps.NewID(), src, delta, e.deps.Now()),
	}
	e.record(ctx, r.sig, domain.StageCreated)

	if err := e.pipeline(ctx, r); err != nil {
		// Reserva sin resultado: se libera como fallo para no dejar el slot ocupado.
		if r.sig.Disposition == domain.DispositionAccepted && !r.executed {
			e.deps.Gate.RecordFailure(r.sig.Key())
		}
		failedSig, ferr := r.sig.Failed(err)
		if ferr != nil {
			slog.Error("engine: cannot mark signal failed", "signal", r.sig.ID, "err", ferr)
		} else {
			r.sig = failedSig
			e.record(ctx, r.sig, domain.StageFailed)
		}
		slog.Error("engine: signal failed",
			"signal", r.sig.ID,
			"source", src.Label(),
			"market", delta.Entry.MarketID,
			"err", err,
		)
	}

	e.notify(ctx, r.sig)
	return r.sig, true
}

// pipeline runs score → size → risk → execute. Panics in any stage abort
// this signal only.
func (e *Engine) pipeline(ctx context.Context, r *run) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("engine.pipeline: panic: %v", p)
		}
	}()

	conf := domain.ScoreConfidence(r.src.Reputation, r.delta, r.quote)
	sig, err := r.sig.Scored(conf)
	if err != nil {
		return fmt.Errorf("engine.pipeline: score: %w", err)
	}
	r.sig = sig
	e.record(ctx, r.sig, domain.StageScored)

	alloc, err := domain.Size(r.delta, conf.Total, e.cfg.Sizing)
	if err != nil {
		return fmt.Errorf("engine.pipeline: size: %w", err)
	}
	if sig, err = r.sig.Sized(alloc); err != nil {
		return fmt.Errorf("engine.pipeline: size: %w", err)
	}
	r.sig = sig
	e.record(ctx, r.sig, domain.StageSized)

	decision := e.deps.Gate.Admit(risk.CandidateFor(r.sig))
	if sig, err = r.sig.Decided(decision); err != nil {
		return fmt.Errorf("engine.pipeline: decide: %w", err)
	}
	r.sig = sig
	e.record(ctx, r.sig, domain.StageDecided)

	slog.Info("engine: risk decision",
		"signal", r.sig.ID,
		"source", r.src.Label(),
		"market", r.sig.MarketID,
		"side", r.sig.Side,
		"confidence", conf.Total,
		"capital", fmt.Sprintf("$%.2f", alloc.Capital),
		"decision", decision.String(),
	)
	if !decision.Accepted {
		return nil
	}

	res := e.deps.Executor.Execute(ctx, r.sig)
	r.executed = true
	if sig, err = r.sig.Completed(res); err != nil {
		return fmt.Errorf("engine.pipeline: complete: %w", err)
	}
	r.sig = sig
	e.record(ctx, r.sig, domain.StageExecuted)

	if res.Succeeded() {
		e.savePosition(ctx, r.sig)
	}
	return nil
}

func (e *Engine) savePosition(ctx context.Context, sig domain.CopySignal) {
	if e.deps.Ledger == nil {
		return
	}
	pos, ok := e.deps.Gate.OpenPosition(sig.Key())
	if !ok {
		return
	}
	if err := e.deps.Ledger.SavePosition(ctx, pos); err != nil {
		slog.Warn("engine: ledger position save failed", "signal", sig.ID, "err", err)
	}
}

func (e *Engine) record(ctx context.Context, sig domain.CopySignal, stage domain.SignalStage) {
	e.appendRecord(ctx, sig.Record(stage, e.deps.Now()))
}

func (e *Engine) appendRecord(ctx context.Context, rec domain.SignalRecord) {
	if e.deps.Ledger == nil {
		return
	}
	if err := e.deps.Ledger.Append(ctx, rec); err != nil {
		slog.Warn("engine: ledger append failed",
			"signal", rec.SignalID,
			"stage", rec.Stage,
			"err", err,
		)
	}
}

func (e *Engine) notify(ctx context.Context, sig domain.CopySignal) {
	if e.deps.Notifier == nil || !sig.Disposition.Terminal() {
		return
	}
	if err := e.deps.Notifier.Notify(ctx, sig.Event()); err != nil {
		slog.Warn("engine: notifier error", "signal", sig.ID, "err", err)
	}
}

package world

import (
	"context"
	"errors"
	"time"

	"idlecity.ai/internal/sim/state"
)

type commandReq struct {
	cmd  Command
	resp chan commandResp
}

type commandResp struct {
	job state.JobID
	err error
}

// Run drives the world in real time until ctx is done, Stop is called or the world
// halts. Commands queued with Submit are applied just before the next tick.
func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.Tuning.SpeedUp)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []commandReq
	defer func() {
		for _, req := range pending {
			req.resp <- commandResp{err: ErrStopped}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.inbox:
			pending = append(pending, req)
		case <-ticker.C:
			for _, req := range pending {
				req.resp <- w.applyQueued(req.cmd)
			}
			pending = pending[:0]
			if w.shouldTick != nil && !w.shouldTick() {
				continue
			}
			if err := w.AdvanceTick(false); err != nil {
				var fe *FatalError
				if errors.As(err, &fe) {
					return err
				}
				w.logger.Printf("tick: %v", err)
			}
			w.acc.Reset()
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

func (w *World) applyQueued(cmd Command) commandResp {
	if err := w.Apply(cmd); err != nil {
		return commandResp{err: err}
	}
	if cmd.Type == CmdScheduleTransport {
		return commandResp{job: w.st.NextTransportID}
	}
	return commandResp{}
}

// Submit queues cmd for the running loop and waits for its result.
func (w *World) Submit(ctx context.Context, cmd Command) error {
	_, err := w.SubmitJob(ctx, cmd)
	return err
}

// SubmitJob is Submit that also returns the id of a scheduled transport.
func (w *World) SubmitJob(ctx context.Context, cmd Command) (state.JobID, error) {
	select {
	case <-w.stop:
		return 0, ErrStopped
	default:
	}
	req := commandReq{cmd: cmd, resp: make(chan commandResp, 1)}
	select {
	case w.inbox <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-w.stop:
		return 0, ErrStopped
	}
	select {
	case r := <-req.resp:
		return r.job, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-w.stop:
		return 0, ErrStopped
	}
}

// FastForward runs n offline ticks back to back.
func (w *World) FastForward(n int) error {
	for i := 0; i < n; i++ {
		if err := w.AdvanceTick(true); err != nil {
			return err
		}
	}
	return nil
}

// CatchUp simulates the whole seconds of elapsed time spent away, at most
// offline_max_ticks of them, and returns the number of ticks run.
func (w *World) CatchUp(elapsed time.Duration) (int, error) {
	n := int(elapsed / time.Second)
	if limit := w.cfg.Tuning.OfflineMaxTicks; limit > 0 && n > limit {
		n = limit
	}
	if n <= 0 {
		return 0, nil
	}
	w.st.IsOffline = true
	defer func() { w.st.IsOffline = false }()
	start := time.Now()
	err := w.FastForward(n)
	w.logger.Printf("catch up: %d ticks in %s", n, time.Since(start).Round(time.Millisecond))
	return n, err
}

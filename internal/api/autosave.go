package api

import (
	"context"
	"time"
)

// RunAutosave periodically flushes the text of every live session to the
// draft store and evicts sessions abandoned longer than maxIdle. Edits
// already save their own draft; this loop is the backstop for sessions that
// go quiet mid-write (tab closed, network drop) so that a crash of the
// service never loses more than one interval of work, and keeps the live
// registry from growing without bound. maxIdle <= 0 disables eviction.
// Blocks until ctx is cancelled.
func (h *Handlers) RunAutosave(ctx context.Context, interval, maxIdle time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	h.logger.Info().Dur("interval", interval).Dur("max_idle", maxIdle).Msg("autosave loop started")

	for {
		select {
		case <-ctx.Done():
			h.flushAll(context.Background())
			h.logger.Info().Msg("autosave loop stopped")
			return
		case <-ticker.C:
			h.flushAll(ctx)
			h.evictIdle(ctx, maxIdle)
		}
	}
}

// evictIdle drops trackers whose last recorded activity is older than
// maxIdle. The draft was flushed just before, so the participant can resume
// from it by starting the session again with the same ID; only the in-memory
// tracker state is released.
func (h *Handlers) evictIdle(ctx context.Context, maxIdle time.Duration) {
	if maxIdle <= 0 {
		return
	}
	cutoff := h.clk.Now().Add(-maxIdle)
	h.sessions.forEach(func(ls *liveSession) {
		if ls.tracker.LastActivity().After(cutoff) {
			return
		}
		if content := ls.tracker.Content(); content != "" {
			if err := h.drafts.SaveDraft(ctx, ls.tracker.ID(), content); err != nil {
				h.logger.Warn().
					Err(err).
					Str("session_id", ls.tracker.ID()).
					Msg("draft flush before eviction failed")
			}
		}
		h.sessions.remove(ls.tracker.ID())
		h.metrics.LiveSessions.Set(float64(h.sessions.len()))
		h.logger.Info().
			Str("session_id", ls.tracker.ID()).
			Time("last_activity", ls.tracker.LastActivity()).
			Msg("evicted idle session")
	})
}

func (h *Handlers) flushAll(ctx context.Context) {
	h.sessions.forEach(func(ls *liveSession) {
		content := ls.tracker.Content()
		if content == "" {
			return
		}
		if err := h.drafts.SaveDraft(ctx, ls.tracker.ID(), content); err != nil {
			h.logger.Warn().
				Err(err).
				Str("session_id", ls.tracker.ID()).
				Msg("autosave failed")
		}
	})
}

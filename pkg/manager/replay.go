package manager

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dmitrymomot/pushkit/pkg/logger"
	"github.com/dmitrymomot/pushkit/pkg/router"
)

type replaySession struct {
	cancel context.CancelFunc
}

// Replay pushes the recipient's pending backlog in creation order. It stops
// at the first recipient-side failure (went offline again, stopped acking)
// so ordering is preserved across reconnects. Conflicting replays, where a
// message is already in flight or just settled, are skipped and logged, not
// failed. A message the recipient is no longer eligible for (role lost since
// it was queued) is settled in place so it stops blocking the rest of the
// backlog. Returns the number of messages acknowledged.
func (m *Manager) Replay(ctx context.Context, recipientID string) (int, error) {
	pending, err := m.storage.GetPending(ctx, recipientID, m.replayLimit)
	if err != nil {
		return 0, err
	}

	delivered := 0
	for _, msg := range pending {
		res, err := m.router.Replay(ctx, msg, recipientID)
		switch {
		case errors.Is(err, router.ErrReplayConflict):
			m.log.DebugContext(ctx, "replay conflict, skipping",
				logger.MessageID(msg.ID),
				logger.RecipientID(recipientID),
			)
			continue
		case errors.Is(err, router.ErrRecipientIneligible):
			m.log.InfoContext(ctx, "recipient no longer eligible, settling pending message",
				logger.MessageID(msg.ID),
				logger.RecipientID(recipientID),
			)
			if markErr := m.storage.MarkDelivered(ctx, msg.ID, recipientID); markErr != nil {
				m.log.WarnContext(ctx, "settle ineligible pending message",
					logger.MessageID(msg.ID),
					logger.RecipientID(recipientID),
					logger.Error(markErr),
				)
			}
			continue
		case err != nil:
			return delivered, err
		}

		if res.State != router.StateAcked {
			// Recipient went away or stopped acking; the rest of the
			// backlog waits for the next reconnect.
			return delivered, nil
		}
		delivered++
	}
	return delivered, nil
}

// handleConnect starts a background replay for a freshly connected
// recipient. A previous replay for the same recipient is cancelled first.
func (m *Manager) handleConnect(recipientID string) {
	m.mu.Lock()
	if m.runCtx == nil {
		m.mu.Unlock()
		return
	}
	if prev, ok := m.replays[recipientID]; ok {
		prev.cancel()
	}
	ctx, cancel := context.WithCancel(m.runCtx)
	session := &replaySession{cancel: cancel}
	m.replays[recipientID] = session
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		defer func() {
			m.mu.Lock()
			if m.replays[recipientID] == session {
				delete(m.replays, recipientID)
			}
			m.mu.Unlock()
			cancel()
		}()

		delivered, err := m.Replay(ctx, recipientID)
		if err != nil && !errors.Is(err, context.Canceled) {
			m.log.ErrorContext(ctx, "reconnect replay",
				logger.RecipientID(recipientID),
				logger.Error(err),
			)
			return
		}
		if delivered > 0 {
			m.log.InfoContext(ctx, "replayed pending notifications",
				logger.RecipientID(recipientID),
				slog.Int("delivered", delivered),
			)
		}
	}()
}

// handleDisconnect cancels an in-progress replay for the recipient.
func (m *Manager) handleDisconnect(recipientID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if session, ok := m.replays[recipientID]; ok {
		session.cancel()
		delete(m.replays, recipientID)
	}
}

package call

import (
	"context"
	"strings"

	"github.com/evermem/linekeeper/pkg/core"
	"github.com/evermem/linekeeper/pkg/core/voice"
)

// runLoop drives listen→respond turns for one active session until the
// wall-clock budget elapses, the caller goes silent or hangs up, or the
// caller asks to end the call. The deadline is checked only at the top of
// each turn, so a turn in progress always completes; a single slow listen or
// speak can therefore overrun the configured budget.
//
// Listen and speak failures propagate to the caller (the lifecycle manager)
// as collaborator errors; composition failures never do, the composer
// degrades to a generic reply instead.
func (m *Manager) runLoop(ctx context.Context, c *liveCall, listener voice.Listener, speaker voice.Speaker) (Outcome, error) {
	start, callerID := c.startInfo()
	deadline := start.Add(m.cfg.MaxCallDuration)

	for {
		if !m.now().Before(deadline) {
			return OutcomeCompleted, nil
		}

		utterance, err := listener.Listen(ctx)
		if err != nil {
			return OutcomeError, core.NewCollaboratorError("listen", err)
		}
		// Silence and a dropped call are indistinguishable here; both end
		// the call without a transcript entry.
		if strings.TrimSpace(utterance.Text) == "" {
			return OutcomeHungUp, nil
		}

		c.update(func(s *Session) {
			s.append(TranscriptEntry{
				Speaker:    RoleCaller,
				Timestamp:  m.now().UTC(),
				Content:    utterance.Text,
				Confidence: utterance.Confidence,
				AudioRef:   utterance.AudioRef,
			})
		})

		reply := m.composer.Compose(ctx, callerID, utterance.Text)

		c.update(func(s *Session) {
			s.append(TranscriptEntry{
				Speaker:    RoleAI,
				Timestamp:  m.now().UTC(),
				Content:    reply,
				Confidence: 1.0,
			})
		})

		if err := speaker.Speak(ctx, reply, m.cfg.Voice); err != nil {
			return OutcomeError, core.NewCollaboratorError("speak", err)
		}

		// Checked after the response so the assistant always gets a closing
		// word before the loop exits.
		if IsEndingRequest(utterance.Text) {
			return OutcomeCompleted, nil
		}
	}
}

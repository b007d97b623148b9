package executors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/xraph/courier"
	"github.com/xraph/courier/batch"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
)

// VariantPoll is the variant tag for fetching incoming messages.
const VariantPoll job.Variant = "message.poll"

// PollDetails is the payload for the message.poll variant: one batch
// sub-request per thread.
type PollDetails struct {
	ThreadIDs []id.ThreadID `json:"thread_ids"`
}

// Incoming is one decrypted message handed to the Inbox.
type Incoming struct {
	ThreadID  id.ThreadID
	MessageID id.MessageID
	Plaintext []byte
}

// Inbox receives decrypted incoming messages. Implementations typically
// write to the application's message store and notify the UI.
type Inbox interface {
	Deliver(ctx context.Context, msg Incoming) error
}

// threadMessages is the expected body for one poll sub-response.
type threadMessages struct {
	ThreadID id.ThreadID   `json:"thread_id"`
	KeyID    string        `json:"key_id"`
	Messages []wireMessage `json:"messages"`
}

type wireMessage struct {
	MessageID  id.MessageID `json:"message_id"`
	Ciphertext []byte       `json:"ciphertext"`
}

// Validate rejects sub-responses that decoded structurally but name no
// thread, which would leave delivered messages unattributable.
func (t *threadMessages) Validate() error {
	if t.ThreadID.IsNil() {
		return fmt.Errorf("poll: sub-response missing thread_id")
	}
	return nil
}

// NewPoll returns the message.poll definition. Polls run serialized on
// the receive lane; the inbox is captured at construction because it is
// an application collaborator, not a per-job dependency.
func NewPoll(inbox Inbox) *job.Definition[PollDetails] {
	run := func(ctx context.Context, details PollDetails, deps job.Deps) job.Outcome {
		return runPoll(ctx, details, deps, inbox)
	}
	return job.NewDefinition(VariantPoll, run,
		job.InLane(courier.LaneReceive),
	)
}

func runPoll(ctx context.Context, details PollDetails, deps job.Deps, inbox Inbox) job.Outcome {
	if len(details.ThreadIDs) == 0 {
		return job.Succeed()
	}

	body, err := json.Marshal(struct {
		ThreadIDs []id.ThreadID `json:"thread_ids"`
	}{details.ThreadIDs})
	if err != nil {
		return job.Fail(fmt.Errorf("poll: marshal request: %w", err))
	}

	expected := make([]batch.Expected, len(details.ThreadIDs))
	for i := range details.ThreadIDs {
		expected[i] = batch.For[threadMessages]()
	}

	meta, resp, err := deps.Transport.PostBatch(ctx, "/v1/messages/poll", body, expected)
	if err != nil {
		// Transport failures and malformed batch payloads are both
		// transient from the client's point of view: poll again later.
		return job.Retry(fmt.Errorf("poll: %w", err))
	}
	if outcome := classify("poll", meta); outcome.Status != job.StatusSuccess {
		return outcome
	}

	for i := range resp.Responses {
		sub, ok := batch.Get[threadMessages](resp, i)
		if !ok {
			continue
		}
		if sub.BodyFailed() {
			// A mismatched body fails only its own position; the
			// sibling threads still deliver.
			deps.Logger.Warn("poll sub-response body mismatch",
				slog.String("thread_id", details.ThreadIDs[i].String()),
				slog.Int("code", sub.StatusCode()),
			)
			continue
		}
		if !sub.HasBody() {
			continue // no new messages for this thread
		}

		if err := deliverThread(ctx, sub.Body, deps, inbox); err != nil {
			return job.Retry(fmt.Errorf("poll: deliver thread %s: %w", sub.Body.ThreadID, err))
		}
	}
	return job.Succeed()
}

func deliverThread(ctx context.Context, tm *threadMessages, deps job.Deps, inbox Inbox) error {
	for _, m := range tm.Messages {
		plaintext, err := deps.Crypto.Decrypt(ctx, tm.KeyID, m.Ciphertext)
		if err != nil {
			deps.Logger.Warn("dropping undecryptable message",
				slog.String("thread_id", tm.ThreadID.String()),
				slog.String("message_id", m.MessageID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := inbox.Deliver(ctx, Incoming{
			ThreadID:  tm.ThreadID,
			MessageID: m.MessageID,
			Plaintext: plaintext,
		}); err != nil {
			return err
		}
	}
	return nil
}

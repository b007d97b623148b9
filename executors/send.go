package executors

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/xraph/courier"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
)

// VariantSend is the variant tag for outgoing message delivery.
const VariantSend job.Variant = "message.send"

// SendDetails is the payload for the message.send variant. Plaintext is
// sealed and signed at execution time, not at enqueue time, so key
// rotation between enqueue and send picks up the current keys.
type SendDetails struct {
	ThreadID       id.ThreadID  `json:"thread_id"`
	MessageID      id.MessageID `json:"message_id"`
	RecipientKeyID string       `json:"recipient_key_id"`
	SenderKeyID    string       `json:"sender_key_id"`
	Plaintext      []byte       `json:"plaintext"`
}

// sendRequest is the wire shape posted to the server.
type sendRequest struct {
	ThreadID   id.ThreadID  `json:"thread_id"`
	MessageID  id.MessageID `json:"message_id"`
	Ciphertext []byte       `json:"ciphertext"`
	Signature  []byte       `json:"signature"`
}

// NewSend returns the message.send definition. Sends are unique per
// fingerprint — re-enqueueing the same message while one is pending is a
// no-op — and serialized on the send lane so messages leave in order.
func NewSend() *job.Definition[SendDetails] {
	return job.NewDefinition(VariantSend, runSend,
		job.InLane(courier.LaneSend),
		job.Unique(),
	)
}

func runSend(ctx context.Context, details SendDetails, deps job.Deps) job.Outcome {
	ciphertext, err := deps.Crypto.Encrypt(ctx, details.RecipientKeyID, details.Plaintext)
	if err != nil {
		return job.Fail(fmt.Errorf("send: encrypt: %w", err))
	}
	signature, err := deps.Crypto.Sign(ctx, details.SenderKeyID, ciphertext)
	if err != nil {
		return job.Fail(fmt.Errorf("send: sign: %w", err))
	}

	body, err := json.Marshal(sendRequest{
		ThreadID:   details.ThreadID,
		MessageID:  details.MessageID,
		Ciphertext: ciphertext,
		Signature:  signature,
	})
	if err != nil {
		return job.Fail(fmt.Errorf("send: marshal request: %w", err))
	}

	meta, _, err := deps.Transport.Post(ctx, "/v1/messages", body)
	if err != nil {
		return job.Retry(fmt.Errorf("send: %w", err))
	}

	outcome := classify("send", meta)
	if outcome.Status == job.StatusSuccess {
		deps.Logger.Info("message sent",
			slog.String("thread_id", details.ThreadID.String()),
			slog.String("message_id", details.MessageID.String()),
		)
	}
	return outcome
}

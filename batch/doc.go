// Package batch decodes multiplexed server responses: a single JSON array
// whose elements answer independent sub-requests, each with its own status
// code, headers, and typed body.
//
// The failure model is deliberately asymmetric. A body the client does not
// recognize is a local problem — the element is kept with
// FailedToParseBody set and its siblings decode normally. A malformed
// envelope (payload not an array, wrong element count, element missing its
// status code) means the whole response is broken and [Parse] fails fast
// with [ErrParsingFailed], producing no partial result.
//
// # Usage
//
//	resp, err := batch.Parse(body, []batch.Expected{
//	    batch.For[Profile](),
//	    batch.For[Inbox](),
//	    batch.For[batch.NoContent](),
//	})
//	if err != nil { ... }
//	profile, ok := batch.Get[Profile](resp, 0)
//
// Decoding is pure and synchronous: no I/O, no retries. Retry policy for
// the enclosing HTTP request belongs to the caller or the job runner.
package batch

package executors_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/xraph/courier/executors"
	"github.com/xraph/courier/id"
	"github.com/xraph/courier/job"
	"github.com/xraph/courier/transport"
)

// ── Fakes ──────────────────────────────────────────────

// fakeCrypto implements courier.Crypto with reversible prefix transforms,
// enough to assert that executors route bytes through the right calls.
type fakeCrypto struct {
	failEncrypt bool
	failDecrypt bool
	failSign    bool
}

func (f *fakeCrypto) Sign(_ context.Context, keyID string, _ []byte) ([]byte, error) {
	if f.failSign {
		return nil, errors.New("sign refused")
	}
	return []byte("sig:" + keyID), nil
}

func (f *fakeCrypto) Verify(context.Context, string, []byte, []byte) error { return nil }

func (f *fakeCrypto) Encrypt(_ context.Context, _ string, plaintext []byte) ([]byte, error) {
	if f.failEncrypt {
		return nil, errors.New("encrypt refused")
	}
	return append([]byte("enc:"), plaintext...), nil
}

func (f *fakeCrypto) Decrypt(_ context.Context, _ string, ciphertext []byte) ([]byte, error) {
	if f.failDecrypt {
		return nil, errors.New("decrypt refused")
	}
	rest, ok := bytes.CutPrefix(ciphertext, []byte("enc:"))
	if !ok {
		return nil, errors.New("not sealed by fakeCrypto")
	}
	return rest, nil
}

type fakeInbox struct {
	mu       sync.Mutex
	received []executors.Incoming
	err      error
}

func (f *fakeInbox) Deliver(_ context.Context, msg executors.Incoming) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.received = append(f.received, msg)
	return nil
}

func (f *fakeInbox) messages() []executors.Incoming {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]executors.Incoming(nil), f.received...)
}

type fakeBlobStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[string][]byte)}
}

func (f *fakeBlobStore) Put(_ context.Context, attachmentID id.AttachmentID, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blobs[attachmentID.String()] = data
	return nil
}

func (f *fakeBlobStore) Get(_ context.Context, attachmentID id.AttachmentID) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.blobs[attachmentID.String()]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return data, nil
}

func testDeps(baseURL string, crypto *fakeCrypto) job.Deps {
	return job.Deps{
		Transport: transport.New(baseURL, transport.WithLogger(testLogger())),
		Crypto:    crypto,
		Logger:    testLogger(),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ── message.send ───────────────────────────────────────

func TestSend_Success(t *testing.T) {
	var gotBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	def := executors.NewSend()
	details := executors.SendDetails{
		ThreadID:       id.NewThreadID(),
		MessageID:      id.NewMessageID(),
		RecipientKeyID: "rk1",
		SenderKeyID:    "sk1",
		Plaintext:      []byte("hello"),
	}

	outcome := def.Run(context.Background(), details, testDeps(ts.URL, &fakeCrypto{}))
	if outcome.Status != job.StatusSuccess {
		t.Fatalf("Status = %v, want success (err: %v)", outcome.Status, outcome.Err)
	}

	var sent struct {
		Ciphertext []byte `json:"ciphertext"`
		Signature  []byte `json:"signature"`
	}
	if err := json.Unmarshal(gotBody, &sent); err != nil {
		t.Fatalf("unmarshal request body: %v", err)
	}
	if string(sent.Ciphertext) != "enc:hello" {
		t.Errorf("Ciphertext = %s, want sealed plaintext", sent.Ciphertext)
	}
	if string(sent.Signature) != "sig:sk1" {
		t.Errorf("Signature = %s, want signature by sender key", sent.Signature)
	}
}

func TestSend_StatusClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		retryAfter string
		want       job.Status
		wantDelay  time.Duration
	}{
		{"created", 201, "", job.StatusSuccess, 0},
		{"bad request", 400, "", job.StatusPermanentFailure, 0},
		{"forbidden", 403, "", job.StatusPermanentFailure, 0},
		{"rate limited", 429, "7", job.StatusTemporaryFailure, 7 * time.Second},
		{"server error", 500, "", job.StatusTemporaryFailure, 0},
		{"unavailable", 503, "2", job.StatusTemporaryFailure, 2 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if tt.retryAfter != "" {
					w.Header().Set("Retry-After", tt.retryAfter)
				}
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			def := executors.NewSend()
			outcome := def.Run(context.Background(), executors.SendDetails{}, testDeps(ts.URL, &fakeCrypto{}))
			if outcome.Status != tt.want {
				t.Errorf("Status = %v, want %v", outcome.Status, tt.want)
			}
			if outcome.RetryAfter != tt.wantDelay {
				t.Errorf("RetryAfter = %v, want %v", outcome.RetryAfter, tt.wantDelay)
			}
		})
	}
}

func TestSend_NetworkErrorIsTemporary(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	ts.Close() // refuse connections

	def := executors.NewSend()
	outcome := def.Run(context.Background(), executors.SendDetails{}, testDeps(ts.URL, &fakeCrypto{}))
	if outcome.Status != job.StatusTemporaryFailure {
		t.Errorf("Status = %v, want temporary failure", outcome.Status)
	}
}

func TestSend_CryptoFailureIsPermanent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("request must not reach the server when encryption fails")
	}))
	defer ts.Close()

	def := executors.NewSend()
	outcome := def.Run(context.Background(), executors.SendDetails{}, testDeps(ts.URL, &fakeCrypto{failEncrypt: true}))
	if outcome.Status != job.StatusPermanentFailure {
		t.Errorf("Status = %v, want permanent failure", outcome.Status)
	}
}

func TestSend_Route(t *testing.T) {
	def := executors.NewSend()
	if def.Route.Lane != "message-send" {
		t.Errorf("Lane = %q, want message-send", def.Route.Lane)
	}
	if !def.Route.Behaviour.Unique {
		t.Error("sends must be unique per fingerprint")
	}
}

// ── message.poll ───────────────────────────────────────

func TestPoll_DeliversDecryptedMessages(t *testing.T) {
	threadA, threadB := id.NewThreadID(), id.NewThreadID()
	msg1, msg2 := id.NewMessageID(), id.NewMessageID()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `[
			{"code": 200, "headers": {}, "body": {
				"thread_id": %q, "key_id": "k1",
				"messages": [
					{"message_id": %q, "ciphertext": %q},
					{"message_id": %q, "ciphertext": %q}
				]}},
			{"code": 204, "headers": {}}
		]`,
			threadA,
			msg1, b64("enc:first"),
			msg2, b64("enc:second"),
		)
	}))
	defer ts.Close()

	inbox := &fakeInbox{}
	def := executors.NewPoll(inbox)
	details := executors.PollDetails{ThreadIDs: []id.ThreadID{threadA, threadB}}

	outcome := def.Run(context.Background(), details, testDeps(ts.URL, &fakeCrypto{}))
	if outcome.Status != job.StatusSuccess {
		t.Fatalf("Status = %v, want success (err: %v)", outcome.Status, outcome.Err)
	}

	got := inbox.messages()
	if len(got) != 2 {
		t.Fatalf("delivered %d messages, want 2", len(got))
	}
	if string(got[0].Plaintext) != "first" || string(got[1].Plaintext) != "second" {
		t.Errorf("plaintexts = %s, %s", got[0].Plaintext, got[1].Plaintext)
	}
	if got[0].ThreadID.String() != threadA.String() {
		t.Errorf("ThreadID = %s, want %s", got[0].ThreadID, threadA)
	}
}

func TestPoll_BodyMismatchSkipsElementOnly(t *testing.T) {
	threadA, threadB := id.NewThreadID(), id.NewThreadID()
	msg := id.NewMessageID()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// First element's body is a bare string: a shape mismatch, not a
		// structural failure.
		fmt.Fprintf(w, `[
			{"code": 200, "headers": {}, "body": "surprise"},
			{"code": 200, "headers": {}, "body": {
				"thread_id": %q, "key_id": "k1",
				"messages": [{"message_id": %q, "ciphertext": %q}]}}
		]`, threadB, msg, b64("enc:kept"))
	}))
	defer ts.Close()

	inbox := &fakeInbox{}
	def := executors.NewPoll(inbox)
	details := executors.PollDetails{ThreadIDs: []id.ThreadID{threadA, threadB}}

	outcome := def.Run(context.Background(), details, testDeps(ts.URL, &fakeCrypto{}))
	if outcome.Status != job.StatusSuccess {
		t.Fatalf("Status = %v, want success (err: %v)", outcome.Status, outcome.Err)
	}
	got := inbox.messages()
	if len(got) != 1 || string(got[0].Plaintext) != "kept" {
		t.Errorf("delivered = %v, want only the well-formed sibling", got)
	}
}

func TestPoll_CountMismatchIsTemporary(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"code": 204, "headers": {}}]`))
	}))
	defer ts.Close()

	inbox := &fakeInbox{}
	def := executors.NewPoll(inbox)
	details := executors.PollDetails{ThreadIDs: []id.ThreadID{id.NewThreadID(), id.NewThreadID()}}

	outcome := def.Run(context.Background(), details, testDeps(ts.URL, &fakeCrypto{}))
	if outcome.Status != job.StatusTemporaryFailure {
		t.Errorf("Status = %v, want temporary failure on whole-batch parse error", outcome.Status)
	}
}

func TestPoll_UndecryptableMessageIsDropped(t *testing.T) {
	thread := id.NewThreadID()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `[
			{"code": 200, "headers": {}, "body": {
				"thread_id": %q, "key_id": "k1",
				"messages": [{"message_id": %q, "ciphertext": %q}]}}
		]`, thread, id.NewMessageID(), b64("garbage"))
	}))
	defer ts.Close()

	inbox := &fakeInbox{}
	def := executors.NewPoll(inbox)
	details := executors.PollDetails{ThreadIDs: []id.ThreadID{thread}}

	outcome := def.Run(context.Background(), details, testDeps(ts.URL, &fakeCrypto{}))
	if outcome.Status != job.StatusSuccess {
		t.Errorf("Status = %v, want success with dropped message", outcome.Status)
	}
	if len(inbox.messages()) != 0 {
		t.Error("undecryptable message was delivered")
	}
}

func TestPoll_EmptyDetailsIsNoOp(t *testing.T) {
	inbox := &fakeInbox{}
	def := executors.NewPoll(inbox)

	outcome := def.Run(context.Background(), executors.PollDetails{}, job.Deps{Logger: testLogger()})
	if outcome.Status != job.StatusSuccess {
		t.Errorf("Status = %v, want success without any request", outcome.Status)
	}
}

// ── attachments ────────────────────────────────────────

func TestDownload_StoresDecryptedBlob(t *testing.T) {
	attID := id.NewAttachmentID()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/attachments/"+attID.String() {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte("enc:blobdata"))
	}))
	defer ts.Close()

	blobs := newFakeBlobStore()
	def := executors.NewDownload(blobs)
	details := executors.DownloadDetails{AttachmentID: attID, KeyID: "k1"}

	outcome := def.Run(context.Background(), details, testDeps(ts.URL, &fakeCrypto{}))
	if outcome.Status != job.StatusSuccess {
		t.Fatalf("Status = %v, want success (err: %v)", outcome.Status, outcome.Err)
	}

	data, err := blobs.Get(context.Background(), attID)
	if err != nil || string(data) != "blobdata" {
		t.Errorf("stored blob = %s, %v; want decrypted payload", data, err)
	}
}

func TestDownload_GoneIsPermanent(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	def := executors.NewDownload(newFakeBlobStore())
	details := executors.DownloadDetails{AttachmentID: id.NewAttachmentID()}

	outcome := def.Run(context.Background(), details, testDeps(ts.URL, &fakeCrypto{}))
	if outcome.Status != job.StatusPermanentFailure {
		t.Errorf("Status = %v, want permanent failure for expired attachment", outcome.Status)
	}
}

func TestUpload_EncryptsAndPuts(t *testing.T) {
	attID := id.NewAttachmentID()
	var gotBody []byte
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		gotBody, _ = io.ReadAll(r.Body)
	}))
	defer ts.Close()

	blobs := newFakeBlobStore()
	if err := blobs.Put(context.Background(), attID, []byte("photo")); err != nil {
		t.Fatalf("Put: %v", err)
	}

	def := executors.NewUpload(blobs)
	details := executors.UploadDetails{AttachmentID: attID, RecipientKeyID: "rk1"}

	outcome := def.Run(context.Background(), details, testDeps(ts.URL, &fakeCrypto{}))
	if outcome.Status != job.StatusSuccess {
		t.Fatalf("Status = %v, want success (err: %v)", outcome.Status, outcome.Err)
	}

	var sent struct {
		Ciphertext []byte `json:"ciphertext"`
	}
	if err := json.Unmarshal(gotBody, &sent); err != nil {
		t.Fatalf("unmarshal request body: %v", err)
	}
	if string(sent.Ciphertext) != "enc:photo" {
		t.Errorf("Ciphertext = %s, want sealed blob", sent.Ciphertext)
	}
}

func TestUpload_MissingBlobIsPermanent(t *testing.T) {
	def := executors.NewUpload(newFakeBlobStore())
	details := executors.UploadDetails{AttachmentID: id.NewAttachmentID()}

	deps := job.Deps{Crypto: &fakeCrypto{}, Logger: testLogger()}
	outcome := def.Run(context.Background(), details, deps)
	if outcome.Status != job.StatusPermanentFailure {
		t.Errorf("Status = %v, want permanent failure for missing local blob", outcome.Status)
	}
}

func TestAttachmentRoutes(t *testing.T) {
	down := executors.NewDownload(newFakeBlobStore())
	up := executors.NewUpload(newFakeBlobStore())

	for _, route := range []job.Route{down.Route, up.Route} {
		if route.Lane != "attachment" {
			t.Errorf("Lane = %q, want attachment", route.Lane)
		}
		if !route.Behaviour.Unique {
			t.Error("attachment transfers must be unique")
		}
		if route.MaxFailures == 0 {
			t.Error("attachment transfers must bound retries")
		}
	}
}

// b64 renders a byte string the way encoding/json does for []byte fields.
func b64(s string) string {
	data, _ := json.Marshal([]byte(s)) //nolint:errcheck // marshal of []byte cannot fail
	return string(data[1 : len(data)-1])
}

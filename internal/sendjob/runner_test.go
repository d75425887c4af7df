package sendjob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailflow/mailflow/internal/config"
	"github.com/mailflow/mailflow/internal/logger"
	"github.com/mailflow/mailflow/internal/mail"
	"github.com/mailflow/mailflow/internal/model"
)

type fakeSender struct {
	mu     sync.Mutex
	sent   []mail.Message
	fail   map[string]error // keyed by recipient address
	onSend func(n int)      // called after each accepted send, n is 1-based
}

func (f *fakeSender) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.fail[msg.To]; ok {
		return err
	}
	f.sent = append(f.sent, msg)
	if f.onSend != nil {
		f.onSend(len(f.sent))
	}
	return nil
}

type fakeStore struct {
	mu      sync.Mutex
	entries []model.LogEntry
	err     error
}

func (f *fakeStore) Append(_ context.Context, entry *model.LogEntry) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, *entry)
	return nil
}

func newTestRunner(sender mail.Sender, store LogStore) *Runner {
	return NewRunner(sender, store, config.SendJobConfig{SendDelay: 0}, logger.New("error", "text"))
}

func testRecipients(n int) []model.Recipient {
	rcpts := make([]model.Recipient, 0, n)
	for i := 0; i < n; i++ {
		rcpts = append(rcpts, model.Recipient{
			Name:  fmt.Sprintf("User%d", i),
			Email: fmt.Sprintf("user%d@example.com", i),
		})
	}
	return rcpts
}

func testRequest(rcpts []model.Recipient) StartRequest {
	return StartRequest{
		Identity:      Identity{UserID: "usr_test", Email: "me@example.com"},
		SenderAddress: "me@example.com",
		Recipients:    rcpts,
		Template:      model.MessageTemplate{Subject: "Hi {Name}", Body: "Hello {Name}, welcome."},
	}
}

func TestRunnerSendsAllRecipientsInOrder(t *testing.T) {
	sender := &fakeSender{}
	store := &fakeStore{}
	r := newTestRunner(sender, store)

	rcpts := testRecipients(3)
	result, err := r.Start(context.Background(), testRequest(rcpts))
	require.NoError(t, err)

	assert.Equal(t, "Email sending complete!", result.StatusMessage)
	assert.False(t, result.Interrupted)
	require.Len(t, result.Log, 3)
	require.Len(t, sender.sent, 3)

	for i, entry := range result.Log {
		assert.Equal(t, rcpts[i].Email, entry.Email)
		assert.Equal(t, rcpts[i].Name, entry.Name)
		assert.Equal(t, model.LogStatusSent, entry.Status)
		assert.Empty(t, entry.Error)
		assert.Equal(t, "usr_test", entry.UserID)
		assert.Equal(t, fmt.Sprintf("Hi User%d", i), entry.Subject)
		assert.False(t, entry.Timestamp.IsZero())
	}

	// One rendered message per recipient, personalized with their name.
	assert.Equal(t, "Hello User0, welcome.", sender.sent[0].Body)
	assert.Equal(t, "user2@example.com", sender.sent[2].To)
	assert.Equal(t, "me@example.com", sender.sent[0].From)

	// Every attempt lands in the durable store too.
	assert.Len(t, store.entries, 3)

	assert.NotEmpty(t, result.Report)

	snap := r.Status()
	assert.False(t, snap.Running)
	assert.Equal(t, 3, snap.Completed)
	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, "Email sending complete!", snap.Message)
}

func TestRunnerRecordsFailureAndContinues(t *testing.T) {
	sender := &fakeSender{
		fail: map[string]error{"user1@example.com": errors.New("mailbox full")},
	}
	store := &fakeStore{}
	r := newTestRunner(sender, store)

	result, err := r.Start(context.Background(), testRequest(testRecipients(3)))
	require.NoError(t, err)

	require.Len(t, result.Log, 3)
	assert.Equal(t, model.LogStatusSent, result.Log[0].Status)
	assert.Equal(t, model.LogStatusFailed, result.Log[1].Status)
	assert.Equal(t, "mailbox full", result.Log[1].Error)
	assert.Equal(t, model.LogStatusSent, result.Log[2].Status)

	// The transport was asked to deliver all three and rejected the second;
	// only accepted sends are recorded.
	assert.Len(t, sender.sent, 2)
	assert.Equal(t, "Email sending complete!", result.StatusMessage)
}

func TestRunnerStopHaltsAtRecipientBoundary(t *testing.T) {
	store := &fakeStore{}
	var r *Runner
	sender := &fakeSender{
		onSend: func(n int) {
			if n == 2 {
				assert.True(t, r.RequestStop())
			}
		},
	}
	r = newTestRunner(sender, store)

	result, err := r.Start(context.Background(), testRequest(testRecipients(5)))
	require.NoError(t, err)

	assert.True(t, result.Interrupted)
	assert.Equal(t, "Email sending interrupted by user.", result.StatusMessage)
	// The in-flight send finishes; remaining recipients are never attempted.
	assert.Len(t, result.Log, 2)
	assert.Len(t, sender.sent, 2)

	// The report still covers the whole upload.
	assert.NotEmpty(t, result.Report)
}

func TestRunnerPreconditions(t *testing.T) {
	sender := &fakeSender{}
	store := &fakeStore{}

	t.Run("missing identity", func(t *testing.T) {
		r := newTestRunner(sender, store)
		req := testRequest(testRecipients(1))
		req.Identity = Identity{}
		_, err := r.Start(context.Background(), req)
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})

	t.Run("missing transport", func(t *testing.T) {
		r := newTestRunner(nil, store)
		_, err := r.Start(context.Background(), testRequest(testRecipients(1)))
		assert.ErrorIs(t, err, ErrMailNotConfigured)
	})

	t.Run("no recipients", func(t *testing.T) {
		r := newTestRunner(sender, store)
		_, err := r.Start(context.Background(), testRequest(nil))
		assert.ErrorIs(t, err, ErrNoRecipients)
	})

	t.Run("precondition failures leave no trace", func(t *testing.T) {
		r := newTestRunner(nil, store)
		_, err := r.Start(context.Background(), testRequest(testRecipients(1)))
		require.Error(t, err)
		assert.Nil(t, r.LastResult())
		assert.False(t, r.Status().Running)
	})
}

func TestRunnerRejectsConcurrentJob(t *testing.T) {
	store := &fakeStore{}
	var r *Runner
	var concurrentErr error
	sender := &fakeSender{
		onSend: func(n int) {
			if n == 1 {
				_, concurrentErr = r.Start(context.Background(), testRequest(testRecipients(1)))
			}
		},
	}
	r = newTestRunner(sender, store)

	_, err := r.Start(context.Background(), testRequest(testRecipients(2)))
	require.NoError(t, err)
	assert.ErrorIs(t, concurrentErr, ErrJobAlreadyRunning)

	// The slot frees up once the first job finishes.
	_, err = r.Start(context.Background(), testRequest(testRecipients(1)))
	assert.NoError(t, err)
}

func TestRunnerStoreFailureDoesNotAbortRun(t *testing.T) {
	sender := &fakeSender{}
	store := &fakeStore{err: errors.New("connection refused")}
	r := newTestRunner(sender, store)

	var warnings []string
	req := testRequest(testRecipients(2))
	req.Progress = func(_ float64, message string) {
		warnings = append(warnings, message)
	}

	result, err := r.Start(context.Background(), req)
	require.NoError(t, err)

	// The in-memory log keeps the true delivery outcome.
	require.Len(t, result.Log, 2)
	for _, entry := range result.Log {
		assert.Equal(t, model.LogStatusSent, entry.Status)
	}
	assert.Equal(t, "Email sending complete!", result.StatusMessage)

	// The persistence failure is surfaced distinctly from send progress.
	assert.Contains(t, warnings, "Warning: delivery log write failed for user0@example.com")
}

func TestRunnerProgressUpdates(t *testing.T) {
	sender := &fakeSender{}
	store := &fakeStore{}
	r := newTestRunner(sender, store)

	var fractions []float64
	var messages []string
	req := testRequest(testRecipients(4))
	req.Progress = func(fraction float64, message string) {
		fractions = append(fractions, fraction)
		messages = append(messages, message)
	}

	_, err := r.Start(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, fractions, 4)
	assert.InDelta(t, 0.25, fractions[0], 1e-9)
	assert.InDelta(t, 1.0, fractions[3], 1e-9)
	assert.Equal(t, "Sent to User0 (user0@example.com)", messages[0])
}

func TestRunnerReportFailureKeepsLog(t *testing.T) {
	sender := &fakeSender{}
	store := &fakeStore{}
	r := newTestRunner(sender, store)
	r.buildReport = func([]model.Recipient, []model.LogEntry) ([]byte, error) {
		return nil, errors.New("disk full")
	}

	result, err := r.Start(context.Background(), testRequest(testRecipients(2)))
	require.NoError(t, err)

	assert.Nil(t, result.Report)
	assert.Len(t, result.Log, 2)
	assert.Equal(t, "Error generating final results workbook: disk full", result.StatusMessage)
}

func TestRunnerRequestStopWhenIdle(t *testing.T) {
	r := newTestRunner(&fakeSender{}, &fakeStore{})
	assert.False(t, r.RequestStop())

	// Still false after a completed job.
	_, err := r.Start(context.Background(), testRequest(testRecipients(1)))
	require.NoError(t, err)
	assert.False(t, r.RequestStop())
}

func TestRunnerLastResult(t *testing.T) {
	r := newTestRunner(&fakeSender{}, &fakeStore{})
	assert.Nil(t, r.LastResult())

	result, err := r.Start(context.Background(), testRequest(testRecipients(1)))
	require.NoError(t, err)
	assert.Equal(t, result, r.LastResult())
}

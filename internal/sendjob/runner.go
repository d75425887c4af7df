package sendjob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mailflow/mailflow/internal/config"
	"github.com/mailflow/mailflow/internal/logger"
	"github.com/mailflow/mailflow/internal/mail"
	"github.com/mailflow/mailflow/internal/model"
	"github.com/mailflow/mailflow/internal/sheet"
)

// Precondition errors. Each maps to a distinct user-facing message so the
// caller can tell which input to correct.
var (
	ErrNotAuthenticated  = errors.New("not logged in")
	ErrMailNotConfigured = errors.New("mail transport credential is not configured")
	ErrNoRecipients      = errors.New("no recipients found in the uploaded file")
	ErrJobAlreadyRunning = errors.New("a send job is already running")
)

// Identity is the authenticated caller a job runs on behalf of.
type Identity struct {
	UserID string
	Email  string
}

// LogStore is the durable append-only delivery record. Append failures are
// reported but never abort a run.
type LogStore interface {
	Append(ctx context.Context, entry *model.LogEntry) error
}

// ProgressFunc receives advisory progress updates after each recipient.
// It may be nil; the run's correctness never depends on it.
type ProgressFunc func(fraction float64, message string)

// StartRequest carries everything one send job needs.
type StartRequest struct {
	Identity      Identity
	SenderAddress string
	Recipients    []model.Recipient
	Template      model.MessageTemplate
	Progress      ProgressFunc
}

// Result is the outcome of one completed or interrupted job.
type Result struct {
	StatusMessage string           `json:"statusMessage"`
	Log           []model.LogEntry `json:"log"`
	Report        []byte           `json:"-"` // nil when report generation failed
	Interrupted   bool             `json:"interrupted"`
}

// Snapshot is a point-in-time view of the job slot for status polling.
type Snapshot struct {
	Running   bool   `json:"running"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
	Message   string `json:"message"`
}

// Runner owns the single send-job slot. One job runs at a time, strictly
// sequentially over its recipients; Start rejects concurrent jobs rather
// than queueing them. RequestStop is safe to call from other goroutines.
type Runner struct {
	sender      mail.Sender // nil when the transport credential is missing
	store       LogStore
	delay       time.Duration
	log         *logger.Logger
	buildReport func(recipients []model.Recipient, log []model.LogEntry) ([]byte, error)

	mu        sync.Mutex
	running   bool
	stopped   bool
	stopCh    chan struct{}
	completed int
	total     int
	message   string
	last      *Result
}

// NewRunner creates a Runner. A nil sender is allowed and makes every job
// fail its transport precondition, mirroring a missing app password.
func NewRunner(sender mail.Sender, store LogStore, cfg config.SendJobConfig, log *logger.Logger) *Runner {
	return &Runner{
		sender: sender,
		store:  store,
		delay:  cfg.SendDelay,
		log:    log.WithComponent("sendjob"),
		buildReport: func(recipients []model.Recipient, entries []model.LogEntry) ([]byte, error) {
			return sheet.WriteReport(sheet.Reconcile(recipients, entries))
		},
		message: "Ready to send.",
	}
}

// Start runs one send job to completion or interruption and returns its
// result. Precondition failures return before the job transitions to
// running and leave no log behind.
func (r *Runner) Start(ctx context.Context, req StartRequest) (*Result, error) {
	if req.Identity.UserID == "" {
		return nil, ErrNotAuthenticated
	}
	if r.sender == nil {
		return nil, ErrMailNotConfigured
	}
	if len(req.Recipients) == 0 {
		return nil, ErrNoRecipients
	}

	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, ErrJobAlreadyRunning
	}
	r.running = true
	r.stopped = false
	r.stopCh = make(chan struct{})
	r.completed = 0
	r.total = len(req.Recipients)
	r.message = "Starting email send..."
	stopCh := r.stopCh
	r.mu.Unlock()

	jobID := uuid.New().String()
	jlog := r.log.WithJobID(jobID).WithUserID(req.Identity.UserID)
	jlog.Info().Int("recipients", len(req.Recipients)).Msg("send job started")

	total := len(req.Recipients)
	entries := make([]model.LogEntry, 0, total)
	interrupted := false

	for i, rcpt := range req.Recipients {
		select {
		case <-stopCh:
			interrupted = true
		default:
		}
		if interrupted {
			jlog.Info().Int("processed", i).Msg("send job interrupted by user")
			break
		}

		rendered := Render(req.Template, rcpt)

		sendErr := r.sender.Send(ctx, mail.Message{
			From:    req.SenderAddress,
			To:      rcpt.Email,
			Subject: rendered.Subject,
			Body:    rendered.Body,
		})

		entry := model.LogEntry{
			ID:          uuid.New().String(),
			UserID:      req.Identity.UserID,
			Email:       rcpt.Email,
			Name:        rcpt.Name,
			Subject:     rendered.Subject,
			BodyPreview: bodyPreview(rendered.Body),
			Timestamp:   time.Now(),
			Status:      model.LogStatusSent,
		}
		progressMsg := fmt.Sprintf("Sent to %s (%s)", rcpt.Name, rcpt.Email)
		if sendErr != nil {
			entry.Status = model.LogStatusFailed
			entry.Error = sendErr.Error()
			progressMsg = fmt.Sprintf("Failed to send to %s (%s)", rcpt.Name, rcpt.Email)
			jlog.Warn().Err(sendErr).Str("email", rcpt.Email).Msg("send failed")
		}
		entries = append(entries, entry)

		if err := r.store.Append(ctx, &entry); err != nil {
			// Best effort: the durable store never breaks the run or the
			// in-memory log, but the failure is surfaced distinctly.
			jlog.Error().Err(err).Str("email", rcpt.Email).Msg("failed to persist delivery log entry")
			report(req.Progress, float64(i+1)/float64(total),
				fmt.Sprintf("Warning: delivery log write failed for %s", rcpt.Email))
		}

		r.setProgress(i+1, progressMsg)
		report(req.Progress, float64(i+1)/float64(total), progressMsg)

		if i < total-1 {
			// Pace sends for the relay's rate limits, but wake immediately
			// on a stop request; the loop top decides what it means.
			select {
			case <-time.After(r.delay):
			case <-stopCh:
			}
		}
	}

	statusMsg := "Email sending complete!"
	if interrupted {
		statusMsg = "Email sending interrupted by user."
	}

	reportBytes, reportErr := r.buildReport(req.Recipients, entries)
	if reportErr != nil {
		jlog.Error().Err(reportErr).Msg("failed to generate results workbook")
		statusMsg = fmt.Sprintf("Error generating final results workbook: %v", reportErr)
		reportBytes = nil
	}

	result := &Result{
		StatusMessage: statusMsg,
		Log:           entries,
		Report:        reportBytes,
		Interrupted:   interrupted,
	}

	r.mu.Lock()
	r.running = false
	r.message = statusMsg
	r.last = result
	r.mu.Unlock()

	jlog.Info().
		Int("sent", countByStatus(entries, model.LogStatusSent)).
		Int("failed", countByStatus(entries, model.LogStatusFailed)).
		Bool("interrupted", interrupted).
		Msg("send job finished")

	return result, nil
}

// RequestStop asks a running job to halt at the next recipient boundary.
// It returns false when no job is running. Repeated calls while running
// are equivalent to one.
func (r *Runner) RequestStop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return false
	}
	if !r.stopped {
		r.stopped = true
		close(r.stopCh)
	}
	return true
}

// Status returns the current job slot snapshot.
func (r *Runner) Status() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		Running:   r.running,
		Completed: r.completed,
		Total:     r.total,
		Message:   r.message,
	}
}

// LastResult returns the most recent finished job's result, or nil when no
// job has run yet.
func (r *Runner) LastResult() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

func (r *Runner) setProgress(completed int, message string) {
	r.mu.Lock()
	r.completed = completed
	r.message = message
	r.mu.Unlock()
}

func report(fn ProgressFunc, fraction float64, message string) {
	if fn != nil {
		fn(fraction, message)
	}
}

func countByStatus(entries []model.LogEntry, status model.LogStatus) int {
	n := 0
	for _, e := range entries {
		if e.Status == status {
			n++
		}
	}
	return n
}

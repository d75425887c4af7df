package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mailflow/mailflow/internal/middleware"
	"github.com/mailflow/mailflow/internal/model"
	"github.com/mailflow/mailflow/internal/sendjob"
	"github.com/mailflow/mailflow/internal/sheet"
)

// maxUploadSize caps the recipient workbook upload at 10 MB.
const maxUploadSize = 10 << 20

// jobResponse is the synchronous result of one send job.
type jobResponse struct {
	Message         string         `json:"message"`
	Interrupted     bool           `json:"interrupted"`
	Log             []logEntryView `json:"log"`
	ReportAvailable bool           `json:"reportAvailable"`
}

// logEntryView is a delivery log entry with its timestamp rendered the same
// way the results workbook renders it, so both surfaces agree.
type logEntryView struct {
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	Subject     string          `json:"subject"`
	BodyPreview string          `json:"bodyPreview"`
	Timestamp   string          `json:"timestamp"`
	Status      model.LogStatus `json:"status"`
	Error       string          `json:"error,omitempty"`
}

func toLogViews(entries []model.LogEntry) []logEntryView {
	views := make([]logEntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, logEntryView{
			ID:          e.ID,
			Email:       e.Email,
			Name:        e.Name,
			Subject:     e.Subject,
			BodyPreview: e.BodyPreview,
			Timestamp:   sheet.FormatTimestamp(e.Timestamp),
			Status:      e.Status,
			Error:       e.Error,
		})
	}
	return views
}

// StartJob runs one send job to completion or interruption. The request is
// multipart: a "recipients" .xlsx file plus sender_email, subject, and body
// fields. The response carries the final status and the full delivery log;
// the results workbook is fetched separately from the report endpoint.
func (h *Handler) StartJob(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "Expected a multipart form upload")
		return
	}

	senderAddress := r.FormValue("sender_email")
	if senderAddress == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "sender_email is required")
		return
	}

	file, _, err := r.FormFile("recipients")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing_file", "Please upload a recipients workbook")
		return
	}
	defer file.Close()

	recipients, err := sheet.ParseRecipients(file)
	if err != nil {
		switch {
		case errors.Is(err, sheet.ErrMissingColumns):
			writeError(w, http.StatusBadRequest, "missing_columns", err.Error())
		case errors.Is(err, sheet.ErrMalformedFile):
			writeError(w, http.StatusBadRequest, "malformed_file", "The uploaded file could not be read as a workbook")
		default:
			h.log.Error().Err(err).Msg("failed to parse recipients upload")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to process the uploaded file")
		}
		return
	}

	identity := sendjob.Identity{
		UserID: middleware.GetUserID(r.Context()),
		Email:  middleware.GetEmail(r.Context()),
	}

	plog := h.log.WithComponent("progress").WithUserID(identity.UserID)
	result, err := h.runner.Start(r.Context(), sendjob.StartRequest{
		Identity:      identity,
		SenderAddress: senderAddress,
		Recipients:    recipients,
		Template: model.MessageTemplate{
			Subject: r.FormValue("subject"),
			Body:    r.FormValue("body"),
		},
		Progress: func(fraction float64, message string) {
			plog.Debug().Str("progress", fmt.Sprintf("%.0f%%", fraction*100)).Msg(message)
		},
	})
	if err != nil {
		switch {
		case errors.Is(err, sendjob.ErrJobAlreadyRunning):
			writeError(w, http.StatusConflict, "job_running", "A send job is already running")
		case errors.Is(err, sendjob.ErrNoRecipients):
			writeError(w, http.StatusBadRequest, "no_recipients", "No recipients found in the uploaded file")
		case errors.Is(err, sendjob.ErrMailNotConfigured):
			writeError(w, http.StatusServiceUnavailable, "mail_not_configured", "The mail transport credential is not configured")
		case errors.Is(err, sendjob.ErrNotAuthenticated):
			writeError(w, http.StatusUnauthorized, "unauthorized", "Not logged in")
		default:
			h.log.Error().Err(err).Msg("send job failed to start")
			writeError(w, http.StatusInternalServerError, "internal_error", "Failed to start send job")
		}
		return
	}

	writeJSON(w, http.StatusOK, jobResponse{
		Message:         result.StatusMessage,
		Interrupted:     result.Interrupted,
		Log:             toLogViews(result.Log),
		ReportAvailable: result.Report != nil,
	})
}

// StopJob requests cooperative interruption of the running job. The job
// halts before the next recipient; the send in flight always finishes.
func (h *Handler) StopJob(w http.ResponseWriter, r *http.Request) {
	if h.runner.RequestStop() {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"acknowledged": true,
			"message":      "Attempting to stop. The email currently being sent will finish first.",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"acknowledged": false,
		"message":      "No active send job to stop.",
	})
}

// JobStatus returns the job slot snapshot for progress polling
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.runner.Status())
}

// JobLog returns the last finished job's in-memory delivery log
func (h *Handler) JobLog(w http.ResponseWriter, r *http.Request) {
	result := h.runner.LastResult()
	if result == nil {
		writeError(w, http.StatusNotFound, "no_job", "No send job has run yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": result.StatusMessage,
		"log":     toLogViews(result.Log),
	})
}

// JobReport serves the last finished job's results workbook
func (h *Handler) JobReport(w http.ResponseWriter, r *http.Request) {
	result := h.runner.LastResult()
	if result == nil {
		writeError(w, http.StatusNotFound, "no_job", "No send job has run yet")
		return
	}
	if result.Report == nil {
		writeError(w, http.StatusNotFound, "no_report", "The results workbook could not be generated for the last job")
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="email_results.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(result.Report)
}

// LogHistory returns the caller's durable delivery log entries
func (h *Handler) LogHistory(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	entries, err := h.deliveryLog.ListByUser(r.Context(), userID, 100)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("failed to list delivery history")
		writeError(w, http.StatusInternalServerError, "internal_error", "Failed to load delivery history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"entries": toLogViews(entries)})
}

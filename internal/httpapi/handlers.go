package httpapi

import (
	"errors"
	"net/http"
	"time"

	"call-monitor/internal/auth"
	"call-monitor/internal/ingest"
	"call-monitor/internal/pending"
	"call-monitor/internal/reporting"
	"call-monitor/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Ingest    *ingest.Service
	Reporting *reporting.Service
	Auth      *auth.Manager
}

// --- Webhooks ---

// CallEvent ingests one push-channel payload from the call platform, in any
// of its envelope generations. The payload is taken as-is; shape dispatch
// happens in the extractor.
func (h Handlers) CallEvent(c *gin.Context) {
	var raw map[string]any
	if err := c.ShouldBindJSON(&raw); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	rec, err := h.Ingest.IngestWebhookPayload(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, ingest.ErrNoCorrelationID) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "no correlation id"})
			return
		}
		logger.FromGin(c).Error("webhook ingestion failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "ingestion failed"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

type resultReportRequest struct {
	Phone string `json:"phone"`
	ingest.ResultReport
}

// CallResult applies an out-of-band result report, keyed only by phone.
// matched=false is a valid answer, not a failure: the push-channel event for
// that call may simply not have arrived yet.
func (h Handlers) CallResult(c *gin.Context) {
	var req resultReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	matched, err := h.Ingest.IngestResultReport(c.Request.Context(), req.Phone, req.ResultReport)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrPhoneRequired):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone required"})
		case errors.Is(err, ingest.ErrUnknownOutcome):
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown outcome"})
		default:
			logger.FromGin(c).Error("result report failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"matched": matched})
}

type pendingContactRequest struct {
	Phone       string `json:"phone"`
	ContactName string `json:"contact_name,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	MinPrice    string `json:"min_price,omitempty"`
	MaxPrice    string `json:"max_price,omitempty"`
}

// PendingContact pre-registers contact metadata just before a call trigger.
func (h Handlers) PendingContact(c *gin.Context) {
	var req pendingContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	err := h.Ingest.RegisterPendingContact(c.Request.Context(), pending.Contact{
		Phone:       req.Phone,
		ContactName: req.ContactName,
		CompanyName: req.CompanyName,
		MinPrice:    req.MinPrice,
		MaxPrice:    req.MaxPrice,
	})
	if err != nil {
		if errors.Is(err, ingest.ErrPhoneRequired) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "phone required"})
			return
		}
		logger.FromGin(c).Error("pending contact registration failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	c.Status(http.StatusAccepted)
}

// --- Dashboard reads ---

// ListCalls returns all known records, newest first. When the store is still
// empty (fresh process, no push data yet) it falls back to pulling the
// upstream platform; pull failures degrade to the empty list.
func (h Handlers) ListCalls(c *gin.Context) {
	recs, err := h.Ingest.ListRecords(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("record listing failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "listing failed"})
		return
	}
	if len(recs) == 0 {
		pulled, err := h.Ingest.FetchAndReconcile(c.Request.Context())
		if err != nil && !errors.Is(err, ingest.ErrNotConfigured) {
			logger.FromGin(c).Warn("upstream reconcile failed, serving empty list", "err", err)
		}
		if len(pulled) > 0 {
			recs = pulled
		}
	}
	c.JSON(http.StatusOK, gin.H{"calls": recs})
}

// Stats serves the aggregated dashboard summary.
func (h Handlers) Stats(c *gin.Context) {
	summary, err := h.Reporting.Summary(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Error("summary failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "summary failed"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
}

// Login issues a dashboard token.
//
// NOTE: credential validation is delegated to the deployment's fronting
// proxy; this endpoint only mints tokens for already-trusted identities.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}
	token, err := h.Auth.Issue(time.Now(), req.UserID)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token})
}

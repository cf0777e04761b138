package handler

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pairgogo/backend/internal/config"
	"pairgogo/backend/internal/models"
)

type reportRequest struct {
	TargetID string `json:"target_id" binding:"required"`
	Reason   string `json:"reason" binding:"required"`
}

// Report files a report against another user. Crossing the report threshold
// within the window bans the target and ends their active session.
func (h *Handler) Report(c *gin.Context) {
	reporterID, reporterName, ok := bearerIdentity(c)
	if !ok {
		return
	}

	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "target_id and reason are required"})
		return
	}
	if req.TargetID == reporterID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot report yourself"})
		return
	}

	report := &models.Report{
		ReporterID:   reporterID,
		ReporterName: reporterName,
		TargetID:     req.TargetID,
		SessionID:    c.Query("session_id"),
		Reason:       req.Reason,
		Status:       "new",
	}
	if err := h.Storage.SaveReport(report); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save report"})
		return
	}

	banned := h.maybeBan(c.Request.Context(), req.TargetID)
	c.JSON(http.StatusOK, gin.H{"status": "reported", "target_banned": banned})
}

// maybeBan applies the report-frequency ban rule.
func (h *Handler) maybeBan(ctx context.Context, targetID string) bool {
	since := time.Now().Add(-config.BanReportWindow)
	reports, err := h.Storage.ReportsSince(targetID, since)
	if err != nil {
		log.Printf("ERROR: count reports for %s: %v", targetID, err)
		return false
	}

	// Distinct reporters only, so one user cannot ban another alone.
	reporters := map[string]struct{}{}
	for _, r := range reports {
		reporters[r.ReporterID] = struct{}{}
	}
	if len(reporters) < config.BanThresholdReports {
		return false
	}

	if err := h.Storage.BanUser(targetID, config.BanDuration); err != nil {
		log.Printf("ERROR: ban %s: %v", targetID, err)
		return false
	}
	log.Printf("User %s banned: %d reports within %s", targetID, len(reporters), config.BanReportWindow)

	if sess, err := h.Sessions.ActiveFor(ctx, targetID); err == nil && sess != nil {
		if err := h.Sessions.End(ctx, sess.ID, targetID, models.EndChat); err != nil {
			log.Printf("ERROR: end session for banned user %s: %v", targetID, err)
		}
	}
	return true
}

package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"qrattend/internal/attendance"
	"qrattend/internal/auth"
	"qrattend/internal/metrics"
	"qrattend/internal/qrtoken"
)

type locationPayload struct {
	Latitude  any `json:"latitude"`
	Longitude any `json:"longitude"`
}

type submitRequest struct {
	QRCode   string           `json:"qrCode" binding:"required"`
	UserID   int64            `json:"userId" binding:"required"`
	GroupID  *int64           `json:"groupId"`
	Location *locationPayload `json:"location"`
}

// SubmitAttendance handles POST /api/attendance.
func (h *Handler) SubmitAttendance(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims, _ := auth.FromContext(c)
	if claims.UserID != req.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "user mismatch"})
		return
	}

	in := attendance.SubmitInput{
		UserID:  req.UserID,
		QRCode:  req.QRCode,
		GroupID: req.GroupID,
	}
	if req.Location != nil {
		in.Latitude = req.Location.Latitude
		in.Longitude = req.Location.Longitude
	}

	if err := h.submitter.Submit(c.Request.Context(), in); err != nil {
		metrics.SubmissionsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		writeSubmitError(c, err)
		return
	}
	metrics.SubmissionsTotal.WithLabelValues("accepted").Inc()
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func outcomeLabel(err error) string {
	var aerr *attendance.Error
	if errors.As(err, &aerr) {
		return string(aerr.Kind)
	}
	return string(attendance.KindInternal)
}

// GenerateCode handles GET /api/attendance/code: mints a fresh code for the
// admin display. The code stays valid until the end of the local day.
func (h *Handler) GenerateCode(c *gin.Context) {
	now := time.Now()
	_, end := attendance.DayBounds(now)
	c.JSON(http.StatusOK, gin.H{
		"code":       qrtoken.Generate(now),
		"expires_at": end,
	})
}

// CuratorToday handles GET /api/attendance/curator/today.
func (h *Handler) CuratorToday(c *gin.Context) {
	claims, _ := auth.FromContext(c)
	groupID, ok := optionalInt64(c, "groupId")
	if !ok {
		return
	}

	start, end := attendance.DayBounds(time.Now())
	statuses, err := h.reports.CuratorDayStatus(c.Request.Context(), claims.UserID, groupID, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	if len(statuses) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "you do not curate any groups"})
		return
	}
	c.JSON(http.StatusOK, statuses)
}

// CuratorHistory handles GET /api/attendance/curator/history with optional
// startDate, endDate (YYYY-MM-DD), groupId and studentId filters.
func (h *Handler) CuratorHistory(c *gin.Context) {
	claims, _ := auth.FromContext(c)

	var f attendance.HistoryFilter
	var ok bool
	if f.GroupID, ok = optionalInt64(c, "groupId"); !ok {
		return
	}
	if f.StudentID, ok = optionalInt64(c, "studentId"); !ok {
		return
	}
	if v := c.Query("startDate"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "startDate must be YYYY-MM-DD"})
			return
		}
		f.Start = &t
	}
	if v := c.Query("endDate"); v != "" {
		t, err := time.ParseInLocation("2006-01-02", v, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "endDate must be YYYY-MM-DD"})
			return
		}
		// include the whole end day
		end := t.AddDate(0, 0, 1)
		f.End = &end
	}

	rows, err := h.reports.CuratorHistory(c.Request.Context(), claims.UserID, f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

// optionalInt64 parses an optional integer query parameter. On a malformed
// value it writes a 400 and reports !ok.
func optionalInt64(c *gin.Context, name string) (*int64, bool) {
	v := c.Query(name)
	if v == "" {
		return nil, true
	}
	parsed, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": name + " must be an integer"})
		return nil, false
	}
	return &parsed, true
}

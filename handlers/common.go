package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"nmafoods/api/middleware"
	"nmafoods/api/models"
	"nmafoods/api/session"
	"nmafoods/api/tracker"
	"nmafoods/api/utils"
)

const defaultStatsWindow = 7 * 24 * time.Hour

// parseTimeRange reads RFC3339 start/end query params. end defaults to now
// and start to seven days before end.
func parseTimeRange(c *gin.Context, now time.Time) (start, end time.Time, err error) {
	end = now
	if raw := c.Query("end"); raw != "" {
		if end, err = time.Parse(time.RFC3339, raw); err != nil {
			return start, end, fmt.Errorf("invalid end time format, use RFC3339")
		}
	}
	start = end.Add(-defaultStatsWindow)
	if raw := c.Query("start"); raw != "" {
		if start, err = time.Parse(time.RFC3339, raw); err != nil {
			return start, end, fmt.Errorf("invalid start time format, use RFC3339")
		}
	}
	if start.After(end) {
		return start, end, fmt.Errorf("start must not be after end")
	}
	return start, end, nil
}

func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
}

// Visitor turns a request into tracker and session context. The visitor's
// session is created on first use.
type Visitor struct {
	Sessions     *session.Manager
	SecureCookie bool
	CookieKey    []byte
}

func (vis Visitor) store(c *gin.Context) *middleware.CookieStore {
	return middleware.SessionStore(c, vis.SecureCookie, vis.CookieKey)
}

// PageContext is the page a beacon was sent from.
type PageContext struct {
	PagePath  string `json:"pagePath"`
	PageTitle string `json:"pageTitle"`
	PageURL   string `json:"pageUrl"`
	Referrer  string `json:"referrer"`
}

func (vis Visitor) Visit(c *gin.Context, page PageContext) (tracker.Visit, session.State, bool) {
	userID := ""
	if id, ok := middleware.UserID(c); ok {
		userID = strconv.Itoa(id)
	}
	if page.Referrer == "" {
		page.Referrer = c.Request.Referer()
	}
	utm := utils.UTMFromURL(page.PageURL)
	ua := c.Request.UserAgent()

	state, created := vis.Sessions.GetOrCreate(vis.store(c), session.Visit{
		UserID:    userID,
		EntryPage: page.PagePath,
		Referrer:  page.Referrer,
		UserAgent: ua,
		UTM:       utm,
	})

	return tracker.Visit{
		SessionID: state.ID,
		UserID:    userID,
		PagePath:  page.PagePath,
		PageTitle: page.PageTitle,
		PageURL:   page.PageURL,
		Referrer:  page.Referrer,
		UserAgent: ua,
		IPAddress: c.ClientIP(),
		UTM:       utm,
	}, state, created
}

// ConversionTracker records funnel conversions for a visit.
type ConversionTracker interface {
	TrackConversion(v tracker.Visit, kind models.ConversionType, value *float64, data models.ConversionData) error
}

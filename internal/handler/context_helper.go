package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-focus-api/internal/middleware"
	"github.com/noah-isme/sma-focus-api/internal/models"
	appErrors "github.com/noah-isme/sma-focus-api/pkg/errors"
	"github.com/noah-isme/sma-focus-api/pkg/export"
	"github.com/noah-isme/sma-focus-api/pkg/response"
)

const dateLayout = "2006-01-02"

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.CurrentUser(c)
}

// parseTimeQuery reads an RFC3339 timestamp or a YYYY-MM-DD date. Dates used as upper
// bounds resolve to the last instant of that day.
func parseTimeQuery(c *gin.Context, name string, upper bool) (*time.Time, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, appErrors.Validation(name, "must be RFC3339 or YYYY-MM-DD")
	}
	if upper {
		t = t.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}
	return &t, nil
}

// parseRange reads a [from, to] pair and rejects inverted ranges.
func parseRange(c *gin.Context, fromName, toName string) (*time.Time, *time.Time, error) {
	from, err := parseTimeQuery(c, fromName, false)
	if err != nil {
		return nil, nil, err
	}
	to, err := parseTimeQuery(c, toName, true)
	if err != nil {
		return nil, nil, err
	}
	if from != nil && to != nil && to.Before(*from) {
		return nil, nil, appErrors.Validation(toName, fmt.Sprintf("must not be before %s", fromName))
	}
	return from, to, nil
}

func parseWindow(c *gin.Context) (models.TimeRange, error) {
	from, to, err := parseRange(c, "from", "to")
	if err != nil {
		return models.TimeRange{}, err
	}
	return models.TimeRange{From: from, To: to}, nil
}

func parseLimit(c *gin.Context) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 || limit > 500 {
		return 0, appErrors.Validation("limit", "must be an integer between 1 and 500")
	}
	return limit, nil
}

func parseFormat(c *gin.Context) (export.Format, error) {
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatCSV)))
	if err != nil {
		return "", appErrors.Validation("format", "must be one of csv, pdf, xlsx")
	}
	return format, nil
}

// respond writes data with the request's response meta.
func respond(c *gin.Context, data interface{}) {
	response.JSON(c, http.StatusOK, data, middleware.ExtractMeta(c))
}

func respondCached(c *gin.Context, data interface{}, cacheHit bool) {
	middleware.SetCacheHit(c, cacheHit)
	respond(c, data)
}

func download(c *gin.Context, name string, format export.Format, payload []byte) {
	filename := fmt.Sprintf("%s-%s.%s", name, time.Now().UTC().Format("20060102"), format)
	response.Attachment(c, filename, format.ContentType(), payload)
}

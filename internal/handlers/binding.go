package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sjperalta/obrafin-api/internal/models"
	"github.com/sjperalta/obrafin-api/internal/repository"
	"github.com/sjperalta/obrafin-api/internal/storage"
)

// BindNestedOrFlat attempts to bind the request body to obj.
// It first checks if the body contains a nested object with the given key (e.g. {"budget": {...}}).
// If so, it binds that nested object to obj.
// If not, or if the key is missing, it attempts to bind the entire body to obj (e.g. {...}).
func BindNestedOrFlat(c *gin.Context, key string, obj interface{}) error {
	var bodyBytes []byte
	if c.Request.Body != nil {
		bodyBytes, _ = io.ReadAll(c.Request.Body)
	}
	// Restore body for future binding or subsequent reads
	c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))

	var nestedMap map[string]json.RawMessage
	if err := json.Unmarshal(bodyBytes, &nestedMap); err == nil {
		if val, ok := nestedMap[key]; ok {
			return json.Unmarshal(val, obj)
		}
	}

	return json.Unmarshal(bodyBytes, obj)
}

// pathID parses a numeric path parameter. It writes a 400 and returns false
// when the parameter is not a positive integer.
func pathID(c *gin.Context, param string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		badRequest(c, fmt.Sprintf("invalid %s", param))
		return 0, false
	}
	return uint(id), true
}

// listQuery reads paging, sort ("field-direction") and the named filters.
func listQuery(c *gin.Context, filters ...string) *repository.ListQuery {
	query := repository.NewListQuery()
	query.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	query.PerPage, _ = strconv.Atoi(c.DefaultQuery("per_page", "20"))
	if query.Page < 1 {
		query.Page = 1
	}
	if query.PerPage < 1 || query.PerPage > 100 {
		query.PerPage = 20
	}

	for _, f := range filters {
		if v := c.Query(f); v != "" {
			query.Filters[f] = v
		}
	}

	if sort := c.Query("sort"); sort != "" {
		parts := strings.Split(sort, "-")
		query.SortBy = parts[0]
		if len(parts) > 1 {
			query.SortDir = parts[1]
		}
	}
	return query
}

func pagination(query *repository.ListQuery, total int64) gin.H {
	return gin.H{
		"page":        query.Page,
		"per_page":    query.PerPage,
		"total":       total,
		"total_pages": (total + int64(query.PerPage) - 1) / int64(query.PerPage),
	}
}

// reportFilter reads project_id, from and to (YYYY-MM-DD).
func reportFilter(c *gin.Context) (models.ReportFilter, error) {
	var filter models.ReportFilter
	if v := c.Query("project_id"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return filter, fmt.Errorf("invalid project_id")
		}
		project := uint(id)
		filter.ProjectID = &project
	}
	for name, dst := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		v := c.Query(name)
		if v == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			return filter, fmt.Errorf("invalid %s date, expected YYYY-MM-DD", name)
		}
		*dst = &t
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, fmt.Errorf("to must not be before from")
	}
	return filter, nil
}

// readUpload returns the bytes and the declared content type of the "file"
// form field.
func readUpload(c *gin.Context) ([]byte, string, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxFileSize()+1<<20)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return nil, "", false
	}
	if fileHeader.Size > storage.MaxFileSize() {
		badRequest(c, "file is too large")
		return nil, "", false
	}

	f, err := fileHeader.Open()
	if err != nil {
		badRequest(c, "file could not be read")
		return nil, "", false
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		badRequest(c, "file could not be read")
		return nil, "", false
	}
	return data, fileHeader.Header.Get("Content-Type"), true
}

package handlers

import (
	"errors"
	"net/http"

	"sensor_dashboard/internal/export"
	"sensor_dashboard/internal/models"
	"sensor_dashboard/internal/repository"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK = "ok"

	errNoData        = "no data"
	errUnknownSeries = "unknown series"
	errLoadReading   = "failed to load reading"
	errLoadHistory   = "failed to load history"
	errLoadStats     = "failed to load stats"
	errLoadChart     = "failed to load chart"
	errLoadForecast  = "failed to load forecast"
	errExport        = "failed to export series"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// noData answers 200 with a structured indicator; an empty store is not an error.
func noData(c *gin.Context, extra gin.H) {
	resp := gin.H{"error": errNoData}
	for k, v := range extra {
		resp[k] = v
	}
	c.JSON(http.StatusOK, resp)
}

// seriesParam resolves :series against the configured series. It writes a 404
// and returns false when the name is unknown.
func (h *Handler) seriesParam(c *gin.Context) (models.Series, bool) {
	s := models.Series(c.Param("series"))
	for _, known := range h.services.Query.Series() {
		if known == s {
			return s, true
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": errUnknownSeries, "series": string(s)})
	return "", false
}

func periodParam(c *gin.Context) models.PeriodSelector {
	return models.ParsePeriod(c.Query("period"))
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": statusOK,
	})
}

// @Summary      Latest reading
// @Tags         readings
// @Produce      json
// @Param        series  path  string  true  "Series name"  Enums(temperature,humidity)
// @Success      200  {object}  models.CurrentReading
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/current/{series} [get]
func (h *Handler) getCurrent(c *gin.Context) {
	s, ok := h.seriesParam(c)
	if !ok {
		return
	}
	r, err := h.services.Query.Current(c.Request.Context(), s)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadReading, "current_load_failed", err, "series", s)
		return
	}
	if r == nil {
		noData(c, gin.H{"series": s})
		return
	}
	c.JSON(http.StatusOK, r)
}

// @Summary      Series history
// @Description  Points of the period in the display timezone, oldest first. The last point may be synthetic (extended=true).
// @Tags         readings
// @Produce      json
// @Param        series  path   string  true   "Series name"
// @Param        period  query  string  false  "Period"  Enums(24h,week,month)
// @Success      200  {object}  models.TimeSeriesResult
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/history/{series} [get]
func (h *Handler) getHistory(c *gin.Context) {
	s, ok := h.seriesParam(c)
	if !ok {
		return
	}
	p := periodParam(c)
	res, err := h.services.Query.History(c.Request.Context(), s, p)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadHistory, "history_load_failed", err, "series", s, "period", p.String())
		return
	}
	if res.Empty() {
		noData(c, gin.H{"series": s, "period": p.String(), "window": res.Window, "points": []models.SeriesPoint{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"series":   res.Series,
		"period":   p.String(),
		"window":   res.Window,
		"points":   res.Points,
		"extended": res.Extended,
	})
}

// @Summary      Summary statistics
// @Tags         readings
// @Produce      json
// @Param        series  path   string  true   "Series name"
// @Param        period  query  string  false  "Period"  Enums(24h,week,month)
// @Success      200  {object}  models.Stats
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/stats/{series} [get]
func (h *Handler) getStats(c *gin.Context) {
	s, ok := h.seriesParam(c)
	if !ok {
		return
	}
	p := periodParam(c)
	st, err := h.services.Query.Stats(c.Request.Context(), s, p)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadStats, "stats_load_failed", err, "series", s, "period", p.String())
		return
	}
	if st == nil {
		noData(c, gin.H{"series": s, "period": p.String()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"series": s,
		"period": p.String(),
		"mean":   st.Mean,
		"min":    st.Min,
		"max":    st.Max,
		"count":  st.Count,
	})
}

// @Summary      Chart data
// @Tags         readings
// @Produce      json
// @Param        series  path   string  true   "Series name or 'combined'"
// @Param        period  query  string  false  "Period"  Enums(24h,week,month)
// @Success      200  {object}  models.ChartData
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/chart/{series} [get]
func (h *Handler) getChart(c *gin.Context) {
	name := c.Param("series")
	p := periodParam(c)
	data, err := h.services.Query.ChartSeries(c.Request.Context(), name, p)
	switch {
	case errors.Is(err, repository.ErrUnknownSeries):
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownSeries, "series": name})
		return
	case err != nil:
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadChart, "chart_load_failed", err, "series", name, "period", p.String())
		return
	}
	c.JSON(http.StatusOK, data)
}

// @Summary      Export series
// @Description  XLSX workbook with a summary sheet and the stored points of the period.
// @Tags         readings
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        series  path   string  true   "Series name"
// @Param        period  query  string  false  "Period"  Enums(24h,week,month)
// @Success      200
// @Failure      404  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/export/{series} [get]
func (h *Handler) exportSeries(c *gin.Context) {
	s, ok := h.seriesParam(c)
	if !ok {
		return
	}
	p := periodParam(c)
	res, err := h.services.Query.History(c.Request.Context(), s, p)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errExport, "export_load_failed", err, "series", s)
		return
	}
	b, err := export.BuildSeriesXLSX(res, h.services.Query.Location())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errExport, "export_render_failed", err, "series", s)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.FileName(s, p)+`"`)
	c.Data(http.StatusOK, export.ContentTypeXLSX, b)
}

// @Summary      Cached forecast
// @Tags         readings
// @Produce      json
// @Success      200  {object}  models.Forecast
// @Failure      500  {object}  map[string]string
// @Router       /api/v1/forecast [get]
func (h *Handler) getForecast(c *gin.Context) {
	f, err := h.services.Query.Forecast(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errLoadForecast, "forecast_load_failed", err)
		return
	}
	if f == nil {
		noData(c, nil)
		return
	}
	c.JSON(http.StatusOK, f)
}

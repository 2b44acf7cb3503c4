package controllers

import (
	"net/http"
	"strconv"
	"time"

	"option-scanner/database"
	"option-scanner/services"

	"github.com/gin-gonic/gin"
)

// ScanController handles scan triggering and result retrieval
type ScanController struct {
	scanService *services.ScanService
	storage     *database.LocalStorage
}

// NewScanController creates a new scan controller
func NewScanController(scanService *services.ScanService, storage *database.LocalStorage) *ScanController {
	return &ScanController{
		scanService: scanService,
		storage:     storage,
	}
}

// ScanRequestBody is the JSON body for triggering a scan
type ScanRequestBody struct {
	Symbols   []string `json:"symbols" binding:"required,min=1"`
	Date      string   `json:"date"`      // YYYY-MM-DD, defaults to today
	Threshold *float64 `json:"threshold"` // optional override
}

// HandleScan triggers a scan over the requested symbols
// POST /api/v1/scan
func (sc *ScanController) HandleScan(c *gin.Context) {
	var body ScanRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	scanDate := time.Now().UTC().Truncate(24 * time.Hour)
	if body.Date != "" {
		parsed, err := time.Parse("2006-01-02", body.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid date, expected YYYY-MM-DD",
				"details": err.Error(),
			})
			return
		}
		scanDate = parsed
	}

	summary, err := sc.scanService.Scan(c.Request.Context(), services.ScanRequest{
		Symbols:   body.Symbols,
		Date:      scanDate,
		Threshold: body.Threshold,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Scan failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Scan completed",
		"summary": summary,
	})
}

// HandleGetResults retrieves screening results for a symbol and scan date
// GET /api/v1/results?symbol=AAPL&date=2023-10-18
func (sc *ScanController) HandleGetResults(c *gin.Context) {
	symbol := c.Query("symbol")
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "symbol query parameter required",
		})
		return
	}

	scanDate := time.Now().UTC()
	if date := c.Query("date"); date != "" {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid date, expected YYYY-MM-DD",
				"details": err.Error(),
			})
			return
		}
		scanDate = parsed
	}

	results, err := sc.storage.GetResults(symbol, scanDate)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get results",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(results),
		"results": results,
	})
}

// HandleGetUndervalued lists undervalued contracts across scans
// GET /api/v1/results/undervalued?min_ratio=0.15&limit=50
func (sc *ScanController) HandleGetUndervalued(c *gin.Context) {
	minRatio := 0.0
	if raw := c.Query("min_ratio"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid min_ratio",
				"details": err.Error(),
			})
			return
		}
		minRatio = parsed
	}

	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid limit",
			})
			return
		}
		limit = parsed
	}

	results, err := sc.storage.GetUndervalued(minRatio, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get undervalued results",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(results),
		"results": results,
	})
}

// HandleListScans lists recent scan runs
// GET /api/v1/scans
func (sc *ScanController) HandleListScans(c *gin.Context) {
	runs, err := sc.storage.GetRecentScanRuns(20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to get scan runs",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count": len(runs),
		"scans": runs,
	})
}

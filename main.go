package main

import (
	"os"
	"strconv"

	"option-scanner/controllers"
	"option-scanner/database"
	"option-scanner/interfaces"
	"option-scanner/services"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment")
	}

	dbPath := getEnv("SCANNER_DB_PATH", "data/scanner.db")
	storage, err := database.NewLocalStorage(dbPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open storage")
	}
	defer storage.Close()

	config := interfaces.ScanConfig{
		RiskFreeRate:       getEnvFloat("SCANNER_RISK_FREE_RATE", 0.05),
		DividendYield:      getEnvFloat("SCANNER_DIVIDEND_YIELD", 0),
		Threshold:          getEnvFloat("SCANNER_THRESHOLD", 0.10),
		LookbackDays:       getEnvInt("SCANNER_LOOKBACK_DAYS", 252),
		DefaultVolatility:  getEnvFloat("SCANNER_DEFAULT_VOLATILITY", 0),
		TradingDaysPerYear: getEnvInt("SCANNER_TRADING_DAYS", 252),
	}

	chainSource := services.NewDoltHubChainSource()
	marketData := services.NewAlpacaMarketDataService(
		os.Getenv("APCA_API_KEY_ID"),
		os.Getenv("APCA_API_SECRET_KEY"),
	)

	scanService := services.NewScanService(chainSource, marketData, storage, config)
	scanController := controllers.NewScanController(scanService, storage)

	router := gin.Default()
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api/v1")
	{
		api.POST("/scan", scanController.HandleScan)
		api.GET("/results", scanController.HandleGetResults)
		api.GET("/results/undervalued", scanController.HandleGetUndervalued)
		api.GET("/scans", scanController.HandleListScans)
	}

	port := getEnv("PORT", "8080")
	logger.WithFields(logrus.Fields{
		"port":      port,
		"threshold": config.Threshold,
		"rate":      config.RiskFreeRate,
	}).Info("Starting option scanner")

	if err := router.Run(":" + port); err != nil {
		logger.WithError(err).Fatal("Server exited")
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

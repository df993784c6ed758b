package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/codyseavey/moki-tracker/internal/api/handlers"
)

// Services bundles what the router needs. Snapshots may be nil when no
// wallet is configured.
type Services struct {
	Market    handlers.MarketService
	Portfolio handlers.PortfolioService
	Snapshots handlers.SnapshotService
	Floor     handlers.FloorWorker
}

// Options carries HTTP-level settings
type Options struct {
	CORSOrigins      []string
	FrontendDistPath string
}

func SetupRouter(svc Services, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestID(), Metrics(), RequestLogger())

	serveFrontend := opts.FrontendDistPath != "" && dirExists(opts.FrontendDistPath)

	config := cors.DefaultConfig()
	if len(opts.CORSOrigins) > 0 {
		config.AllowOrigins = opts.CORSOrigins
	} else {
		config.AllowOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	config.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", requestIDHeader}
	config.ExposeHeaders = []string{requestIDHeader}
	config.AllowCredentials = false
	router.Use(cors.New(config))

	marketHandler := handlers.NewMarketHandler(svc.Market)
	portfolioHandler := handlers.NewPortfolioHandler(svc.Portfolio)
	snapshotHandler := handlers.NewSnapshotHandler(svc.Snapshots)
	workerHandler := handlers.NewWorkerHandler(svc.Floor)

	api := router.Group("/api")
	{
		api.GET("/dashboard", marketHandler.GetDashboard)

		market := api.Group("/market")
		{
			market.GET("/trait-floors", marketHandler.GetTraitFloors)
			market.GET("/ron-price", marketHandler.GetRonPrice)
		}

		collections := api.Group("/collections/:collection")
		{
			collections.GET("/trades", marketHandler.GetTrades)
			collections.GET("/offers/:tokenId", marketHandler.GetBestOffer)
		}

		portfolio := api.Group("/portfolio")
		{
			portfolio.GET("/snapshots", snapshotHandler.GetValueHistory)
			portfolio.POST("/snapshots", snapshotHandler.TakeSnapshot)
			portfolio.GET("/:wallet/nfts", portfolioHandler.GetNFTs)
			portfolio.GET("/:wallet/summary", portfolioHandler.GetSummary)
			portfolio.GET("/:wallet/history", portfolioHandler.GetHistory)
			portfolio.GET("/:wallet/chart.png", portfolioHandler.GetChart)
		}

		workers := api.Group("/workers")
		{
			workers.GET("/floor", workerHandler.GetFloorStatus)
			workers.POST("/floor/refresh", workerHandler.RefreshFloors)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if serveFrontend {
		indexPath := filepath.Join(opts.FrontendDistPath, "index.html")

		router.Static("/assets", filepath.Join(opts.FrontendDistPath, "assets"))
		router.StaticFile("/favicon.ico", filepath.Join(opts.FrontendDistPath, "favicon.ico"))

		router.GET("/", func(c *gin.Context) {
			c.File(indexPath)
		})

		// SPA fallback - serve index.html for all non-API routes
		router.NoRoute(func(c *gin.Context) {
			if strings.HasPrefix(c.Request.URL.Path, "/api") {
				c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
				return
			}
			c.File(indexPath)
		})
	} else {
		router.NoRoute(func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		})
	}

	return router
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.IsDir()
}

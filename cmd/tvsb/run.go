package main

import (
	"AkhilTG/tvsb/config"
	"AkhilTG/tvsb/internal/routes"
	"AkhilTG/tvsb/internal/stream"
	"AkhilTG/tvsb/internal/utils"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var runCmd = &cobra.Command{
	Use:                "run",
	Short:              "Run the gateway with the given configuration.",
	DisableSuggestions: false,
	Run:                runApp,
}

func runApp(cmd *cobra.Command, args []string) {
	// Initialize logger with default settings first
	utils.InitLogger(false, "info")
	log := utils.Logger
	mainLogger := log.Named("Main")
	mainLogger.Info("Starting server")
	config.Load(log, cmd)

	// Re-initialize logger with actual config values
	utils.InitLogger(config.ValueOf.Dev, config.ValueOf.LogLevel)
	log = utils.Logger
	mainLogger = log.Named("Main")

	svc := stream.NewService(log)
	router := getRouter(log, svc)

	// The listener goes live first; until the bot finishes connecting the
	// stream route answers 503.
	go svc.Start()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		mainLogger.Info("Shutting down")
		svc.Stop()
		os.Exit(0)
	}()

	mainLogger.Info("Telegram Stream Gateway", zap.String("version", versionString))
	mainLogger.Sugar().Infof("Server is running at %s:%d", config.ValueOf.Host, config.ValueOf.Port)
	mainLogger.Sugar().Infof("Stream links are served under %s/stream/", config.ValueOf.URL)

	err := router.Run(fmt.Sprintf("%s:%d", config.ValueOf.Host, config.ValueOf.Port))
	if err != nil {
		mainLogger.Sugar().Fatalln(err)
	}
}

func getRouter(log *zap.Logger, svc *stream.Service) *gin.Engine {
	if config.ValueOf.Dev {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Disable GIN default logger if log level is error or warn
	var router *gin.Engine
	if config.ValueOf.LogLevel == "error" || config.ValueOf.LogLevel == "warn" {
		router = gin.New()
		router.Use(gin.Recovery())
		router.Use(gin.ErrorLogger())
	} else {
		router = gin.Default()
		router.Use(gin.ErrorLogger())
	}

	routes.Load(log, router, svc, versionString)
	return router
}

package handler

import (
	"context"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/arnavshah/ionm-board/pkg/app"
	"github.com/arnavshah/ionm-board/pkg/config"
	"github.com/arnavshah/ionm-board/pkg/handlers"
	"github.com/arnavshah/ionm-board/pkg/logger"
)

var r *gin.Engine

func init() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}
	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("could not build logger: %v", err)
	}

	a, err := app.New(context.Background(), cfg, zl)
	if err != nil {
		log.Fatalf("could not start application: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)
	r = gin.New()
	r.Use(handlers.AccessLogger(), gin.Recovery())
	a.Handler().Routes(r)
}

// Handler is the entry point for Vercel Go Runtime
func Handler(w http.ResponseWriter, req *http.Request) {
	r.ServeHTTP(w, req)
}

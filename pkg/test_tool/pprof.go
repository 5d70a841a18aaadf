package testtool

import (
	"net/http"
	_ "net/http/pprof" // 匯入後會自動註冊 pprof endpoint

	"media_pipeline/pkg/config"
	"media_pipeline/pkg/logger"

	"go.uber.org/zap"
)

// StartPprof serve /debug/pprof on addr, never in production
func StartPprof(addr string) {
	if addr == "" || config.IsProduction() {
		return
	}

	go func() {
		logger.Log.Info("Starting pprof server", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Log.Warn("pprof server stopped", zap.Error(err))
		}
	}()
}

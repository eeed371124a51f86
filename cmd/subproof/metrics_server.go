package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	logInterface "github.com/weisyn/subproof/pkg/interfaces/infrastructure/log"
)

// startMetricsServer 在 addr 上暴露 /metrics；addr 为空时不启动
func startMetricsServer(addr string, logger logInterface.Logger) (shutdown func()) {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("指标服务异常退出: %v", err)
		}
	}()
	logger.Infof("指标服务已启动: http://%s/metrics", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

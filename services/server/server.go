// Copyright (C) 2025 TalentFlow (dev@talentflowhq.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package server exposes the bot's operational HTTP surface: health,
// Prometheus metrics, and read-only views of the safety state.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/talentflowhq/talentflow/services/safety"
)

// Deps are the components the ops endpoints read from.
type Deps struct {
	Guard  *safety.PolicyGuard
	Ledger *safety.ConfirmationLedger
}

// Server is the operational HTTP server.
type Server struct {
	engine *gin.Engine
	addr   string
}

// New builds the router. Traces every request via otelgin except the
// metrics scrape.
func New(addr string, deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName, otelgin.WithGinFilter(func(c *gin.Context) bool {
		return c.FullPath() != "/metrics"
	})))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.GET("/policy", func(c *gin.Context) {
		cfg := deps.Guard.Config()
		c.JSON(http.StatusOK, gin.H{
			"mode":        string(cfg.Mode),
			"batch_limit": cfg.BatchLimit,
		})
	})
	v1.GET("/confirmations", func(c *gin.Context) {
		channel := c.Query("channel")
		if channel == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "channel query parameter is required"})
			return
		}
		entries := deps.Ledger.ListForChannel(channel)
		out := make([]gin.H, 0, len(entries))
		for _, e := range entries {
			out = append(out, gin.H{
				"id":           e.ID,
				"kind":         string(e.Kind),
				"description":  e.Description,
				"entity_ids":   e.EntityIDs,
				"requested_by": e.RequestedBy,
				"expires_at":   e.ExpiresAt,
			})
		}
		c.JSON(http.StatusOK, gin.H{"confirmations": out})
	})

	return &Server{engine: router, addr: addr}
}

// Engine returns the underlying router. Used by tests.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run serves until the context is cancelled, then drains with a short
// shutdown grace period.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Ops server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

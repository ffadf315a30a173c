// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/jontk/ticketd/internal/api"
	"github.com/jontk/ticketd/internal/engine"
	"github.com/jontk/ticketd/pkg/config"
	"github.com/jontk/ticketd/pkg/logging"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP façade",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		log := logging.NewLogger(&logging.Config{
			Level: slogLevel(cfg.LogLevel), Format: logging.Format(cfg.LogFormat),
			Output: os.Stdout, Version: Version,
		})

		eng, err := engine.Open(cfg, log)
		if err != nil {
			return err
		}
		defer eng.Close()

		server := api.NewServer(eng.Users, eng.Trains, eng.Orders, log)
		router := mux.NewRouter()
		router.PathPrefix("/ws").HandlerFunc(eng.Notify.ServeWS)
		router.PathPrefix("/events").HandlerFunc(eng.Notify.ServeSSE)
		router.PathPrefix("/").Handler(server.Router())

		log.Info("ticketd listening", "addr", cfg.HTTPAddr)
		return http.ListenAndServe(cfg.HTTPAddr, router)
	},
}

func loadConfig() *config.Config {
	cfg := config.NewDefault()
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if err := cfg.Validate(); err != nil {
		fmt.Println("warning: invalid configuration:", err)
	}
	return cfg
}

func slogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

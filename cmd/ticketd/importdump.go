// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jontk/ticketd/internal/dateutil"
	"github.com/jontk/ticketd/internal/engine"
	"github.com/spf13/cobra"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk-load trains from a seed file into the data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		if importFile == "" {
			return fmt.Errorf("import: --file is required")
		}
		raw, err := os.ReadFile(importFile)
		if err != nil {
			return fmt.Errorf("import: read seed file: %w", err)
		}

		var seed struct {
			Trains []struct {
				TrainID       string   `json:"trainId"`
				SeatNum       int32    `json:"seatNum"`
				Stations      []string `json:"stations"`
				Prices        []int32  `json:"prices"`
				TravelTimes   []int32  `json:"travelTimes"`
				StopoverTimes []int32  `json:"stopoverTimes"`
				StartTime     int32    `json:"startTime"`
				SaleStart     string   `json:"saleStart"`
				SaleEnd       string   `json:"saleEnd"`
				Type          string   `json:"type"`
				Release       bool     `json:"release"`
			} `json:"trains"`
		}
		if err := json.Unmarshal(raw, &seed); err != nil {
			return fmt.Errorf("import: parse seed file: %w", err)
		}

		cfg := loadConfig()
		eng, err := engine.Open(cfg, nil)
		if err != nil {
			return fmt.Errorf("import: open data directory: %w", err)
		}
		defer eng.Close()

		for _, t := range seed.Trains {
			saleStart, err := dateutil.Parse(t.SaleStart)
			if err != nil {
				return fmt.Errorf("import: train %s: invalid saleStart: %w", t.TrainID, err)
			}
			saleEnd, err := dateutil.Parse(t.SaleEnd)
			if err != nil {
				return fmt.Errorf("import: train %s: invalid saleEnd: %w", t.TrainID, err)
			}
			var trainType byte
			if len(t.Type) > 0 {
				trainType = t.Type[0]
			}
			if err := eng.Trains.AddTrain(t.TrainID, len(t.Stations), t.SeatNum, t.Stations,
				t.Prices, t.TravelTimes, t.StopoverTimes, t.StartTime, saleStart, saleEnd, trainType); err != nil {
				return fmt.Errorf("import: train %s: %w", t.TrainID, err)
			}
			if t.Release {
				if err := eng.Trains.ReleaseTrain(t.TrainID); err != nil {
					return fmt.Errorf("import: release train %s: %w", t.TrainID, err)
				}
			}
			fmt.Printf("imported train %s\n", t.TrainID)
		}
		return nil
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Report the size of each backing store under the data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		entries, err := os.ReadDir(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("dump: read data directory: %w", err)
		}
		var total int64
		for _, e := range entries {
			info, err := e.Info()
			if err != nil {
				continue
			}
			if info.IsDir() {
				continue
			}
			total += info.Size()
			fmt.Printf("%-40s %10d bytes\n", e.Name(), info.Size())
		}
		fmt.Printf("%-40s %10d bytes\n", "TOTAL", total)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to a JSON seed file of trains to import")
}

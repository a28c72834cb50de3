/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Command dronefleet discovers a fleet of drones on the local network and
// flies an optional mission against it.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/carverauto/dronefleet/pkg/config"
	"github.com/carverauto/dronefleet/pkg/fleet"
	"github.com/carverauto/dronefleet/pkg/lifecycle"
	"github.com/carverauto/dronefleet/pkg/logger"
	"github.com/carverauto/dronefleet/pkg/models"
	"github.com/carverauto/dronefleet/pkg/scheduler"
)

var (
	errFailedToLoadConfig = errors.New("failed to load config")
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}

		log.Fatalf("Fatal error: %v", err)
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("dronefleet", pflag.ContinueOnError)

	configPath := flagSet.StringP("config", "c", "/etc/dronefleet/fleet.yaml", "Path to fleet config file (JSON or YAML)")
	missionPath := flagSet.StringP("mission", "m", "", "Mission YAML to fly after discovery; without it the fleet is held until interrupted")
	debug := flagSet.Bool("debug", false, "Enable debug logging")

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()

	var cfg models.FleetConfig

	if err := config.NewConfig(nil).LoadAndValidate(ctx, *configPath, &cfg); err != nil {
		return fmt.Errorf("%w: %w", errFailedToLoadConfig, err)
	}

	var mission *Mission

	if *missionPath != "" {
		m, err := LoadMission(*missionPath)
		if err != nil {
			return err
		}

		mission = m
	}

	logConfig := cfg.Logging
	if logConfig == nil {
		logConfig = logger.DefaultConfig()
	}

	logConfig.Debug = logConfig.Debug || *debug

	mainLogger, err := lifecycle.CreateComponentLogger("dronefleet", logConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	ctrl, err := fleet.New(&cfg, mainLogger,
		fleet.WithSnapshotHook(func(devices []models.DeviceInfo) {
			fmt.Println(renderSnapshot(devices))
		}),
		fleet.WithTaskHook(func(c scheduler.Completion) {
			fmt.Println(renderCompletion(c))
		}),
	)
	if err != nil {
		return err
	}

	defer func() {
		if err := ctrl.Close(); err != nil {
			mainLogger.Warn().Err(err).Msg("Error closing fleet controller")
		}
	}()

	ctx, cancel := lifecycle.HandleSignals(ctx, mainLogger, func(os.Signal) {
		ctrl.Emergency()
	})
	defer cancel()

	if err := ctrl.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}

		return err
	}

	if mission == nil {
		mainLogger.Info().Msg("No mission given, holding until interrupted")
		<-ctx.Done()

		return nil
	}

	ids, err := mission.Run(ctx, ctrl)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			mainLogger.Warn().Ints64("tasks", ids).Msg("Mission interrupted")

			return nil
		}

		return err
	}

	// Non-blocking steps may still be in flight.
	for _, id := range ids {
		if err := ctrl.Scheduler().Wait(ctx, id); err != nil {
			mainLogger.Warn().Err(err).Int64("task_id", id).Msg("Mission interrupted")

			return nil
		}
	}

	mainLogger.Info().Ints64("tasks", ids).Msg("Mission complete")

	return nil
}

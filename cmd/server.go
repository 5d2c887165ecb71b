/*
Copyright 2024 Phantom Vision Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/posthog/posthog-go"
	"github.com/spf13/cobra"

	phantomvision "github.com/bencullen0123-byte/Phantom-Vision-sub000"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/config"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/search"
	trace "github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/traces"
)

// sendHeartbeat initializes and maintains a periodic heartbeat to PostHog.
func sendHeartbeat(client posthog.Client, heartbeatID string) {
	ticker := time.NewTicker(5 * time.Minute)
	go func() {
		for range ticker.C {
			if err := client.Enqueue(posthog.Capture{
				DistinctId: heartbeatID,
				Event:      "server_heartbeat",
				Properties: map[string]interface{}{
					"timestamp": time.Now().UTC(),
				},
			}); err != nil {
				log.Printf("Failed to send heartbeat: %v", err)
			}
		}
	}()
}

func initializeTracing(ctx context.Context) (func(context.Context) error, error) {
	shutdown, err := trace.SetupOTelSDK(ctx, "PHANTOM")
	if err != nil {
		return nil, fmt.Errorf("error setting up OTel SDK: %v", err)
	}
	return shutdown, nil
}

func initializeTypeSense(ctx context.Context, cfg *config.Configuration) (*search.TypesenseClient, error) {
	if cfg.TypeSense.Dns == "" {
		return nil, nil
	}
	newSearch := search.NewTypesenseClient(cfg.TypeSenseKey, []string{cfg.TypeSense.Dns})
	if err := newSearch.EnsureCollectionsExist(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure collections exist: %v", err)
	}
	return newSearch, nil
}

func initializePostHog() (posthog.Client, string) {
	client, _ := posthog.NewWithConfig("phc_XbsHF5iBSnPiTA96gl7xygazrwBa0r2Ut4vEHoBHNiG",
		posthog.Config{Endpoint: "https://us.i.posthog.com"})
	heartbeatID := uuid.New().String()
	sendHeartbeat(client, heartbeatID)
	return client, heartbeatID
}

func initializeObservability(ctx context.Context) (posthog.Client, func(context.Context) error, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.EnableTelemetry {
		return nil, func(context.Context) error { return nil }, nil
	}

	shutdown, err := initializeTracing(ctx)
	if err != nil {
		return nil, nil, err
	}

	phClient, _ := initializePostHog()
	return phClient, shutdown, nil
}

/*
serverCommands returns the Cobra command that runs the engine: the sentinel
scheduler driving the scan fan-out and dispatch triggers, plus the scan-job
poller. The process runs until it receives SIGINT or SIGTERM.
*/
func serverCommands(p *phantomInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "start the phantom vision engine",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			phClient, shutdown, err := initializeObservability(ctx)
			if err != nil {
				log.Fatal(err)
			}
			if shutdown != nil {
				defer func() {
					if err := shutdown(ctx); err != nil {
						log.Printf("Error during shutdown: %v", err)
					}
				}()
			}
			if phClient != nil {
				defer phClient.Close()
			}

			if _, err := initializeTypeSense(ctx, p.cnf); err != nil {
				log.Printf("TypeSense initialization error: %v", err)
			}

			sentinel := phantomvision.NewSentinel(p.phantom)
			if err := sentinel.Start(ctx); err != nil {
				log.Fatal(err)
			}
			defer sentinel.Stop()

			poller, err := phantomvision.NewJobPoller(p.phantom)
			if err != nil {
				log.Fatal(err)
			}
			poller.Start(ctx)
			defer poller.Stop()

			log.Println("phantom vision engine started")

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			<-sigChan
			log.Println("shutting down")
		},
	}

	return cmd
}

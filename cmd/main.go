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
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	phantomvision "github.com/bencullen0123-byte/Phantom-Vision-sub000"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/config"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/database"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/notification"
)

// PhantomCLI represents the CLI application, encapsulating the root Cobra command.
type PhantomCLI struct {
	cmd *cobra.Command
}

// phantomInstance holds the engine instance and its configuration, shared by
// every subcommand.
type phantomInstance struct {
	phantom *phantomvision.Phantom
	cnf     *config.Configuration
}

// recoverPanic handles any panics during program execution and logs the error.
func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun sets up the configuration and initializes the engine before running
// any command.
func preRun(app *phantomInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("phantom.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newPhantom, err := setupPhantom(cnf)
		if err != nil {
			if notifyErr := notification.NotifyError(err); notifyErr != nil {
				logrus.Error(notifyErr)
			}
			log.Fatal(err)
		}

		app.phantom = newPhantom
		app.cnf = cnf

		return nil
	}
}

// setupPhantom creates and initializes the engine from the provided
// configuration. A failing vault self-test surfaces here and stops startup.
func setupPhantom(cfg *config.Configuration) (*phantomvision.Phantom, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newPhantom, err := phantomvision.NewPhantom(db)
	if err != nil {
		return nil, fmt.Errorf("error creating phantom instance: %v", err)
	}
	return newPhantom, nil
}

// NewCLI creates the command-line interface for the application.
func NewCLI() *PhantomCLI {
	var configFile string
	p := &phantomInstance{}

	var rootCmd = &cobra.Command{
		Use:   "phantomvision",
		Short: "Failed-payment recovery engine",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./phantom.json", "Configuration file for phantom vision")

	rootCmd.PersistentPreRunE = preRun(p)

	rootCmd.AddCommand(serverCommands(p))
	rootCmd.AddCommand(workerCommands(p))
	rootCmd.AddCommand(migrateCommands(p))
	rootCmd.AddCommand(backupCommands(p))
	rootCmd.AddCommand(configCommands())

	return &PhantomCLI{cmd: rootCmd}
}

// executeCLI runs the root command, handling any errors that occur.
func (w PhantomCLI) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}

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
	"log"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	phantomvision "github.com/bencullen0123-byte/Phantom-Vision-sub000"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/config"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/database"
)

func migrateCommands(b *phantomInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "start or rollback database schema migrations",
	}

	cmd.AddCommand(migrateUpCommands(b))
	cmd.AddCommand(migrateDownCommands(b))

	return cmd
}

func migrateUpCommands(_ *phantomInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use: "up",
		Run: func(cmd *cobra.Command, args []string) {
			migrations := migrate.EmbedFileSystemMigrationSource{
				FileSystem: phantomvision.SQLFiles,
				Root:       "sql",
			}

			cnf, err := config.Fetch()
			if err != nil {
				log.Println(err)
			}
			db, err := database.ConnectDB(cnf.DataSource.Dns)
			if err != nil {
				log.Println(err)
			}
			migrate.SetSchema("phantom")
			n, err := migrate.Exec(db, "postgres", migrations, migrate.Up)
			if err != nil {
				log.Printf("Error migrating up: %v", err)
			}
			logrus.Infof("Applied %d migrations!", n)
		},
	}
	return cmd
}

func migrateDownCommands(_ *phantomInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use: "down",
		Run: func(cmd *cobra.Command, args []string) {
			migrations := migrate.EmbedFileSystemMigrationSource{
				FileSystem: phantomvision.SQLFiles,
				Root:       "sql",
			}

			cnf, err := config.Fetch()
			if err != nil {
				log.Println(err)
			}
			db, err := database.ConnectDB(cnf.DataSource.Dns)
			if err != nil {
				log.Println(err)
			}
			n, err := migrate.Exec(db, "postgres", migrations, migrate.Down)
			if err != nil {
				log.Printf("Error migrating down: %v", err)
			}
			logrus.Infof("Applied %d migrations!", n)
		},
	}
	return cmd
}

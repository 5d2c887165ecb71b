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

package phantomvision

import (
	"embed"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/bencullen0123-byte/Phantom-Vision-sub000/config"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/database"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/cache"
	redis_db "github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/redis-db"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/search"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/internal/vault"
	"github.com/bencullen0123-byte/Phantom-Vision-sub000/platform"
)

// Phantom represents the main struct for the Phantom Vision application.
type Phantom struct {
	queue      *Queue
	search     *search.TypesenseClient
	redis      redis.UniversalClient
	cache      cache.Cache
	datasource database.IDataSource
	vault      *vault.Vault
	mailer     Mailer
	clients    func(credential string) platform.Client
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewPhantom initializes a new instance of Phantom with the provided database
// datasource. It fetches the configuration, runs the vault startup self-test,
// and initializes the Redis client, rate-limit cache, queue, mailer and
// search client. A failing vault self-test aborts startup.
func NewPhantom(db database.IDataSource) (*Phantom, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	v, err := vault.New([]byte(configuration.Vault.EncryptionKey))
	if err != nil {
		return nil, err
	}
	if !v.SelfTest() {
		return nil, fmt.Errorf("vault self-test failed: refusing to start with a broken encryption key")
	}

	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}

	rateCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}

	newQueue := NewQueue(configuration)
	newSearch := search.NewTypesenseClient(configuration.TypeSenseKey, []string{configuration.TypeSense.Dns})

	newPhantom := &Phantom{
		datasource: db,
		queue:      newQueue,
		redis:      redisClient.Client(),
		cache:      rateCache,
		search:     newSearch,
		vault:      v,
		mailer:     NewMailer(&configuration.Mailer),
		clients: func(credential string) platform.Client {
			return platform.NewClient(credential)
		},
	}
	return newPhantom, nil
}

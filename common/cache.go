// Copyright 2025
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"bytes"
	"errors"
	"io"
	"os"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pierrec/lz4/v4"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// ErrCacheMiss is returned when a key is absent or its entry has expired.
var ErrCacheMiss = errors.New("cache miss")

var cache *lru.Cache

type cacheEntry struct {
	payload []byte
	expires time.Time
}

// SetupCache initializes the process-wide response cache. Entries are lz4
// compressed and evicted either by LRU pressure or by TTL on read.
func SetupCache() {
	var err error
	sz := viper.GetInt("cache.local_size")
	if sz == 0 {
		sz = 256
	}
	cache, err = lru.New(sz)
	if err != nil {
		log.Error().Err(err).Msg("could not create LRU cache")
		os.Exit(1)
	}
}

// CacheSet stores bytes under key with the given time-to-live.
func CacheSet(key string, payload []byte, ttl time.Duration) error {
	compressed, err := compress(payload)
	if err != nil {
		return err
	}
	cache.Add(key, cacheEntry{payload: compressed, expires: time.Now().Add(ttl)})
	return nil
}

// CacheGet returns the bytes stored under key, or ErrCacheMiss if the key is
// absent or expired. Expired entries are removed.
func CacheGet(key string) ([]byte, error) {
	v, ok := cache.Get(key)
	if !ok {
		return nil, ErrCacheMiss
	}

	entry := v.(cacheEntry)
	if time.Now().After(entry.expires) {
		cache.Remove(key)
		return nil, ErrCacheMiss
	}

	return decompress(entry.payload)
}

func compress(in []byte) ([]byte, error) {
	r := bytes.NewReader(in)
	w := &bytes.Buffer{}
	zw := lz4.NewWriter(w)
	if _, err := io.Copy(zw, r); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func decompress(in []byte) ([]byte, error) {
	r := bytes.NewReader(in)
	w := &bytes.Buffer{}
	zr := lz4.NewReader(r)
	if _, err := io.Copy(w, zr); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

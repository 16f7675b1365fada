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

package ai

import (
	"context"
	"errors"
	"strings"
	"time"

	oa "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	defaultModel = "llama-3.3-70b-versatile"
	maxAttempts  = 3
	retryDelay   = 2 * time.Second

	// Fallback returned whenever text generation is unavailable. Advisory
	// text never blocks the numeric results it accompanies.
	Fallback = "AI analysis is temporarily unavailable. Numeric results are unaffected; please retry in a few minutes."
)

// Client generates advisory text through any OpenAI-compatible chat endpoint.
type Client struct {
	cli     oa.Client
	model   string
	enabled bool
	delay   time.Duration
}

// NewClient builds a text-generation client from configuration. When no API
// key is configured the client stays disabled and every call returns the
// fallback notice. Extra request options are appended after the configured
// ones so tests can install a mock transport.
func NewClient(opts ...option.RequestOption) *Client {
	apikey := viper.GetString("groq.apikey")

	reqOpts := []option.RequestOption{option.WithAPIKey(apikey)}
	if base := viper.GetString("groq.base_url"); base != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(base))
	}
	reqOpts = append(reqOpts, opts...)

	model := viper.GetString("groq.model")
	if model == "" {
		model = defaultModel
	}

	return &Client{
		cli:     oa.NewClient(reqOpts...),
		model:   model,
		enabled: apikey != "",
		delay:   retryDelay,
	}
}

// Enabled reports whether a generation endpoint is configured.
func (c *Client) Enabled() bool {
	return c.enabled
}

// SetRetryDelay adjusts the wait between throttled attempts; tests shorten it.
func (c *Client) SetRetryDelay(d time.Duration) {
	c.delay = d
}

// Generate produces a completion for the given prompts. Generation is
// best-effort: throttling is retried a few times with doubling delay and any
// terminal failure degrades to the fallback notice instead of an error.
func (c *Client) Generate(ctx context.Context, system, user string) string {
	if !c.enabled {
		return Fallback
	}

	delay := c.delay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		resp, err := c.cli.Chat.Completions.New(ctx, oa.ChatCompletionNewParams{
			Model: c.model,
			Messages: []oa.ChatCompletionMessageParamUnion{
				oa.SystemMessage(system),
				oa.UserMessage(user),
			},
		})
		if err != nil {
			if isRateLimited(err) && attempt < maxAttempts {
				log.Warn().Err(err).Int("Attempt", attempt).Msg("generation throttled; backing off")
				select {
				case <-ctx.Done():
					return Fallback
				case <-time.After(delay):
				}
				delay *= 2
				continue
			}
			log.Warn().Err(err).Msg("text generation failed")
			return Fallback
		}

		if len(resp.Choices) == 0 {
			log.Warn().Msg("generation returned no choices")
			return Fallback
		}

		return strings.TrimSpace(resp.Choices[0].Message.Content)
	}

	return Fallback
}

func isRateLimited(err error) bool {
	var apierr *oa.Error
	if errors.As(err, &apierr) {
		return apierr.StatusCode == 429
	}
	return strings.Contains(strings.ToLower(err.Error()), "rate limit")
}

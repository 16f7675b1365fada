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

package news

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/marketlens/ml-api/data"
)

var newsAPI = "https://newsapi.org"

const newsClass = "newsapi"

// Article is a normalized news item. Sentiment and Credibility carry fixed
// defaults; scoring them is out of scope for retrieval.
type Article struct {
	Title       string  `json:"title"`
	Source      string  `json:"source"`
	Timestamp   string  `json:"timestamp"`
	Content     string  `json:"content"`
	URL         string  `json:"url"`
	Sentiment   float64 `json:"sentiment"`
	Credibility int     `json:"credibility"`
}

type apiArticle struct {
	Title  string `json:"title"`
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	PublishedAt string `json:"publishedAt"`
	Description string `json:"description"`
	Content     string `json:"content"`
	URL         string `json:"url"`
}

type apiResponse struct {
	Status   string       `json:"status"`
	Articles []apiArticle `json:"articles"`
}

// Client retrieves news headlines. Retrieval is best-effort: every failure
// path degrades to canned demo articles so downstream advisory text always
// has something to work with.
type Client struct {
	apikey string
	fetch  *data.FetchClient
}

// NewClient builds a news client sharing the process-wide fetch throttle.
func NewClient(fetch *data.FetchClient) *Client {
	apikey := viper.GetString("newsapi.apikey")
	if apikey == "" {
		log.Warn().Msg("no newsapi key provided; news lookups return demo articles")
	}

	return &Client{
		apikey: apikey,
		fetch:  fetch,
	}
}

// GetNews returns up to limit recent articles matching the query, newest first.
func (c *Client) GetNews(ctx context.Context, query string, limit int) []Article {
	if c.apikey == "" {
		return DemoArticles()
	}

	subLog := log.With().Str("Query", query).Logger()

	reqURL := fmt.Sprintf("%s/v2/everything?q=%s&sortBy=publishedAt&apiKey=%s&language=en",
		newsAPI, url.QueryEscape(query), c.apikey)

	res, err := c.fetch.Get(ctx, newsClass, reqURL)
	if err != nil {
		subLog.Warn().Err(err).Msg("news lookup failed")
		return DemoArticles()
	}

	var parsed apiResponse
	if err := json.Unmarshal(res.Body, &parsed); err != nil {
		subLog.Warn().Err(err).Msg("could not parse news payload")
		return DemoArticles()
	}

	if parsed.Status == "error" || len(parsed.Articles) == 0 {
		return DemoArticles()
	}

	if limit > len(parsed.Articles) {
		limit = len(parsed.Articles)
	}

	articles := make([]Article, 0, limit)
	for _, a := range parsed.Articles[:limit] {
		content := a.Description
		if content == "" {
			content = a.Content
		}
		source := a.Source.Name
		if source == "" {
			source = "Unknown"
		}
		articles = append(articles, Article{
			Title:       a.Title,
			Source:      source,
			Timestamp:   a.PublishedAt,
			Content:     content,
			URL:         a.URL,
			Credibility: 3,
		})
	}

	return articles
}

// DemoArticles is the canned feed used when retrieval is unavailable.
func DemoArticles() []Article {
	now := time.Now()
	return []Article{
		{
			Title:       "Demo Market Rally",
			Source:      "DemoSource",
			Timestamp:   now.Format(time.RFC3339),
			Content:     "Stocks rallied today as investors cheered strong earnings.",
			URL:         "https://example.com",
			Sentiment:   0.5,
			Credibility: 4,
		},
		{
			Title:       "Demo Fed Rate Decision",
			Source:      "DemoSource",
			Timestamp:   now.AddDate(0, 0, -1).Format(time.RFC3339),
			Content:     "The Federal Reserve held rates steady, citing stable inflation.",
			URL:         "https://example.com",
			Sentiment:   0.1,
			Credibility: 3,
		},
		{
			Title:       "Demo Tech Stocks Surge",
			Source:      "DemoSource",
			Timestamp:   now.AddDate(0, 0, -2).Format(time.RFC3339),
			Content:     "Tech stocks led the market higher on new product launches.",
			URL:         "https://example.com",
			Sentiment:   0.7,
			Credibility: 5,
		},
	}
}

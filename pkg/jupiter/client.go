// Package jupiter is a thin read-only client for the Jupiter price API. The
// swap and quote machinery stays on the aggregator's side; the server only
// reads prices to rank option tokens.
package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type Client struct {
	priceURL string
	client   http.Client
	logger   *logrus.Logger
}

func NewClient(priceURL string) *Client {
	return &Client{
		priceURL: priceURL,
		client: http.Client{
			Timeout: 5 * time.Second,
		},
		logger: logrus.WithField("service", "jupiter-client").Logger,
	}
}

func (c *Client) bodyCloser(body io.ReadCloser) {
	if body != nil {
		if err := body.Close(); err != nil {
			c.logger.Error("Failed to close body,err:", err)
		}
	}
}

type priceEntry struct {
	ID    string `json:"id"`
	Price string `json:"price"`
}

type priceResponse struct {
	Data map[string]*priceEntry `json:"data"`
}

// GetPrices returns the USD price per token mint. Mints the API has no price
// for are absent from the result.
func (c *Client) GetPrices(ctx context.Context, mints []string) (map[string]float64, error) {
	if len(mints) == 0 {
		return nil, fmt.Errorf("no mints to price")
	}
	q := url.Values{}
	q.Set("ids", strings.Join(mints, ","))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.priceURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("fail to create price request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fail to get prices: %w", err)
	}
	defer c.bodyCloser(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fail to get prices: %s", resp.Status)
	}

	var parsed priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("fail to unmarshal price response: %w", err)
	}

	prices := make(map[string]float64)
	for mint, entry := range parsed.Data {
		if entry == nil {
			continue
		}
		price, err := strconv.ParseFloat(entry.Price, 64)
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"mint":  mint,
				"price": entry.Price,
			}).Error("Skipping unparsable price")
			continue
		}
		prices[mint] = price
	}
	return prices, nil
}

// BestPerformingOption ranks the option mints by USD price and returns the
// index of the highest priced one.
func (c *Client) BestPerformingOption(ctx context.Context, mints []string) (int, error) {
	prices, err := c.GetPrices(ctx, mints)
	if err != nil {
		return 0, err
	}
	best := -1
	bestPrice := 0.0
	for i, mint := range mints {
		price, ok := prices[mint]
		if !ok {
			continue
		}
		if best == -1 || price > bestPrice {
			best = i
			bestPrice = price
		}
	}
	if best == -1 {
		return 0, fmt.Errorf("no price available for any of %d mints", len(mints))
	}
	return best, nil
}

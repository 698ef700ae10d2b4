package jupiter

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func priceServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("ids"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
}

func TestGetPrices(t *testing.T) {
	srv := priceServer(t, `{"data":{
		"mintA":{"id":"mintA","price":"0.0000321"},
		"mintB":{"id":"mintB","price":"1.25"},
		"mintC":null
	}}`)
	defer srv.Close()

	c := NewClient(srv.URL)
	prices, err := c.GetPrices(context.Background(), []string{"mintA", "mintB", "mintC"})
	require.NoError(t, err)
	assert.Equal(t, 0.0000321, prices["mintA"])
	assert.Equal(t, 1.25, prices["mintB"])
	_, ok := prices["mintC"]
	assert.False(t, ok)
}

func TestGetPricesEmptyMints(t *testing.T) {
	c := NewClient("http://localhost:0")
	_, err := c.GetPrices(context.Background(), nil)
	assert.Error(t, err)
}

func TestGetPricesServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.GetPrices(context.Background(), []string{"mintA"})
	assert.Error(t, err)
}

func TestBestPerformingOption(t *testing.T) {
	srv := priceServer(t, `{"data":{
		"mintA":{"id":"mintA","price":"0.5"},
		"mintB":{"id":"mintB","price":"2.0"},
		"mintC":{"id":"mintC","price":"1.0"}
	}}`)
	defer srv.Close()

	c := NewClient(srv.URL)
	best, err := c.BestPerformingOption(context.Background(), []string{"mintA", "mintB", "mintC"})
	require.NoError(t, err)
	assert.Equal(t, 1, best)
}

func TestBestPerformingOptionNoPrices(t *testing.T) {
	srv := priceServer(t, `{"data":{}}`)
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.BestPerformingOption(context.Background(), []string{"mintA", "mintB"})
	assert.Error(t, err)
}

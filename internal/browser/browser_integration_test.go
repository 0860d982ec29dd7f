//go:build integration

package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/semanticbrowser/kb/internal/browser"
)

func TestPoolAcquireNavigateRelease(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `<html><body><h1 id="hi">Hello World</h1></body></html>`)
	}))
	defer ts.Close()

	cfg := browser.DefaultConfig()
	cfg.Headless = true
	cfg.PoolSize = 2
	pool := browser.NewPool(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer func() { _ = pool.Shutdown(context.Background()) }()

	require.NoError(t, pool.Start(ctx))

	tab, release, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer release()

	finalURL, err := tab.Navigate(ts.URL, browser.NavigateOpts{Wait: browser.WaitLoad})
	require.NoError(t, err)
	require.Equal(t, ts.URL+"/", finalURL)

	data := tab.ExtractData(map[string]string{"heading": "#hi"})
	require.Equal(t, "Hello World", data["heading"])
}

func TestPoolAcquireExhaustedReturnsPoolExhausted(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "<html></html>")
	}))
	defer ts.Close()

	cfg := browser.DefaultConfig()
	cfg.Headless = true
	cfg.PoolSize = 1
	cfg.AcquireTimeoutMs = 200
	pool := browser.NewPool(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer func() { _ = pool.Shutdown(context.Background()) }()

	require.NoError(t, pool.Start(ctx))

	_, release1, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer release1()

	_, _, err = pool.Acquire(ctx)
	require.Error(t, err)
}

func TestPoolReleaseResetsTabToAboutBlank(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "<html><body>page</body></html>")
	}))
	defer ts.Close()

	cfg := browser.DefaultConfig()
	cfg.Headless = true
	cfg.PoolSize = 1
	pool := browser.NewPool(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer func() { _ = pool.Shutdown(context.Background()) }()

	require.NoError(t, pool.Start(ctx))

	tab, release, err := pool.Acquire(ctx)
	require.NoError(t, err)
	_, err = tab.Navigate(ts.URL, browser.NavigateOpts{Wait: browser.WaitLoad})
	require.NoError(t, err)
	release()

	tab2, release2, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer release2()
	content, err := tab2.GetContent(browser.ContentHTML)
	require.NoError(t, err)
	require.NotContains(t, content, "page")
}

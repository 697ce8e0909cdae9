package etl

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	openDataSUSBase    = "https://opendatasus.saude.gov.br"
	openDataSUSDataset = openDataSUSBase + "/dataset/srag-2021-a-2024"

	maxConcurrentDownloads = 5
)

// Downloader discovers and fetches the raw SRAG dataset files from
// OpenDataSUS into the local data directory.
type Downloader struct {
	baseURL    string
	datasetURL string
	dataDir    string
	client     *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewDownloader builds a downloader writing into dataDir.
func NewDownloader(dataDir string, logger *zap.Logger) *Downloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{
		baseURL:    openDataSUSBase,
		datasetURL: openDataSUSDataset,
		dataDir:    dataDir,
		client:     &http.Client{Timeout: 5 * time.Minute},
		// polite crawl pace against the public portal
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		logger:  logger,
	}
}

// Run scrapes the dataset page for resource pages, extracts direct CSV
// links and downloads every file not already present.
func (d *Downloader) Run(ctx context.Context) error {
	if err := os.MkdirAll(d.dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	pages, err := d.resourcePages(ctx)
	if err != nil {
		return err
	}
	if len(pages) == 0 {
		return fmt.Errorf("no resource pages found at %s", d.datasetURL)
	}
	d.logger.Info("Found resource pages", zap.Int("count", len(pages)))

	links, err := d.dataFileLinks(ctx, pages)
	if err != nil {
		return err
	}
	if len(links) == 0 {
		return fmt.Errorf("no data files found on %d resource pages", len(pages))
	}
	d.logger.Info("Found data files", zap.Int("count", len(links)))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentDownloads)
	for _, link := range links {
		g.Go(func() error {
			return d.downloadFile(gctx, link)
		})
	}
	return g.Wait()
}

// resourcePages returns the links of the dataset's resource pages.
func (d *Downloader) resourcePages(ctx context.Context) ([]string, error) {
	root, err := d.fetchHTML(ctx, d.datasetURL)
	if err != nil {
		return nil, err
	}
	var pages []string
	walkHTML(root, func(n *html.Node) {
		if n.Type != html.ElementNode || n.Data != "a" {
			return
		}
		if !hasClass(n, "heading") {
			return
		}
		if href, ok := attr(n, "href"); ok {
			pages = append(pages, d.absolute(href))
		}
	})
	return pages, nil
}

// dataFileLinks scans each resource page for direct links to CSV files.
func (d *Downloader) dataFileLinks(ctx context.Context, pages []string) ([]string, error) {
	var links []string
	seen := make(map[string]bool)
	for _, page := range pages {
		root, err := d.fetchHTML(ctx, page)
		if err != nil {
			d.logger.Warn("Skipping unreachable resource page", zap.String("url", page), zap.Error(err))
			continue
		}
		walkHTML(root, func(n *html.Node) {
			if n.Type != html.ElementNode || n.Data != "a" {
				return
			}
			href, ok := attr(n, "href")
			if !ok || !strings.HasSuffix(strings.ToLower(href), ".csv") {
				return
			}
			full := d.absolute(href)
			if !seen[full] {
				seen[full] = true
				links = append(links, full)
			}
		})
	}
	return links, nil
}

func (d *Downloader) downloadFile(ctx context.Context, url string) error {
	filename := path.Base(url)
	dest := filepath.Join(d.dataDir, filename)

	if _, err := os.Stat(dest); err == nil {
		d.logger.Info("File already present, skipping", zap.String("file", filename))
		return nil
	}

	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	d.logger.Info("Downloading", zap.String("file", filename))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", filename, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: http %d", filename, resp.StatusCode)
	}

	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", filename, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		return err
	}
	d.logger.Info("Download complete", zap.String("file", filename))
	return nil
}

func (d *Downloader) fetchHTML(ctx context.Context, url string) (*html.Node, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: http %d", url, resp.StatusCode)
	}
	return html.Parse(resp.Body)
}

func (d *Downloader) absolute(href string) string {
	if strings.HasPrefix(href, "http") {
		return href
	}
	return d.baseURL + href
}

func walkHTML(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walkHTML(c, fn)
	}
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func hasClass(n *html.Node, class string) bool {
	v, ok := attr(n, "class")
	if !ok {
		return false
	}
	for _, c := range strings.Fields(v) {
		if c == class {
			return true
		}
	}
	return false
}

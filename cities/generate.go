package cities

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/hertz/pkg/app/client"
	"github.com/cloudwego/hertz/pkg/network/standard"
	"github.com/cloudwego/hertz/pkg/protocol"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/zishu-lab/jobchat/observability"
)

const (
	// DefaultSourceURL is the public city group feed.
	DefaultSourceURL = "https://www.zhipin.com/wapi/zpCommon/data/cityGroup.json"

	// BrowserUserAgent is sent because the feed rejects non-browser clients.
	BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Fetcher downloads the city feed, falling back to a local copy.
type Fetcher struct {
	SourceURL  string
	BackupPath string
	Logger     observability.Logger

	client *client.Client
}

// NewFetcher creates a Fetcher. An empty sourceURL selects DefaultSourceURL.
func NewFetcher(sourceURL, backupPath string, logger observability.Logger) (*Fetcher, error) {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	if logger == nil {
		logger = observability.NewNullLogger()
	}

	hc, err := client.NewClient(
		client.WithDialTimeout(10*time.Second),
		client.WithClientReadTimeout(30*time.Second),
		client.WithDialer(standard.NewDialer()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	return &Fetcher{
		SourceURL:  sourceURL,
		BackupPath: backupPath,
		Logger:     logger,
		client:     hc,
	}, nil
}

// Fetch returns the live feed, or the backup file when the feed cannot be read.
func (f *Fetcher) Fetch(ctx context.Context) (*Source, error) {
	src, err := f.fetchRemote(ctx)
	if err == nil {
		return src, nil
	}

	f.Logger.WithErr(err).WithFields(map[string]interface{}{"backup": f.BackupPath}).Warn("获取城市数据失败, using backup")
	if f.BackupPath == "" {
		return nil, err
	}

	backup, backupErr := readSource(f.BackupPath)
	if backupErr != nil {
		return nil, errors.Join(err, backupErr)
	}
	return backup, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context) (*Source, error) {
	req := protocol.AcquireRequest()
	resp := protocol.AcquireResponse()
	defer func() {
		protocol.ReleaseRequest(req)
		protocol.ReleaseResponse(resp)
	}()

	req.SetMethod(consts.MethodGet)
	req.SetRequestURI(f.SourceURL)
	req.Header.Set("User-Agent", BrowserUserAgent)

	if err := f.client.Do(ctx, req, resp); err != nil {
		return nil, fmt.Errorf("failed to fetch city feed: %w", err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		return nil, fmt.Errorf("city feed returned HTTP %d", status)
	}

	var src Source
	if err := sonic.Unmarshal(resp.Body(), &src); err != nil {
		return nil, fmt.Errorf("failed to decode city feed: %w", err)
	}
	return &src, nil
}

func readSource(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read city backup: %w", err)
	}
	var src Source
	if err := sonic.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("failed to decode city backup %s: %w", path, err)
	}
	return &src, nil
}

// Generate fetches the feed and writes the taxonomy to outPath.
func (f *Fetcher) Generate(ctx context.Context, outPath string) (*Taxonomy, error) {
	src, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	taxonomy := Build(src)
	if err := Save(outPath, taxonomy); err != nil {
		return nil, err
	}

	f.Logger.WithFields(map[string]interface{}{
		"path":   outPath,
		"cities": len(taxonomy.CityOptions),
	}).Info("城市数据文件生成成功")
	return taxonomy, nil
}

// Save writes taxonomy as indented JSON, creating parent directories.
func Save(path string, taxonomy *Taxonomy) error {
	data, err := sonic.ConfigStd.MarshalIndent(taxonomy, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode city data: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create city data directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write city data: %w", err)
	}
	return nil
}

// Load reads a file written by Save.
func Load(path string) (*Taxonomy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read city data: %w", err)
	}
	var taxonomy Taxonomy
	if err := sonic.Unmarshal(data, &taxonomy); err != nil {
		return nil, fmt.Errorf("failed to decode city data %s: %w", path, err)
	}
	return &taxonomy, nil
}

package collector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"RialLedger/internal/calendar"
	"RialLedger/internal/model"
	"RialLedger/internal/retry"
	"RialLedger/internal/store"
)

// Snapshot defaults.
const (
	DefaultDatasetsServer = "https://datasets-server.huggingface.co"
	DefaultDataset        = "mohammadtaghizadeh/Dollar_Rial_Price_Dataset"
)

// HuggingFaceLoader pages through the datasets-server rows API.
type HuggingFaceLoader struct {
	BaseURL  string
	Dataset  string
	Config   string
	Split    string
	PageSize int
	Client   *http.Client
	Retry    retry.Policy
	Logger   *logrus.Logger
}

// NewHuggingFaceLoader creates a loader with default paging.
func NewHuggingFaceLoader(baseURL, dataset, proxy string, logger *logrus.Logger) *HuggingFaceLoader {
	if baseURL == "" {
		baseURL = DefaultDatasetsServer
	}
	if dataset == "" {
		dataset = DefaultDataset
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &HuggingFaceLoader{
		BaseURL:  baseURL,
		Dataset:  dataset,
		Config:   "default",
		Split:    "train",
		PageSize: 100,
		Client:   newHTTPClient(proxy, 30*time.Second),
		Retry:    retry.Exponential(3, time.Second),
		Logger:   logger,
	}
}

func (l *HuggingFaceLoader) Name() string { return "huggingface:" + l.Dataset }

// LoadInitialSeries downloads every row of the dataset split in order.
func (l *HuggingFaceLoader) LoadInitialSeries(ctx context.Context) (model.Series, error) {
	series := model.Series{}
	for offset := 0; ; {
		var body []byte
		err := retry.Do(ctx, l.Retry, func(ctx context.Context) error {
			var err error
			body, err = l.fetchRows(ctx, offset)
			return err
		}, func(attempt int, err error) {
			l.Logger.WithFields(logrus.Fields{"offset": offset, "attempt": attempt}).WithError(err).Warn("snapshot request failed")
		})
		if err != nil {
			return nil, fmt.Errorf("load snapshot %s: %w", l.Dataset, err)
		}
		if msg := gjson.GetBytes(body, "error"); msg.Exists() {
			return nil, fmt.Errorf("load snapshot %s: %s", l.Dataset, msg.String())
		}

		rows := gjson.GetBytes(body, "rows").Array()
		for _, r := range rows {
			row := r.Get("row")
			series = append(series, model.NewRecord(
				row.Get("Date").String(),
				row.Get("Persian_Date").String(),
				row.Get("Open").String(),
				row.Get("Low").String(),
				row.Get("High").String(),
				row.Get("Close").String(),
				calendar.SnapshotLayouts...,
			))
		}
		offset += len(rows)
		total := int(gjson.GetBytes(body, "num_rows_total").Int())
		if len(rows) == 0 || offset >= total {
			break
		}
	}
	first, last := series.DateRange()
	l.Logger.WithFields(logrus.Fields{"records": len(series), "first": first, "last": last}).Info("snapshot loaded")
	return series, nil
}

func (l *HuggingFaceLoader) fetchRows(ctx context.Context, offset int) ([]byte, error) {
	q := url.Values{}
	q.Set("dataset", l.Dataset)
	q.Set("config", l.Config)
	q.Set("split", l.Split)
	q.Set("offset", strconv.Itoa(offset))
	q.Set("length", strconv.Itoa(l.PageSize))
	return getBody(ctx, l.Client, l.BaseURL+"/rows?"+q.Encode())
}

// CSVSnapshotLoader downloads a published CSV copy of the series.
type CSVSnapshotLoader struct {
	URL     string
	Layouts []string
	Client  *http.Client
	Retry   retry.Policy
	Logger  *logrus.Logger
}

// NewCSVSnapshotLoader creates a loader for a CSV in the persisted format.
func NewCSVSnapshotLoader(rawURL, proxy string, logger *logrus.Logger) *CSVSnapshotLoader {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CSVSnapshotLoader{
		URL:     rawURL,
		Layouts: calendar.StoredLayouts,
		Client:  newHTTPClient(proxy, time.Minute),
		Retry:   retry.Exponential(3, time.Second),
		Logger:  logger,
	}
}

func (l *CSVSnapshotLoader) Name() string { return "csv:" + l.URL }

func (l *CSVSnapshotLoader) LoadInitialSeries(ctx context.Context) (model.Series, error) {
	var body []byte
	err := retry.Do(ctx, l.Retry, func(ctx context.Context) error {
		var err error
		body, err = getBody(ctx, l.Client, l.URL)
		return err
	}, func(attempt int, err error) {
		l.Logger.WithField("attempt", attempt).WithError(err).Warn("snapshot download failed")
	})
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", l.URL, err)
	}
	series, err := store.DecodeLenient(bytes.NewReader(body), l.Layouts...)
	if err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", l.URL, err)
	}
	l.Logger.WithField("records", len(series)).Info("snapshot loaded")
	return series, nil
}

func getBody(ctx context.Context, client *http.Client, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d, body: %.200s", resp.StatusCode, string(body))
	}
	return body, nil
}

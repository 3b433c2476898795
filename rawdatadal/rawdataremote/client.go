package rawdataremote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/hotosm/osm-rawdata/rawdatadal"
	"github.com/jamesrr39/goutil/errorsx"
	"github.com/jamesrr39/goutil/httpextra"
	"github.com/jamesrr39/goutil/logpkg"
	"github.com/klauspost/compress/zip"
	"github.com/paulmach/orb/geojson"
	"github.com/tidwall/gjson"
)

var _ rawdatadal.RemoteExtractService = &Client{}

const (
	DefaultBaseURL      = "https://raw-data-api0.hotosm.org/v1"
	BaseURLEnvKey       = "RAW_DATA_API_URL"
	DefaultPollInterval = time.Second

	exportFileName = "Export.geojson"
)

type TaskStatus string

const (
	TaskStatusPending  TaskStatus = "PENDING"
	TaskStatusStarted  TaskStatus = "STARTED"
	TaskStatusReceived TaskStatus = "RECEIVED"
	TaskStatusSuccess  TaskStatus = "SUCCESS"
	TaskStatusFailure  TaskStatus = "FAILURE"
)

func (s TaskStatus) isRunning() bool {
	switch s {
	case TaskStatusPending, TaskStatusStarted, TaskStatusReceived:
		return true
	default:
		return false
	}
}

type taskResponse struct {
	TaskID string `json:"task_id"`
}

type taskStatusResponse struct {
	ID     string     `json:"id"`
	Status TaskStatus `json:"status"`
	Result struct {
		DownloadURL string `json:"download_url"`
	} `json:"result"`
}

type Options struct {
	BaseURL      string
	PollInterval time.Duration
}

// Client talks to the raw data API. A query is submitted as a snapshot task, which is polled until it finishes.
type Client struct {
	logger       *logpkg.Logger
	doer         httpextra.Doer
	baseURL      string
	pollInterval time.Duration
}

func NewClient(logger *logpkg.Logger, doer httpextra.Doer, options Options) *Client {
	baseURL := options.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	pollInterval := options.PollInterval
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}

	return &Client{logger, doer, strings.TrimSuffix(baseURL, "/"), pollInterval}
}

// BaseURLFromEnv returns the API base URL set in the environment, or the default
func BaseURLFromEnv() string {
	baseURL := os.Getenv(BaseURLEnvKey)
	if baseURL == "" {
		return DefaultBaseURL
	}
	return baseURL
}

// Extract submits the query and blocks until the extract is ready, or the context is done.
// The features are only downloaded when the requested output type is GeoJSON.
func (c *Client) Extract(ctx context.Context, query string) (*rawdatadal.ExtractResult, errorsx.Error) {
	taskID, err := c.submit(ctx, query)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	downloadURL, err := c.waitForTask(ctx, taskID)
	if err != nil {
		return nil, errorsx.Wrap(err, "taskID", taskID)
	}

	result := &rawdatadal.ExtractResult{
		DownloadURL: downloadURL,
	}

	outputType := gjson.Get(query, "outputType").String()
	if outputType != "" && !strings.EqualFold(outputType, "geojson") {
		return result, nil
	}

	result.Features, err = c.download(ctx, downloadURL)
	if err != nil {
		return nil, errorsx.Wrap(err, "downloadURL", downloadURL)
	}

	return result, nil
}

func (c *Client) submit(ctx context.Context, query string) (string, errorsx.Error) {
	resp, err := c.do(ctx, http.MethodPost, c.baseURL+"/snapshot/", strings.NewReader(query))
	if err != nil {
		return "", errorsx.Wrap(err)
	}
	defer resp.Body.Close()

	var taskResp taskResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&taskResp)
	if decodeErr != nil {
		return "", errorsx.Wrap(decodeErr)
	}

	if taskResp.TaskID == "" {
		return "", errorsx.Errorf("no task id in the snapshot response")
	}

	c.logger.Info("submitted extract task %q", taskResp.TaskID)

	return taskResp.TaskID, nil
}

func (c *Client) waitForTask(ctx context.Context, taskID string) (string, errorsx.Error) {
	statusURL := fmt.Sprintf("%s/tasks/status/%s", c.baseURL, taskID)

	for {
		status, err := c.getTaskStatus(ctx, statusURL)
		if err != nil {
			return "", errorsx.Wrap(err)
		}

		switch {
		case status.Status == TaskStatusSuccess:
			if status.Result.DownloadURL == "" {
				return "", errorsx.Errorf("task finished, but has no download url")
			}
			c.logger.Info("extract task %q finished", taskID)
			return status.Result.DownloadURL, nil
		case status.Status == TaskStatusFailure:
			return "", errorsx.Errorf("extract task failed")
		case status.Status.isRunning():
			c.logger.Debug("extract task %q is %s, retrying in %s", taskID, status.Status, c.pollInterval)
		default:
			return "", errorsx.Errorf("unknown task status %q", status.Status)
		}

		select {
		case <-ctx.Done():
			return "", errorsx.Wrap(ctx.Err())
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) getTaskStatus(ctx context.Context, statusURL string) (*taskStatusResponse, errorsx.Error) {
	resp, err := c.do(ctx, http.MethodGet, statusURL, nil)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	defer resp.Body.Close()

	status := new(taskStatusResponse)
	decodeErr := json.NewDecoder(resp.Body).Decode(status)
	if decodeErr != nil {
		return nil, errorsx.Wrap(decodeErr)
	}

	return status, nil
}

func (c *Client) download(ctx context.Context, downloadURL string) (*geojson.FeatureCollection, errorsx.Error) {
	resp, err := c.do(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	defer resp.Body.Close()

	body, readErr := ioutil.ReadAll(resp.Body)
	if readErr != nil {
		return nil, errorsx.Wrap(readErr)
	}

	if isZipArchive(body) {
		body, err = readGeoJSONFromZip(body)
		if err != nil {
			return nil, errorsx.Wrap(err)
		}
	}

	fc, unmarshalErr := geojson.UnmarshalFeatureCollection(body)
	if unmarshalErr != nil {
		return nil, errorsx.Wrap(unmarshalErr)
	}

	return fc, nil
}

func (c *Client) do(ctx context.Context, method, url string, body io.Reader) (*http.Response, errorsx.Error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errorsx.Wrap(err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, errorsx.Wrap(err, "url", url)
	}

	err = httpextra.CheckResponseCode(http.StatusOK, resp.StatusCode)
	if err != nil {
		bodyMsg := httpextra.GetBodyOrErrorMsg(resp)
		return nil, errorsx.Wrap(err, "url", url, "body", bodyMsg)
	}

	return resp, nil
}

func isZipArchive(data []byte) bool {
	return bytes.HasPrefix(data, []byte("PK\x03\x04"))
}

// readGeoJSONFromZip returns the export file of the archive, or else the first GeoJSON file in it
func readGeoJSONFromZip(data []byte) ([]byte, errorsx.Error) {
	zipReader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errorsx.Wrap(err)
	}

	var geojsonFile *zip.File
	for _, file := range zipReader.File {
		if path.Base(file.Name) == exportFileName {
			geojsonFile = file
			break
		}
		if geojsonFile == nil && strings.HasSuffix(strings.ToLower(file.Name), ".geojson") {
			geojsonFile = file
		}
	}

	if geojsonFile == nil {
		return nil, errorsx.Errorf("no GeoJSON file found in the zip archive")
	}

	file, err := geojsonFile.Open()
	if err != nil {
		return nil, errorsx.Wrap(err, "fileName", geojsonFile.Name)
	}
	defer file.Close()

	fileData, err := ioutil.ReadAll(file)
	if err != nil {
		return nil, errorsx.Wrap(err, "fileName", geojsonFile.Name)
	}

	return fileData, nil
}

package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"time"

	"github.com/sudokn/gptbatch/pkg/batcherr"
	"github.com/sudokn/gptbatch/pkg/config"
)

// Client is a thin HTTP client over the batch provider's file/batch
// endpoints. It uses two distinct timeout budgets: ConnectTimeout for
// establishing the connection (via a custom net.Dialer), and
// TransferTimeout for the request context deadline, which bounds the much
// slower body read/write of a multi-hundred-megabyte upload or download —
// a plain http.Client.Timeout can't express that split.
type Client struct {
	httpClient *http.Client
	cfg        *config.ProviderConfig
	apiKey     string
	transferTO time.Duration
}

// NewClient builds a Client for apiKey using cfg's endpoints and the given
// connect/transfer timeouts.
func NewClient(cfg *config.ProviderConfig, apiKey string, connectTimeout, transferTimeout time.Duration) *Client {
	dialer := &net.Dialer{Timeout: connectTimeout}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: connectTimeout,
	}
	return &Client{
		httpClient: &http.Client{Transport: transport},
		cfg:        cfg,
		apiKey:     apiKey,
		transferTO: transferTimeout,
	}
}

func (c *Client) setAuthHeader(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.transferTO)
	req = req.WithContext(ctx)
	c.setAuthHeader(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, batcherr.NewProviderError("request", 0, err)
	}
	// The caller reads resp.Body under the same deadline; attach cancel to
	// the body close.
	resp.Body = &cancelOnCloseBody{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnCloseBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnCloseBody) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

// UploadFile uploads a JSONL batch input file.
func (c *Client) UploadFile(ctx context.Context, filename string, content io.Reader) (*UploadedFile, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("purpose", "batch"); err != nil {
		return nil, fmt.Errorf("provider: writing purpose field: %w", err)
	}
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("provider: creating form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("provider: copying file content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("provider: closing multipart writer: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.cfg.BaseURL+c.cfg.UploadPath, body)
	if err != nil {
		return nil, fmt.Errorf("provider: building upload request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("upload", resp)
	}

	var out UploadedFile
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("provider: decoding upload response: %w", err)
	}
	return &out, nil
}

// CreateBatch submits a batch job referencing an already-uploaded input
// file.
func (c *Client) CreateBatch(ctx context.Context, inputFileID, endpoint, completionWindow string) (*BatchJob, error) {
	payload := map[string]string{
		"input_file_id":     inputFileID,
		"endpoint":          endpoint,
		"completion_window": completionWindow,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("provider: encoding create batch request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.cfg.BaseURL+c.cfg.CreateBatchPath, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("provider: building create batch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("create", resp)
	}

	var out BatchJob
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("provider: decoding create batch response: %w", err)
	}
	return &out, nil
}

// RetrieveBatch polls the current state of an already-submitted batch.
func (c *Client) RetrieveBatch(ctx context.Context, externalBatchID string) (*BatchJob, error) {
	url := c.cfg.BaseURL + fmt.Sprintf(c.cfg.RetrievePath, externalBatchID)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("provider: building retrieve request: %w", err)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError("retrieve", resp)
	}

	var out BatchJob
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("provider: decoding retrieve response: %w", err)
	}
	return &out, nil
}

// DownloadFile streams the content of an output or error file. The caller
// must close the returned reader.
func (c *Client) DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error) {
	url := c.cfg.BaseURL + fmt.Sprintf(c.cfg.FileContentPath, fileID)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("provider: building download request: %w", err)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, statusError("download", resp)
	}
	return resp.Body, nil
}

func statusError(op string, resp *http.Response) error {
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return batcherr.NewProviderError(op, resp.StatusCode, fmt.Errorf("%s", msg))
}

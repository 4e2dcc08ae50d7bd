// Package apiclient talks to the checklist HTTP API. It implements
// engine.API so a device-side session can run against a remote server.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/engine"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/entity"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/itemtype"
	"github.com/Sebas2587/mecanimovil-prov-sub001/internal/checklist/lifecycle"
)

var _ engine.API = (*Client)(nil)

// Client 检查单API客户端
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient 创建客户端，timeout<=0 时使用 30s
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
	}
}

// SetLogger 注入日志
func (c *Client) SetLogger(logger *zap.Logger) {
	if logger != nil {
		c.logger = logger
	}
}

// envelope mirrors the server's {code, message, data} body.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIError is a non-zero envelope code. It unwraps to the matching domain
// error so callers can use errors.Is across the wire.
type APIError struct {
	Status  int
	Code    int
	Message string
	Path    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("checklist api error [%d/%d]: %s (path=%s)", e.Status, e.Code, e.Message, e.Path)
}

func (e *APIError) Unwrap() error {
	switch e.Code {
	case 40001:
		return itemtype.ErrValidation
	case 40902:
		return lifecycle.ErrChecklistIncomplete
	case 40906:
		return lifecycle.ErrInvalidTransition
	}
	return nil
}

func (c *Client) GetInstanceByOrder(ctx context.Context, orderID string) (*entity.ChecklistInstance, error) {
	var inst entity.ChecklistInstance
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/orders/"+url.PathEscape(orderID)+"/checklist", nil, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

func (c *Client) SaveResponse(ctx context.Context, instanceID, itemID string, p entity.Payload) (*entity.ChecklistItemResponse, error) {
	var resp entity.ChecklistItemResponse
	path := fmt.Sprintf("/api/v1/checklists/%s/items/%s/response", url.PathEscape(instanceID), url.PathEscape(itemID))
	if err := c.doJSON(ctx, http.MethodPut, path, p, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UploadPhoto sends a local file (file:// URI or plain path) as multipart.
func (c *Client) UploadPhoto(ctx context.Context, uri, responseID, descripcion string) (*entity.PhotoEvidence, error) {
	name := strings.TrimPrefix(uri, "file://")
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("open photo %s: %w", uri, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	ctype := mime.TypeByExtension(filepath.Ext(name))
	if ctype == "" {
		ctype = "application/octet-stream"
	}
	part, err := mw.CreatePart(fileHeader(filepath.Base(name), ctype))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read photo %s: %w", uri, err)
	}
	mw.WriteField("uri", uri)
	mw.WriteField("descripcion", descripcion)
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var photo entity.PhotoEvidence
	path := "/api/v1/responses/" + url.PathEscape(responseID) + "/photos"
	if err := c.do(ctx, http.MethodPost, path, mw.FormDataContentType(), &buf, &photo); err != nil {
		return nil, err
	}
	return &photo, nil
}

func (c *Client) Finalize(ctx context.Context, instanceID string, bundle *entity.SignatureCapture) (*entity.ChecklistInstance, error) {
	var inst entity.ChecklistInstance
	body := map[string]interface{}{"firma": bundle}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/checklists/"+url.PathEscape(instanceID)+"/finalize", body, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

// FinishService 结束订单服务
func (c *Client) FinishService(ctx context.Context, orderID string) (*entity.ServiceOrder, error) {
	var order entity.ServiceOrder
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/orders/"+url.PathEscape(orderID)+"/finish", nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, result interface{}) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}
	return c.do(ctx, method, path, "application/json; charset=utf-8", reader, result)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("checklist api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return &APIError{Status: resp.StatusCode, Code: resp.StatusCode * 100, Message: strings.TrimSpace(string(raw)), Path: path}
	}
	if env.Code != 0 || resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Code: env.Code, Message: env.Message, Path: path}
	}
	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return nil
}

func fileHeader(filename, contentType string) textproto.MIMEHeader {
	return textproto.MIMEHeader{
		"Content-Disposition": {fmt.Sprintf(`form-data; name="file"; filename=%q`, filename)},
		"Content-Type":        {contentType},
	}
}

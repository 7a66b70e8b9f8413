// Package client 演示服务的命令行客户端
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"strings"
	"time"

	"github.com/getcharzp/go-som/api"
	"github.com/up-zero/gotool/imageutil"
)

// ExampleImageURL 示例请求使用的图片
const ExampleImageURL = "https://raw.githubusercontent.com/gradio-app/gradio/main/test/test_files/bus.png"

// ExampleRequest 部署后用于验证服务的固定请求
func ExampleRequest() api.InferenceRequest {
	return api.InferenceRequest{
		ImageURL:  ExampleImageURL,
		Slider:    api.Float(2.5),
		Mode:      "Automatic",
		Alpha:     api.Float(0.5),
		LabelMode: "Number",
		AnnoMode:  []string{"Mark"},
	}
}

// Client 演示服务客户端
type Client struct {
	baseURL string
	http    *http.Client
}

// New 创建客户端
//
// # Params:
//
//	serverURL: 服务地址, 如 http://1.2.3.4:6092
//	httpClient: 为空时使用 5 分钟超时的默认客户端
func New(serverURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Client{baseURL: strings.TrimRight(serverURL, "/"), http: httpClient}
}

// Predict 调用标注接口
func (c *Client) Predict(ctx context.Context, req api.InferenceRequest) (*api.InferenceResponse, error) {
	var resp api.InferenceResponse
	if err := c.post(ctx, api.PathInference, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Chat 针对最近一次标注提问
func (c *Client) Chat(ctx context.Context, prompt string) (*api.ChatResponse, error) {
	var resp api.ChatResponse
	if err := c.post(ctx, api.PathChat, api.ChatRequest{Prompt: prompt}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Health 查询服务状态
func (c *Client) Health(ctx context.Context) (*api.HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+api.PathHealth, nil)
	if err != nil {
		return nil, err
	}
	var resp api.HealthResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("请求编码失败: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("请求 %s 失败: %w", req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e api.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, e.Error)
		}
		return fmt.Errorf("%s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("响应解码失败: %w", err)
	}
	return nil
}

// DecodeResult 解码标注结果中的图片
func DecodeResult(resp *api.InferenceResponse) (image.Image, error) {
	return api.DecodeImage(resp.Image)
}

// SaveResult 将标注结果保存为图片文件
func SaveResult(resp *api.InferenceResponse, path string) error {
	img, err := DecodeResult(resp)
	if err != nil {
		return err
	}
	if err := imageutil.Save(path, img, 100); err != nil {
		return fmt.Errorf("保存图片失败: %w", err)
	}
	return nil
}

// Package gpt4v 将标注后的图片与问题发送给视觉语言模型
package gpt4v

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log/slog"
	"os"
	"strconv"

	openai "github.com/sashabaranov/go-openai"
)

// ErrAPIKeyMissing 未设置 OPENAI_API_KEY
var ErrAPIKeyMissing = errors.New("未设置 OPENAI_API_KEY")

const (
	DefaultModel     = "gpt-4-vision-preview"
	DefaultMaxTokens = 300
	jpegQuality      = 90
)

// MetaPrompt 要求模型用 markdown 作答并突出提到的标记, 默认不启用
const MetaPrompt = `- You always generate the answer in markdown format. For any marks mentioned in your answer, please highlight them in a red color and bold font.`

// Config 视觉语言模型配置
type Config struct {
	APIKey     string
	BaseURL    string // (可选) 兼容 OpenAI 的接口地址
	Model      string
	MaxTokens  int
	MetaPrompt string // (可选) 作为 system 消息发送
}

// ConfigFromEnv 从环境变量读取配置
func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:    os.Getenv("OPENAI_API_KEY"),
		BaseURL:   os.Getenv("OPENAI_BASE_URL"),
		Model:     os.Getenv("OPENAI_MODEL"),
		MaxTokens: DefaultMaxTokens,
	}
	if v, err := strconv.Atoi(os.Getenv("OPENAI_MAX_TOKENS")); err == nil && v > 0 {
		cfg.MaxTokens = v
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	return cfg
}

// Client 视觉语言模型客户端
type Client struct {
	client *openai.Client
	cfg    Config
}

// New 创建客户端
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyMissing
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	return &Client{client: openai.NewClientWithConfig(oc), cfg: cfg}, nil
}

// Ask 发送问题与图片, 返回模型的文本回复
//
// # Params:
//
//	prompt: 用户问题
//	img: 标注后的图片, 以 JPEG data URL 发送
func (c *Client) Ask(ctx context.Context, prompt string, img image.Image) (string, error) {
	dataURL, err := DataURL(img)
	if err != nil {
		return "", err
	}

	var messages []openai.ChatCompletionMessage
	if c.cfg.MetaPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: c.cfg.MetaPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: prompt},
			{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{URL: dataURL}},
		},
	})

	slog.Debug("发送视觉问答请求", "model", c.cfg.Model, "prompt_length", len(prompt), "image_bytes", len(dataURL))
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     c.cfg.Model,
		Messages:  messages,
		MaxTokens: c.cfg.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("视觉问答请求失败: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("视觉问答返回空结果")
	}
	return resp.Choices[0].Message.Content, nil
}

// DataURL 将图片编码为 JPEG base64 data URL
func DataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return "", fmt.Errorf("图片编码失败: %w", err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

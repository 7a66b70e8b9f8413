package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	som "github.com/getcharzp/go-som"
	"github.com/getcharzp/go-som/api"
	"github.com/getcharzp/go-som/history"
	"github.com/getcharzp/go-som/marks"
	"github.com/getcharzp/go-som/pipeline"
	"github.com/getcharzp/go-som/visualizer"
)

// 会话中保存标识的 key
const sessionKey = "sid"

var errNoRun = errors.New("当前会话还没有标注结果")

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Models   []som.ModelName
		Defaults som.Options
		Chat     bool
	}{
		Models:   s.deps.Segmenter.Available(),
		Defaults: s.cfg.Defaults,
		Chat:     s.deps.Chat != nil,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "index.html", data); err != nil {
		s.logger.Error("渲染页面失败", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	models := s.deps.Segmenter.Available()
	resp := api.HealthResponse{Status: "ok", Models: make([]string, len(models))}
	for i, m := range models {
		resp.Models[i] = string(m)
	}
	if len(models) == 0 {
		resp.Status = "degraded"
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleInference(w http.ResponseWriter, r *http.Request) {
	var req api.InferenceRequest
	if !s.decode(w, r, &req) {
		return
	}

	opts, err := s.options(req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	img, err := s.loadImage(r.Context(), req)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	var scribble image.Image
	if req.Mask != "" {
		if scribble, err = api.DecodeImage(req.Mask); err != nil {
			s.writeError(w, http.StatusBadRequest, fmt.Errorf("mask: %w", err))
			return
		}
	}

	res, err := s.deps.Segmenter.Run(r.Context(), pipeline.Request{Image: img, Scribble: scribble, Options: opts})
	switch {
	case errors.Is(err, som.ErrMaskRequired), errors.Is(err, som.ErrMaskSize):
		s.writeError(w, http.StatusBadRequest, err)
		return
	case errors.Is(err, som.ErrModelUnavailable):
		s.writeError(w, http.StatusServiceUnavailable, err)
		return
	case err != nil:
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	encoded, err := api.EncodePNG(res.Image)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	run := &history.Run{ID: history.NewRunID(), Source: img, Result: res, CreatedAt: time.Now()}
	s.deps.Runs.Put(s.sessionID(r), run)

	s.writeJSON(w, http.StatusOK, api.InferenceResponse{
		RunID:  run.ID,
		Image:  encoded,
		Model:  string(res.Selection.Model),
		Levels: res.Selection.Levels,
		Marks:  toAPIMarks(res.Marks),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if s.deps.Chat == nil {
		s.writeError(w, http.StatusServiceUnavailable, errors.New("未配置视觉问答"))
		return
	}
	var req api.ChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Prompt == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("prompt 不能为空"))
		return
	}

	sid := s.sessionID(r)
	run, ok := s.deps.Runs.Get(sid)
	if !ok {
		s.writeError(w, http.StatusConflict, errNoRun)
		return
	}

	reply, err := s.deps.Chat.Ask(r.Context(), req.Prompt, run.Result.Image)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, err)
		return
	}
	s.deps.Runs.SetReply(sid, reply)
	refs := marks.Parse(reply)
	s.record(r.Context(), run.ID, req.Prompt, reply, refs)

	s.writeJSON(w, http.StatusOK, api.ChatResponse{Reply: reply, Marks: refs})
}

func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	var req api.HighlightRequest
	if !s.decode(w, r, &req) {
		return
	}

	run, ok := s.deps.Runs.Get(s.sessionID(r))
	if !ok {
		s.writeError(w, http.StatusConflict, errNoRun)
		return
	}

	indices := req.Marks
	if len(indices) == 0 {
		text := req.Text
		if text == "" {
			text = run.Reply
		}
		indices = marks.Parse(text)
	}

	img, hl, err := s.deps.Segmenter.Highlight(run.Source, run.Result, indices)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	encoded, err := api.EncodePNG(img)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.HighlightResponse{Image: encoded, Marks: toAPIMarks(hl)})
}

// options 以服务默认值为基础合并请求参数
func (s *Server) options(req api.InferenceRequest) (som.Options, error) {
	opts := s.cfg.Defaults
	if req.Slider != nil {
		opts.Slider = *req.Slider
	}
	if req.Alpha != nil {
		opts.Alpha = *req.Alpha
	}
	if req.Mode != "" {
		mode, err := som.ParseMode(req.Mode)
		if err != nil {
			return opts, err
		}
		opts.Mode = mode
	}
	if req.LabelMode != "" {
		lm, err := som.ParseLabelMode(req.LabelMode)
		if err != nil {
			return opts, err
		}
		opts.LabelMode = lm
	}
	if req.AnnoMode != nil {
		am, err := som.ParseAnnoModes(req.AnnoMode)
		if err != nil {
			return opts, err
		}
		opts.AnnoMode = am
	}
	return opts.Normalize(), nil
}

// loadImage 解码请求中的图片, 或下载 image_url
func (s *Server) loadImage(ctx context.Context, req api.InferenceRequest) (image.Image, error) {
	if req.Image != "" {
		return api.DecodeImage(req.Image)
	}
	if req.ImageURL == "" {
		return nil, errors.New("image 与 image_url 不能同时为空")
	}

	hr, err := http.NewRequestWithContext(ctx, http.MethodGet, req.ImageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("image_url 无效: %w", err)
	}
	resp, err := s.fetcher.Do(hr)
	if err != nil {
		return nil, fmt.Errorf("下载图片失败: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("下载图片失败: %s", resp.Status)
	}
	img, _, err := image.Decode(io.LimitReader(resp.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("图片解码失败: %w", err)
	}
	return img, nil
}

// record 写入对话记录, 失败只记录日志
func (s *Server) record(ctx context.Context, runID, prompt, reply string, refs []int) {
	if s.deps.Transcript == nil {
		return
	}
	turns := []history.Turn{
		{RunID: runID, Role: history.RoleUser, Content: prompt},
		{RunID: runID, Role: history.RoleAssistant, Content: reply, Marks: joinInts(refs)},
	}
	for _, t := range turns {
		if err := s.deps.Transcript.Append(ctx, t); err != nil {
			s.logger.Warn("保存对话失败", "run", runID, "error", err)
		}
	}
}

// sessionID 当前会话的标识, 首次访问时生成
func (s *Server) sessionID(r *http.Request) string {
	sid := s.session.GetString(r.Context(), sessionKey)
	if sid == "" {
		sid = history.NewRunID()
		s.session.Put(r.Context(), sessionKey, sid)
	}
	return sid
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("请求格式错误: %w", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("写出响应失败", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger.Error("请求失败", "status", status, "error", err)
	}
	s.writeJSON(w, status, api.ErrorResponse{Error: err.Error()})
}

func toAPIMarks(ms []visualizer.Mark) []api.Mark {
	out := make([]api.Mark, len(ms))
	for i, m := range ms {
		out[i] = api.Mark{
			Index: m.Index,
			Label: m.Label,
			Box:   [4]int{m.Box.Min.X, m.Box.Min.Y, m.Box.Max.X, m.Box.Max.Y},
			Point: [2]int{m.Point.X, m.Point.Y},
			Area:  m.Area,
		}
	}
	return out
}

func joinInts(vs []int) string {
	var b []byte
	for i, v := range vs {
		if i > 0 {
			b = append(b, ',')
		}
		b = fmt.Appendf(b, "%d", v)
	}
	return string(b)
}

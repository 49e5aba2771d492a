package comfyui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ErrRenderTimeout 等待渲染完成超时
var ErrRenderTimeout = errors.New("timed out waiting for render to complete")

// ErrNoVideoOutput executed 事件的输出清单中没有视频产物
var ErrNoVideoOutput = errors.New("no video output in render result")

// DownloadError 产物下载失败（非 2xx 状态码）
type DownloadError struct {
	StatusCode int
	URL        string
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: unexpected status %d", e.URL, e.StatusCode)
}

// Client ComfyUI 渲染任务客户端
// 每个渲染任务：WebSocket 提交 + 等待 executed 事件 + HTTP 下载产物
type Client struct {
	cfg        Config
	dialer     *websocket.Dialer
	httpClient *http.Client
}

// NewClient 创建渲染任务客户端
func NewClient(cfg Config) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.ConnectTimeout,
		},
		httpClient: &http.Client{
			Timeout: cfg.DownloadTimeout,
		},
	}
}

// ClientID 返回本客户端的会话ID
func (c *Client) ClientID() string {
	return c.cfg.ClientID
}

// VideoOutput 渲染产物引用（/view 端点的定位参数）
type VideoOutput struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// wsEvent 渲染服务推送的事件信封
type wsEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// executedData executed 事件负载：节点ID → 输出清单
type executedData struct {
	Output map[string]nodeOutput `json:"output"`
}

type nodeOutput struct {
	Videos []VideoOutput `json:"videos"`
}

// progressData progress 事件负载
type progressData struct {
	Value int `json:"value"`
	Max   int `json:"max"`
}

// SubmitAndAwait 提交一个渲染任务并阻塞等待完成
//
// 流程：深拷贝模板 → 注入提示词 → WebSocket 发送任务 → 等待 executed 事件。
// 模板中找不到提示词节点时在任何网络调用之前返回 ErrPromptNodeNotFound；
// 等待超过 RenderTimeout 返回 ErrRenderTimeout；ctx 取消会中断挂起的等待。
func (c *Client) SubmitAndAwait(ctx context.Context, template Workflow, prompt string) (*VideoOutput, error) {
	// 深拷贝 + 注入提示词，注入失败不发起网络调用
	wf, err := template.Clone()
	if err != nil {
		return nil, err
	}
	if err := wf.SetPromptText(c.cfg.PromptNodeTitle, prompt); err != nil {
		return nil, err
	}

	wsURL := url.URL{
		Scheme:   "ws",
		Host:     c.cfg.Host,
		Path:     "/ws",
		RawQuery: "clientId=" + url.QueryEscape(c.cfg.ClientID),
	}

	conn, resp, err := c.dialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial render server: %w", err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// ctx 取消时关闭连接，中断阻塞中的读取
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	payload := map[string]interface{}{
		"prompt":    wf,
		"client_id": c.cfg.ClientID,
	}
	if err := conn.WriteJSON(payload); err != nil {
		return nil, fmt.Errorf("send render job: %w", err)
	}

	deadline := time.Now().Add(c.cfg.RenderTimeout)
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	log.Debug().
		Str("host", c.cfg.Host).
		Str("client_id", c.cfg.ClientID).
		Msg("render job submitted, waiting for completion")

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return nil, fmt.Errorf("%w: after %s", ErrRenderTimeout, c.cfg.RenderTimeout)
			}
			return nil, fmt.Errorf("read render event: %w", err)
		}
		if msgType != websocket.TextMessage {
			// 渲染服务会推送二进制预览帧，忽略
			continue
		}

		var event wsEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Warn().Err(err).Msg("skipping undecodable render event")
			continue
		}

		switch event.Type {
		case "executed":
			var executed executedData
			if err := json.Unmarshal(event.Data, &executed); err != nil {
				return nil, fmt.Errorf("decode executed event: %w", err)
			}
			return firstVideoOutput(executed.Output)
		case "progress":
			if c.cfg.OnProgress != nil {
				var p progressData
				if err := json.Unmarshal(event.Data, &p); err == nil {
					c.cfg.OnProgress(p.Value, p.Max)
				}
			}
		default:
			// 队列位置等其余事件直接忽略
		}
	}
}

// firstVideoOutput 从输出清单中取第一个视频产物
// 节点ID按数值排序（"9" 在 "10" 之前），取首个带 videos 的条目；
// 多个视频输出节点时只使用第一个
func firstVideoOutput(outputs map[string]nodeOutput) (*VideoOutput, error) {
	nodeIDs := make([]string, 0, len(outputs))
	for nodeID := range outputs {
		nodeIDs = append(nodeIDs, nodeID)
	}
	sort.Slice(nodeIDs, func(i, j int) bool {
		a, errA := strconv.Atoi(nodeIDs[i])
		b, errB := strconv.Atoi(nodeIDs[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return nodeIDs[i] < nodeIDs[j]
	})

	for _, nodeID := range nodeIDs {
		if videos := outputs[nodeID].Videos; len(videos) > 0 {
			v := videos[0]
			return &v, nil
		}
	}

	return nil, ErrNoVideoOutput
}

// Download 从 /view 端点下载渲染产物到暂存目录
// 返回本地文件路径；非 2xx 状态返回 *DownloadError
func (c *Client) Download(ctx context.Context, output *VideoOutput) (string, error) {
	query := url.Values{}
	query.Set("filename", output.Filename)
	query.Set("subfolder", output.Subfolder)
	viewURL := url.URL{
		Scheme:   "http",
		Host:     c.cfg.Host,
		Path:     "/view",
		RawQuery: query.Encode(),
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, viewURL.String(), nil)
	if err != nil {
		return "", fmt.Errorf("create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("download clip: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &DownloadError{StatusCode: resp.StatusCode, URL: viewURL.String()}
	}

	if err := os.MkdirAll(c.cfg.ClipDir, 0o755); err != nil {
		return "", fmt.Errorf("create clip dir: %w", err)
	}

	// 使用服务端上报的文件名；任务串行执行，同名覆盖可接受
	clipPath := filepath.Join(c.cfg.ClipDir, filepath.Base(output.Filename))
	file, err := os.Create(clipPath)
	if err != nil {
		return "", fmt.Errorf("create clip file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, resp.Body); err != nil {
		os.Remove(clipPath)
		return "", fmt.Errorf("write clip file: %w", err)
	}

	log.Info().
		Str("clip", clipPath).
		Str("subfolder", output.Subfolder).
		Msg("rendered clip downloaded")

	return clipPath, nil
}

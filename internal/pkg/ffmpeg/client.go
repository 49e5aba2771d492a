package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// runCommandFunc 执行外部命令（测试时可替换）
type runCommandFunc func(ctx context.Context, name string, args ...string) error

// Client FFmpeg 客户端
// 用于封装 FFmpeg 命令调用
type Client struct {
	ffmpegPath  string // FFmpeg 可执行文件路径（默认: ffmpeg）
	ffprobePath string // FFprobe 可执行文件路径（默认: ffprobe）
	run         runCommandFunc
}

// NewClient 创建 FFmpeg 客户端
func NewClient() *Client {
	ffmpegPath := os.Getenv("FFMPEG_PATH")
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}

	ffprobePath := os.Getenv("FFPROBE_PATH")
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}

	return &Client{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		run:         runCommand,
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// VideoInfo 视频信息
type VideoInfo struct {
	Width    int     // 宽度
	Height   int     // 高度
	FPS      float64 // 帧率
	Duration float64 // 时长（秒）
}

// GetVideoInfo 获取视频信息
// ffprobe -v error -select_streams v:0 -show_entries stream=width,height,r_frame_rate -show_entries format=duration -of json video.mp4
func (c *Client) GetVideoInfo(ctx context.Context, videoPath string) (*VideoInfo, error) {
	cmd := exec.CommandContext(ctx, c.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=width,height,r_frame_rate",
		"-show_entries", "format=duration",
		"-of", "json",
		videoPath,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseVideoInfo(string(output)), nil
}

// parseVideoInfo 从 ffprobe JSON 输出中提取关键字段
func parseVideoInfo(outputStr string) *VideoInfo {
	var info VideoInfo

	if idx := strings.Index(outputStr, `"width":`); idx != -1 {
		var width int
		if _, err := fmt.Sscanf(outputStr[idx:], `"width":%d`, &width); err == nil {
			info.Width = width
		}
	}

	if idx := strings.Index(outputStr, `"height":`); idx != -1 {
		var height int
		if _, err := fmt.Sscanf(outputStr[idx:], `"height":%d`, &height); err == nil {
			info.Height = height
		}
	}

	if idx := strings.Index(outputStr, `"duration":`); idx != -1 {
		var duration float64
		if _, err := fmt.Sscanf(outputStr[idx:], `"duration":"%f"`, &duration); err == nil {
			info.Duration = duration
		}
	}

	// r_frame_rate 格式: "30000/1001"
	if idx := strings.Index(outputStr, `"r_frame_rate":`); idx != -1 {
		var num, den int
		if _, err := fmt.Sscanf(outputStr[idx:], `"r_frame_rate":"%d/%d"`, &num, &den); err == nil && den > 0 {
			info.FPS = float64(num) / float64(den)
		}
	}

	return &info
}

// normalizeClip 标准化单个片段（分辨率、帧率）
// scale+crop 组合：不同分辨率/宽高比的片段缩放裁剪到统一尺寸，而不是拒绝
func (c *Client) normalizeClip(ctx context.Context, inputPath, outputPath string, width, height, fps int) error {
	vf := fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d:(in_w-%d)/2:(in_h-%d)/2,setsar=1",
		width, height, width, height, width, height)

	args := []string{
		"-y",
		"-i", inputPath,
		"-map", "0:v:0",
		"-map", "0:a?", // 可选音频流
		"-vf", vf,
		"-r", fmt.Sprintf("%d", fps),
		"-c:v", "libx264",
		"-crf", "20",
		"-preset", "medium",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		"-b:a", "160k",
		"-movflags", "+faststart",
		outputPath,
	}

	if err := c.run(ctx, c.ffmpegPath, args...); err != nil {
		return fmt.Errorf("ffmpeg normalize failed: %w", err)
	}

	return nil
}

// concatClips 按列表顺序合并多个视频文件
// 使用 concat demuxer（需要创建 concat list 文件）
func (c *Client) concatClips(ctx context.Context, clipPaths []string, outputPath string) error {
	listPath := filepath.Join(filepath.Dir(outputPath), fmt.Sprintf("concat_list_%d.txt", time.Now().UnixNano()))

	if err := writeConcatList(listPath, clipPaths); err != nil {
		return err
	}
	defer os.Remove(listPath)

	args := []string{
		"-y",
		"-f", "concat",
		"-safe", "0",
		"-i", listPath,
		"-c", "copy", // 片段已标准化，直接复制避免二次编码
		outputPath,
	}

	if err := c.run(ctx, c.ffmpegPath, args...); err != nil {
		return fmt.Errorf("ffmpeg concat failed: %w", err)
	}

	return nil
}

// writeConcatList 生成 concat demuxer 的清单文件，顺序即拼接顺序
func writeConcatList(listPath string, clipPaths []string) error {
	file, err := os.Create(listPath)
	if err != nil {
		return fmt.Errorf("create concat list file: %w", err)
	}
	defer file.Close()

	for _, clipPath := range clipPaths {
		absPath, err := filepath.Abs(clipPath)
		if err != nil {
			return fmt.Errorf("get absolute path: %w", err)
		}
		fmt.Fprintf(file, "file '%s'\n", absPath)
	}

	return nil
}

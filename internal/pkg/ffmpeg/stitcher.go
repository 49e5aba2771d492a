package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// ErrNoClips 拼接列表为空
var ErrNoClips = errors.New("no clips to stitch")

// Stitcher 负责把一组有序的视频片段拼接成一个最终视频
// 输入片段只有在拼接成功之后才会被删除，失败时全部保留以便重试
type Stitcher struct {
	client    *Client
	outputDir string
	width     int
	height    int
	fps       int
}

// NewStitcher 创建拼接器
func NewStitcher(client *Client, outputDir string, width, height, fps int) *Stitcher {
	return &Stitcher{
		client:    client,
		outputDir: outputDir,
		width:     width,
		height:    height,
		fps:       fps,
	}
}

// Stitch 按给定顺序合并片段，返回最终视频文件路径
// 流程：逐个标准化到目标分辨率/帧率 -> concat demuxer 合并 -> 删除输入片段
func (s *Stitcher) Stitch(ctx context.Context, clipPaths []string, outputName string) (string, error) {
	if len(clipPaths) == 0 {
		return "", ErrNoClips
	}

	if err := os.MkdirAll(s.outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	workDir, err := os.MkdirTemp("", "mango-stitch-*")
	if err != nil {
		return "", fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	normalized := make([]string, 0, len(clipPaths))
	for i, clipPath := range clipPaths {
		normPath := filepath.Join(workDir, fmt.Sprintf("norm_%03d.mp4", i))
		if err := s.client.normalizeClip(ctx, clipPath, normPath, s.width, s.height, s.fps); err != nil {
			return "", fmt.Errorf("normalize clip %s: %w", clipPath, err)
		}
		normalized = append(normalized, normPath)
	}

	outputPath := filepath.Join(s.outputDir, outputName)
	if err := s.client.concatClips(ctx, normalized, outputPath); err != nil {
		return "", fmt.Errorf("concat clips: %w", err)
	}

	for _, clipPath := range clipPaths {
		if err := os.Remove(clipPath); err != nil {
			log.Warn().Err(err).Str("clip", clipPath).Msg("failed to remove source clip")
		}
	}

	log.Info().Int("clips", len(clipPaths)).Str("output", outputPath).Msg("stitched video")
	return outputPath, nil
}

// Package video 实现章节视频生成流水线
// 分镜规划 -> 逐场景渲染 -> 片段下载 -> 拼接成片
package video

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"mango/internal/pkg/booktools"
	"mango/internal/pkg/comfyui"
)

// Planner 分镜规划能力
type Planner interface {
	Plan(ctx context.Context, chapterText string) ([]booktools.Scene, error)
}

// Renderer 渲染任务能力（提交工作流并等待产物，下载产物到本地）
type Renderer interface {
	SubmitAndAwait(ctx context.Context, template comfyui.Workflow, prompt string) (*comfyui.VideoOutput, error)
	Download(ctx context.Context, output *comfyui.VideoOutput) (string, error)
}

// Stitcher 片段拼接能力
type Stitcher interface {
	Stitch(ctx context.Context, clipPaths []string, outputName string) (string, error)
}

// Pipeline 章节视频生成流水线
//
// 语义：
//   - 单个场景渲染或下载失败只跳过该场景，不中断整章
//   - 没有任何场景或没有任何可用片段时返回空路径且不报错
//   - 拼接失败视为整体失败（片段保留在磁盘上）
type Pipeline struct {
	planner  Planner
	renderer Renderer
	stitcher Stitcher

	template    comfyui.Workflow
	concurrency int
}

// NewPipeline 创建视频生成流水线
//
// Args:
//   - planner: 分镜规划器
//   - renderer: 渲染客户端
//   - stitcher: 拼接器
//   - template: 工作流 JSON 模板（每个任务使用深拷贝，模板本身不被修改）
//   - concurrency: 渲染并发上限（<=0 时取 1；渲染服务一次只处理一个会话时保持 1）
func NewPipeline(planner Planner, renderer Renderer, stitcher Stitcher, template comfyui.Workflow, concurrency int) *Pipeline {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Pipeline{
		planner:     planner,
		renderer:    renderer,
		stitcher:    stitcher,
		template:    template,
		concurrency: concurrency,
	}
}

// GenerateChapterVideo 为一段章节文本生成完整视频
//
// Returns:
//   - videoPath: 成片路径；没有可用场景或片段时为空字符串（不视为错误）
//   - err: 分镜规划失败或拼接失败
func (p *Pipeline) GenerateChapterVideo(ctx context.Context, chapterText, outputName string) (string, error) {
	scenes, err := p.planner.Plan(ctx, chapterText)
	if err != nil {
		return "", fmt.Errorf("plan scenes: %w", err)
	}
	if len(scenes) == 0 {
		log.Warn().Msg("scene planner returned no scenes, skip video generation")
		return "", nil
	}

	clips := p.renderScenes(ctx, scenes)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(clips) == 0 {
		log.Warn().Int("scenes", len(scenes)).Msg("no scene produced a usable clip, skip stitching")
		return "", nil
	}

	videoPath, err := p.stitcher.Stitch(ctx, clips, outputName)
	if err != nil {
		return "", fmt.Errorf("stitch clips: %w", err)
	}

	log.Info().Int("scenes", len(scenes)).Int("clips", len(clips)).Str("video", videoPath).Msg("chapter video generated")
	return videoPath, nil
}

// renderScenes 逐场景渲染并下载片段，返回按场景顺序排列的成功片段
// 并发上限由 concurrency 控制（默认 1，即严格顺序执行）
func (p *Pipeline) renderScenes(ctx context.Context, scenes []booktools.Scene) []string {
	results := make([]string, len(scenes))

	sem := make(chan struct{}, p.concurrency)
	var wg sync.WaitGroup

	for i, scene := range scenes {
		if ctx.Err() != nil {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(idx int, sc booktools.Scene) {
			defer wg.Done()
			defer func() { <-sem }()

			clipPath, err := p.renderScene(ctx, idx, sc)
			if err != nil {
				log.Warn().Err(err).Int("scene", idx+1).Msg("scene skipped")
				return
			}
			results[idx] = clipPath
		}(i, scene)
	}
	wg.Wait()

	clips := make([]string, 0, len(scenes))
	for _, clip := range results {
		if clip != "" {
			clips = append(clips, clip)
		}
	}
	return clips
}

func (p *Pipeline) renderScene(ctx context.Context, idx int, scene booktools.Scene) (string, error) {
	log.Info().Int("scene", idx+1).Str("description", scene.Description).Msg("rendering scene")

	output, err := p.renderer.SubmitAndAwait(ctx, p.template, scene.VisualPrompt)
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}

	clipPath, err := p.renderer.Download(ctx, output)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	return clipPath, nil
}

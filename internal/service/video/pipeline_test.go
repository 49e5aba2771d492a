package video

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"mango/internal/pkg/booktools"
	"mango/internal/pkg/comfyui"
)

type fakePlanner struct {
	scenes []booktools.Scene
	err    error
}

func (f *fakePlanner) Plan(ctx context.Context, chapterText string) ([]booktools.Scene, error) {
	return f.scenes, f.err
}

type fakeRenderer struct {
	mu        sync.Mutex
	active    int
	maxActive int
	delay     time.Duration

	failPrompts     map[string]bool // SubmitAndAwait 失败的提示词
	downloadFailFor map[string]bool // Download 失败的文件名
}

func (f *fakeRenderer) SubmitAndAwait(ctx context.Context, template comfyui.Workflow, prompt string) (*comfyui.VideoOutput, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.maxActive {
		f.maxActive = f.active
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.active--
	f.mu.Unlock()

	if f.failPrompts[prompt] {
		return nil, comfyui.ErrRenderTimeout
	}
	return &comfyui.VideoOutput{Filename: fmt.Sprintf("clip_%s.mp4", prompt)}, nil
}

func (f *fakeRenderer) Download(ctx context.Context, output *comfyui.VideoOutput) (string, error) {
	if f.downloadFailFor[output.Filename] {
		return "", &comfyui.DownloadError{StatusCode: 500, URL: output.Filename}
	}
	return "/clips/" + output.Filename, nil
}

type fakeStitcher struct {
	got    [][]string
	err    error
	output string
}

func (f *fakeStitcher) Stitch(ctx context.Context, clipPaths []string, outputName string) (string, error) {
	f.got = append(f.got, clipPaths)
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func scenesOf(prompts ...string) []booktools.Scene {
	scenes := make([]booktools.Scene, 0, len(prompts))
	for _, p := range prompts {
		scenes = append(scenes, booktools.Scene{Description: "场景 " + p, VisualPrompt: p})
	}
	return scenes
}

func TestPipelineGenerateChapterVideo(t *testing.T) {
	ctx := context.Background()

	Convey("Pipeline.GenerateChapterVideo", t, func() {
		Convey("正常流程：片段按场景顺序拼接", func() {
			planner := &fakePlanner{scenes: scenesOf("a", "b", "c")}
			renderer := &fakeRenderer{}
			stitcher := &fakeStitcher{output: "/videos/ch1.mp4"}
			p := NewPipeline(planner, renderer, stitcher, comfyui.Workflow{}, 1)

			videoPath, err := p.GenerateChapterVideo(ctx, "章节文本", "ch1.mp4")
			So(err, ShouldBeNil)
			So(videoPath, ShouldEqual, "/videos/ch1.mp4")
			So(len(stitcher.got), ShouldEqual, 1)
			So(stitcher.got[0], ShouldResemble, []string{
				"/clips/clip_a.mp4",
				"/clips/clip_b.mp4",
				"/clips/clip_c.mp4",
			})
		})

		Convey("分镜规划失败应整体失败", func() {
			planner := &fakePlanner{err: errors.New("model unavailable")}
			stitcher := &fakeStitcher{}
			p := NewPipeline(planner, &fakeRenderer{}, stitcher, comfyui.Workflow{}, 1)

			_, err := p.GenerateChapterVideo(ctx, "章节文本", "ch1.mp4")
			So(err, ShouldNotBeNil)
			So(len(stitcher.got), ShouldEqual, 0)
		})

		Convey("没有场景时返回空路径且不报错", func() {
			planner := &fakePlanner{scenes: nil}
			stitcher := &fakeStitcher{}
			p := NewPipeline(planner, &fakeRenderer{}, stitcher, comfyui.Workflow{}, 1)

			videoPath, err := p.GenerateChapterVideo(ctx, "章节文本", "ch1.mp4")
			So(err, ShouldBeNil)
			So(videoPath, ShouldBeEmpty)
			So(len(stitcher.got), ShouldEqual, 0)
		})

		Convey("单个场景渲染失败只跳过该场景", func() {
			planner := &fakePlanner{scenes: scenesOf("a", "b", "c")}
			renderer := &fakeRenderer{failPrompts: map[string]bool{"b": true}}
			stitcher := &fakeStitcher{output: "/videos/ch1.mp4"}
			p := NewPipeline(planner, renderer, stitcher, comfyui.Workflow{}, 1)

			videoPath, err := p.GenerateChapterVideo(ctx, "章节文本", "ch1.mp4")
			So(err, ShouldBeNil)
			So(videoPath, ShouldEqual, "/videos/ch1.mp4")
			So(stitcher.got[0], ShouldResemble, []string{
				"/clips/clip_a.mp4",
				"/clips/clip_c.mp4",
			})
		})

		Convey("下载失败同样只跳过该场景", func() {
			planner := &fakePlanner{scenes: scenesOf("a", "b")}
			renderer := &fakeRenderer{downloadFailFor: map[string]bool{"clip_a.mp4": true}}
			stitcher := &fakeStitcher{output: "/videos/ch1.mp4"}
			p := NewPipeline(planner, renderer, stitcher, comfyui.Workflow{}, 1)

			_, err := p.GenerateChapterVideo(ctx, "章节文本", "ch1.mp4")
			So(err, ShouldBeNil)
			So(stitcher.got[0], ShouldResemble, []string{"/clips/clip_b.mp4"})
		})

		Convey("所有场景都失败时返回空路径且不拼接", func() {
			planner := &fakePlanner{scenes: scenesOf("a", "b")}
			renderer := &fakeRenderer{failPrompts: map[string]bool{"a": true, "b": true}}
			stitcher := &fakeStitcher{}
			p := NewPipeline(planner, renderer, stitcher, comfyui.Workflow{}, 1)

			videoPath, err := p.GenerateChapterVideo(ctx, "章节文本", "ch1.mp4")
			So(err, ShouldBeNil)
			So(videoPath, ShouldBeEmpty)
			So(len(stitcher.got), ShouldEqual, 0)
		})

		Convey("拼接失败应整体失败", func() {
			planner := &fakePlanner{scenes: scenesOf("a")}
			stitcher := &fakeStitcher{err: errors.New("encode failed")}
			p := NewPipeline(planner, &fakeRenderer{}, stitcher, comfyui.Workflow{}, 1)

			_, err := p.GenerateChapterVideo(ctx, "章节文本", "ch1.mp4")
			So(err, ShouldNotBeNil)
			So(strings.Contains(err.Error(), "encode failed"), ShouldBeTrue)
		})

		Convey("并发上限为 1 时渲染严格顺序执行", func() {
			planner := &fakePlanner{scenes: scenesOf("a", "b", "c", "d")}
			renderer := &fakeRenderer{delay: 10 * time.Millisecond}
			stitcher := &fakeStitcher{output: "/videos/ch1.mp4"}
			p := NewPipeline(planner, renderer, stitcher, comfyui.Workflow{}, 1)

			_, err := p.GenerateChapterVideo(ctx, "章节文本", "ch1.mp4")
			So(err, ShouldBeNil)
			So(renderer.maxActive, ShouldEqual, 1)
		})

		Convey("并发上限大于 1 时不超过上限且保持输出顺序", func() {
			planner := &fakePlanner{scenes: scenesOf("a", "b", "c", "d")}
			renderer := &fakeRenderer{delay: 10 * time.Millisecond}
			stitcher := &fakeStitcher{output: "/videos/ch1.mp4"}
			p := NewPipeline(planner, renderer, stitcher, comfyui.Workflow{}, 2)

			_, err := p.GenerateChapterVideo(ctx, "章节文本", "ch1.mp4")
			So(err, ShouldBeNil)
			So(renderer.maxActive, ShouldBeLessThanOrEqualTo, 2)
			So(stitcher.got[0], ShouldResemble, []string{
				"/clips/clip_a.mp4",
				"/clips/clip_b.mp4",
				"/clips/clip_c.mp4",
				"/clips/clip_d.mp4",
			})
		})

		Convey("上下文取消后返回取消错误", func() {
			cancelCtx, cancel := context.WithCancel(context.Background())
			cancel()

			planner := &fakePlanner{scenes: scenesOf("a", "b")}
			stitcher := &fakeStitcher{}
			p := NewPipeline(planner, &fakeRenderer{}, stitcher, comfyui.Workflow{}, 1)

			_, err := p.GenerateChapterVideo(cancelCtx, "章节文本", "ch1.mp4")
			So(errors.Is(err, context.Canceled), ShouldBeTrue)
			So(len(stitcher.got), ShouldEqual, 0)
		})
	})
}

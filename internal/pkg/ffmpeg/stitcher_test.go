package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeRunner 模拟 ffmpeg 调用：在输出路径创建文件并记录 concat 清单内容
type fakeRunner struct {
	calls       int
	failOnCall  int // 第 N 次调用返回错误（0 表示不失败）
	concatLists []string
}

func (f *fakeRunner) run(ctx context.Context, name string, args ...string) error {
	f.calls++
	if f.failOnCall > 0 && f.calls == f.failOnCall {
		return errors.New("simulated encode failure")
	}

	for i, arg := range args {
		if arg == "-f" && i+1 < len(args) && args[i+1] == "concat" {
			// concat 调用：读取清单文件记录拼接顺序
			for j, a := range args {
				if a == "-i" && j+1 < len(args) {
					data, err := os.ReadFile(args[j+1])
					if err != nil {
						return err
					}
					f.concatLists = append(f.concatLists, string(data))
				}
			}
		}
	}

	outputPath := args[len(args)-1]
	return os.WriteFile(outputPath, []byte("video"), 0644)
}

func newTestStitcher(t *testing.T, runner *fakeRunner) *Stitcher {
	t.Helper()
	client := NewClient()
	client.run = runner.run
	return NewStitcher(client, t.TempDir(), 1280, 720, 24)
}

func writeTestClips(t *testing.T, n int) []string {
	t.Helper()
	dir := t.TempDir()
	paths := make([]string, 0, n)
	for i := 0; i < n; i++ {
		p := filepath.Join(dir, fmt.Sprintf("clip_%03d.mp4", i))
		if err := os.WriteFile(p, []byte("clip"), 0644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return paths
}

func TestStitchEmptyList(t *testing.T) {
	s := newTestStitcher(t, &fakeRunner{})

	_, err := s.Stitch(context.Background(), nil, "out.mp4")
	if !errors.Is(err, ErrNoClips) {
		t.Fatalf("expected ErrNoClips, got %v", err)
	}
}

func TestStitchSuccessRemovesInputs(t *testing.T) {
	runner := &fakeRunner{}
	s := newTestStitcher(t, runner)
	clips := writeTestClips(t, 3)

	outputPath, err := s.Stitch(context.Background(), clips, "chapter_1.mp4")
	if err != nil {
		t.Fatalf("stitch failed: %v", err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		t.Fatalf("output file missing: %v", err)
	}

	// 拼接成功后输入片段应被删除
	for _, clip := range clips {
		if _, err := os.Stat(clip); !os.IsNotExist(err) {
			t.Errorf("input clip %s should have been removed", clip)
		}
	}

	// 3 次标准化 + 1 次合并
	if runner.calls != 4 {
		t.Errorf("expected 4 ffmpeg calls, got %d", runner.calls)
	}

	// concat 清单顺序必须与输入顺序一致
	if len(runner.concatLists) != 1 {
		t.Fatalf("expected 1 concat list, got %d", len(runner.concatLists))
	}
	lines := strings.Split(strings.TrimSpace(runner.concatLists[0]), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 entries in concat list, got %d", len(lines))
	}
	for i, line := range lines {
		want := fmt.Sprintf("norm_%03d.mp4", i)
		if !strings.Contains(line, want) {
			t.Errorf("concat list line %d = %q, want to contain %q", i, line, want)
		}
	}
}

func TestStitchNormalizeFailureKeepsInputs(t *testing.T) {
	runner := &fakeRunner{failOnCall: 2}
	s := newTestStitcher(t, runner)
	clips := writeTestClips(t, 3)

	_, err := s.Stitch(context.Background(), clips, "chapter_1.mp4")
	if err == nil {
		t.Fatal("expected error")
	}

	// 失败时输入片段保留
	for _, clip := range clips {
		if _, err := os.Stat(clip); err != nil {
			t.Errorf("input clip %s should still exist: %v", clip, err)
		}
	}
}

func TestStitchConcatFailureKeepsInputs(t *testing.T) {
	runner := &fakeRunner{failOnCall: 4}
	s := newTestStitcher(t, runner)
	clips := writeTestClips(t, 3)

	_, err := s.Stitch(context.Background(), clips, "chapter_1.mp4")
	if err == nil {
		t.Fatal("expected error")
	}

	for _, clip := range clips {
		if _, err := os.Stat(clip); err != nil {
			t.Errorf("input clip %s should still exist: %v", clip, err)
		}
	}
}

package book

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"mango/internal/library"
	bookmodel "mango/internal/model/book"
	"mango/internal/pkg/ffmpeg"
	"mango/internal/pkg/id"
)

type fakePipeline struct {
	videoDir   string
	failBooks  map[string]bool // 按正文内容触发失败
	emptyTexts map[string]bool // 按正文内容触发空结果
	calls      int
}

func (f *fakePipeline) GenerateChapterVideo(ctx context.Context, chapterText, outputName string) (string, error) {
	f.calls++
	if f.failBooks[chapterText] {
		return "", errors.New("stitch failed")
	}
	if f.emptyTexts[chapterText] {
		return "", nil
	}
	path := filepath.Join(f.videoDir, outputName)
	if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeProber struct{}

func (fakeProber) GetVideoInfo(ctx context.Context, videoPath string) (*ffmpeg.VideoInfo, error) {
	return &ffmpeg.VideoInfo{Width: 1280, Height: 720, Duration: 42.5}, nil
}

func seedChapters(t *testing.T, store *library.Store, texts ...string) []*bookmodel.Chapter {
	t.Helper()
	chapters := make([]*bookmodel.Chapter, 0, len(texts))
	for i, text := range texts {
		ch := &bookmodel.Chapter{
			ID:          id.New(),
			BookID:      "book-1",
			Index:       i + 1,
			VideoStatus: bookmodel.VideoStatusPending,
		}
		if err := store.SaveChapterText("book-1", ch.ID, text); err != nil {
			t.Fatal(err)
		}
		chapters = append(chapters, ch)
	}
	if err := store.SaveChapters("book-1", chapters); err != nil {
		t.Fatal(err)
	}
	return chapters
}

func TestVideoServiceGenerateChapterVideo(t *testing.T) {
	ctx := context.Background()

	Convey("GenerateChapterVideo 状态流转", t, func() {
		store, err := library.NewStore(t.TempDir())
		So(err, ShouldBeNil)
		pipeline := &fakePipeline{videoDir: t.TempDir()}
		svc := NewVideoService(store, pipeline, fakeProber{}, nil)

		Convey("成功后章节标记为 completed 并记录时长", func() {
			chapters := seedChapters(t, store, "第一章正文")

			ch, err := svc.GenerateChapterVideo(ctx, "book-1", chapters[0].ID)
			So(err, ShouldBeNil)
			So(ch.VideoStatus, ShouldEqual, bookmodel.VideoStatusCompleted)
			So(ch.VideoPath, ShouldNotBeEmpty)
			So(ch.Duration, ShouldEqual, 42.5)

			saved, err := store.GetChapter("book-1", chapters[0].ID)
			So(err, ShouldBeNil)
			So(saved.VideoStatus, ShouldEqual, bookmodel.VideoStatusCompleted)
		})

		Convey("流水线失败时章节标记为 failed 并返回错误", func() {
			pipeline.failBooks = map[string]bool{"坏章节": true}
			chapters := seedChapters(t, store, "坏章节")

			_, err := svc.GenerateChapterVideo(ctx, "book-1", chapters[0].ID)
			So(err, ShouldNotBeNil)

			saved, err := store.GetChapter("book-1", chapters[0].ID)
			So(err, ShouldBeNil)
			So(saved.VideoStatus, ShouldEqual, bookmodel.VideoStatusFailed)
		})

		Convey("没有可用片段时章节标记为 empty 且不报错", func() {
			pipeline.emptyTexts = map[string]bool{"空章节": true}
			chapters := seedChapters(t, store, "空章节")

			ch, err := svc.GenerateChapterVideo(ctx, "book-1", chapters[0].ID)
			So(err, ShouldBeNil)
			So(ch.VideoStatus, ShouldEqual, bookmodel.VideoStatusEmpty)
			So(ch.VideoPath, ShouldBeEmpty)
		})

		Convey("章节不存在时报错", func() {
			_, err := svc.GenerateChapterVideo(ctx, "book-1", "ch-404")
			So(errors.Is(err, library.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestVideoServiceGenerateBookVideos(t *testing.T) {
	ctx := context.Background()

	Convey("GenerateBookVideos 顺序处理整本书，单章失败不中断", t, func() {
		store, err := library.NewStore(t.TempDir())
		So(err, ShouldBeNil)
		pipeline := &fakePipeline{
			videoDir:  t.TempDir(),
			failBooks: map[string]bool{"第二章正文": true},
		}
		svc := NewVideoService(store, pipeline, nil, nil)

		seedChapters(t, store, "第一章正文", "第二章正文", "第三章正文")

		results, err := svc.GenerateBookVideos(ctx, "book-1")
		So(err, ShouldBeNil)
		So(pipeline.calls, ShouldEqual, 3)
		So(len(results), ShouldEqual, 2)
		So(results[0].Index, ShouldEqual, 1)
		So(results[1].Index, ShouldEqual, 3)

		saved, err := store.GetChapters("book-1")
		So(err, ShouldBeNil)
		So(saved[1].VideoStatus, ShouldEqual, bookmodel.VideoStatusFailed)
	})
}

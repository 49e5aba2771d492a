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
	"mango/internal/pkg/booktools"
)

type fakeExtractor struct {
	pageCount int
	text      string
	err       error
	calls     int
}

func (f *fakeExtractor) PageCount(pdfPath string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.pageCount, nil
}

func (f *fakeExtractor) FullTextWithMarkers(ctx context.Context, pdfPath string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

type fakeLLM struct {
	response string
	err      error
	calls    int
}

func (f *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

const markedBookText = `[Page 1]
第一章 开始
第一页的内容。

[Page 2]
第二页的内容。

[Page 3]
第二章 继续
第三页的内容。`

// 正文足够长的页（满足按页分析的最小字符数），外加一个过短的第 3 页
const analyzableBookText = `[Page 1]
第一章 开始
主角赵硕在山村里度过童年，跟着祖父种田打猎，听村中老人讲述山外的传闻，对远方世界生出向往，为日后离乡求学埋下伏笔。

[Page 2]
第二年开春，赵硕背起行囊辞别家人，沿着山路走了三天三夜才到县城，第一次见到学馆的高墙，既兴奋又忐忑地递上了荐书。

[Page 3]
（本页为空白页）`

func newTestService(t *testing.T, extractor *fakeExtractor, segLLM, pageLLM *fakeLLM) (*Service, *library.Store) {
	t.Helper()
	store, err := library.NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	svc := NewService(store,
		extractor,
		booktools.NewBookSegmenter(segLLM),
		booktools.NewPageAnalyzer(pageLLM),
	)
	return svc, store
}

func writeFakePDF(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "book.pdf")
	if err := os.WriteFile(path, []byte("%PDF-fake"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestServiceIngest(t *testing.T) {
	ctx := context.Background()

	Convey("Ingest 将 PDF 收入书库", t, func() {
		extractor := &fakeExtractor{pageCount: 3, text: markedBookText}
		svc, store := newTestService(t, extractor, &fakeLLM{}, &fakeLLM{})
		pdfPath := writeFakePDF(t)

		b, err := svc.Ingest(ctx, pdfPath, "", "作者")
		So(err, ShouldBeNil)
		So(b.Title, ShouldEqual, "book") // 缺省标题取自文件名
		So(b.PageCount, ShouldEqual, 3)
		So(b.Status, ShouldEqual, bookmodel.StatusUploaded)

		// PDF 已复制进书库目录
		_, statErr := os.Stat(b.PDFPath)
		So(statErr, ShouldBeNil)
		So(b.PDFPath, ShouldStartWith, store.BookDir(b.ID))

		got, err := store.GetBook(b.ID)
		So(err, ShouldBeNil)
		So(got.PageCount, ShouldEqual, 3)
	})

	Convey("页数统计失败时 Ingest 报错", t, func() {
		extractor := &fakeExtractor{err: errors.New("not a pdf")}
		svc, _ := newTestService(t, extractor, &fakeLLM{}, &fakeLLM{})

		_, err := svc.Ingest(ctx, writeFakePDF(t), "t", "a")
		So(err, ShouldNotBeNil)
	})
}

func TestServiceExtractText(t *testing.T) {
	ctx := context.Background()

	Convey("ExtractText 提取并缓存全书文本", t, func() {
		extractor := &fakeExtractor{pageCount: 3, text: markedBookText}
		svc, store := newTestService(t, extractor, &fakeLLM{}, &fakeLLM{})

		b, err := svc.Ingest(ctx, writeFakePDF(t), "测试", "")
		So(err, ShouldBeNil)

		text, err := svc.ExtractText(ctx, b.ID)
		So(err, ShouldBeNil)
		So(text, ShouldContainSubstring, "[Page 1]")
		So(extractor.calls, ShouldEqual, 1)

		got, err := store.GetBook(b.ID)
		So(err, ShouldBeNil)
		So(got.Status, ShouldEqual, bookmodel.StatusExtracted)
		So(got.WordCount, ShouldBeGreaterThan, 0)

		Convey("第二次调用命中缓存，不再调用提取器", func() {
			_, err := svc.ExtractText(ctx, b.ID)
			So(err, ShouldBeNil)
			So(extractor.calls, ShouldEqual, 1)
		})
	})
}

func TestServiceSegmentChapters(t *testing.T) {
	ctx := context.Background()

	Convey("SegmentChapters 用大模型划分章节", t, func() {
		extractor := &fakeExtractor{pageCount: 3, text: markedBookText}
		segLLM := &fakeLLM{response: `{
			"chapters": [
				{"title": "第一章 开始", "summary": "开篇", "start_page": 1, "end_page": 2},
				{"title": "第二章 继续", "summary": "承接", "start_page": 3, "end_page": 3}
			]
		}`}
		svc, store := newTestService(t, extractor, segLLM, &fakeLLM{})

		b, err := svc.Ingest(ctx, writeFakePDF(t), "测试", "")
		So(err, ShouldBeNil)

		chapters, err := svc.SegmentChapters(ctx, b.ID)
		So(err, ShouldBeNil)
		So(len(chapters), ShouldEqual, 2)
		So(chapters[0].Title, ShouldEqual, "第一章 开始")
		So(chapters[0].StartPage, ShouldEqual, 1)
		So(chapters[1].EndPage, ShouldEqual, 3)

		// 章节正文落盘且页码对齐
		text, err := store.GetChapterText(b.ID, chapters[0].ID)
		So(err, ShouldBeNil)
		So(text, ShouldContainSubstring, "第一页的内容")
		So(text, ShouldContainSubstring, "第二页的内容")
		So(text, ShouldNotContainSubstring, "第三页的内容")

		got, err := store.GetBook(b.ID)
		So(err, ShouldBeNil)
		So(got.Status, ShouldEqual, bookmodel.StatusSegmented)
	})

	Convey("大模型失败时退回标题模式切分", t, func() {
		extractor := &fakeExtractor{pageCount: 3, text: markedBookText}
		segLLM := &fakeLLM{err: errors.New("model unavailable")}
		svc, store := newTestService(t, extractor, segLLM, &fakeLLM{})

		b, err := svc.Ingest(ctx, writeFakePDF(t), "测试", "")
		So(err, ShouldBeNil)

		chapters, err := svc.SegmentChapters(ctx, b.ID)
		So(err, ShouldBeNil)
		So(len(chapters), ShouldEqual, 2)
		So(chapters[0].Title, ShouldContainSubstring, "第一章")

		// 退回切分时正文不含页码标记
		text, err := store.GetChapterText(b.ID, chapters[0].ID)
		So(err, ShouldBeNil)
		So(text, ShouldNotContainSubstring, "[Page")
	})
}

func TestServiceAnalyzePages(t *testing.T) {
	ctx := context.Background()

	Convey("AnalyzePages 逐页分析", t, func() {
		extractor := &fakeExtractor{pageCount: 3, text: analyzableBookText}
		pageLLM := &fakeLLM{response: `{"summary": "本页摘要", "entities": ["赵硕"], "themes": ["成长"], "has_relevant_content": true}`}
		svc, store := newTestService(t, extractor, &fakeLLM{}, pageLLM)

		b, err := svc.Ingest(ctx, writeFakePDF(t), "测试", "")
		So(err, ShouldBeNil)

		results, err := svc.AnalyzePages(ctx, b.ID, 1, 2)
		So(err, ShouldBeNil)
		So(len(results), ShouldEqual, 2)
		So(results[0].Page, ShouldEqual, 1)
		So(results[0].Summary, ShouldEqual, "本页摘要")

		saved, err := store.GetPageKnowledge(b.ID)
		So(err, ShouldBeNil)
		So(len(saved), ShouldEqual, 2)
	})

	Convey("过短的页不请求模型", t, func() {
		extractor := &fakeExtractor{pageCount: 3, text: analyzableBookText}
		pageLLM := &fakeLLM{response: `{"summary": "不应出现", "has_relevant_content": true}`}
		svc, _ := newTestService(t, extractor, &fakeLLM{}, pageLLM)

		b, err := svc.Ingest(ctx, writeFakePDF(t), "测试", "")
		So(err, ShouldBeNil)

		// 第 3 页是空白页，短于最小字符数
		results, err := svc.AnalyzePages(ctx, b.ID, 3, 3)
		So(err, ShouldBeNil)
		So(len(results), ShouldEqual, 0)
		So(pageLLM.calls, ShouldEqual, 0)
	})

	Convey("模型判定无正文内容的页不入库", t, func() {
		extractor := &fakeExtractor{pageCount: 3, text: analyzableBookText}
		pageLLM := &fakeLLM{response: `{"summary": "目录页", "entities": [], "themes": [], "has_relevant_content": false}`}
		svc, store := newTestService(t, extractor, &fakeLLM{}, pageLLM)

		b, err := svc.Ingest(ctx, writeFakePDF(t), "测试", "")
		So(err, ShouldBeNil)

		results, err := svc.AnalyzePages(ctx, b.ID, 1, 2)
		So(err, ShouldBeNil)
		So(len(results), ShouldEqual, 0)
		So(pageLLM.calls, ShouldEqual, 2) // 已请求模型，但结果被过滤

		saved, err := store.GetPageKnowledge(b.ID)
		So(err, ShouldBeNil)
		So(len(saved), ShouldEqual, 0)
	})

	Convey("单页分析失败只跳过该页", t, func() {
		extractor := &fakeExtractor{pageCount: 3, text: analyzableBookText}
		pageLLM := &fakeLLM{response: `不是 JSON`}
		svc, _ := newTestService(t, extractor, &fakeLLM{}, pageLLM)

		b, err := svc.Ingest(ctx, writeFakePDF(t), "测试", "")
		So(err, ShouldBeNil)

		results, err := svc.AnalyzePages(ctx, b.ID, 1, 3)
		So(err, ShouldBeNil)
		So(len(results), ShouldEqual, 0)
	})
}

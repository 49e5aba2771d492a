package booktools

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

// fakeProvider 返回固定内容的 LLMProvider，用于单测
type fakeProvider struct {
	response string
	err      error
	prompts  []string
}

func (f *fakeProvider) Generate(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestScenePlanner_Plan(t *testing.T) {
	Convey("ScenePlanner.Plan 能解析分镜 JSON", t, func() {
		Convey("正常 JSON 输出", func() {
			provider := &fakeProvider{response: `{
				"scenes": [
					{"description": "少年在雨夜离开村庄", "visual_prompt": "a boy leaving a village at rainy night, cinematic"},
					{"description": "旅店中与老者对话", "visual_prompt": "an old man talking in a dim tavern"}
				]
			}`}
			planner := NewScenePlanner(provider)

			scenes, err := planner.Plan(context.Background(), "第一章内容")
			So(err, ShouldBeNil)
			So(len(scenes), ShouldEqual, 2)
			So(scenes[0].Description, ShouldContainSubstring, "雨夜")
			So(scenes[0].VisualPrompt, ShouldContainSubstring, "rainy night")
			So(scenes[1].Description, ShouldContainSubstring, "老者")
			So(len(provider.prompts), ShouldEqual, 1)
			So(provider.prompts[0], ShouldContainSubstring, "第一章内容")
		})

		Convey("模型包裹了 markdown 代码块也能解析", func() {
			provider := &fakeProvider{response: "```json\n{\"scenes\": [{\"description\": \"开场\", \"visual_prompt\": \"opening shot\"}]}\n```"}
			planner := NewScenePlanner(provider)

			scenes, err := planner.Plan(context.Background(), "章节内容")
			So(err, ShouldBeNil)
			So(len(scenes), ShouldEqual, 1)
			So(scenes[0].VisualPrompt, ShouldEqual, "opening shot")
		})

		Convey("缺失 visual_prompt 时退回使用 description", func() {
			provider := &fakeProvider{response: `{"scenes": [{"description": "山顶决战", "visual_prompt": ""}]}`}
			planner := NewScenePlanner(provider)

			scenes, err := planner.Plan(context.Background(), "章节内容")
			So(err, ShouldBeNil)
			So(scenes[0].VisualPrompt, ShouldEqual, "山顶决战")
		})

		Convey("空章节内容应报错", func() {
			planner := NewScenePlanner(&fakeProvider{})
			_, err := planner.Plan(context.Background(), "   ")
			So(err, ShouldNotBeNil)
		})

		Convey("LLM 调用失败应透传错误", func() {
			provider := &fakeProvider{err: errors.New("model unavailable")}
			planner := NewScenePlanner(provider)
			_, err := planner.Plan(context.Background(), "章节内容")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "model unavailable")
		})

		Convey("scenes 为空应报错", func() {
			provider := &fakeProvider{response: `{"scenes": []}`}
			planner := NewScenePlanner(provider)
			_, err := planner.Plan(context.Background(), "章节内容")
			So(err, ShouldNotBeNil)
		})

		Convey("非法 JSON 应报错", func() {
			provider := &fakeProvider{response: `这不是 JSON`}
			planner := NewScenePlanner(provider)
			_, err := planner.Plan(context.Background(), "章节内容")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestBookSegmenter_Segment(t *testing.T) {
	Convey("BookSegmenter.Segment 能解析章节边界", t, func() {
		Convey("正常 JSON 输出", func() {
			provider := &fakeProvider{response: `{
				"chapters": [
					{"title": "第一章", "summary": "故事的开始", "start_page": 1, "end_page": 10},
					{"title": "第二章", "summary": "主角启程", "start_page": 11, "end_page": 25}
				]
			}`}
			segmenter := NewBookSegmenter(provider)

			chapters, err := segmenter.Segment(context.Background(), "[Page 1] 开头 [Page 2] ...")
			So(err, ShouldBeNil)
			So(len(chapters), ShouldEqual, 2)
			So(chapters[0].Title, ShouldEqual, "第一章")
			So(chapters[0].StartPage, ShouldEqual, 1)
			So(chapters[1].EndPage, ShouldEqual, 25)
		})

		Convey("页码范围重叠应报错", func() {
			provider := &fakeProvider{response: `{
				"chapters": [
					{"title": "第一章", "summary": "a", "start_page": 1, "end_page": 10},
					{"title": "第二章", "summary": "b", "start_page": 8, "end_page": 20}
				]
			}`}
			segmenter := NewBookSegmenter(provider)

			_, err := segmenter.Segment(context.Background(), "[Page 1] ...")
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "overlaps")
		})

		Convey("非法页码范围应报错", func() {
			provider := &fakeProvider{response: `{"chapters": [{"title": "第一章", "summary": "a", "start_page": 5, "end_page": 3}]}`}
			segmenter := NewBookSegmenter(provider)

			_, err := segmenter.Segment(context.Background(), "[Page 1] ...")
			So(err, ShouldNotBeNil)
		})
	})
}

func TestPageAnalyzer_Analyze(t *testing.T) {
	Convey("PageAnalyzer.Analyze 能解析单页知识", t, func() {
		Convey("正常 JSON 输出", func() {
			provider := &fakeProvider{response: `{"summary": "主角初次登场", "entities": ["赵硕", "学馆"], "themes": ["成长"], "has_relevant_content": true}`}
			analyzer := NewPageAnalyzer(provider)

			knowledge, err := analyzer.Analyze(context.Background(), 3, "第三页的文本")
			So(err, ShouldBeNil)
			So(knowledge.Page, ShouldEqual, 3)
			So(knowledge.Summary, ShouldContainSubstring, "登场")
			So(len(knowledge.Entities), ShouldEqual, 2)
			So(knowledge.HasRelevantContent, ShouldBeTrue)
		})

		Convey("非正文页标记为无内容", func() {
			provider := &fakeProvider{response: `{"summary": "目录页", "entities": [], "themes": [], "has_relevant_content": false}`}
			analyzer := NewPageAnalyzer(provider)

			knowledge, err := analyzer.Analyze(context.Background(), 1, "目录……1\n第一章……3")
			So(err, ShouldBeNil)
			So(knowledge.HasRelevantContent, ShouldBeFalse)
		})

		Convey("非法页码应报错", func() {
			analyzer := NewPageAnalyzer(&fakeProvider{})
			_, err := analyzer.Analyze(context.Background(), 0, "文本")
			So(err, ShouldNotBeNil)
		})
	})
}

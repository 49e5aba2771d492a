package booktools

import (
	"strings"
	"sync"

	"github.com/go-ego/gse"
)

var (
	segOnce sync.Once
	seg     gse.Segmenter
	segErr  error
)

func loadSegmenter() (*gse.Segmenter, error) {
	segOnce.Do(func() {
		segErr = seg.LoadDict()
	})
	if segErr != nil {
		return nil, segErr
	}
	return &seg, nil
}

// WordCount 统计文本的词数
// 中英混排文本用 gse 分词后计数，分词器加载失败时退回按空白切分
func WordCount(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}

	s, err := loadSegmenter()
	if err != nil {
		return len(strings.Fields(text))
	}

	count := 0
	for _, w := range s.Cut(text, true) {
		if strings.TrimSpace(w) != "" {
			count++
		}
	}
	return count
}

// RuneCount 统计文本的字符数（不含空白）
func RuneCount(text string) int {
	count := 0
	for _, r := range text {
		if r != ' ' && r != '\n' && r != '\t' && r != '\r' {
			count++
		}
	}
	return count
}

package booktools

import (
	"regexp"
	"strconv"
	"strings"
)

var pageMarkerPattern = regexp.MustCompile(`(?m)^\[Page (\d+)\]\s*$`)

// SplitPages 解析带 [Page N] 标记的文本，返回页码到该页文本的映射
func SplitPages(markedText string) map[int]string {
	pages := make(map[int]string)

	locs := pageMarkerPattern.FindAllStringSubmatchIndex(markedText, -1)
	for i, loc := range locs {
		page, err := strconv.Atoi(markedText[loc[2]:loc[3]])
		if err != nil || page < 1 {
			continue
		}
		start := loc[1]
		end := len(markedText)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		pages[page] = strings.TrimSpace(markedText[start:end])
	}
	return pages
}

// PageRange 从带 [Page N] 标记的文本中取出页码区间 [first, last] 的正文
// 区间内缺失的页被跳过
func PageRange(markedText string, first, last int) string {
	if first < 1 || last < first {
		return ""
	}

	pages := SplitPages(markedText)
	var b strings.Builder
	for page := first; page <= last; page++ {
		text, ok := pages[page]
		if !ok || text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}
	return b.String()
}

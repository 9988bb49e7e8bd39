package utils

import (
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// EnhanceHTMLContent 去掉图片标签，并给外链补全安全属性
func EnhanceHTMLContent(htmlStr string) string {
	if htmlStr == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return htmlStr
	}

	doc.Find("img").Remove()

	doc.Find("a").Each(func(i int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !IsHTTPURL(href) {
			// 非 http 链接只保留文字
			s.ReplaceWithHtml(html.EscapeString(s.Text()))
			return
		}
		s.SetAttr("target", "_blank")
		s.SetAttr("rel", "nofollow noopener noreferrer")
	})

	// goquery renders full document tags if missing, we just want the body content
	out, _ := doc.Find("body").Html()
	if out == "" {
		out, _ = doc.Html()
	}

	return strings.TrimSpace(out)
}

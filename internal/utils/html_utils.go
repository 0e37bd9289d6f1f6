package utils

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// EnhanceHTMLContent 为正文中的图片补上懒加载与防盗链属性
func EnhanceHTMLContent(htmlStr string) string {
	if htmlStr == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return htmlStr
	}

	images := doc.Find("img")
	if images.Length() == 0 {
		return htmlStr
	}
	images.Each(func(i int, s *goquery.Selection) {
		s.SetAttr("referrerpolicy", "no-referrer")
		s.SetAttr("loading", "lazy")
	})

	// goquery 会补全 html/body，只取 body 内容
	body, err := doc.Find("body").Html()
	if err != nil || body == "" {
		return htmlStr
	}
	return body
}

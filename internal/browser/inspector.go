package browser

import (
	"fmt"
	"strings"
)

// ElementInfo 资源分类所需的元素快照
// 所有字段采集失败时降级为空字符串,分类器按可用信号工作
type ElementInfo struct {
	Text        string // 元素文本
	ClassName   string // class属性
	IconSrc     string // 关联图标的src(子级img优先,父级img兜底)
	ContextText string // 周边上下文文本(父元素优先,前兄弟兜底)
	Selector    string // 回放定位用的CSS选择器
}

// Inspect 采集元素的分类信号
// 页面元素随时可能失效,任何单项采集失败都不阻断整体
func Inspect(el ElementHandle) ElementInfo {
	info := ElementInfo{}

	if text, err := el.Text(); err == nil {
		info.Text = text
	}
	if class, err := el.Attribute("class"); err == nil {
		info.ClassName = class
	}
	info.IconSrc = findIconSrc(el)
	info.ContextText = findContextText(el, info.Text)
	info.Selector = GenerateSelector(info.Text, info.ClassName)

	return info
}

// findIconSrc 查找元素关联的图标地址
// 优先找元素内部的img,找不到再看父元素内的img
func findIconSrc(el ElementHandle) string {
	if img, err := el.Child("img"); err == nil {
		if src, err := img.Attribute("src"); err == nil && src != "" {
			return src
		}
	}
	parent, err := el.Parent()
	if err != nil {
		return ""
	}
	if img, err := parent.Child("img"); err == nil {
		if src, err := img.Attribute("src"); err == nil {
			return src
		}
	}
	return ""
}

// findContextText 查找元素周边的上下文文本
// 按钮文本往往只有"下载"二字,资源名藏在父容器或前兄弟元素里
func findContextText(el ElementHandle, ownText string) string {
	if parent, err := el.Parent(); err == nil {
		if text, err := parent.Text(); err == nil {
			text = strings.TrimSpace(text)
			if len([]rune(text)) > len([]rune(ownText)) && len([]rune(text)) > 10 {
				return text
			}
		}
	}
	if prev, err := el.Previous(); err == nil {
		if text, err := prev.Text(); err == nil {
			text = strings.TrimSpace(text)
			if len([]rune(text)) > 5 {
				return text
			}
		}
	}
	return ""
}

// GenerateSelector 生成回放定位用的CSS选择器
// 优先使用class组合,没有class时退化为按钮文本匹配
func GenerateSelector(text, className string) string {
	if className != "" {
		classes := strings.Fields(className)
		stable := make([]string, 0, len(classes))
		for _, cls := range classes {
			// 跳过激活态等瞬时class,它们在回放时可能已不存在
			if cls == "is-active" || cls == "is-focus" || cls == "hover" {
				continue
			}
			stable = append(stable, cls)
		}
		if len(stable) > 0 {
			return "." + strings.Join(stable, ".")
		}
	}
	if text != "" {
		return fmt.Sprintf("text=%s", text)
	}
	return ""
}

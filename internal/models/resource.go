package models

import (
	"fmt"
	"strings"
)

// ResourceType 资源类型
type ResourceType string

const (
	ResourcePDF          ResourceType = "pdf"          // PDF文档
	ResourcePPT          ResourceType = "ppt"          // PPT课件
	ResourceVideo        ResourceType = "video"        // 视频
	ResourceAudio        ResourceType = "audio"        // 音频
	ResourceSB3          ResourceType = "sb3"          // Scratch项目文件
	ResourceZip          ResourceType = "zip"          // ZIP压缩包
	ResourceArchive      ResourceType = "archive"      // 其他压缩包(rar等)
	ResourceDocument     ResourceType = "document"     // Word文档
	ResourceSpreadsheet  ResourceType = "spreadsheet"  // 表格
	ResourceImage        ResourceType = "image"        // 图片
	ResourceDownloadable ResourceType = "downloadable" // 通用可下载资源(教辅等)
	ResourceUnknown      ResourceType = "unknown"      // 未识别
)

// DownloadMethod 下载方式
type DownloadMethod string

const (
	MethodDirect       DownloadMethod = "direct"        // 直接下载(有下载按钮)
	MethodPreviewPDF   DownloadMethod = "preview_pdf"   // PDF预览解析下载
	MethodPreviewVideo DownloadMethod = "preview_video" // 视频预览(暂不支持)
	MethodPreviewPPT   DownloadMethod = "preview_ppt"   // PPT预览(暂不支持)
	MethodPreviewSB3   DownloadMethod = "preview_sb3"   // SB3预览(暂不支持)
	MethodPreview      DownloadMethod = "preview"       // 通用预览
	MethodUnknown      DownloadMethod = "unknown"       // 未识别
)

// validResourceTypes 合法资源类型集合,构造时校验用
var validResourceTypes = map[ResourceType]bool{
	ResourcePDF: true, ResourcePPT: true, ResourceVideo: true,
	ResourceAudio: true, ResourceSB3: true, ResourceZip: true,
	ResourceArchive: true, ResourceDocument: true, ResourceSpreadsheet: true,
	ResourceImage: true, ResourceDownloadable: true, ResourceUnknown: true,
}

// validDownloadMethods 合法下载方式集合
var validDownloadMethods = map[DownloadMethod]bool{
	MethodDirect: true, MethodPreviewPDF: true, MethodPreviewVideo: true,
	MethodPreviewPPT: true, MethodPreviewSB3: true, MethodPreview: true,
	MethodUnknown: true,
}

// Validate 校验资源类型合法性
func (t ResourceType) Validate() error {
	if !validResourceTypes[t] {
		return fmt.Errorf("未知的资源类型: %q", string(t))
	}
	return nil
}

// Validate 校验下载方式合法性
func (m DownloadMethod) Validate() error {
	if !validDownloadMethods[m] {
		return fmt.Errorf("未知的下载方式: %q", string(m))
	}
	return nil
}

// TabPathSeparator Tab路径拼接分隔符
const TabPathSeparator = " > "

// TabPath Tab层级路径,从外层到内层(如 ["课前预习", "视频"])
type TabPath []string

// Join 拼接为单个字符串,用于去重键和记录持久化
func (p TabPath) Join() string {
	return strings.Join(p, TabPathSeparator)
}

// Clone 复制一份路径,避免共享底层数组
func (p TabPath) Clone() TabPath {
	dst := make(TabPath, len(p))
	copy(dst, p)
	return dst
}

// ResourceDescriptor 资源描述符
// 分类器的输出,描述一个可下载资源及其获取方式,分类完成后不再修改
type ResourceDescriptor struct {
	// 元素信息
	ElementText string            `json:"element_text"` // 元素文本(截断至200字符)
	Selector    string            `json:"selector"`     // 元素定位选择器
	Attributes  map[string]string `json:"attributes"`   // 元素属性快照(class, icon等)

	// 分类结果
	ResourceType   ResourceType   `json:"resource_type"`   // 资源类型
	DownloadMethod DownloadMethod `json:"download_method"` // 下载方式
	FileName       string         `json:"file_name"`       // 提取的文件名

	// 来源位置
	TabPath TabPath `json:"tab_path"` // 所在Tab路径
}

// NewResourceDescriptor 创建资源描述符,拒绝非法的类型和下载方式
func NewResourceDescriptor(
	elementText string,
	selector string,
	attributes map[string]string,
	resourceType ResourceType,
	downloadMethod DownloadMethod,
	fileName string,
	tabPath TabPath,
) (*ResourceDescriptor, error) {
	if err := resourceType.Validate(); err != nil {
		return nil, err
	}
	if err := downloadMethod.Validate(); err != nil {
		return nil, err
	}
	if attributes == nil {
		attributes = make(map[string]string)
	}
	if runes := []rune(elementText); len(runes) > 200 {
		elementText = string(runes[:200])
	}

	return &ResourceDescriptor{
		ElementText:    elementText,
		Selector:       selector,
		Attributes:     attributes,
		ResourceType:   resourceType,
		DownloadMethod: downloadMethod,
		FileName:       fileName,
		TabPath:        tabPath.Clone(),
	}, nil
}

// DedupKey 去重键: (元素文本, 选择器, Tab路径)
func (d *ResourceDescriptor) DedupKey() string {
	return d.ElementText + "\x00" + d.Selector + "\x00" + d.TabPath.Join()
}

package detector

import (
	"testing"

	"github.com/RecoveryAshes/TabResFetch/internal/browser"
	"github.com/RecoveryAshes/TabResFetch/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		className   string
		iconSrc     string
		contextText string
		want        models.ResourceType
	}{
		{"扩展名-mp4", "第1课导入.mp4", "", "", "", models.ResourceVideo},
		{"扩展名-pdf", "讲义最终版.PDF", "", "", "", models.ResourcePDF},
		{"扩展名-sb3", "作品_示例.sb3", "", "", "", models.ResourceSB3},
		{"扩展名-rar归档", "备份.rar", "", "", "", models.ResourceArchive},
		{"扩展名优先于关键词", "视频清单.pdf", "", "", "", models.ResourcePDF},
		{"关键词-课件", "第3课课件", "", "", "", models.ResourcePPT},
		{"关键词-资料", "配套资料", "", "", "", models.ResourcePDF},
		{"关键词-教辅", "教辅材料包", "", "", "", models.ResourceDownloadable},
		{"关键词-项目文件", "项目文件(学生版)", "", "", "", models.ResourceSB3},
		{"图标-ppt", "打开", "", "/static/icons/ppt.png", "", models.ResourcePPT},
		{"图标-video", "", "", "https://cdn.example.com/img/video.png", "", models.ResourceVideo},
		{"文本关键词优先于图标", "视频回放", "", "/static/icons/pdf.png", "", models.ResourceVideo},
		{"上下文关键词兜底", "下载", "", "", "第2课讲义合集", models.ResourcePDF},
		{"容器class-video_item", "播放", "video_item", "", "", models.ResourceVideo},
		{"容器class-item_ppt默认ppt", "打开", "item_ppt", "", "", models.ResourcePPT},
		{"item_ppt按上下文区分pdf", "打开", "item_ppt", "", "格式为pdf", models.ResourcePDF},
		{"item_ppt按上下文区分sb3", "打开", "item_ppt", "", "包含sb3源文件", models.ResourceSB3},
		{"resource_box判定为通用资源", "点击", "resource_box", "", "", models.ResourceDownloadable},
		{"无任何信号未知", "确定", "", "", "", models.ResourceUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.text, tt.className, tt.iconSrc, tt.contextText)
			if got != tt.want {
				t.Errorf("期望 %s, 实际 %s", tt.want, got)
			}
		})
	}
}

func TestIdentifyMethod(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		rtype models.ResourceType
		want  models.DownloadMethod
	}{
		{"下载按钮直接下载", "下载", models.ResourcePDF, models.MethodDirect},
		{"预览PDF走解析", "预览", models.ResourcePDF, models.MethodPreviewPDF},
		{"播放视频走预览", "播放", models.ResourceVideo, models.MethodPreviewVideo},
		{"查看PPT走预览", "查看", models.ResourcePPT, models.MethodPreviewPPT},
		{"预览sb3", "预览", models.ResourceSB3, models.MethodPreviewSB3},
		{"预览其他类型通用预览", "预览", models.ResourceImage, models.MethodPreview},
		{"下载优先于预览", "预览下载", models.ResourcePDF, models.MethodDirect},
		{"无动作文本-zip直接下载", "程序包.zip", models.ResourceZip, models.MethodDirect},
		{"无动作文本-教辅直接下载", "教辅材料", models.ResourceDownloadable, models.MethodDirect},
		{"无动作文本-pdf默认预览", "第1课讲义", models.ResourcePDF, models.MethodPreview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IdentifyMethod(tt.text, tt.rtype)
			if got != tt.want {
				t.Errorf("期望 %s, 实际 %s", tt.want, got)
			}
		})
	}
}

func TestExtractFileName(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		rtype models.ResourceType
		want  string
	}{
		{"截到扩展名为止", "第3课讲义.pdf 2.5MB 预览", models.ResourcePDF, "第3课讲义.pdf"},
		{"多行取首个非按钮行", "下载\n配套课件\n预览", models.ResourcePPT, "配套课件"},
		{"纯按钮文本回退到类型", "下载", models.ResourceZip, "zip"},
		{"大写扩展名", "讲义.PDF", models.ResourcePDF, "讲义.PDF"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractFileName(tt.text, tt.rtype)
			if got != tt.want {
				t.Errorf("期望 %q, 实际 %q", tt.want, got)
			}
		})
	}
}

func TestIsTargetResource(t *testing.T) {
	tests := []struct {
		name  string
		info  browser.ElementInfo
		rtype models.ResourceType
		want  bool
	}{
		{"已分类资源保留", browser.ElementInfo{Text: "讲义.pdf"}, models.ResourcePDF, true},
		{"未知但有下载语义保留", browser.ElementInfo{Text: "导出名单"}, models.ResourceUnknown, true},
		{"未知且无下载语义丢弃", browser.ElementInfo{Text: "返回首页"}, models.ResourceUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTargetResource(tt.info, tt.rtype); got != tt.want {
				t.Errorf("期望 %v, 实际 %v", tt.want, got)
			}
		})
	}
}

func TestBuildDescriptor(t *testing.T) {
	t.Run("完整构建", func(t *testing.T) {
		info := browser.ElementInfo{
			Text:      "第3课讲义.pdf",
			ClassName: "file_btn",
			Selector:  ".file_btn",
		}
		desc := BuildDescriptor(info, models.TabPath{"课前", "资料"})
		if desc == nil {
			t.Fatal("期望构建出描述符")
		}
		if desc.ResourceType != models.ResourcePDF {
			t.Errorf("期望pdf类型, 实际 %s", desc.ResourceType)
		}
		if desc.FileName != "第3课讲义.pdf" {
			t.Errorf("文件名提取错误: %q", desc.FileName)
		}
		if desc.TabPath.Join() != "课前 > 资料" {
			t.Errorf("Tab路径错误: %q", desc.TabPath.Join())
		}
	})

	t.Run("非目标元素返回nil", func(t *testing.T) {
		info := browser.ElementInfo{Text: "返回", Selector: ".back_btn"}
		if desc := BuildDescriptor(info, models.TabPath{"资源"}); desc != nil {
			t.Errorf("导航元素不应生成描述符: %+v", desc)
		}
	})

	t.Run("按钮文本用上下文提取文件名", func(t *testing.T) {
		info := browser.ElementInfo{
			Text:        "下载",
			ContextText: "第2课配套资料合集",
			Selector:    ".file_btn",
		}
		desc := BuildDescriptor(info, models.TabPath{"资源"})
		if desc == nil {
			t.Fatal("期望构建出描述符")
		}
		if desc.FileName != "第2课配套资料合集" {
			t.Errorf("应从上下文提取文件名, 实际 %q", desc.FileName)
		}
	})
}

func TestDeduplicate(t *testing.T) {
	mk := func(text, selector string, tabPath models.TabPath) *models.ResourceDescriptor {
		desc, err := models.NewResourceDescriptor(text, selector, nil,
			models.ResourcePDF, models.MethodDirect, text, tabPath)
		if err != nil {
			t.Fatalf("创建描述符失败: %v", err)
		}
		return desc
	}

	input := []*models.ResourceDescriptor{
		mk("讲义.pdf", ".file_btn", models.TabPath{"课前"}),
		mk("讲义.pdf", ".file_btn", models.TabPath{"课前"}),
		mk("讲义.pdf", ".file_btn", models.TabPath{"课后"}),
		mk("课件.pptx", ".file_btn", models.TabPath{"课前"}),
	}

	result := Deduplicate(input)
	if len(result) != 3 {
		t.Fatalf("期望去重后3个, 实际 %d", len(result))
	}
	if result[0] != input[0] {
		t.Error("应保留首次出现的描述符")
	}
}

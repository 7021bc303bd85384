package detector

import (
	"strings"
	"time"

	"github.com/RecoveryAshes/TabResFetch/internal/browser"
	"github.com/RecoveryAshes/TabResFetch/internal/models"
	"github.com/RecoveryAshes/TabResFetch/internal/utils"
)

// Tab定位选择器,匹配Element UI的标签页结构
const (
	primaryTabSelector         = ".el-tabs__header.is-top .el-tabs__item"
	secondaryContainerSelector = ".tabmain.el-tabs.el-tabs--card.el-tabs--left, div.tabmain, .el-tabs__content .el-tabs"
	secondaryTabSelector       = ".el-tabs__item"
	disabledClass              = "is-disabled"
	activeClass                = "is-active"
)

// ExplorerConfig Tab遍历配置
type ExplorerConfig struct {
	// Whitelist 安全模式下允许激活的一级Tab名称关键词
	Whitelist []string

	// Blacklist 安全模式下禁止激活的Tab名称关键词,优先于白名单
	Blacklist []string

	// LandmarkSelector 页面结构地标,激活Tab前检查,消失则中止遍历
	LandmarkSelector string

	// Safe 是否启用安全模式(白名单+黑名单+地标检查)
	Safe bool

	// ClickWait 点击Tab后留给前端渲染的等待时长
	ClickWait time.Duration

	// SettleTimeout 等待页面稳定的超时
	SettleTimeout time.Duration
}

// DefaultExplorerConfig 默认遍历配置,名单来自目标平台的实际页面结构
func DefaultExplorerConfig() ExplorerConfig {
	return ExplorerConfig{
		Whitelist:        []string{"资源", "资料", "课件", "附件", "课前", "课中", "课后", "学习", "讲义", "素材"},
		Blacklist:        []string{"学员", "考勤", "作业", "批改", "统计", "班级", "评价", "数据", "设置", "管理", "报表", "分析", "考核", "签到"},
		LandmarkSelector: ".el-tree, .lesson-tree",
		Safe:             true,
		ClickWait:        700 * time.Millisecond,
		SettleTimeout:    10 * time.Second,
	}
}

// TabExplorer 两级Tab遍历器
// 逐个激活一级Tab及其下的二级Tab,在每个激活状态下做资源检测
type TabExplorer struct {
	ctrl   browser.Controller
	config ExplorerConfig
}

// NewTabExplorer 创建Tab遍历器
func NewTabExplorer(ctrl browser.Controller, config ExplorerConfig) *TabExplorer {
	return &TabExplorer{ctrl: ctrl, config: config}
}

// TabEligible 安全模式下的Tab准入判定
// 黑名单命中直接拒绝,白名单非空时必须命中白名单
func TabEligible(name string, whitelist, blacklist []string) bool {
	for _, kw := range blacklist {
		if strings.Contains(name, kw) {
			return false
		}
	}
	if len(whitelist) == 0 {
		return true
	}
	for _, kw := range whitelist {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

// ExploreAllTabs 遍历全部Tab并收集各Tab下的资源
// 返回 Tab路径 -> 资源描述符列表。单个Tab失败不中断遍历,
// 但地标消失(页面结构丢失)时立即返回已收集结果和ErrPageStructureLost
func (e *TabExplorer) ExploreAllTabs() (map[string][]*models.ResourceDescriptor, error) {
	results := make(map[string][]*models.ResourceDescriptor)

	tabs, err := e.ctrl.Elements(primaryTabSelector)
	if err != nil {
		return results, err
	}
	if len(tabs) == 0 {
		utils.Warn("页面上没有发现一级Tab")
		return results, nil
	}
	utils.Infof("发现 %d 个一级Tab", len(tabs))

	for i, tab := range tabs {
		name, err := tab.Text()
		if err != nil || name == "" {
			utils.Debugf("一级Tab[%d] 文本获取失败,跳过", i)
			continue
		}

		if e.config.Safe {
			if !TabEligible(name, e.config.Whitelist, e.config.Blacklist) {
				utils.Infof("安全模式跳过Tab: %s", name)
				continue
			}
			if ok := e.checkLandmark(); !ok {
				utils.Errorf("页面结构地标消失,中止遍历(已处理 %d 个Tab)", i)
				return results, models.ErrPageStructureLost
			}
		}

		if disabled, _ := e.tabHasClass(tab, disabledClass); disabled {
			utils.Debugf("Tab %q 处于禁用状态,跳过", name)
			continue
		}

		if err := e.activateTab(tab); err != nil {
			utils.Warnf("激活Tab %q 失败: %v", name, err)
			continue
		}

		path := models.TabPath{name}
		if err := e.exploreSecondary(path, results); err != nil {
			return results, err
		}
	}

	return results, nil
}

// exploreSecondary 在已激活的一级Tab下遍历二级Tab
// 没有二级Tab结构时直接在一级Tab上检测资源。
// 安全模式下每次二级点击前同样检查地标,丢失时中止并返回ErrPageStructureLost
func (e *TabExplorer) exploreSecondary(parent models.TabPath, results map[string][]*models.ResourceDescriptor) error {
	containers, err := e.ctrl.Elements(secondaryContainerSelector)
	if err != nil || len(containers) == 0 {
		e.collectTab(parent, results)
		return nil
	}

	subTabs, err := containers[0].Children(secondaryTabSelector)
	if err != nil || len(subTabs) == 0 {
		e.collectTab(parent, results)
		return nil
	}
	utils.Infof("Tab[%s] 下发现 %d 个二级Tab", parent.Join(), len(subTabs))

	collected := false
	for i, sub := range subTabs {
		name, err := sub.Text()
		if err != nil || name == "" {
			utils.Debugf("二级Tab[%d] 文本获取失败,跳过", i)
			continue
		}

		// 安全模式下二级Tab只做黑名单检查,白名单只约束一级入口
		if e.config.Safe && !TabEligible(name, nil, e.config.Blacklist) {
			utils.Infof("安全模式跳过二级Tab: %s", name)
			continue
		}
		if disabled, _ := e.tabHasClass(sub, disabledClass); disabled {
			continue
		}
		if e.config.Safe {
			if ok := e.checkLandmark(); !ok {
				utils.Errorf("页面结构地标消失,中止二级遍历: %s", parent.Join())
				return models.ErrPageStructureLost
			}
		}

		if err := e.activateTab(sub); err != nil {
			utils.Warnf("激活二级Tab %q 失败: %v", name, err)
			continue
		}

		path := append(parent.Clone(), name)
		e.collectTab(path, results)
		collected = true
	}

	if !collected {
		e.collectTab(parent, results)
	}
	return nil
}

// collectTab 在当前激活状态下做资源检测并记录结果
func (e *TabExplorer) collectTab(path models.TabPath, results map[string][]*models.ResourceDescriptor) {
	descriptors := detectWithTabPath(e.ctrl, path)
	if len(descriptors) > 0 {
		results[path.Join()] = descriptors
	}
}

// detectWithTabPath 包一层方便测试替换
var detectWithTabPath = DetectResourcesInTab

// activateTab 激活Tab并等待内容渲染,已激活的Tab不重复点击
func (e *TabExplorer) activateTab(tab browser.ElementHandle) error {
	if active, _ := e.tabHasClass(tab, activeClass); !active {
		if err := tab.Click(); err != nil {
			return err
		}
	}
	if err := e.ctrl.WaitSettle(e.config.SettleTimeout); err != nil {
		return err
	}
	// Element UI的Tab切换有过渡动画,DOM稳定后再留一段渲染时间
	time.Sleep(e.config.ClickWait)
	return nil
}

func (e *TabExplorer) tabHasClass(tab browser.ElementHandle, class string) (bool, error) {
	attr, err := tab.Attribute("class")
	if err != nil {
		return false, err
	}
	return strings.Contains(attr, class), nil
}

// checkLandmark 检查页面结构地标是否仍然存在
func (e *TabExplorer) checkLandmark() bool {
	if e.config.LandmarkSelector == "" {
		return true
	}
	ok, err := e.ctrl.Has(e.config.LandmarkSelector)
	if err != nil {
		utils.Warnf("地标检查失败: %v", err)
		return false
	}
	return ok
}

package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/RecoveryAshes/TabResFetch/internal/browser"
	"github.com/RecoveryAshes/TabResFetch/internal/detector"
	"github.com/RecoveryAshes/TabResFetch/internal/download"
	"github.com/RecoveryAshes/TabResFetch/internal/models"
	"github.com/RecoveryAshes/TabResFetch/internal/utils"
)

// stopTimeout 停止阶段等待worker汇合的上限
const stopTimeout = 30 * time.Second

// Runner 资源抓取主流程编排
// 连接浏览器 -> 遍历Tab发现资源 -> 并发下载 -> 导出报告
type Runner struct {
	config    *Config
	lesson    models.LessonContext
	headerMgr *HeaderManager
}

// NewRunner 创建主流程编排器
func NewRunner(config *Config, lesson models.LessonContext, headerMgr *HeaderManager) *Runner {
	return &Runner{
		config:    config,
		lesson:    lesson,
		headerMgr: headerMgr,
	}
}

// Run 执行完整抓取流程,返回下载报告
// 页面结构丢失时带着已发现的资源继续下载,只放弃未遍历的部分
func (r *Runner) Run(ctx context.Context) (*models.DownloadReport, error) {
	startTime := time.Now()
	utils.Info("========== 开始资源抓取 ==========")

	// 阶段1: 连接浏览器
	ctrl, err := browser.NewRodController(browser.RodOptions{
		ControlURL: r.config.Browser.ControlURL,
		Headless:   r.config.Browser.Headless,
	})
	if err != nil {
		return nil, fmt.Errorf("初始化浏览器失败: %w", err)
	}
	defer func() {
		if closeErr := ctrl.Close(); closeErr != nil {
			utils.Warnf("关闭浏览器失败: %v", closeErr)
		}
	}()

	if err := ctrl.OpenPage(r.config.Browser.PageURL); err != nil {
		return nil, fmt.Errorf("打开课程页面失败: %w", err)
	}

	// 阶段2: 遍历Tab发现资源
	explorer := detector.NewTabExplorer(ctrl, r.config.ExplorerConfig())
	tabResults, exploreErr := explorer.ExploreAllTabs()
	if exploreErr != nil {
		if !errors.Is(exploreErr, models.ErrPageStructureLost) {
			return nil, fmt.Errorf("Tab遍历失败: %w", exploreErr)
		}
		utils.Warn("页面结构丢失,仅下载已发现的资源")
	}

	resources := flattenResources(tabResults)
	utils.Infof("共发现 %d 个资源,分布在 %d 个Tab", len(resources), len(tabResults))
	if len(resources) == 0 {
		report := &models.DownloadReport{GeneratedAt: time.Now()}
		return report, exploreErr
	}

	// 阶段3: 并发下载
	headers, err := r.headerMgr.GetHeaders()
	if err != nil {
		return nil, fmt.Errorf("准备HTTP请求头失败: %w", err)
	}
	utils.Debugf("HTTP请求头: %v", r.headerMgr.GetSafeHeaders())

	manager, err := download.NewManager(ctrl, r.config.Output.BaseDir, r.lesson, r.config.DownloadModelConfig(), headers)
	if err != nil {
		return nil, fmt.Errorf("创建下载管理器失败: %w", err)
	}
	if err := manager.Start(ctx); err != nil {
		return nil, err
	}

	manager.AddBatch(resources)
	if err := manager.WaitForCompletion(ctx); err != nil {
		utils.Warnf("等待下载完成被中断: %v", err)
	}
	if err := manager.Stop(stopTimeout); err != nil {
		utils.Warnf("停止下载管理器异常: %v", err)
	}

	// 阶段4: 导出报告
	report := manager.BuildReport()
	reportPath := filepath.Join(r.config.Output.BaseDir, models.ReportFileName)
	if err := manager.ExportReport(reportPath); err != nil {
		utils.Warnf("导出报告失败: %v", err)
	}

	stats := report.Statistics
	utils.Infof("========== 抓取完成: 成功 %d 失败 %d 耗时 %s ==========",
		stats.Completed, stats.Failed, time.Since(startTime).Round(time.Second))
	return report, exploreErr
}

// flattenResources 把按Tab分组的资源展平为任务列表
// 不可下载的方式也保留入队,让报告里留下明确的失败记录
func flattenResources(tabResults map[string][]*models.ResourceDescriptor) []*models.ResourceDescriptor {
	var resources []*models.ResourceDescriptor
	for _, descriptors := range tabResults {
		resources = append(resources, descriptors...)
	}
	return resources
}

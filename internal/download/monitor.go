package download

import (
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/RecoveryAshes/TabResFetch/internal/utils"
)

// defaultPerWorkerMB 单worker预估内存占用
// 浏览器下载和HTTP流式下载的缓冲加上页面交互的开销
const defaultPerWorkerMB = 256

// WorkerGuard 根据系统资源限制worker数量
// 内存紧张的机器上盲目开满worker会把浏览器挤崩,启动前按可用内存压一压
type WorkerGuard struct {
	perWorkerMB uint64
}

// NewWorkerGuard 创建资源守卫
func NewWorkerGuard() *WorkerGuard {
	return &WorkerGuard{perWorkerMB: defaultPerWorkerMB}
}

// RecommendWorkers 结合可用内存给出实际worker数
// 采样失败时保守地返回请求值,不让监控问题阻塞下载
func (g *WorkerGuard) RecommendWorkers(requested int) int {
	if requested < 1 {
		requested = 1
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		utils.Warnf("获取内存信息失败,按请求值使用 %d 个worker: %v", requested, err)
		return requested
	}

	availableMB := vm.Available / (1024 * 1024)
	affordable := int(availableMB / g.perWorkerMB)
	if affordable < 1 {
		affordable = 1
	}

	if affordable < requested {
		utils.Warnf("可用内存 %dMB 仅支持 %d 个worker(请求 %d),已自动降级",
			availableMB, affordable, requested)
		return affordable
	}
	return requested
}

// LogSnapshot 记录一次系统资源快照
func (g *WorkerGuard) LogSnapshot() {
	vm, err := mem.VirtualMemory()
	if err != nil {
		utils.Debugf("内存采样失败: %v", err)
		return
	}
	percents, err := cpu.Percent(200*time.Millisecond, false)
	cpuPercent := 0.0
	if err == nil && len(percents) > 0 {
		cpuPercent = percents[0]
	}
	utils.Infof("系统资源: CPU %.1f%% 内存 %.1f%% (可用 %dMB)",
		cpuPercent, vm.UsedPercent, vm.Available/(1024*1024))
}

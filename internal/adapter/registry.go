package adapter

import (
	"fmt"
	"sort"

	"VideoSuggest/internal/config"
	"VideoSuggest/internal/interfaces"
	"VideoSuggest/internal/model"

	"github.com/sirupsen/logrus"
)

// Factory 平台适配器工厂函数：入参为平台配置与日志实例
type Factory func(cfg *config.PlatformConfig, logger *logrus.Logger) interfaces.PlatformAdapter

// 全局工厂注册表，由各适配器包的 init 写入
var factoryRegistry = make(map[model.PlatformType]Factory)

// Register 供适配器 init 函数调用
func Register(platform model.PlatformType, factory Factory) {
	if factory == nil {
		panic(fmt.Sprintf("平台%s的工厂函数不能为nil", platform))
	}
	if _, exists := factoryRegistry[platform]; exists {
		logrus.Warnf("平台%s的适配器已注册，将覆盖原有实现", platform)
	}
	factoryRegistry[platform] = factory
}

// GetFactory 获取指定平台的工厂函数
func GetFactory(platform model.PlatformType) (Factory, bool) {
	factory, ok := factoryRegistry[platform]
	return factory, ok
}

// ListFactories 已注册工厂的平台列表（有序）
func ListFactories() []model.PlatformType {
	platforms := make([]model.PlatformType, 0, len(factoryRegistry))
	for p := range factoryRegistry {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}

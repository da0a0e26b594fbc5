package adapter

import (
	"fmt"
	"sort"

	"VideoSuggest/internal/config"
	"VideoSuggest/internal/interfaces"
	"VideoSuggest/internal/model"

	"github.com/sirupsen/logrus"
)

// PlatformRegistry 平台类型 -> 适配器实例；只初始化 sync.enabled_platforms 中且有配置的平台
type PlatformRegistry struct {
	logger   *logrus.Logger
	adapters map[model.PlatformType]interfaces.PlatformAdapter
}

func NewPlatformRegistry(cfg *config.Config, logger *logrus.Logger) *PlatformRegistry {
	r := &PlatformRegistry{
		logger:   logger,
		adapters: make(map[model.PlatformType]interfaces.PlatformAdapter),
	}
	r.initAdaptersFromFactories(cfg)
	return r
}

func (r *PlatformRegistry) initAdaptersFromFactories(cfg *config.Config) {
	r.logger.WithField("factory_platforms", ListFactories()).Debug("已注册的适配器工厂")

	for _, name := range cfg.Sync.EnabledPlatforms {
		platformType := model.PlatformType(name)
		log := r.logger.WithField("platform", name)

		platformCfg, ok := cfg.Platforms[name]
		if !ok {
			log.Error("平台已启用但缺少配置，跳过")
			continue
		}
		factory, ok := GetFactory(platformType)
		if !ok {
			log.Error("未找到对应的工厂函数（init未注册？）")
			continue
		}

		adapterIns := factory(&platformCfg, r.logger)
		if adapterIns == nil {
			log.Error("工厂函数返回nil适配器实例")
			continue
		}
		if adapterIns.GetType() != platformType {
			log.WithField("adapter_platform", adapterIns.GetType()).Error("适配器平台类型与配置不匹配")
			continue
		}

		r.adapters[platformType] = adapterIns
		log.Info("平台适配器初始化成功")
	}
}

// ListRegisteredPlatforms 已初始化的平台（有序）
func (r *PlatformRegistry) ListRegisteredPlatforms() []model.PlatformType {
	platforms := make([]model.PlatformType, 0, len(r.adapters))
	for p := range r.adapters {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}

// GetAdapter 获取适配器实例
func (r *PlatformRegistry) GetAdapter(platform model.PlatformType) (interfaces.PlatformAdapter, error) {
	adapterIns, ok := r.adapters[platform]
	if !ok {
		return nil, fmt.Errorf("%w: 平台%s未启用（已启用：%v）", model.ErrNotFound, platform, r.ListRegisteredPlatforms())
	}
	return adapterIns, nil
}

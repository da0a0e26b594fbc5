package model

import "time"

// PlatformRawVideo 所有视频平台的原始条目通用结构
type PlatformRawVideo struct {
	Platform    PlatformType // 来源平台
	VideoID     string       // 平台视频ID
	Title       string       // 标题
	PublishedAt string       // 平台返回的发布时间（RFC3339字符串）
}

// CatalogVideo 目录列表的返回结构，携带由“是否相关”票数推导出的状态
type CatalogVideo struct {
	Video
	RelatedVotes    int64 `json:"related_votes"`
	NotRelatedVotes int64 `json:"not_related_votes"`
	IsRelated       bool  `json:"is_related"`
}

// ParsePublishedAt 解析平台时间，解析失败返回 nil（排序时排在最后）
func (v *PlatformRawVideo) ParsePublishedAt() *time.Time {
	if v.PublishedAt == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v.PublishedAt)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

package model

import (
	"time"

	"gorm.io/datatypes"
)

// Video 对应 videos 表，由每日同步任务写入平台字段，管理员导入补全课程字段
type Video struct {
	VideoID          string     `gorm:"column:video_id;type:varchar(32);primaryKey;comment:平台视频ID" json:"video_id"`
	Title            string     `gorm:"column:title;type:varchar(512);comment:平台标题" json:"title"`
	PublishedAt      *time.Time `gorm:"column:published_at;index;comment:平台发布时间" json:"published_at"`
	MainLevel        *string    `gorm:"column:main_level;type:varchar(64);comment:主阶段" json:"main_level"`
	CommonSubLevel   *string    `gorm:"column:common_sub_level;type:varchar(64);comment:公共子阶段" json:"common_sub_level"`
	SpecializedLevel *string    `gorm:"column:specialized_level;type:varchar(64);comment:专业方向" json:"specialized_level"`
	LectureTitle     *string    `gorm:"column:lecture_title;type:varchar(512);comment:课程标题" json:"lecture_title"`
	LessonName       *string    `gorm:"column:lesson_name;type:varchar(512);comment:课时名称" json:"lesson_name"`
	Batch            *time.Time `gorm:"column:batch;comment:导入批次日期" json:"batch"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime;comment:创建时间" json:"created_at"`
}

func (Video) TableName() string { return "videos" }

// 以下四张建议表结构相同，仅文本列名不同；读写统一走 Kind 描述符，这里的结构体只用于建表
type TitleSuggestion struct {
	ID            string    `gorm:"column:id;type:varchar(36);primaryKey"`
	VideoID       string    `gorm:"column:video_id;type:varchar(32);not null;index"`
	TitleText     string    `gorm:"column:title_text;type:text;not null"`
	ApprovalCount int64     `gorm:"column:approval_count;not null;default:0"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
}

type DescriptionSuggestion struct {
	ID              string    `gorm:"column:id;type:varchar(36);primaryKey"`
	VideoID         string    `gorm:"column:video_id;type:varchar(32);not null;index"`
	DescriptionText string    `gorm:"column:description_text;type:text;not null"`
	ApprovalCount   int64     `gorm:"column:approval_count;not null;default:0"`
	CreatedAt       time.Time `gorm:"column:created_at;not null"`
}

type LessonNameSuggestion struct {
	ID             string    `gorm:"column:id;type:varchar(36);primaryKey"`
	VideoID        string    `gorm:"column:video_id;type:varchar(32);not null;index"`
	LessonNameText string    `gorm:"column:lesson_name_text;type:text;not null"`
	ApprovalCount  int64     `gorm:"column:approval_count;not null;default:0"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
}

type LecturerSuggestion struct {
	ID               string    `gorm:"column:id;type:varchar(36);primaryKey"`
	VideoID          string    `gorm:"column:video_id;type:varchar(32);not null;index"`
	LecturerNameText string    `gorm:"column:lecturer_name_text;type:text;not null"`
	ApprovalCount    int64     `gorm:"column:approval_count;not null;default:0"`
	CreatedAt        time.Time `gorm:"column:created_at;not null"`
}

// RelatedSuggestion “是否相关”二选一选项，每个视频每个取值最多一行，首次投票时才创建
type RelatedSuggestion struct {
	ID            string    `gorm:"column:id;type:varchar(36);primaryKey" json:"id"`
	VideoID       string    `gorm:"column:video_id;type:varchar(32);not null;uniqueIndex:uq_related_video_option" json:"video_id"`
	IsRelated     bool      `gorm:"column:is_related;not null;uniqueIndex:uq_related_video_option" json:"is_related"`
	ApprovalCount int64     `gorm:"column:approval_count;not null;default:0" json:"approval_count"`
	CreatedAt     time.Time `gorm:"column:created_at;not null" json:"created_at"`
}

func (TitleSuggestion) TableName() string       { return KindTitle.Table }
func (DescriptionSuggestion) TableName() string { return KindDescription.Table }
func (LessonNameSuggestion) TableName() string  { return KindLessonName.Table }
func (LecturerSuggestion) TableName() string    { return KindLecturer.Table }
func (RelatedSuggestion) TableName() string     { return KindRelated.Table }

// 投票流水表：(建议ID, voter_hash) 唯一，是“一人一票”的最终裁决点
type TitleVote struct {
	ID                string    `gorm:"column:id;type:varchar(36);primaryKey"`
	TitleSuggestionID string    `gorm:"column:title_suggestion_id;type:varchar(36);not null;uniqueIndex:uq_title_vote"`
	VoterHash         string    `gorm:"column:voter_hash;type:varchar(128);not null;uniqueIndex:uq_title_vote"`
	CreatedAt         time.Time `gorm:"column:created_at;not null"`
}

type DescriptionVote struct {
	ID                      string    `gorm:"column:id;type:varchar(36);primaryKey"`
	DescriptionSuggestionID string    `gorm:"column:description_suggestion_id;type:varchar(36);not null;uniqueIndex:uq_description_vote"`
	VoterHash               string    `gorm:"column:voter_hash;type:varchar(128);not null;uniqueIndex:uq_description_vote"`
	CreatedAt               time.Time `gorm:"column:created_at;not null"`
}

type LessonNameVote struct {
	ID                     string    `gorm:"column:id;type:varchar(36);primaryKey"`
	LessonNameSuggestionID string    `gorm:"column:lesson_name_suggestion_id;type:varchar(36);not null;uniqueIndex:uq_lesson_name_vote"`
	VoterHash              string    `gorm:"column:voter_hash;type:varchar(128);not null;uniqueIndex:uq_lesson_name_vote"`
	CreatedAt              time.Time `gorm:"column:created_at;not null"`
}

type LecturerVote struct {
	ID                   string    `gorm:"column:id;type:varchar(36);primaryKey"`
	LecturerSuggestionID string    `gorm:"column:lecturer_suggestion_id;type:varchar(36);not null;uniqueIndex:uq_lecturer_vote"`
	VoterHash            string    `gorm:"column:voter_hash;type:varchar(128);not null;uniqueIndex:uq_lecturer_vote"`
	CreatedAt            time.Time `gorm:"column:created_at;not null"`
}

type RelatedVote struct {
	ID                  string    `gorm:"column:id;type:varchar(36);primaryKey"`
	RelatedSuggestionID string    `gorm:"column:related_suggestion_id;type:varchar(36);not null;uniqueIndex:uq_related_vote"`
	VoterHash           string    `gorm:"column:voter_hash;type:varchar(128);not null;uniqueIndex:uq_related_vote"`
	CreatedAt           time.Time `gorm:"column:created_at;not null"`
}

func (TitleVote) TableName() string       { return KindTitle.VoteTable }
func (DescriptionVote) TableName() string { return KindDescription.VoteTable }
func (LessonNameVote) TableName() string  { return KindLessonName.VoteTable }
func (LecturerVote) TableName() string    { return KindLecturer.VoteTable }
func (RelatedVote) TableName() string     { return KindRelated.VoteTable }

// SuggestionRequest 客户端幂等键 -> 已创建建议的映射，用于消除重复投递导致的重复建议
type SuggestionRequest struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;type:varchar(128);primaryKey"`
	Kind           string    `gorm:"column:kind;type:varchar(32);not null"`
	SuggestionID   string    `gorm:"column:suggestion_id;type:varchar(36);not null"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
}

func (SuggestionRequest) TableName() string { return "suggestion_requests" }

// SyncRun 每次视频平台同步的执行记录
type SyncRun struct {
	ID         uint64         `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Platform   string         `gorm:"column:platform;type:varchar(32);not null;index" json:"platform"`
	Status     string         `gorm:"column:status;type:varchar(16);not null" json:"status"` // running/success/failed
	Fetched    int            `gorm:"column:fetched;not null;default:0" json:"fetched"`
	Details    datatypes.JSON `gorm:"column:details" json:"details"`
	StartedAt  time.Time      `gorm:"column:started_at;not null" json:"started_at"`
	FinishedAt *time.Time     `gorm:"column:finished_at" json:"finished_at"`
}

func (SyncRun) TableName() string { return "sync_runs" }

// AllModels 按依赖顺序返回需要迁移的表
func AllModels() []interface{} {
	return []interface{}{
		&Video{},
		&TitleSuggestion{}, &TitleVote{},
		&DescriptionSuggestion{}, &DescriptionVote{},
		&LessonNameSuggestion{}, &LessonNameVote{},
		&LecturerSuggestion{}, &LecturerVote{},
		&RelatedSuggestion{}, &RelatedVote{},
		&SuggestionRequest{},
		&SyncRun{},
	}
}

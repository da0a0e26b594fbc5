package model

import (
	"fmt"
	"time"
)

// Kind 建议类型描述符：四类文本建议与“是否相关”共用同一套投票/计数逻辑，只是表名列名不同
type Kind struct {
	Name       string // 路由与任务中使用的名称，如 title / lesson-name
	Table      string // 建议表
	TextColumn string // 文本列，related 为空
	VoteTable  string // 投票流水表
	VoteFK     string // 投票流水表中指向建议的列
}

var (
	KindTitle = Kind{
		Name: "title", Table: "title_suggestions", TextColumn: "title_text",
		VoteTable: "title_votes", VoteFK: "title_suggestion_id",
	}
	KindDescription = Kind{
		Name: "description", Table: "description_suggestions", TextColumn: "description_text",
		VoteTable: "description_votes", VoteFK: "description_suggestion_id",
	}
	KindLessonName = Kind{
		Name: "lesson-name", Table: "lesson_name_suggestions", TextColumn: "lesson_name_text",
		VoteTable: "lesson_name_votes", VoteFK: "lesson_name_suggestion_id",
	}
	KindLecturer = Kind{
		Name: "lecturer", Table: "lecturer_suggestions", TextColumn: "lecturer_name_text",
		VoteTable: "lecturer_votes", VoteFK: "lecturer_suggestion_id",
	}
	KindRelated = Kind{
		Name: "related", Table: "related_suggestions",
		VoteTable: "related_votes", VoteFK: "related_suggestion_id",
	}
)

// TextKinds 可由用户提交文本的建议类型
var TextKinds = []Kind{KindTitle, KindDescription, KindLessonName, KindLecturer}

// ParseKind 按名称查找文本建议类型；related 不接受文本提交，这里不返回
func ParseKind(name string) (Kind, error) {
	for _, k := range TextKinds {
		if k.Name == name {
			return k, nil
		}
	}
	return Kind{}, fmt.Errorf("%w: 未知的建议类型 %q", ErrValidation, name)
}

// IsText 是否为文本建议
func (k Kind) IsText() bool { return k.TextColumn != "" }

// Suggestion 文本建议的统一读模型
type Suggestion struct {
	ID            string    `gorm:"column:id" json:"id"`
	VideoID       string    `gorm:"column:video_id" json:"video_id"`
	Text          string    `gorm:"column:text" json:"text"`
	ApprovalCount int64     `gorm:"column:approval_count" json:"approval_count"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
}

// VoteOutcome 投票结果；AlreadyVoted 是正常业务结果，不是错误
type VoteOutcome int

const (
	VoteAccepted VoteOutcome = iota
	VoteAlreadyVoted
)

func (o VoteOutcome) String() string {
	if o == VoteAccepted {
		return "accepted"
	}
	return "already_voted"
}

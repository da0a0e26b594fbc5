package model

import (
	"fmt"
	"time"
)

// MainLevel 主阶段
type MainLevel string

const (
	MainLevelPreparatory  MainLevel = "التمهيدية"
	MainLevelIntermediate MainLevel = "المتوسطة"
	MainLevelSpecialized  MainLevel = "التخصصية"
)

// CommonSubLevel 公共子阶段
type CommonSubLevel string

const (
	CommonSubLevel1 CommonSubLevel = "المستوى الأول"
	CommonSubLevel2 CommonSubLevel = "المستوى الثاني"
	CommonSubLevel3 CommonSubLevel = "المستوى الثالث"
	CommonSubLevel4 CommonSubLevel = "المستوى الرابع"
)

// SpecializedLevel 专业方向
type SpecializedLevel string

const (
	SpecializedCreed        SpecializedLevel = "العقيدة"
	SpecializedTafsirHadith SpecializedLevel = "التفسير والحديث"
	SpecializedFiqh         SpecializedLevel = "الفقه وأصوله"
	SpecializedArabic       SpecializedLevel = "اللغة العربية"
)

var (
	mainLevels        = map[MainLevel]bool{MainLevelPreparatory: true, MainLevelIntermediate: true, MainLevelSpecialized: true}
	commonSubLevels   = map[CommonSubLevel]bool{CommonSubLevel1: true, CommonSubLevel2: true, CommonSubLevel3: true, CommonSubLevel4: true}
	specializedLevels = map[SpecializedLevel]bool{SpecializedCreed: true, SpecializedTafsirHadith: true, SpecializedFiqh: true, SpecializedArabic: true}
)

// VideoInfo 管理员导入的课程元数据
type VideoInfo struct {
	VideoID          string            `json:"video_id"`
	MainLevel        *MainLevel        `json:"main_level,omitempty"`
	CommonSubLevel   *CommonSubLevel   `json:"common_sub_level,omitempty"`
	SpecializedLevel *SpecializedLevel `json:"specialized_level,omitempty"`
	LectureTitle     *string           `json:"lecture_title,omitempty"`
	LessonName       *string           `json:"lesson_name,omitempty"`
	Batch            *time.Time        `json:"batch,omitempty"`
}

// Validate 校验枚举取值
func (v *VideoInfo) Validate() error {
	if v.VideoID == "" {
		return fmt.Errorf("%w: video_id 不能为空", ErrValidation)
	}
	if v.MainLevel != nil && !mainLevels[*v.MainLevel] {
		return fmt.Errorf("%w: 未知的 main_level %q", ErrValidation, *v.MainLevel)
	}
	if v.CommonSubLevel != nil && !commonSubLevels[*v.CommonSubLevel] {
		return fmt.Errorf("%w: 未知的 common_sub_level %q", ErrValidation, *v.CommonSubLevel)
	}
	if v.SpecializedLevel != nil && !specializedLevels[*v.SpecializedLevel] {
		return fmt.Errorf("%w: 未知的 specialized_level %q", ErrValidation, *v.SpecializedLevel)
	}
	return nil
}

// ToVideo 转换为数据库模型
func (v *VideoInfo) ToVideo() *Video {
	out := &Video{
		VideoID:      v.VideoID,
		LectureTitle: v.LectureTitle,
		LessonName:   v.LessonName,
		Batch:        v.Batch,
	}
	if v.MainLevel != nil {
		s := string(*v.MainLevel)
		out.MainLevel = &s
	}
	if v.CommonSubLevel != nil {
		s := string(*v.CommonSubLevel)
		out.CommonSubLevel = &s
	}
	if v.SpecializedLevel != nil {
		s := string(*v.SpecializedLevel)
		out.SpecializedLevel = &s
	}
	return out
}

package model

import "errors"

var (
	// ErrValidation 调用方输入不合法，直接返回 400，不入队
	ErrValidation = errors.New("参数校验失败")
	// ErrNotFound 引用的视频或建议不存在
	ErrNotFound = errors.New("记录不存在")
)

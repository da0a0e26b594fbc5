package queue

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"VideoSuggest/internal/model"

	"github.com/bytedance/sonic"
)

// MarkProcessing 标记任务开始处理
func (m *Manager) MarkProcessing(ctx context.Context, job *Job) error {
	return m.setStatus(ctx, job, model.JobStatusProcessing, nil, "")
}

// MarkFinished 保存任务结果
func (m *Manager) MarkFinished(ctx context.Context, job *Job, result interface{}) error {
	raw, err := sonic.Marshal(result)
	if err != nil {
		return fmt.Errorf("序列化任务结果失败: %w", err)
	}
	return m.setStatus(ctx, job, model.JobStatusFinished, raw, "")
}

// MarkFailed 以指定状态（failed/retrying/dead）记录错误信息
func (m *Manager) MarkFailed(ctx context.Context, job *Job, status string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return m.setStatus(ctx, job, status, nil, msg)
}

func (m *Manager) setStatus(ctx context.Context, job *Job, status string, result []byte, errMsg string) error {
	key := m.statusKey(job.ID)
	cmd := m.client.B().Hset().Key(key).FieldValue().
		FieldValue("id", job.ID).
		FieldValue("type", job.Type).
		FieldValue("status", status).
		FieldValue("attempts", strconv.Itoa(job.Attempts)).
		FieldValue("error", errMsg).
		FieldValue("updated_at", m.now().UTC().Format(time.RFC3339Nano))
	if result != nil {
		cmd = cmd.FieldValue("result", string(result))
	}
	if err := m.client.Do(ctx, cmd.Build()).Error(); err != nil {
		return fmt.Errorf("更新任务状态失败: %w", err)
	}
	if err := m.client.Do(ctx, m.client.B().Expire().Key(key).
		Seconds(int64(m.statusExpiry/time.Second)).Build()).Error(); err != nil {
		return fmt.Errorf("设置任务状态过期时间失败: %w", err)
	}
	return nil
}

// GetStatus 读取任务状态
func (m *Manager) GetStatus(ctx context.Context, id string) (*Status, error) {
	fields, err := m.client.Do(ctx, m.client.B().Hgetall().Key(m.statusKey(id)).Build()).AsStrMap()
	if err != nil {
		return nil, fmt.Errorf("读取任务状态失败: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}

	st := &Status{
		ID:     fields["id"],
		Type:   fields["type"],
		Status: fields["status"],
		Error:  fields["error"],
	}
	st.Attempts, _ = strconv.Atoi(fields["attempts"])
	if r := fields["result"]; r != "" {
		st.Result = []byte(r)
	}
	if t, err := time.Parse(time.RFC3339Nano, fields["updated_at"]); err == nil {
		st.UpdatedAt = t
	}
	return st, nil
}

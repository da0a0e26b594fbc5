package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"VideoSuggest/internal/model"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/rueidis"
	"github.com/sirupsen/logrus"
)

const (
	// DefaultStatusExpiry 任务状态在 Redis 中的默认保留时长
	DefaultStatusExpiry = 24 * time.Hour
	// DefaultLeaseTTL 消费者租约时长，超过该时长未续约视为进程已退出
	DefaultLeaseTTL = 30 * time.Second
)

var (
	// ErrJobNotFound 任务状态不存在（未入队或已过期）
	ErrJobNotFound = errors.New("任务不存在或已过期")
	// ErrBadPayload 队列中的数据无法解析，已被丢弃
	ErrBadPayload = errors.New("任务数据无法解析")
)

// Job 队列中的一个任务，参数只包含可序列化的基础类型
type Job struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Args       json.RawMessage `json:"args"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// Delivery 一次出队投递；payload 为出队时的原始字符串，确认时按它从 processing 列表删除
type Delivery struct {
	Job     *Job
	payload string
}

// Status 任务状态，供 GET /jobs/:id 查询
type Status struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	Attempts  int             `json:"attempts"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Manager 基于 Redis 列表的可靠队列，至少投递一次：
// pending --LMOVE--> processing:<consumer> --LREM--> 完成；失败重试的任务暂存在 delayed 有序集合中，
// 到期后再回到 pending。每个 Manager 是一个独立的消费者，拥有自己的 processing 列表和租约；
// 只有租约过期（进程崩溃或失联）的消费者遗留的任务才会被 Recover 放回 pending。
type Manager struct {
	client       rueidis.Client
	name         string
	consumerID   string
	statusExpiry time.Duration
	leaseTTL     time.Duration
	logger       *logrus.Logger
	now          func() time.Time
}

// Option 队列管理器可选项
type Option func(*Manager)

// WithLeaseTTL 设置消费者租约时长
func WithLeaseTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.leaseTTL = ttl
		}
	}
}

// NewManager 创建队列管理器，每次调用生成新的消费者ID
func NewManager(client rueidis.Client, name string, statusExpiry time.Duration, logger *logrus.Logger, opts ...Option) *Manager {
	if statusExpiry <= 0 {
		statusExpiry = DefaultStatusExpiry
	}
	m := &Manager{
		client:       client,
		name:         name,
		consumerID:   uuid.NewString(),
		statusExpiry: statusExpiry,
		leaseTTL:     DefaultLeaseTTL,
		logger:       logger,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ConsumerID 当前消费者ID
func (m *Manager) ConsumerID() string { return m.consumerID }

// LeaseTTL 租约时长，续约间隔应明显小于它
func (m *Manager) LeaseTTL() time.Duration { return m.leaseTTL }

func (m *Manager) pendingKey() string   { return fmt.Sprintf("queue:%s:pending", m.name) }
func (m *Manager) delayedKey() string   { return fmt.Sprintf("queue:%s:delayed", m.name) }
func (m *Manager) consumersKey() string { return fmt.Sprintf("queue:%s:consumers", m.name) }
func (m *Manager) processingKey(consumerID string) string {
	return fmt.Sprintf("queue:%s:processing:%s", m.name, consumerID)
}
func (m *Manager) leaseKey(consumerID string) string {
	return fmt.Sprintf("queue:%s:lease:%s", m.name, consumerID)
}
func (m *Manager) statusKey(id string) string {
	return fmt.Sprintf("queue:%s:job:%s", m.name, id)
}

// Enqueue 序列化参数并入队，返回任务ID
func (m *Manager) Enqueue(ctx context.Context, jobType string, args interface{}) (string, error) {
	rawArgs, err := sonic.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("序列化任务参数失败: %w", err)
	}
	job := &Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Args:       rawArgs,
		EnqueuedAt: m.now().UTC(),
	}
	payload, err := sonic.MarshalString(job)
	if err != nil {
		return "", fmt.Errorf("序列化任务失败: %w", err)
	}

	// 先写状态再入队，保证消费者更新状态时记录已存在
	if err := m.setStatus(ctx, job, model.JobStatusQueued, nil, ""); err != nil {
		return "", err
	}
	if err := m.client.Do(ctx, m.client.B().Lpush().Key(m.pendingKey()).Element(payload).Build()).Error(); err != nil {
		return "", fmt.Errorf("任务入队失败: %w", err)
	}

	m.logger.WithFields(logrus.Fields{"job_id": job.ID, "job_type": jobType}).Debug("任务已入队")
	return job.ID, nil
}

// Dequeue 取出最早入队的任务并原子地放入本消费者的 processing 列表；队列为空返回 (nil, nil)。
// 出队前先续约，保证 processing 中的任务始终处于有效租约之下
func (m *Manager) Dequeue(ctx context.Context) (*Delivery, error) {
	if err := m.Heartbeat(ctx); err != nil {
		return nil, err
	}
	payload, err := m.client.Do(ctx, m.client.B().Lmove().
		Source(m.pendingKey()).Destination(m.processingKey(m.consumerID)).
		Right().Left().Build()).ToString()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("任务出队失败: %w", err)
	}

	var job Job
	if err := sonic.UnmarshalString(payload, &job); err != nil {
		m.logger.WithError(err).WithField("payload", payload).Error("任务数据无法解析，丢弃")
		_ = m.remove(ctx, payload)
		return nil, ErrBadPayload
	}
	return &Delivery{Job: &job, payload: payload}, nil
}

// Ack 任务处理结束（成功或不可重试的失败），从 processing 中删除
func (m *Manager) Ack(ctx context.Context, d *Delivery) error {
	return m.remove(ctx, d.payload)
}

func (m *Manager) remove(ctx context.Context, payload string) error {
	if err := m.client.Do(ctx, m.client.B().Lrem().Key(m.processingKey(m.consumerID)).Count(1).Element(payload).Build()).Error(); err != nil {
		return fmt.Errorf("确认任务失败: %w", err)
	}
	return nil
}

// Retry 尝试次数加一后放入 delayed 集合，delay 之后才会重新投递
func (m *Manager) Retry(ctx context.Context, d *Delivery, delay time.Duration) error {
	d.Job.Attempts++
	payload, err := sonic.MarshalString(d.Job)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}
	readyAt := m.now().Add(delay).UnixMilli()
	if err := m.client.Do(ctx, m.client.B().Zadd().Key(m.delayedKey()).ScoreMember().
		ScoreMember(float64(readyAt), payload).Build()).Error(); err != nil {
		return fmt.Errorf("任务延迟重试失败: %w", err)
	}
	// 在此之前崩溃只会导致重复投递，不会丢任务
	return m.remove(ctx, d.payload)
}

// PromoteDue 把到期的延迟任务移回 pending；ZREM 成功的一方才负责入队，避免多个消费者重复搬运
func (m *Manager) PromoteDue(ctx context.Context) (int, error) {
	due, err := m.client.Do(ctx, m.client.B().Zrangebyscore().Key(m.delayedKey()).
		Min("-inf").Max(strconv.FormatInt(m.now().UnixMilli(), 10)).Build()).AsStrSlice()
	if err != nil {
		return 0, fmt.Errorf("读取延迟任务失败: %w", err)
	}

	moved := 0
	for _, payload := range due {
		removed, err := m.client.Do(ctx, m.client.B().Zrem().Key(m.delayedKey()).Member(payload).Build()).AsInt64()
		if err != nil {
			return moved, fmt.Errorf("移除延迟任务失败: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := m.client.Do(ctx, m.client.B().Lpush().Key(m.pendingKey()).Element(payload).Build()).Error(); err != nil {
			return moved, fmt.Errorf("延迟任务重新入队失败: %w", err)
		}
		moved++
	}
	return moved, nil
}

// Heartbeat 续约并登记到消费者集合；先写租约再登记，集合中的消费者在登记时一定持有租约
func (m *Manager) Heartbeat(ctx context.Context) error {
	cmds := rueidis.Commands{
		m.client.B().Set().Key(m.leaseKey(m.consumerID)).
			Value(strconv.FormatInt(m.now().UnixMilli(), 10)).Px(m.leaseTTL).Build(),
		m.client.B().Sadd().Key(m.consumersKey()).Member(m.consumerID).Build(),
	}
	for _, resp := range m.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return fmt.Errorf("消费者续约失败: %w", err)
		}
	}
	return nil
}

// Recover 把租约已过期的消费者遗留在 processing 中的任务放回 pending 队首；
// 仍在续约的消费者正在处理的任务不受影响
func (m *Manager) Recover(ctx context.Context) (int, error) {
	consumers, err := m.client.Do(ctx, m.client.B().Smembers().Key(m.consumersKey()).Build()).AsStrSlice()
	if err != nil {
		return 0, fmt.Errorf("读取消费者列表失败: %w", err)
	}

	recovered := 0
	for _, id := range consumers {
		if id == m.consumerID {
			continue
		}
		alive, err := m.client.Do(ctx, m.client.B().Exists().Key(m.leaseKey(id)).Build()).AsInt64()
		if err != nil {
			return recovered, fmt.Errorf("读取消费者租约失败: %w", err)
		}
		if alive > 0 {
			continue
		}
		n, err := m.requeue(ctx, id)
		recovered += n
		if err != nil {
			return recovered, err
		}
		if err := m.client.Do(ctx, m.client.B().Srem().Key(m.consumersKey()).Member(id).Build()).Error(); err != nil {
			return recovered, fmt.Errorf("移除失效消费者失败: %w", err)
		}
		if n > 0 {
			m.logger.WithFields(logrus.Fields{"consumer": id, "count": n}).Warn("已回收失效消费者的任务")
		}
	}
	return recovered, nil
}

// Release 正常退出时交还本消费者仍持有的任务并注销租约
func (m *Manager) Release(ctx context.Context) (int, error) {
	n, err := m.requeue(ctx, m.consumerID)
	if err != nil {
		return n, err
	}
	cmds := rueidis.Commands{
		m.client.B().Srem().Key(m.consumersKey()).Member(m.consumerID).Build(),
		m.client.B().Del().Key(m.leaseKey(m.consumerID)).Build(),
	}
	for _, resp := range m.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil {
			return n, fmt.Errorf("注销消费者失败: %w", err)
		}
	}
	return n, nil
}

// requeue 逐条把指定消费者的 processing 列表移回 pending 队首；LMOVE 原子，多个回收方并发也不会重复
func (m *Manager) requeue(ctx context.Context, consumerID string) (int, error) {
	moved := 0
	for {
		_, err := m.client.Do(ctx, m.client.B().Lmove().
			Source(m.processingKey(consumerID)).Destination(m.pendingKey()).
			Right().Right().Build()).ToString()
		if err != nil {
			if rueidis.IsRedisNil(err) {
				return moved, nil
			}
			return moved, fmt.Errorf("恢复未完成任务失败: %w", err)
		}
		moved++
	}
}

// Lengths 返回 pending / processing（所有已登记消费者之和）/ delayed 三处的任务数
func (m *Manager) Lengths(ctx context.Context) (pending, processing, delayed int64, err error) {
	if pending, err = m.client.Do(ctx, m.client.B().Llen().Key(m.pendingKey()).Build()).AsInt64(); err != nil {
		return
	}
	var consumers []string
	if consumers, err = m.client.Do(ctx, m.client.B().Smembers().Key(m.consumersKey()).Build()).AsStrSlice(); err != nil {
		return
	}
	for _, id := range consumers {
		var n int64
		if n, err = m.client.Do(ctx, m.client.B().Llen().Key(m.processingKey(id)).Build()).AsInt64(); err != nil {
			return
		}
		processing += n
	}
	delayed, err = m.client.Do(ctx, m.client.B().Zcard().Key(m.delayedKey()).Build()).AsInt64()
	return
}

package worker

import (
	"context"
	"errors"
	"time"

	"VideoSuggest/internal/config"
	"VideoSuggest/internal/model"
	"VideoSuggest/internal/queue"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// Pool 固定数量的消费者协程，每个协程一次只处理一个任务
type Pool struct {
	queue      *queue.Manager
	dispatcher *Dispatcher
	cfg        config.WorkerConfig
	logger     *logrus.Logger
}

// NewPool 创建消费者池
func NewPool(q *queue.Manager, dispatcher *Dispatcher, cfg config.WorkerConfig, logger *logrus.Logger) *Pool {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Pool{queue: q, dispatcher: dispatcher, cfg: cfg, logger: logger}
}

// Run 登记租约并回收失效消费者的任务，随后阻塞直到 ctx 取消；已出队的任务会处理完再退出
func (p *Pool) Run(ctx context.Context) error {
	if err := p.queue.Heartbeat(ctx); err != nil {
		return err
	}
	p.recover(ctx)
	p.logger.WithFields(logrus.Fields{
		"concurrency": p.cfg.Concurrency,
		"consumer":    p.queue.ConsumerID(),
	}).Info("任务消费者已启动")

	workers := pool.New().WithContext(ctx)
	workers.Go(func(ctx context.Context) error {
		p.keepAlive(ctx)
		return nil
	})
	for i := range p.cfg.Concurrency {
		workers.Go(func(ctx context.Context) error {
			p.loop(ctx, i)
			return nil
		})
	}
	err := workers.Wait()

	released, rerr := p.queue.Release(context.WithoutCancel(ctx))
	if rerr != nil {
		p.logger.WithError(rerr).Error("注销消费者失败，遗留任务将在租约过期后被回收")
	} else if released > 0 {
		p.logger.WithField("count", released).Warn("已交还未完成的任务")
	}
	p.logger.Info("任务消费者已停止")
	return err
}

// keepAlive 定期续约，并顺带回收其他已失效消费者遗留的任务
func (p *Pool) keepAlive(ctx context.Context) {
	ticker := time.NewTicker(p.queue.LeaseTTL() / 3)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.queue.Heartbeat(ctx); err != nil && !errors.Is(err, context.Canceled) {
				p.logger.WithError(err).Error("消费者续约失败")
				continue
			}
			p.recover(ctx)
		}
	}
}

func (p *Pool) recover(ctx context.Context) {
	recovered, err := p.queue.Recover(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			p.logger.WithError(err).Error("回收失效消费者的任务失败")
		}
		return
	}
	if recovered > 0 {
		p.logger.WithField("count", recovered).Warn("已恢复失效消费者未完成的任务")
	}
}

func (p *Pool) loop(ctx context.Context, id int) {
	log := p.logger.WithField("worker", id)
	for ctx.Err() == nil {
		processed, err := p.ProcessNext(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("处理任务失败")
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(p.cfg.PollInterval):
		}
	}
}

// ProcessNext 搬运到期的重试任务并处理一个任务；队列为空时返回 false
func (p *Pool) ProcessNext(ctx context.Context) (bool, error) {
	if _, err := p.queue.PromoteDue(ctx); err != nil {
		return false, err
	}
	d, err := p.queue.Dequeue(ctx)
	if err != nil {
		if errors.Is(err, queue.ErrBadPayload) {
			return true, nil
		}
		return false, err
	}
	if d == nil {
		return false, nil
	}

	// 出队之后不再响应取消，保证进行中的任务完整结束
	p.handle(context.WithoutCancel(ctx), d)
	return true, nil
}

func (p *Pool) handle(ctx context.Context, d *queue.Delivery) {
	job := d.Job
	log := p.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"job_type": job.Type,
		"attempts": job.Attempts,
	})

	if err := p.queue.MarkProcessing(ctx, job); err != nil {
		log.WithError(err).Warn("更新任务状态失败")
	}

	result, err := p.dispatcher.Dispatch(ctx, job)
	switch {
	case err == nil:
		if err := p.queue.MarkFinished(ctx, job, result); err != nil {
			log.WithError(err).Warn("保存任务结果失败")
		}
		p.ack(ctx, log, d)
		log.Debug("任务处理完成")

	case isPermanent(err):
		// 校验失败、引用不存在：不会产生任何副作用，也不重试
		log.WithError(err).Warn("任务失败，不重试")
		if err := p.queue.MarkFailed(ctx, job, model.JobStatusFailed, err); err != nil {
			log.WithError(err).Warn("更新任务状态失败")
		}
		p.ack(ctx, log, d)

	case job.Attempts+1 >= p.cfg.MaxAttempts:
		log.WithError(err).Error("任务重试次数耗尽")
		if err := p.queue.MarkFailed(ctx, job, model.JobStatusDead, err); err != nil {
			log.WithError(err).Warn("更新任务状态失败")
		}
		p.ack(ctx, log, d)

	default:
		delay := p.retryDelay(job.Attempts)
		log.WithError(err).WithField("delay", delay).Warn("任务失败，稍后重试")
		if err := p.queue.Retry(ctx, d, delay); err != nil {
			// 留在本消费者的 processing 中：正常退出时由 Release 交还，崩溃则租约过期后被回收
			log.WithError(err).Error("任务重试入队失败")
			return
		}
		if err := p.queue.MarkFailed(ctx, job, model.JobStatusRetrying, err); err != nil {
			log.WithError(err).Warn("更新任务状态失败")
		}
	}
}

func (p *Pool) ack(ctx context.Context, log *logrus.Entry, d *queue.Delivery) {
	if err := p.queue.Ack(ctx, d); err != nil {
		log.WithError(err).Error("确认任务失败")
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, model.ErrValidation) ||
		errors.Is(err, model.ErrNotFound) ||
		errors.Is(err, ErrUnknownJob)
}

// retryDelay 第 attempt 次失败后的等待时间，指数增长并带随机抖动
func (p *Pool) retryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(p.cfg.RetryInterval),
		backoff.WithMaxInterval(p.cfg.MaxRetryInterval),
		backoff.WithMaxElapsedTime(0),
	)
	delay := b.NextBackOff()
	for range attempt {
		delay = b.NextBackOff()
	}
	return delay
}

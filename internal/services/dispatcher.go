package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	dispatchBatchSize   = 50
	dispatchInterval    = 500 * time.Millisecond
	dispatchConcurrency = 8
)

// DeliveryJob 一条通知的推送/邮件投递任务
type DeliveryJob struct {
	ID             string
	NotificationID uint
	Push           bool
	Email          bool
}

// JobDeliverer delivers one job. Implemented by Deliverer.
type JobDeliverer interface {
	Deliver(ctx context.Context, job DeliveryJob) error
}

// Dispatcher 后台投递通知，入队不阻塞调用方
type Dispatcher struct {
	deliverer JobDeliverer
	log       *zap.Logger
	queue     chan DeliveryJob
	pending   map[uint]bool // 按通知 ID 去重
	mu        sync.Mutex
	interval  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func NewDispatcher(deliverer JobDeliverer, log *zap.Logger, queueSize int) *Dispatcher {
	if queueSize < 1 {
		queueSize = 1000
	}
	return &Dispatcher{
		deliverer: deliverer,
		log:       log,
		queue:     make(chan DeliveryJob, queueSize),
		pending:   make(map[uint]bool),
		interval:  dispatchInterval,
	}
}

// Start launches the worker. It stops when ctx is cancelled or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done != nil {
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	go d.worker(ctx, d.done)
}

// Stop 停止 worker，并等待已收集的批次投递完成
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Enqueue schedules a job without blocking. A notification already pending is skipped.
func (d *Dispatcher) Enqueue(job DeliveryJob) bool {
	d.mu.Lock()
	if d.pending[job.NotificationID] {
		d.mu.Unlock()
		return false
	}
	d.pending[job.NotificationID] = true
	d.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}

	select {
	case d.queue <- job:
		return true
	default:
		// 队列满了，站内通知已落库，只丢弃推送/邮件
		d.mu.Lock()
		delete(d.pending, job.NotificationID)
		d.mu.Unlock()
		d.log.Warn("Delivery queue full, dropping job",
			zap.String("job_id", job.ID),
			zap.Uint("notification_id", job.NotificationID))
		return false
	}
}

func (d *Dispatcher) worker(ctx context.Context, done chan struct{}) {
	defer close(done)

	batch := make([]DeliveryJob, 0, dispatchBatchSize)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.drain(&batch)
			if len(batch) > 0 {
				d.processBatch(context.Background(), batch)
			}
			return
		case job := <-d.queue:
			batch = append(batch, job)
			if len(batch) >= dispatchBatchSize {
				d.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				d.processBatch(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

// drain 停止前取出队列里剩余的任务
func (d *Dispatcher) drain(batch *[]DeliveryJob) {
	for {
		select {
		case job := <-d.queue:
			*batch = append(*batch, job)
		default:
			return
		}
	}
}

func (d *Dispatcher) processBatch(ctx context.Context, jobs []DeliveryJob) {
	var g errgroup.Group
	g.SetLimit(dispatchConcurrency)

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			if err := d.deliverer.Deliver(ctx, job); err != nil {
				d.log.Warn("Notification delivery failed",
					zap.String("job_id", job.ID),
					zap.Uint("notification_id", job.NotificationID),
					zap.Error(err))
			}
			d.mu.Lock()
			delete(d.pending, job.NotificationID)
			d.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
}

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/checkpoint"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/pipeline"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/repository"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 读取配置文件
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		return
	}

	spec, err := config.LoadModelSpec(cfg.Model.SpecPath)
	if err != nil {
		logger.Error("无法加载模型参数", "path", cfg.Model.SpecPath, "error", err)
		return
	}

	p, err := pipeline.New(spec, cfg.Model.BaseSeed)
	if err != nil {
		logger.Error("无法创建处理流水线", "error", err)
		return
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	pingCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	if err := dbpool.PingContext(pingCtx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)

	/**********************************************
	 * 连接 redis
	 **********************************************/
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       0,
	})
	defer rdb.Close()

	redisCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Redis.ConnectTimeout)*time.Second)
	defer cancel()

	if err := rdb.Ping(redisCtx).Err(); err != nil {
		logger.Error("无法连接到 redis", "error", err)
		return
	}

	/**********************************************
	 * 连接 RabbitMQ
	 **********************************************/
	conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
	if err != nil {
		logger.Error("无法连接到 RabbitMQ", slog.String("error", err.Error()))
		return
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		logger.Error("无法创建通道", slog.String("error", err.Error()))
		return
	}
	defer ch.Close()

	for _, queue := range []string{cfg.RabbitMQ.JobQueue, cfg.RabbitMQ.MailQueue} {
		if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			logger.Error("无法声明队列", "queue", queue, "error", err)
			return
		}
	}

	// 限制未确认的任务数量，使多个 worker 可以分摊同一次运行
	if err := ch.Qos(max(cfg.Worker.Prefetch, 1), 0, false); err != nil {
		logger.Error("无法设置预取数量", "error", err)
		return
	}

	msgs, err := ch.Consume(
		cfg.RabbitMQ.JobQueue,
		"",
		false, // 处理完成后手动确认
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logger.Error("无法消费消息", slog.String("error", err.Error()))
		return
	}

	w := &worker{
		cfg:         cfg,
		repository:  repo,
		checkpoints: checkpoint.NewRedisStore(rdb, time.Duration(cfg.Redis.CheckpointExpiration)*time.Second),
		pipeline:    p,
		channel:     ch,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	wg := sync.WaitGroup{}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					logger.Error("任务队列已关闭")
					return
				}
				w.handle(ctx, msg)
			}
		}
	}()

	logger.Info("等待任务...（按 CTRL+C 退出）", "queue", cfg.RabbitMQ.JobQueue, "concurrency", cfg.Worker.Concurrency)
	<-sigChan

	slog.Info("正在关闭 worker...")
	cancel()
	wg.Wait()
	slog.Info("worker 已成功关闭")
}

// handle 处理一条任务消息，只有在结果落库之前出错时才把消息重新入队
func (w *worker) handle(ctx context.Context, msg amqp.Delivery) {
	job, err := decodeJob(msg.Body)
	if err != nil {
		slog.Error("任务反序列化失败", "error", err)
		_ = msg.Nack(false, false)
		return
	}

	requeue, err := w.process(ctx, job)
	if err != nil {
		slog.Error("任务处理失败", "run", job.RunID, "households", len(job.HouseholdIDs), "requeue", requeue, "error", err)
		_ = msg.Nack(false, requeue)
		return
	}

	_ = msg.Ack(false)
}

func decodeJob(body []byte) (*domain.HouseholdJob, error) {
	job := &domain.HouseholdJob{}
	if err := json.Unmarshal(body, job); err != nil {
		return nil, err
	}
	if job.RunID == "" || len(job.HouseholdIDs) == 0 {
		return nil, errors.New("任务缺少运行编号或家庭")
	}
	return job, nil
}

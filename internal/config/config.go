package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"60"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN                string `env:"DSN,required"`
		ConnectTimeout     int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout       int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		TransactionTimeout int    `env:"TRANSACTION_TIMEOUT" envDefault:"20"`
		MaxOpenConns       int    `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int    `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int    `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	InitialAdmin struct {
		Username string `env:"USERNAME" envDefault:"admin"`
		Password string `env:"PASSWORD,required"`
		FullName string `env:"FULL_NAME" envDefault:"管理员"`
		Email    string `env:"EMAIL,required"`
	} `envPrefix:"INITIAL_ADMIN_"`
	JWT struct {
		Expiration int    `env:"EXPIRATION" envDefault:"336"` // 14 天，单位为小时
		Secret     string `env:"SECRET,required"`
	} `envPrefix:"JWT_"`
	Seed struct {
		Operator struct {
			Password string `env:"PASSWORD,required"`
		} `envPrefix:"OPERATOR_"`
	} `envPrefix:"SEED_"`
	Email struct {
		OperatorDomain string `env:"OPERATOR_DOMAIN,required"`
		SMTP           struct {
			Username    string `env:"USERNAME,required"`
			Password    string `env:"PASSWORD,required"`
			Host        string `env:"HOST,required"`
			Port        int    `env:"PORT" envDefault:"465"`
			DialTimeout int    `env:"DIAL_TIMEOUT" envDefault:"10"`
		} `envPrefix:"SMTP_"`
	} `envPrefix:"EMAIL_"`
	RabbitMQ struct {
		DSN            string `env:"DSN,required"`
		PublishTimeout int    `env:"PUBLISH_TIMEOUT" envDefault:"10"`
		JobQueue       string `env:"JOB_QUEUE" envDefault:"household_jobs"`
		MailQueue      string `env:"MAIL_QUEUE" envDefault:"email_queue"`
		BatchSize      int    `env:"BATCH_SIZE" envDefault:"200"` // 每条任务消息包含的家庭数量
	} `envPrefix:"RABBITMQ_"`
	Redis struct {
		Host                 string `env:"HOST" envDefault:"localhost"`
		Port                 int    `env:"PORT" envDefault:"6379"`
		Password             string `env:"PASSWORD,required"`
		ConnectTimeout       int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		CheckpointExpiration int    `env:"CHECKPOINT_EXPIRATION" envDefault:"604800"` // 7 天
	} `envPrefix:"REDIS_"`
	Worker struct {
		Concurrency int `env:"CONCURRENCY" envDefault:"8"`
		Prefetch    int `env:"PREFETCH" envDefault:"4"`
	} `envPrefix:"WORKER_"`
	Model struct {
		SpecPath string `env:"SPEC_PATH" envDefault:"./configs/model.yaml"`
		BaseSeed int64  `env:"BASE_SEED" envDefault:"0"`
	} `envPrefix:"MODEL_"`
	NewOperator struct {
		PasswordLength int `env:"PASSWORD_LENGTH" envDefault:"12"`
	} `envPrefix:"NEW_OPERATOR_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
		return nil, err
	}

	return cfg, nil
}

package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/repository"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/seed"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var zones int
	var path string

	flag.IntVar(&op, "op", 0, "要执行的操作 (1: 插入随机操作员, 2: 插入随机家庭, 3: 从 CSV 导入家庭)")
	flag.IntVar(&n, "n", 5, "要插入的记录数量")
	flag.IntVar(&zones, "zones", 50, "随机家庭使用的交通小区数量")
	flag.StringVar(&path, "file", "./internal/seed/data/households.csv", "导入家庭的 CSV 文件")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("无法读取配置文件", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("无法创建数据库连接池", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("无法连接到数据库", "error", err)
		return
	}

	// 创建 repository
	repo := repository.NewRepository(cfg, dbpool)

	// 执行操作
	switch op {
	case 0:
		slog.Error("未指定操作")
	case 1:
		if n <= 0 {
			slog.Error("请输入合法的操作员数量")
		} else {
			cnt := n
			for i := 0; i < n; i++ {
				operator, err := utils.GenerateRandomOperator(cfg.Seed.Operator.Password, cfg.Email.OperatorDomain)
				if err != nil {
					slog.Error("无法生成随机操作员", slog.String("error", err.Error()))
					continue
				}

				if err := repo.CreateOperator(operator); err != nil {
					slog.Error("无法插入操作员", slog.String("error", err.Error()))
					continue
				}

				cnt--
			}

			slog.Info("插入操作员成功", slog.Int("count", n-cnt))
		}
	case 2:
		if n <= 0 {
			slog.Error("请输入合法的家庭数量")
		} else {
			cnt := n
			for i := 0; i < n; i++ {
				hh := utils.GenerateRandomHousehold(zones)
				if err := utils.ValidateHousehold(hh); err != nil {
					slog.Error("生成的家庭无效", slog.String("error", err.Error()))
					continue
				}

				if err := repo.CreateHousehold(hh); err != nil {
					slog.Error("无法插入家庭", slog.String("error", err.Error()))
					continue
				}

				cnt--
			}

			slog.Info("插入家庭成功", slog.Int("count", n-cnt))
		}
	case 3:
		cnt := seed.SeedHouseholds(repo, path)
		slog.Info("导入家庭成功", slog.Int("count", cnt))
	default:
		slog.Error("指定的操作非法")
	}
}

package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/checkpoint"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/config"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/pipeline"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/repository"
)

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  *repository.Repository
	translator  ut.Translator
	channel     *amqp.Channel
	checkpoints checkpoint.Store
	pipeline    *pipeline.Pipeline

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, ch *amqp.Channel, store checkpoint.Store, p *pipeline.Pipeline) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		translator:  trans,
		channel:     ch,
		checkpoints: store,
		pipeline:    p,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
		})

		r.Route("/operators", func(r chi.Router) {
			r.Use(h.RequiredRole([]domain.Role{domain.RoleAdmin}))
			r.Post("/", h.CreateOperator)
			r.Get("/", h.GetAllOperators)
			r.With(h.operatorInfo).With(h.preventOperateInitialAdmin).Patch("/{id}", h.UpdateOperator)
		})

		r.Route("/households", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/", h.CreateHousehold)
			r.With(h.household).Get("/{householdID}", h.GetHousehold)
		})

		// 同步模拟不落库，分析员也可以调用
		r.Post("/simulate", h.Simulate)

		r.Route("/runs", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleAdmin})).Post("/", h.CreateRun)
			r.Get("/", h.GetAllRuns)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.run)
				r.Get("/", h.GetRun)
				r.Route("/households/{householdID}", func(r chi.Router) {
					r.Get("/", h.GetHouseholdResult)
					r.Get("/checkpoints", h.GetHouseholdCheckpoints)
				})
			})
		})
	})
}

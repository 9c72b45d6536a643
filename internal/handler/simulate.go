package handler

import (
	"errors"
	"net/http"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/cdap"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/choice"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/scheduler"
)

type simulateRequest struct {
	householdRequest
	HouseholdID int64  `json:"householdID" validate:"min=0"` // 参与种子计算
	BaseSeed    *int64 `json:"baseSeed"`
}

type simulateResponse struct {
	Household *domain.Household `json:"household"`
	Stats     scheduler.Stats   `json:"stats"`
}

// Simulate 同步地处理请求中的一个家庭，不写入数据库
func (h *Handler) Simulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	hh, err := h.readHousehold(r, &req, &req.householdRequest)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}
	hh.ID = req.HouseholdID

	p := h.pipeline
	if req.BaseSeed != nil {
		p = p.WithBaseSeed(*req.BaseSeed)
	}

	stats, err := p.Run(hh)
	if err != nil {
		switch {
		case errors.Is(err, choice.ErrNoAvailableAlternative),
			errors.Is(err, cdap.ErrMissingProportions),
			errors.Is(err, domain.ErrPersonOutOfRange):
			h.badRequest(w, r, err)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "模拟成功", simulateResponse{Household: hh, Stats: stats})
}

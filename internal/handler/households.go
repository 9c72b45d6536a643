package handler

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/utils"
)

type tourRequest struct {
	ID          int64  `json:"id"`       // 导入编号，子出行通过 parentID 引用所属的工作出行
	ParentID    int64  `json:"parentID"` // 仅子出行使用
	Category    string `json:"category" validate:"required,oneof=mandatory non_mandatory at_work"`
	Purpose     string `json:"purpose" validate:"required"`
	Number      int    `json:"number" validate:"required,min=1"`
	Origin      int    `json:"origin" validate:"min=0"`
	Destination int    `json:"destination" validate:"min=0"`
}

type personRequest struct {
	Type           int           `json:"type" validate:"required,min=1,max=8"`
	Age            int           `json:"age" validate:"min=0,max=120"`
	WorkLocation   int           `json:"workLocation" validate:"min=0"`
	SchoolLocation int           `json:"schoolLocation" validate:"min=0"`
	WorkLogsum     float64       `json:"workLogsum"`
	SchoolLogsum   float64       `json:"schoolLogsum"`
	Tours          []tourRequest `json:"tours" validate:"dive"`
}

type jointTourRequest struct {
	ID           int64  `json:"id"`
	Purpose      string `json:"purpose" validate:"required"`
	Number       int    `json:"number" validate:"required,min=1"`
	Participants []int  `json:"participants" validate:"min=2,dive,min=1"`
	Origin       int    `json:"origin" validate:"min=0"`
	Destination  int    `json:"destination" validate:"min=0"`
}

type householdRequest struct {
	Label               string             `json:"label"`
	HomeZone            int                `json:"homeZone" validate:"required,min=1"`
	AutoSufficiency     int                `json:"autoSufficiency" validate:"min=0,max=3"`
	RetailAccessibility float64            `json:"retailAccessibility" validate:"min=0"`
	Persons             []personRequest    `json:"persons" validate:"required,min=1,dive"`
	JointTours          []jointTourRequest `json:"jointTours" validate:"dive"`
}

// toHousehold 把请求转换为家庭。成员按请求中的顺序从 1 开始编号，未提供编号的出行按顺序补充编号
func (req *householdRequest) toHousehold() *domain.Household {
	hh := &domain.Household{
		Label:               req.Label,
		HomeZone:            req.HomeZone,
		AutoSufficiency:     req.AutoSufficiency,
		RetailAccessibility: req.RetailAccessibility,
	}

	next := int64(0)
	for _, p := range req.Persons {
		for _, t := range p.Tours {
			next = max(next, t.ID)
		}
	}
	for _, t := range req.JointTours {
		next = max(next, t.ID)
	}
	tourID := func(id int64) int64 {
		if id != 0 {
			return id
		}
		next++
		return next
	}

	for i, pr := range req.Persons {
		p := &domain.Person{
			Num:            i + 1,
			Type:           domain.PersonType(pr.Type),
			Age:            pr.Age,
			WorkLocation:   pr.WorkLocation,
			SchoolLocation: pr.SchoolLocation,
			WorkLogsum:     pr.WorkLogsum,
			SchoolLogsum:   pr.SchoolLogsum,
		}
		for _, tr := range pr.Tours {
			t := &domain.Tour{
				ID:           tourID(tr.ID),
				PersonNum:    p.Num,
				Category:     domain.TourCategory(tr.Category),
				Purpose:      tr.Purpose,
				Number:       tr.Number,
				Origin:       tr.Origin,
				Destination:  tr.Destination,
				DepartPeriod: domain.Unscheduled,
				ArrivePeriod: domain.Unscheduled,
				Status:       domain.TourStatusUnscheduled,
			}
			switch t.Category {
			case domain.TourCategoryMandatory:
				if t.Purpose == domain.PurposeWork {
					p.WorkTours = append(p.WorkTours, t)
				} else {
					p.SchoolTours = append(p.SchoolTours, t)
				}
			case domain.TourCategoryNonMandatory:
				p.NonMandatoryTours = append(p.NonMandatoryTours, t)
			case domain.TourCategoryAtWork:
				t.ParentTourID = tr.ParentID
				p.SubTours = append(p.SubTours, t)
			}
		}
		hh.Persons = append(hh.Persons, p)
	}

	for _, jr := range req.JointTours {
		hh.JointTours = append(hh.JointTours, &domain.Tour{
			ID:           tourID(jr.ID),
			Participants: jr.Participants,
			Category:     domain.TourCategoryJoint,
			Purpose:      jr.Purpose,
			Number:       jr.Number,
			Origin:       jr.Origin,
			Destination:  jr.Destination,
			DepartPeriod: domain.Unscheduled,
			ArrivePeriod: domain.Unscheduled,
			Status:       domain.TourStatusUnscheduled,
		})
	}
	return hh
}

// readHousehold 把请求体读入 dst 并校验，hr 为 dst 中的家庭数据部分
func (h *Handler) readHousehold(r *http.Request, dst any, hr *householdRequest) (*domain.Household, error) {
	if err := h.readJSON(r, dst); err != nil {
		return nil, err
	}
	if err := h.validate.Struct(dst); err != nil {
		return nil, err
	}

	hh := hr.toHousehold()
	if err := utils.ValidateHousehold(hh); err != nil {
		return nil, err
	}
	return hh, nil
}

func (h *Handler) CreateHousehold(w http.ResponseWriter, r *http.Request) {
	var req householdRequest
	hh, err := h.readHousehold(r, &req, &req)
	if err != nil {
		h.badRequest(w, r, err)
		return
	}

	if err := h.repository.CreateHousehold(hh); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr) && pgErr.ConstraintName == "persons_type_check":
			h.badRequest(w, r, errors.New("人员类型无效"))
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "导入家庭成功", hh)
}

func (h *Handler) GetHousehold(w http.ResponseWriter, r *http.Request) {
	hh := r.Context().Value(HouseholdCtx).(*domain.Household)
	h.successResponse(w, r, "获取家庭信息成功", hh)
}

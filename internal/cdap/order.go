package cdap

import (
	"sort"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/random"
)

const (
	maxModeledWorkers  = 2
	maxModeledChildren = 3
)

// ModelOrder 返回进入模型的成员顺序。
// 不超过 MaxModelSize 人的家庭保持原顺序；更大的家庭中，前两个位置留给工作者（全职优先），
// 接下来三个位置留给最小的三个儿童，空出的位置从未入选的成员中随机抽取补齐，其余成员按原顺序排在后面
func ModelOrder(hh *domain.Household, stream *random.Stream) []*domain.Person {
	size := hh.Size()
	order := make([]*domain.Person, 0, size)
	if size <= MaxModelSize {
		return append(order, hh.Persons...)
	}

	slots := make([]*domain.Person, MaxModelSize)
	counted := make([]bool, size)

	// 工作者
	workers := 0
	for _, t := range []domain.PersonType{domain.PersonTypeFullTimeWorker, domain.PersonTypePartTimeWorker} {
		for i, p := range hh.Persons {
			if workers == maxModeledWorkers {
				break
			}
			if p.Type == t {
				slots[workers] = p
				counted[i] = true
				workers++
			}
		}
	}

	// 儿童
	children := []int{}
	for i, p := range hh.Persons {
		if p.Type.IsChild() {
			children = append(children, i)
		}
	}
	// 只按年龄排序，年龄相同时保持原顺序
	sort.SliceStable(children, func(a, b int) bool {
		return hh.Persons[children[a]].Age < hh.Persons[children[b]].Age
	})
	for k, i := range children {
		if k == maxModeledChildren {
			break
		}
		slots[maxModeledWorkers+k] = hh.Persons[i]
		counted[i] = true
	}

	// 随机补齐空位
	for s := range slots {
		for slots[s] == nil {
			i := int(stream.Next() * float64(size))
			if counted[i] {
				continue
			}
			slots[s] = hh.Persons[i]
			counted[i] = true
		}
	}

	order = append(order, slots...)
	for i, p := range hh.Persons {
		if !counted[i] {
			order = append(order, p)
		}
	}
	return order
}

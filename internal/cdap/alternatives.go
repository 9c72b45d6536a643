package cdap

import (
	"strings"

	"github.com/sysu-ecnc-dev/activity-scheduler/backend/internal/domain"
)

// MaxModelSize 为完全枚举的最大家庭规模，超出的成员使用固定比例兜底
const MaxModelSize = 5

var letters = [3]byte{'M', 'N', 'H'}

// Alternative 为一个物理备选方案。至少两人不在家时，每个模式串对应无联合出行和有联合出行两个方案
type Alternative struct {
	Pattern string
	Joint   bool
}

// Name 返回带后缀的方案名，0 表示无联合出行，j 表示有联合出行
func (a Alternative) Name() string {
	if a.Joint {
		return a.Pattern + "j"
	}
	return a.Pattern + "0"
}

func nonHomeCount(pattern string) int {
	return len(pattern) - strings.Count(pattern, string(domain.ActivityHome))
}

func pow3(n int) int {
	p := 1
	for i := 0; i < n; i++ {
		p *= 3
	}
	return p
}

// ExpectedAlternativeCount 为规模 n 的物理备选方案数量：
// 少于两人不在家的 1+2n 个模式串各一个方案，其余模式串各两个
func ExpectedAlternativeCount(n int) int {
	total := pow3(n)
	return total + (total - 1 - 2*n)
}

// BuildAlternatives 枚举规模为 n 的所有模式串，第一个人变化最快
func BuildAlternatives(n int) []Alternative {
	total := pow3(n)
	alts := make([]Alternative, 0, ExpectedAlternativeCount(n))

	for k := 0; k < total; k++ {
		b := make([]byte, n)
		x := k
		for i := 0; i < n; i++ {
			b[i] = letters[x%3]
			x /= 3
		}
		pattern := string(b)

		alts = append(alts, Alternative{Pattern: pattern})
		if nonHomeCount(pattern) >= 2 {
			alts = append(alts, Alternative{Pattern: pattern, Joint: true})
		}
	}
	return alts
}

func categoryIndex(c byte) int {
	switch c {
	case 'M':
		return 0
	case 'N':
		return 1
	default:
		return 2
	}
}

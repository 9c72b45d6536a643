package window

import (
	"errors"
	"fmt"
)

var (
	ErrOutOfRange = errors.New("window: 时段超出范围")
	ErrOccupied   = errors.New("window: 时段已被占用")
)

// Window 表示一个人一天内的时段占用情况，时段编号从 1 开始
type Window struct {
	occupied []bool // 下标 0 不使用
}

func New(periods int) *Window {
	return &Window{
		occupied: make([]bool, periods+1),
	}
}

// Span 创建一个只有 [start, end] 空闲的窗口，用于在工作出行内部安排子出行
func Span(periods, start, end int) *Window {
	w := New(periods)
	for p := 1; p <= periods; p++ {
		if p < start || p > end {
			w.occupied[p] = true
		}
	}
	return w
}

func (w *Window) Periods() int {
	return len(w.occupied) - 1
}

func (w *Window) inRange(start, end int) bool {
	return start >= 1 && end <= w.Periods() && start <= end
}

// IsAvailable 当且仅当 [start, end] 中每个时段都空闲时返回 true
func (w *Window) IsAvailable(start, end int) bool {
	if !w.inRange(start, end) {
		return false
	}
	for p := start; p <= end; p++ {
		if w.occupied[p] {
			return false
		}
	}
	return true
}

// Reserve 占用 [start, end]，调用前区间必须完全空闲
func (w *Window) Reserve(start, end int) error {
	if !w.inRange(start, end) {
		return fmt.Errorf("%w: [%d, %d]，共 %d 个时段", ErrOutOfRange, start, end, w.Periods())
	}
	if !w.IsAvailable(start, end) {
		return fmt.Errorf("%w: [%d, %d]", ErrOccupied, start, end)
	}
	for p := start; p <= end; p++ {
		w.occupied[p] = true
	}
	return nil
}

// ReserveAll 在所有窗口上同时占用 [start, end]，要么全部成功，要么一个都不占用
func ReserveAll(windows []*Window, start, end int) error {
	for i, w := range windows {
		if !w.inRange(start, end) {
			return fmt.Errorf("第 %d 个窗口: %w: [%d, %d]", i+1, ErrOutOfRange, start, end)
		}
		if !w.IsAvailable(start, end) {
			return fmt.Errorf("第 %d 个窗口: %w: [%d, %d]", i+1, ErrOccupied, start, end)
		}
	}
	for _, w := range windows {
		for p := start; p <= end; p++ {
			w.occupied[p] = true
		}
	}
	return nil
}

// AvailableCount 返回空闲时段的数量
func (w *Window) AvailableCount() int {
	cnt := 0
	for p := 1; p <= w.Periods(); p++ {
		if !w.occupied[p] {
			cnt++
		}
	}
	return cnt
}

// LongestRun 返回最长的连续空闲时段数
func (w *Window) LongestRun() int {
	return w.longestRun(func(p int) bool { return !w.occupied[p] })
}

// LongestJointRun 返回两个窗口同时空闲的最长连续时段数
func (w *Window) LongestJointRun(other *Window) int {
	return w.longestRun(func(p int) bool {
		return !w.occupied[p] && p <= other.Periods() && !other.occupied[p]
	})
}

func (w *Window) longestRun(free func(p int) bool) int {
	best, cur := 0, 0
	for p := 1; p <= w.Periods(); p++ {
		if free(p) {
			cur++
			best = max(best, cur)
		} else {
			cur = 0
		}
	}
	return best
}

func (w *Window) Clone() *Window {
	occupied := make([]bool, len(w.occupied))
	copy(occupied, w.occupied)
	return &Window{occupied: occupied}
}

// Reset 释放所有时段
func (w *Window) Reset() {
	for p := range w.occupied {
		w.occupied[p] = false
	}
}

// String 以 0/1 串表示占用情况，1 表示已占用
func (w *Window) String() string {
	b := make([]byte, w.Periods())
	for p := 1; p <= w.Periods(); p++ {
		if w.occupied[p] {
			b[p-1] = '1'
		} else {
			b[p-1] = '0'
		}
	}
	return string(b)
}

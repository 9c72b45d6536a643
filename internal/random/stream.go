package random

import "math/rand"

// Stream 是每个家庭独享的伪随机数流，每次抽取都会计数，
// 重新播种后回放相同次数即可恢复到完全相同的状态
type Stream struct {
	seed  int64
	rng   *rand.Rand
	count int
}

// SeedFor 由基础种子和家庭 ID 计算该家庭的种子，与处理顺序和并行度无关
func SeedFor(baseSeed, householdID int64) int64 {
	return baseSeed + householdID
}

func New(seed int64) *Stream {
	return &Stream{
		seed: seed,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Next 返回 [0, 1) 内的随机数，计数加一
func (s *Stream) Next() float64 {
	s.count++
	return s.rng.Float64()
}

func (s *Stream) Count() int {
	return s.count
}

func (s *Stream) Seed() int64 {
	return s.seed
}

// Reset 重新播种并清零计数
func (s *Stream) Reset() {
	s.rng = rand.New(rand.NewSource(s.seed))
	s.count = 0
}

// Replay 重新播种后快进 n 次抽取
func (s *Stream) Replay(n int) {
	s.Reset()
	for i := 0; i < n; i++ {
		s.Next()
	}
}

package random

// Script is a Source that replays a fixed sequence of draws. It exists for
// tests that need one exact outcome path: rolls, percent draws, coins, and
// shuffle indexes are consumed from independent queues in call order.
type Script struct {
	Rolls    []int
	Percents []int
	Coins    []bool
	Ints     []int
}

// Roll pops the next scripted roll, or 1 when the queue is empty.
func (s *Script) Roll() int {
	if len(s.Rolls) == 0 {
		return 1
	}
	value := s.Rolls[0]
	s.Rolls = s.Rolls[1:]
	return value
}

// Percent pops the next scripted percent draw clamped to [lo, hi].
func (s *Script) Percent(lo, hi int) int {
	if len(s.Percents) == 0 {
		return lo
	}
	value := s.Percents[0]
	s.Percents = s.Percents[1:]
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

// Coin pops the next scripted flip, or false when the queue is empty.
func (s *Script) Coin() bool {
	if len(s.Coins) == 0 {
		return false
	}
	value := s.Coins[0]
	s.Coins = s.Coins[1:]
	return value
}

// Intn pops the next scripted index modulo n, or 0 when the queue is empty.
func (s *Script) Intn(n int) int {
	if len(s.Ints) == 0 {
		return 0
	}
	value := s.Ints[0]
	s.Ints = s.Ints[1:]
	if n <= 0 {
		return 0
	}
	return value % n
}

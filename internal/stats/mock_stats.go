package stats

// NullStats is a no-op StatsProvider for tests.
type NullStats struct{}

func (NullStats) Incr(name string)          {}
func (NullStats) Decr(name string)          {}
func (NullStats) Add(name string, delta int) {}
func (NullStats) Run()                      {}

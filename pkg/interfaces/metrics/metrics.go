package metrics

// Collector records operation outcomes. Labels must stay low-cardinality:
// never pass actor or credential identifiers.
type Collector interface {
	Record(operation string, labels map[string]string)
}

// Nop discards every sample.
type Nop struct{}

var _ Collector = Nop{}

func (Nop) Record(string, map[string]string) {}

//go:build race

package opt

// Race_ reports whether the race detector is enabled.
// Stress tests scale their workloads down when it is set.
const Race_ = true

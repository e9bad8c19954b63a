package driver

// ChunkSize is the fixed morsel width a split pipeline's input is
// partitioned into (spec §4.5 step 2.3).
const ChunkSize = 8192

// AdaptiveThreshold is the number of morsels probed on the JIT body
// before the adaptive policy decides whether to switch to the
// optimizing backend (spec §4.5 step 3).
const AdaptiveThreshold = 2

// switchoverOverheadMillis and optSpeedup are the adaptive model's
// tunable constants (spec §4.5, §9 Open Question: "no evidence in the
// source that they are platform-invariant").
const (
	switchoverOverheadMillis = 10.0
	optSpeedup               = 1.2
)

// morselRanges partitions [0, size) into ascending [start, end)
// sub-ranges of width at most ChunkSize.
func morselRanges(size int) [][2]int {
	var ranges [][2]int
	for start := 0; start < size; start += ChunkSize {
		end := start + ChunkSize
		if end > size {
			end = size
		}
		ranges = append(ranges, [2]int{start, end})
	}
	return ranges
}

// shouldSwitchToOptimizing implements the adaptive model: given the
// mean per-morsel JIT time observed over the probe and the number of
// morsels remaining, decide whether running the remainder on the
// optimizing backend beats staying on the JIT.
//
//	t_opt ≈ t_unopt / 1.2, switchover overhead 10ms.
//	switch iff m*t_opt + 10 < m*t_unopt
func shouldSwitchToOptimizing(meanUnoptMillis float64, morselsRemaining int) bool {
	if morselsRemaining <= 0 {
		return false
	}
	m := float64(morselsRemaining)
	tOpt := meanUnoptMillis / optSpeedup
	return m*tOpt+switchoverOverheadMillis < m*meanUnoptMillis
}

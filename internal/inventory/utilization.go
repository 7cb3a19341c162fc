package inventory

// UtilizationPercent returns the memory utilization of the host. The second value
// is false when the host reports no capacity and cannot take part in balancing.
func (h *Host) UtilizationPercent() (float64, bool) {
	if h.MemoryTotalMB <= 0 {
		return 0, false
	}
	return 100 * float64(h.MemoryUsedMB) / float64(h.MemoryTotalMB), true
}

// Gap returns utilization(x) - utilization(y) in percentage points.
func Gap(x, y *Host) (float64, bool) {
	ux, ok := x.UtilizationPercent()
	if !ok {
		return 0, false
	}
	uy, ok := y.UtilizationPercent()
	if !ok {
		return 0, false
	}
	return ux - uy, true
}

// Exceeds reports whether x is more utilized than y by strictly more than tolerance.
func Exceeds(x, y *Host, tolerance float64) bool {
	gap, ok := Gap(x, y)
	return ok && gap > tolerance
}

// MemoryDelta is the used memory difference x - y in MB.
func MemoryDelta(x, y *Host) int64 {
	return x.MemoryUsedMB - y.MemoryUsedMB
}

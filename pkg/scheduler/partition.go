package scheduler

// SubBatch is the index range [Start, Start+Length) of one dispatch
type SubBatch struct {
	Start  int
	Length int
}

// End returns the first index past the sub-batch
func (b SubBatch) End() int {
	return b.Start + b.Length
}

// Partition splits [0, total) into ceil(total/capacity) ascending sub-batches.
// Every batch but the last has exactly capacity entries
func Partition(total, capacity int) []SubBatch {
	if total <= 0 || capacity <= 0 {
		return nil
	}
	batches := make([]SubBatch, 0, (total+capacity-1)/capacity)
	for start := 0; start < total; start += capacity {
		batches = append(batches, SubBatch{Start: start, Length: min(capacity, total-start)})
	}
	return batches
}

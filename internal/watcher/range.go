package watcher

import "fmt"

// SampleBlocks returns from, from+step, ... up to and always including to.
func SampleBlocks(from, to, step uint64) ([]uint64, error) {
	if step == 0 {
		return nil, fmt.Errorf("step must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	blocks := make([]uint64, 0, (to-from)/step+2)
	for block := from; block < to; block += step {
		blocks = append(blocks, block)
		if to-block < step {
			break
		}
	}
	return append(blocks, to), nil
}

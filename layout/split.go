package layout

// SplitSize implements the put-time split-sizing policy:
// min(remaining_object_size / n_data, min(medium_avail_size)).
func SplitSize(remaining int64, nData int, availSizes []int64) int64 {
	size := remaining / int64(nData)
	if remaining%int64(nData) != 0 {
		size++ // final split may be short; ceil so n_data*size >= remaining
	}
	for _, a := range availSizes {
		if a < size {
			size = a
		}
	}
	if size < 0 {
		size = 0
	}
	return size
}

// AllocOverask implements the over-ask formula for write-alloc requests
// when the filesystem block size is known:
// ceil(size/fs_block)*fs_block + 3*fs_block.
func AllocOverask(size, fsBlock int64) int64 {
	if fsBlock <= 0 {
		return size
	}
	blocks := (size + fsBlock - 1) / fsBlock
	return blocks*fsBlock + 3*fsBlock
}

// LCM returns the least common multiple of a set of positive sizes,
// falling back to pageSize when the set is empty: when neither
// configuration nor extent metadata fixes chunk_size, it is the LCM of
// all open I/O descriptors' preferred-size values, falling back to the
// system page size.
func LCM(sizes []int64, pageSize int64) int64 {
	if len(sizes) == 0 {
		if pageSize <= 0 {
			return 4096
		}
		return pageSize
	}
	result := sizes[0]
	for _, s := range sizes[1:] {
		result = lcmPair(result, s)
	}
	return result
}

func lcmPair(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	return a / gcdPair(a, b) * b
}

func gcdPair(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}

// TruncateToChunk truncates size down to a multiple of chunkSize, except
// when isLastSplit is set: extent size is truncated to a multiple of
// chunk size except on the last split.
func TruncateToChunk(size, chunkSize int64, isLastSplit bool) int64 {
	if isLastSplit || chunkSize <= 0 {
		return size
	}
	return (size / chunkSize) * chunkSize
}

// PadToLonger returns the padding length needed to bring the shorter of
// two data stripes up to the longer one: pad the shorter data stripe with
// zeros up to the longer stripe before computing XOR.
func PadToLonger(a, b int64) (padA, padB int64) {
	if a > b {
		return 0, a - b
	}
	if b > a {
		return b - a, 0
	}
	return 0, 0
}

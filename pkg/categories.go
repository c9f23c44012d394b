package simflow

// Converter maps a column of simulation ids to channel attributes in bulk.
type Converter func([]int32) ([]int32, error)

// SplitPairs decomposes per-event channel pairs into two parallel columns.
// Every event must carry exactly two hits.
func SplitPairs(pairs [][]int32) ([]int32, []int32, error) {
	first := make([]int32, len(pairs))
	second := make([]int32, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, nil, &ErrPairMultiplicity{Hits: len(pair)}
		}
		first[i] = pair[0]
		second[i] = pair[1]
	}
	return first, second, nil
}

// M2Categories assigns the coincidence category of each channel pair:
// 1 same string and vertical neighbours, 2 same string not neighbours,
// 3 different strings. The category is symmetric under swapping the pair.
func M2Categories(first []int32, second []int32, toString Converter, toPosition Converter) ([]int32, error) {
	stringOne, err := toString(first)
	if err != nil {
		return nil, err
	}
	stringTwo, err := toString(second)
	if err != nil {
		return nil, err
	}
	positionOne, err := toPosition(first)
	if err != nil {
		return nil, err
	}
	positionTwo, err := toPosition(second)
	if err != nil {
		return nil, err
	}

	categories := make([]int32, len(first))
	for i := range first {
		sameString := stringOne[i] == stringTwo[i]
		neighbour := abs32(positionOne[i]-positionTwo[i]) == 1
		switch {
		case sameString && neighbour:
			categories[i] = 1
		case sameString:
			categories[i] = 2
		default:
			categories[i] = 3
		}
	}
	return categories, nil
}

// StringRowDiff computes the circular string distance and the absolute
// position distance of each channel pair. nStrings is the modulus of the
// string ring.
func StringRowDiff(first []int32, second []int32, toString Converter, toPosition Converter, nStrings int32) ([]int32, []int32, error) {
	stringOne, err := toString(first)
	if err != nil {
		return nil, nil, err
	}
	stringTwo, err := toString(second)
	if err != nil {
		return nil, nil, err
	}
	positionOne, err := toPosition(first)
	if err != nil {
		return nil, nil, err
	}
	positionTwo, err := toPosition(second)
	if err != nil {
		return nil, nil, err
	}

	stringDiff := make([]int32, len(first))
	floorDiff := make([]int32, len(first))
	for i := range first {
		diffOne := mod32(stringOne[i]-stringTwo[i], nStrings)
		diffTwo := mod32(stringTwo[i]-stringOne[i], nStrings)
		if diffOne < diffTwo {
			stringDiff[i] = diffOne
		} else {
			stringDiff[i] = diffTwo
		}
		floorDiff[i] = abs32(positionOne[i] - positionTwo[i])
	}
	return stringDiff, floorDiff, nil
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// mod32 wraps the remainder into [0, n) also for negative values.
func mod32(v int32, n int32) int32 {
	m := v % n
	if m < 0 {
		m += n
	}
	return m
}

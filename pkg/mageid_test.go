package simflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testChannelMap() ChannelMap {
	return ChannelMap{
		"V01234A": {
			System:   "geds",
			Type:     "icpc",
			Location: ChannelLocation{String: 1, Position: 1},
			DAQ:      ChannelDAQ{RawID: 1104000},
			Analysis: ChannelAnalysis{Usability: "on"},
		},
		"V01234B": {
			System:   "geds",
			Type:     "icpc",
			Location: ChannelLocation{String: 1, Position: 2},
			DAQ:      ChannelDAQ{RawID: 1104001},
			Analysis: ChannelAnalysis{Usability: "on"},
		},
		"B00001C": {
			System:   "geds",
			Type:     "bege",
			Location: ChannelLocation{String: 2, Position: 1},
			DAQ:      ChannelDAQ{RawID: 1105600},
			Analysis: ChannelAnalysis{Usability: "no_psd"},
		},
		"S012": {
			System:   "spms",
			Location: ChannelLocation{String: 1, Position: 1},
			DAQ:      ChannelDAQ{RawID: 1057600},
		},
	}
}

func TestDecodeMageID(t *testing.T) {
	tests := []struct {
		name     string
		mageID   int32
		stringID int32
		position int32
		isGed    bool
	}{
		{"cryostat 1 string 1 position 1", 1010101, 1, 1, true},
		{"string 11 position 7", 1011107, 11, 7, true},
		{"six digits is not germanium", 101101, 0, 0, false},
		{"negative id is not germanium", -1010101, 0, 0, false},
		{"zero is not germanium", 0, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stringID, position, isGed := DecodeMageID(tt.mageID)
			assert.Equal(t, tt.isGed, isGed)
			assert.Equal(t, tt.stringID, stringID)
			assert.Equal(t, tt.position, position)
		})
	}
}

func TestEncodeMageIDRoundTrip(t *testing.T) {
	mageID := EncodeMageID(1, 4, 2)
	assert.Equal(t, int32(1010402), mageID)

	stringID, position, isGed := DecodeMageID(mageID)
	require.True(t, isGed)
	assert.Equal(t, int32(4), stringID)
	assert.Equal(t, int32(2), position)
}

func TestNewMageIDTable(t *testing.T) {
	chmap := testChannelMap()
	ids := []int32{
		1010101, // V01234A
		1010102, // V01234B
		1010201, // B00001C
		101,     // non-germanium, dropped
		1010909, // germanium but unmapped, dropped
		1010101, // duplicate
	}

	table := NewMageIDTable(ids, chmap)

	require.Len(t, table.Channel, 3)
	assert.Equal(t, "ch1104000", table.Channel[1010101])
	assert.Equal(t, "ch1104001", table.Channel[1010102])
	assert.Equal(t, "ch1105600", table.Channel[1010201])
	assert.Equal(t, "V01234A", table.Name[1010101])
	assert.Equal(t, int32(1), table.String[1010102])
	assert.Equal(t, int32(1), table.Position[1010201])

	assert.NotContains(t, table.Channel, int32(101))
	assert.NotContains(t, table.Channel, int32(1010909))

	assert.Equal(t, []int32{1010101, 1010102, 1010201}, table.MageIDs())
}

func TestVectorizedLookup(t *testing.T) {
	lookup := VectorizedLookup(map[int32]int32{1010101: 1, 1010201: 2})

	values, err := lookup([]int32{1010201, 1010101})
	require.NoError(t, err)
	assert.Equal(t, []int32{2, 1}, values)

	_, err = lookup([]int32{1010101, 9999998})
	var unknownErr *ErrUnknownChannel
	require.ErrorAs(t, err, &unknownErr)
	assert.Equal(t, int32(9999998), unknownErr.MageID)
}

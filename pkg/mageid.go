package simflow

import (
	"fmt"
	"sort"
)

// DecodeMageID splits a simulation channel id into its fixed-width decimal
// fields: 1CCSSPP with the leading digit a germanium flag, SS the string
// index and PP the position. Ids outside the 7-digit range carry a zero
// flag and are not germanium channels.
func DecodeMageID(mageID int32) (stringID int32, position int32, isGed bool) {
	if mageID < 1000000 || mageID > 9999999 {
		return 0, 0, false
	}
	stringID = (mageID / 100) % 100
	position = mageID % 100
	return stringID, position, true
}

// EncodeMageID builds the id from cryostat, string and position.
func EncodeMageID(cryostat int32, stringID int32, position int32) int32 {
	return 1000000 + cryostat*10000 + stringID*100 + position
}

// MageIDTable caches the channel-map attributes of the simulation ids seen
// in a batch. Only germanium-flagged ids with a matching (string, position)
// entry in the channel map are present.
type MageIDTable struct {
	Channel  map[int32]string
	Name     map[int32]string
	String   map[int32]int32
	Position map[int32]int32
}

func NewMageIDTable(mageIDs []int32, chmap ChannelMap) MageIDTable {
	table := MageIDTable{
		Channel:  make(map[int32]string),
		Name:     make(map[int32]string),
		String:   make(map[int32]int32),
		Position: make(map[int32]int32),
	}
	for _, mageID := range mageIDs {
		if _, ok := table.Channel[mageID]; ok {
			continue
		}
		stringID, position, isGed := DecodeMageID(mageID)
		if !isGed {
			if configuration.Verbosity > 1 {
				message := fmt.Sprintf("Skipping non-germanium id %d", mageID)
				logger.Info(message, "mageid")
			}
			continue
		}
		found := false
		for name, entry := range chmap {
			if entry.System != "geds" {
				continue
			}
			if entry.Location.String == stringID && entry.Location.Position == position {
				table.Channel[mageID] = ChannelLabel(entry.DAQ.RawID)
				table.Name[mageID] = name
				table.String[mageID] = stringID
				table.Position[mageID] = position
				found = true
				break
			}
		}
		if !found && configuration.Verbosity > 1 {
			message := fmt.Sprintf("No channel map entry for id %d (string %d, position %d)", mageID, stringID, position)
			logger.Info(message, "mageid")
		}
	}
	return table
}

// MageIDs returns the resolved ids in ascending order.
func (t MageIDTable) MageIDs() []int32 {
	ids := make([]int32, 0, len(t.Channel))
	for id := range t.Channel {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// VectorizedLookup builds a bulk converter over a scalar mapping. Ids
// absent from the mapping surface ErrUnknownChannel.
func VectorizedLookup[V any](mapping map[int32]V) func([]int32) ([]V, error) {
	return func(mageIDs []int32) ([]V, error) {
		values := make([]V, len(mageIDs))
		for i, mageID := range mageIDs {
			value, ok := mapping[mageID]
			if !ok {
				return nil, &ErrUnknownChannel{MageID: mageID}
			}
			values[i] = value
		}
		return values, nil
	}
}

package simflow

import "fmt"

// ErrMissingConfig represents a required configuration key that was not set.
type ErrMissingConfig struct {
	Key string
}

func (e *ErrMissingConfig) Error() string {
	return fmt.Sprintf("missing required configuration key %q", e.Key)
}

// ErrZeroEvents represents an input file whose event tree holds no entries.
type ErrZeroEvents struct {
	Filename string
}

func (e *ErrZeroEvents) Error() string {
	return fmt.Sprintf("evt file %q has 0 events in simTree", e.Filename)
}

// ErrUnknownChannel represents a mage id with no entry in the channel map.
type ErrUnknownChannel struct {
	MageID int32
}

func (e *ErrUnknownChannel) Error() string {
	return fmt.Sprintf("mage id %d not present in the channel map", e.MageID)
}

// ErrPairMultiplicity represents a pair (2d) cut applied to an event whose
// hit count is not exactly two.
type ErrPairMultiplicity struct {
	Hits int
}

func (e *ErrPairMultiplicity) Error() string {
	return fmt.Sprintf("2d cut applied to an event with %d hits, want exactly 2", e.Hits)
}

// ErrBadCutExpr represents a cut string that failed to compile.
type ErrBadCutExpr struct {
	Cut    string
	Detail string
}

func (e *ErrBadCutExpr) Error() string {
	return fmt.Sprintf("invalid cut string %q: %s", e.Cut, e.Detail)
}

// ErrMissingColumn represents a cut string referencing a column the event
// batch does not carry.
type ErrMissingColumn struct {
	Column string
}

func (e *ErrMissingColumn) Error() string {
	return fmt.Sprintf("event batch has no column %q", e.Column)
}

// ErrUnknownTier represents a tier name outside the processing chain.
type ErrUnknownTier struct {
	Tier string
}

func (e *ErrUnknownTier) Error() string {
	return fmt.Sprintf("unknown tier %q", e.Tier)
}

// ErrInvalidDataset represents an unsupported dataset flavor for the evt
// tier configuration generator.
type ErrInvalidDataset struct {
	Dataset string
}

func (e *ErrInvalidDataset) Error() string {
	return fmt.Sprintf("invalid dataset %q, want golden or silver", e.Dataset)
}

package simflow

import (
	"errors"
	"fmt"

	hdf5 "github.com/next-exp/hdf5-go"
	"golang.org/x/exp/slices"
)

// Evt-tier files store each jagged column as a dataset pair under simTree:
// <name>/cumulative_length and <name>/flattened_data. All jagged columns
// share the energy column's hit axis.
type EvtReader struct {
	File     *hdf5.File
	Filename string

	energy *hdf5.Dataset
	mageID *hdf5.Dataset
	isOff  *hdf5.Dataset
	isAC   *hdf5.Dataset
	npeTot *hdf5.Dataset

	offsets []int64
	cursor  int
}

func NewEvtReader(filename string) (*EvtReader, error) {
	file, err := hdf5.OpenFile(filename, hdf5.F_ACC_RDONLY)
	if err != nil {
		return nil, fmt.Errorf("error opening evt file %s: %w", filename, err)
	}

	reader := &EvtReader{File: file, Filename: filename}
	reader.energy, reader.offsets, err = openJaggedColumn(file, "energy")
	if err != nil {
		reader.Close()
		return nil, fmt.Errorf("error opening evt file %s: %w", filename, err)
	}

	if reader.NEvents() == 0 {
		reader.Close()
		return nil, &ErrZeroEvents{Filename: filename}
	}

	for _, column := range []struct {
		name string
		dset **hdf5.Dataset
	}{
		{"mage_id", &reader.mageID},
		{"is_off", &reader.isOff},
		{"is_ac", &reader.isAC},
	} {
		dset, offsets, err := openJaggedColumn(file, column.name)
		if err != nil {
			reader.Close()
			return nil, fmt.Errorf("error opening evt file %s: %w", filename, err)
		}
		if !slices.Equal(offsets, reader.offsets) {
			dset.Close()
			reader.Close()
			return nil, fmt.Errorf("error opening evt file %s: %s hits are not aligned with energy", filename, column.name)
		}
		*column.dset = dset
	}

	// npe_tot is optional in the evt tier
	if npeTot, err := file.OpenDataset("simTree/npe_tot"); err == nil {
		reader.npeTot = npeTot
	}

	if configuration.Verbosity > 1 {
		logger.Info(fmt.Sprintf("Opened %s with %d events", filename, reader.NEvents()), "reader")
	}
	return reader, nil
}

func openJaggedColumn(file *hdf5.File, name string) (*hdf5.Dataset, []int64, error) {
	lengthsPath := fmt.Sprintf("simTree/%s/cumulative_length", name)
	lengthsDset, err := file.OpenDataset(lengthsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening dataset %s: %w", lengthsPath, err)
	}
	defer lengthsDset.Close()

	nEvents, err := datasetLength(lengthsDset)
	if err != nil {
		return nil, nil, fmt.Errorf("error reading extent of %s: %w", lengthsPath, err)
	}

	lengths := make([]int64, nEvents)
	if nEvents > 0 {
		err = lengthsDset.Read(&lengths)
		if err != nil {
			return nil, nil, fmt.Errorf("error reading %s: %w", lengthsPath, err)
		}
	}

	offsets := make([]int64, nEvents+1)
	for i, cumulative := range lengths {
		if cumulative < offsets[i] {
			return nil, nil, fmt.Errorf("dataset %s is not monotonic at entry %d", lengthsPath, i)
		}
		offsets[i+1] = cumulative
	}

	dataPath := fmt.Sprintf("simTree/%s/flattened_data", name)
	data, err := file.OpenDataset(dataPath)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening dataset %s: %w", dataPath, err)
	}
	return data, offsets, nil
}

func (r *EvtReader) NEvents() int {
	return len(r.offsets) - 1
}

// Primaries returns the simulated primaries count recorded in the file.
// Every event carries the same value, so only the first entry is read.
func (r *EvtReader) Primaries() (int64, error) {
	n, err := readFirstInt(r.File, "simTree/mage_n_events")
	if err != nil {
		return 0, fmt.Errorf("error reading primaries from %s: %w", r.Filename, err)
	}
	return n, nil
}

// Next returns the next batch of events, sized to the configured byte
// budget, or nil once the file is exhausted. Every batch holds at least
// one event even when that event alone exceeds the budget.
func (r *EvtReader) Next() (*EventBatch, error) {
	nEvents := r.NEvents()
	if r.cursor >= nEvents {
		return nil, nil
	}

	start := r.cursor
	stop := start + 1
	for stop < nEvents && r.batchBytes(start, stop+1) <= configuration.BatchBytes {
		stop++
	}

	hitStart := uint(r.offsets[start])
	hitCount := uint(r.offsets[stop] - r.offsets[start])

	energy, err := readSlab[float64](r.energy, hitStart, hitCount)
	if err != nil {
		return nil, fmt.Errorf("error reading energy from %s: %w", r.Filename, err)
	}
	mageID, err := readSlab[int32](r.mageID, hitStart, hitCount)
	if err != nil {
		return nil, fmt.Errorf("error reading mage_id from %s: %w", r.Filename, err)
	}
	isOff, err := readSlab[uint8](r.isOff, hitStart, hitCount)
	if err != nil {
		return nil, fmt.Errorf("error reading is_off from %s: %w", r.Filename, err)
	}
	isAC, err := readSlab[uint8](r.isAC, hitStart, hitCount)
	if err != nil {
		return nil, fmt.Errorf("error reading is_ac from %s: %w", r.Filename, err)
	}

	batch := &EventBatch{
		Energy: splitJagged(energy, r.offsets, start, stop),
		MageID: splitJagged(mageID, r.offsets, start, stop),
		IsOff:  splitJagged(boolsFromBytes(isOff), r.offsets, start, stop),
		IsAC:   splitJagged(boolsFromBytes(isAC), r.offsets, start, stop),
	}

	if r.npeTot != nil {
		npeTot, err := readSlab[float64](r.npeTot, uint(start), uint(stop-start))
		if err != nil {
			return nil, fmt.Errorf("error reading npe_tot from %s: %w", r.Filename, err)
		}
		batch.NpeTot = npeTot
		batch.HasNpeTot = true
	}

	r.cursor = stop
	return batch, nil
}

// batchBytes estimates the in-memory size of events [start, stop):
// 14 bytes per hit (energy, mage_id, flags) plus 16 per event (scalars).
func (r *EvtReader) batchBytes(start int, stop int) int64 {
	hits := r.offsets[stop] - r.offsets[start]
	return hits*14 + int64(stop-start)*16
}

func (r *EvtReader) Close() error {
	var errs []error

	if r.energy != nil {
		if err := r.energy.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing energy: %w", err))
		}
	}
	if r.mageID != nil {
		if err := r.mageID.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing mage_id: %w", err))
		}
	}
	if r.isOff != nil {
		if err := r.isOff.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing is_off: %w", err))
		}
	}
	if r.isAC != nil {
		if err := r.isAC.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing is_ac: %w", err))
		}
	}
	if r.npeTot != nil {
		if err := r.npeTot.Close(); err != nil {
			errs = append(errs, fmt.Errorf("error closing npe_tot: %w", err))
		}
	}
	if err := r.File.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing file: %w", err))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// ReadRawPrimaries reads the primaries count of a raw-tier file, used by
// simulations whose evt tier dropped all events.
func ReadRawPrimaries(filename string) (int64, error) {
	file, err := hdf5.OpenFile(filename, hdf5.F_ACC_RDONLY)
	if err != nil {
		return 0, fmt.Errorf("error opening raw file %s: %w", filename, err)
	}
	defer file.Close()

	n, err := readFirstInt(file, "fTree/fNEvents")
	if err != nil {
		return 0, fmt.Errorf("error reading primaries from %s: %w", filename, err)
	}
	return n, nil
}

func splitJagged[T any](flat []T, offsets []int64, start int, stop int) [][]T {
	base := offsets[start]
	rows := make([][]T, stop-start)
	for i := range rows {
		lo := offsets[start+i] - base
		hi := offsets[start+i+1] - base
		rows[i] = flat[lo:hi:hi]
	}
	return rows
}

func boolsFromBytes(bytes []uint8) []bool {
	bools := make([]bool, len(bytes))
	for i, b := range bytes {
		bools[i] = b != 0
	}
	return bools
}

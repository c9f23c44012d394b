package simflow

import (
	"fmt"

	hdf5 "github.com/next-exp/hdf5-go"
)

// PrimariesHDF5 is the single row of the number_of_primaries table.
// The count is stored as a string to keep the field readable from
// tools that do not know its width.
type PrimariesHDF5 struct {
	value [STRLEN]byte
}

const STRLEN = 20

func convertToHdf5String(s string) [STRLEN]byte {
	var byteArray [STRLEN]byte
	copy(byteArray[:], s)
	return byteArray
}

func openFile(fname string) *hdf5.File {
	f, err := hdf5.CreateFile(fname, hdf5.F_ACC_TRUNC)
	if err != nil {
		panic(err)
	}
	return f
}

func createGroup(file *hdf5.File, groupName string) *hdf5.Group {
	g, err := file.CreateGroup(groupName)
	if err != nil {
		panic(err)
	}
	return g
}

func createSubGroup(group *hdf5.Group, groupName string) *hdf5.Group {
	g, err := group.CreateGroup(groupName)
	if err != nil {
		panic(err)
	}
	return g
}

// createFloatArray creates a fixed-size float64 dataset. The whole
// array is written in one go, so it is stored as a single deflated chunk.
func createFloatArray(group *hdf5.Group, name string, dims []uint) *hdf5.Dataset {
	file_space, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		panic(err)
	}

	// create property list
	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		panic(err)
	}

	plist.SetChunk(dims)

	// Set compression level
	plist.SetDeflate(configuration.CompressionLevel)

	// create the dataset
	dset, err := group.CreateDatasetWith(name, hdf5.T_NATIVE_DOUBLE, file_space, plist)
	if err != nil {
		panic(err)
	}
	return dset
}

func writeFloatArray(group *hdf5.Group, name string, values []float64, dims []uint) {
	dset := createFloatArray(group, name, dims)
	err := dset.Write(&values)
	if err != nil {
		panic(err)
	}
	err = dset.Close()
	if err != nil {
		panic(err)
	}
}

func createTable(file *hdf5.File, name string, datatype interface{}) *hdf5.Dataset {
	dims := []uint{0}
	unlimitedDims := -1 // H5S_UNLIMITED is -1L
	maxDims := []uint{uint(unlimitedDims)}
	file_space, err := hdf5.CreateSimpleDataspace(dims, maxDims)
	if err != nil {
		panic(err)
	}

	// create property list
	plist, err := hdf5.NewPropList(hdf5.P_DATASET_CREATE)
	if err != nil {
		panic(err)
	}

	chunks := []uint{32768}
	plist.SetChunk(chunks)

	// Set compression level
	plist.SetDeflate(configuration.CompressionLevel)

	// create the memory data type
	dtype, err := hdf5.NewDatatypeFromValue(datatype)
	if err != nil {
		panic(err)
	}

	// create the dataset
	dset, err := file.CreateDatasetWith(name, dtype, file_space, plist)
	if err != nil {
		panic(err)
	}
	return dset
}

func writeEntryToTable[T any](dataset *hdf5.Dataset, data T, evtCounter int) {
	array := []T{data}
	writeArrayToTable(dataset, &array, evtCounter)
}

func writeArrayToTable[T any](dataset *hdf5.Dataset, data *[]T, evtCounter int) {
	length := uint(len(*data))
	dims := []uint{length}
	dataspace, err := hdf5.CreateSimpleDataspace(dims, nil)
	if err != nil {
		panic(err)
	}

	// extend
	eventsInFile := uint(evtCounter)
	newsize := []uint{eventsInFile + length}
	dataset.Resize(newsize)
	filespace := dataset.Space()

	start := []uint{eventsInFile}
	count := []uint{length}
	filespace.SelectHyperslab(start, nil, count, nil)

	err = dataset.WriteSubset(data, dataspace, filespace)
	if err != nil {
		panic(err)
	}

	dataspace.Close()
	filespace.Close()
}

// datasetLength returns the number of entries along the first axis.
func datasetLength(dset *hdf5.Dataset) (int, error) {
	space := dset.Space()
	dims, _, err := space.SimpleExtentDims()
	space.Close()
	if err != nil {
		return 0, err
	}
	if len(dims) == 0 {
		return 0, nil
	}
	return int(dims[0]), nil
}

// readSlab reads count entries starting at start from a 1d dataset.
func readSlab[T any](dset *hdf5.Dataset, start uint, count uint) ([]T, error) {
	out := make([]T, count)
	if count == 0 {
		return out, nil
	}

	filespace := dset.Space()
	defer filespace.Close()
	err := filespace.SelectHyperslab([]uint{start}, nil, []uint{count}, nil)
	if err != nil {
		return nil, err
	}

	memspace, err := hdf5.CreateSimpleDataspace([]uint{count}, nil)
	if err != nil {
		return nil, err
	}
	defer memspace.Close()

	err = dset.ReadSubset(&out, memspace, filespace)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// readFirstInt reads the first entry of a 1d integer dataset.
func readFirstInt(file *hdf5.File, path string) (int64, error) {
	dset, err := file.OpenDataset(path)
	if err != nil {
		return 0, fmt.Errorf("error opening dataset %s: %w", path, err)
	}
	defer dset.Close()

	length, err := datasetLength(dset)
	if err != nil {
		return 0, fmt.Errorf("error reading extent of %s: %w", path, err)
	}
	if length == 0 {
		return 0, fmt.Errorf("dataset %s has no entries", path)
	}

	values, err := readSlab[int64](dset, 0, 1)
	if err != nil {
		return 0, fmt.Errorf("error reading %s: %w", path, err)
	}
	return values[0], nil
}

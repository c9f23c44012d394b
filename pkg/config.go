package simflow

// HistConfig is the shared binning for every histogram in the container.
type HistConfig struct {
	NBins int     `json:"nbins" yaml:"nbins"`
	EMin  float64 `json:"emin" yaml:"emin"`
	EMax  float64 `json:"emax" yaml:"emax"`
}

// CutConfig declares one selection. Cuts are a list, not a map: they are
// applied in declaration order.
type CutConfig struct {
	Name      string `json:"name" yaml:"name"`
	CutString string `json:"cut_string" yaml:"cut_string"`
	IsSum     bool   `json:"is_sum" yaml:"is_sum"`
	Is2D      bool   `json:"is_2d" yaml:"is_2d"`
}

type Configuration struct {
	Verbosity        int         `json:"verbosity" yaml:"verbosity"`
	Timestamp        string      `json:"timestamp" yaml:"timestamp"`
	EnergyThreshold  float64     `json:"energy_threshold" yaml:"energy_threshold"`
	Hist             HistConfig  `json:"hist" yaml:"hist"`
	Cuts             []CutConfig `json:"cuts" yaml:"cuts"`
	NStrings         int         `json:"n_strings" yaml:"n_strings"`
	RemoveACHits     bool        `json:"remove_ac_hits" yaml:"remove_ac_hits"`
	BatchBytes       int64       `json:"batch_bytes" yaml:"batch_bytes"`
	CompressionLevel int         `json:"compression_level" yaml:"compression_level"`
	PoissonSeed      uint64      `json:"poisson_seed" yaml:"poisson_seed"`
	NoDB             bool        `json:"no_db" yaml:"no_db"`
	Host             string      `json:"host" yaml:"host"`
	User             string      `json:"user" yaml:"user"`
	Passwd           string      `json:"pass" yaml:"pass"`
	DBName           string      `json:"dbname" yaml:"dbname"`
	Metadata         string      `json:"metadata" yaml:"metadata"`
	PlotsDir         string      `json:"plots_dir" yaml:"plots_dir"`
}

var configuration Configuration

func GetConfiguration() Configuration {
	return configuration
}

func SetConfiguration(config Configuration) {
	configuration = config
}

package simflow

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// WorkflowPaths holds the directory roots of a production. Tier outputs
// live under per-tier roots keyed tier_<tier> in the workflow config.
type WorkflowPaths struct {
	Config     string `json:"config"     yaml:"config"`
	Macros     string `json:"macros"     yaml:"macros"`
	Log        string `json:"log"        yaml:"log"`
	Benchmarks string `json:"benchmarks" yaml:"benchmarks"`
	Plots      string `json:"plots"      yaml:"plots"`
	TierVer    string `json:"tier_ver"   yaml:"tier_ver"`
	TierStp    string `json:"tier_stp"   yaml:"tier_stp"`
	TierHit    string `json:"tier_hit"   yaml:"tier_hit"`
	TierEvt    string `json:"tier_evt"   yaml:"tier_evt"`
	TierPdf    string `json:"tier_pdf"   yaml:"tier_pdf"`
}

type BenchmarkConfig struct {
	NPrimaries map[string]int64 `json:"n_primaries" yaml:"n_primaries"`
}

type WorkflowConfig struct {
	Experiment string          `json:"experiment" yaml:"experiment"`
	Paths      WorkflowPaths   `json:"paths"      yaml:"paths"`
	Benchmark  BenchmarkConfig `json:"benchmark"  yaml:"benchmark"`
}

func LoadWorkflowConfig(filename string) (WorkflowConfig, error) {
	var config WorkflowConfig

	file, err := os.ReadFile(filename)
	if err != nil {
		return config, fmt.Errorf("error reading workflow configuration: %w", err)
	}
	err = yaml.Unmarshal(file, &config)
	if err != nil {
		return config, fmt.Errorf("error parsing workflow configuration: %w", err)
	}
	return config, nil
}

func (p WorkflowPaths) TierDir(tier string) (string, error) {
	switch tier {
	case "ver":
		return p.TierVer, nil
	case "stp":
		return p.TierStp, nil
	case "hit":
		return p.TierHit, nil
	case "evt":
		return p.TierEvt, nil
	case "pdf":
		return p.TierPdf, nil
	}
	return "", &ErrUnknownTier{Tier: tier}
}

// Simulation jobs read macros in the ver and stp tiers and lh5 files
// everywhere else; every tier writes lh5.
var inputFiletypes = map[string]string{
	"ver": ".mac",
	"stp": ".mac",
	"hit": ".lh5",
	"evt": ".lh5",
	"pdf": ".lh5",
}

var outputFiletypes = map[string]string{
	"ver": ".lh5",
	"stp": ".lh5",
	"hit": ".lh5",
	"evt": ".lh5",
	"pdf": ".lh5",
}

// JobID formats a job index as the zero-padded label used in file names.
func JobID(id int) string {
	return fmt.Sprintf("%04d", id)
}

// SimJobBasename formats the partial output path of one simulation job.
func SimJobBasename(simid string, jobid int) string {
	return filepath.Join(simid, fmt.Sprintf("%s_%s", simid, JobID(jobid)))
}

func (c WorkflowConfig) LogFile(timestamp string, tier string, simid string, jobid int) string {
	name := SimJobBasename(simid, jobid) + fmt.Sprintf("-tier_%s.log", tier)
	return filepath.Join(c.Paths.Log, timestamp, tier, name)
}

func (c WorkflowConfig) GenMacroLogFile(timestamp string, tier string, simid string, jobid int) string {
	name := SimJobBasename(simid, jobid) + fmt.Sprintf("-tier_%s.log", tier)
	return filepath.Join(c.Paths.Log, timestamp, "macros", tier, name)
}

func (c WorkflowConfig) BenchmarkFile(tier string, simid string, jobid int) string {
	name := SimJobBasename(simid, jobid) + fmt.Sprintf("-tier_%s.tsv", tier)
	return filepath.Join(c.Paths.Benchmarks, tier, name)
}

func (c WorkflowConfig) PlotsDir(tier string, simid string) string {
	return filepath.Join(c.Paths.Plots, tier, simid)
}

// TemplateMacroDir returns the macro template directory for a tier.
func (c WorkflowConfig) TemplateMacroDir(tier string) string {
	return filepath.Join(c.Paths.Config, "tier", tier, c.Experiment)
}

func (c WorkflowConfig) InputSimJobFile(tier string, simid string, jobid int) (string, error) {
	ext, ok := inputFiletypes[tier]
	if !ok {
		return "", &ErrUnknownTier{Tier: tier}
	}
	name := SimJobBasename(simid, jobid) + fmt.Sprintf("-tier_%s%s", tier, ext)
	return filepath.Join(c.Paths.Macros, tier, name), nil
}

func (c WorkflowConfig) OutputSimJobFile(tier string, simid string, jobid int) (string, error) {
	dir, err := c.Paths.TierDir(tier)
	if err != nil {
		return "", err
	}
	name := SimJobBasename(simid, jobid) + fmt.Sprintf("-tier_%s%s", tier, outputFiletypes[tier])
	return filepath.Join(dir, name), nil
}

// OutputSimJobGlob returns the glob matching every output file of a simid.
func (c WorkflowConfig) OutputSimJobGlob(tier string, simid string) (string, error) {
	dir, err := c.Paths.TierDir(tier)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("*-tier_%s%s", tier, outputFiletypes[tier])
	return filepath.Join(dir, simid, name), nil
}

func (c WorkflowConfig) InputSimIDFiles(tier string, simid string, nMacros int) ([]string, error) {
	files := make([]string, nMacros)
	for jobid := range files {
		file, err := c.InputSimJobFile(tier, simid, jobid)
		if err != nil {
			return nil, err
		}
		files[jobid] = file
	}
	return files, nil
}

func (c WorkflowConfig) OutputSimIDFiles(tier string, simid string, nMacros int) ([]string, error) {
	files := make([]string, nMacros)
	for jobid := range files {
		file, err := c.OutputSimJobFile(tier, simid, jobid)
		if err != nil {
			return nil, err
		}
		files[jobid] = file
	}
	return files, nil
}

type SimConfigEntry struct {
	Template string `json:"template" yaml:"template"`
	Vertices string `json:"vertices" yaml:"vertices"`
}

func (c WorkflowConfig) loadSimConfig(tier string) (map[string]SimConfigEntry, string, error) {
	cfgFile := filepath.Join(c.TemplateMacroDir(tier), "simconfig.yaml")

	file, err := os.ReadFile(cfgFile)
	if err != nil {
		return nil, "", fmt.Errorf("error reading %s: %w", cfgFile, err)
	}
	var simConfig map[string]SimConfigEntry
	err = yaml.Unmarshal(file, &simConfig)
	if err != nil {
		return nil, "", fmt.Errorf("error parsing %s: %w", cfgFile, err)
	}
	return simConfig, cfgFile, nil
}

type MacroGenInputs struct {
	Template string
	CfgFile  string
}

// MacroGenInputs returns the template and config file a macro generation
// job for this simid needs.
func (c WorkflowConfig) MacroGenInputs(tier string, simid string) (MacroGenInputs, error) {
	simConfig, cfgFile, err := c.loadSimConfig(tier)
	if err != nil {
		return MacroGenInputs{}, err
	}

	entry, ok := simConfig[simid]
	if !ok {
		return MacroGenInputs{}, fmt.Errorf("no simconfig.yaml block for simulation %s", simid)
	}
	if entry.Template == "" {
		return MacroGenInputs{}, fmt.Errorf("simconfig.yaml blocks must define a 'template' field")
	}

	return MacroGenInputs{
		Template: filepath.Join(c.TemplateMacroDir(tier), entry.Template),
		CfgFile:  cfgFile,
	}, nil
}

// VerticesFileForStp returns the ver-tier file a stp job reads its event
// vertices from, or "" for simulations that generate their own.
func (c WorkflowConfig) VerticesFileForStp(simid string, jobid int) (string, error) {
	simConfig, _, err := c.loadSimConfig("stp")
	if err != nil {
		return "", err
	}

	entry, ok := simConfig[simid]
	if !ok {
		return "", fmt.Errorf("no simconfig.yaml block for simulation %s", simid)
	}
	if entry.Vertices == "" {
		return "", nil
	}
	return c.OutputSimJobFile("ver", entry.Vertices, jobid)
}

// EvtFileBasename formats the partial output path of an evt-tier job,
// labeled by run instead of job index.
func EvtFileBasename(simid string, runid string) string {
	return filepath.Join(simid, fmt.Sprintf("%s_%s-tier_evt", simid, runid))
}

func (c WorkflowConfig) OutputEvtFile(simid string, runid string) string {
	return filepath.Join(c.Paths.TierEvt, EvtFileBasename(simid, runid)+outputFiletypes["evt"])
}

func (c WorkflowConfig) EvtLogFile(timestamp string, simid string, runid string) string {
	return filepath.Join(c.Paths.Log, timestamp, "evt", EvtFileBasename(simid, runid)+".log")
}

func (c WorkflowConfig) EvtBenchmarkFile(simid string, runid string) string {
	return filepath.Join(c.Paths.Benchmarks, "evt", EvtFileBasename(simid, runid)+".tsv")
}

// PdfFileBasename formats the partial output path of a pdf-tier job,
// one output per simid.
func PdfFileBasename(simid string) string {
	return filepath.Join(simid, simid+"-tier_pdf")
}

func (c WorkflowConfig) OutputPdfFile(simid string) string {
	return filepath.Join(c.Paths.TierPdf, PdfFileBasename(simid)+outputFiletypes["pdf"])
}

func (c WorkflowConfig) PdfLogFile(timestamp string, simid string) string {
	return filepath.Join(c.Paths.Log, timestamp, "pdf", PdfFileBasename(simid)+".log")
}

func (c WorkflowConfig) PdfBenchmarkFile(simid string) string {
	return filepath.Join(c.Paths.Benchmarks, "pdf", PdfFileBasename(simid)+".tsv")
}

// PdfConfigPath returns the build-pdf configuration shipped with the
// pdf-tier macro templates.
func (c WorkflowConfig) PdfConfigPath() string {
	return filepath.Join(c.TemplateMacroDir("pdf"), "build-pdf-config.yaml")
}

var (
	periodPattern = regexp.MustCompile(`p\d\d`)
	runPattern    = regexp.MustCompile(`r\d\d\d`)
)

// RunPeriodFromFilename extracts the period and run labels from an evt
// file name. Files without labels map to p03/r000.
func RunPeriodFromFilename(filename string) (string, string) {
	base := filepath.Base(filename)

	period := "p03"
	if match := periodPattern.FindString(base); match != "" {
		period = match
	}
	run := "r000"
	if match := runPattern.FindString(base); match != "" {
		run = match
	}
	return period, run
}

package config

import (
	"errors"
	"fmt"
	"runtime"

	quererrors "github.com/quersearch/quer/internal/errors"
	"github.com/quersearch/quer/internal/history"
	"github.com/quersearch/quer/internal/scanner"
	"github.com/quersearch/quer/internal/walker"
)

// Validator validates configuration and sets smart defaults
type Validator struct{}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateAndSetDefaults validates configuration and applies smart defaults
// Returns an error if validation fails
func (v *Validator) ValidateAndSetDefaults(cfg *Config) error {
	if err := v.validateProjectConfig(&cfg.Project); err != nil {
		return quererrors.NewConfigError("project", "", err)
	}

	if err := v.validateWalkConfig(&cfg.Walk); err != nil {
		return quererrors.NewConfigError("walk", "", err)
	}

	if err := v.validateScanConfig(&cfg.Scan); err != nil {
		return quererrors.NewConfigError("scan", "", err)
	}

	if err := v.validateSearchConfig(&cfg.Search); err != nil {
		return quererrors.NewConfigError("search", "", err)
	}

	if err := v.validateHistoryConfig(&cfg.History); err != nil {
		return quererrors.NewConfigError("history", "", err)
	}

	v.setSmartDefaults(cfg)
	return nil
}

func (v *Validator) validateProjectConfig(project *Project) error {
	if project.Root == "" {
		return errors.New("project root cannot be empty")
	}
	return nil
}

func (v *Validator) validateWalkConfig(walk *Walk) error {
	if walk.MaxFileSize < 0 {
		return fmt.Errorf("max_file_size cannot be negative, got %d", walk.MaxFileSize)
	}

	if walk.QueueSize < 0 {
		return fmt.Errorf("queue_size cannot be negative, got %d", walk.QueueSize)
	}

	return nil
}

func (v *Validator) validateScanConfig(scan *Scan) error {
	if scan.Workers < 0 {
		return fmt.Errorf("workers cannot be negative, got %d", scan.Workers)
	}

	if scan.Workers > 4*runtime.NumCPU() {
		return fmt.Errorf("workers should not exceed 4x CPU count (%d), got %d", 4*runtime.NumCPU(), scan.Workers)
	}

	if scan.ContextBytes < 0 {
		return fmt.Errorf("context_bytes cannot be negative, got %d", scan.ContextBytes)
	}

	return nil
}

func (v *Validator) validateSearchConfig(search *Search) error {
	if search.Alignment < 0 {
		return fmt.Errorf("alignment cannot be negative, got %d", search.Alignment)
	}

	if search.MaxHitsPerFile < 0 {
		return fmt.Errorf("max_hits_per_file cannot be negative, got %d", search.MaxHitsPerFile)
	}

	return nil
}

func (v *Validator) validateHistoryConfig(hist *History) error {
	if hist.Capacity < 0 {
		return fmt.Errorf("capacity cannot be negative, got %d", hist.Capacity)
	}
	return nil
}

// setSmartDefaults fills zero values that mean "pick for me"
func (v *Validator) setSmartDefaults(cfg *Config) {
	if cfg.Walk.QueueSize == 0 {
		cfg.Walk.QueueSize = walker.DefaultQueueSize
	}

	if cfg.Scan.ContextBytes == 0 {
		cfg.Scan.ContextBytes = scanner.DefaultContextBytes
	}

	if cfg.History.Capacity == 0 {
		cfg.History.Capacity = history.DefaultCapacity
	}

	if cfg.History.File == "" {
		cfg.History.File = DefaultHistoryFile
	}
}

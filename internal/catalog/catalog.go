// Package catalog reads regulatory circulars authored as YAML and writes them
// into the shared reference graph. Sections nest in the file, so a parent
// cycle cannot be expressed.
package catalog

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"regtrack/internal/apperr"
	"regtrack/internal/models"
)

type File struct {
	Regulations []Regulation `yaml:"regulations"`
}

type Regulation struct {
	Code          string     `yaml:"code"`
	Version       string     `yaml:"version"`
	Title         string     `yaml:"title"`
	Issuer        string     `yaml:"issuer"`
	EffectiveFrom *time.Time `yaml:"effective_from"`
	Sections      []Section  `yaml:"sections"`
}

type Section struct {
	Ref          string        `yaml:"ref"`
	Title        string        `yaml:"title"`
	Requirements []Requirement `yaml:"requirements"`
	Sections     []Section     `yaml:"sections"`
}

type Requirement struct {
	Code        string                  `yaml:"code"`
	Title       string                  `yaml:"title"`
	Description string                  `yaml:"description"`
	Frequency   models.Frequency        `yaml:"frequency"`
	Priority    models.Priority         `yaml:"priority"`
	MinTier     models.SubscriptionTier `yaml:"min_tier"`
	Module      models.Module           `yaml:"module"`
}

// Load decodes and validates a catalog. Unknown keys are rejected so a typo
// in a field name cannot silently drop data.
func Load(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, apperr.Wrap(err, apperr.CodeValidation, "decode catalog")
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

func LoadFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer fh.Close()
	return Load(fh)
}

func invalid(format string, args ...any) error {
	return apperr.Newf(apperr.CodeValidation, format, args...)
}

func (f *File) Validate() error {
	if len(f.Regulations) == 0 {
		return invalid("catalog has no regulations")
	}
	seen := map[string]bool{}
	for i := range f.Regulations {
		reg := &f.Regulations[i]
		if err := reg.validate(); err != nil {
			return err
		}
		key := reg.Code + "@" + reg.Version
		if seen[key] {
			return apperr.Newf(apperr.CodeUniqueness, "regulation %s appears twice", key)
		}
		seen[key] = true
	}
	return nil
}

func (r *Regulation) validate() error {
	r.Code = strings.TrimSpace(r.Code)
	r.Title = strings.TrimSpace(r.Title)
	if r.Code == "" {
		return invalid("regulation code is required")
	}
	if r.Title == "" {
		return invalid("regulation %s: title is required", r.Code)
	}
	v, err := semver.StrictNewVersion(strings.TrimSpace(r.Version))
	if err != nil {
		return invalid("regulation %s: version %q is not semantic: %v", r.Code, r.Version, err)
	}
	r.Version = v.String()
	if len(r.Sections) == 0 {
		return invalid("regulation %s: no sections", r.Code)
	}
	codes := map[string]bool{}
	for i := range r.Sections {
		if err := r.Sections[i].validate(r.Code, codes); err != nil {
			return err
		}
	}
	return nil
}

func (s *Section) validate(regCode string, codes map[string]bool) error {
	s.Title = strings.TrimSpace(s.Title)
	if s.Title == "" {
		return invalid("regulation %s: section %q has no title", regCode, s.Ref)
	}
	for i := range s.Requirements {
		req := &s.Requirements[i]
		if err := req.validate(regCode); err != nil {
			return err
		}
		if codes[req.Code] {
			return apperr.Newf(apperr.CodeUniqueness, "regulation %s: requirement %s appears twice", regCode, req.Code)
		}
		codes[req.Code] = true
	}
	for i := range s.Sections {
		if err := s.Sections[i].validate(regCode, codes); err != nil {
			return err
		}
	}
	return nil
}

func (r *Requirement) validate(regCode string) error {
	r.Code = strings.TrimSpace(r.Code)
	r.Title = strings.TrimSpace(r.Title)
	switch {
	case r.Code == "":
		return invalid("regulation %s: requirement without code", regCode)
	case r.Title == "":
		return invalid("regulation %s: requirement %s has no title", regCode, r.Code)
	case !r.Frequency.Valid():
		return invalid("requirement %s: invalid frequency %q", r.Code, r.Frequency)
	case !r.Priority.Valid():
		return invalid("requirement %s: invalid priority %q", r.Code, r.Priority)
	case !r.MinTier.Valid():
		return invalid("requirement %s: invalid min tier %q", r.Code, r.MinTier)
	case !r.Module.Valid():
		return invalid("requirement %s: invalid module %q", r.Code, r.Module)
	}
	return nil
}

package geoloc

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Profile is one named read-accuracy policy. Constrained (mobile, battery
// powered) hosts trade accuracy and staleness tolerance for power; standard
// hosts do the opposite.
type Profile struct {
	Name         string `yaml:"name" validate:"required"`
	HighAccuracy bool   `yaml:"highAccuracy"`
	TimeoutMS    int    `yaml:"timeoutMS" validate:"gt=0"`
	MaxFixAgeMS  int    `yaml:"maxFixAgeMS" validate:"gte=0"`
	IntervalMS   int    `yaml:"intervalMS" validate:"gt=0"`
}

type profileFile struct {
	Profiles []Profile `yaml:"profiles" validate:"required,min=1,dive"`
}

func (p Profile) readOptions() Options {
	return Options{
		HighAccuracy: p.HighAccuracy,
		Timeout:      time.Duration(p.TimeoutMS) * time.Millisecond,
		MaxFixAge:    time.Duration(p.MaxFixAgeMS) * time.Millisecond,
	}
}

func (p Profile) interval() time.Duration {
	return time.Duration(p.IntervalMS) * time.Millisecond
}

// DefaultProfiles returns the built-in standard and constrained policies.
func DefaultProfiles() []Profile {
	return []Profile{
		{Name: "standard", HighAccuracy: true, TimeoutMS: 10000, MaxFixAgeMS: 0, IntervalMS: 10000},
		{Name: "constrained", HighAccuracy: false, TimeoutMS: 20000, MaxFixAgeMS: 60000, IntervalMS: 30000},
	}
}

// LoadProfiles reads named profiles from a yaml file. An empty path returns
// the built-in defaults.
func LoadProfiles(path string) ([]Profile, error) {
	if path == "" {
		return DefaultProfiles(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}

	var f profileFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	if err := validator.New().Struct(f); err != nil {
		return nil, fmt.Errorf("validate profiles: %w", err)
	}
	return f.Profiles, nil
}

// SelectProfile picks a profile by name, falling back to the first entry.
func SelectProfile(profiles []Profile, name string) Profile {
	for _, p := range profiles {
		if p.Name == name {
			return p
		}
	}
	if len(profiles) > 0 {
		return profiles[0]
	}
	return DefaultProfiles()[0]
}

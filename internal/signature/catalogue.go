package signature

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Names of the signatures the controllers depend on.
const (
	GameStates        = "GameStates"
	AreaChangeCounter = "AreaChangeCounter"
)

//go:embed default.yaml
var defaultCatalogue []byte

// Catalogue is a set of signatures for one target build.
type Catalogue struct {
	Build      string
	Signatures []Signature
}

type catalogueFile struct {
	Build      string          `yaml:"build"`
	Signatures []signatureFile `yaml:"signatures"`
}

type signatureFile struct {
	Name    string `yaml:"name"`
	Pattern string `yaml:"pattern"`
	Skip    int    `yaml:"skip"`
}

// DefaultCatalogue returns the embedded catalogue.
func DefaultCatalogue() (Catalogue, error) {
	return ParseCatalogue(defaultCatalogue)
}

// LoadCatalogue reads a catalogue file, an empty path returns the default catalogue.
func LoadCatalogue(path string) (Catalogue, error) {
	if path == "" {
		return DefaultCatalogue()
	}
	f, err := os.Open(path)
	if err != nil {
		return Catalogue{}, fmt.Errorf("opening signature file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(f)
	if err != nil {
		return Catalogue{}, fmt.Errorf("reading signature file %s: %w", path, err)
	}
	return ParseCatalogue(data)
}

// ParseCatalogue parses a YAML signature catalogue.
func ParseCatalogue(data []byte) (Catalogue, error) {
	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Catalogue{}, fmt.Errorf("parsing signature catalogue: %w", err)
	}

	cat := Catalogue{
		Build:      file.Build,
		Signatures: make([]Signature, 0, len(file.Signatures)),
	}
	seen := map[string]struct{}{}
	for _, entry := range file.Signatures {
		if entry.Name == "" {
			return Catalogue{}, fmt.Errorf("signature without name: %w", ErrInvalidPattern)
		}
		if _, ok := seen[entry.Name]; ok {
			return Catalogue{}, fmt.Errorf("duplicate signature '%s'", entry.Name)
		}
		seen[entry.Name] = struct{}{}

		sig, err := Parse(entry.Name, entry.Pattern, entry.Skip)
		if err != nil {
			return Catalogue{}, err
		}
		cat.Signatures = append(cat.Signatures, sig)
	}
	return cat, nil
}

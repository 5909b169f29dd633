// Package preset stores named filter chains as YAML files and parses the
// textual chain syntax used on the command line.
package preset

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	fimgs "github.com/rprtr258/fimgs/pkg"
)

var ErrNotFound = errors.New("preset not found")

// Extensions tried by Find, in order. JSON is valid YAML.
var Extensions = []string{".yaml", ".yml", ".json"}

type Preset struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Filters     []fimgs.Spec `yaml:"filters"`
}

var validName = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

func (p Preset) validate() error {
	if !validName.MatchString(p.Name) {
		return errors.Errorf("invalid preset name %q", p.Name)
	}
	if len(p.Filters) == 0 {
		return errors.Errorf("preset %q has no filters", p.Name)
	}
	for i, f := range p.Filters {
		if f.Name == "" {
			return errors.Errorf("preset %q: filter #%d has no name", p.Name, i+1)
		}
	}
	return nil
}

// Decode parses a preset document. A missing name is taken from fallbackName.
func Decode(data []byte, fallbackName string) (Preset, error) {
	var p Preset
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return Preset{}, errors.Wrap(err, "decode preset")
	}
	if p.Name == "" {
		p.Name = fallbackName
	}
	if err := p.validate(); err != nil {
		return Preset{}, err
	}
	return p, nil
}

func Load(path string) (Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Preset{}, errors.Wrapf(err, "read preset %q", path)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	p, err := Decode(data, name)
	return p, errors.Wrapf(err, "preset file %q", path)
}

// Find loads the preset called name from dir.
func Find(dir, name string) (Preset, error) {
	if !validName.MatchString(name) {
		return Preset{}, errors.Errorf("invalid preset name %q", name)
	}
	for _, ext := range Extensions {
		path := filepath.Join(dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return Preset{}, errors.Wrapf(ErrNotFound, "%q in %q", name, dir)
}

// Save writes p to dir as <name>.yaml and returns the file path.
func Save(dir string, p Preset) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return "", errors.Wrap(err, "encode preset")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create preset directory %q", dir)
	}
	path := filepath.Join(dir, p.Name+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrapf(err, "write preset %q", path)
	}
	return path, nil
}

// List returns the names of presets in dir. A missing dir has none.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "list presets in %q", dir)
	}

	seen := map[string]bool{}
	var names []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		name := strings.TrimSuffix(e.Name(), ext)
		if e.IsDir() || !isPresetExt(ext) || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

func isPresetExt(ext string) bool {
	for _, e := range Extensions {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// ParseChain parses "name:key=value:key=value,name,..." into specs. Values
// that look like booleans, integers or floats are typed accordingly.
func ParseChain(text string) ([]fimgs.Spec, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("empty filter chain")
	}

	var specs []fimgs.Spec
	for i, step := range strings.Split(text, ",") {
		parts := strings.Split(strings.TrimSpace(step), ":")
		name := strings.ToLower(strings.TrimSpace(parts[0]))
		if name == "" {
			return nil, errors.Errorf("filter #%d: missing name", i+1)
		}

		spec := fimgs.Spec{Name: name}
		for _, kv := range parts[1:] {
			k, v, ok := strings.Cut(kv, "=")
			k = strings.TrimSpace(k)
			if !ok || k == "" {
				return nil, errors.Errorf("filter %q: parameter %q is not key=value", name, kv)
			}
			if spec.Params == nil {
				spec.Params = fimgs.Params{}
			}
			spec.Params[k] = parseValue(strings.TrimSpace(v))
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func parseValue(s string) any {
	if b, err := strconv.ParseBool(s); err == nil && !isNumeric(s) {
		return b
	}
	if i, err := strconv.Atoi(s); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

// ParseBool accepts "1" and "0", which should stay numbers.
func isNumeric(s string) bool {
	return s == "0" || s == "1"
}

// FormatChain renders specs back into chain syntax.
func FormatChain(specs []fimgs.Spec) string {
	steps := make([]string, len(specs))
	for i, s := range specs {
		steps[i] = s.String()
	}
	return strings.Join(steps, ",")
}

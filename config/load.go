package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/AntoninoFulci/bdxplot"
)

// Pattern matches configuration files below a directory.
const Pattern = "**/*.{yaml,yml,json}"

// Load reads, migrates and validates the configuration stored in fname.
func Load(fname string) (*Analysis, error) {
	raw, err := os.ReadFile(fname)
	if err != nil {
		return nil, bdxplot.DataErr(fname, err)
	}

	var doc map[string]interface{}
	switch strings.ToLower(filepath.Ext(fname)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(raw, &doc)
	case ".json":
		err = json.Unmarshal(raw, &doc)
	default:
		return nil, bdxplot.Configf("%s: unsupported configuration format", fname)
	}
	if err != nil {
		return nil, bdxplot.Configf("could not decode %s: %v", fname, err)
	}

	cfg, err := Decode(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	cfg.Path = fname

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", fname, err)
	}
	return cfg, nil
}

// Decode converts a generic document into the canonical schema. Legacy
// field names are migrated and defaults filled in before decoding, so that
// the rest of the program only deals with canonical names.
func Decode(doc map[string]interface{}) (*Analysis, error) {
	if doc == nil {
		return nil, bdxplot.Configf("configuration must be a mapping")
	}
	migrate(doc)

	buf, err := yaml.Marshal(doc)
	if err != nil {
		return nil, bdxplot.Configf("could not normalize configuration: %v", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(buf))
	dec.KnownFields(true)

	var cfg Analysis
	if err := dec.Decode(&cfg); err != nil {
		return nil, bdxplot.Configf("%v", err)
	}
	return &cfg, nil
}

// Find returns the configuration files found below dir, sorted.
func Find(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, bdxplot.DataErr(dir, err)
	}
	files, err := doublestar.FilepathGlob(filepath.Join(dir, Pattern))
	if err != nil {
		return nil, bdxplot.DataErr(dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func migrate(doc map[string]interface{}) {
	particle := section(doc, "particle")
	setDefault(particle, "particle_id", 11)
	setDefault(particle, "name", "mu_plus")
	setDefault(particle, "variable", "P")
	setDefault(particle, "weight", "Weight1")
	if _, ok := particle["particle_id"].([]interface{}); !ok {
		particle["particle_id"] = []interface{}{particle["particle_id"]}
	}

	for _, surf := range items(doc, "surfaces") {
		for _, ax := range []string{"x", "y", "z"} {
			rename(surf, ax+"_min", ax+"l")
			rename(surf, ax+"_max", ax+"h")
		}
		setDefault(surf, "bin_width", 0.5)
		setDefault(surf, "spatial_analysis", true)
		if v, ok := surf["name"]; !ok || v == nil {
			surf["name"] = fmt.Sprintf("surface_%v", surf["id"])
		}
	}

	for _, box := range items(doc, "box_surfaces") {
		rename(box, "id", "surface_id")
		for _, ax := range []string{"x", "y", "z"} {
			rename(box, ax+"_min", ax+"min")
			rename(box, ax+"_max", ax+"max")
			rename(box, ax+"l", ax+"min")
			rename(box, ax+"h", ax+"max")
		}
		setDefault(box, "bin_width", 0.5)
		setDefault(box, "spatial_analysis", true)
	}

	if nv, ok := doc["new_variable"]; ok {
		delete(doc, "new_variable")
		if nv != nil {
			vars, _ := doc["new_variables"].([]interface{})
			doc["new_variables"] = append([]interface{}{nv}, vars...)
		}
	}

	if v2, ok := doc["variable_2d"].(map[string]interface{}); ok {
		setDefault(v2, "enabled", true)
		setDefault(v2, "x_label", v2["x_variable"])
		setDefault(v2, "y_label", v2["y_variable"])
		setDefault(v2, "title", fmt.Sprintf("%v vs %v", v2["y_variable"], v2["x_variable"]))
	}

	output := section(doc, "output")
	setDefault(output, "base_name", "analysis")
	setDefault(output, "directory", ".")
	setDefault(output, "format_template", DefaultTemplate)

	for _, cmp := range items(doc, "comparisons") {
		setDefault(cmp, "title", "Comparison")
		setDefault(cmp, "logy", true)
		setDefault(cmp, "line_width", 2)
		setDefault(cmp, "legend_position", "top_right")
		setDefault(cmp, "draw_option", "hist")
		if pos, ok := cmp["legend_position"].([]interface{}); ok {
			parts := make([]string, len(pos))
			for i, p := range pos {
				parts[i] = fmt.Sprint(p)
			}
			cmp["legend_position"] = strings.Join(parts, ",")
		}
	}
}

func section(doc map[string]interface{}, key string) map[string]interface{} {
	m, ok := doc[key].(map[string]interface{})
	if !ok {
		m = make(map[string]interface{})
		doc[key] = m
	}
	return m
}

func items(doc map[string]interface{}, key string) []map[string]interface{} {
	list, _ := doc[key].([]interface{})
	var out []map[string]interface{}
	for _, v := range list {
		if m, ok := v.(map[string]interface{}); ok {
			out = append(out, m)
		}
	}
	return out
}

func setDefault(m map[string]interface{}, key string, v interface{}) {
	if cur, ok := m[key]; !ok || cur == nil || cur == "" {
		m[key] = v
	}
}

func rename(m map[string]interface{}, from, to string) {
	v, ok := m[from]
	if !ok {
		return
	}
	delete(m, from)
	if _, exists := m[to]; !exists {
		m[to] = v
	}
}

// server/taxonomy/taxonomy.go
package taxonomy

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Filter values understood by the repository.
const (
	FilterAll        = "All"
	FilterNone       = "No Project"
	orgAllSuffix     = " (All)"
	projectSeparator = " - "
)

//go:embed default.yaml
var defaultYAML []byte

type Organization struct {
	Name     string   `yaml:"organization" json:"organization"`
	Projects []string `yaml:"projects" json:"projects"`
}

// Company is an organization with its project count.
type Company struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Taxonomy is the static organization -> projects mapping.
// Project tags are written as "<Organization> - <Project>".
type Taxonomy struct {
	orgs []Organization
}

func Default() *Taxonomy {
	t, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("taxonomy: embedded default is invalid: %v", err))
	}
	return t
}

// Load reads a YAML taxonomy file; an empty path yields the default.
func Load(path string) (*Taxonomy, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read taxonomy: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Taxonomy, error) {
	var orgs []Organization
	if err := yaml.Unmarshal(data, &orgs); err != nil {
		return nil, fmt.Errorf("failed to parse taxonomy: %w", err)
	}
	seen := make(map[string]bool, len(orgs))
	for i, org := range orgs {
		name := strings.TrimSpace(org.Name)
		if name == "" {
			return nil, fmt.Errorf("taxonomy entry %d has no organization", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("taxonomy organization %q listed twice", name)
		}
		seen[name] = true
		orgs[i].Name = name
	}
	return &Taxonomy{orgs: orgs}, nil
}

func (t *Taxonomy) Organizations() []string {
	names := make([]string, 0, len(t.orgs))
	for _, org := range t.orgs {
		names = append(names, org.Name)
	}
	return names
}

// OrganizationOptions is the organization filter list: All, No Project,
// then every organization.
func (t *Taxonomy) OrganizationOptions() []string {
	return append([]string{FilterAll, FilterNone}, t.Organizations()...)
}

// ProjectOptions lists filter values for org. For an unknown or empty org
// it lists every project of every organization after All and No Project.
func (t *Taxonomy) ProjectOptions(org string) []string {
	if o, ok := t.lookup(org); ok {
		options := []string{OrgAll(o.Name)}
		for _, p := range o.Projects {
			options = append(options, Tag(o.Name, p))
		}
		return options
	}

	options := []string{FilterAll, FilterNone}
	for _, o := range t.orgs {
		for _, p := range o.Projects {
			options = append(options, Tag(o.Name, p))
		}
	}
	return options
}

func (t *Taxonomy) Companies() []Company {
	out := make([]Company, 0, len(t.orgs))
	for _, o := range t.orgs {
		out = append(out, Company{Name: o.Name, Count: len(o.Projects)})
	}
	return out
}

// Config returns organization -> projects.
func (t *Taxonomy) Config() map[string][]string {
	out := make(map[string][]string, len(t.orgs))
	for _, o := range t.orgs {
		out[o.Name] = append([]string(nil), o.Projects...)
	}
	return out
}

func (t *Taxonomy) lookup(org string) (Organization, bool) {
	for _, o := range t.orgs {
		if o.Name == org {
			return o, true
		}
	}
	return Organization{}, false
}

// Tag formats a project tag.
func Tag(org, project string) string {
	return org + projectSeparator + project
}

// OrgAll is the filter value matching every project of org.
func OrgAll(org string) string {
	return org + orgAllSuffix
}

// ParseOrgAll extracts org from an "<Org> (All)" filter value.
func ParseOrgAll(filter string) (string, bool) {
	if !strings.HasSuffix(filter, orgAllSuffix) {
		return "", false
	}
	return strings.TrimSuffix(filter, orgAllSuffix), true
}

// OrgPrefix is the prefix shared by every project tag of org.
func OrgPrefix(org string) string {
	return org + projectSeparator
}

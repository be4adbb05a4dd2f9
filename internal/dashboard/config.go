package dashboard

import (
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"adminka/internal/admin"
	"adminka/internal/menu"
)

// Config is the parsed admin.yaml.
type Config struct {
	BaseURL         string              `yaml:"base_url"`
	Admins          []admin.Definition  `yaml:"admins"`
	Groups          Groups              `yaml:"groups"`
	RoleHierarchy   map[string][]string `yaml:"role_hierarchy"`
	SuperAdminRoles []string            `yaml:"super_admin_roles"`
	Routes          []admin.Route       `yaml:"routes"`
}

// Groups keeps the order in which groups are written in the file.
type Groups []menu.NamedGroup

func (g *Groups) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return errors.Newf("line %d: groups must be a mapping of name to group", n.Line)
	}
	out := make(Groups, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		var name string
		if err := n.Content[i].Decode(&name); err != nil {
			return err
		}
		var grp menu.Group
		if err := n.Content[i+1].Decode(&grp); err != nil {
			return errors.Wrapf(err, "group %q", name)
		}
		out = append(out, menu.NamedGroup{Name: name, Group: grp.WithDefaults(name)})
	}
	*g = out
	return nil
}

// Lookup finds a group by its key.
func (g Groups) Lookup(name string) (menu.Group, bool) {
	for _, ng := range g {
		if ng.Name == name {
			return ng.Group, true
		}
	}
	return menu.Group{}, false
}

// ParseConfig decodes admin.yaml from r.
func ParseConfig(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Mark(errors.Wrap(err, "parse admin config"), admin.ErrInvalidArgument)
	}
	return &cfg, nil
}

// LoadConfig читает admin.yaml с диска.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open admin config %s", path)
	}
	defer f.Close()
	cfg, err := ParseConfig(f)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	return cfg, nil
}

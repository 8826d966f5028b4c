package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/reviewpulse/reviewpulse/internal/model"
)

// Taxonomy is the declarative organizations-and-topics file applied
// with the apply command.
type Taxonomy struct {
	Organizations []OrgSpec `yaml:"organizations"`
}

// OrgSpec declares one tracked organization.
type OrgSpec struct {
	ID          string           `yaml:"id"`
	Name        string           `yaml:"name"`
	Role        string           `yaml:"role"`
	ServiceType string           `yaml:"service_type"`
	Topics      TopicsSpec       `yaml:"topics"`
	Competitors []CompetitorSpec `yaml:"competitors"`
}

// CompetitorSpec links an organization to a competitor organization.
type CompetitorSpec struct {
	ID       string `yaml:"id"`
	Priority int    `yaml:"priority"`
	Notes    string `yaml:"notes"`
}

// TopicsSpec is either the literal string "inherit" or an explicit list
// of topic trees.
type TopicsSpec struct {
	Inherit bool
	Trees   []model.TopicTree
}

// UnmarshalYAML accepts `topics: inherit` as well as a tree list.
func (t *TopicsSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		var s string
		if err := node.Decode(&s); err != nil {
			return err
		}
		if s != "inherit" {
			return eris.Errorf("config: topics must be a list or \"inherit\", got %q", s)
		}
		t.Inherit = true
		return nil
	}
	return node.Decode(&t.Trees)
}

// LoadTaxonomy reads and validates the taxonomy file.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "config: read taxonomy %s", path)
	}

	var tax Taxonomy
	if err := yaml.Unmarshal(raw, &tax); err != nil {
		return nil, eris.Wrapf(err, "config: parse taxonomy %s", path)
	}
	if err := tax.validate(); err != nil {
		return nil, err
	}
	return &tax, nil
}

func (t *Taxonomy) validate() error {
	seen := map[string]bool{}
	for _, org := range t.Organizations {
		if org.ID == "" {
			return eris.New("config: organization with empty id")
		}
		if seen[org.ID] {
			return eris.Errorf("config: duplicate organization %s", org.ID)
		}
		seen[org.ID] = true

		if org.Role != "" && !model.Role(org.Role).Valid() {
			return eris.Errorf("config: organization %s has invalid role %q", org.ID, org.Role)
		}
		for _, tree := range org.Topics.Trees {
			if tree.Name == "" {
				return eris.Errorf("config: organization %s has a topic with no name", org.ID)
			}
		}
	}
	return nil
}

// TopicsFor resolves the topic trees for one organization. "inherit"
// copies the trees of the first organization with the same service
// type that declares explicit topics; with no such donor the
// organization simply has no topics.
func (t *Taxonomy) TopicsFor(org OrgSpec) []model.TopicTree {
	if !org.Topics.Inherit {
		return org.Topics.Trees
	}
	for _, donor := range t.Organizations {
		if donor.ServiceType != org.ServiceType || len(donor.Topics.Trees) == 0 {
			continue
		}
		trees := make([]model.TopicTree, len(donor.Topics.Trees))
		for i, tree := range donor.Topics.Trees {
			trees[i] = model.TopicTree{
				Name:      tree.Name,
				Subtopics: append([]string(nil), tree.Subtopics...),
			}
		}
		return trees
	}
	return nil
}

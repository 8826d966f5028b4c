package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/reviewpulse/reviewpulse/internal/config"
	"github.com/reviewpulse/reviewpulse/internal/model"
	"github.com/reviewpulse/reviewpulse/internal/store"
)

// Applier reconciles the declarative taxonomy file with the store.
type Applier struct {
	store *store.Store
}

func NewApplier(st *store.Store) *Applier { return &Applier{store: st} }

// ApplyAction describes one planned or executed change.
type ApplyAction struct {
	OrgID  string `json:"org_id"`
	Action string `json:"action"`
	Detail string `json:"detail,omitempty"`
}

// Apply brings tracked organizations, competitor links and topic
// taxonomies in line with the file. It runs in three passes inside one
// transaction: every organization first, then competitor links (which
// reference organizations declared anywhere in the file), then topics.
// Topic replacement wipes existing classifications for that
// organization, so unchanged taxonomies are left alone. With dryRun
// set, the planned actions are returned without touching the store.
func (a *Applier) Apply(ctx context.Context, tax *config.Taxonomy, dryRun bool) ([]ApplyAction, error) {
	var actions []ApplyAction
	run := func(ctx context.Context) error {
		for _, orgSpec := range tax.Organizations {
			role := model.Role(orgSpec.Role)
			if role == "" {
				role = model.RoleTracked
			}

			actions = append(actions, ApplyAction{OrgID: orgSpec.ID, Action: "upsert organization"})
			if !dryRun {
				update := model.OrganizationUpdate{OrgID: orgSpec.ID, Role: role}
				if orgSpec.Name != "" {
					update.Name = &orgSpec.Name
				}
				if orgSpec.ServiceType != "" {
					update.ServiceType = &orgSpec.ServiceType
				}
				if err := a.store.UpsertOrganization(ctx, update); err != nil {
					return err
				}
			}
		}

		for _, orgSpec := range tax.Organizations {
			for _, comp := range orgSpec.Competitors {
				actions = append(actions, ApplyAction{
					OrgID:  orgSpec.ID,
					Action: "link competitor",
					Detail: comp.ID,
				})
				if !dryRun {
					if err := a.store.UpsertRelation(ctx, model.Relation{
						OrgID:        orgSpec.ID,
						CompetitorID: comp.ID,
						Priority:     comp.Priority,
						Notes:        comp.Notes,
					}); err != nil {
						return err
					}
				}
			}
		}

		for _, orgSpec := range tax.Organizations {
			trees := tax.TopicsFor(orgSpec)
			if len(trees) == 0 {
				continue
			}
			changed, err := a.topicsChanged(ctx, orgSpec.ID, trees)
			if err != nil {
				return err
			}
			if changed {
				actions = append(actions, ApplyAction{
					OrgID:  orgSpec.ID,
					Action: "replace topics",
					Detail: "resets topic embeddings and classifications",
				})
				if !dryRun {
					if err := a.store.ReplaceTopics(ctx, orgSpec.ID, trees); err != nil {
						return err
					}
				}
			}
		}
		return nil
	}

	if dryRun {
		if err := run(ctx); err != nil {
			return actions, err
		}
		return actions, nil
	}
	if err := a.store.Transaction(ctx, run); err != nil {
		return actions, err
	}
	zap.S().Infow("applied taxonomy", "organizations", len(tax.Organizations), "actions", len(actions))
	return actions, nil
}

// topicsChanged compares the stored taxonomy of an organization with
// the desired trees by structure and name.
func (a *Applier) topicsChanged(ctx context.Context, orgID string, want []model.TopicTree) (bool, error) {
	stored, err := a.store.ListTopics(ctx, orgID)
	if err != nil {
		return false, err
	}

	var have []model.TopicTree
	byID := map[int64]int{}
	for _, t := range stored {
		if t.IsParent() {
			byID[t.ID] = len(have)
			have = append(have, model.TopicTree{Name: t.Name})
		}
	}
	for _, t := range stored {
		if t.IsParent() {
			continue
		}
		if i, ok := byID[t.ParentID]; ok {
			have[i].Subtopics = append(have[i].Subtopics, t.Name)
		}
	}

	if len(have) != len(want) {
		return true, nil
	}
	for i := range want {
		if have[i].Name != want[i].Name || len(have[i].Subtopics) != len(want[i].Subtopics) {
			return true, nil
		}
		for j := range want[i].Subtopics {
			if have[i].Subtopics[j] != want[i].Subtopics[j] {
				return true, nil
			}
		}
	}
	return false, nil
}

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"

	"github.com/reviewpulse/reviewpulse/internal/model"
)

// UpsertOrganization creates or non-destructively updates an
// organization: nil fields in the update preserve the stored value.
func (s *Store) UpsertOrganization(ctx context.Context, in model.OrganizationUpdate) error {
	role := in.Role
	if role == "" {
		role = model.RoleTracked
	}
	if !role.Valid() {
		return eris.Errorf("store: invalid role %q for organization %s", role, in.OrgID)
	}

	var cats *string
	if in.Categories != nil {
		b, err := json.Marshal(in.Categories)
		if err != nil {
			return eris.Wrap(err, "store: marshal categories")
		}
		str := string(b)
		cats = &str
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO organizations (org_id, name, rating, review_count, address, categories, role, service_type, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(org_id) DO UPDATE SET
			name = COALESCE(excluded.name, organizations.name),
			rating = COALESCE(excluded.rating, organizations.rating),
			review_count = COALESCE(excluded.review_count, organizations.review_count),
			address = COALESCE(excluded.address, organizations.address),
			categories = COALESCE(excluded.categories, organizations.categories),
			service_type = COALESCE(excluded.service_type, organizations.service_type),
			role = excluded.role,
			updated_at = excluded.updated_at`,
		in.OrgID, in.Name, in.Rating, in.ReviewCount, in.Address, cats, string(role), in.ServiceType,
		time.Now().UTC(), time.Now().UTC(),
	)
	return eris.Wrapf(err, "store: upsert organization %s", in.OrgID)
}

// GetOrganization returns one organization, or ErrNoRows.
func (s *Store) GetOrganization(ctx context.Context, orgID string) (*model.Organization, error) {
	row := s.db.QueryRow(ctx, `
		SELECT org_id, name, rating, review_count, address, categories, role, service_type, created_at, updated_at
		FROM organizations WHERE org_id = ?`, orgID)
	org, err := scanOrganization(row)
	return org, eris.Wrapf(err, "store: get organization %s", orgID)
}

// ListOrganizations returns all organizations, optionally filtered by
// role, ordered by name.
func (s *Store) ListOrganizations(ctx context.Context, role model.Role) ([]model.Organization, error) {
	query := `
		SELECT org_id, name, rating, review_count, address, categories, role, service_type, created_at, updated_at
		FROM organizations`
	var args []any
	if role != "" {
		query += ` WHERE role = ?`
		args = append(args, string(role))
	}
	query += ` ORDER BY name`

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "store: list organizations")
	}
	defer rows.Close()

	var orgs []model.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, eris.Wrap(err, "store: scan organization")
		}
		orgs = append(orgs, *org)
	}
	return orgs, eris.Wrap(rows.Err(), "store: list organizations iterate")
}

// RemoveOrganization deletes an organization and everything owned by it:
// classifications, embeddings, reviews, topics, scores, relations and
// sync history, all in one transaction.
func (s *Store) RemoveOrganization(ctx context.Context, orgID string) error {
	return s.db.Transaction(ctx, func(ctx context.Context) error {
		steps := []string{
			`DELETE FROM review_topics WHERE review_id IN (SELECT id FROM reviews WHERE org_id = ?)`,
			`DELETE FROM review_embeddings WHERE review_id IN (SELECT id FROM reviews WHERE org_id = ?)`,
			`DELETE FROM reviews WHERE org_id = ?`,
			`DELETE FROM org_scores WHERE org_id = ?`,
			`DELETE FROM topics WHERE org_id = ? AND parent_id IS NOT NULL`,
			`DELETE FROM topics WHERE org_id = ?`,
			`DELETE FROM sync_log WHERE org_id = ?`,
			`DELETE FROM organizations WHERE org_id = ?`,
		}
		if _, err := s.db.Exec(ctx,
			`DELETE FROM org_relations WHERE org_id = ? OR competitor_id = ?`, orgID, orgID); err != nil {
			return eris.Wrapf(err, "store: remove relations for %s", orgID)
		}
		for _, q := range steps {
			if _, err := s.db.Exec(ctx, q, orgID); err != nil {
				return eris.Wrapf(err, "store: remove organization %s", orgID)
			}
		}
		return nil
	})
}

// UpsertRelation records or updates a competitor link.
func (s *Store) UpsertRelation(ctx context.Context, rel model.Relation) error {
	var priority *int
	if rel.Priority != 0 {
		priority = &rel.Priority
	}
	var notes *string
	if rel.Notes != "" {
		notes = &rel.Notes
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO org_relations (org_id, competitor_id, priority, notes, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(org_id, competitor_id) DO UPDATE SET
			priority = excluded.priority,
			notes = excluded.notes`,
		rel.OrgID, rel.CompetitorID, priority, notes, time.Now().UTC(),
	)
	return eris.Wrapf(err, "store: upsert relation %s -> %s", rel.OrgID, rel.CompetitorID)
}

// ListRelations returns the competitor links for one organization.
func (s *Store) ListRelations(ctx context.Context, orgID string) ([]model.Relation, error) {
	rows, err := s.db.Query(ctx, `
		SELECT org_id, competitor_id, priority, notes
		FROM org_relations WHERE org_id = ? ORDER BY priority, competitor_id`, orgID)
	if err != nil {
		return nil, eris.Wrap(err, "store: list relations")
	}
	defer rows.Close()

	var rels []model.Relation
	for rows.Next() {
		var (
			rel      model.Relation
			priority sql.NullInt64
			notes    sql.NullString
		)
		if err := rows.Scan(&rel.OrgID, &rel.CompetitorID, &priority, &notes); err != nil {
			return nil, eris.Wrap(err, "store: scan relation")
		}
		rel.Priority = int(priority.Int64)
		rel.Notes = notes.String
		rels = append(rels, rel)
	}
	return rels, eris.Wrap(rows.Err(), "store: list relations iterate")
}

func scanOrganization(r Row) (*model.Organization, error) {
	var (
		org         model.Organization
		name        sql.NullString
		rating      sql.NullFloat64
		reviewCount sql.NullInt64
		address     sql.NullString
		categories  sql.NullString
		serviceType sql.NullString
	)
	err := r.Scan(&org.OrgID, &name, &rating, &reviewCount, &address, &categories,
		&org.Role, &serviceType, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, err
	}
	org.Name = name.String
	org.Rating = rating.Float64
	org.ReviewCount = int(reviewCount.Int64)
	org.Address = address.String
	org.ServiceType = serviceType.String
	if categories.Valid && categories.String != "" {
		if err := json.Unmarshal([]byte(categories.String), &org.Categories); err != nil {
			return nil, eris.Wrap(err, "store: unmarshal categories")
		}
	}
	return &org, nil
}

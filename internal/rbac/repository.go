package rbac

import (
	"context"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hrconnect/hrconnect/internal/platform/db"
)

// Repository persists the rule table.
type Repository interface {
	ListRules(ctx context.Context) ([]Rule, error)
	ReplaceRoleRules(ctx context.Context, role Role, rules []Rule) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// ListRules returns every grant grouped into rules.
func (r *PGRepository) ListRules(ctx context.Context) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `SELECT role, resource, action FROM role_rules ORDER BY role, resource, action`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	type key struct {
		role     Role
		resource string
	}
	grouped := make(map[key][]Action)
	var order []key
	for rows.Next() {
		var role, resource, action string
		if err := rows.Scan(&role, &resource, &action); err != nil {
			return nil, err
		}
		k := key{role: Role(role), resource: resource}
		if _, ok := grouped[k]; !ok {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], Action(action))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rules := make([]Rule, 0, len(order))
	for _, k := range order {
		rules = append(rules, Rule{Role: k.role, Resource: k.resource, Actions: grouped[k]})
	}
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Role != rules[j].Role {
			return rules[i].Role < rules[j].Role
		}
		return rules[i].Resource < rules[j].Resource
	})
	return rules, nil
}

// ReplaceRoleRules swaps all grants for role inside one transaction.
func (r *PGRepository) ReplaceRoleRules(ctx context.Context, role Role, rules []Rule) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_rules WHERE role = $1`, string(role)); err != nil {
			return err
		}
		batch := &pgx.Batch{}
		for _, rule := range rules {
			for _, action := range rule.Actions {
				batch.Queue(`INSERT INTO role_rules (role, resource, action, created_at) VALUES ($1, $2, $3, NOW())
					ON CONFLICT (role, resource, action) DO NOTHING`,
					string(role), NormalizeResource(rule.Resource), string(action))
			}
		}
		if batch.Len() == 0 {
			return nil
		}
		return tx.SendBatch(ctx, batch).Close()
	})
}

var _ Repository = (*PGRepository)(nil)

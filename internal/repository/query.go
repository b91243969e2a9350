// Copyright 2025 The CampussGo Authors
// Licensed under the EUPL-1.2

package repository

import (
	"context"
	"fmt"
	"strings"

	"codeberg.org/campussgo/campussgo/internal/models"
)

// DefaultPageSize is used when a list request does not specify a limit.
const DefaultPageSize = 10

// ListParams describes a paginated list query: column filters, sort order,
// pagination and a free-text search over name and email. Sort accepts a
// comma-separated column list where a leading '-' means descending.
type ListParams struct {
	Filters map[string]string
	Sort    string
	Search  string
	Page    int
	Limit   int
}

// filterableColumns are the columns a caller may filter on.
var filterableColumns = map[string]bool{
	"role":        true,
	"active":      true,
	"is_verified": true,
	"email":       true,
	"name":        true,
}

// sortableColumns are the columns a caller may sort by.
var sortableColumns = map[string]bool{
	"name":       true,
	"email":      true,
	"role":       true,
	"created_at": true,
	"updated_at": true,
}

// ListUsers runs a filtered, sorted, paginated query and returns the matching
// page together with the total match count.
func (r *Repository) ListUsers(ctx context.Context, params ListParams) ([]models.User, int64, error) {
	where, args := buildWhere(params)

	var count int64
	countQuery := `SELECT COUNT(*) FROM users` + where
	if err := r.db.GetContext(ctx, &count, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	page := params.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	query := `SELECT ` + publicColumns + ` FROM users` + where +
		buildOrderBy(params.Sort) + ` LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	users := []models.User{}
	if err := r.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}
	return users, count, nil
}

func buildWhere(params ListParams) (string, []any) {
	var clauses []string
	var args []any

	for column, value := range params.Filters {
		if !filterableColumns[column] {
			continue
		}
		clauses = append(clauses, column+" = ?")
		args = append(args, value)
	}

	if params.Search != "" {
		clauses = append(clauses, "(name LIKE ? OR email LIKE ?)")
		pattern := "%" + params.Search + "%"
		args = append(args, pattern, pattern)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// buildOrderBy translates the mongoose-style sort expression into SQL,
// ignoring unknown columns. Defaults to newest first.
func buildOrderBy(sort string) string {
	var terms []string
	for column := range strings.SplitSeq(sort, ",") {
		column = strings.TrimSpace(column)
		direction := " ASC"
		if strings.HasPrefix(column, "-") {
			column = strings.TrimPrefix(column, "-")
			direction = " DESC"
		}
		if sortableColumns[column] {
			terms = append(terms, column+direction)
		}
	}
	if len(terms) == 0 {
		return " ORDER BY created_at DESC"
	}
	return " ORDER BY " + strings.Join(terms, ", ")
}

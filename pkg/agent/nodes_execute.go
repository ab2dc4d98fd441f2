package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/datanaut-ai/datanaut/pkg/database"
	"github.com/datanaut-ai/datanaut/pkg/sqlguard"
	"github.com/datanaut-ai/datanaut/pkg/state"
)

// executeSQL runs the current candidate and replaces the result set.
func (a *Agent) executeSQL(ctx context.Context, s state.AgentState) (state.AgentState, error) {
	return a.runSQL(ctx, s, false)
}

// executeWiderSearch runs the widened candidate and appends to whatever the
// earlier attempts already found.
func (a *Agent) executeWiderSearch(ctx context.Context, s state.AgentState) (state.AgentState, error) {
	return a.runSQL(ctx, s, true)
}

// runSQL sanitizes the candidate, splits it across the databases that own
// the referenced tables, and executes concurrently. Partial cross-database
// failures are logged and tolerated; a run where no database produced rows
// because every target failed becomes an execution error.
func (a *Agent) runSQL(ctx context.Context, s state.AgentState, merge bool) (state.AgentState, error) {
	if s.DisableDatabases {
		return s, nil
	}

	query := sqlguard.Sanitize(s.SQLQuery)
	targets := a.queryTargets(s, query)
	if len(targets) == 0 {
		s.SetError(state.ErrorKindExecution, "no configured database owns the referenced tables")
		return s, nil
	}

	all, errs := a.deps.Databases.QueryAll(ctx, targets, query)
	if len(errs) == len(targets) {
		first := firstQueryError(errs)
		s.SetError(state.Classify(first), fmt.Sprintf("query failed on %s: %v", joinKeys(errs), first))
		return s, nil
	}
	for name, err := range errs {
		a.logger.Warn("Database query failed, keeping the other results", "database", name, "error", err)
	}

	tagged := database.Flatten(all)
	if merge {
		s.DBResults = append(s.DBResults, tagged...)
		if s.AllDBResults == nil {
			s.AllDBResults = make(map[string][]map[string]any, len(all))
		}
		for name, rows := range all {
			s.AllDBResults[name] = append(s.AllDBResults[name], rows...)
		}
	} else {
		s.DBResults = tagged
		s.AllDBResults = all
	}

	a.logger.Info("SQL executed",
		"databases", len(all), "failed", len(errs), "rows", len(tagged), "merged", merge)
	return s, nil
}

// queryTargets maps the candidate's table references to the databases that
// own them. An explicitly requested database overrides the split; a query
// whose references resolve nowhere goes to every configured database.
func (a *Agent) queryTargets(s state.AgentState, query string) []string {
	if s.DatabaseName != "" {
		return []string{s.DatabaseName}
	}

	owners := make(map[string]string, len(s.TableToDBMapping))
	for table, db := range s.TableToDBMapping {
		owners[strings.ToLower(table)] = db
	}

	seen := make(map[string]struct{})
	var targets []string
	for _, ref := range sqlguard.ParseTableRefs(query) {
		table := strings.ToLower(ref.Table)
		if idx := strings.LastIndex(table, "."); idx >= 0 {
			table = table[idx+1:]
		}
		db, ok := owners[table]
		if !ok {
			continue
		}
		if _, dup := seen[db]; !dup {
			seen[db] = struct{}{}
			targets = append(targets, db)
		}
	}
	if len(targets) == 0 {
		return a.deps.Databases.Names()
	}
	sort.Strings(targets)
	return targets
}

func firstQueryError(errs map[string]error) error {
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	return errs[names[0]]
}

func joinKeys(errs map[string]error) string {
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

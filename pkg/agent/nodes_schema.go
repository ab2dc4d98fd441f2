package agent

import (
	"context"

	"github.com/datanaut-ai/datanaut/pkg/state"
)

// getSchema dumps the table schemas the SQL model is allowed to use and the
// table-to-database mapping execution splits queries by. Per-database dump
// failures are logged and swallowed; the run continues on what resolved.
func (a *Agent) getSchema(ctx context.Context, s state.AgentState) (state.AgentState, error) {
	if s.DisableDatabases {
		s.SchemaDump = map[string]state.TableSchema{}
		s.TableToDBMapping = map[string]string{}
		return s, nil
	}

	if s.DatabaseName != "" {
		tables, err := a.deps.Databases.Schema(ctx, s.DatabaseName)
		if err != nil {
			a.logger.Warn("Schema dump failed", "database", s.DatabaseName, "error", err)
			s.SchemaDump = map[string]state.TableSchema{}
			s.TableToDBMapping = map[string]string{}
			return s, nil
		}
		mapping := make(map[string]string, len(tables))
		for name := range tables {
			mapping[name] = s.DatabaseName
		}
		s.SchemaDump = tables
		s.TableToDBMapping = mapping
		return s, nil
	}

	merged, mapping, errs := a.deps.Databases.DumpAll(ctx)
	for name, err := range errs {
		a.logger.Warn("Schema dump failed", "database", name, "error", err)
	}
	s.SchemaDump = merged
	s.TableToDBMapping = mapping
	return s, nil
}

package api

// QueryRequest is the body of POST /api/v1/query.
type QueryRequest struct {
	UserRequest        string `json:"user_request" binding:"required"`
	CustomSystemPrompt string `json:"custom_system_prompt"`
	// DisableSQLBlocking overrides the configured default when present.
	DisableSQLBlocking *bool `json:"disable_sql_blocking"`
	// DatabaseName restricts the run to one configured database.
	DatabaseName string `json:"database_name"`
}

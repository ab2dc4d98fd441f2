package config

import (
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
)

// PrimaryDatabaseName is the registry key for the database configured via
// the bare DATABASE_URL variable.
const PrimaryDatabaseName = "primary"

// DatabaseConfig describes one queryable database. Either URL carries a full
// connection URL, or the quintuple fields describe the endpoint.
type DatabaseConfig struct {
	Name     string
	Type     DatabaseType
	Username string
	Password string
	Hostname string
	Port     int
	Database string // database name, or the file path for sqlite
	URL      string // full connection URL; takes precedence over the quintuple
}

// DatabasesFromEnv discovers every configured database from the environment:
// DATABASE_URL for the primary, and DB_<NAME>_URL or the
// DB_<NAME>_{TYPE,USERNAME,PASSWORD,HOSTNAME,PORT,NAME} quintuple for each
// additional one.
func DatabasesFromEnv() (map[string]*DatabaseConfig, error) {
	databases := make(map[string]*DatabaseConfig)

	if raw := os.Getenv("DATABASE_URL"); raw != "" {
		cfg, err := databaseFromURL(PrimaryDatabaseName, raw)
		if err != nil {
			return nil, err
		}
		databases[cfg.Name] = cfg
	}

	for _, name := range scanDatabaseNames() {
		cfg, err := databaseFromPrefix(name)
		if err != nil {
			return nil, err
		}
		databases[cfg.Name] = cfg
	}

	return databases, nil
}

// scanDatabaseNames finds the <NAME> part of every DB_<NAME>_URL and
// DB_<NAME>_TYPE variable currently set.
func scanDatabaseNames() []string {
	seen := make(map[string]struct{})
	for _, env := range os.Environ() {
		key, _, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, "DB_") {
			continue
		}
		var name string
		switch {
		case strings.HasSuffix(key, "_URL"):
			name = strings.TrimSuffix(strings.TrimPrefix(key, "DB_"), "_URL")
		case strings.HasSuffix(key, "_TYPE"):
			name = strings.TrimSuffix(strings.TrimPrefix(key, "DB_"), "_TYPE")
		default:
			continue
		}
		if name != "" {
			seen[name] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func databaseFromPrefix(name string) (*DatabaseConfig, error) {
	prefix := "DB_" + strings.ToUpper(name) + "_"

	if raw := os.Getenv(prefix + "URL"); raw != "" {
		return databaseFromURL(strings.ToLower(name), raw)
	}

	rawType := os.Getenv(prefix + "TYPE")
	dbType, ok := ParseDatabaseType(rawType)
	if !ok {
		return nil, fmt.Errorf("%w: %q (database %s)", ErrUnknownDatabaseType, rawType, strings.ToLower(name))
	}

	port := dbType.defaultPort()
	if raw := os.Getenv(prefix + "PORT"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %sPORT=%q: %v", ErrInvalidValue, prefix, raw, err)
		}
		port = parsed
	}

	hostname := os.Getenv(prefix + "HOSTNAME")
	if hostname == "" && dbType != DatabaseTypeSQLite {
		hostname = "localhost"
	}

	return &DatabaseConfig{
		Name:     strings.ToLower(name),
		Type:     dbType,
		Username: os.Getenv(prefix + "USERNAME"),
		Password: os.Getenv(prefix + "PASSWORD"),
		Hostname: hostname,
		Port:     port,
		Database: os.Getenv(prefix + "NAME"),
	}, nil
}

func databaseFromURL(name, raw string) (*DatabaseConfig, error) {
	scheme := raw
	if idx := strings.Index(raw, "://"); idx >= 0 {
		scheme = raw[:idx]
	} else {
		// A bare path is treated as a sqlite file.
		return &DatabaseConfig{Name: name, Type: DatabaseTypeSQLite, Database: raw, URL: raw}, nil
	}

	dbType, ok := ParseDatabaseType(scheme)
	if !ok {
		return nil, fmt.Errorf("%w: URL scheme %q (database %s)", ErrUnknownDatabaseType, scheme, name)
	}

	return &DatabaseConfig{Name: name, Type: dbType, URL: raw}, nil
}

func (t DatabaseType) defaultPort() int {
	switch t {
	case DatabaseTypePostgreSQL:
		return 5432
	case DatabaseTypeMySQL:
		return 3306
	case DatabaseTypeOracle:
		return 1521
	case DatabaseTypeMSSQL:
		return 1433
	default:
		return 0
	}
}

// DSN renders the connection string in the form the registered driver
// expects. URL-configured databases are converted where the driver does not
// accept URL syntax (mysql, sqlite).
func (c *DatabaseConfig) DSN() (string, error) {
	if c.URL != "" {
		return dsnFromURL(c.Type, c.URL)
	}

	switch c.Type {
	case DatabaseTypePostgreSQL:
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Hostname, c.Port, c.Username, c.Password, c.Database,
		), nil
	case DatabaseTypeMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true",
			c.Username, c.Password, c.Hostname, c.Port, c.Database), nil
	case DatabaseTypeSQLite:
		if c.Database == "" {
			return "", fmt.Errorf("%w: sqlite database %q has no file path", ErrMissingRequiredField, c.Name)
		}
		return c.Database, nil
	case DatabaseTypeOracle:
		u := url.URL{
			Scheme: "oracle",
			User:   url.UserPassword(c.Username, c.Password),
			Host:   fmt.Sprintf("%s:%d", c.Hostname, c.Port),
			Path:   "/" + c.Database,
		}
		return u.String(), nil
	case DatabaseTypeMSSQL:
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(c.Username, c.Password),
			Host:     fmt.Sprintf("%s:%d", c.Hostname, c.Port),
			RawQuery: "database=" + url.QueryEscape(c.Database),
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDatabaseType, c.Type)
	}
}

func dsnFromURL(dbType DatabaseType, raw string) (string, error) {
	switch dbType {
	case DatabaseTypePostgreSQL, DatabaseTypeOracle:
		// pgx and go-ora take the URL form directly.
		return raw, nil
	case DatabaseTypeMSSQL:
		if strings.HasPrefix(raw, "mssql://") {
			return "sqlserver://" + strings.TrimPrefix(raw, "mssql://"), nil
		}
		return raw, nil
	case DatabaseTypeSQLite:
		trimmed := strings.TrimPrefix(raw, "sqlite://")
		trimmed = strings.TrimPrefix(trimmed, "sqlite3://")
		if trimmed == "" {
			return "", fmt.Errorf("%w: empty sqlite path in %q", ErrInvalidValue, raw)
		}
		return trimmed, nil
	case DatabaseTypeMySQL:
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrInvalidValue, raw, err)
		}
		password, _ := u.User.Password()
		dsn := fmt.Sprintf("%s:%s@tcp(%s)/%s",
			u.User.Username(), password, u.Host, strings.TrimPrefix(u.Path, "/"))
		if u.RawQuery != "" {
			dsn += "?" + u.RawQuery
		}
		return dsn, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDatabaseType, dbType)
	}
}

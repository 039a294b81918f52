package targets

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net"
	"net/url"
	"strings"
	"text/template"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"

	"github.com/systmms/dsops-rotator/internal/config"
	"github.com/systmms/dsops-rotator/internal/logging"
	"github.com/systmms/dsops-rotator/pkg/rotation"
)

// Default commands per driver. Templates see .Username, .Password and
// .SecretID and may use the ident and literal quoting functions.
var defaultSetCommands = map[string]string{
	"postgres": "ALTER USER {{ ident .Username }} WITH PASSWORD {{ literal .Password }}",
	"mysql":    "ALTER USER {{ literal .Username }}@'%' IDENTIFIED BY {{ literal .Password }}",
}

const defaultVerifyQuery = "SELECT 1"

// SQLTarget applies and verifies database user passwords. setSecret runs
// the set command as the configured admin user; testSecret logs in as the
// rotated user and runs the verify query.
type SQLTarget struct {
	driver        string
	connection    map[string]string
	auth          map[string]string
	setCommand    *template.Template
	verifyQuery   string
	usernameField string
	passwordField string
	timeout       time.Duration
	open          func(driver, dsn string) (*sql.DB, error)
}

// SQLOption configures a SQLTarget.
type SQLOption func(*SQLTarget)

// WithOpener replaces sql.Open (for testing).
func WithOpener(open func(driver, dsn string) (*sql.DB, error)) SQLOption {
	return func(t *SQLTarget) {
		t.open = open
	}
}

// NewSQLTarget creates a target from the "target" config section.
func NewSQLTarget(cfg config.TargetConfig, opts ...SQLOption) (*SQLTarget, error) {
	driver, err := driverFor(cfg.Connection["type"])
	if err != nil {
		return nil, err
	}

	setCmd := cfg.Commands["set"]
	if setCmd == "" {
		setCmd = defaultSetCommands[driver]
	}
	funcs := template.FuncMap{
		"ident":   identQuoter(driver),
		"literal": literalQuoter(driver),
	}
	tmpl, err := template.New("set").Funcs(funcs).Option("missingkey=error").Parse(setCmd)
	if err != nil {
		return nil, fmt.Errorf("invalid set command template: %w", err)
	}

	verify := cfg.Commands["verify"]
	if verify == "" {
		verify = defaultVerifyQuery
	}

	t := &SQLTarget{
		driver:        driver,
		connection:    cfg.Connection,
		auth:          cfg.Auth,
		setCommand:    tmpl,
		verifyQuery:   verify,
		usernameField: fieldOr(cfg.UsernameField, "username"),
		passwordField: fieldOr(cfg.PasswordField, rotation.DefaultPasswordField),
		timeout:       time.Duration(cfg.GetTimeout()) * time.Millisecond,
		open:          sql.Open,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Apply implements rotation.CredentialApplier.
func (t *SQLTarget) Apply(ctx context.Context, secretID string, pending []byte) error {
	username, password, err := t.credentials(pending)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	db, err := t.connect(ctx, t.auth["username"], t.auth["password"])
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var buf strings.Builder
	err = t.setCommand.Execute(&buf, map[string]string{
		"Username": username,
		"Password": password,
		"SecretID": secretID,
	})
	if err != nil {
		return fmt.Errorf("failed to render set command: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// The rendered statement contains the password, so driver errors are
	// reported without it.
	if _, err := tx.ExecContext(ctx, buf.String()); err != nil {
		return fmt.Errorf("failed to execute set command for user %s: %s", username, redact(err.Error(), password))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Verify implements rotation.CredentialVerifier.
func (t *SQLTarget) Verify(ctx context.Context, secretID string, pending []byte) error {
	username, password, err := t.credentials(pending)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	db, err := t.connect(ctx, username, password)
	if err != nil {
		return fmt.Errorf("%w: %s", rotation.ErrVerificationFailed, redact(err.Error(), password))
	}
	defer func() { _ = db.Close() }()

	var result interface{}
	if err := db.QueryRowContext(ctx, t.verifyQuery).Scan(&result); err != nil {
		return fmt.Errorf("%w: verify query failed for user %s: %s", rotation.ErrVerificationFailed, username, redact(err.Error(), password))
	}
	return nil
}

func (t *SQLTarget) connect(ctx context.Context, username, password string) (*sql.DB, error) {
	dsn, err := t.buildConnectionString(username, password)
	if err != nil {
		return nil, err
	}
	db, err := t.open(t.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %s", redact(err.Error(), password))
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database as %s: %s", username, redact(err.Error(), password))
	}
	return db, nil
}

// redact removes password from msg in raw form and in the escaped forms a
// connection URL carries.
func redact(msg, password string) string {
	userinfo := strings.TrimPrefix(url.UserPassword("", password).String(), ":")
	return logging.Redact(msg, []string{
		password,
		userinfo,
		url.QueryEscape(password),
		url.PathEscape(password),
	})
}

func (t *SQLTarget) credentials(pending []byte) (string, string, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(pending, &fields); err != nil || fields == nil {
		return "", "", fmt.Errorf("pending payload is not a JSON object")
	}
	username, _ := fields[t.usernameField].(string)
	if username == "" {
		return "", "", fmt.Errorf("pending payload has no %q field", t.usernameField)
	}
	password, _ := fields[t.passwordField].(string)
	if password == "" {
		return "", "", fmt.Errorf("pending payload has no %q field", t.passwordField)
	}
	return username, password, nil
}

// buildConnectionString creates a database connection string
func (t *SQLTarget) buildConnectionString(username, password string) (string, error) {
	host := net.JoinHostPort(t.connection["host"], t.connection["port"])

	switch t.driver {
	case "postgres":
		sslmode := t.connection["sslmode"]
		if sslmode == "" {
			sslmode = "require"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(username, password),
			Host:     host,
			Path:     "/" + t.connection["database"],
			RawQuery: url.Values{"sslmode": {sslmode}}.Encode(),
		}
		return u.String(), nil

	case "mysql":
		cfg := mysql.NewConfig()
		cfg.User = username
		cfg.Passwd = password
		cfg.Net = "tcp"
		cfg.Addr = host
		cfg.DBName = t.connection["database"]
		cfg.ParseTime = true
		return cfg.FormatDSN(), nil

	default:
		return "", fmt.Errorf("unsupported database driver: %s", t.driver)
	}
}

func driverFor(dbType string) (string, error) {
	switch strings.ToLower(dbType) {
	case "postgresql", "postgres":
		return "postgres", nil
	case "mysql", "mariadb":
		return "mysql", nil
	default:
		return "", fmt.Errorf("unsupported database type: %s", dbType)
	}
}

func identQuoter(driver string) func(string) string {
	if driver == "mysql" {
		return func(s string) string {
			return "`" + strings.ReplaceAll(s, "`", "``") + "`"
		}
	}
	return pq.QuoteIdentifier
}

func literalQuoter(driver string) func(string) string {
	if driver == "mysql" {
		return func(s string) string {
			s = strings.ReplaceAll(s, `\`, `\\`)
			return "'" + strings.ReplaceAll(s, "'", "''") + "'"
		}
	}
	return pq.QuoteLiteral
}

func fieldOr(field, def string) string {
	if field == "" {
		return def
	}
	return field
}

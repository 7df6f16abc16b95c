package client

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/godror/godror"
	"github.com/jmoiron/sqlx"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/nodefeed/nodefeed/constants"
	"github.com/nodefeed/nodefeed/utils"
)

// ConnConfig holds the connection settings for one identity. The engine
// needs two: an administrative identity for candidate and ancestor queries
// (a restricted identity could see zero rows in a bounded window and stall
// the cursor) and an impersonated identity for result materialization so
// permission filtering still applies downstream.
type ConnConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	// Service is the Oracle service name; ignored for SQL Server.
	Service  string `json:"service"`
	MaxConns int    `json:"max_connections"`
}

// Validate checks and normalises the connection configuration.
func (c *ConnConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("empty host name")
	} else if strings.Contains(c.Host, "http") {
		return fmt.Errorf("host should not contain http or https")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port number: must be between 1 and 65535")
	}
	if c.MaxConns <= 0 {
		c.MaxConns = 2
	}
	return utils.Validate(c)
}

func (c *ConnConfig) dsn(dialect constants.DialectType) string {
	if dialect == constants.Oracle {
		service := utils.Ternary(c.Service == "", c.Database, c.Service).(string)
		return fmt.Sprintf(`user=%q password=%q connectString=%q`,
			c.Username, c.Password, fmt.Sprintf("%s:%d/%s", c.Host, c.Port, service))
	}

	query := url.Values{}
	query.Add("database", c.Database)
	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.Username, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// Connect opens and pings a connection for the given dialect.
func Connect(ctx context.Context, dialect constants.DialectType, config *ConnConfig) (*SQLClient, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate connection config: %s", err)
	}

	driverName := utils.Ternary(dialect == constants.Oracle, "godror", "sqlserver").(string)
	db, err := sql.Open(driverName, config.dsn(dialect))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %s", dialect, err)
	}

	wrapped := sqlx.NewDb(db, driverName).Unsafe()
	wrapped.SetMaxOpenConns(config.MaxConns)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := utils.RetryExec(pingCtx, func() error {
		return wrapped.PingContext(pingCtx)
	}, 2, time.Second); err != nil {
		wrapped.Close()
		return nil, fmt.Errorf("failed to ping database: %s", err)
	}
	return NewSQLClient(wrapped), nil
}

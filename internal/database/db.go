// Package database owns the MySQL connection pool and the schema
// bootstrap for the reservation service.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// newConfig assembles the driver configuration.  Going through
// mysql.Config instead of a hand-written DSN keeps the two settings
// the repositories depend on from drifting: ParseTime so DATE and
// TIMESTAMP columns scan as time.Time, and UTC as the session
// location so travel dates round-trip unchanged.
func newConfig(user, pass, host, port, name string) *mysql.Config {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = pass
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(host, port)
	cfg.DBName = name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg
}

// Open connects to MySQL and verifies the connection before the
// server starts taking bookings.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	db, err := sql.Open("mysql", newConfig(user, pass, host, port, name).FormatDSN())
	if err != nil {
		return nil, err
	}

	// Booking transactions are short (claim, insert, commit), so the
	// pool favours breadth over long-lived idle connections: enough
	// open slots to absorb a sale-day burst, a small idle reserve,
	// and recycling aggressive enough to survive network churn.
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping mysql: %w", err)
	}
	return db, nil
}

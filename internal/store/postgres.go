/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres is the relational Store.
type Postgres struct {
	db *sql.DB
}

var _ Store = (*Postgres)(nil)

// OpenPostgres connects to dsn, checks connectivity and applies pending migrations.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return &Postgres{db: db}, nil
}

func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not create iofs source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not apply migrations: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Ping checks that the database is reachable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// GetHost returns the record for host, or ErrNotFound.
func (p *Postgres) GetHost(ctx context.Context, host string) (*HostRecord, error) {
	var (
		rec      HostRecord
		nodeIPs  string
		recordID sql.NullString
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT host, rr, node_ips, node_port, provider_record_id, record_type, created_at, updated_at
		 FROM managed_hosts WHERE host = $1`, host,
	).Scan(&rec.Host, &rec.RR, &nodeIPs, &rec.NodePort, &recordID, &rec.RecordType, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get host %s: %w", host, err)
	}
	rec.NodeIPs = splitIPs(nodeIPs)
	rec.ProviderRecordID = recordID.String
	return &rec, nil
}

// SaveHost inserts or replaces the record keyed by rec.Host.
func (p *Postgres) SaveHost(ctx context.Context, rec *HostRecord) error {
	recordID := sql.NullString{String: rec.ProviderRecordID, Valid: rec.ProviderRecordID != ""}
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO managed_hosts (host, rr, node_ips, node_port, provider_record_id, record_type)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (host) DO UPDATE SET
		   rr = EXCLUDED.rr,
		   node_ips = EXCLUDED.node_ips,
		   node_port = EXCLUDED.node_port,
		   provider_record_id = EXCLUDED.provider_record_id,
		   record_type = EXCLUDED.record_type,
		   updated_at = now()
		 RETURNING created_at, updated_at`,
		rec.Host, rec.RR, strings.Join(rec.NodeIPs, ","), rec.NodePort, recordID, rec.RecordType,
	).Scan(&rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save host %s: %w", rec.Host, err)
	}
	return nil
}

// DeleteHost removes the record for host.
func (p *Postgres) DeleteHost(ctx context.Context, host string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM managed_hosts WHERE host = $1`, host); err != nil {
		return fmt.Errorf("delete host %s: %w", host, err)
	}
	return nil
}

// ListHosts returns every host record.
func (p *Postgres) ListHosts(ctx context.Context) ([]HostRecord, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT host, rr, node_ips, node_port, provider_record_id, record_type, created_at, updated_at
		 FROM managed_hosts ORDER BY host`)
	if err != nil {
		return nil, fmt.Errorf("list hosts: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []HostRecord
	for rows.Next() {
		var (
			rec      HostRecord
			nodeIPs  string
			recordID sql.NullString
		)
		if err := rows.Scan(&rec.Host, &rec.RR, &nodeIPs, &rec.NodePort, &recordID, &rec.RecordType,
			&rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan host: %w", err)
		}
		rec.NodeIPs = splitIPs(nodeIPs)
		rec.ProviderRecordID = recordID.String
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetPublicIP returns the last reported public address, or ErrNotFound.
func (p *Postgres) GetPublicIP(ctx context.Context) (*PublicIP, error) {
	var ip PublicIP
	err := p.db.QueryRowContext(ctx,
		`SELECT identifier, ip_address, created_at, updated_at FROM public_ip_records WHERE identifier = $1`,
		DefaultPublicIPIdentifier,
	).Scan(&ip.Identifier, &ip.IPAddress, &ip.CreatedAt, &ip.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get public ip: %w", err)
	}
	return &ip, nil
}

// SavePublicIP stores ipAddress as the current public address.
func (p *Postgres) SavePublicIP(ctx context.Context, ipAddress string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO public_ip_records (identifier, ip_address) VALUES ($1, $2)
		 ON CONFLICT (identifier) DO UPDATE SET ip_address = EXCLUDED.ip_address, updated_at = now()`,
		DefaultPublicIPIdentifier, ipAddress,
	)
	if err != nil {
		return fmt.Errorf("save public ip: %w", err)
	}
	return nil
}

// RecordOperation appends op to the gateway audit log.
func (p *Postgres) RecordOperation(ctx context.Context, op *GatewayOperation) error {
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO gateway_operations
		   (operation, upstream_host, external_host, node_port, request_body, response_body, status, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		string(op.Operation), op.UpstreamHost, op.ExternalHost, op.NodePort,
		op.RequestBody, op.ResponseBody, string(op.Status), op.ErrorMessage,
	).Scan(&op.ID, &op.CreatedAt)
	if err != nil {
		return fmt.Errorf("record gateway operation: %w", err)
	}
	return nil
}

// ListOperations returns up to limit audit entries, newest first.
func (p *Postgres) ListOperations(ctx context.Context, limit int) ([]GatewayOperation, error) {
	if limit <= 0 {
		return []GatewayOperation{}, nil
	}
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, operation, upstream_host, external_host, node_port, request_body, response_body,
		        status, error_message, created_at
		 FROM gateway_operations ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list gateway operations: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	out := []GatewayOperation{}
	for rows.Next() {
		var (
			op     GatewayOperation
			kind   string
			status string
		)
		if err := rows.Scan(&op.ID, &kind, &op.UpstreamHost, &op.ExternalHost, &op.NodePort,
			&op.RequestBody, &op.ResponseBody, &status, &op.ErrorMessage, &op.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan gateway operation: %w", err)
		}
		op.Operation = Operation(kind)
		op.Status = OperationStatus(status)
		out = append(out, op)
	}
	return out, rows.Err()
}

// PruneOperations deletes audit entries older than cutoff and returns the count.
func (p *Postgres) PruneOperations(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx, `DELETE FROM gateway_operations WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune gateway operations: %w", err)
	}
	return res.RowsAffected()
}

func splitIPs(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, ",")
}

// Package sqlconn implements the metadata-first SQL connector: a cheap
// metadata query drives an incremental diff against the index, and only
// changed rows are fetched in paged IN-list batches.
package sqlconn

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// Dialect drivers registered by side effect.
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/meridiansearch/meridian/domain/connector"
	"github.com/meridiansearch/meridian/domain/document"
)

// batchPageSize bounds the IN-list length per data query.
const batchPageSize = 1000

// defaultQueryTimeout bounds each SQL statement when the config does not
// set one.
const defaultQueryTimeout = 30 * time.Second

// Runner executes SQL connector syncs.
type Runner struct {
	documents document.Store
	open      func(driver, dsn string) (*sql.DB, error)
}

// NewRunner creates a Runner writing through the document store.
func NewRunner(documents document.Store) *Runner {
	return &Runner{documents: documents, open: sql.Open}
}

// Run performs one incremental sync.
func (r *Runner) Run(ctx context.Context, c connector.Connector, sink connector.ProgressSink) (connector.Counters, error) {
	cfg, ok := c.Config().(connector.SQLConfig)
	if !ok {
		return connector.Counters{}, fmt.Errorf("connector %s: config is not a sql config", c.ID())
	}

	db, err := r.open(driverName(cfg.Dialect), cfg.ConnectionString)
	if err != nil {
		return connector.Counters{}, fmt.Errorf("open %s connection: %w", cfg.Dialect, err)
	}
	defer func() { _ = db.Close() }()

	timeout := defaultQueryTimeout
	if cfg.QueryTimeoutSecs > 0 {
		timeout = time.Duration(cfg.QueryTimeoutSecs) * time.Second
	}

	source, err := r.sourceEntries(ctx, db, cfg.MetadataQuery, timeout)
	if err != nil {
		return connector.Counters{}, err
	}
	sink.Log("info", "source metadata listed", map[string]any{"rows": len(source)})

	indexed, err := r.documents.ListForSource(ctx, c.ID().String())
	if err != nil {
		return connector.Counters{}, fmt.Errorf("list indexed entries: %w", err)
	}

	diff := connector.ComputeDiff(source, indexed)
	if diff.Empty() {
		sink.Log("info", "index already current", nil)
		return connector.Counters{}, nil
	}
	sink.SetCounters(diff.Counters())

	lastModified := make(map[string]time.Time, len(source))
	for _, e := range source {
		lastModified[e.ExternalID()] = e.LastModified()
	}

	for _, page := range connector.Pages(diff.Fetch(), batchPageSize) {
		if err := ctx.Err(); err != nil {
			return diff.Counters(), err
		}
		if err := r.syncPage(ctx, db, c, cfg, page, lastModified, timeout, sink); err != nil {
			return diff.Counters(), err
		}
	}

	if len(diff.Removed()) > 0 {
		keep := make([]string, 0, len(source))
		for _, e := range source {
			keep = append(keep, e.ExternalID())
		}
		swept, err := r.documents.DeleteBySourceKeeping(ctx, c.ID().String(), keep)
		if err != nil {
			return diff.Counters(), fmt.Errorf("delete-sweep: %w", err)
		}
		sink.Log("info", "removed documents swept", map[string]any{"count": swept})
	}

	return diff.Counters(), nil
}

// sourceEntries runs the metadata query; the first column is the external
// ID and the second the last-modified timestamp.
func (r *Runner) sourceEntries(ctx context.Context, db *sql.DB, query string, timeout time.Duration) ([]document.SourceEntry, error) {
	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := db.QueryContext(qctx, query)
	if err != nil {
		return nil, fmt.Errorf("metadata query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []document.SourceEntry
	for rows.Next() {
		var externalID string
		var modified sql.NullTime
		if err := rows.Scan(&externalID, &modified); err != nil {
			return nil, fmt.Errorf("scan metadata row: %w", err)
		}
		entries = append(entries, document.NewSourceEntry(externalID, modified.Time.UTC()))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("metadata rows: %w", err)
	}
	return entries, nil
}

// syncPage fetches one IN-list page of full rows and upserts them.
func (r *Runner) syncPage(
	ctx context.Context,
	db *sql.DB,
	c connector.Connector,
	cfg connector.SQLConfig,
	page []string,
	lastModified map[string]time.Time,
	timeout time.Duration,
	sink connector.ProgressSink,
) error {
	query := strings.Replace(cfg.DataQuery, "{IDS}", placeholders(cfg.Dialect, len(page)), 1)
	args := make([]any, len(page))
	for i, id := range page {
		args[i] = id
	}

	qctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, err := db.QueryContext(qctx, query, args...)
	if err != nil {
		return fmt.Errorf("data query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return fmt.Errorf("data query columns: %w", err)
	}

	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fields, err := scanRow(rows, columns)
		if err != nil {
			return err
		}
		doc, err := r.buildDocument(c, cfg, fields, lastModified)
		if err != nil {
			sink.Log("warn", "row skipped", map[string]any{"error": err.Error()})
			continue
		}
		if _, _, err := r.documents.Upsert(ctx, doc); err != nil {
			return fmt.Errorf("upsert row: %w", err)
		}
	}
	return rows.Err()
}

// buildDocument maps one data row into a document. All columns become
// attributes and URL-template fields.
func (r *Runner) buildDocument(
	c connector.Connector,
	cfg connector.SQLConfig,
	fields map[string]string,
	lastModified map[string]time.Time,
) (document.Document, error) {
	externalID := firstOf(fields, "external_id", "id")
	if externalID == "" {
		return document.Document{}, fmt.Errorf("row has no external_id or id column")
	}

	content := fields[cfg.ContentColumn]
	title := externalID
	if cfg.TitleColumn != "" {
		title = fields[cfg.TitleColumn]
	}

	doc := document.New(c.ID().String(), externalID, title, content, document.Type("sql:"+c.Name()))

	attrs := map[string]any{}
	for column, value := range fields {
		attrs[column] = value
	}
	doc = doc.WithAttributes(document.NewAttributes(attrs))

	if url, err := c.Templates().ItemURL(fields); err == nil && url != "" {
		doc = doc.WithURL(url)
	}
	if lm, ok := lastModified[externalID]; ok {
		doc = doc.WithLastModified(lm)
	}
	return doc, nil
}

// FetchPermissionGroups resolves the optional permission query for one
// user; returned tokens become document permission groups.
func FetchPermissionGroups(ctx context.Context, db *sql.DB, cfg connector.SQLConfig, user string) ([]string, error) {
	if cfg.PermissionQuery == "" {
		return nil, nil
	}
	query := strings.Replace(cfg.PermissionQuery, "{USER}", placeholder(cfg.Dialect, 1), 1)

	rows, err := db.QueryContext(ctx, query, user)
	if err != nil {
		return nil, fmt.Errorf("permission query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var groups []string
	for rows.Next() {
		var group string
		if err := rows.Scan(&group); err != nil {
			return nil, fmt.Errorf("scan permission row: %w", err)
		}
		groups = append(groups, group)
	}
	return groups, rows.Err()
}

// scanRow reads one row as column-name -> string-value.
func scanRow(rows *sql.Rows, columns []string) (map[string]string, error) {
	values := make([]any, len(columns))
	for i := range values {
		values[i] = new(sql.NullString)
	}
	if err := rows.Scan(values...); err != nil {
		return nil, fmt.Errorf("scan data row: %w", err)
	}

	fields := make(map[string]string, len(columns))
	for i, column := range columns {
		ns := values[i].(*sql.NullString)
		if ns.Valid {
			fields[column] = ns.String
		}
	}
	return fields, nil
}

func driverName(dialect string) string {
	switch dialect {
	case connector.DialectPostgres:
		return "postgres"
	case connector.DialectMySQL:
		return "mysql"
	default:
		// MSSQL and Oracle use database/sql driver names registered by
		// the embedding application.
		return dialect
	}
}

// placeholders renders an IN-list of n bind parameters in the dialect's
// placeholder style.
func placeholders(dialect string, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = placeholder(dialect, i+1)
	}
	return strings.Join(parts, ", ")
}

func placeholder(dialect string, position int) string {
	if dialect == connector.DialectPostgres {
		return fmt.Sprintf("$%d", position)
	}
	return "?"
}

func firstOf(fields map[string]string, keys ...string) string {
	for _, key := range keys {
		if v, ok := fields[key]; ok && v != "" {
			return v
		}
	}
	return ""
}

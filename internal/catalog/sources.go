package catalog

import (
	"fmt"
	"time"

	"github.com/entwine-go/entwine/pkg/log"
)

// Source is one row of the sources table: the outcome of ingesting a
// single producer-supplied file within a build.
type Source struct {
	ID             int64   `db:"id"`
	BuildId        int64   `db:"build_id"`
	Path           string  `db:"path"`
	PointsInserted int64   `db:"points_inserted"`
	PointsDropped  int64   `db:"points_dropped"`
	RecordedAt     int64   `db:"recorded_at"`
	Error          *string `db:"error"`
}

const namedSourceInsert = `INSERT INTO sources (
	build_id, path, points_inserted, points_dropped, recorded_at, error
) VALUES (
	:build_id, :path, :points_inserted, :points_dropped, :recorded_at, :error
);`

// RecordSource logs one ingested source file's outcome against buildId.
// cause is nil for a source that ingested without error (points_dropped
// still counts points that legitimately fell outside the tree's range or
// lost every tie-break, per registry.AddPoint; it is not itself a
// failure).
func (c *Catalog) RecordSource(buildId int64, path string, inserted, dropped int64, at time.Time, cause error) error {
	var errMsg *string
	if cause != nil {
		msg := cause.Error()
		errMsg = &msg
	}

	s := Source{
		BuildId:        buildId,
		Path:           path,
		PointsInserted: inserted,
		PointsDropped:  dropped,
		RecordedAt:     at.Unix(),
		Error:          errMsg,
	}
	if _, err := c.db.NamedExec(namedSourceInsert, s); err != nil {
		log.Warnf("catalog: recording source %q for build %d: %v", path, buildId, err)
		return fmt.Errorf("catalog: recording source %q: %w", path, err)
	}
	return nil
}

var sourceColumns = []string{"id", "build_id", "path", "points_inserted", "points_dropped", "recorded_at", "error"}

// SourcesForBuild returns every source row recorded against buildId, in
// the order they were ingested.
func (c *Catalog) SourcesForBuild(buildId int64) ([]*Source, error) {
	rows, err := c.db.Query(
		"SELECT id, build_id, path, points_inserted, points_dropped, recorded_at, error FROM sources WHERE build_id = ? ORDER BY id ASC",
		buildId,
	)
	if err != nil {
		return nil, fmt.Errorf("catalog: listing sources for build %d: %w", buildId, err)
	}
	defer rows.Close()

	var out []*Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.BuildId, &s.Path, &s.PointsInserted, &s.PointsDropped, &s.RecordedAt, &s.Error); err != nil {
			return nil, fmt.Errorf("catalog: scanning source row: %w", err)
		}
		out = append(out, &s)
	}
	return out, rows.Err()
}

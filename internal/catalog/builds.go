package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/entwine-go/entwine/pkg/log"
)

// Build statuses. A build starts running and ends either complete or
// failed; there is no partial-success state, mirroring registry.Save's
// all-or-nothing commit.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Build is one row of the builds table: a single invocation of the
// insertion pipeline from first producer to final Save.
type Build struct {
	ID         int64   `db:"id"`
	Name       string  `db:"name"`
	StartedAt  int64   `db:"started_at"`
	FinishedAt *int64  `db:"finished_at"`
	Status     string  `db:"status"`
	ChunkIds   *string `db:"chunk_ids"`
	Error      *string `db:"error"`
}

const namedBuildInsert = `INSERT INTO builds (name, started_at, status) VALUES (:name, :started_at, :status);`

// StartBuild records the start of a new build run and returns its id.
func (c *Catalog) StartBuild(name string, startedAt time.Time) (int64, error) {
	b := Build{Name: name, StartedAt: startedAt.Unix(), Status: StatusRunning}
	res, err := c.db.NamedExec(namedBuildInsert, b)
	if err != nil {
		log.Warnf("catalog: inserting build %q: %v", name, err)
		return 0, fmt.Errorf("catalog: starting build %q: %w", name, err)
	}
	return res.LastInsertId()
}

// FinishBuild marks buildId complete, recording the set of cold-chunk ids
// the build touched (registry.Ids, JSON-encoded via registry.ToJSON's same
// shape). An empty chunkIds is stored as an empty JSON array, not NULL, so
// a finished build is always distinguishable from one still running.
func (c *Catalog) FinishBuild(buildId int64, finishedAt time.Time, chunkIds []string) error {
	if chunkIds == nil {
		chunkIds = []string{}
	}
	raw, err := json.Marshal(chunkIds)
	if err != nil {
		return fmt.Errorf("catalog: encoding chunk ids for build %d: %w", buildId, err)
	}

	_, err = sq.Update("builds").
		Set("status", StatusComplete).
		Set("finished_at", finishedAt.Unix()).
		Set("chunk_ids", string(raw)).
		Where("id = ?", buildId).
		RunWith(c.stmtCache).
		Exec()
	if err != nil {
		return fmt.Errorf("catalog: finishing build %d: %w", buildId, err)
	}
	return nil
}

// FailBuild marks buildId failed, recording cause.
func (c *Catalog) FailBuild(buildId int64, finishedAt time.Time, cause error) error {
	msg := cause.Error()
	_, err := sq.Update("builds").
		Set("status", StatusFailed).
		Set("finished_at", finishedAt.Unix()).
		Set("error", msg).
		Where("id = ?", buildId).
		RunWith(c.stmtCache).
		Exec()
	if err != nil {
		return fmt.Errorf("catalog: failing build %d: %w", buildId, err)
	}
	return nil
}

var buildColumns = []string{"id", "name", "started_at", "finished_at", "status", "chunk_ids", "error"}

// GetBuild fetches one build row by id.
func (c *Catalog) GetBuild(buildId int64) (*Build, error) {
	row := sq.Select(buildColumns...).From("builds").Where("id = ?", buildId).RunWith(c.stmtCache).QueryRow()
	var b Build
	if err := row.Scan(&b.ID, &b.Name, &b.StartedAt, &b.FinishedAt, &b.Status, &b.ChunkIds, &b.Error); err != nil {
		return nil, fmt.Errorf("catalog: fetching build %d: %w", buildId, err)
	}
	return &b, nil
}

// ListBuilds returns every build row, most recent first.
func (c *Catalog) ListBuilds() ([]*Build, error) {
	rows, err := sq.Select(buildColumns...).From("builds").OrderBy("started_at DESC").RunWith(c.stmtCache).Query()
	if err != nil {
		return nil, fmt.Errorf("catalog: listing builds: %w", err)
	}
	defer rows.Close()

	var out []*Build
	for rows.Next() {
		var b Build
		if err := rows.Scan(&b.ID, &b.Name, &b.StartedAt, &b.FinishedAt, &b.Status, &b.ChunkIds, &b.Error); err != nil {
			return nil, fmt.Errorf("catalog: scanning build row: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// ChunkIdList decodes b's stored chunk id list, if any.
func (b *Build) ChunkIdList() ([]string, error) {
	if b.ChunkIds == nil {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(*b.ChunkIds), &ids); err != nil {
		return nil, fmt.Errorf("catalog: decoding chunk ids for build %d: %w", b.ID, err)
	}
	return ids, nil
}

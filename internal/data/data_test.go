package data

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"reviewsync/internal/conf"

	"github.com/go-kratos/kratos/v2/log"
	"gorm.io/gorm"
)

var testLogger = log.NewStdLogger(io.Discard)

func strp(s string) *string { return &s }

func fptr(v float64) *float64 { return &v }

// newTestData opens a private in-memory sqlite database with the schema
// migrated and no Redis.
func newTestData(t *testing.T) *Data {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	d, cleanup, err := NewData(&conf.Data{
		Database: &conf.Data_Database{
			Driver: "sqlite",
			Source: fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
		},
	}, testLogger)
	if err != nil {
		t.Fatalf("NewData: %v", err)
	}
	t.Cleanup(cleanup)
	return d
}

func TestOpenDialectorRejectsUnknownDriver(t *testing.T) {
	if _, err := openDialector(&conf.Data_Database{Driver: "mysql", Source: "x"}); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
	if _, err := openDialector(&conf.Data_Database{Driver: "postgres"}); err == nil {
		t.Fatal("expected error for empty source")
	}
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) Log(level log.Level, keyvals ...interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprint(append([]interface{}{level.String()}, keyvals...)...))
	return nil
}

func TestGormLoggerSkipsRecordNotFound(t *testing.T) {
	rec := &recordingLogger{}
	gl := newGormLogger(rec)
	sql := func() (string, int64) { return "SELECT * FROM external_places", 0 }

	gl.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	if len(rec.lines) != 0 {
		t.Fatalf("record not found must not be logged: %v", rec.lines)
	}

	gl.Trace(context.Background(), time.Now(), sql, errors.New("connection reset"))
	if len(rec.lines) != 1 || !strings.Contains(rec.lines[0], "connection reset") || !strings.HasPrefix(rec.lines[0], "WARN") {
		t.Fatalf("query errors must reach the kratos logger: %v", rec.lines)
	}
}

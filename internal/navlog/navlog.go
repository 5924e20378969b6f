package navlog

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Record kinds, one per telemetry message.
const (
	LocalPosition  = "MsgID.LOCAL_POSITION"
	LocalVelocity  = "MsgID.LOCAL_VELOCITY"
	GlobalPosition = "MsgID.GLOBAL_POSITION"
	State          = "MsgID.STATE"
)

const maxSizeMB = 64

// Log is the navigation log. Each record is one line:
// kind,seconds,value,value...
type Log struct {
	mu   sync.Mutex
	w    *lumberjack.Logger
	path string
}

func New() *Log {
	return &Log{}
}

func (l *Log) Start(dir string, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.w != nil {
		return errors.Errorf("Log already open: %s", l.path)
	}

	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return errors.WithMessagef(err, "Could not create log directory %s", dir)
	}

	l.path = filepath.Join(dir, name)
	l.w = &lumberjack.Logger{
		Filename:   l.path,
		MaxSize:    maxSizeMB,
		MaxBackups: 3,
	}

	return nil
}

func (l *Log) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.w == nil {
		return nil
	}

	err := l.w.Close()
	l.w = nil
	if err != nil {
		return errors.WithMessagef(err, "Could not close log %s", l.path)
	}

	return nil
}

// Path returns the file of the open log, or "" when closed.
func (l *Log) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.w == nil {
		return ""
	}
	return l.path
}

// Record writes one line. It does nothing while the log is closed.
func (l *Log) Record(kind string, t time.Time, values ...float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.w == nil {
		return nil
	}

	_, err := l.w.Write([]byte(formatRecord(kind, t, values)))
	if err != nil {
		return errors.WithMessage(err, "Could not write log record")
	}

	return nil
}

func formatRecord(kind string, t time.Time, values []float64) string {
	var sb strings.Builder
	sb.WriteString(kind)
	sb.WriteByte(',')
	sb.WriteString(strconv.FormatFloat(float64(t.Unix())+float64(t.Nanosecond())/1e9, 'f', 6, 64))
	for _, v := range values {
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	}
	sb.WriteByte('\n')
	return sb.String()
}

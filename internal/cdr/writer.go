package cdr

import (
	"os"
	"path/filepath"
	"time"

	"github.com/juju/fslock"
	"github.com/pkg/errors"

	"github.com/RestComm/charging-server/internal/logger"
)

// Pusher transfers a finished spool file to the charging gateway.
type Pusher interface {
	PushCdrFile(fileName string) error
}

// FileWriter appends settlement lines to a spool file, one line per
// terminated session. The file lock keeps concurrent terminations and an
// external collector from interleaving writes.
type FileWriter struct {
	dir      string
	fileName string
	lock     *fslock.Lock

	// optional, nil when CGF transfer is disabled
	pusher Pusher
}

func NewFileWriter(dir, fileName string, pusher Pusher) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create cdr spool dir")
	}
	return &FileWriter{
		dir:      dir,
		fileName: fileName,
		lock:     fslock.New(filepath.Join(dir, fileName+".lock")),
		pusher:   pusher,
	}, nil
}

func (w *FileWriter) WriteSettlement(rec *Record) error {
	if err := w.lock.LockWithTimeout(5 * time.Second); err != nil {
		return errors.Wrap(err, "lock cdr file")
	}
	defer func() {
		if err := w.lock.Unlock(); err != nil {
			logger.CdrLog.Errorf("unlock cdr file: %v", err)
		}
	}()

	path := filepath.Join(w.dir, w.fileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o666)
	if err != nil {
		return errors.Wrap(err, "open cdr file")
	}
	if _, err := f.WriteString(rec.Line() + "\n"); err != nil {
		f.Close()
		return errors.Wrap(err, "write cdr record")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, "close cdr file")
	}
	logger.CdrLog.Infof("settlement written for session %s", rec.SessionId)

	if w.pusher != nil {
		if err := w.pusher.PushCdrFile(w.fileName); err != nil {
			// Spool keeps the record; transfer retries on the next write.
			logger.CdrLog.Errorf("push cdr file to cgf: %v", err)
		}
	}
	return nil
}

// Package cgf handles CDR transfer towards the Charging Gateway Function:
// an embedded FTP server exposes the spool directory and a client pushes
// each finished file upstream.
package cgf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fclairamb/ftpserver/config"
	"github.com/fclairamb/ftpserver/server"
	ftpserver "github.com/fclairamb/ftpserverlib"
	"github.com/jlaffaye/ftp"
	"github.com/pkg/errors"

	"github.com/RestComm/charging-server/internal/logger"
)

type Config struct {
	ListenAddr   string
	UpstreamAddr string
	User         string
	Passwd       string
	SpoolDir     string
}

type Transfer struct {
	cfg Config

	ftpServer *ftpserver.FtpServer
	driver    *server.Server

	connMu sync.Mutex
	conn   *ftp.ServerConn
}

func NewTransfer(cfg Config) (*Transfer, error) {
	t := &Transfer{cfg: cfg}

	confFile := filepath.Join(cfg.SpoolDir, "ftpserver.json")
	if _, err := os.Stat(confFile); err != nil && os.IsNotExist(err) {
		logger.CgfLog.Warnf("no ftp server conf file, creating %s", confFile)
		if err := os.WriteFile(confFile, t.confFileContent(), 0o600); err != nil {
			return nil, errors.Wrap(err, "create ftp server conf")
		}
	}

	conf, err := config.NewConfig(confFile, logger.FtpServerLog)
	if err != nil {
		return nil, errors.Wrap(err, "load ftp server conf")
	}

	t.driver, err = server.NewServer(conf, logger.FtpServerLog)
	if err != nil {
		return nil, errors.Wrap(err, "load ftp server driver")
	}

	t.ftpServer = ftpserver.NewFtpServer(t.driver)
	t.ftpServer.Logger = logger.FtpServerLog
	return t, nil
}

// Serve runs the embedded FTP server until Stop is called.
func (t *Transfer) Serve(wg *sync.WaitGroup) {
	defer func() {
		logger.CgfLog.Infof("FTP server stopped")
		wg.Done()
	}()

	logger.CgfLog.Infof("FTP server listening on %s", t.cfg.ListenAddr)
	if err := t.ftpServer.ListenAndServe(); err != nil {
		logger.CgfLog.Errorf("ftp server listen: %v", err)
	}

	// We wait at most 1 minute for all clients to disconnect
	if err := t.driver.WaitGracefully(time.Minute); err != nil {
		logger.CgfLog.Warnf("problem stopping ftp server: %v", err)
	}
}

func (t *Transfer) Stop() {
	t.connMu.Lock()
	if t.conn != nil {
		if err := t.conn.Quit(); err != nil {
			logger.CgfLog.Warnf("close upstream ftp connection: %v", err)
		}
		t.conn = nil
	}
	t.connMu.Unlock()

	t.driver.Stop()
	if err := t.ftpServer.Stop(); err != nil {
		logger.CgfLog.Errorf("problem stopping ftp server: %v", err)
	}
}

func (t *Transfer) login() error {
	c, err := ftp.Dial(t.cfg.UpstreamAddr, ftp.DialWithTimeout(5*time.Second))
	if err != nil {
		return err
	}
	if err := c.Login(t.cfg.User, t.cfg.Passwd); err != nil {
		logger.CgfLog.Warnf("login to upstream CGF failed")
		return err
	}
	logger.CgfLog.Infof("logged in to upstream CGF at %s", t.cfg.UpstreamAddr)
	t.conn = c
	return nil
}

// PushCdrFile uploads one spool file to the upstream CGF. The connection is
// kept open between pushes and re-established on failure.
func (t *Transfer) PushCdrFile(fileName string) error {
	t.connMu.Lock()
	defer t.connMu.Unlock()

	if t.conn == nil {
		if err := t.login(); err != nil {
			return errors.Wrap(err, "login to upstream CGF")
		}
	}

	cdrByte, err := os.ReadFile(filepath.Join(t.cfg.SpoolDir, fileName))
	if err != nil {
		return errors.Wrap(err, "read cdr file")
	}

	if err := t.conn.Stor(fileName, bytes.NewReader(cdrByte)); err != nil {
		// Drop the cached connection; the next push logs in again.
		t.conn = nil
		return errors.Wrap(err, "store cdr file")
	}
	logger.CgfLog.Infof("pushed %s to CGF", fileName)
	return nil
}

func (t *Transfer) confFileContent() []byte {
	return []byte(fmt.Sprintf(`{
  "version": 1,
  "accesses": [
    {
      "user": %q,
      "pass": %q,
      "fs": "os",
      "params": {
        "basePath": %q
      }
    }
  ],
  "listen_address": %q
}`, t.cfg.User, t.cfg.Passwd, t.cfg.SpoolDir, t.cfg.ListenAddr))
}

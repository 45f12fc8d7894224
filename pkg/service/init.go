package service

import (
	"context"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/RestComm/charging-server/internal/abmf"
	"github.com/RestComm/charging-server/internal/cdr"
	"github.com/RestComm/charging-server/internal/cgf"
	"github.com/RestComm/charging-server/internal/charging"
	"github.com/RestComm/charging-server/internal/charging/session"
	ocs_context "github.com/RestComm/charging-server/internal/context"
	"github.com/RestComm/charging-server/internal/diameter"
	"github.com/RestComm/charging-server/internal/logger"
	"github.com/RestComm/charging-server/internal/metrics"
	"github.com/RestComm/charging-server/internal/rating"
	"github.com/RestComm/charging-server/internal/sbi"
	"github.com/RestComm/charging-server/pkg/app"
	"github.com/RestComm/charging-server/pkg/factory"
)

var _ app.App = &OcsApp{}

type OcsApp struct {
	cfg    *factory.Config
	ocsCtx *ocs_context.OcsContext
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	ledger     abmf.AccountBalanceManagement
	diamServer *diameter.Server
	sbiServer  *sbi.Server
	transfer   *cgf.Transfer
}

// NewApp builds the whole server graph from the configuration. Every
// collaborator is wired here; nothing reaches for globals afterwards.
func NewApp(ctx context.Context, cfg *factory.Config) (*OcsApp, error) {
	ocs := &OcsApp{
		cfg: cfg,
		wg:  sync.WaitGroup{},
	}
	ocs.SetLogEnable(cfg.GetLogEnable())
	ocs.SetLogLevel(cfg.GetLogLevel())
	ocs.SetReportCaller(cfg.GetLogReportCaller())

	ocs.ocsCtx = ocs_context.New(cfg.Configuration.OcsName)
	logger.CtxLog.Infof("server instance [%s] id [%s]", ocs.ocsCtx.Name, ocs.ocsCtx.NfId)
	ocs.ctx, ocs.cancel = context.WithCancel(ctx)

	m := metrics.New()

	ledger, users, err := buildLedger(cfg)
	if err != nil {
		return nil, err
	}
	ocs.ledger = ledger

	rater := buildRater(cfg, ocs.ocsCtx)

	sink, transfer, err := buildCdrPipeline(cfg)
	if err != nil {
		return nil, err
	}
	ocs.transfer = transfer

	store := session.NewStore()
	machine := charging.NewMachine(charging.Config{
		OriginHost:   cfg.Configuration.Diameter.OriginHost,
		OriginRealm:  cfg.Configuration.Diameter.OriginRealm,
		ValidityTime: cfg.GetValidityTime(),
	}, store, ledger, rater, sink, m)

	ocs.diamServer = diameter.NewServer(diameter.Config{
		Protocol:    cfg.Configuration.Diameter.Protocol,
		HostIPv4:    cfg.Configuration.Diameter.HostIPv4,
		Port:        cfg.GetDiameterPort(),
		OriginHost:  cfg.Configuration.Diameter.OriginHost,
		OriginRealm: cfg.Configuration.Diameter.OriginRealm,
		VendorId:    cfg.Configuration.Diameter.VendorId,
		ProductName: cfg.Configuration.Diameter.ProductName,
		AbmfAVPs:    cfg.Configuration.AbmfAVPs,
	}, machine)

	sbiServer, err := sbi.NewServer(sbi.Config{
		BindingAddr: cfg.GetSbiBindingAddr(),
		Scheme:      cfg.GetSbiScheme(),
		CertPemPath: cfg.GetCertPemPath(),
		CertKeyPath: cfg.GetCertKeyPath(),
	}, users, m)
	if err != nil {
		return nil, err
	}
	ocs.sbiServer = sbiServer

	return ocs, nil
}

// buildLedger picks the account backend and seeds it. A broken users file is
// survivable: the engine comes up in bypass so traffic keeps flowing while
// the operator fixes the data.
func buildLedger(cfg *factory.Config) (abmf.AccountBalanceManagement, abmf.UserAdministration, error) {
	c := cfg.Configuration

	switch c.Ledger {
	case "mongodb":
		engine, err := abmf.NewMongoEngine(c.Mongodb.Name, c.Mongodb.Url)
		if err != nil {
			return nil, nil, err
		}
		engine.SetBypass(c.Bypass)
		return engine, engine, nil
	default:
		engine := abmf.NewMemoryEngine()
		engine.SetBypass(c.Bypass)
		if c.UsersFile != "" {
			users, err := factory.ReadUsersFile(c.UsersFile)
			if err != nil {
				logger.AcctLog.Warnf("users file [%s] unusable, accounting bypassed: %v", c.UsersFile, err)
				engine.SetBypass(true)
			} else {
				engine.LoadUsers(users)
				logger.AcctLog.Infof("loaded %d user accounts from [%s]", len(users), c.UsersFile)
			}
		}
		return engine, engine, nil
	}
}

func buildRater(cfg *factory.Config, ocsCtx *ocs_context.OcsContext) rating.Rater {
	r := cfg.Configuration.Rating
	if r == nil || !r.Enable {
		return nil
	}

	if r.Mode == "http" {
		return rating.NewHTTPRater(r.HttpUrl, cfg.Configuration.Diameter.OriginHost, ocsCtx.RatingSessionGenerator)
	}
	return rating.NewTariffRater(r.Tariffs, r.DefaultRate)
}

func buildCdrPipeline(cfg *factory.Config) (cdr.Sink, *cgf.Transfer, error) {
	c := cfg.Configuration
	if c.Cdr == nil || !c.Cdr.Enable {
		return nil, nil, nil
	}

	var transfer *cgf.Transfer
	if c.Cgf != nil && c.Cgf.Enable {
		t, err := cgf.NewTransfer(cgf.Config{
			ListenAddr:   c.Cgf.ListenAddr,
			UpstreamAddr: c.Cgf.UpstreamAddr,
			User:         c.Cgf.FtpUser,
			Passwd:       c.Cgf.FtpPasswd,
			SpoolDir:     c.Cdr.Dir,
		})
		if err != nil {
			return nil, nil, err
		}
		transfer = t
	}

	var pusher cdr.Pusher
	if transfer != nil {
		pusher = transfer
	}
	writer, err := cdr.NewFileWriter(c.Cdr.Dir, cfg.GetCdrFileName(), pusher)
	if err != nil {
		return nil, nil, err
	}
	return writer, transfer, nil
}

func (a *OcsApp) SetLogEnable(enable bool) {
	logger.MainLog.Infof("Log enable is set to [%v]", enable)
	if enable && logger.Log.Out == os.Stderr {
		return
	} else if !enable && logger.Log.Out == io.Discard {
		return
	}

	a.cfg.SetLogEnable(enable)
	if enable {
		logger.Log.SetOutput(os.Stderr)
	} else {
		logger.Log.SetOutput(io.Discard)
	}
}

func (a *OcsApp) SetLogLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logger.MainLog.Warnf("Log level [%s] is invalid", level)
		return
	}

	logger.MainLog.Infof("Log level is set to [%s]", level)
	if lvl == logger.Log.GetLevel() {
		return
	}

	a.cfg.SetLogLevel(level)
	logger.Log.SetLevel(lvl)
}

func (a *OcsApp) SetReportCaller(reportCaller bool) {
	logger.MainLog.Infof("Report Caller is set to [%v]", reportCaller)
	if reportCaller == logger.Log.ReportCaller {
		return
	}

	a.cfg.SetLogReportCaller(reportCaller)
	logger.Log.SetReportCaller(reportCaller)
}

func (a *OcsApp) Context() *ocs_context.OcsContext {
	return a.ocsCtx
}

func (a *OcsApp) Config() *factory.Config {
	return a.cfg
}

// Start brings the servers up and blocks until a signal or a fatal
// transport error takes the process down.
func (a *OcsApp) Start() {
	logger.InitLog.Infoln("Server started")

	if a.transfer != nil {
		a.wg.Add(1)
		a.transfer.Serve(&a.wg)
	}

	a.sbiServer.Run(&a.wg)

	diamErr := make(chan error, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				logger.InitLog.Fatalf("panic: %v\n%s", p, string(debug.Stack()))
			}
		}()
		diamErr <- a.diamServer.Serve()
	}()

	signalChannel := make(chan os.Signal, 1)
	signal.Notify(signalChannel, os.Interrupt, syscall.SIGTERM)

	select {
	case <-signalChannel:
		logger.InitLog.Infoln("signal received")
	case err := <-diamErr:
		logger.InitLog.Errorf("diameter server down: %+v", err)
	case <-a.ctx.Done():
	}

	a.Terminate()
	a.wg.Wait()
}

func (a *OcsApp) Terminate() {
	logger.InitLog.Infof("Terminating OCS...")
	a.cancel()

	a.sbiServer.Stop()
	if a.transfer != nil {
		a.transfer.Stop()
	}

	logger.InitLog.Infof("OCS terminated")
}

package logger

import (
	"path/filepath"

	golog "github.com/fclairamb/go-log"
	adapter "github.com/fclairamb/go-log/logrus"
	"github.com/sirupsen/logrus"

	logger_util "github.com/free5gc/util/logger"
)

var (
	Log         *logrus.Logger
	NfLog       *logrus.Entry
	MainLog     *logrus.Entry
	InitLog     *logrus.Entry
	CfgLog      *logrus.Entry
	CtxLog      *logrus.Entry
	ChargingLog *logrus.Entry
	AcctLog     *logrus.Entry
	RatingLog   *logrus.Entry
	CdrLog      *logrus.Entry
	CgfLog      *logrus.Entry
	DiamLog     *logrus.Entry
	SBILog      *logrus.Entry
	GinLog      *logrus.Entry
	UtilLog     *logrus.Entry

	FtpServerLog golog.Logger
)

func init() {
	fieldsOrder := []string{
		logger_util.FieldNF,
		logger_util.FieldCategory,
	}

	Log = logger_util.New(fieldsOrder)
	NfLog = Log.WithField(logger_util.FieldNF, "OCS")
	MainLog = NfLog.WithField(logger_util.FieldCategory, "Main")
	InitLog = NfLog.WithField(logger_util.FieldCategory, "Init")
	CfgLog = NfLog.WithField(logger_util.FieldCategory, "CFG")
	CtxLog = NfLog.WithField(logger_util.FieldCategory, "CTX")
	ChargingLog = NfLog.WithField(logger_util.FieldCategory, "Charging")
	AcctLog = NfLog.WithField(logger_util.FieldCategory, "Acct")
	RatingLog = NfLog.WithField(logger_util.FieldCategory, "Rating")
	CdrLog = NfLog.WithField(logger_util.FieldCategory, "CDR")
	CgfLog = NfLog.WithField(logger_util.FieldCategory, "CGF")
	DiamLog = NfLog.WithField(logger_util.FieldCategory, "Diam")
	SBILog = NfLog.WithField(logger_util.FieldCategory, "SBI")
	GinLog = NfLog.WithField(logger_util.FieldCategory, "GIN")
	UtilLog = NfLog.WithField(logger_util.FieldCategory, "Util")

	FtpServerLog = adapter.NewWrap(Log).With("component", "OCS", "category", "FTPServer")
}

func LogFileHook(logNfPath string) error {
	if logNfPath == "" {
		return nil
	}
	if _, fileName := filepath.Split(logNfPath); fileName == "" {
		logNfPath = filepath.Join(logNfPath, "ocs.log")
	}
	return logger_util.LogFileHook(Log, logNfPath)
}

func SetLogLevel(level logrus.Level) {
	Log.SetLevel(level)
}

func SetReportCaller(enable bool) {
	Log.SetReportCaller(enable)
}

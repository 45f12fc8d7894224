package app

import (
	ocs_context "github.com/RestComm/charging-server/internal/context"
	"github.com/RestComm/charging-server/pkg/factory"
)

type App interface {
	SetLogEnable(enable bool)
	SetLogLevel(level string)
	SetReportCaller(reportCaller bool)

	Start()
	Terminate()

	Context() *ocs_context.OcsContext
	Config() *factory.Config
}

// Package diameter is the Ro transport: it terminates the Diameter peering
// (CER/CEA, watchdog), decodes CCRs into the charging core's request
// structures and writes the answers back.
package diameter

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/fiorix/go-diameter/diam"
	"github.com/fiorix/go-diameter/diam/datatype"
	"github.com/fiorix/go-diameter/diam/dict"
	"github.com/fiorix/go-diameter/diam/sm"

	charging_code "github.com/RestComm/charging-server/ccs_diameter/code"
	charging_datatype "github.com/RestComm/charging-server/ccs_diameter/datatype"
	"github.com/RestComm/charging-server/internal/charging"
	"github.com/RestComm/charging-server/internal/logger"
)

type Config struct {
	// Protocol is tcp or sctp.
	Protocol string
	HostIPv4 string
	Port     int

	OriginHost  string
	OriginRealm string
	VendorId    uint32
	ProductName string

	// AbmfAVPs maps AVP codes to the service-info names the accounting
	// engine sees; matching AVPs are copied off each request verbatim.
	AbmfAVPs map[uint32]string
}

type Server struct {
	cfg     Config
	machine *charging.Machine
	mux     *sm.StateMachine
}

func NewServer(cfg Config, machine *charging.Machine) *Server {
	settings := &sm.Settings{
		OriginHost:       datatype.DiameterIdentity(cfg.OriginHost),
		OriginRealm:      datatype.DiameterIdentity(cfg.OriginRealm),
		VendorID:         datatype.Unsigned32(cfg.VendorId),
		ProductName:      datatype.UTF8String(cfg.ProductName),
		OriginStateID:    datatype.Unsigned32(time.Now().Unix()),
		FirmwareRevision: 1,
		HostIPAddresses: []datatype.Address{
			datatype.Address(net.ParseIP(cfg.HostIPv4)),
		},
	}

	s := &Server{
		cfg:     cfg,
		machine: machine,
		mux:     sm.New(settings),
	}
	s.mux.Handle("CCR", s.handleCCR())
	s.mux.HandleFunc("ALL", s.handleUnexpected)
	go s.reportErrors()
	return s
}

// Serve blocks listening for peer connections.
func (s *Server) Serve() error {
	addr := s.cfg.HostIPv4 + ":" + strconv.Itoa(s.cfg.Port)
	logger.DiamLog.Infof("diameter server listening on %s/%s", s.cfg.Protocol, addr)
	return diam.ListenAndServeNetwork(s.cfg.Protocol, addr, s.mux, dict.Default)
}

func (s *Server) handleCCR() diam.HandlerFunc {
	return func(c diam.Conn, m *diam.Message) {
		logger.DiamLog.Tracef("received CCR from %s", c.RemoteAddr())

		var ccr charging_datatype.CreditControlRequest
		if err := m.Unmarshal(&ccr); err != nil {
			logger.DiamLog.Errorf("failed to parse CCR from %s: %v", c.RemoteAddr(), err)
			return
		}

		serviceInfo := s.collectServiceInfo(m)
		s.machine.HandleRequest(&ccr, serviceInfo, func(cca *charging_datatype.CreditControlAnswer) {
			s.sendAnswer(c, m, cca)
		})
	}
}

func (s *Server) sendAnswer(c diam.Conn, req *diam.Message, cca *charging_datatype.CreditControlAnswer) {
	a := diam.NewMessage(charging_code.CreditControl, 0, charging_code.Ro_interface,
		req.Header.HopByHopID, req.Header.EndToEndID, dict.Default)
	if err := a.Marshal(cca); err != nil {
		logger.DiamLog.Errorf("marshal CCA for session %s: %v", cca.SessionId, err)
		return
	}
	if _, err := a.WriteTo(c); err != nil {
		logger.DiamLog.Errorf("failed to send CCA to %s: %v", c.RemoteAddr(), err)
	}
}

// collectServiceInfo copies the operator-configured passthrough AVPs off the
// raw message, keyed by their configured names.
func (s *Server) collectServiceInfo(m *diam.Message) map[string]string {
	if len(s.cfg.AbmfAVPs) == 0 {
		return nil
	}
	info := make(map[string]string, len(s.cfg.AbmfAVPs))
	for avpCode, name := range s.cfg.AbmfAVPs {
		a, err := m.FindAVP(avpCode, 0)
		if err != nil || a == nil {
			continue
		}
		info[name] = avpText(a.Data)
	}
	return info
}

func avpText(d datatype.Type) string {
	switch value := d.(type) {
	case datatype.UTF8String:
		return string(value)
	case datatype.OctetString:
		return string(value)
	case datatype.DiameterIdentity:
		return string(value)
	case datatype.Unsigned32:
		return strconv.FormatUint(uint64(value), 10)
	case datatype.Unsigned64:
		return strconv.FormatUint(uint64(value), 10)
	case datatype.Integer32:
		return strconv.FormatInt(int64(value), 10)
	case datatype.Integer64:
		return strconv.FormatInt(int64(value), 10)
	case datatype.Enumerated:
		return strconv.FormatInt(int64(value), 10)
	default:
		return fmt.Sprintf("%v", d)
	}
}

func (s *Server) handleUnexpected(c diam.Conn, m *diam.Message) {
	logger.DiamLog.Warnf("unexpected message from %s:\n%s", c.RemoteAddr(), m)
}

func (s *Server) reportErrors() {
	for report := range s.mux.ErrorReports() {
		logger.DiamLog.Errorf("diameter error: %v", report.Error)
	}
}

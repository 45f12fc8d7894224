package rating

import (
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/free5gc/util/idgenerator"

	"github.com/RestComm/charging-server/internal/charging/account"
	"github.com/RestComm/charging-server/internal/logger"
)

// HTTPRater asks a remote rating engine over HTTP. Request parameters go as
// a form-urlencoded POST; the engine answers with an XML <response> body.
type HTTPRater struct {
	url    string
	host   string
	client *http.Client

	// correlation ids for rating round trips, shared server-wide
	sessionGen *idgenerator.IDGenerator
}

// ratingResponse is the engine's XML payload.
type ratingResponse struct {
	XMLName         xml.Name `xml:"response"`
	ResponseCode    int      `xml:"responseCode"`
	SessionId       string   `xml:"sessionId"`
	ActualTime      int64    `xml:"actualTime"`
	CurrentTime     int64    `xml:"currentTime"`
	Rate            float64  `xml:"rate"`
	RateDescription string   `xml:"rateDescription"`
	RatePromo       string   `xml:"ratePromo"`
}

func NewHTTPRater(rawURL, chargingServerHost string, sessionGen *idgenerator.IDGenerator) *HTTPRater {
	return &HTTPRater{
		url:  rawURL,
		host: chargingServerHost,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
		sessionGen: sessionGen,
	}
}

func (r *HTTPRater) GetRate(
	sessionId string, serviceId uint32, unitType account.UnitType, requestedUnits int64,
) (float64, int) {
	params := url.Values{}
	params.Set("ChargingServerHost", r.host)
	params.Set("SessionId", sessionId)
	if r.sessionGen != nil {
		if ratingSession, err := r.sessionGen.Allocate(); err == nil {
			params.Set("RatingSessionId", fmt.Sprintf("%d", ratingSession))
			defer r.sessionGen.FreeID(ratingSession)
		}
	}
	params.Set("ServiceId", fmt.Sprintf("%d", serviceId))
	params.Set("UnitTypeId", fmt.Sprintf("%d", int(unitType)))
	params.Set("UnitValue", fmt.Sprintf("%d", requestedUnits))
	params.Set("ActualTime", fmt.Sprintf("%d", time.Now().Unix()))

	resp, err := r.client.Post(r.url, "application/x-www-form-urlencoded",
		strings.NewReader(params.Encode()))
	if err != nil {
		logger.RatingLog.Errorf("rating engine unreachable: %v", err)
		return 0, RespFailure
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.RatingLog.Warnf("close rating response body: %v", closeErr)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		logger.RatingLog.Errorf("read rating engine response: %v", err)
		return 0, RespFailure
	}

	var rated ratingResponse
	if err := xml.Unmarshal(body, &rated); err != nil {
		logger.RatingLog.Warnf("malformed response from rating engine: %v", err)
		return 0, RespFailure
	}
	if rated.SessionId != "" && rated.SessionId != sessionId {
		logger.RatingLog.Warnf("session id mismatch from rating engine: expected %s, got %s",
			sessionId, rated.SessionId)
	}
	logger.RatingLog.Debugf("rated session %s service %d: rate=%f responseCode=%d",
		sessionId, serviceId, rated.Rate, rated.ResponseCode)
	return rated.Rate, rated.ResponseCode
}

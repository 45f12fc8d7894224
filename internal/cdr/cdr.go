// Package cdr aggregates a terminated session's usage into one settlement
// record and writes it to the local spool.
package cdr

import (
	"fmt"
	"strings"
	"time"

	"github.com/RestComm/charging-server/internal/charging/account"
	"github.com/RestComm/charging-server/internal/charging/session"
)

const delimiter = ";"

// timestampFormat matches the record layout consumers already parse.
const timestampFormat = "2006-01-02T15:04:05.000-0700"

// Sink receives the settlement record for a terminated session.
type Sink interface {
	WriteSettlement(rec *Record) error
}

// UsageTotal is the summed consumption of one unit type across a session.
type UsageTotal struct {
	Units  int64
	Amount int64
}

// Record is one settlement line. Field order is fixed; see Line.
type Record struct {
	Timestamp time.Time

	OriginHost       string
	OriginRealm      string
	DestinationHost  string
	DestinationRealm string

	ServiceIds []uint32

	SessionStart    time.Time
	SessionDuration time.Duration
	SessionId       string

	CallingPartyType int
	CallingPartyId   string
	CalledPartyType  int
	CalledPartyId    string

	BalanceBefore int64
	BalanceAfter  int64

	// Totals keyed by unit type; absent types read as zero.
	Totals map[account.UnitType]UsageTotal

	ReservationCount int
}

// Aggregate folds a session's exchange history into a settlement record.
// Balance-before comes from the first exchange, balance-after from the last.
func Aggregate(s *session.UserSessionInfo) *Record {
	now := time.Now()
	rec := &Record{
		Timestamp:        now,
		OriginHost:       s.OriginHost,
		OriginRealm:      s.OriginRealm,
		DestinationHost:  s.DestinationHost,
		DestinationRealm: s.DestinationRealm,
		ServiceIds:       s.ServiceIds,
		SessionStart:     s.StartTime,
		SessionDuration:  now.Sub(s.StartTime),
		SessionId:        s.SessionId,
		CallingPartyType: s.SubscriptionIdType,
		CallingPartyId:   s.SubscriptionId,
		CalledPartyType:  s.SubscriptionIdType,
		CalledPartyId:    s.SubscriptionId,
		Totals:           make(map[account.UnitType]UsageTotal),
	}

	history := s.History()
	for i, cc := range history {
		for _, u := range cc.CcUnits {
			total := rec.Totals[u.UnitType]
			total.Units += u.UsedUnits
			total.Amount += u.UsedAmount
			rec.Totals[u.UnitType] = total
		}
		if i == 0 {
			rec.BalanceBefore = cc.BalanceBefore
		}
		if i == len(history)-1 {
			rec.BalanceAfter = cc.BalanceAfter
		}
	}
	rec.ReservationCount = len(history)
	return rec
}

// Line renders the record as one delimited settlement line:
// timestamp, origin host/realm, destination host/realm, service ids, session
// start and duration in milliseconds, session id, calling and called party
// type+id, balance before/after, then per unit type the summed used units and
// charged amount (input octets, money, output octets, service specific, time,
// total octets), and finally the reservation count.
func (r *Record) Line() string {
	fields := []string{
		r.Timestamp.Format(timestampFormat),
		r.OriginHost,
		r.OriginRealm,
		r.DestinationHost,
		r.DestinationRealm,
		fmt.Sprintf("%v", r.ServiceIds),
		fmt.Sprintf("%d", r.SessionStart.UnixMilli()),
		fmt.Sprintf("%d", r.Timestamp.UnixMilli()),
		fmt.Sprintf("%d", r.SessionDuration.Milliseconds()),
		r.SessionId,
		fmt.Sprintf("%d", r.CallingPartyType),
		r.CallingPartyId,
		fmt.Sprintf("%d", r.CalledPartyType),
		r.CalledPartyId,
		fmt.Sprintf("%d", r.BalanceBefore),
		fmt.Sprintf("%d", r.BalanceAfter),
	}
	for _, t := range []account.UnitType{
		account.UnitTypeInputOctets,
		account.UnitTypeMoney,
		account.UnitTypeOutputOctets,
		account.UnitTypeServiceSpecific,
		account.UnitTypeTime,
		account.UnitTypeTotalOctets,
	} {
		total := r.Totals[t]
		fields = append(fields,
			fmt.Sprintf("%d", total.Units),
			fmt.Sprintf("%d", total.Amount))
	}
	fields = append(fields, fmt.Sprintf("%d", r.ReservationCount))
	return strings.Join(fields, delimiter)
}

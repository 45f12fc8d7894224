package cdr_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/RestComm/charging-server/internal/cdr"
	"github.com/RestComm/charging-server/internal/charging/account"
	"github.com/RestComm/charging-server/internal/charging/session"
)

func timeLine(requested, used, usedAmount, before, after int64) *account.CreditControlInfo {
	return &account.CreditControlInfo{
		CcUnits: []*account.CreditControlUnit{{
			UnitType:       account.UnitTypeTime,
			RequestedUnits: requested,
			UsedUnits:      used,
			UsedAmount:     usedAmount,
		}},
		BalanceBefore: before,
		BalanceAfter:  after,
		Success:       true,
	}
}

func sampleSession() *session.UserSessionInfo {
	s := &session.UserSessionInfo{
		SessionId:          "gw.test.org;123;456",
		StartTime:          time.Now().Add(-90 * time.Second),
		SubscriptionId:     "48600100100",
		SubscriptionIdType: 0,
		OriginHost:         "gw.test.org",
		OriginRealm:        "test.org",
		DestinationHost:    "ocs.test.org",
		DestinationRealm:   "test.org",
		ServiceIds:         []uint32{10},
	}
	// Three exchanges: a fresh grant, usage of 60, final usage of 140.
	s.AppendHistory(timeLine(100, 0, 0, 1000, 1000))
	s.AppendHistory(timeLine(100, 60, 60, 1000, 940))
	s.AppendHistory(timeLine(0, 140, 140, 940, 800))
	return s
}

func TestAggregate(t *testing.T) {
	rec := cdr.Aggregate(sampleSession())

	require.Equal(t, "gw.test.org;123;456", rec.SessionId)
	require.Equal(t, "48600100100", rec.CallingPartyId)
	require.Equal(t, "48600100100", rec.CalledPartyId)
	require.EqualValues(t, 1000, rec.BalanceBefore)
	require.EqualValues(t, 800, rec.BalanceAfter)
	require.Equal(t, 3, rec.ReservationCount)

	total := rec.Totals[account.UnitTypeTime]
	require.EqualValues(t, 200, total.Units)
	require.EqualValues(t, 200, total.Amount)
	require.Zero(t, rec.Totals[account.UnitTypeTotalOctets].Units)
}

func TestLineFieldOrder(t *testing.T) {
	rec := cdr.Aggregate(sampleSession())
	fields := strings.Split(rec.Line(), ";")

	// 16 envelope fields (the session id itself contains two delimiters),
	// units+amount for each of the six unit types, reservation count.
	require.Len(t, fields, 16+2+12+1)

	require.Equal(t, "gw.test.org", fields[1])
	require.Equal(t, "test.org", fields[2])
	require.Equal(t, "ocs.test.org", fields[3])
	require.Equal(t, "[10]", fields[5])
	require.Equal(t, "gw.test.org", fields[9]) // session id, first segment
	require.Equal(t, "48600100100", fields[13])
	require.Equal(t, "1000", fields[16])
	require.Equal(t, "800", fields[17])

	// Unit-type columns are alphabetical; time is the fifth pair.
	require.Equal(t, "200", fields[18+8])
	require.Equal(t, "200", fields[18+9])
	require.Equal(t, "3", fields[len(fields)-1])
}

func TestFileWriterAppends(t *testing.T) {
	dir := t.TempDir()
	writer, err := cdr.NewFileWriter(dir, "test.cdr", nil)
	require.NoError(t, err)

	require.NoError(t, writer.WriteSettlement(cdr.Aggregate(sampleSession())))
	require.NoError(t, writer.WriteSettlement(cdr.Aggregate(sampleSession())))

	content, err := os.ReadFile(filepath.Join(dir, "test.cdr"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(content), "\n"), "\n")
	require.Len(t, lines, 2)
	require.Contains(t, lines[0], "48600100100")
	require.True(t, strings.HasSuffix(lines[0], ";3"))
}

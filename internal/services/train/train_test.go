package train

import (
	"testing"

	"github.com/jontk/ticketd/internal/dateutil"
	"github.com/stretchr/testify/require"
)

func openTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := Open(Options{
		DataDir:       t.TempDir(),
		NodeFanout:    4,
		BlockCapacity: 4,
		CacheK:        2,
		CacheCapacity: 16,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

// addThreeStationTrain adds A->B->C, seatNum seats, sale window
// [06-01,06-05], departing 08:00, 60-minute legs and a 10-minute stop
// at B.
func addThreeStationTrain(t *testing.T, svc *Service, trainID string, seatNum int32) {
	t.Helper()
	require.NoError(t, svc.AddTrain(
		trainID, 3, seatNum,
		[]string{"A", "B", "C"},
		[]int32{10, 10}, []int32{60, 60}, []int32{10},
		8*60, dateutil.Date{Month: 6, Day: 1}, dateutil.Date{Month: 6, Day: 5}, 'G'))
}

func TestAddTrainRejectsDuplicate(t *testing.T) {
	svc := openTestService(t)
	addThreeStationTrain(t, svc, "G1", 5)
	err := svc.AddTrain("G1", 2, 5, []string{"A", "B"}, []int32{10}, []int32{60}, nil,
		8*60, dateutil.Date{Month: 6, Day: 1}, dateutil.Date{Month: 6, Day: 5}, 'G')
	require.Error(t, err)
}

func TestDeleteTrainOnlyBeforeRelease(t *testing.T) {
	svc := openTestService(t)
	addThreeStationTrain(t, svc, "G1", 5)
	require.NoError(t, svc.DeleteTrain("G1"))

	addThreeStationTrain(t, svc, "G1", 5)
	require.NoError(t, svc.ReleaseTrain("G1"))
	require.Error(t, svc.DeleteTrain("G1"), "cannot delete a released train")
}

func TestReleaseTrainOnlyOnce(t *testing.T) {
	svc := openTestService(t)
	addThreeStationTrain(t, svc, "G1", 5)
	require.NoError(t, svc.ReleaseTrain("G1"))
	require.Error(t, svc.ReleaseTrain("G1"), "double release must fail")
}

func TestQueryTrainBeforeAndAfterRelease(t *testing.T) {
	svc := openTestService(t)
	addThreeStationTrain(t, svc, "G1", 5)
	date := dateutil.Date{Month: 6, Day: 2}

	lines, err := svc.QueryTrain("G1", date)
	require.NoError(t, err)
	require.Len(t, lines, 3)
	require.Equal(t, "A", lines[0].Name)
	require.False(t, lines[0].HasArrival)
	require.Equal(t, int32(5), lines[0].SeatsLeaving, "unreleased train reports full capacity")
	require.Equal(t, int32(-1), lines[2].SeatsLeaving, "terminal station has no leaving seats")

	require.NoError(t, svc.ReleaseTrain("G1"))
	lines, err = svc.QueryTrain("G1", date)
	require.NoError(t, err)
	require.Equal(t, int32(5), lines[0].SeatsLeaving)
}

func TestBuyAndRefundHappyPath(t *testing.T) {
	svc := openTestService(t)
	addThreeStationTrain(t, svc, "G1", 5)
	require.NoError(t, svc.ReleaseTrain("G1"))
	date := dateutil.Date{Month: 6, Day: 2}

	res, err := svc.BuyTicket("G1", date, 2, "A", "C")
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, int32(40), res.TotalPrice)

	lines, err := svc.QueryTrain("G1", date)
	require.NoError(t, err)
	require.Equal(t, int32(3), lines[0].SeatsLeaving)
	require.Equal(t, int32(3), lines[1].SeatsLeaving)

	require.NoError(t, svc.RefundTicket("G1", res.OriginDate, 2, res.FromIdx, res.ToIdx))
	lines, err = svc.QueryTrain("G1", date)
	require.NoError(t, err)
	require.Equal(t, int32(5), lines[0].SeatsLeaving)
}

func TestBuyTicketWriteThenCheckOnInsufficientSeats(t *testing.T) {
	svc := openTestService(t)
	addThreeStationTrain(t, svc, "G1", 1)
	require.NoError(t, svc.ReleaseTrain("G1"))
	date := dateutil.Date{Month: 6, Day: 2}

	res, err := svc.BuyTicket("G1", date, 5, "A", "C")
	require.NoError(t, err)
	require.False(t, res.Success, "5 seats requested against 1 available must fail")

	lines, err := svc.QueryTrain("G1", date)
	require.NoError(t, err)
	require.Equal(t, int32(-4), lines[0].SeatsLeaving,
		"write-then-check: the decrement is written even though the purchase failed")
}

func TestUpdateLeftSeatsDoesNotWriteOnFailure(t *testing.T) {
	svc := openTestService(t)
	addThreeStationTrain(t, svc, "G1", 1)
	require.NoError(t, svc.ReleaseTrain("G1"))
	date := dateutil.Date{Month: 6, Day: 2}

	ok, err := svc.UpdateLeftSeats("G1", date, 0, 2, -5)
	require.NoError(t, err)
	require.False(t, ok)

	lines, err := svc.QueryTrain("G1", date)
	require.NoError(t, err)
	require.Equal(t, int32(1), lines[0].SeatsLeaving, "failed update must not mutate stored seats")
}

func TestQueryTicketSortsByCostThenDuration(t *testing.T) {
	svc := openTestService(t)
	date := dateutil.Date{Month: 6, Day: 2}

	require.NoError(t, svc.AddTrain("CHEAP", 2, 5, []string{"A", "C"},
		[]int32{15}, []int32{200}, nil, 6*60,
		dateutil.Date{Month: 6, Day: 1}, dateutil.Date{Month: 6, Day: 5}, 'D'))
	require.NoError(t, svc.ReleaseTrain("CHEAP"))

	addThreeStationTrain(t, svc, "G1", 5)
	require.NoError(t, svc.ReleaseTrain("G1"))

	out, err := svc.QueryTicket("A", "C", date, "cost")
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "CHEAP", out[0].TrainID, "cheaper fare sorts first")

	out, err = svc.QueryTicket("A", "C", date, "time")
	require.NoError(t, err)
	require.Equal(t, "G1", out[0].TrainID, "shorter duration sorts first")
}

func TestQueryTransferFindsInterchange(t *testing.T) {
	svc := openTestService(t)
	date := dateutil.Date{Month: 6, Day: 2}

	require.NoError(t, svc.AddTrain("LEG1", 2, 5, []string{"A", "M"},
		[]int32{10}, []int32{60}, nil, 8*60,
		dateutil.Date{Month: 6, Day: 1}, dateutil.Date{Month: 6, Day: 5}, 'G'))
	require.NoError(t, svc.ReleaseTrain("LEG1"))

	require.NoError(t, svc.AddTrain("LEG2", 2, 5, []string{"M", "Z"},
		[]int32{10}, []int32{60}, nil, 10*60,
		dateutil.Date{Month: 6, Day: 1}, dateutil.Date{Month: 6, Day: 5}, 'G'))
	require.NoError(t, svc.ReleaseTrain("LEG2"))

	plan, found, err := svc.QueryTransfer("A", "Z", date, "time")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "LEG1", plan.Leg1.TrainID)
	require.Equal(t, "LEG2", plan.Leg2.TrainID)
}

func TestQueryTransferOverMidnight(t *testing.T) {
	svc := openTestService(t)
	date := dateutil.Date{Month: 6, Day: 2}

	require.NoError(t, svc.AddTrain("LEG1", 2, 5, []string{"A", "M"},
		[]int32{10}, []int32{700}, nil, 20*60,
		dateutil.Date{Month: 6, Day: 1}, dateutil.Date{Month: 6, Day: 5}, 'G'))
	require.NoError(t, svc.ReleaseTrain("LEG1"))

	require.NoError(t, svc.AddTrain("LEG2", 2, 5, []string{"M", "Z"},
		[]int32{10}, []int32{60}, nil, 9*60,
		dateutil.Date{Month: 6, Day: 1}, dateutil.Date{Month: 6, Day: 6}, 'G'))
	require.NoError(t, svc.ReleaseTrain("LEG2"))

	plan, found, err := svc.QueryTransfer("A", "Z", date, "time")
	require.NoError(t, err)
	require.True(t, found, "leg2 departing the morning after leg1's overnight arrival must be considered")
	require.Equal(t, "LEG2", plan.Leg2.TrainID)
}

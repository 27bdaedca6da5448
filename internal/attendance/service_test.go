package attendance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qrattend/internal/geo"
	"qrattend/internal/qrtoken"
	"qrattend/internal/roster"
)

var testNow = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

var campus = geo.Point{Latitude: 50.4597, Longitude: 80.2850}

type fakeRecords struct {
	mu      sync.Mutex
	records []Record
	// precheckBlind makes FindByUserAndDayRange always miss, simulating two
	// submissions that both pass the pre-check before either inserts.
	precheckBlind bool
	findErr       error
	insertErr     error
}

func (f *fakeRecords) FindByUserAndDayRange(_ context.Context, userID int64, start, end time.Time) (*Record, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.precheckBlind {
		return nil, nil
	}
	var latest *Record
	for i := range f.records {
		r := f.records[i]
		if r.UserID == userID && !r.OccurredAt.Before(start) && r.OccurredAt.Before(end) {
			if latest == nil || r.OccurredAt.After(latest.OccurredAt) {
				latest = &f.records[i]
			}
		}
	}
	return latest, nil
}

func (f *fakeRecords) Insert(_ context.Context, rec Record) (Record, error) {
	if f.insertErr != nil {
		return Record{}, f.insertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.UserID == rec.UserID && r.Day.Equal(rec.Day) {
			return Record{}, ErrDuplicateDay
		}
	}
	rec.ID = fmt.Sprintf("rec-%d", len(f.records)+1)
	rec.CreatedAt = rec.OccurredAt
	f.records = append(f.records, rec)
	return rec, nil
}

type fakeProfiles struct {
	profiles map[int64]*roster.Profile
}

func (f *fakeProfiles) Profile(_ context.Context, userID int64) (*roster.Profile, error) {
	return f.profiles[userID], nil
}

type fixedRef struct{ p geo.Point }

func (r fixedRef) Reference() geo.Point { return r.p }

func ptr[T any](v T) *T { return &v }

func newTestService(records *fakeRecords, profiles map[int64]*roster.Profile) *Service {
	s := NewService(records, &fakeProfiles{profiles: profiles}, fixedRef{campus}, geo.DefaultToleranceDegrees)
	s.now = func() time.Time { return testNow }
	return s
}

func memberProfile(id, groupID int64) *roster.Profile {
	return &roster.Profile{ID: id, Role: roster.RoleUser, ActiveGroupID: &groupID}
}

func validInput(userID int64) SubmitInput {
	return SubmitInput{
		UserID:    userID,
		QRCode:    qrtoken.Generate(testNow),
		Latitude:  campus.Latitude,
		Longitude: campus.Longitude,
	}
}

func kindOf(t *testing.T, err error) Kind {
	t.Helper()
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	return aerr.Kind
}

func TestSubmitSuccess(t *testing.T) {
	records := &fakeRecords{}
	svc := newTestService(records, map[int64]*roster.Profile{7: memberProfile(7, 3)})

	err := svc.Submit(context.Background(), validInput(7))
	require.NoError(t, err)

	require.Len(t, records.records, 1)
	rec := records.records[0]
	assert.Equal(t, int64(7), rec.UserID)
	require.NotNil(t, rec.GroupID)
	assert.Equal(t, int64(3), *rec.GroupID)
	assert.True(t, rec.Valid)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), rec.Day)
}

func TestSubmitStringCoordinates(t *testing.T) {
	records := &fakeRecords{}
	svc := newTestService(records, map[int64]*roster.Profile{7: memberProfile(7, 3)})

	in := validInput(7)
	in.Latitude = "50.4597"
	in.Longitude = " 80.2850 "
	require.NoError(t, svc.Submit(context.Background(), in))
	assert.Len(t, records.records, 1)
}

func TestSubmitInvalidCoordinates(t *testing.T) {
	cases := []struct {
		name     string
		lat, lon any
	}{
		{"missing both", nil, nil},
		{"non-numeric string", "somewhere", "80.28"},
		{"nan string", "NaN", "80.28"},
		{"bool", true, 80.28},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records := &fakeRecords{}
			svc := newTestService(records, map[int64]*roster.Profile{7: memberProfile(7, 3)})
			in := validInput(7)
			in.Latitude, in.Longitude = tc.lat, tc.lon

			err := svc.Submit(context.Background(), in)
			assert.Equal(t, KindInvalidCoordinate, kindOf(t, err))
			assert.Empty(t, records.records)
		})
	}
}

func TestSubmitTooFar(t *testing.T) {
	records := &fakeRecords{}
	svc := newTestService(records, map[int64]*roster.Profile{7: memberProfile(7, 3)})

	in := validInput(7)
	in.Latitude = campus.Latitude + 0.0045 // ~500m north

	err := svc.Submit(context.Background(), in)
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, KindLocationOutOfRange, aerr.Kind)
	require.NotNil(t, aerr.Details)
	assert.GreaterOrEqual(t, aerr.Details.Distance, 200)
	assert.NotEmpty(t, aerr.Details.Message)
	assert.Empty(t, records.records)
}

func TestSubmitQRFailures(t *testing.T) {
	cases := []struct {
		name string
		code string
		kind Kind
	}{
		{"wrong prefix", "lunch_2025-03-14T09:00:00Z_xyz", KindMalformedCode},
		{"bad timestamp", "attendance_yesterdayish_xyz", KindMalformedTimestamp},
		{"minted yesterday", qrtoken.Generate(testNow.AddDate(0, 0, -1)), KindExpiredCode},
		{"minted tomorrow", qrtoken.Generate(testNow.AddDate(0, 0, 1)), KindExpiredCode},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records := &fakeRecords{}
			svc := newTestService(records, map[int64]*roster.Profile{7: memberProfile(7, 3)})
			in := validInput(7)
			in.QRCode = tc.code

			err := svc.Submit(context.Background(), in)
			assert.Equal(t, tc.kind, kindOf(t, err))
			assert.Empty(t, records.records)
		})
	}
}

func TestSubmitDuplicateSameDay(t *testing.T) {
	records := &fakeRecords{}
	svc := newTestService(records, map[int64]*roster.Profile{7: memberProfile(7, 3)})

	require.NoError(t, svc.Submit(context.Background(), validInput(7)))

	err := svc.Submit(context.Background(), validInput(7))
	assert.Equal(t, KindDuplicateAttendance, kindOf(t, err))
	assert.Len(t, records.records, 1)
}

func TestSubmitYesterdayRecordDoesNotBlock(t *testing.T) {
	records := &fakeRecords{}
	yesterday := testNow.AddDate(0, 0, -1)
	dayStart, _ := DayBounds(yesterday)
	records.records = append(records.records, Record{
		ID: "old", UserID: 7, OccurredAt: yesterday, Day: dayStart, Valid: true,
	})
	svc := newTestService(records, map[int64]*roster.Profile{7: memberProfile(7, 3)})

	require.NoError(t, svc.Submit(context.Background(), validInput(7)))
	assert.Len(t, records.records, 2)
}

func TestSubmitConcurrentExactlyOneWins(t *testing.T) {
	// Both submissions pass the pre-check; the insert constraint decides.
	records := &fakeRecords{precheckBlind: true}
	svc := newTestService(records, map[int64]*roster.Profile{7: memberProfile(7, 3)})

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.Submit(context.Background(), validInput(7))
		}()
	}
	wg.Wait()
	close(errs)

	var ok, dup int
	for err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.Equal(t, KindDuplicateAttendance, kindOf(t, err))
		dup++
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, dup)
	assert.Len(t, records.records, 1)
}

func TestSubmitGroupResolution(t *testing.T) {
	cases := []struct {
		name     string
		profile  *roster.Profile
		selected *int64
		wantKind Kind
		wantGrp  *int64
	}{
		{
			name:    "member with active group",
			profile: memberProfile(7, 3),
			wantGrp: ptr(int64(3)),
		},
		{
			name:    "member without group",
			profile: &roster.Profile{ID: 7, Role: roster.RoleUser},
		},
		{
			name:    "curator of one group",
			profile: &roster.Profile{ID: 7, Role: roster.RoleCurator, CuratedGroupIDs: []int64{9}},
			wantGrp: ptr(int64(9)),
		},
		{
			name:     "curator of several without selection",
			profile:  &roster.Profile{ID: 7, Role: roster.RoleCurator, CuratedGroupIDs: []int64{9, 11}},
			wantKind: KindGroupAmbiguous,
		},
		{
			name:     "curator of several with selection",
			profile:  &roster.Profile{ID: 7, Role: roster.RoleCurator, CuratedGroupIDs: []int64{9, 11}},
			selected: ptr(int64(11)),
			wantGrp:  ptr(int64(11)),
		},
		{
			name:     "curator selecting foreign group",
			profile:  &roster.Profile{ID: 7, Role: roster.RoleCurator, CuratedGroupIDs: []int64{9}},
			selected: ptr(int64(12)),
			wantKind: KindGroupAmbiguous,
		},
		{
			name:    "admin gets no attribution",
			profile: &roster.Profile{ID: 7, Role: roster.RoleAdmin},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			records := &fakeRecords{}
			svc := newTestService(records, map[int64]*roster.Profile{7: tc.profile})
			in := validInput(7)
			in.GroupID = tc.selected

			err := svc.Submit(context.Background(), in)
			if tc.wantKind != "" {
				assert.Equal(t, tc.wantKind, kindOf(t, err))
				assert.Empty(t, records.records)
				return
			}
			require.NoError(t, err)
			require.Len(t, records.records, 1)
			if tc.wantGrp == nil {
				assert.Nil(t, records.records[0].GroupID)
			} else {
				require.NotNil(t, records.records[0].GroupID)
				assert.Equal(t, *tc.wantGrp, *records.records[0].GroupID)
			}
		})
	}
}

func TestSubmitPersistenceFailureIsInternal(t *testing.T) {
	records := &fakeRecords{insertErr: errors.New("connection reset")}
	svc := newTestService(records, map[int64]*roster.Profile{7: memberProfile(7, 3)})

	err := svc.Submit(context.Background(), validInput(7))
	var aerr *Error
	require.ErrorAs(t, err, &aerr)
	assert.Equal(t, KindInternal, aerr.Kind)
	// Client-facing message stays generic.
	assert.Equal(t, "internal server error", aerr.Message)
}

func TestDayBounds(t *testing.T) {
	start, end := DayBounds(testNow)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), end)
}

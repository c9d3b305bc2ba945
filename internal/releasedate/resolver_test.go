package releasedate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cvl/internal/calendar"
	"cvl/internal/licence/models"
)

type staticSource struct{ holidays []time.Time }

func (s staticSource) BankHolidays(context.Context) ([]time.Time, error) {
	return s.holidays, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func TestResolveKindPRRDPrecedence(t *testing.T) {
	today := date(2024, time.April, 10)

	tests := []struct {
		name string
		prrd *time.Time
		crd  *time.Time
		want models.LicenceKind
	}{
		{"prrd today, no crd", ptr(today), nil, models.KindPRRD},
		{"prrd after crd", ptr(today.AddDate(0, 0, 10)), ptr(today.AddDate(0, 0, 9)), models.KindPRRD},
		{"crd after prrd", ptr(today.AddDate(0, 0, 9)), ptr(today.AddDate(0, 0, 10)), models.KindCRD},
		{"equal dates: crd wins ties", ptr(today.AddDate(0, 0, 10)), ptr(today.AddDate(0, 0, 10)), models.KindCRD},
		{"prrd in the past", ptr(today.AddDate(0, 0, -1)), ptr(today.AddDate(0, 0, 5)), models.KindCRD},
		{"no prrd", nil, ptr(today.AddDate(0, 0, 5)), models.KindCRD},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveKind(SentenceDates{PostRecallReleaseDate: tt.prrd, ConditionalReleaseDate: tt.crd}, today)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStartDate(t *testing.T) {
	crd := ptr(date(2024, time.May, 10))
	ard := ptr(date(2024, time.May, 8))
	prrd := ptr(date(2024, time.June, 1))
	hdcad := ptr(date(2024, time.April, 1))

	t.Run("standard release prefers the actual date once known", func(t *testing.T) {
		got := StartDate(models.KindCRD, SentenceDates{ConditionalReleaseDate: crd, ActualReleaseDate: ard})
		assert.Equal(t, *ard, *got)
	})

	t.Run("standard release falls back to the conditional date", func(t *testing.T) {
		got := StartDate(models.KindCRD, SentenceDates{ConditionalReleaseDate: crd})
		assert.Equal(t, *crd, *got)
	})

	t.Run("recall kind uses prrd", func(t *testing.T) {
		got := StartDate(models.KindPRRD, SentenceDates{ConditionalReleaseDate: crd, PostRecallReleaseDate: prrd})
		assert.Equal(t, *prrd, *got)
	})

	t.Run("hdc kind uses the curfew actual date", func(t *testing.T) {
		got := StartDate(models.KindHDC, SentenceDates{ConditionalReleaseDate: crd, HomeDetentionCurfewActualDate: hdcad})
		assert.Equal(t, *hdcad, *got)
	})

	t.Run("absent governing date yields nil", func(t *testing.T) {
		assert.Nil(t, StartDate(models.KindPRRD, SentenceDates{ConditionalReleaseDate: crd}))
	})
}

func TestLicenceTypeTieRule(t *testing.T) {
	led := date(2021, time.October, 22)

	tests := []struct {
		name  string
		led   *time.Time
		tused *time.Time
		want  models.LicenceType
	}{
		{"no dates", nil, nil, models.TypeAP},
		{"tused only", nil, ptr(led), models.TypePSS},
		{"led only", ptr(led), nil, models.TypeAP},
		{"tused equals led resolves to AP", ptr(led), ptr(led), models.TypeAP},
		{"tused day after led", ptr(led), ptr(date(2021, time.October, 23)), models.TypeAPPSS},
		{"tused day before led", ptr(led), ptr(date(2021, time.October, 21)), models.TypeAP},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LicenceType(tt.led, tt.tused))
		})
	}
}

func TestHardStopDates(t *testing.T) {
	// No holidays: pure weekend arithmetic.
	r := NewResolver(calendar.New(staticSource{}), 2, 2)
	ctx := context.Background()

	// Start Monday 2024-03-11: hard stop two working days back is Thursday
	// 2024-03-07, warning a further two back is Tuesday 2024-03-05.
	hardStop, warning, err := r.HardStopDates(ctx, date(2024, time.March, 11))
	require.NoError(t, err)
	assert.Equal(t, date(2024, time.March, 7), hardStop)
	assert.Equal(t, date(2024, time.March, 5), warning)

	assert.True(t, warning.Before(hardStop))
	assert.True(t, hardStop.Before(date(2024, time.March, 11)))
}

func TestIsInHardStopPeriod(t *testing.T) {
	hardStop := date(2024, time.March, 7)
	start := date(2024, time.March, 11)

	assert.False(t, IsInHardStopPeriod(date(2024, time.March, 6), hardStop, start))
	assert.True(t, IsInHardStopPeriod(hardStop, hardStop, start))
	assert.True(t, IsInHardStopPeriod(date(2024, time.March, 10), hardStop, start))
	// The start date itself is outside the window (exclusive upper bound).
	assert.False(t, IsInHardStopPeriod(start, hardStop, start))
}

func TestIsDueToBeReleasedInTheNextTwoWorkingDays(t *testing.T) {
	r := NewResolver(calendar.New(staticSource{}), 2, 2)
	ctx := context.Background()

	friday := date(2024, time.March, 1)

	t.Run("monday release seen from friday", func(t *testing.T) {
		got, err := r.IsDueToBeReleasedInTheNextTwoWorkingDays(ctx, friday, ptr(date(2024, time.March, 4)))
		require.NoError(t, err)
		assert.True(t, got)
	})

	t.Run("wednesday release seen from friday", func(t *testing.T) {
		got, err := r.IsDueToBeReleasedInTheNextTwoWorkingDays(ctx, friday, ptr(date(2024, time.March, 6)))
		require.NoError(t, err)
		assert.False(t, got)
	})

	t.Run("no start date", func(t *testing.T) {
		got, err := r.IsDueToBeReleasedInTheNextTwoWorkingDays(ctx, friday, nil)
		require.NoError(t, err)
		assert.False(t, got)
	})
}

func TestRecallLicenceTypeDegeneration(t *testing.T) {
	r := NewResolver(calendar.New(staticSource{}), 2, 2)
	ctx := context.Background()

	led := date(2024, time.March, 11) // Monday
	tused := date(2024, time.September, 1)
	dates := SentenceDates{LicenceExpiryDate: &led, TopupSupervisionExpiryDate: &tused}

	t.Run("start before led keeps AP_PSS", func(t *testing.T) {
		got, err := r.RecallLicenceType(ctx, dates, date(2024, time.March, 4))
		require.NoError(t, err)
		assert.Equal(t, models.TypeAPPSS, got)
	})

	t.Run("start equal to led degenerates to PSS", func(t *testing.T) {
		got, err := r.RecallLicenceType(ctx, dates, led)
		require.NoError(t, err)
		assert.Equal(t, models.TypePSS, got)
	})

	t.Run("weekend led: start on the prior friday degenerates", func(t *testing.T) {
		saturdayLED := date(2024, time.March, 9)
		weekendDates := SentenceDates{LicenceExpiryDate: &saturdayLED, TopupSupervisionExpiryDate: &tused}
		got, err := r.RecallLicenceType(ctx, weekendDates, date(2024, time.March, 8))
		require.NoError(t, err)
		assert.Equal(t, models.TypePSS, got)
	})

	t.Run("pss-only stays pss", func(t *testing.T) {
		got, err := r.RecallLicenceType(ctx, SentenceDates{TopupSupervisionExpiryDate: &tused}, date(2024, time.March, 4))
		require.NoError(t, err)
		assert.Equal(t, models.TypePSS, got)
	})
}

package usecase

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"calsync/internal/domain"
)

func TestReportStatus(t *testing.T) {
	t.Run("no errors is success", func(t *testing.T) {
		r := newReport()
		r.create()
		r.skip(SkipSelfCreated)
		assert.Equal(t, domain.StatusSuccess, r.status())
	})

	t.Run("empty pass is success", func(t *testing.T) {
		assert.Equal(t, domain.StatusSuccess, newReport().status())
	})

	t.Run("mixed outcome is partial", func(t *testing.T) {
		r := newReport()
		r.importOne()
		r.fail("entry 1", errors.New("boom"))
		assert.Equal(t, domain.StatusPartial, r.status())
	})

	t.Run("only failures is error", func(t *testing.T) {
		r := newReport()
		r.skip(SkipOther)
		r.fail("entry 1", errors.New("boom"))
		assert.Equal(t, domain.StatusError, r.status(), "skips do not count as successes")
	})
}

func TestReportLastErrorTruncation(t *testing.T) {
	r := newReport()
	assert.Empty(t, r.lastError())

	for i := 1; i <= 5; i++ {
		r.fail(fmt.Sprintf("entry %d", i), errors.New("boom"))
	}
	assert.Equal(t, "entry 1: boom; entry 2: boom; entry 3: boom", r.lastError())
	assert.Len(t, r.result().Errors, 5)
}

func TestMarkerRoundTrip(t *testing.T) {
	desc := stampDescription("Dev work", []string{"billing", "q2"})
	assert.True(t, isSelfCreated(desc))
	assert.Contains(t, desc, "Dev work")
	assert.Contains(t, desc, "Tags: billing, q2")

	assert.True(t, isSelfCreated(stampDescription("", nil)))
	assert.False(t, isSelfCreated("Weekly planning"))
	assert.False(t, isSelfCreated("note mentioning "+EventMarker+" later"), "marker must lead the body")
}

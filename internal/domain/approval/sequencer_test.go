package approval

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intranet/internal/domain/apperr"
)

func TestNumberLines(t *testing.T) {
	lines := NumberLines("doc-1", []LineSpec{
		{ApproverID: "a1"},
		{ApproverID: "a2", Type: LineAgreement, Optional: true},
	})
	require.Len(t, lines, 2)
	assert.Equal(t, 1, lines[0].Seq)
	assert.Equal(t, LineApproval, lines[0].Type)
	assert.Equal(t, LinePending, lines[0].Status)
	assert.Equal(t, "doc-1", lines[0].DocumentID)
	assert.Equal(t, 2, lines[1].Seq)
	assert.Equal(t, LineAgreement, lines[1].Type)
	assert.True(t, lines[1].Optional)
	assert.NotEqual(t, lines[0].ID, lines[1].ID)
	assert.NoError(t, Validate(lines))
}

func TestCurrentAndNext(t *testing.T) {
	lines := []Line{
		{Seq: 3, ApproverID: "a3", Status: LinePending},
		{Seq: 1, ApproverID: "a1", Status: LineApproved},
		{Seq: 2, ApproverID: "a2", Status: LinePending, DelegatedTo: "d2"},
	}
	idx, ok := Current(lines)
	require.True(t, ok)
	assert.Equal(t, 2, lines[idx].Seq)
	assert.Equal(t, "d2", EffectiveApprover(lines[idx]))

	next, ok := Next(lines, 2)
	require.True(t, ok)
	assert.Equal(t, "a3", lines[next].ApproverID)

	_, ok = Next(lines, 3)
	assert.False(t, ok)

	SortLines(lines)
	assert.Equal(t, []int{1, 2, 3}, []int{lines[0].Seq, lines[1].Seq, lines[2].Seq})
}

func TestOptionalLinesAreNotSkipped(t *testing.T) {
	lines := []Line{
		{Seq: 1, ApproverID: "a1", Status: LineApproved},
		{Seq: 2, ApproverID: "a2", Status: LinePending, Optional: true},
		{Seq: 3, ApproverID: "a3", Status: LinePending},
	}
	next, ok := Next(lines, 1)
	require.True(t, ok)
	assert.Equal(t, "a2", lines[next].ApproverID)
}

func TestSkipRemaining(t *testing.T) {
	lines := []Line{
		{Seq: 1, Status: LineRejected},
		{Seq: 2, Status: LinePending},
		{Seq: 3, Status: LinePending},
	}
	changed := SkipRemaining(lines)
	assert.Equal(t, []int{1, 2}, changed)
	assert.Equal(t, LineSkipped, lines[1].Status)
	assert.Equal(t, LineSkipped, lines[2].Status)
	_, ok := Current(lines)
	assert.False(t, ok)
}

func TestValidate(t *testing.T) {
	assert.ErrorIs(t, Validate(nil), apperr.ErrValidation)
	assert.ErrorIs(t, Validate([]Line{{Seq: 1, ApproverID: "a"}, {Seq: 3, ApproverID: "b"}}), apperr.ErrValidation)
	assert.ErrorIs(t, Validate([]Line{{Seq: 1, ApproverID: "a"}, {Seq: 1, ApproverID: "b"}}), apperr.ErrValidation)
	assert.ErrorIs(t, Validate([]Line{{Seq: 1, ApproverID: "a"}, {Seq: 2, ApproverID: "a"}}), apperr.ErrValidation)
}

func TestNewDocNumber(t *testing.T) {
	now := time.UnixMilli(1735689600123)
	num := NewDocNumber(now)
	assert.Regexp(t, regexp.MustCompile(`^DOC-1735689600123-[0-9a-f]{8}$`), num)
	assert.NotEqual(t, num, NewDocNumber(now))
}

func TestDecodePayload(t *testing.T) {
	p, err := DecodePayload(TypeGeneralApproval, nil)
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = DecodePayload(TypeGeneralApproval, []byte(`{"x":1}`))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = DecodePayload(TypeLeaveRequest, []byte(`{"leaveType":`))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	p, err = DecodePayload(TypeExpenseRequest, []byte(`{"category":"travel","amount":"12.50","currency":"EUR","spentOn":"2025-03-04T00:00:00Z"}`))
	require.NoError(t, err)
	expense, ok := p.(*ExpenseDetail)
	require.True(t, ok)
	assert.Equal(t, "12.5", expense.Amount.String())
}

func TestCheckPayload(t *testing.T) {
	assert.ErrorIs(t, checkPayload(TypeLeaveRequest, nil), apperr.ErrValidation)
	assert.NoError(t, checkPayload(TypeGeneralApproval, nil))
	assert.ErrorIs(t, checkPayload(TypeOvertimeRequest, &ExpenseDetail{}), apperr.ErrValidation)

	overtime := &OvertimeDetail{
		StartAt: time.Date(2025, 3, 4, 18, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2025, 3, 4, 21, 15, 0, 0, time.UTC),
	}
	require.NoError(t, checkPayload(TypeOvertimeRequest, overtime))
	assert.Equal(t, "3.25", overtime.Hours.String())
	assert.Equal(t, time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), overtime.WorkDate)

	assert.ErrorIs(t, checkPayload(TypeExpenseRequest, &ExpenseDetail{Category: "meals", Currency: "EUR"}), apperr.ErrValidation)
}

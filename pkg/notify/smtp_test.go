package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildBodyIncludesGradeDetails(t *testing.T) {
	desc := "Unit 3 written exam"
	body := BuildBody(Message{
		RecipientName: "Maria Flores",
		CourseName:    "Algorithms I",
		SlotLabel:     "Partial Exam 1",
		Value:         15.5,
		Date:          time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
		Description:   &desc,
	})

	require.Contains(t, body, "Maria Flores")
	require.Contains(t, body, "Partial Exam 1")
	require.Contains(t, body, "15.50")
	require.Contains(t, body, "2026-04-10")
	require.Contains(t, body, "Unit 3 written exam")
}

func TestBuildBodyOmitsEmptyDescription(t *testing.T) {
	body := BuildBody(Message{
		RecipientName: "Jose Quispe",
		CourseName:    "Databases",
		SlotLabel:     "Evaluation 2",
		Value:         12,
		Date:          time.Date(2026, 4, 10, 0, 0, 0, 0, time.UTC),
	})

	require.False(t, strings.Contains(body, "About this evaluation"))
}

package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"a@b.co", true},
		{"jo.smith+demo@mail.example.com", true},
		{"a@b", false},
		{"@b.co", false},
		{"a@.co", false},
		{"a@b.", false},
		{"a @b.co", false},
		{"not-an-email", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidateEmail(tt.value))
		})
	}
}

func TestValidatePhone(t *testing.T) {
	assert.True(t, ValidatePhone("+1 (555) 010-9999"))
	assert.True(t, ValidatePhone("5550109"))
	assert.False(t, ValidatePhone("555-01"))
	assert.False(t, ValidatePhone("call me"))
}

func TestReadyToSend(t *testing.T) {
	assert.Empty(t, ReadyToSend(UserProfile{Name: "Jo", Email: "jo@x.com"}))

	problems := ReadyToSend(UserProfile{Name: "Jo", Email: "not-an-email"})
	if assert.Len(t, problems, 1) {
		assert.Equal(t, FieldEmail, problems[0].Field)
		assert.Equal(t, "invalid", problems[0].Reason)
	}

	problems = ReadyToSend(UserProfile{Email: "jo@x.com", Phone: "123"})
	assert.Equal(t, []FieldProblem{
		{Field: FieldName, Reason: "missing"},
		{Field: FieldPhone, Reason: "invalid"},
	}, problems)
}

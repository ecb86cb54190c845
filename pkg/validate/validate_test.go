package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type registerInput struct {
	FirstName            string `json:"first_name" validate:"required,alpha_dash,min=2,max=60"`
	Email                string `json:"email" validate:"required,email"`
	Age                  int    `json:"age" validate:"required,integer,gte=18,lte=120"`
	Password             string `json:"password" validate:"required,min=8,confirmed"`
	PasswordConfirmation string `json:"password_confirmation"`
	Role                 string `json:"role" validate:"nullable,in=user,premium,admin"`
	Website              string `json:"website" validate:"nullable,url"`
}

func valid() registerInput {
	return registerInput{
		FirstName:            "ana",
		Email:                "ana@example.com",
		Age:                  29,
		Password:             "hunter2hunter2",
		PasswordConfirmation: "hunter2hunter2",
		Role:                 "premium",
	}
}

func TestStructValid(t *testing.T) {
	errs := Struct(valid())
	assert.False(t, HasErrors(errs), "expected no errors, got %v", errs)
}

func TestRequired(t *testing.T) {
	in := valid()
	in.Email = "   "
	errs := Struct(in)
	assert.Equal(t, "The email field is required.", errs["email"])
}

func TestEmailFormat(t *testing.T) {
	in := valid()
	in.Email = "not-an-email"
	errs := Struct(in)
	assert.Contains(t, errs["email"], "valid email")
}

func TestNumericBounds(t *testing.T) {
	in := valid()
	in.Age = 12
	errs := Struct(in)
	assert.Contains(t, errs["age"], "greater than or equal to 18")

	in.Age = 300
	errs = Struct(in)
	assert.Contains(t, errs["age"], "less than or equal to 120")
}

func TestStringLength(t *testing.T) {
	in := valid()
	in.Password = "short"
	in.PasswordConfirmation = "short"
	errs := Struct(in)
	assert.Contains(t, errs["password"], "at least 8 characters")
}

func TestConfirmed(t *testing.T) {
	in := valid()
	in.PasswordConfirmation = "different"
	errs := Struct(in)
	assert.Equal(t, "The password confirmation does not match.", errs["password"])
}

func TestInRule(t *testing.T) {
	in := valid()
	in.Role = "superuser"
	errs := Struct(in)
	assert.Equal(t, "The selected role is invalid.", errs["role"])
}

func TestNullableSkipsEmptyField(t *testing.T) {
	in := valid()
	in.Role = ""
	in.Website = ""
	errs := Struct(in)
	assert.False(t, HasErrors(errs))
}

func TestNullableStillValidatesWhenPresent(t *testing.T) {
	in := valid()
	in.Website = "ftp://example.com"
	errs := Struct(in)
	assert.Contains(t, errs["website"], "valid URL")
}

func TestSplitRulesKeepsInParamsTogether(t *testing.T) {
	rules := splitRules("required,in=user,premium,admin,max=100")
	assert.Equal(t, []string{"required", "in=user,premium,admin", "max=100"}, rules)
}

func TestFirstFailingRuleWins(t *testing.T) {
	in := valid()
	in.FirstName = ""
	errs := Struct(in)
	assert.Equal(t, "The first_name field is required.", errs["first_name"])
}

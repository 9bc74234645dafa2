package validate

import (
	"errors"
	"strings"
	"testing"

	perr "feedmirror/internal/platform/errors"
)

func TestTagName_EnvThenJSONThenField(t *testing.T) {
	type s struct {
		A int `env:"CORE_MIRROR_WORKERS" json:"workers" validate:"min=1"`
		B int `json:"rate,omitempty" validate:"min=1"`
		C int `json:"-" validate:"min=1"`
		D int `validate:"min=1"`
	}
	cases := []struct {
		in   s
		want string
	}{
		{s{A: 0, B: 1, C: 1, D: 1}, "CORE_MIRROR_WORKERS"},
		{s{A: 1, B: 0, C: 1, D: 1}, "rate"},
		{s{A: 1, B: 1, C: 0, D: 1}, "C"},
		{s{A: 1, B: 1, C: 1, D: 0}, "D"},
	}
	for _, tc := range cases {
		field, _ := FieldAndMessage(Get().Validator.Struct(tc.in))
		if field != tc.want {
			t.Fatalf("field = %q, want %q", field, tc.want)
		}
	}
}

func TestStruct_ReturnsValidationErrorWithField(t *testing.T) {
	type s struct {
		Workers int `env:"WORKERS" validate:"min=1,max=64"`
	}
	if err := Struct(s{Workers: 4}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := Struct(s{Workers: 65})
	if !perr.IsCode(err, perr.ErrorCodeValidation) {
		t.Fatalf("want validation code, got %v", err)
	}
	e, ok := perr.As(err)
	if !ok || e.Field() != "WORKERS" {
		t.Fatalf("want field WORKERS, got %+v", err)
	}
	if !strings.Contains(err.Error(), "WORKERS must be at most 64") {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestStruct_InvalidTarget(t *testing.T) {
	err := Struct(nil)
	if !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("want invalid argument for nil target, got %v", err)
	}
}

func TestIdent(t *testing.T) {
	type s struct {
		Table string `env:"TABLE" validate:"ident"`
	}
	for _, ok := range []string{"items", "items_raw", "_x1"} {
		if err := Struct(s{Table: ok}); err != nil {
			t.Fatalf("%q rejected: %v", ok, err)
		}
	}
	for _, bad := range []string{"", "1items", "items;drop", "db.items", "it ems"} {
		err := Struct(s{Table: bad})
		if err == nil {
			t.Fatalf("%q accepted", bad)
		}
		if !strings.Contains(err.Error(), "TABLE must be a plain identifier") {
			t.Fatalf("unexpected message for %q: %q", bad, err.Error())
		}
	}
}

func TestTranslations_Min(t *testing.T) {
	type s struct {
		Retries int `json:"retries" validate:"min=1"`
	}
	_, msg := FieldAndMessage(Get().Validator.Struct(s{}))
	if msg != "retries must be at least 1" {
		t.Fatalf("unexpected min message: %q", msg)
	}
}

func TestFieldAndMessage_GenericError(t *testing.T) {
	field, msg := FieldAndMessage(errors.New("boom"))
	if field != "" || msg != "boom" {
		t.Fatalf("expected passthrough, got field=%q msg=%q", field, msg)
	}
	if f, m := FieldAndMessage(nil); f != "" || m != "" {
		t.Fatalf("nil error should yield empty strings")
	}
}

func TestRegisterValidation_Overwrites(t *testing.T) {
	if err := RegisterValidation("dupe_tag", func(FieldLevel) bool { return false }); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := RegisterValidation("dupe_tag", func(FieldLevel) bool { return true }); err != nil {
		t.Fatalf("second register: %v", err)
	}
	type S struct {
		N int `validate:"dupe_tag"`
	}
	if err := Struct(S{}); err != nil {
		t.Fatalf("expected pass after overwrite, got %v", err)
	}
}

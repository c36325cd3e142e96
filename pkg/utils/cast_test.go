package utils

import (
	"errors"
	"strings"
	"testing"
)

func TestSafeCast(t *testing.T) {
	cast, err := SafeCast[int](12334)
	if err != nil {
		t.Fatal(err)
	}
	if cast != 12334 {
		t.Fatalf("got %d", cast)
	}

	if _, err := SafeCast[string](nil); !errors.Is(err, ErrNilValue) {
		t.Fatalf("got %v", err)
	}

	_, err = SafeCast[string](12)
	var castErr *CastError
	if !errors.As(err, &castErr) {
		t.Fatalf("got %v", err)
	}
	if castErr.Got != "int" || castErr.Want != "string" {
		t.Fatalf("got %+v", castErr)
	}
}

func TestUnmarshal(t *testing.T) {
	type msg struct {
		ID string `json:"id"`
	}

	got, err := Unmarshal[msg]([]byte(`{"id":"scan:ethereum:1"}`))
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != "scan:ethereum:1" {
		t.Fatalf("got %+v", got)
	}

	_, err = Unmarshal[msg]([]byte(`{`))
	if err == nil || !strings.Contains(err.Error(), "decode utils.msg") {
		t.Fatalf("got %v", err)
	}
}

func TestMustMarshal(t *testing.T) {
	if got := string(MustMarshal(map[string]int{"block": 7})); got != `{"block":7}` {
		t.Fatalf("got %s", got)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("no panic on a value that can't be encoded")
		}
	}()
	MustMarshal(make(chan int))
}
